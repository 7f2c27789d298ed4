package main

import (
	"context"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"lungscan-go/presentation"
	"lungscan-go/resources"
)

// shutdownGrace bounds how long cleanup may run after the window closes.
const shutdownGrace = 10 * time.Second

// runGUI opens the main window and blocks until it is closed.
func runGUI(ctx context.Context, opts *globalOptions) error {
	// Console logs go to stdout in dev builds, a rotating file in prod builds.
	svc, err := bootstrap(opts, os.Stdout, true)
	if err != nil {
		return err
	}
	logger := svc.logger
	logger.Info("Starting LungScan", "version", version)

	fyneApp := app.NewWithID("io.lungscan.app")
	fyneApp.SetIcon(resources.GetAppIcon())

	mainWindow := openMainWindow(svc, fyneApp, presentation.FyneDispatcher)

	// Quit on interrupt
	go func() {
		<-ctx.Done()
		fyne.Do(fyneApp.Quit)
	}()

	mainWindow.Show()
	fyneApp.Run()

	// Force exit if cleanup hangs
	go func() {
		time.Sleep(shutdownGrace)
		logger.Warn("Shutdown timeout, forcing exit")
		os.Exit(0)
	}()

	mainWindow.Cleanup()
	svc.Close()

	logger.Info("Application shutdown complete")
	return nil
}

// openMainWindow wires the bridge and window to svc, then starts the
// coordinator so the window sees the model preload result.
func openMainWindow(svc *services, fyneApp fyne.App, dispatch presentation.Dispatcher) *presentation.MainWindow {
	bridge := presentation.NewUIEventBridge(&presentation.BridgeConfig{
		Coordinator: svc.coordinator,
		EventBus:    svc.eventBus,
		Dispatcher:  dispatch,
		Logger:      svc.logger,
	})

	mainWindow := presentation.NewMainWindow(&presentation.MainWindowConfig{
		App:         fyneApp,
		Bridge:      bridge,
		Previewer:   svc.preprocessor,
		PreviewSize: svc.cfg.PreviewSize,
		Dispatcher:  dispatch,
		Logger:      svc.logger,
	})

	svc.coordinator.Start()
	return mainWindow
}

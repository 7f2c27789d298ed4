package main

import (
	"io"
	"log/slog"

	"lungscan-go/application"
	"lungscan-go/core/eventbus"
	"lungscan-go/infrastructure/config"
	"lungscan-go/infrastructure/imaging"
	"lungscan-go/infrastructure/logging"
	"lungscan-go/infrastructure/model"
)

// services is the wired application core shared by the GUI and predict.
type services struct {
	cfg          *config.Config
	logger       *slog.Logger
	eventBus     eventbus.EventBus
	preprocessor *imaging.Preprocessor
	invoker      *model.Invoker
	coordinator  *application.Coordinator
	closeLog     func() error
}

// bootstrap loads configuration, sets up logging and wires the coordinator.
// logOutput receives console logs in dev builds. The coordinator is not
// started; callers start it once their event subscribers are in place.
func bootstrap(opts *globalOptions, logOutput io.Writer, preload bool) (*services, error) {
	cfg, err := config.Load(config.LoadOptions{Path: opts.configPath, EnvFile: opts.envFile})
	if err != nil {
		return nil, err
	}
	if opts.modelPath != "" {
		cfg.ModelPath = opts.modelPath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = logOutput
	logger, closeLog, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}

	// A missing model is reported when it is first loaded, not at startup.
	manifestPath, err := model.FindManifest(cfg.ModelPath, model.DefaultSearchDirs())
	if err != nil {
		logger.Warn("Model manifest not found", "error", err)
		manifestPath = cfg.ModelPath
	}

	s := &services{
		cfg:      cfg,
		logger:   logger,
		eventBus: eventbus.NewWithLogger(eventbus.DefaultBufferSize, logger),
		preprocessor: imaging.NewPreprocessor(&imaging.Config{
			MaxPixels: cfg.MaxImagePixels,
			Logger:    logger,
		}),
		invoker: model.NewInvoker(&model.Config{
			ManifestPath: manifestPath,
			Logger:       logger,
		}),
		closeLog: closeLog,
	}
	s.coordinator = application.NewCoordinator(&application.CoordinatorConfig{
		Preprocessor: s.preprocessor,
		Model:        s.invoker,
		EventBus:     s.eventBus,
		Logger:       logger,
		PreloadModel: preload && cfg.PreloadModel,
		StopTimeout:  cfg.StopTimeout,
	})
	return s, nil
}

// Close stops the coordinator and releases the model and log file.
func (s *services) Close() {
	s.coordinator.Stop()
	s.eventBus.Close()
	if err := s.closeLog(); err != nil {
		s.logger.Warn("Failed to close log", "error", err)
	}
}

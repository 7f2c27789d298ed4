package presentation

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"lungscan-go/core/event"
	"lungscan-go/domain/diagnosis"
	"lungscan-go/infrastructure/imaging"
)

// Previewer produces a downscaled image for display.
type Previewer interface {
	Preview(path string, maxSide int) (image.Image, error)
}

// MainWindow is the main application window.
type MainWindow struct {
	window      fyne.Window
	bridge      *UIEventBridge
	previewer   Previewer
	previewSize int
	dispatch    Dispatcher
	logger      *slog.Logger

	// UI components - Toolbar
	openBtn   *widget.Button
	cancelBtn *widget.Button
	reloadBtn *widget.Button

	// UI components - Image panel
	preview    *canvas.Image
	imageLabel *widget.Label

	// UI components - Result panel
	resultCard      *widget.Card
	diagnosisLabel  *widget.Label
	confidenceBar   *widget.ProgressBar
	confidenceLabel *widget.Label
	activity        *widget.ProgressBarInfinite
	statusLabel     *widget.Label
	modelLabel      *widget.Label

	// State, touched only on the UI thread
	currentImage string
	currentJob   string
	busy         bool

	// Cleanup
	cleanupOnce sync.Once
}

// MainWindowConfig holds configuration for MainWindow.
type MainWindowConfig struct {
	App       fyne.App
	Bridge    *UIEventBridge
	Previewer Previewer
	// PreviewSize is the longest side of the preview image in pixels.
	PreviewSize int
	// Dispatcher marshals preview loading results onto the UI thread.
	// Defaults to FyneDispatcher.
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

// NewMainWindow creates a new main window.
func NewMainWindow(cfg *MainWindowConfig) *MainWindow {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = FyneDispatcher
	}
	if cfg.PreviewSize <= 0 {
		cfg.PreviewSize = 400
	}

	w := &MainWindow{
		window:      cfg.App.NewWindow("Lung Cancer Classifier"),
		bridge:      cfg.Bridge,
		previewer:   cfg.Previewer,
		previewSize: cfg.PreviewSize,
		dispatch:    cfg.Dispatcher,
		logger:      cfg.Logger,
	}

	w.init()
	w.setupEventCallbacks()

	w.window.SetOnDropped(w.handleDrop)
	w.window.SetOnClosed(func() {
		w.Cleanup()
		cfg.App.Quit()
	})

	return w
}

func (w *MainWindow) init() {
	toolbar := w.createToolbar()

	w.preview = canvas.NewImageFromImage(nil)
	w.preview.FillMode = canvas.ImageFillContain
	w.preview.SetMinSize(fyne.NewSize(float32(w.previewSize), float32(w.previewSize)))
	w.imageLabel = widget.NewLabel("No image selected")
	w.imageLabel.Alignment = fyne.TextAlignCenter
	w.imageLabel.Truncation = fyne.TextTruncateEllipsis

	imagePanel := widget.NewCard("Image", "", container.NewBorder(
		nil, w.imageLabel, nil, nil,
		w.preview,
	))

	w.diagnosisLabel = widget.NewLabelWithStyle("-", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	w.confidenceBar = widget.NewProgressBar()
	w.confidenceBar.TextFormatter = func() string {
		return fmt.Sprintf("%.1f %%", w.confidenceBar.Value*100)
	}
	w.confidenceLabel = widget.NewLabel("")
	w.confidenceLabel.Alignment = fyne.TextAlignCenter
	w.activity = widget.NewProgressBarInfinite()
	w.activity.Stop()
	w.activity.Hide()
	w.statusLabel = widget.NewLabel("Select an image to analyze")
	w.statusLabel.Wrapping = fyne.TextWrapWord
	w.modelLabel = widget.NewLabel("Model: not loaded")

	w.resultCard = widget.NewCard("Diagnosis", "", container.NewVBox(
		w.diagnosisLabel,
		widget.NewLabel("Confidence"),
		w.confidenceBar,
		w.confidenceLabel,
		widget.NewSeparator(),
		w.activity,
		w.statusLabel,
		layout.NewSpacer(),
		w.modelLabel,
	))

	split := container.NewHSplit(imagePanel, w.resultCard)
	split.SetOffset(0.6)

	content := container.NewBorder(toolbar, nil, nil, nil, split)
	w.window.SetContent(content)
	w.window.Resize(fyne.NewSize(900, 560))
}

func (w *MainWindow) createToolbar() fyne.CanvasObject {
	w.openBtn = widget.NewButtonWithIcon("Open Image...", theme.FolderOpenIcon(), w.showOpenDialog)
	w.openBtn.Importance = widget.HighImportance

	w.cancelBtn = widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), w.handleCancel)
	w.cancelBtn.Disable()

	w.reloadBtn = widget.NewButtonWithIcon("Reload Model", theme.ViewRefreshIcon(), w.handleReloadModel)

	// [Open Image...] [Cancel] | spacer | [Reload Model]
	return container.NewHBox(
		w.openBtn,
		w.cancelBtn,
		layout.NewSpacer(),
		w.reloadBtn,
	)
}

func (w *MainWindow) setupEventCallbacks() {
	if w.bridge == nil {
		return
	}

	// The bridge runs every callback on the UI thread.
	w.bridge.SetCallbacks(&UICallbacks{
		OnJobSubmitted:    w.onJobSubmitted,
		OnJobProgress:     w.onJobProgress,
		OnJobSucceeded:    w.onJobSucceeded,
		OnJobFailed:       w.onJobFailed,
		OnJobCancelled:    w.onJobCancelled,
		OnModelLoaded:     w.onModelLoaded,
		OnModelLoadFailed: w.onModelLoadFailed,
	})
}

func (w *MainWindow) showOpenDialog() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w.window)
			return
		}
		if reader == nil {
			return // dialog dismissed
		}
		path := reader.URI().Path()
		reader.Close()
		w.analyze(path)
	}, w.window)
	fd.SetFilter(storage.NewExtensionFileFilter(imaging.SupportedExtensions))
	fd.Show()
}

func (w *MainWindow) handleDrop(_ fyne.Position, uris []fyne.URI) {
	for _, u := range uris {
		if imaging.IsSupported(u.Path()) {
			w.analyze(u.Path())
			return
		}
	}
	dialog.ShowInformation("Unsupported File",
		"Drop a JPEG, PNG, BMP, TIFF or WebP image.",
		w.window)
}

// analyze shows path and submits it, replacing any running analysis.
func (w *MainWindow) analyze(path string) {
	w.logger.Info("Image selected", "path", path)
	w.currentImage = path
	w.imageLabel.SetText(filepath.Base(path))
	w.clearResult()
	w.loadPreview(path)

	if w.bridge == nil {
		return
	}
	if err := w.bridge.AnalyzeImage(path); err != nil {
		w.logger.Error("Failed to start analysis", "error", err)
		dialog.ShowError(err, w.window)
	}
}

// loadPreview decodes the preview off the UI thread.
func (w *MainWindow) loadPreview(path string) {
	if w.previewer == nil {
		return
	}
	go func() {
		img, err := w.previewer.Preview(path, w.previewSize)
		w.dispatch(func() {
			if path != w.currentImage {
				return // another image was selected meanwhile
			}
			if err != nil {
				w.logger.Warn("Failed to load preview", "path", path, "error", err)
				w.setPreview(nil)
				return
			}
			w.setPreview(img)
		})
	}()
}

func (w *MainWindow) setPreview(img image.Image) {
	w.preview.Image = img
	w.preview.Refresh()
}

func (w *MainWindow) handleCancel() {
	if w.currentJob == "" || w.bridge == nil {
		return
	}
	if err := w.bridge.CancelJob(w.currentJob); err != nil {
		// Already finished; its outcome is on its way.
		w.logger.Debug("Cancel ignored", "job_id", w.currentJob, "error", err)
		return
	}
	w.statusLabel.SetText("Cancelling...")
	w.cancelBtn.Disable()
}

func (w *MainWindow) handleReloadModel() {
	if w.bridge == nil {
		return
	}
	w.reloadBtn.Disable()
	w.modelLabel.SetText("Model: loading...")
	go func() {
		// Result is reported through OnModelLoaded / OnModelLoadFailed.
		if err := w.bridge.ReloadModel(""); err != nil {
			w.logger.Warn("Model reload failed", "error", err)
		}
		w.dispatch(func() {
			w.reloadBtn.Enable()
		})
	}()
}

// Event callbacks, run on the UI thread

func (w *MainWindow) onJobSubmitted(jobID, imagePath string) {
	w.currentJob = jobID
	w.setBusy(true)
	w.statusLabel.SetText("Starting analysis...")
}

// isCurrent reports whether jobID is the job the window is showing.
// Outcomes of replaced jobs are dropped.
func (w *MainWindow) isCurrent(jobID string) bool {
	if jobID != w.currentJob {
		w.logger.Debug("Ignoring event from replaced job", "job_id", jobID)
		return false
	}
	return true
}

func (w *MainWindow) onJobProgress(jobID string, stage event.Stage) {
	if !w.isCurrent(jobID) {
		return
	}
	w.statusLabel.SetText(stage.Message())
}

func (w *MainWindow) onJobSucceeded(jobID string, result diagnosis.Result) {
	if !w.isCurrent(jobID) {
		return
	}
	w.setBusy(false)
	w.showResult(result)
	w.statusLabel.SetText("Analysis complete")
}

func (w *MainWindow) onJobFailed(jobID string, err *diagnosis.Error) {
	if !w.isCurrent(jobID) {
		return
	}
	w.setBusy(false)

	msg := "Classification failed"
	if err != nil {
		msg = err.UserMessage()
	}
	w.statusLabel.SetText(msg)
	dialog.ShowError(errors.New(msg), w.window)
}

func (w *MainWindow) onJobCancelled(jobID string) {
	if !w.isCurrent(jobID) {
		return
	}
	w.setBusy(false)
	w.statusLabel.SetText("Analysis cancelled")
}

func (w *MainWindow) onModelLoaded(name, path string) {
	w.modelLabel.SetText("Model: " + name)
	if !w.busy && w.currentImage == "" {
		w.statusLabel.SetText("Model ready. Select an image to analyze")
	}
}

func (w *MainWindow) onModelLoadFailed(err error) {
	msg := "Cannot load model"
	var de *diagnosis.Error
	if errors.As(err, &de) {
		msg = de.UserMessage()
	} else if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	w.modelLabel.SetText("Model: not loaded")
	if !w.busy {
		w.statusLabel.SetText(msg)
	}
}

// UI helpers

func (w *MainWindow) setBusy(busy bool) {
	w.busy = busy
	if busy {
		w.cancelBtn.Enable()
		w.activity.Show()
		w.activity.Start()
		return
	}
	w.cancelBtn.Disable()
	w.activity.Stop()
	w.activity.Hide()
}

func (w *MainWindow) clearResult() {
	w.diagnosisLabel.SetText("-")
	w.diagnosisLabel.Importance = widget.MediumImportance
	w.diagnosisLabel.Refresh()
	w.confidenceBar.SetValue(0)
	w.confidenceLabel.SetText("")
	w.resultCard.SetSubTitle("")
}

func (w *MainWindow) showResult(r diagnosis.Result) {
	w.diagnosisLabel.SetText(r.Label)
	w.diagnosisLabel.Importance = levelImportance(r.Level())
	w.diagnosisLabel.Refresh()
	w.confidenceBar.SetValue(r.Confidence / 100)
	w.confidenceLabel.SetText(fmt.Sprintf("%s confidence (%s)", levelTitle(r.Level()), r.FormatConfidence()))
	w.resultCard.SetSubTitle(findingText(r.Class))
}

// findingText summarizes a class for the result card subtitle.
func findingText(c diagnosis.Class) string {
	switch {
	case !c.IsKnown():
		return ""
	case c.IsMalignant():
		return "Carcinoma detected"
	default:
		return "No carcinoma detected"
	}
}

func levelImportance(l diagnosis.ConfidenceLevel) widget.Importance {
	switch l {
	case diagnosis.ConfidenceHigh:
		return widget.SuccessImportance
	case diagnosis.ConfidenceMedium:
		return widget.WarningImportance
	default:
		return widget.DangerImportance
	}
}

func levelTitle(l diagnosis.ConfidenceLevel) string {
	switch l {
	case diagnosis.ConfidenceHigh:
		return "High"
	case diagnosis.ConfidenceMedium:
		return "Medium"
	default:
		return "Low"
	}
}

// Show displays the main window.
func (w *MainWindow) Show() {
	w.window.Show()
}

// Cleanup cancels any running analysis and detaches from the bridge.
func (w *MainWindow) Cleanup() {
	w.cleanupOnce.Do(func() {
		w.logger.Info("Starting cleanup...")

		if w.bridge != nil {
			if err := w.bridge.CancelActiveJob(); err != nil {
				w.logger.Warn("Failed to cancel analysis", "error", err)
			}
			w.bridge.Close()
		}

		w.logger.Info("Cleanup completed")
	})
}

package event

// Stage identifies a step of the inference pipeline.
type Stage int

const (
	// StageValidating checks that the image exists and has a supported format.
	StageValidating Stage = iota
	// StageLoadingModel loads the model if it is not loaded yet.
	StageLoadingModel
	// StagePreprocessing decodes and normalizes the image.
	StagePreprocessing
	// StageClassifying runs the model.
	StageClassifying
	// StageCompleted is reported just before a successful result is delivered.
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageValidating:
		return "Validating"
	case StageLoadingModel:
		return "LoadingModel"
	case StagePreprocessing:
		return "Preprocessing"
	case StageClassifying:
		return "Classifying"
	case StageCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Message returns the status text shown to the user for the stage.
func (s Stage) Message() string {
	switch s {
	case StageValidating:
		return "Checking file..."
	case StageLoadingModel:
		return "Loading AI model..."
	case StagePreprocessing:
		return "Processing image..."
	case StageClassifying:
		return "Analyzing..."
	case StageCompleted:
		return "Done!"
	default:
		return ""
	}
}

// JobProgress is published when a job enters a stage.
type JobProgress struct {
	baseJobEvent
	Stage Stage
}

func NewJobProgress(jobID string, stage Stage) *JobProgress {
	return &JobProgress{
		baseJobEvent: baseJobEvent{jobID: jobID},
		Stage:        stage,
	}
}

func (e *JobProgress) EventName() string {
	return "JobProgress"
}

package command

// SubmitJob asks for the image at ImagePath to be classified.
// Any job still active is cancelled and replaced.
type SubmitJob struct {
	ImagePath string
}

func (c *SubmitJob) CommandName() string {
	return "SubmitJob"
}

// CancelJob cancels a specific job.
type CancelJob struct {
	baseJobCommand
}

func NewCancelJob(jobID string) *CancelJob {
	return &CancelJob{baseJobCommand{jobID: jobID}}
}

func (c *CancelJob) CommandName() string {
	return "CancelJob"
}

// CancelActiveJob cancels whichever job is active, if any.
type CancelActiveJob struct{}

func (c *CancelActiveJob) CommandName() string {
	return "CancelActiveJob"
}

// ReloadModel reloads the model. An empty Path reloads the current manifest.
type ReloadModel struct {
	Path string
}

func (c *ReloadModel) CommandName() string {
	return "ReloadModel"
}

package event

// ModelLoaded is published after a model is loaded or reloaded.
type ModelLoaded struct {
	Name string
	Path string
}

func (e *ModelLoaded) EventName() string {
	return "ModelLoaded"
}

// ModelLoadFailed is published when an explicit load or reload fails.
type ModelLoadFailed struct {
	Path  string
	Error error
}

func (e *ModelLoadFailed) EventName() string {
	return "ModelLoadFailed"
}

package diagnosis

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure in the classification pipeline.
type Kind int

const (
	// KindDecode means the image could not be read or is not a supported format.
	KindDecode Kind = iota + 1
	// KindModelLoad means the model artifact is missing or corrupt.
	KindModelLoad
	// KindInference means the model failed while classifying.
	KindInference
	// KindCancelled means the job was cancelled before completion.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "DecodeError"
	case KindModelLoad:
		return "ModelLoadError"
	case KindInference:
		return "InferenceError"
	case KindCancelled:
		return "CancellationError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrDecode    = &Error{Kind: KindDecode}
	ErrModelLoad = &Error{Kind: KindModelLoad}
	ErrInference = &Error{Kind: KindInference}
	ErrCancelled = &Error{Kind: KindCancelled}
)

// Error is a categorized pipeline failure.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "decode", "load_model".
	Op string
	// Path is the file involved, if any.
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += " [" + e.Op + "]"
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Path == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

// UserMessage returns the message shown to the user for this failure.
func (e *Error) UserMessage() string {
	var prefix string
	switch e.Kind {
	case KindDecode:
		prefix = "Cannot read image"
	case KindModelLoad:
		prefix = "Cannot load model"
	case KindInference:
		prefix = "Classification failed"
	case KindCancelled:
		return "Analysis cancelled"
	default:
		prefix = "Unexpected error"
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

// NewDecodeError wraps err as a DecodeError for path.
func NewDecodeError(op, path string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Path: path, Err: err}
}

// NewModelLoadError wraps err as a ModelLoadError for path.
func NewModelLoadError(op, path string, err error) *Error {
	return &Error{Kind: KindModelLoad, Op: op, Path: path, Err: err}
}

// NewInferenceError wraps err as an InferenceError.
func NewInferenceError(op string, err error) *Error {
	return &Error{Kind: KindInference, Op: op, Err: err}
}

// NewCancelledError records that a job was cancelled at the named checkpoint.
func NewCancelledError(checkpoint string) *Error {
	return &Error{Kind: KindCancelled, Op: checkpoint, Err: errors.New("cancelled")}
}

// AsError converts any error into an *Error. Errors that are not already
// categorized become InferenceErrors under op.
func AsError(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return NewInferenceError(op, err)
}

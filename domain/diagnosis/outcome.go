package diagnosis

// OutcomeKind tags the terminal outcome of a job.
type OutcomeKind int

const (
	// OutcomeSucceeded carries a Result.
	OutcomeSucceeded OutcomeKind = iota + 1
	// OutcomeFailed carries an Error.
	OutcomeFailed
	// OutcomeCancelled carries neither; any computed result was discarded.
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "Succeeded"
	case OutcomeFailed:
		return "Failed"
	case OutcomeCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Outcome is the single terminal outcome delivered for a job.
type Outcome struct {
	Kind   OutcomeKind
	Result Result
	Err    *Error
}

// Succeeded builds a success outcome.
func Succeeded(r Result) Outcome {
	return Outcome{Kind: OutcomeSucceeded, Result: r}
}

// Failed builds a failure outcome. A CancellationError becomes Cancelled.
func Failed(err *Error) Outcome {
	if err != nil && err.Kind == KindCancelled {
		return Cancelled()
	}
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// Cancelled builds a cancellation outcome.
func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

// Message returns a one-line description suitable for a status bar.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeSucceeded:
		return o.Result.String()
	case OutcomeFailed:
		if o.Err == nil {
			return "Classification failed"
		}
		return o.Err.UserMessage()
	case OutcomeCancelled:
		return "Analysis cancelled"
	default:
		return ""
	}
}

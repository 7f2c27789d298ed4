package inference

import (
	"context"
	"sync"

	"lungscan-go/domain/diagnosis"
)

// Handle is the caller's view of one submitted job. It resolves exactly once,
// when the job reaches a terminal state.
type Handle struct {
	id        string
	imagePath string

	once    sync.Once
	done    chan struct{}
	outcome diagnosis.Outcome
}

func newHandle(id, imagePath string) *Handle {
	return &Handle{
		id:        id,
		imagePath: imagePath,
		done:      make(chan struct{}),
	}
}

// ID returns the job ID.
func (h *Handle) ID() string {
	return h.id
}

// ImagePath returns the image the job was submitted for.
func (h *Handle) ImagePath() string {
	return h.imagePath
}

// Done returns a channel that is closed when the outcome is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the outcome without blocking. ok is false while the job
// is still pending or running.
func (h *Handle) Outcome() (outcome diagnosis.Outcome, ok bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return diagnosis.Outcome{}, false
	}
}

// Wait blocks until the job finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (diagnosis.Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return diagnosis.Outcome{}, ctx.Err()
	}
}

// resolve records the outcome. Later calls are ignored.
func (h *Handle) resolve(o diagnosis.Outcome) bool {
	resolved := false
	h.once.Do(func() {
		h.outcome = o
		close(h.done)
		resolved = true
	})
	return resolved
}

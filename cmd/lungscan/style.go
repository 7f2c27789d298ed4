package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"lungscan-go/domain/diagnosis"
)

var (
	colorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorDim  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
)

const (
	iconPass   = "✓"
	iconWarn   = "⚠"
	iconFail   = "✖"
	iconCancel = "○"
)

var (
	styleHigh   = lipgloss.NewStyle().Foreground(colorPass).Bold(true)
	styleMedium = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	styleLow    = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	styleError  = lipgloss.NewStyle().Foreground(colorFail)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
)

// levelStyle returns the style and icon for a confidence level.
func levelStyle(l diagnosis.ConfidenceLevel) (lipgloss.Style, string) {
	switch l {
	case diagnosis.ConfidenceHigh:
		return styleHigh, iconPass
	case diagnosis.ConfidenceMedium:
		return styleMedium, iconWarn
	default:
		return styleLow, iconWarn
	}
}

var frames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧"}

// spinner animates a status line on a terminal. On other writers it
// prints nothing.
type spinner struct {
	w     io.Writer
	mu    sync.Mutex
	msg   string
	done  chan struct{}
	wg    sync.WaitGroup
	isTTY bool
}

func startSpinner(w io.Writer, msg string) *spinner {
	s := &spinner{
		w:    w,
		msg:  msg,
		done: make(chan struct{}),
	}
	if f, ok := w.(*os.File); ok {
		s.isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if !s.isTTY {
		return s
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r\033[K%s %s", styleDim.Render(frames[i%len(frames)]), s.msg)
			s.mu.Unlock()
			select {
			case <-s.done:
				fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

// SetMessage replaces the text shown next to the spinner.
func (s *spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.msg = msg
	s.mu.Unlock()
}

// Stop stops the animation and clears the line.
func (s *spinner) Stop() {
	if !s.isTTY {
		return
	}
	close(s.done)
	s.wg.Wait()
}

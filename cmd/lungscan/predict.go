package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"lungscan-go/core/command"
	"lungscan-go/core/event"
	"lungscan-go/domain/diagnosis"
)

// predictResult is one line of predict --json output.
type predictResult struct {
	Image      string  `json:"image"`
	Status     string  `json:"status"`
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Level      string  `json:"level,omitempty"`
	Malignant  *bool   `json:"malignant,omitempty"`
	Error      string  `json:"error,omitempty"`
	ErrorKind  string  `json:"error_kind,omitempty"`
}

func newPredictResult(path string, o diagnosis.Outcome) predictResult {
	r := predictResult{Image: path}
	switch o.Kind {
	case diagnosis.OutcomeSucceeded:
		r.Status = "succeeded"
		r.Label = o.Result.Label
		r.Confidence = o.Result.Confidence
		r.Level = o.Result.Level().String()
		if o.Result.Class.IsKnown() {
			malignant := o.Result.Class.IsMalignant()
			r.Malignant = &malignant
		}
	case diagnosis.OutcomeFailed:
		r.Status = "failed"
		r.Error = o.Message()
		if o.Err != nil {
			r.ErrorKind = o.Err.Kind.String()
		}
	default:
		r.Status = "cancelled"
		r.Error = o.Message()
	}
	return r
}

func newPredictCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "predict <image>...",
		Short: "Classify images without opening a window",
		Long: `Classify one or more images with the configured model and print the
diagnosis and confidence for each. Images are processed one at a time.

Exits with status 1 if any image could not be classified.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := bootstrap(opts, stderr, false)
			if err != nil {
				return err
			}
			defer svc.Close()
			svc.coordinator.Start()

			p := &predictor{svc: svc, stdout: stdout, stderr: stderr, json: asJSON}
			return p.run(cmd.Context(), args)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per image")
	return cmd
}

type predictor struct {
	svc    *services
	stdout io.Writer
	stderr io.Writer
	json   bool
}

func (p *predictor) run(ctx context.Context, paths []string) error {
	failed := 0
	for _, path := range paths {
		o, err := p.classify(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(p.stderr, styleError.Render("interrupted"))
				return errExit
			}
			return err
		}
		if o.Kind != diagnosis.OutcomeSucceeded {
			failed++
		}
		if err := p.print(path, o); err != nil {
			return err
		}
	}
	if failed > 0 {
		return errExit
	}
	return nil
}

// classify runs one job and waits for its outcome. If ctx ends first the
// job is cancelled and ctx's error returned.
func (p *predictor) classify(ctx context.Context, path string) (diagnosis.Outcome, error) {
	name := filepath.Base(path)
	spin := startSpinner(p.stderr, name)
	defer spin.Stop()

	h, err := p.svc.coordinator.Submit(path)
	if err != nil {
		return diagnosis.Outcome{}, err
	}

	subID := p.svc.eventBus.SubscribeJob(h.ID(), func(e event.Event) {
		if evt, ok := e.(*event.JobProgress); ok {
			spin.SetMessage(name + ": " + evt.Stage.Message())
		}
	})
	defer p.svc.eventBus.Unsubscribe(subID)

	o, err := h.Wait(ctx)
	if err != nil {
		if cerr := p.svc.coordinator.Dispatch(command.NewCancelJob(h.ID())); cerr != nil {
			p.svc.logger.Debug("Cancel after interrupt ignored", "job_id", h.ID(), "error", cerr)
		}
		return diagnosis.Outcome{}, err
	}
	return o, nil
}

func (p *predictor) print(path string, o diagnosis.Outcome) error {
	if p.json {
		data, err := json.Marshal(newPredictResult(path, o))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.stdout, string(data))
		return err
	}

	var line string
	switch o.Kind {
	case diagnosis.OutcomeSucceeded:
		style, icon := levelStyle(o.Result.Level())
		line = fmt.Sprintf("%s %s: %s %s",
			style.Render(icon), path,
			style.Render(o.Result.Label),
			styleDim.Render(fmt.Sprintf("(%s, %s confidence)", o.Result.FormatConfidence(), o.Result.Level())))
	case diagnosis.OutcomeFailed:
		line = fmt.Sprintf("%s %s: %s", styleError.Render(iconFail), path, o.Message())
	default:
		line = fmt.Sprintf("%s %s: %s", styleDim.Render(iconCancel), path, o.Message())
	}
	_, err := fmt.Fprintln(p.stdout, line)
	return err
}

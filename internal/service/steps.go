package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"workshop/internal/metrics"
)

const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// step is one best-effort unit of work. Its error is recorded, never returned to the caller.
type step struct {
	name string
	run  func(ctx context.Context) error
}

type skipError struct {
	reason string
}

func (e *skipError) Error() string { return "skipped: " + e.reason }

// skip marks a step as intentionally not performed.
func skip(format string, args ...interface{}) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

// StepResult is the outcome of one best-effort step.
type StepResult struct {
	Name    string
	Err     error
	Skipped bool
	Reason  string
}

func (r StepResult) Outcome() string {
	switch {
	case r.Skipped:
		return OutcomeSkipped
	case r.Err != nil:
		return OutcomeFailed
	default:
		return OutcomeOK
	}
}

func (r StepResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Name    string `json:"name"`
		Outcome string `json:"outcome"`
		Reason  string `json:"reason,omitempty"`
		Error   string `json:"error,omitempty"`
	}{Name: r.Name, Outcome: r.Outcome(), Reason: r.Reason}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// runSteps executes steps in order. A failing or panicking step is logged and the
// next one still runs.
func runSteps(ctx context.Context, logger *zerolog.Logger, bookingID int64, steps ...step) []StepResult {
	results := make([]StepResult, 0, len(steps))
	for _, st := range steps {
		res := StepResult{Name: st.name}
		err := runStep(ctx, st)

		var skipped *skipError
		switch {
		case errors.As(err, &skipped):
			res.Skipped = true
			res.Reason = skipped.reason
			logger.Debug().Int64("booking_id", bookingID).Str("step", st.name).Str("reason", skipped.reason).Msg("propagation step skipped")
		case err != nil:
			res.Err = err
			logger.Warn().Err(err).Int64("booking_id", bookingID).Str("step", st.name).Msg("propagation step failed")
		}

		metrics.IncPropagationStep(st.name, res.Outcome())
		results = append(results, res)
	}
	return results
}

func runStep(ctx context.Context, st step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in step %s: %v", st.name, r)
		}
	}()
	return st.run(ctx)
}

package pipeline

import (
	"fmt"
	"strings"
	"time"

	"panel-extract/internal/logger"
)

// State is a step of one pipeline invocation.
type State string

const (
	StateLoaded         State = "Loaded"
	StateQualityChecked State = "QualityChecked"
	StateClassified     State = "Classified"
	StateDetecting      State = "Detecting"
	StateValidating     State = "Validating"
	StateRectified      State = "Rectified"
	StateRefined        State = "Refined"
	StateEnhanced       State = "Enhanced"
	StateReported       State = "Reported"
	StateFailed         State = "Failed"
)

// trail records and logs the states an invocation walks through.
type trail struct {
	log   *logger.Logger
	input string
	start time.Time
	steps []string
}

func newTrail(log *logger.Logger, input string) *trail {
	return &trail{log: log, input: input, start: time.Now()}
}

// enter moves to s. detail, when set, is shown in parentheses, as in
// Detecting(adaptive).
func (t *trail) enter(s State, detail string) {
	step := string(s)
	if detail != "" {
		step = fmt.Sprintf("%s(%s)", s, detail)
	}
	t.steps = append(t.steps, step)
	t.log.Debug("pipeline", "state", map[string]interface{}{
		"input":   t.input,
		"state":   step,
		"elapsed": time.Since(t.start).String(),
	})
}

// fail records the terminal failure and wraps err with the trail.
func (t *trail) fail(err error) error {
	t.enter(StateFailed, Reason(err))
	t.log.Error("pipeline", err, map[string]interface{}{
		"input":  t.input,
		"reason": Reason(err),
		"trail":  t.String(),
	})
	return &Error{Err: err, States: append([]string(nil), t.steps...)}
}

func (t *trail) String() string {
	return strings.Join(t.steps, " -> ")
}

package services

import (
	"context"

	"github.com/rs/zerolog"
)

// compensation collects undo actions for the persisted steps of a multi-step
// write. When a later step fails, run unwinds the completed steps in reverse
// order. Undo is best-effort: a failing undo leaves stored data inconsistent
// with the visible system state, so it is logged at error level with the
// irrecoverable marker for operators and never retried automatically.
type compensation struct {
	steps []compensationStep
}

type compensationStep struct {
	name string
	undo func(ctx context.Context) error
}

func (c *compensation) add(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, undo: undo})
}

func (c *compensation) run(ctx context.Context, logger zerolog.Logger) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			logger.Error().
				Err(err).
				Str("step", step.name).
				Bool("irrecoverable", true).
				Msg("compensation step failed, persisted data is inconsistent")
		}
	}
	c.steps = nil
}

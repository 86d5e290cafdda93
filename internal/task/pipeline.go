package task

import (
	"context"
	"fmt"
	"log/slog"
)

// pipelineStep is one stage of a multi-step task. Advisory steps degrade the
// result when they fail but never fail the task; a non-advisory (fatal) step
// aborts the pipeline with its error.
type pipelineStep struct {
	name     string
	advisory bool
	run      func(ctx context.Context) error
}

// runPipeline executes steps in order. An advisory failure is logged and the
// pipeline continues; the first fatal failure is returned wrapped with the
// step name. Having the fatal/advisory asymmetry in one place keeps the
// per-step error policy out of the steps themselves.
func runPipeline(ctx context.Context, logger *slog.Logger, steps []pipelineStep) error {
	for _, s := range steps {
		err := s.run(ctx)
		if err == nil {
			continue
		}

		if s.advisory {
			logger.Warn("advisory step failed, continuing",
				"step", s.name,
				"error", err)
			continue
		}

		return fmt.Errorf("step %s: %w", s.name, err)
	}
	return nil
}

package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyChain is returned when composing zero stages.
	ErrEmptyChain = errors.New("stage chain is empty")
	// ErrFormatMismatch is returned when adjacent stages do not agree on a format.
	ErrFormatMismatch = errors.New("stage format mismatch")
)

// Chain applies its stages in order. It is itself a Stage so chains nest.
type Chain struct {
	stages []Stage
}

// Compose builds a chain that runs stages left to right, the equivalent of
// applying the last stage to the result of the one before it and so on. The
// first stage must accept raw source and the chain must end in a format the
// bundler can consume.
func Compose(stages ...Stage) (*Chain, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyChain
	}

	if !stages[0].Accepts(FormatSource) {
		return nil, fmt.Errorf("%w: %s does not accept %s", ErrFormatMismatch, stages[0].Name(), FormatSource)
	}

	for i := 1; i < len(stages); i++ {
		prev, next := stages[i-1], stages[i]
		if !next.Accepts(prev.Produces()) {
			return nil, fmt.Errorf("%w: %s produces %s which %s does not accept",
				ErrFormatMismatch, prev.Name(), prev.Produces(), next.Name())
		}
	}

	last := stages[len(stages)-1]
	if !last.Produces().Terminal() {
		return nil, fmt.Errorf("%w: chain ends in %s", ErrFormatMismatch, last.Produces())
	}

	return &Chain{stages: stages}, nil
}

func (c *Chain) Name() string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return strings.Join(names, " -> ")
}

func (c *Chain) Accepts(f Format) bool {
	return c.stages[0].Accepts(f)
}

func (c *Chain) Produces() Format {
	return c.stages[len(c.stages)-1].Produces()
}

// Stages returns the stages in execution order.
func (c *Chain) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// Transform runs every stage in order. The first failure stops the chain and
// is returned as an *Error naming the stage.
func (c *Chain) Transform(ctx context.Context, a *Artifact) (*Artifact, error) {
	cur := a
	for _, s := range c.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := s.Transform(ctx, cur)
		if err != nil {
			var stageErr *Error
			if errors.As(err, &stageErr) {
				return nil, err
			}
			return nil, &Error{Stage: s.Name(), Path: a.Path, Err: err}
		}
		cur = next
	}
	return cur, nil
}

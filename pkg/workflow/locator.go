package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/catalogsync/pkg/browser"
)

// Strategy is one way of achieving a step's goal, typically a locator.
type Strategy struct {
	Name    string
	Attempt func(ctx context.Context) error
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// Outcome is the tagged result of Resolve: the strategy that succeeded, or
// the combined failure when none did.
type Outcome struct {
	Strategy string
	Attempts []Attempt
	Err      error
}

// OK reports whether a strategy succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Resolve tries strategies in order and stops at the first success. It
// also stops early when the session is gone or ctx is done, since later
// strategies cannot succeed either.
func Resolve(ctx context.Context, strategies []Strategy) Outcome {
	var out Outcome
	if len(strategies) == 0 {
		out.Err = errors.New("no strategies configured")
		return out
	}

	var last error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}

		err := s.Attempt(ctx)
		out.Attempts = append(out.Attempts, Attempt{Strategy: s.Name, Err: err})
		if err == nil {
			out.Strategy = s.Name
			return out
		}
		if !errors.Is(err, errNotApplicable) {
			last = err
		}
		if errors.Is(err, browser.ErrNotRunning) {
			out.Err = err
			return out
		}
	}

	if last == nil {
		last = errNotApplicable
	}
	out.Err = fmt.Errorf("all %d strategies failed: %w", len(strategies), last)
	return out
}

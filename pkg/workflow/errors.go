package workflow

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the search yields no result rows for an item.
var ErrNotFound = errors.New("record not found in search results")

// errNotApplicable marks a strategy whose precondition does not hold.
var errNotApplicable = errors.New("strategy not applicable")

// StepError attributes a failure to one step of the per-item procedure.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

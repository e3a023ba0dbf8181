package repair

import "github.com/ShayCichocki/dagforge/pkg/models"

// Controller tracks repair iterations and decides when the loop stops.
//
// The loop stops when an attempt reaches zero errors, when an attempt fails
// to reduce the error count, or when the iteration budget is spent.
type Controller struct {
	// currentIter is the number of fix attempts started.
	currentIter int
	// maxIter is the caller's iteration budget.
	maxIter int
	// lastErrors is the error count of the current baseline.
	lastErrors int
	// outcome is set once a stop condition has been observed.
	outcome Outcome
}

// NewController creates a controller for a run whose initial specification
// has initialErrors errors.
func NewController(maxIter, initialErrors int) *Controller {
	c := &Controller{maxIter: maxIter, lastErrors: initialErrors}
	if initialErrors == 0 {
		c.outcome = OutcomeConverged
	}
	return c
}

// Next starts the next attempt and returns true, or returns false if the
// loop must stop.
func (c *Controller) Next() bool {
	if c.outcome != "" || c.currentIter >= c.maxIter {
		return false
	}
	c.currentIter++
	return true
}

// Observe records the error count of the latest candidate. The candidate
// becomes the new baseline whatever its classification.
func (c *Controller) Observe(errorCount int) (reduction int, status models.IterationStatus) {
	reduction = c.lastErrors - errorCount
	status = models.StatusForReduction(reduction)
	c.lastErrors = errorCount

	switch {
	case errorCount == 0:
		c.outcome = OutcomeConverged
	case reduction <= 0:
		c.outcome = OutcomeStalled
	}
	return reduction, status
}

// Abort stops the loop with OutcomeAborted.
func (c *Controller) Abort() {
	c.outcome = OutcomeAborted
}

// Outcome returns the terminal outcome. A loop that ran out of iterations
// without another stop condition is exhausted.
func (c *Controller) Outcome() Outcome {
	if c.outcome == "" && c.currentIter >= c.maxIter {
		return OutcomeExhausted
	}
	return c.outcome
}

// Iteration returns the current iteration number.
func (c *Controller) Iteration() int {
	return c.currentIter
}

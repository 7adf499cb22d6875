package batch

import "time"

// Outcome is the result of one unit in a batch. Exactly one of Value and Err
// is meaningful.
type Outcome struct {
	TaskID   string
	Value    any
	Err      error
	Duration time.Duration
}

// OK reports whether the unit succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result describes a finished batch.
type Result struct {
	ID        string
	Seq       int64
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Size returns the number of units in the batch.
func (r Result) Size() int {
	return len(r.Outcomes)
}

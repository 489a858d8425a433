package ledger

import "time"

// #region run
// Run is one invocation of a runner over a grid.
type Run struct {
	RunID      string
	Algorithm  string
	Regime     string
	ParamsJSON string
	Planned    int // grid size at start
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
	Counts     Counts
}

// Counts tallies terminal states.
type Counts struct {
	Written int
	Skipped int
	Failed  int
}

// Total returns the number of experiments that reached a terminal state.
func (c Counts) Total() int { return c.Written + c.Skipped + c.Failed }
// #endregion run

// #region experiment
// Experiment records the terminal state of one grid cell within a run.
type Experiment struct {
	RunID      string
	Descriptor string // grid.Descriptor.Key()
	InputPath  string
	OutputPath string
	State      string // "written" | "skipped" | "failed"
	Reason     string
	Variables  int
	Rows       int
	Edges      int
	Duration   time.Duration
	CreatedAt  time.Time
}
// #endregion experiment

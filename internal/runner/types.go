package runner

import (
	"time"

	"github.com/danielpatrickdp/pagbench/internal/grid"
	"github.com/danielpatrickdp/pagbench/internal/ledger"
)

// #region state
// State is the lifecycle position of one experiment.
type State string

const (
	StatePending  State = "pending"
	StateLoaded   State = "loaded"
	StateInferred State = "inferred"
	StateWritten  State = "written"
	StateSkipped  State = "skipped"
	StateFailed   State = "failed"
	StatePlanned  State = "planned" // dry-run only: input exists
)

// Terminal reports whether s ends an experiment.
func (s State) Terminal() bool {
	switch s {
	case StateWritten, StateSkipped, StateFailed, StatePlanned:
		return true
	}
	return false
}
// #endregion state

// #region outcome
// Outcome is the terminal result of processing one descriptor.
type Outcome struct {
	Descriptor grid.Descriptor
	State      State
	InputPath  string
	OutputPath string
	Err        error // set when State is skipped or failed

	Rows    int
	Columns int
	Edges   int
	Elapsed time.Duration
}

// Summary tallies outcomes of a run.
type Summary struct {
	Written int
	Skipped int
	Failed  int
	Planned int
	Elapsed time.Duration
}

// Total returns the number of experiments that reached a terminal state.
func (s Summary) Total() int { return s.Written + s.Skipped + s.Failed + s.Planned }

// Counts converts the summary to the ledger's run tallies.
func (s Summary) Counts() ledger.Counts {
	return ledger.Counts{Written: s.Written, Skipped: s.Skipped, Failed: s.Failed}
}

// Summarize computes aggregate counts from outcomes.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.State {
		case StateWritten:
			s.Written++
		case StateSkipped:
			s.Skipped++
		case StateFailed:
			s.Failed++
		case StatePlanned:
			s.Planned++
		}
	}
	return s
}
// #endregion outcome

// Package runner drives a grid of experiments through locate, load, infer
// and write. A failure in one experiment never stops the others.
package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/pagbench/internal/dataset"
	"github.com/danielpatrickdp/pagbench/internal/discovery"
	"github.com/danielpatrickdp/pagbench/internal/grid"
	"github.com/danielpatrickdp/pagbench/internal/ledger"
	"github.com/danielpatrickdp/pagbench/internal/locate"
	"github.com/danielpatrickdp/pagbench/internal/logging"
	"github.com/danielpatrickdp/pagbench/internal/pag"
)

// #region config
// Recorder persists terminal outcomes. *ledger.Store satisfies it.
type Recorder interface {
	RecordExperiment(e ledger.Experiment) error
}

// Config wires a Runner. Backend may be nil in dry-run mode.
type Config struct {
	Locator  *locate.Locator
	Backend  discovery.Backend
	Request  discovery.Request
	Write    pag.WriteOptions
	Recorder Recorder // optional
	RunID    string   // ledger run id, required when Recorder is set
	Logger   *slog.Logger
	Workers  int
	DryRun   bool
}

// Runner processes descriptors. It is safe for concurrent use.
type Runner struct {
	cfg Config
	log *slog.Logger
}

// New validates cfg and returns a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Locator == nil {
		return nil, errors.New("runner: locator is required")
	}
	if cfg.Backend == nil && !cfg.DryRun {
		return nil, errors.New("runner: backend is required")
	}
	if err := cfg.Request.Validate(); err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	if cfg.Recorder != nil && cfg.RunID == "" {
		return nil, errors.New("runner: recorder needs a run id")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{cfg: cfg, log: log}, nil
}
// #endregion config

// #region run
// Run processes every descriptor yielded by seq with at most Workers in
// flight. Outcomes come back in enumeration order. When ctx is cancelled no
// new experiments are scheduled and ctx.Err() is returned with the outcomes
// gathered so far.
func (r *Runner) Run(ctx context.Context, seq iter.Seq[grid.Descriptor]) (Summary, []Outcome, error) {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	// Slots are appended only here; workers write through their own pointer.
	var slots []*Outcome
	for d := range seq {
		if ctx.Err() != nil {
			break
		}
		slot := &Outcome{Descriptor: d, State: StatePending}
		slots = append(slots, slot)
		g.Go(func() error {
			*slot = r.Process(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]Outcome, 0, len(slots))
	for _, s := range slots {
		if s.State.Terminal() {
			outcomes = append(outcomes, *s)
		}
	}
	summary := Summarize(outcomes)
	summary.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		return summary, outcomes, err
	}
	return summary, outcomes, nil
}
// #endregion run

// #region process
// Process runs one experiment to a terminal state and logs exactly one line
// for it: a warning when skipped, an error when failed, info otherwise.
func (r *Runner) Process(ctx context.Context, d grid.Descriptor) Outcome {
	start := time.Now()
	o := Outcome{Descriptor: d, State: StatePending}

	finish := func() Outcome {
		o.Elapsed = time.Since(start)
		r.report(o)
		r.record(o)
		return o
	}
	fail := func(err error) Outcome {
		o.State = StateFailed
		o.Err = err
		return finish()
	}

	in, err := r.cfg.Locator.ResolveInput(d)
	if err != nil {
		return fail(err)
	}
	out, err := r.cfg.Locator.ResolveOutput(d)
	if err != nil {
		return fail(err)
	}
	o.InputPath, o.OutputPath = in, out

	if r.cfg.DryRun {
		if _, err := os.Stat(in); err != nil {
			o.State = StateSkipped
			o.Err = fmt.Errorf("%w: %s", dataset.ErrInputNotFound, in)
			return finish()
		}
		o.State = StatePlanned
		return finish()
	}

	ds, err := dataset.Load(in)
	if errors.Is(err, dataset.ErrInputNotFound) {
		o.State = StateSkipped
		o.Err = err
		return finish()
	}
	if err != nil {
		return fail(err)
	}
	o.State = StateLoaded
	o.Rows, o.Columns = ds.NumRows(), ds.NumCols()
	if ds.NumRows() != d.SampleSize {
		r.log.Debug("row count differs from sample size",
			"experiment", d.String(), "rows", ds.NumRows(), "sample_size", d.SampleSize)
	}

	m, err := r.cfg.Backend.Infer(ctx, ds, r.cfg.Request)
	if err != nil {
		return fail(err)
	}
	o.State = StateInferred
	o.Edges = m.EdgeCount()

	if err := pag.Write(m, out, r.cfg.Write); err != nil {
		return fail(err)
	}
	o.State = StateWritten
	return finish()
}

func (r *Runner) report(o Outcome) {
	switch o.State {
	case StateSkipped:
		r.log.Warn("input not found, skipping",
			"experiment", o.Descriptor.String(), "path", o.InputPath)
	case StateFailed:
		r.log.Error("experiment failed",
			"experiment", o.Descriptor.String(), "input", o.InputPath, "err", o.Err)
	case StatePlanned:
		r.log.Info("would process",
			"experiment", o.Descriptor.String(), "input", o.InputPath, "output", o.OutputPath)
	case StateWritten:
		r.log.Info("wrote PAG",
			"experiment", o.Descriptor.String(), "output", o.OutputPath,
			"variables", o.Columns, "edges", o.Edges, "elapsed", o.Elapsed.Round(time.Millisecond))
	}
}

func (r *Runner) record(o Outcome) {
	if r.cfg.Recorder == nil || r.cfg.DryRun {
		return
	}
	e := ledger.Experiment{
		RunID:      r.cfg.RunID,
		Descriptor: o.Descriptor.Key(),
		InputPath:  o.InputPath,
		OutputPath: o.OutputPath,
		State:      string(o.State),
		Variables:  o.Columns,
		Rows:       o.Rows,
		Edges:      o.Edges,
		Duration:   o.Elapsed,
	}
	if o.Err != nil {
		e.Reason = o.Err.Error()
	}
	if err := r.cfg.Recorder.RecordExperiment(e); err != nil {
		r.log.Debug("ledger record failed", "experiment", o.Descriptor.String(), "err", err)
	}
}
// #endregion process

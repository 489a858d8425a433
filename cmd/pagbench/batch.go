package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/pagbench/internal/config"
	"github.com/danielpatrickdp/pagbench/internal/discovery"
	"github.com/danielpatrickdp/pagbench/internal/grid"
	"github.com/danielpatrickdp/pagbench/internal/ledger"
	"github.com/danielpatrickdp/pagbench/internal/locate"
	"github.com/danielpatrickdp/pagbench/internal/pag"
	"github.com/danielpatrickdp/pagbench/internal/runner"
)

const readyTimeout = 10 * time.Second

// batch is one resolved invocation: a grid, where its files live and how
// the backend is configured.
type batch struct {
	regime  string
	axes    grid.Axes
	locator *locate.Locator
	request discovery.Request
	write   pag.WriteOptions
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
}

// #region run-batch

// runBatch checks the configuration and the backend, then drives the whole
// grid. Per-experiment failures are reported in the summary, not returned.
func (a *app) runBatch(ctx context.Context, b batch) error {
	if err := b.axes.Validate(); err != nil {
		return invalid(err)
	}
	if err := b.request.Validate(); err != nil {
		return invalid(err)
	}
	s := a.settings

	var backend discovery.Backend
	if !s.DryRun {
		be, err := a.newBackend(s)
		if err != nil {
			return fmt.Errorf("connect discovery backend: %w", err)
		}
		defer be.Close()

		readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err = be.Ready(readyCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("discovery backend at %s is not ready: %w", s.BackendAddr, err)
		}
		backend = be
	}

	cfg := runner.Config{
		Locator: b.locator,
		Backend: backend,
		Request: b.request,
		Write:   b.write,
		Logger:  a.log,
		Workers: s.Workers,
		DryRun:  s.DryRun,
	}

	var store *ledger.Store
	if s.LedgerPath != "" && !s.DryRun {
		st, err := ledger.NewStore(s.LedgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer st.Close()

		params, err := json.Marshal(b.request)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		run, err := st.BeginRun(ledger.Run{
			Algorithm:  string(b.request.Algorithm),
			Regime:     b.regime,
			ParamsJSON: string(params),
			Planned:    b.axes.Count(),
		})
		if err != nil {
			return fmt.Errorf("begin run: %w", err)
		}
		store = st
		cfg.Recorder = st
		cfg.RunID = run.RunID
	}

	r, err := runner.New(cfg)
	if err != nil {
		return invalid(err)
	}

	a.log.Info("starting run",
		"algorithm", b.request.Algorithm, "regime", b.regime,
		"experiments", b.axes.Count(), "workers", s.Workers, "run_id", cfg.RunID, "dry_run", s.DryRun)

	summary, _, runErr := r.Run(ctx, b.axes.Enumerate())

	if store != nil {
		if err := store.FinishRun(cfg.RunID, summary.Counts()); err != nil {
			a.log.Error("finish run in ledger", "run_id", cfg.RunID, "err", err)
		}
	}
	a.printSummary(b, cfg.RunID, summary)
	return runErr
}

func (a *app) printSummary(b batch, runID string, s runner.Summary) {
	label := b.locator.Algorithm()
	if b.regime != "" {
		label += " " + b.regime
	}
	if a.settings.DryRun {
		fmt.Fprintf(a.stdout, "%s dry run: %d present, %d missing of %d planned\n",
			label, s.Planned, s.Skipped, b.axes.Count())
		return
	}
	fmt.Fprintf(a.stdout, "%s: %d of %d experiments done: %d written, %d skipped, %d failed in %s\n",
		label, s.Total(), b.axes.Count(), s.Written, s.Skipped, s.Failed, s.Elapsed.Round(time.Millisecond))
	if runID != "" {
		fmt.Fprintf(a.stdout, "run %s\n", runID)
	}
}

// #endregion run-batch

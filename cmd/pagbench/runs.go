package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/pagbench/internal/ledger"
)

// #region runs

type runsFlags struct {
	last    int
	runID   string
	jsonOut bool
}

func newRunsCmd(a *app) *cobra.Command {
	var f runsFlags
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.settings.LedgerPath == "" {
				return invalid(fmt.Errorf("no ledger configured"))
			}
			store, err := ledger.NewStore(a.settings.LedgerPath)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			if f.runID != "" {
				return runDetailMode(a.stdout, store, f.runID, f.jsonOut)
			}
			return runListMode(a.stdout, store, f.last, f.jsonOut)
		},
	}
	cmd.Flags().IntVar(&f.last, "last", 20, "show N most recent runs")
	cmd.Flags().StringVar(&f.runID, "run", "", "show one run with its experiments")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion runs

// #region list-mode

type runRow struct {
	RunID     string `json:"run_id"`
	Algorithm string `json:"algorithm"`
	Regime    string `json:"regime,omitempty"`
	Planned   int    `json:"planned"`
	Written   int    `json:"written"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	StartedAt string `json:"started_at"`
	Finished  bool   `json:"finished"`
}

func toRunRow(r ledger.Run) runRow {
	return runRow{
		RunID:     r.RunID,
		Algorithm: r.Algorithm,
		Regime:    r.Regime,
		Planned:   r.Planned,
		Written:   r.Counts.Written,
		Skipped:   r.Counts.Skipped,
		Failed:    r.Counts.Failed,
		StartedAt: r.StartedAt.Format(time.RFC3339),
		Finished:  !r.FinishedAt.IsZero(),
	}
}

func runListMode(w io.Writer, store *ledger.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	rows := make([]runRow, len(runs))
	for i, r := range runs {
		rows[i] = toRunRow(r)
	}
	if jsonOut {
		return printJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no runs found")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-5s  %-10s  %7s  %7s  %7s  %6s  %s\n",
		"Run", "Algo", "Regime", "Planned", "Written", "Skipped", "Failed", "Started")
	for _, r := range rows {
		started := r.StartedAt
		if !r.Finished {
			started += " (running)"
		}
		fmt.Fprintf(w, "%-8s  %-5s  %-10s  %7d  %7d  %7d  %6d  %s\n",
			shortID(r.RunID), r.Algorithm, orDash(r.Regime), r.Planned, r.Written, r.Skipped, r.Failed, started)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type experimentRow struct {
	Descriptor string `json:"descriptor"`
	State      string `json:"state"`
	Output     string `json:"output,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Variables  int    `json:"variables"`
	Edges      int    `json:"edges"`
	DurationMS int64  `json:"duration_ms"`
}

type detailOutput struct {
	Run         runRow          `json:"run"`
	Params      json.RawMessage `json:"params,omitempty"`
	Experiments []experimentRow `json:"experiments"`
}

func runDetailMode(w io.Writer, store *ledger.Store, runID string, jsonOut bool) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	exps, err := store.Experiments(runID)
	if err != nil {
		return err
	}

	out := detailOutput{Run: toRunRow(run), Experiments: make([]experimentRow, len(exps))}
	if json.Valid([]byte(run.ParamsJSON)) {
		out.Params = json.RawMessage(run.ParamsJSON)
	}
	for i, e := range exps {
		out.Experiments[i] = experimentRow{
			Descriptor: e.Descriptor,
			State:      e.State,
			Output:     e.OutputPath,
			Reason:     e.Reason,
			Variables:  e.Variables,
			Edges:      e.Edges,
			DurationMS: e.Duration.Milliseconds(),
		}
	}
	if jsonOut {
		return printJSON(w, out)
	}

	r := out.Run
	fmt.Fprintf(w, "Run:        %s\n", r.RunID)
	fmt.Fprintf(w, "Algorithm:  %s %s\n", r.Algorithm, r.Regime)
	fmt.Fprintf(w, "Started:    %s\n", r.StartedAt)
	fmt.Fprintf(w, "Counts:     %d written, %d skipped, %d failed of %d planned\n",
		r.Written, r.Skipped, r.Failed, r.Planned)
	if len(out.Params) > 0 {
		fmt.Fprintf(w, "Params:     %s\n", out.Params)
	}
	fmt.Fprintln(w)
	for _, e := range out.Experiments {
		detail := e.Output
		if e.Reason != "" {
			detail = e.Reason
		}
		fmt.Fprintf(w, "%-8s  %-40s  %s\n", e.State, e.Descriptor, detail)
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion helpers

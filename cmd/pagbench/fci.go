package main

import (
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/pagbench/internal/discovery"
	"github.com/danielpatrickdp/pagbench/internal/grid"
	"github.com/danielpatrickdp/pagbench/internal/locate"
	"github.com/danielpatrickdp/pagbench/internal/pag"
)

// #region fci

type fciFlags struct {
	name        string
	sampleSizes []int
	repIdx      int
	pathInput   string
	pathOutput  string
	latents     []string
}

func newFCICmd(a *app) *cobra.Command {
	var f fciFlags
	cmd := &cobra.Command{
		Use:   "fci",
		Short: "Run FCI for one model and replication across sample sizes and latent levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFCI(cmd, f)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", "", "model name (e.g. Alarm)")
	fs.IntSliceVar(&f.sampleSizes, "sample_sizes", nil, "comma-separated sample sizes")
	fs.IntVar(&f.repIdx, "rep_idx", 0, "replication id")
	fs.StringVar(&f.pathInput, "path_input", "", "input data root")
	fs.StringVar(&f.pathOutput, "path_output", "", "output root")
	fs.StringSliceVar(&f.latents, "latents", nil, "latent levels (default from the fci profile)")
	for _, name := range []string{"name", "sample_sizes", "rep_idx", "path_input", "path_output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) runFCI(cmd *cobra.Command, f fciFlags) error {
	profile := a.profiles.FCI
	latents := f.latents
	if len(latents) == 0 {
		latents = profile.Latents
	}

	loc, err := locate.Single(string(discovery.FCI), f.pathInput, f.pathOutput)
	if err != nil {
		return invalid(err)
	}
	return a.runBatch(cmd.Context(), batch{
		regime: "",
		axes: grid.Axes{
			Models:      []string{f.name},
			SampleSizes: f.sampleSizes,
			Latents:     latents,
			Reps:        []int{f.repIdx},
		},
		locator: loc,
		request: profile.Request(),
		write:   pag.WriteOptions{Labels: profile.LabelOutput},
	})
}

// #endregion fci

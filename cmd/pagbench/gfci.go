package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/pagbench/internal/config"
	"github.com/danielpatrickdp/pagbench/internal/discovery"
	"github.com/danielpatrickdp/pagbench/internal/locate"
	"github.com/danielpatrickdp/pagbench/internal/pag"
)

// #region gfci

func newGFCICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gfci <regime>",
		Short: "Run GFCI over the full grid of one data-generating regime (linear or nonlinear)",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: usage: pagbench gfci <regime>, got %d arguments",
					config.ErrInvalidConfiguration, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGFCI(cmd, args[0])
		},
	}
}

func (a *app) runGFCI(cmd *cobra.Command, regime string) error {
	profile := a.profiles.GFCI
	rp, err := profile.Regime(regime)
	if err != nil {
		return err
	}
	loc, err := locate.New(string(discovery.GFCI), map[string]locate.Roots{regime: rp.Roots()})
	if err != nil {
		return invalid(err)
	}
	return a.runBatch(cmd.Context(), batch{
		regime:  regime,
		axes:    profile.Axes(regime),
		locator: loc,
		request: rp.Request(),
		write:   pag.WriteOptions{Labels: profile.LabelOutput},
	})
}

// #endregion gfci

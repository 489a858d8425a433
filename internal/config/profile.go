package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/pagbench/internal/discovery"
	"github.com/danielpatrickdp/pagbench/internal/grid"
	"github.com/danielpatrickdp/pagbench/internal/locate"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// #region profile-types
// Profiles is the parsed profile file.
type Profiles struct {
	FCI  FCIProfile  `yaml:"fci"`
	GFCI GFCIProfile `yaml:"gfci"`
}

// FCIProfile holds the FCI defaults. Model, sample sizes, replication and
// roots come from the command line.
type FCIProfile struct {
	Latents     []string            `yaml:"latents"`
	LabelOutput bool                `yaml:"label_output"`
	Params      discovery.FCIParams `yaml:"params"`
}

// GFCIProfile holds the full GFCI grid and one parameter set per regime.
type GFCIProfile struct {
	Models       []string                 `yaml:"models"`
	SampleSizes  []int                    `yaml:"sample_sizes"`
	Degrees      []string                 `yaml:"degrees"`
	Latents      []string                 `yaml:"latents"`
	Replications int                      `yaml:"replications"`
	LabelOutput  bool                     `yaml:"label_output"`
	Regimes      map[string]RegimeProfile `yaml:"regimes"`
}

// RegimeProfile is one data-generating regime: where its data lives and how
// GFCI is configured for it.
type RegimeProfile struct {
	InputRoot  string               `yaml:"input_root"`
	OutputRoot string               `yaml:"output_root"`
	Params     discovery.GFCIParams `yaml:"params"`
}
// #endregion profile-types

// #region load
// DefaultProfiles returns the built-in profiles.
func DefaultProfiles() (*Profiles, error) {
	return ParseProfiles(defaultProfiles)
}

// LoadProfiles reads profiles from path, or the built-in set when path is
// empty.
func LoadProfiles(path string) (*Profiles, error) {
	if path == "" {
		return DefaultProfiles()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read profiles %s: %v", ErrInvalidConfiguration, path, err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes and validates a profile document.
func ParseProfiles(data []byte) (*Profiles, error) {
	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parse profiles: %v", ErrInvalidConfiguration, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profiles) validate() error {
	if err := p.FCI.Request().Validate(); err != nil {
		return fmt.Errorf("%w: fci profile: %v", ErrInvalidConfiguration, err)
	}
	if len(p.FCI.Latents) == 0 {
		return fmt.Errorf("%w: fci profile: no latent levels", ErrInvalidConfiguration)
	}
	if len(p.GFCI.Regimes) == 0 {
		return fmt.Errorf("%w: gfci profile: no regimes", ErrInvalidConfiguration)
	}
	for name, r := range p.GFCI.Regimes {
		if err := r.Request().Validate(); err != nil {
			return fmt.Errorf("%w: gfci regime %q: %v", ErrInvalidConfiguration, name, err)
		}
	}
	return nil
}
// #endregion load

// #region fci
// Request returns the discovery request for FCI.
func (f FCIProfile) Request() discovery.Request {
	params := f.Params
	return discovery.Request{Algorithm: discovery.FCI, FCI: &params}
}
// #endregion fci

// #region gfci
// Request returns the discovery request for the regime.
func (r RegimeProfile) Request() discovery.Request {
	params := r.Params
	return discovery.Request{Algorithm: discovery.GFCI, GFCI: &params}
}

// RegimeNames lists the configured regimes in sorted order.
func (g GFCIProfile) RegimeNames() []string {
	names := make([]string, 0, len(g.Regimes))
	for n := range g.Regimes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Regime looks up a regime by its command-line literal.
func (g GFCIProfile) Regime(name string) (RegimeProfile, error) {
	r, ok := g.Regimes[name]
	if !ok {
		return RegimeProfile{}, fmt.Errorf("%w: unknown data type %q, must be one of %v",
			ErrInvalidConfiguration, name, g.RegimeNames())
	}
	return r, nil
}

// Axes returns the grid for one regime.
func (g GFCIProfile) Axes(regime string) grid.Axes {
	return grid.Axes{
		Regimes:     []string{regime},
		Models:      g.Models,
		Degrees:     g.Degrees,
		SampleSizes: g.SampleSizes,
		Latents:     g.Latents,
		Reps:        grid.RepRange(g.Replications),
	}
}

// Roots returns the locator roots for one regime.
func (r RegimeProfile) Roots() locate.Roots {
	return locate.Roots{Input: r.InputRoot, Output: r.OutputRoot}
}
// #endregion gfci

// Package locate maps experiment descriptors to input and output file paths.
package locate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/danielpatrickdp/pagbench/internal/grid"
)

// ErrUnknownRegime is returned when a descriptor names a regime with no roots.
var ErrUnknownRegime = errors.New("no roots configured for regime")

// #region types
// Roots are the input and output directories of one data-generating regime.
type Roots struct {
	Input  string
	Output string
}

// Locator resolves paths for a single algorithm. Resolution is a pure
// function of the descriptor and the configured roots.
type Locator struct {
	algo  string
	roots map[string]Roots
}
// #endregion types

// #region constructor
// New builds a locator for algo. roots is keyed by regime; use the empty key
// for runs without a regime axis. Two regimes may not share an output root,
// otherwise their outputs would collide.
func New(algo string, roots map[string]Roots) (*Locator, error) {
	if algo == "" {
		return nil, errors.New("locator: empty algorithm tag")
	}
	if len(roots) == 0 {
		return nil, errors.New("locator: no roots configured")
	}
	byOutput := make(map[string]string, len(roots))
	cp := make(map[string]Roots, len(roots))
	for regime, r := range roots {
		if r.Input == "" || r.Output == "" {
			return nil, fmt.Errorf("locator: regime %q needs both input and output roots", regime)
		}
		out := filepath.Clean(r.Output)
		if other, ok := byOutput[out]; ok {
			return nil, fmt.Errorf("locator: regimes %q and %q share output root %s", other, regime, out)
		}
		byOutput[out] = regime
		cp[regime] = Roots{Input: filepath.Clean(r.Input), Output: out}
	}
	return &Locator{algo: algo, roots: cp}, nil
}

// Single is shorthand for a locator without a regime axis.
func Single(algo, inputRoot, outputRoot string) (*Locator, error) {
	return New(algo, map[string]Roots{"": {Input: inputRoot, Output: outputRoot}})
}
// #endregion constructor

// #region resolve
// ResolveInput returns {input}/{model}/[{degree}/]{n}/input_{latent}_{rep}.csv.
func (l *Locator) ResolveInput(d grid.Descriptor) (string, error) {
	r, ok := l.roots[d.Regime]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegime, d.Regime)
	}
	name := fmt.Sprintf("input_%s_%d.csv", d.Latent, d.Rep)
	return filepath.Join(cellDir(r.Input, d), name), nil
}

// ResolveOutput returns {output}/{model}/[{degree}/]{n}/adj_{ALGO}_{latent}_{rep}.csv.
func (l *Locator) ResolveOutput(d grid.Descriptor) (string, error) {
	r, ok := l.roots[d.Regime]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegime, d.Regime)
	}
	name := fmt.Sprintf("adj_%s_%s_%d.csv", l.algo, d.Latent, d.Rep)
	return filepath.Join(cellDir(r.Output, d), name), nil
}

// Algorithm returns the tag used in output file names.
func (l *Locator) Algorithm() string {
	return l.algo
}

func cellDir(root string, d grid.Descriptor) string {
	parts := []string{root, d.Model}
	if d.Degree != "" {
		parts = append(parts, d.Degree)
	}
	parts = append(parts, strconv.Itoa(d.SampleSize))
	return filepath.Join(parts...)
}
// #endregion resolve

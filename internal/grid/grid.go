package grid

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrInvalidAxes is returned by Validate for an unusable axis configuration.
var ErrInvalidAxes = errors.New("invalid grid axes")

// #region enumerate
// Enumerate yields every descriptor of the grid lazily, in nested order
// Regime > Model > Degree > SampleSize > Latent > Rep with the outer axes
// varying slowest. Nothing is filtered here; missing inputs are handled by
// the driver so the full experiment count stays knowable.
func (a Axes) Enumerate() iter.Seq[Descriptor] {
	regimes := optional(a.Regimes)
	degrees := optional(a.Degrees)

	return func(yield func(Descriptor) bool) {
		for _, regime := range regimes {
			for _, model := range a.Models {
				for _, degree := range degrees {
					for _, n := range a.SampleSizes {
						for _, latent := range a.Latents {
							for _, rep := range a.Reps {
								d := Descriptor{
									Regime:     regime,
									Model:      model,
									Degree:     degree,
									SampleSize: n,
									Latent:     latent,
									Rep:        rep,
								}
								if !yield(d) {
									return
								}
							}
						}
					}
				}
			}
		}
	}
}

// Count returns the number of descriptors Enumerate will yield.
func (a Axes) Count() int {
	return len(optional(a.Regimes)) * len(a.Models) * len(optional(a.Degrees)) *
		len(a.SampleSizes) * len(a.Latents) * len(a.Reps)
}

func optional(values []string) []string {
	if len(values) == 0 {
		return []string{""}
	}
	return values
}
// #endregion enumerate

// #region validate
// Validate checks that every required axis is populated and that labels are
// safe to use as path segments. Path-safe labels are what keeps output paths
// collision-free.
func (a Axes) Validate() error {
	if len(a.Models) == 0 {
		return fmt.Errorf("%w: no models", ErrInvalidAxes)
	}
	if len(a.SampleSizes) == 0 {
		return fmt.Errorf("%w: no sample sizes", ErrInvalidAxes)
	}
	if len(a.Latents) == 0 {
		return fmt.Errorf("%w: no latent levels", ErrInvalidAxes)
	}
	if len(a.Reps) == 0 {
		return fmt.Errorf("%w: no replications", ErrInvalidAxes)
	}

	labelled := []struct {
		axis   string
		values []string
	}{
		{"regime", a.Regimes},
		{"model", a.Models},
		{"degree", a.Degrees},
		{"latent", a.Latents},
	}
	for _, l := range labelled {
		seen := make(map[string]bool, len(l.values))
		for _, v := range l.values {
			if err := checkLabel(v); err != nil {
				return fmt.Errorf("%w: %s %q: %v", ErrInvalidAxes, l.axis, v, err)
			}
			if seen[v] {
				return fmt.Errorf("%w: duplicate %s %q", ErrInvalidAxes, l.axis, v)
			}
			seen[v] = true
		}
	}

	seenN := make(map[int]bool, len(a.SampleSizes))
	for _, n := range a.SampleSizes {
		if n <= 0 {
			return fmt.Errorf("%w: sample size %d must be positive", ErrInvalidAxes, n)
		}
		if seenN[n] {
			return fmt.Errorf("%w: duplicate sample size %d", ErrInvalidAxes, n)
		}
		seenN[n] = true
	}

	seenRep := make(map[int]bool, len(a.Reps))
	for _, r := range a.Reps {
		if r < 1 {
			return fmt.Errorf("%w: replication id %d must be >= 1", ErrInvalidAxes, r)
		}
		if seenRep[r] {
			return fmt.Errorf("%w: duplicate replication id %d", ErrInvalidAxes, r)
		}
		seenRep[r] = true
	}
	return nil
}

func checkLabel(v string) error {
	switch {
	case strings.TrimSpace(v) == "":
		return errors.New("empty label")
	case v == "." || v == "..":
		return errors.New("relative path element")
	case strings.ContainsAny(v, `/\`):
		return errors.New("contains a path separator")
	}
	return nil
}
// #endregion validate

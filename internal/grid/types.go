package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// #region descriptor
// Descriptor identifies one experimental condition. It is a plain value and
// is never mutated after enumeration.
type Descriptor struct {
	Regime     string // data-generating regime, empty when the run has a single regime
	Model      string
	Degree     string // graph degree, empty when the layout has no degree level
	SampleSize int
	Latent     string // latent-confounder level, e.g. "10L"
	Rep        int
}

// Key returns a canonical string that is unique per descriptor.
func (d Descriptor) Key() string {
	parts := []string{d.Regime, d.Model, d.Degree, strconv.Itoa(d.SampleSize), d.Latent, strconv.Itoa(d.Rep)}
	return strings.Join(parts, "|")
}

func (d Descriptor) String() string {
	var b strings.Builder
	if d.Regime != "" {
		fmt.Fprintf(&b, "%s/", d.Regime)
	}
	b.WriteString(d.Model)
	if d.Degree != "" {
		fmt.Fprintf(&b, " deg=%s", d.Degree)
	}
	fmt.Fprintf(&b, " n=%d lv=%s rep=%d", d.SampleSize, d.Latent, d.Rep)
	return b.String()
}
// #endregion descriptor

// #region axes
// Axes holds the value sets of every experimental axis. Regimes and Degrees
// are optional: an empty slice means the axis is absent.
type Axes struct {
	Regimes     []string
	Models      []string
	Degrees     []string
	SampleSizes []int
	Latents     []string
	Reps        []int
}

// RepRange returns the replication ids 1..n.
func RepRange(n int) []int {
	reps := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		reps = append(reps, i)
	}
	return reps
}
// #endregion axes

package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/pagbench/internal/dataset"
	"github.com/danielpatrickdp/pagbench/internal/pag"
)

// ErrBackend wraps every failure of Backend.Infer, including rejected
// requests, so callers can treat them as one per-experiment error class.
var ErrBackend = errors.New("discovery backend error")

// #region backend
// Backend infers a PAG adjacency matrix from a numeric dataset. Search
// algorithms, independence tests and scores live behind it.
type Backend interface {
	// Ready performs the one-time startup check. It must succeed before any
	// experiment is scheduled.
	Ready(ctx context.Context) error
	Infer(ctx context.Context, ds *dataset.Dataset, req Request) (*pag.Matrix, error)
	Close() error
}
// #endregion backend

// #region algorithm
// Algorithm selects the search procedure.
type Algorithm string

const (
	FCI  Algorithm = "FCI"
	GFCI Algorithm = "GFCI"
)

// IndependenceTest names a conditional independence test.
type IndependenceTest string

const (
	TestGSq                IndependenceTest = "gsq"
	TestChiSq              IndependenceTest = "chisq"
	TestFisherZ            IndependenceTest = "fisherz"
	TestKCI                IndependenceTest = "kci"
	TestMVFisherZ          IndependenceTest = "mv_fisherz"
	TestFisherZGFCI        IndependenceTest = "fisher_z"
	TestDegenerateGaussian IndependenceTest = "degenerate_gaussian"
)

// Score names a scoring function for GFCI.
type Score string

const (
	ScoreSEMBIC           Score = "sem_bic"
	ScoreBasisFunctionBIC Score = "basis_function_bic"
)
// #endregion algorithm

// #region params
// FCIParams configure a constraint-based FCI search.
type FCIParams struct {
	IndependenceTest IndependenceTest `yaml:"independence_test" json:"independence_test"`
	Alpha            float64          `yaml:"alpha" json:"alpha"`
}

// GFCIParams configure a GFCI search. TruncationLimit only applies to the
// basis-function BIC score.
type GFCIParams struct {
	IndependenceTest  IndependenceTest `yaml:"independence_test" json:"independence_test"`
	Score             Score            `yaml:"score" json:"score"`
	Depth             int              `yaml:"depth" json:"depth"`
	MaxDiscPathLength int              `yaml:"max_disc_path_length" json:"max_disc_path_length"`
	TestAlpha         float64          `yaml:"test_alpha" json:"test_alpha"`
	PenaltyDiscount   float64          `yaml:"score_penalty_discount" json:"score_penalty_discount"`
	TruncationLimit   int              `yaml:"score_truncation_limit" json:"score_truncation_limit"`
	Verbose           bool             `yaml:"verbose" json:"verbose"`
}

// Request is the algorithm variant plus its parameters. Exactly the params
// matching Algorithm must be set.
type Request struct {
	Algorithm Algorithm   `json:"algorithm"`
	FCI       *FCIParams  `json:"fci,omitempty"`
	GFCI      *GFCIParams `json:"gfci,omitempty"`
}
// #endregion params

// #region validate
var fciTests = map[IndependenceTest]bool{
	TestGSq: true, TestChiSq: true, TestFisherZ: true, TestFisherZGFCI: true, TestKCI: true, TestMVFisherZ: true,
}

// fciWireName maps the Tetrad-style spelling to the causal-learn name the FCI
// side expects.
func fciWireName(t IndependenceTest) string {
	if t == TestFisherZGFCI {
		return string(TestFisherZ)
	}
	return string(t)
}

var gfciTests = map[IndependenceTest]bool{
	TestFisherZGFCI: true, TestDegenerateGaussian: true,
}

// Validate checks the request against the recognised options of its variant.
func (r Request) Validate() error {
	switch r.Algorithm {
	case FCI:
		if r.FCI == nil || r.GFCI != nil {
			return errors.New("FCI request needs FCI params only")
		}
		return r.FCI.validate()
	case GFCI:
		if r.GFCI == nil || r.FCI != nil {
			return errors.New("GFCI request needs GFCI params only")
		}
		return r.GFCI.validate()
	default:
		return fmt.Errorf("unknown algorithm %q", r.Algorithm)
	}
}

func (p *FCIParams) validate() error {
	if !fciTests[p.IndependenceTest] {
		return fmt.Errorf("FCI: unsupported independence test %q", p.IndependenceTest)
	}
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("FCI: alpha %v must be in (0,1)", p.Alpha)
	}
	return nil
}

func (p *GFCIParams) validate() error {
	if !gfciTests[p.IndependenceTest] {
		return fmt.Errorf("GFCI: unsupported independence test %q", p.IndependenceTest)
	}
	if p.Depth < 0 {
		return fmt.Errorf("GFCI: depth %d must be >= 0", p.Depth)
	}
	if p.MaxDiscPathLength < 0 {
		return fmt.Errorf("GFCI: max discriminating path length %d must be >= 0", p.MaxDiscPathLength)
	}
	if p.TestAlpha <= 0 || p.TestAlpha >= 1 {
		return fmt.Errorf("GFCI: test alpha %v must be in (0,1)", p.TestAlpha)
	}
	if p.PenaltyDiscount <= 0 {
		return fmt.Errorf("GFCI: penalty discount %v must be positive", p.PenaltyDiscount)
	}
	switch p.Score {
	case ScoreSEMBIC:
		if p.TruncationLimit != 0 {
			return errors.New("GFCI: truncation limit only applies to basis_function_bic")
		}
	case ScoreBasisFunctionBIC:
		if p.TruncationLimit < 1 {
			return fmt.Errorf("GFCI: truncation limit %d must be >= 1", p.TruncationLimit)
		}
	default:
		return fmt.Errorf("GFCI: unsupported score %q", p.Score)
	}
	return nil
}
// #endregion validate

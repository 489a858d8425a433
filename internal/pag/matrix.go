// Package pag holds partial ancestral graph adjacency matrices and their CSV
// form.
package pag

import (
	"errors"
	"fmt"
)

// ErrShape is returned for matrices that are not square or whose labels do
// not match their size.
var ErrShape = errors.New("malformed adjacency matrix")

// #region matrix
// Matrix is an N×N table of edge marks indexed by variable name on both
// axes. Mark values are defined by the backend that produced them.
type Matrix struct {
	Labels []string
	Marks  [][]int
}

// New returns a zero matrix (no edges) over labels.
func New(labels []string) *Matrix {
	marks := make([][]int, len(labels))
	for i := range marks {
		marks[i] = make([]int, len(labels))
	}
	return &Matrix{Labels: append([]string(nil), labels...), Marks: marks}
}

// Size returns N.
func (m *Matrix) Size() int { return len(m.Labels) }

// Validate checks that the matrix is square, labelled once per row and that
// labels are unique.
func (m *Matrix) Validate() error {
	n := len(m.Labels)
	if len(m.Marks) != n {
		return fmt.Errorf("%w: %d labels but %d rows", ErrShape, n, len(m.Marks))
	}
	for i, row := range m.Marks {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), n)
		}
	}
	seen := make(map[string]bool, n)
	for _, l := range m.Labels {
		if seen[l] {
			return fmt.Errorf("%w: duplicate label %q", ErrShape, l)
		}
		seen[l] = true
	}
	return nil
}

// Equal reports whether m and o have the same labels and marks.
func (m *Matrix) Equal(o *Matrix) bool {
	if len(m.Labels) != len(o.Labels) || len(m.Marks) != len(o.Marks) {
		return false
	}
	for i := range m.Labels {
		if m.Labels[i] != o.Labels[i] {
			return false
		}
	}
	for i := range m.Marks {
		if len(m.Marks[i]) != len(o.Marks[i]) {
			return false
		}
		for j := range m.Marks[i] {
			if m.Marks[i][j] != o.Marks[i][j] {
				return false
			}
		}
	}
	return true
}

// EdgeCount counts unordered variable pairs with any mark in either direction.
func (m *Matrix) EdgeCount() int {
	count := 0
	for i := range m.Marks {
		for j := i + 1; j < len(m.Marks[i]); j++ {
			if m.Marks[i][j] != 0 || m.Marks[j][i] != 0 {
				count++
			}
		}
	}
	return count
}
// #endregion matrix

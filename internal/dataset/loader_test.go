package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// #region helpers
func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

// #endregion helpers

// #region headerless-tests
func TestLoad_HeaderlessNumeric(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("0.5,-1.25,3\n")
	}
	ds, err := Load(writeCSV(t, b.String()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(ds.Columns, []string{"0", "1", "2"}) {
		t.Errorf("expected positional columns, got %v", ds.Columns)
	}
	if ds.NumRows() != 10 {
		t.Errorf("expected 10 rows, got %d", ds.NumRows())
	}
	if ds.Headered {
		t.Error("expected Headered=false")
	}
	if ds.Encodings != nil {
		t.Errorf("expected no encodings, got %v", ds.Encodings)
	}
	if ds.Rows[3][1] != -1.25 {
		t.Errorf("expected raw value -1.25, got %f", ds.Rows[3][1])
	}
}

func TestLoad_HeaderlessWithTextLaterIsMalformed(t *testing.T) {
	_, err := Load(writeCSV(t, "1,2\n3,x\n"))
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

// #endregion headerless-tests

// #region headered-tests
func TestLoad_HeaderedIsLabelEncoded(t *testing.T) {
	content := "Smoker,Cancer,Age\nyes,no,40\nno,no,35\nyes,yes,40\nno,yes,61\n"
	ds, err := Load(writeCSV(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ds.Headered {
		t.Error("expected Headered=true")
	}
	if !slices.Equal(ds.Columns, []string{"Smoker", "Cancer", "Age"}) {
		t.Errorf("unexpected columns %v", ds.Columns)
	}
	if len(ds.Encodings) != 3 {
		t.Fatalf("expected 3 encodings, got %d", len(ds.Encodings))
	}

	// every column lands in a contiguous range 0..k-1
	for j, enc := range ds.Encodings {
		seen := map[float64]bool{}
		for _, row := range ds.Rows {
			seen[row[j]] = true
		}
		for k := 0; k < len(enc.Classes); k++ {
			if !seen[float64(k)] {
				t.Errorf("column %s: code %d unused", enc.Column, k)
			}
		}
		if len(seen) != len(enc.Classes) {
			t.Errorf("column %s: expected %d codes, got %d", enc.Column, len(enc.Classes), len(seen))
		}
	}

	// lexical for strings, numeric for numbers
	if !slices.Equal(ds.Encodings[0].Classes, []string{"no", "yes"}) {
		t.Errorf("unexpected smoker classes %v", ds.Encodings[0].Classes)
	}
	if !slices.Equal(ds.Encodings[2].Classes, []string{"35", "40", "61"}) {
		t.Errorf("unexpected age classes %v", ds.Encodings[2].Classes)
	}
	if ds.Rows[0][0] != 1 || ds.Rows[1][0] != 0 {
		t.Errorf("unexpected smoker codes %v %v", ds.Rows[0][0], ds.Rows[1][0])
	}
}

func TestLoad_EncodingIsFileLocal(t *testing.T) {
	a, err := Load(writeCSV(t, "X\nb\nc\n"))
	if err != nil {
		t.Fatalf("Load a: %v", err)
	}
	b, err := Load(writeCSV(t, "X\na\nb\n"))
	if err != nil {
		t.Fatalf("Load b: %v", err)
	}
	// "b" is 0 in the first file and 1 in the second
	if a.Rows[0][0] != 0 || b.Rows[1][0] != 1 {
		t.Errorf("expected independent encodings, got %v and %v", a.Rows, b.Rows)
	}
}

func TestLoad_DuplicateHeaderNames(t *testing.T) {
	ds, err := Load(writeCSV(t, "A,A,B,A\n1,2,3,4\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(ds.Columns, []string{"A", "A.1", "B", "A.2"}) {
		t.Errorf("unexpected columns %v", ds.Columns)
	}
}

func TestLoad_HeaderOnly(t *testing.T) {
	_, err := Load(writeCSV(t, "A,B\n"))
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

// #endregion headered-tests

// #region error-tests
func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound, got %v", err)
	}
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(writeCSV(t, ""))
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestLoad_Ragged(t *testing.T) {
	_, err := Load(writeCSV(t, "1,2,3\n4,5\n"))
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

// #endregion error-tests

// #region encode-tests
func TestLabelEncode_NumericOrder(t *testing.T) {
	codes, enc := LabelEncode("v", []string{"10", "9", "100", "9"})
	if !slices.Equal(enc.Classes, []string{"9", "10", "100"}) {
		t.Errorf("expected numeric order, got %v", enc.Classes)
	}
	if !slices.Equal(codes, []float64{1, 0, 2, 0}) {
		t.Errorf("unexpected codes %v", codes)
	}
	if c, ok := enc.Code("100"); !ok || c != 2 {
		t.Errorf("Code(100) = %d, %v", c, ok)
	}
	if _, ok := enc.Code("7"); ok {
		t.Error("expected unknown value to miss")
	}
}

func TestLabelEncode_NaNIsStable(t *testing.T) {
	values := []string{"NaN", "2", "nan", "1", "NaN", "1.0", "-3"}
	want := []string{"-3", "1", "1.0", "2", "NaN", "nan"}
	for i := 0; i < 50; i++ {
		_, enc := LabelEncode("v", values)
		if !slices.Equal(enc.Classes, want) {
			t.Fatalf("attempt %d: expected %v, got %v", i, want, enc.Classes)
		}
	}
}

// #endregion encode-tests

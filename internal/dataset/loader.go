// Package dataset reads simulated datasets and turns them into numeric tables.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// #region load
// Load reads the CSV at path.
//
// A headerless numeric parse is tried first. If the first cell of the first
// row is not a float, the first row is taken as a header and every column is
// label encoded. A headerless file whose first cell happens to be a
// non-numeric sentinel is misread as headered; that heuristic is kept as is.
func Load(path string) (*Dataset, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformedInput, path)
	}

	if _, err := parseCell(records[0][0]); err == nil {
		return parseHeaderless(path, records)
	}
	return parseHeadered(path, records)
}

func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, path, err)
	}
	return records, nil
}

func parseCell(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
// #endregion load

// #region headerless
func parseHeaderless(path string, records [][]string) (*Dataset, error) {
	cols := len(records[0])
	columns := make([]string, cols)
	for i := range columns {
		columns[i] = strconv.Itoa(i)
	}

	rows := make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, cols)
		for j, cell := range rec {
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: %s row %d col %d: %q is not numeric", ErrMalformedInput, path, i+1, j, cell)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return &Dataset{Path: path, Columns: columns, Rows: rows}, nil
}
// #endregion headerless

// #region headered
func parseHeadered(path string, records [][]string) (*Dataset, error) {
	columns := dedupeHeader(records[0])
	body := records[1:]
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s has a header but no rows", ErrMalformedInput, path)
	}

	rows := make([][]float64, len(body))
	for i := range rows {
		rows[i] = make([]float64, len(columns))
	}
	encodings := make([]Encoding, len(columns))
	raw := make([]string, len(body))
	for j, name := range columns {
		for i, rec := range body {
			raw[i] = strings.TrimSpace(rec[j])
		}
		codes, enc := LabelEncode(name, raw)
		for i, c := range codes {
			rows[i][j] = c
		}
		encodings[j] = enc
	}

	return &Dataset{
		Path:      path,
		Columns:   columns,
		Rows:      rows,
		Headered:  true,
		Encodings: encodings,
	}, nil
}

// dedupeHeader suffixes repeated names as name.1, name.2, ...
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		name := h
		for k := 1; used[name]; k++ {
			name = fmt.Sprintf("%s.%d", h, k)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
// #endregion headered

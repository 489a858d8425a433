package pag

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// #region write-options
// WriteOptions controls the CSV layout. With Labels the first row is an
// empty cell followed by the variable names and every row starts with its
// variable name.
type WriteOptions struct {
	Labels bool
}
// #endregion write-options

// #region write
// Write stores m at path, creating parent directories as needed and replacing
// any existing file. The file is written to a temporary sibling and renamed so
// readers never observe a partial matrix.
func Write(m *Matrix, path string, opts WriteOptions) error {
	if err := m.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := writeRecords(w, m, opts); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func writeRecords(w *csv.Writer, m *Matrix, opts WriteOptions) error {
	width := m.Size()
	if opts.Labels {
		width++
		header := make([]string, 0, width)
		header = append(header, "")
		header = append(header, m.Labels...)
		if err := w.Write(header); err != nil {
			return err
		}
	}

	rec := make([]string, 0, width)
	for i, row := range m.Marks {
		rec = rec[:0]
		if opts.Labels {
			rec = append(rec, m.Labels[i])
		}
		for _, v := range row {
			rec = append(rec, strconv.Itoa(v))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
// #endregion write

// #region read
// Read loads a matrix written by Write. Unlabelled files get positional
// labels "0".."n-1".
func Read(path string, labeled bool) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrShape, path)
	}

	var labels []string
	offset := 0
	if labeled {
		if len(records[0]) < 2 {
			return nil, fmt.Errorf("%w: %s has no labels", ErrShape, path)
		}
		labels = records[0][1:]
		records = records[1:]
		offset = 1
		if len(records) != len(labels) {
			return nil, fmt.Errorf("%w: %d labels but %d rows", ErrShape, len(labels), len(records))
		}
	} else {
		labels = make([]string, len(records))
		for i := range labels {
			labels[i] = strconv.Itoa(i)
		}
	}

	m := &Matrix{Labels: labels, Marks: make([][]int, len(records))}
	for i, rec := range records {
		if labeled && rec[0] != labels[i] {
			return nil, fmt.Errorf("%w: row %d labelled %q, want %q", ErrShape, i, rec[0], labels[i])
		}
		row := make([]int, len(rec)-offset)
		for j, cell := range rec[offset:] {
			v, err := parseMark(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d col %d: %v", ErrShape, i, j, err)
			}
			row[j] = v
		}
		m.Marks[i] = row
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseMark accepts integers and integral floats ("2.0"), which some
// dataframe exporters emit.
func parseMark(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, errors.New("non-integral edge mark " + s)
	}
	return int(f), nil
}
// #endregion read

package dataset

import "errors"

// #region errors
var (
	// ErrInputNotFound means the dataset file does not exist. The driver
	// treats it as a skip, not a failure.
	ErrInputNotFound = errors.New("input not found")

	// ErrMalformedInput covers empty files, ragged rows and unparseable cells.
	ErrMalformedInput = errors.New("malformed input")
)
// #endregion errors

// #region dataset
// Dataset is a numeric table ready for a discovery backend. Rows are
// row-major and every row has len(Columns) values.
type Dataset struct {
	Path     string
	Columns  []string
	Rows     [][]float64
	Headered bool

	// Encodings holds one entry per column when the file had a header and was
	// label encoded; nil for headerless numeric files.
	Encodings []Encoding
}

// NumRows returns the number of observations.
func (d *Dataset) NumRows() int { return len(d.Rows) }

// NumCols returns the number of variables.
func (d *Dataset) NumCols() int { return len(d.Columns) }
// #endregion dataset

// #region encoding
// Encoding is a file-local bijection between the raw values of one column and
// the integers 0..len(Classes)-1. Classes[i] is encoded as i.
type Encoding struct {
	Column  string
	Classes []string
}

// Code returns the integer assigned to raw.
func (e Encoding) Code(raw string) (int, bool) {
	for i, c := range e.Classes {
		if c == raw {
			return i, true
		}
	}
	return 0, false
}
// #endregion encoding

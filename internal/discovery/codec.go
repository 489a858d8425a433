package discovery

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/pagbench/internal/dataset"
	"github.com/danielpatrickdp/pagbench/internal/pag"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region encode-request
// encodeRequest builds the InferPAG request message. The table travels as
// base64 little-endian float64 values in row-major order under "data";
// "rows" and "cols" give its shape.
func encodeRequest(ds *dataset.Dataset, req Request) (*structpb.Struct, error) {
	columns := make([]any, len(ds.Columns))
	for i, c := range ds.Columns {
		columns[i] = c
	}
	return structpb.NewStruct(map[string]any{
		"algorithm": string(req.Algorithm),
		"params":    paramsMap(req),
		"columns":   columns,
		"rows":      ds.NumRows(),
		"cols":      ds.NumCols(),
		"data":      encodeTable(ds.Rows, ds.NumCols()),
	})
}

func paramsMap(req Request) map[string]any {
	switch req.Algorithm {
	case FCI:
		return map[string]any{
			"independence_test": fciWireName(req.FCI.IndependenceTest),
			"alpha":             req.FCI.Alpha,
		}
	case GFCI:
		p := req.GFCI
		m := map[string]any{
			"independence_test":      string(p.IndependenceTest),
			"score":                  string(p.Score),
			"depth":                  p.Depth,
			"max_disc_path_length":   p.MaxDiscPathLength,
			"test_alpha":             p.TestAlpha,
			"score_penalty_discount": p.PenaltyDiscount,
			"verbose":                p.Verbose,
		}
		if p.Score == ScoreBasisFunctionBIC {
			m["score_truncation_limit"] = p.TruncationLimit
		}
		return m
	}
	return map[string]any{}
}

func encodeTable(rows [][]float64, cols int) []byte {
	buf := make([]byte, len(rows)*cols*8)
	off := 0
	for _, row := range rows {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
			off += 8
		}
	}
	return buf
}

// #endregion encode-request

// #region decode-reply
// decodeMatrix turns an InferPAG reply into a matrix labelled with the
// dataset's columns. The reply must carry an N×N "graph" of integral
// numbers; if it also carries "labels" they must match the columns.
func decodeMatrix(reply *structpb.Struct, columns []string) (*pag.Matrix, error) {
	if reply == nil {
		return nil, errors.New("empty reply")
	}
	graph := reply.GetFields()["graph"].GetListValue()
	if graph == nil {
		return nil, errors.New("reply has no graph")
	}
	n := len(columns)
	rows := graph.GetValues()
	if len(rows) != n {
		return nil, fmt.Errorf("graph has %d rows for %d variables", len(rows), n)
	}

	if labels := reply.GetFields()["labels"].GetListValue(); labels != nil {
		vals := labels.GetValues()
		if len(vals) != n {
			return nil, fmt.Errorf("reply has %d labels for %d variables", len(vals), n)
		}
		for i, v := range vals {
			if v.GetStringValue() != columns[i] {
				return nil, fmt.Errorf("label %d is %q, want %q", i, v.GetStringValue(), columns[i])
			}
		}
	}

	m := pag.New(columns)
	for i, rv := range rows {
		cells := rv.GetListValue().GetValues()
		if len(cells) != n {
			return nil, fmt.Errorf("graph row %d has %d entries, want %d", i, len(cells), n)
		}
		for j, cv := range cells {
			num, ok := cv.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return nil, fmt.Errorf("graph[%d][%d] is not a number", i, j)
			}
			f := num.NumberValue
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("graph[%d][%d] = %v is not an edge mark", i, j, f)
			}
			m.Marks[i][j] = int(f)
		}
	}
	return m, nil
}
// #endregion decode-reply

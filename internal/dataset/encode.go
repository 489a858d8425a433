package dataset

import (
	"math"
	"sort"
	"strconv"
)

// #region label-encode
// LabelEncode maps each distinct value of values to an integer. Classes are
// sorted numerically when every value parses as a float and lexically
// otherwise, so the same column always gets the same codes.
func LabelEncode(column string, values []string) ([]float64, Encoding) {
	unique := make(map[string]struct{}, len(values))
	for _, v := range values {
		unique[v] = struct{}{}
	}
	classes := make([]string, 0, len(unique))
	for v := range unique {
		classes = append(classes, v)
	}
	sortClasses(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(index[v])
	}
	return out, Encoding{Column: column, Classes: classes}
}

func sortClasses(classes []string) {
	sort.Strings(classes)
	nums := make(map[string]float64, len(classes))
	for _, c := range classes {
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return
		}
		nums[c] = f
	}
	// NaN sorts after every number so the order is total.
	sort.SliceStable(classes, func(i, j int) bool {
		a, b := nums[classes[i]], nums[classes[j]]
		aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
		switch {
		case aNaN || bNaN:
			return !aNaN && bNaN
		case a != b:
			return a < b
		}
		return false
	})
}
// #endregion label-encode

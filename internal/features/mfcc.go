package features

import "math"

// powerToDB converts power to decibels relative to 1.0, flooring at amin and
// clipping everything more than topDB below the loudest value.
func powerToDB(s [][]float64, amin, topDB float64) [][]float64 {
	maxDB := math.Inf(-1)
	out := make([][]float64, len(s))
	for t, frame := range s {
		row := make([]float64, len(frame))
		for i, v := range frame {
			db := 10 * math.Log10(math.Max(amin, v))
			row[i] = db
			maxDB = math.Max(maxDB, db)
		}
		out[t] = row
	}

	if topDB > 0 {
		floor := maxDB - topDB
		for _, row := range out {
			for i, v := range row {
				row[i] = math.Max(v, floor)
			}
		}
	}
	return out
}

// dctMatrix returns the first k rows of the orthonormal DCT-II basis of size n.
func dctMatrix(k, n int) [][]float64 {
	basis := make([][]float64, k)
	for i := range basis {
		scale := math.Sqrt(2 / float64(n))
		if i == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		row := make([]float64, n)
		for j := range row {
			row[j] = scale * math.Cos(math.Pi*float64(i)*(2*float64(j)+1)/(2*float64(n)))
		}
		basis[i] = row
	}
	return basis
}

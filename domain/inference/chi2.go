package inference

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ChiSquareResult holds the independence test with its effect size.
type ChiSquareResult struct {
	Chi2        float64
	P           float64
	DoF         int
	CramersV    float64
	MinExpected float64
}

// ChiSquare runs Pearson's chi-squared test of independence on tab.
func ChiSquare(tab *Contingency) (ChiSquareResult, error) {
	r := len(tab.RowNames)
	c := len(tab.ColNames)
	if r < 2 || c < 2 {
		return ChiSquareResult{}, fmt.Errorf("chi2: table must be at least 2x2, got %dx%d", r, c)
	}

	rowTotal := make([]float64, r)
	colTotal := make([]float64, c)
	var n float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := float64(tab.Counts[i][j])
			rowTotal[i] += v
			colTotal[j] += v
			n += v
		}
	}
	if n == 0 {
		return ChiSquareResult{}, fmt.Errorf("chi2: empty table")
	}

	var chi2 float64
	minExpected := math.Inf(1)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			expected := rowTotal[i] * colTotal[j] / n
			if expected == 0 {
				return ChiSquareResult{}, fmt.Errorf("chi2: zero expected count at %s/%s", tab.RowNames[i], tab.ColNames[j])
			}
			if expected < minExpected {
				minExpected = expected
			}
			d := float64(tab.Counts[i][j]) - expected
			chi2 += d * d / expected
		}
	}

	dof := (r - 1) * (c - 1)
	chi := distuv.ChiSquared{K: float64(dof)}
	minDim := float64(min(r-1, c-1))
	return ChiSquareResult{
		Chi2:        chi2,
		P:           chi.Survival(chi2),
		DoF:         dof,
		CramersV:    math.Sqrt(chi2 / (n * minDim)),
		MinExpected: minExpected,
	}, nil
}

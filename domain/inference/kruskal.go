package inference

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// KruskalResult holds the Kruskal-Wallis H statistic and its p-value.
type KruskalResult struct {
	H   float64
	P   float64
	DoF int
}

// KruskalWallis runs the tie-corrected Kruskal-Wallis test over the groups.
func KruskalWallis(groups []Sample) (KruskalResult, error) {
	if len(groups) < 2 {
		return KruskalResult{}, fmt.Errorf("kruskal: need at least 2 groups, got %d", len(groups))
	}

	type obs struct {
		value float64
		group int
	}
	var pooled []obs
	for gi, g := range groups {
		if len(g.Values) == 0 {
			return KruskalResult{}, fmt.Errorf("kruskal: group %s is empty", g.Name)
		}
		for _, v := range g.Values {
			pooled = append(pooled, obs{value: v, group: gi})
		}
	}
	n := len(pooled)
	sort.Slice(pooled, func(i, j int) bool { return pooled[i].value < pooled[j].value })

	// Average ranks for ties, accumulating the tie-correction term.
	ranks := make([]float64, n)
	var tieSum float64
	for i := 0; i < n; {
		j := i
		for j < n && pooled[j].value == pooled[i].value {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[k] = avg
		}
		t := float64(j - i)
		tieSum += t*t*t - t
		i = j
	}

	rankSum := make([]float64, len(groups))
	count := make([]float64, len(groups))
	for i, o := range pooled {
		rankSum[o.group] += ranks[i]
		count[o.group]++
	}

	nf := float64(n)
	var h float64
	for gi := range groups {
		h += rankSum[gi] * rankSum[gi] / count[gi]
	}
	h = 12/(nf*(nf+1))*h - 3*(nf+1)

	correction := 1 - tieSum/(nf*nf*nf-nf)
	if correction == 0 {
		return KruskalResult{}, fmt.Errorf("kruskal: all observations identical")
	}
	h /= correction

	dof := len(groups) - 1
	chi := distuv.ChiSquared{K: float64(dof)}
	return KruskalResult{H: h, P: chi.Survival(h), DoF: dof}, nil
}

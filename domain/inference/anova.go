package inference

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// OneWayResult holds a one-way ANOVA with its effect sizes.
type OneWayResult struct {
	F         float64
	P         float64
	Eta2      float64
	Omega2    float64
	DFBetween int
	DFWithin  int
}

// OneWay runs a one-way ANOVA over the given groups.
func OneWay(groups []Sample) (OneWayResult, error) {
	if len(groups) < 2 {
		return OneWayResult{}, fmt.Errorf("anova: need at least 2 groups, got %d", len(groups))
	}

	var all []float64
	for _, g := range groups {
		if len(g.Values) == 0 {
			return OneWayResult{}, fmt.Errorf("anova: group %s is empty", g.Name)
		}
		all = append(all, g.Values...)
	}
	n := len(all)
	k := len(groups)
	if n <= k {
		return OneWayResult{}, fmt.Errorf("anova: %d observations for %d groups", n, k)
	}

	grand := stat.Mean(all, nil)
	var ssBetween, ssWithin float64
	for _, g := range groups {
		m := stat.Mean(g.Values, nil)
		d := m - grand
		ssBetween += float64(len(g.Values)) * d * d
		for _, v := range g.Values {
			ssWithin += (v - m) * (v - m)
		}
	}

	dfB := k - 1
	dfW := n - k
	msBetween := ssBetween / float64(dfB)
	msWithin := ssWithin / float64(dfW)
	if msWithin == 0 {
		return OneWayResult{}, fmt.Errorf("anova: zero within-group variance")
	}
	f := msBetween / msWithin

	fDist := distuv.F{D1: float64(dfB), D2: float64(dfW)}
	total := ssBetween + ssWithin
	return OneWayResult{
		F:         f,
		P:         fDist.Survival(f),
		Eta2:      ssBetween / total,
		Omega2:    (ssBetween - float64(dfB)*msWithin) / (total + msWithin),
		DFBetween: dfB,
		DFWithin:  dfW,
	}, nil
}

// Package inference implements the inferential-statistics layer: group
// comparisons of cost by incident type, the independence test between
// incident type and SLA breach, and a leakage-free logistic model for the
// breach probability.
package inference

import (
	"sort"

	lo "github.com/samber/lo"

	"roadside-stats/domain/incident"
)

// Sample is one named group of observations.
type Sample struct {
	Name   string
	Values []float64
}

// CostSamplesByType groups cost observations by incident type, names in
// ascending order so results are deterministic.
func CostSamplesByType(incs []incident.Incident) []Sample {
	groups := lo.GroupBy(incs, func(i incident.Incident) string { return i.Type })
	out := lo.MapToSlice(groups, func(k string, v []incident.Incident) Sample {
		return Sample{
			Name:   k,
			Values: lo.Map(v, func(i incident.Incident, _ int) float64 { return i.CostEUR }),
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Contingency is an observed-count table with named rows and columns.
type Contingency struct {
	RowNames []string
	ColNames []string
	Counts   [][]int
}

// BreachCrossTab tabulates incident type against the SLA-breach flag.
// Columns are "0" and "1"; rows are type names in ascending order.
func BreachCrossTab(incs []incident.Incident) *Contingency {
	groups := lo.GroupBy(incs, func(i incident.Incident) string { return i.Type })
	names := lo.Keys(groups)
	sort.Strings(names)

	tab := &Contingency{RowNames: names, ColNames: []string{"0", "1"}}
	for _, name := range names {
		breached := lo.CountBy(groups[name], func(i incident.Incident) bool { return i.SLABreach == 1 })
		tab.Counts = append(tab.Counts, []int{len(groups[name]) - breached, breached})
	}
	return tab
}

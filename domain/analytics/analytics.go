package analytics

import (
	"math"
	"sort"

	lo "github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"roadside-stats/domain/incident"
)

// CategoryCount is a count of incidents for one category value.
type CategoryCount struct {
	Name  string
	Count int
}

// MonthCount is the number of incidents in one calendar month.
type MonthCount struct {
	Year      int
	MonthNum  int
	MonthName string
	Count     int
}

// BreachRate is the SLA-breach percentage for one category value.
type BreachRate struct {
	Name string
	Pct  float64 // 0..100, one decimal
	N    int
}

// CostSummary describes the cost distribution within one incident type.
type CostSummary struct {
	Name   string
	Count  int
	Mean   float64
	Median float64
	Std    float64
}

// KPI is the headline summary over a (possibly filtered) set of incidents.
type KPI struct {
	Count            int
	MeanResponseMin  float64
	BreachPct        float64
	MeanCostEUR      float64
	MeanSatisfaction float64
}

// CountByCity counts incidents per city, most frequent first.
func CountByCity(incs []incident.Incident) []CategoryCount {
	return countBy(incs, func(i incident.Incident) string { return i.City })
}

// CountByType counts incidents per incident type, most frequent first.
func CountByType(incs []incident.Incident) []CategoryCount {
	return countBy(incs, func(i incident.Incident) string { return i.Type })
}

func countBy(incs []incident.Incident, key func(incident.Incident) string) []CategoryCount {
	counts := lo.CountValuesBy(incs, key)
	out := lo.MapToSlice(counts, func(k string, v int) CategoryCount {
		return CategoryCount{Name: k, Count: v}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MonthlyCounts counts incidents per calendar month, chronological order.
func MonthlyCounts(incs []incident.Incident) []MonthCount {
	type ym struct {
		Year  int
		Month int
	}
	counts := lo.CountValuesBy(incs, func(i incident.Incident) ym {
		return ym{Year: i.Year, Month: i.MonthNum}
	})
	out := lo.MapToSlice(counts, func(k ym, v int) MonthCount {
		return MonthCount{Year: k.Year, MonthNum: k.Month, MonthName: incident.MonthNameES(k.Month), Count: v}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].MonthNum < out[j].MonthNum
	})
	return out
}

// BreachRateByCity computes the SLA-breach percentage per city, worst first.
func BreachRateByCity(incs []incident.Incident) []BreachRate {
	return breachRateBy(incs, func(i incident.Incident) string { return i.City })
}

// BreachRateByProvider computes the SLA-breach percentage per provider, worst first.
func BreachRateByProvider(incs []incident.Incident) []BreachRate {
	return breachRateBy(incs, func(i incident.Incident) string { return i.Provider })
}

// BreachRateByType computes the SLA-breach percentage per incident type, worst first.
func BreachRateByType(incs []incident.Incident) []BreachRate {
	return breachRateBy(incs, func(i incident.Incident) string { return i.Type })
}

func breachRateBy(incs []incident.Incident, key func(incident.Incident) string) []BreachRate {
	groups := lo.GroupBy(incs, key)
	out := lo.MapToSlice(groups, func(k string, v []incident.Incident) BreachRate {
		breached := lo.CountBy(v, func(i incident.Incident) bool { return i.SLABreach == 1 })
		return BreachRate{
			Name: k,
			Pct:  round1(float64(breached) / float64(len(v)) * 100),
			N:    len(v),
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pct != out[j].Pct {
			return out[i].Pct > out[j].Pct
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CostByType summarizes cost per incident type, highest mean first.
func CostByType(incs []incident.Incident) []CostSummary {
	groups := lo.GroupBy(incs, func(i incident.Incident) string { return i.Type })
	out := lo.MapToSlice(groups, func(k string, v []incident.Incident) CostSummary {
		costs := lo.Map(v, func(i incident.Incident, _ int) float64 { return i.CostEUR })
		sorted := append([]float64(nil), costs...)
		sort.Float64s(sorted)
		s := CostSummary{
			Name:   k,
			Count:  len(costs),
			Mean:   stat.Mean(costs, nil),
			Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		}
		if len(costs) > 1 {
			s.Std = stat.StdDev(costs, nil)
		}
		return s
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mean != out[j].Mean {
			return out[i].Mean > out[j].Mean
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Summarize computes the headline KPIs over incs.
func Summarize(incs []incident.Incident) KPI {
	if len(incs) == 0 {
		return KPI{}
	}
	resp := lo.Map(incs, func(i incident.Incident, _ int) float64 { return i.ResponseMin })
	cost := lo.Map(incs, func(i incident.Incident, _ int) float64 { return i.CostEUR })
	sat := lo.Map(incs, func(i incident.Incident, _ int) float64 { return i.Satisfaction })
	breached := lo.CountBy(incs, func(i incident.Incident) bool { return i.SLABreach == 1 })
	return KPI{
		Count:            len(incs),
		MeanResponseMin:  stat.Mean(resp, nil),
		BreachPct:        round1(float64(breached) / float64(len(incs)) * 100),
		MeanCostEUR:      stat.Mean(cost, nil),
		MeanSatisfaction: stat.Mean(sat, nil),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

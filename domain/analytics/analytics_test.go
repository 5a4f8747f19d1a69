package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadside-stats/domain/incident"
)

func sample() []incident.Incident {
	return []incident.Incident{
		{City: "Madrid", Provider: "A", Type: "Avería", CostEUR: 100, ResponseMin: 30, Satisfaction: 4, SLABreach: 0, Year: 2024, MonthNum: 1},
		{City: "Madrid", Provider: "A", Type: "Avería", CostEUR: 200, ResponseMin: 50, Satisfaction: 3, SLABreach: 1, Year: 2024, MonthNum: 1},
		{City: "Madrid", Provider: "B", Type: "Pinchazo", CostEUR: 50, ResponseMin: 20, Satisfaction: 5, SLABreach: 0, Year: 2024, MonthNum: 2},
		{City: "Sevilla", Provider: "B", Type: "Pinchazo", CostEUR: 70, ResponseMin: 60, Satisfaction: 2, SLABreach: 1, Year: 2024, MonthNum: 2},
		{City: "Sevilla", Provider: "B", Type: "Accidente", CostEUR: 400, ResponseMin: 90, Satisfaction: 1, SLABreach: 1, Year: 2025, MonthNum: 1},
	}
}

func TestCountByCity(t *testing.T) {
	got := CountByCity(sample())
	require.Len(t, got, 2)
	assert.Equal(t, CategoryCount{Name: "Madrid", Count: 3}, got[0])
	assert.Equal(t, CategoryCount{Name: "Sevilla", Count: 2}, got[1])
}

func TestCountByTypeOrdersTiesByName(t *testing.T) {
	got := CountByType(sample())
	require.Len(t, got, 3)
	// Avería and Pinchazo tie at 2; alphabetical order breaks the tie.
	assert.Equal(t, "Avería", got[0].Name)
	assert.Equal(t, "Pinchazo", got[1].Name)
	assert.Equal(t, "Accidente", got[2].Name)
}

func TestMonthlyCounts(t *testing.T) {
	got := MonthlyCounts(sample())
	require.Len(t, got, 3)
	assert.Equal(t, MonthCount{Year: 2024, MonthNum: 1, MonthName: "enero", Count: 2}, got[0])
	assert.Equal(t, MonthCount{Year: 2024, MonthNum: 2, MonthName: "febrero", Count: 2}, got[1])
	assert.Equal(t, MonthCount{Year: 2025, MonthNum: 1, MonthName: "enero", Count: 1}, got[2])
}

func TestBreachRateByCity(t *testing.T) {
	got := BreachRateByCity(sample())
	require.Len(t, got, 2)
	assert.Equal(t, BreachRate{Name: "Sevilla", Pct: 100, N: 2}, got[0])
	assert.Equal(t, BreachRate{Name: "Madrid", Pct: 33.3, N: 3}, got[1])
}

func TestBreachRateByProvider(t *testing.T) {
	got := BreachRateByProvider(sample())
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Name)
	assert.InDelta(t, 66.7, got[0].Pct, 1e-9)
	assert.Equal(t, "A", got[1].Name)
	assert.InDelta(t, 50.0, got[1].Pct, 1e-9)
}

func TestCostByType(t *testing.T) {
	got := CostByType(sample())
	require.Len(t, got, 3)

	assert.Equal(t, "Accidente", got[0].Name)
	assert.Equal(t, 1, got[0].Count)
	assert.InDelta(t, 400, got[0].Mean, 1e-9)
	assert.Equal(t, 0.0, got[0].Std)

	assert.Equal(t, "Avería", got[1].Name)
	assert.InDelta(t, 150, got[1].Mean, 1e-9)
	assert.InDelta(t, 100, got[1].Median, 1e-9)

	assert.Equal(t, "Pinchazo", got[2].Name)
	assert.InDelta(t, 60, got[2].Mean, 1e-9)
}

func TestSummarize(t *testing.T) {
	got := Summarize(sample())
	assert.Equal(t, 5, got.Count)
	assert.InDelta(t, 50, got.MeanResponseMin, 1e-9)
	assert.InDelta(t, 60, got.BreachPct, 1e-9)
	assert.InDelta(t, 164, got.MeanCostEUR, 1e-9)
	assert.InDelta(t, 3, got.MeanSatisfaction, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, KPI{}, Summarize(nil))
}

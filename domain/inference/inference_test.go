package inference

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadside-stats/domain/incident"
)

func TestOneWay(t *testing.T) {
	groups := []Sample{
		{Name: "A", Values: []float64{1, 2, 3}},
		{Name: "B", Values: []float64{2, 3, 4}},
		{Name: "C", Values: []float64{3, 4, 5}},
	}
	got, err := OneWay(groups)
	require.NoError(t, err)

	// SSB=6, SSW=6, dfB=2, dfW=6 -> F=3. For F(2,6) the tail is
	// (1+F/3)^-3 = 0.125 exactly.
	assert.InDelta(t, 3.0, got.F, 1e-9)
	assert.InDelta(t, 0.125, got.P, 1e-9)
	assert.InDelta(t, 0.5, got.Eta2, 1e-9)
	assert.InDelta(t, 4.0/13.0, got.Omega2, 1e-9)
	assert.Equal(t, 2, got.DFBetween)
	assert.Equal(t, 6, got.DFWithin)
}

func TestOneWayErrors(t *testing.T) {
	_, err := OneWay([]Sample{{Name: "solo", Values: []float64{1, 2}}})
	assert.Error(t, err)

	_, err = OneWay([]Sample{
		{Name: "A", Values: []float64{1}},
		{Name: "B", Values: []float64{2}},
	})
	assert.Error(t, err)

	_, err = OneWay([]Sample{
		{Name: "A", Values: []float64{1, 1}},
		{Name: "B", Values: []float64{1, 1}},
	})
	assert.Error(t, err) // zero within-group variance
}

func TestKruskalWallis(t *testing.T) {
	groups := []Sample{
		{Name: "A", Values: []float64{1, 2, 3}},
		{Name: "B", Values: []float64{4, 5, 6}},
	}
	got, err := KruskalWallis(groups)
	require.NoError(t, err)

	// Rank sums 6 and 15 over N=6: H = 12/42*(12+75) - 21 = 27/7.
	assert.InDelta(t, 27.0/7.0, got.H, 1e-9)
	assert.InDelta(t, 0.0495, got.P, 1e-3)
	assert.Equal(t, 1, got.DoF)
}

func TestKruskalWallisTies(t *testing.T) {
	groups := []Sample{
		{Name: "A", Values: []float64{1, 1, 2}},
		{Name: "B", Values: []float64{2, 3, 3}},
	}
	got, err := KruskalWallis(groups)
	require.NoError(t, err)
	assert.Greater(t, got.H, 0.0)
	assert.Less(t, got.P, 1.0)

	_, err = KruskalWallis([]Sample{
		{Name: "A", Values: []float64{7, 7}},
		{Name: "B", Values: []float64{7, 7}},
	})
	assert.Error(t, err) // all observations identical
}

func TestChiSquare(t *testing.T) {
	tab := &Contingency{
		RowNames: []string{"Avería", "Pinchazo"},
		ColNames: []string{"0", "1"},
		Counts:   [][]int{{10, 20}, {20, 10}},
	}
	got, err := ChiSquare(tab)
	require.NoError(t, err)

	// All expected counts are 15: chi2 = 4*(25/15) = 20/3.
	assert.InDelta(t, 20.0/3.0, got.Chi2, 1e-9)
	assert.Equal(t, 1, got.DoF)
	assert.InDelta(t, 0.0098, got.P, 1e-3)
	assert.InDelta(t, 1.0/3.0, got.CramersV, 1e-9)
	assert.InDelta(t, 15, got.MinExpected, 1e-9)
}

func TestChiSquareRejectsDegenerateTables(t *testing.T) {
	_, err := ChiSquare(&Contingency{
		RowNames: []string{"solo"},
		ColNames: []string{"0", "1"},
		Counts:   [][]int{{1, 2}},
	})
	assert.Error(t, err)
}

func TestBreachCrossTab(t *testing.T) {
	incs := []incident.Incident{
		{Type: "Pinchazo", SLABreach: 1},
		{Type: "Avería", SLABreach: 0},
		{Type: "Avería", SLABreach: 1},
		{Type: "Avería", SLABreach: 0},
	}
	tab := BreachCrossTab(incs)
	require.Equal(t, []string{"Avería", "Pinchazo"}, tab.RowNames)
	assert.Equal(t, []int{2, 1}, tab.Counts[0])
	assert.Equal(t, []int{0, 1}, tab.Counts[1])
}

func TestCostSamplesByType(t *testing.T) {
	incs := []incident.Incident{
		{Type: "Pinchazo", CostEUR: 50},
		{Type: "Avería", CostEUR: 100},
		{Type: "Avería", CostEUR: 200},
	}
	groups := CostSamplesByType(incs)
	require.Len(t, groups, 2)
	assert.Equal(t, "Avería", groups[0].Name)
	assert.Equal(t, []float64{100, 200}, groups[0].Values)
	assert.Equal(t, "Pinchazo", groups[1].Name)
}

// logitIncidents builds a deterministic mixed sample where breach mostly
// follows distance, with a few flipped rows so the classes overlap and the
// likelihood stays bounded.
func logitIncidents() []incident.Incident {
	var incs []incident.Incident
	cities := []string{"Madrid", "Barcelona"}
	for i := 0; i < 60; i++ {
		d := float64(i%20) + 1
		breach := 0
		if d > 10 {
			breach = 1
		}
		if i%13 == 0 {
			breach = 1 - breach
		}
		incs = append(incs, incident.Incident{
			ID:         fmt.Sprintf("INC-%03d", i),
			City:       cities[i%2],
			DistanceKM: d,
			SLABreach:  breach,
		})
	}
	return incs
}

func TestFitBreachModel(t *testing.T) {
	res, err := FitBreachModel(logitIncidents())
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, "Madrid", res.RefCity)
	require.Len(t, res.Terms, 3)
	assert.Equal(t, "Intercept", res.Terms[0].Name)
	assert.Equal(t, "Distancia_km", res.Terms[1].Name)
	assert.Equal(t, "Ciudad[T.Barcelona]", res.Terms[2].Name)

	// Breach probability rises with distance.
	dist := res.Terms[1]
	assert.Greater(t, dist.OR, 1.0)
	assert.Less(t, dist.CILow, dist.OR)
	assert.Greater(t, dist.CIHigh, dist.OR)
	assert.Less(t, dist.P, 0.05)

	require.Len(t, res.Preds, 60)
	for _, p := range res.Preds {
		assert.Greater(t, p.Prob, 0.0)
		assert.Less(t, p.Prob, 1.0)
	}
	assert.Less(t, res.LogLik, 0.0)
}

func TestFitBreachModelErrors(t *testing.T) {
	_, err := FitBreachModel(nil)
	assert.Error(t, err)

	flat := []incident.Incident{
		{City: "Madrid", DistanceKM: 1, SLABreach: 0},
		{City: "Madrid", DistanceKM: 2, SLABreach: 0},
	}
	_, err = FitBreachModel(flat)
	assert.Error(t, err) // response has no variation
}

func TestReferenceCityFallsBackToMode(t *testing.T) {
	incs := []incident.Incident{
		{City: "Sevilla", DistanceKM: 1, SLABreach: 0},
		{City: "Sevilla", DistanceKM: 9, SLABreach: 1},
		{City: "Bilbao", DistanceKM: 5, SLABreach: 0},
	}
	assert.Equal(t, "Sevilla", referenceCity(incs))
}

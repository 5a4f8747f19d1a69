package csv

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"roadside-stats/domain/analytics"
	"roadside-stats/domain/inference"
)

// WriteCategoryCounts writes a two-column count table (e.g. incidents per city).
func WriteCategoryCounts(path, keyHeader string, rows []analytics.CategoryCount) error {
	return writeTable(path, []string{keyHeader, "Incidencias"}, len(rows), func(i int) []string {
		return []string{rows[i].Name, strconv.Itoa(rows[i].Count)}
	})
}

// WriteMonthlyCounts writes the incidents-per-calendar-month table.
func WriteMonthlyCounts(path string, rows []analytics.MonthCount) error {
	return writeTable(path, []string{"Anio", "MesN", "Mes", "Incidencias"}, len(rows), func(i int) []string {
		r := rows[i]
		return []string{strconv.Itoa(r.Year), strconv.Itoa(r.MonthNum), r.MonthName, strconv.Itoa(r.Count)}
	})
}

// WriteBreachRates writes SLA-breach percentages keyed by keyHeader.
func WriteBreachRates(path, keyHeader string, rows []analytics.BreachRate) error {
	return writeTable(path, []string{keyHeader, "Incumple_pct", "n"}, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.Name, formatFloat(r.Pct), strconv.Itoa(r.N)}
	})
}

// WriteCostSummaries writes per-type cost distribution summaries.
func WriteCostSummaries(path string, rows []analytics.CostSummary) error {
	headers := []string{"Tipo_Incidencia", "count", "mean", "median", "std"}
	return writeTable(path, headers, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.Name, strconv.Itoa(r.Count), formatFloat(r.Mean), formatFloat(r.Median), formatFloat(r.Std)}
	})
}

// WriteKPIs writes the single-row headline summary.
func WriteKPIs(path string, k analytics.KPI) error {
	headers := []string{"Incidencias", "Tiempo_Medio_min", "SLA_Incumplido_pct", "Costo_Medio_EUR", "Satisfaccion_Media"}
	return writeTable(path, headers, 1, func(int) []string {
		return []string{
			strconv.Itoa(k.Count),
			formatFloat(k.MeanResponseMin),
			formatFloat(k.BreachPct),
			formatFloat(k.MeanCostEUR),
			formatFloat(k.MeanSatisfaction),
		}
	})
}

// WriteContingency writes the observed incident-type x SLA-breach table.
func WriteContingency(path string, tab *inference.Contingency) error {
	headers := append([]string{"Tipo_Incidencia"}, tab.ColNames...)
	return writeTable(path, headers, len(tab.RowNames), func(i int) []string {
		row := []string{tab.RowNames[i]}
		for j := range tab.ColNames {
			row = append(row, strconv.Itoa(tab.Counts[i][j]))
		}
		return row
	})
}

// WriteOddsRatios writes the logistic-model odds-ratio table, four decimals
// to match the published report format.
func WriteOddsRatios(path string, terms []inference.LogitTerm) error {
	headers := []string{"param", "OR", "CI95_inf", "CI95_sup", "p"}
	return writeTable(path, headers, len(terms), func(i int) []string {
		t := terms[i]
		return []string{
			t.Name,
			strconv.FormatFloat(t.OR, 'f', 4, 64),
			strconv.FormatFloat(t.CILow, 'f', 4, 64),
			strconv.FormatFloat(t.CIHigh, 'f', 4, 64),
			strconv.FormatFloat(t.P, 'f', 4, 64),
		}
	})
}

// WritePredictions writes per-row predicted breach probabilities.
func WritePredictions(path string, preds []inference.Prediction) error {
	headers := []string{"Ciudad", "Distancia_km", "SLA_Incumplido", "Prob_Incumplir"}
	return writeTable(path, headers, len(preds), func(i int) []string {
		p := preds[i]
		return []string{p.City, formatFloat(p.DistanceKM), strconv.Itoa(p.Breach), strconv.FormatFloat(p.Prob, 'f', 6, 64)}
	})
}

func writeTable(path string, headers []string, n int, row func(i int) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(headers); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	return w.Error()
}

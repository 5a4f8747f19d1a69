package eda

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	lo "github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"roadside-stats/connectors/config"
	ccsv "roadside-stats/connectors/csv"
	"roadside-stats/connectors/figures"
	"roadside-stats/connectors/geomap"
	"roadside-stats/domain/analytics"
	"roadside-stats/domain/incident"
)

// corrColumns are the numeric columns entering the correlation matrix.
var corrColumns = []string{
	"Distancia_km", "Tiempo_Respuesta_min", "Costo_EUR",
	"Satisfaccion_1a5", "SLA_Incumplido", "Latitud", "Longitud",
}

// Run executes the eda subcommand: processed CSV in, summary tables,
// figures and the heat map out. Strictly read-only over the input.
func Run(args []string) error {
	fs := flag.NewFlagSet("eda", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	in := fs.String("in", "", "path to the processed fact CSV (default from config)")
	figsDir := fs.String("figs", "", "output directory for PNG figures (default from config)")
	mapsDir := fs.String("maps", "", "output directory for HTML maps (default from config)")
	tablesDir := fs.String("tables", "", "output directory for summary CSVs (default from config)")
	noMaps := fs.Bool("no-maps", false, "skip the geographic heat map")
	topCities := fs.Int("top-cities", 0, "top N cities in the bar charts (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve()
	if err != nil {
		return err
	}
	if *in == "" {
		*in = filepath.Join(cfg.ETL.ProcessedDir, "fact_incidencias.csv")
	}
	if *figsDir == "" {
		*figsDir = cfg.EDA.FigsDir
	}
	if *mapsDir == "" {
		*mapsDir = cfg.EDA.MapsDir
	}
	if *tablesDir == "" {
		*tablesDir = cfg.EDA.TablesDir
	}
	if *topCities <= 0 {
		*topCities = cfg.EDA.TopCities
	}

	slog.Info("eda.start", "in", *in, "figs", *figsDir, "maps", *mapsDir, "tables", *tablesDir)

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	df := dataframe.ReadCSV(f)
	f.Close()
	if df.Err != nil {
		return fmt.Errorf("eda: load %s: %w", *in, df.Err)
	}
	for _, col := range []string{"Ciudad", "Tipo_Incidencia", "Anio", "MesN", "Tiempo_Respuesta_min", "Costo_EUR", "SLA_Incumplido"} {
		if !lo.Contains(df.Names(), col) {
			return fmt.Errorf("eda: %s missing column %s", *in, col)
		}
	}
	if df.Nrow() == 0 {
		return fmt.Errorf("eda: %s has no data rows", *in)
	}

	if err := writeTables(df, *tablesDir); err != nil {
		return err
	}
	if err := writeFigures(df, *figsDir, *topCities); err != nil {
		return err
	}

	if *noMaps {
		slog.Info("eda.maps.skipped")
	} else if err := writeMap(df, *mapsDir, cfg); err != nil {
		return err
	}

	slog.Info("eda.done", "rows", df.Nrow())
	return nil
}

func writeTables(df dataframe.DataFrame, dir string) error {
	cities := countRecords(df.Col("Ciudad").Records())
	if err := ccsv.WriteCategoryCounts(filepath.Join(dir, "incidencias_por_ciudad.csv"), "Ciudad", cities); err != nil {
		return err
	}
	types := countRecords(df.Col("Tipo_Incidencia").Records())
	if err := ccsv.WriteCategoryCounts(filepath.Join(dir, "incidencias_por_tipo.csv"), "Tipo_Incidencia", types); err != nil {
		return err
	}

	sla := finite(df.Col("SLA_Incumplido").Float())
	kpi := analytics.KPI{
		Count:            df.Nrow(),
		MeanResponseMin:  stat.Mean(finite(df.Col("Tiempo_Respuesta_min").Float()), nil),
		BreachPct:        math.Round(stat.Mean(sla, nil)*1000) / 10,
		MeanCostEUR:      stat.Mean(finite(df.Col("Costo_EUR").Float()), nil),
		MeanSatisfaction: stat.Mean(finite(df.Col("Satisfaccion_1a5").Float()), nil),
	}
	if err := ccsv.WriteKPIs(filepath.Join(dir, "resumen_kpis.csv"), kpi); err != nil {
		return err
	}
	slog.Info("eda.tables.written", "dir", dir)
	return nil
}

func writeFigures(df dataframe.DataFrame, dir string, topN int) error {
	resp := finite(df.Col("Tiempo_Respuesta_min").Float())
	if err := figures.Histogram(clipUpper(resp, 0.95),
		"Distribución del Tiempo de Respuesta (<= p95)", "Tiempo de Respuesta (min)",
		filepath.Join(dir, "hist_tiempo_respuesta.png")); err != nil {
		return err
	}

	names, groups := costGroups(df)
	if err := figures.BoxPlots(names, groups,
		"Costo por Tipo de Incidencia (recorte p98)", "Costo (€)",
		filepath.Join(dir, "box_costo_por_tipo.png")); err != nil {
		return err
	}

	cities := countRecords(df.Col("Ciudad").Records())
	top := lo.Subset(cities, 0, uint(topN))
	if err := figures.HBars(
		lo.Map(top, func(c analytics.CategoryCount, _ int) string { return c.Name }),
		lo.Map(top, func(c analytics.CategoryCount, _ int) float64 { return float64(c.Count) }),
		fmt.Sprintf("Incidencias por Ciudad (Top %d)", topN), "Incidencias",
		filepath.Join(dir, "barras_incidencias_ciudad_top.png")); err != nil {
		return err
	}

	if err := monthlyFigure(df, filepath.Join(dir, "linea_incidencias_mes_anio.png")); err != nil {
		return err
	}

	if err := corrFigure(df, filepath.Join(dir, "heatmap_correlacion.png")); err != nil {
		return err
	}

	rates := breachRateByCity(df)
	topRates := lo.Subset(rates, 0, uint(topN))
	if err := figures.HBars(
		lo.Map(topRates, func(r analytics.BreachRate, _ int) string { return r.Name }),
		lo.Map(topRates, func(r analytics.BreachRate, _ int) float64 { return r.Pct }),
		fmt.Sprintf("%% Incumplimiento SLA por Ciudad (Top %d)", topN), "% Incumple SLA",
		filepath.Join(dir, "barras_sla_por_ciudad_top.png")); err != nil {
		return err
	}

	slog.Info("eda.figures.written", "dir", dir)
	return nil
}

func monthlyFigure(df dataframe.DataFrame, path string) error {
	years := df.Col("Anio").Records()
	months := df.Col("MesN").Records()

	counts := map[int][13]int{}
	for i := range years {
		y, err := strconv.Atoi(years[i])
		if err != nil {
			continue
		}
		m, err := strconv.Atoi(months[i])
		if err != nil || m < 1 || m > 12 {
			continue
		}
		row := counts[y]
		row[m]++
		counts[y] = row
	}

	yearKeys := lo.Keys(counts)
	sort.Ints(yearKeys)
	labels := make([]string, 12)
	for m := 1; m <= 12; m++ {
		labels[m-1] = incident.MonthNameES(m)
	}
	seriesNames := make([]string, 0, len(yearKeys))
	series := make([][]float64, 0, len(yearKeys))
	for _, y := range yearKeys {
		vals := make([]float64, 12)
		for m := 1; m <= 12; m++ {
			vals[m-1] = float64(counts[y][m])
		}
		seriesNames = append(seriesNames, strconv.Itoa(y))
		series = append(series, vals)
	}
	return figures.Lines(labels, seriesNames, series,
		"Incidencias por Mes y Año", "Incidencias", path)
}

func corrFigure(df dataframe.DataFrame, path string) error {
	var names []string
	var cols [][]float64
	for _, col := range corrColumns {
		if !lo.Contains(df.Names(), col) {
			continue
		}
		names = append(names, col)
		cols = append(cols, df.Col(col).Float())
	}
	if len(names) < 2 {
		return nil
	}

	corr := make([][]float64, len(names))
	for i := range names {
		corr[i] = make([]float64, len(names))
		for j := range names {
			corr[i][j] = pairCorrelation(cols[i], cols[j])
		}
	}
	return figures.CorrHeatmap(names, corr, "Matriz de Correlación", path)
}

// pairCorrelation computes Pearson's r over the rows where both columns are
// numeric (gota yields NaN for blanks, e.g. missing coordinates).
func pairCorrelation(a, b []float64) float64 {
	var xa, xb []float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xa = append(xa, a[i])
		xb = append(xb, b[i])
	}
	if len(xa) < 2 {
		return 0
	}
	r := stat.Correlation(xa, xb, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func writeMap(df dataframe.DataFrame, dir string, cfg *config.Config) error {
	if !lo.Contains(df.Names(), "Latitud") || !lo.Contains(df.Names(), "Longitud") {
		slog.Warn("eda.maps.skipped", "reason", "no coordinate columns")
		return nil
	}
	lats := df.Col("Latitud").Float()
	lons := df.Col("Longitud").Float()
	var points []geomap.Point
	for i := range lats {
		if math.IsNaN(lats[i]) || math.IsNaN(lons[i]) {
			continue
		}
		points = append(points, geomap.Point{Lat: lats[i], Lon: lons[i]})
	}
	if len(points) == 0 {
		slog.Warn("eda.maps.skipped", "reason", "no located incidents")
		return nil
	}
	path := filepath.Join(dir, "mapa_incidencias.html")
	if err := geomap.Write(path, points, geomap.Options{
		CenterLat: cfg.EDA.MapCenterLat,
		CenterLon: cfg.EDA.MapCenterLon,
		Zoom:      cfg.EDA.MapZoom,
	}); err != nil {
		return err
	}
	slog.Info("eda.map.written", "path", path, "points", len(points))
	return nil
}

func countRecords(records []string) []analytics.CategoryCount {
	counts := lo.CountValues(records)
	out := lo.MapToSlice(counts, func(k string, v int) analytics.CategoryCount {
		return analytics.CategoryCount{Name: k, Count: v}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func breachRateByCity(df dataframe.DataFrame) []analytics.BreachRate {
	cities := df.Col("Ciudad").Records()
	sla := df.Col("SLA_Incumplido").Float()

	type acc struct {
		breached int
		n        int
	}
	agg := map[string]acc{}
	for i := range cities {
		if math.IsNaN(sla[i]) {
			continue
		}
		a := agg[cities[i]]
		a.n++
		if sla[i] == 1 {
			a.breached++
		}
		agg[cities[i]] = a
	}

	out := lo.MapToSlice(agg, func(k string, a acc) analytics.BreachRate {
		return analytics.BreachRate{
			Name: k,
			Pct:  math.Round(float64(a.breached)/float64(a.n)*1000) / 10,
			N:    a.n,
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

// costGroups returns per-type cost samples clipped at the overall p98,
// type names in ascending order.
func costGroups(df dataframe.DataFrame) ([]string, [][]float64) {
	types := df.Col("Tipo_Incidencia").Records()
	costs := df.Col("Costo_EUR").Float()

	all := finite(costs)
	p98 := quantile(all, 0.98)

	groups := map[string][]float64{}
	for i := range types {
		if math.IsNaN(costs[i]) || costs[i] > p98 {
			continue
		}
		groups[types[i]] = append(groups[types[i]], costs[i])
	}
	names := lo.Keys(groups)
	sort.Strings(names)
	out := make([][]float64, len(names))
	for i, name := range names {
		out[i] = groups[name]
	}
	return names, out
}

func clipUpper(values []float64, q float64) []float64 {
	limit := quantile(values, q)
	return lo.Filter(values, func(v float64, _ int) bool { return v <= limit })
}

func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

func finite(values []float64) []float64 {
	return lo.Filter(values, func(v float64, _ int) bool { return !math.IsNaN(v) })
}

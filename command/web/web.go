package web

import (
	"encoding/csv"
	"errors"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	lo "github.com/samber/lo"

	"roadside-stats/connectors/config"
	ccsv "roadside-stats/connectors/csv"
	"roadside-stats/domain/analytics"
	"roadside-stats/domain/incident"
)

// Run starts a small Echo server exposing the pipeline's CSV outputs as
// JSON, for the BI dashboard and the filtering app that consume the
// processed dataset. It renders no UI.
//
// Endpoints:
//
//	GET /api/incidencias         -> <processed>/fact_incidencias.csv
//	GET /api/incidencias/mes     -> <processed>/incidencias_mes.csv
//	GET /api/sla/ciudad          -> <processed>/sla_por_ciudad.csv
//	GET /api/sla/proveedor       -> <processed>/sla_por_proveedor.csv
//	GET /api/costo/tipo          -> <processed>/costo_por_tipo.csv
//	GET /api/kpis                -> headline KPIs, filterable by
//	                                ?ciudad=&tipo=&medio=&resuelto=
func Run(args []string) error {
	fs := flag.NewFlagSet("web", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addr := fs.String("addr", "", "http listen address (default from config)")
	dataDir := fs.String("data", "", "directory containing processed CSVs (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve()
	if err != nil {
		return err
	}
	if *addr == "" {
		*addr = cfg.Web.Addr
	}
	if *dataDir == "" {
		*dataDir = cfg.ETL.ProcessedDir
	}

	e := echo.New()
	e.HideBanner = true

	// Helper to register a GET endpoint serving a specific CSV file
	serveCSV := func(route string, filename string) {
		e.GET(route, func(c echo.Context) error {
			path := filepath.Join(*dataDir, filename)
			rows, err := readCSV(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return c.JSON(http.StatusNotFound, map[string]any{
						"error":   "file not found",
						"path":    path,
						"message": "CSV file is missing; run the etl command first",
					})
				}
				return c.JSON(http.StatusInternalServerError, map[string]any{
					"error":   err.Error(),
					"path":    path,
					"message": "failed to read CSV",
				})
			}
			return c.JSON(http.StatusOK, rows)
		})
	}

	serveCSV("/api/incidencias", "fact_incidencias.csv")
	serveCSV("/api/incidencias/mes", "incidencias_mes.csv")
	serveCSV("/api/sla/ciudad", "sla_por_ciudad.csv")
	serveCSV("/api/sla/proveedor", "sla_por_proveedor.csv")
	serveCSV("/api/costo/tipo", "costo_por_tipo.csv")

	e.GET("/api/kpis", func(c echo.Context) error {
		path := filepath.Join(*dataDir, "fact_incidencias.csv")
		incs, err := ccsv.ReadFact(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return c.JSON(http.StatusNotFound, map[string]any{
					"error":   "file not found",
					"path":    path,
					"message": "CSV file is missing; run the etl command first",
				})
			}
			return c.JSON(http.StatusInternalServerError, map[string]any{
				"error": err.Error(),
				"path":  path,
			})
		}
		filtered := applyFilters(incs, c)
		kpi := analytics.Summarize(filtered)
		return c.JSON(http.StatusOK, map[string]any{
			"incidencias":        kpi.Count,
			"tiempo_medio_min":   kpi.MeanResponseMin,
			"sla_incumplido_pct": kpi.BreachPct,
			"costo_medio_eur":    kpi.MeanCostEUR,
			"satisfaccion_media": kpi.MeanSatisfaction,
		})
	})

	return e.Start(*addr)
}

// applyFilters narrows incidents by the comma-separated query params the
// filtering app sends. Matching is accent- and case-insensitive.
func applyFilters(incs []incident.Incident, c echo.Context) []incident.Incident {
	filters := []struct {
		param string
		field func(incident.Incident) string
	}{
		{"ciudad", func(i incident.Incident) string { return i.City }},
		{"tipo", func(i incident.Incident) string { return i.Type }},
		{"medio", func(i incident.Incident) string { return i.ReturnMethod }},
		{"resuelto", func(i incident.Incident) string { return i.Resolved }},
	}
	for _, f := range filters {
		raw := c.QueryParam(f.param)
		if raw == "" {
			continue
		}
		wanted := lo.SliceToMap(strings.Split(raw, ","), func(s string) (string, struct{}) {
			return incident.NormalizeText(s), struct{}{}
		})
		field := f.field
		incs = lo.Filter(incs, func(i incident.Incident, _ int) bool {
			_, ok := wanted[incident.NormalizeText(field(i))]
			return ok
		})
	}
	return incs
}

// readCSV loads a CSV file and returns a slice of objects keyed by headers.
// Values are kept as strings to avoid lossy or incorrect type coercion.
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Read all rows; these CSVs are small.
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []map[string]string{}, nil
	}

	headers := records[0]
	res := make([]map[string]string, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		row := records[i]
		if len(row) == 0 {
			continue
		}
		obj := make(map[string]string, len(headers))
		for j := 0; j < len(headers) && j < len(row); j++ {
			obj[headers[j]] = row[j]
		}
		res = append(res, obj)
	}
	return res, nil
}

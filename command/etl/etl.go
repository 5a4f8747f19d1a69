package etl

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"roadside-stats/connectors/config"
	ccsv "roadside-stats/connectors/csv"
	"roadside-stats/domain/analytics"
	"roadside-stats/domain/incident"
)

// Run executes the etl subcommand: raw CSV in, processed fact table plus
// auxiliary aggregate tables out. Any malformed row aborts the run before
// anything is written.
func Run(args []string) error {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	in := fs.String("in", "", "path to the raw incidents CSV (default from config)")
	out := fs.String("out", "", "output directory for processed CSVs (default from config)")
	noAux := fs.Bool("no-aux", false, "skip the auxiliary aggregate tables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve()
	if err != nil {
		return err
	}
	if *in == "" {
		*in = cfg.ETL.RawCSV
	}
	if *out == "" {
		*out = cfg.ETL.ProcessedDir
	}

	slog.Info("etl.start", "in", *in, "out", *out, "sla_threshold_min", cfg.ETL.SLAThresholdMin)

	rows, err := ccsv.ReadRaw(*in)
	if err != nil {
		slog.Error("etl.read.error", "path", *in, "error", err)
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("etl: %s has no data rows", *in)
	}

	incs := make([]incident.Incident, 0, len(rows))
	for i, row := range rows {
		inc, err := incident.Clean(row, cfg.ETL.SLAThresholdMin)
		if err != nil {
			slog.Error("etl.clean.error", "line", i+2, "error", err)
			return fmt.Errorf("etl: line %d: %w", i+2, err)
		}
		incs = append(incs, inc)
	}

	factPath := filepath.Join(*out, "fact_incidencias.csv")
	if err := ccsv.WriteFact(factPath, incs); err != nil {
		return err
	}
	slog.Info("etl.fact.written", "path", factPath, "rows", len(incs))

	if !*noAux {
		if err := writeAux(*out, incs); err != nil {
			return err
		}
	}

	slog.Info("etl.done", "rows", len(incs))
	return nil
}

func writeAux(dir string, incs []incident.Incident) error {
	aux := []struct {
		name  string
		write func(path string) error
	}{
		{"incidencias_mes.csv", func(p string) error {
			return ccsv.WriteMonthlyCounts(p, analytics.MonthlyCounts(incs))
		}},
		{"sla_por_ciudad.csv", func(p string) error {
			return ccsv.WriteBreachRates(p, "Ciudad", analytics.BreachRateByCity(incs))
		}},
		{"sla_por_proveedor.csv", func(p string) error {
			return ccsv.WriteBreachRates(p, "Proveedor", analytics.BreachRateByProvider(incs))
		}},
		{"costo_por_tipo.csv", func(p string) error {
			return ccsv.WriteCostSummaries(p, analytics.CostByType(incs))
		}},
	}
	for _, t := range aux {
		path := filepath.Join(dir, t.name)
		if err := t.write(path); err != nil {
			return fmt.Errorf("etl: write %s: %w", t.name, err)
		}
		slog.Info("etl.aux.written", "path", path)
	}
	return nil
}

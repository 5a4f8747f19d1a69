package stats

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
	"roadside-stats/domain/inference"
)

// Run executes the stats subcommand: group comparison of cost by incident
// type, independence test of type vs SLA breach, and the leakage-free
// logistic model for the breach probability. Inputs are never mutated.
func Run(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	in := fs.String("in", "", "path to the processed fact CSV (default from config)")
	out := fs.String("out", "", "output directory for result tables (default from config)")
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
	if *out == "" {
		*out = cfg.Stats.OutDir
	}

	slog.Info("stats.start", "in", *in, "out", *out)

	incs, err := ccsv.ReadFact(*in)
	if err != nil {
		slog.Error("stats.read.error", "path", *in, "error", err)
		return err
	}
	if len(incs) == 0 {
		return fmt.Errorf("stats: %s has no data rows", *in)
	}

	groups := inference.CostSamplesByType(incs)
	anova, err := inference.OneWay(groups)
	if err != nil {
		return err
	}
	kruskal, err := inference.KruskalWallis(groups)
	if err != nil {
		return err
	}
	slog.Info("stats.anova",
		"F", fmt.Sprintf("%.3f", anova.F), "p", fmt.Sprintf("%.3g", anova.P),
		"eta2", fmt.Sprintf("%.3f", anova.Eta2), "omega2", fmt.Sprintf("%.3f", anova.Omega2))
	slog.Info("stats.kruskal",
		"H", fmt.Sprintf("%.3f", kruskal.H), "p", fmt.Sprintf("%.3g", kruskal.P))

	tab := inference.BreachCrossTab(incs)
	chi2, err := inference.ChiSquare(tab)
	if err != nil {
		return err
	}
	slog.Info("stats.chi2",
		"chi2", fmt.Sprintf("%.2f", chi2.Chi2), "p", fmt.Sprintf("%.3g", chi2.P),
		"dof", chi2.DoF,
		"cramers_v", fmt.Sprintf("%.3f", chi2.CramersV),
		"min_expected", fmt.Sprintf("%.1f", chi2.MinExpected))

	logit, err := inference.FitBreachModel(incs)
	if err != nil {
		return err
	}
	slog.Info("stats.logit",
		"ref_city", logit.RefCity,
		"loglik", fmt.Sprintf("%.2f", logit.LogLik),
		"converged", logit.Converged, "iterations", logit.Iterations)
	for _, t := range logit.Terms {
		slog.Info("stats.logit.term", "param", t.Name,
			"OR", fmt.Sprintf("%.4f", t.OR),
			"ci95", fmt.Sprintf("[%.4f, %.4f]", t.CILow, t.CIHigh),
			"p", fmt.Sprintf("%.4f", t.P))
	}

	if err := writeResults(*out, incs, tab, logit); err != nil {
		return err
	}

	slog.Info("stats.done", "out", *out)
	return nil
}

func writeResults(dir string, incs []incident.Incident, tab *inference.Contingency, logit *inference.LogitResult) error {
	results := []struct {
		name  string
		write func(path string) error
	}{
		{"costo_por_tipo_resumen.csv", func(p string) error {
			return ccsv.WriteCostSummaries(p, analytics.CostByType(incs))
		}},
		{"chi2_tabla_observada.csv", func(p string) error {
			return ccsv.WriteContingency(p, tab)
		}},
		{"tasas_incumplimiento_por_tipo.csv", func(p string) error {
			return ccsv.WriteBreachRates(p, "Tipo_Incidencia", analytics.BreachRateByType(incs))
		}},
		{"logit_odds_ratios.csv", func(p string) error {
			return ccsv.WriteOddsRatios(p, logit.Terms)
		}},
		{"logit_predicciones.csv", func(p string) error {
			return ccsv.WritePredictions(p, logit.Preds)
		}},
	}
	for _, r := range results {
		path := filepath.Join(dir, r.name)
		if err := r.write(path); err != nil {
			return fmt.Errorf("stats: write %s: %w", r.name, err)
		}
		slog.Info("stats.result.written", "path", path)
	}
	return nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	cmdeda "roadside-stats/command/eda"
	cmdetl "roadside-stats/command/etl"
	cmdstats "roadside-stats/command/stats"
	cmdweb "roadside-stats/command/web"
)

// Batch analytics pipeline for the roadside-assistance incidents dataset.
// Usage:
//   roadside-stats etl   [-in raw.csv] [-out data/processed] [-no-aux]
//   roadside-stats eda   [-in fact.csv] [-figs dir] [-maps dir] [-tables dir] [-no-maps] [-top-cities N]
//   roadside-stats stats [-in fact.csv] [-out reports/stats]
//   roadside-stats web   [-addr :8080] [-data data/processed]
// Notes:
// - Stages communicate only through CSV files; each run is one-shot.
// - Set CONFIG_PATH to point to a YAML config file (default ./config.yml).

func main() {
	args := os.Args
	// Initialize slog logger (text to stderr)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	if len(args) > 1 {
		sub := args[1]
		rest := append([]string{}, args[2:]...)
		switch sub {
		case "etl":
			if err := cmdetl.Run(rest); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case "eda":
			if err := cmdeda.Run(rest); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case "stats":
			if err := cmdstats.Run(rest); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		case "web":
			if err := cmdweb.Run(rest); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: roadside-stats etl [-in <raw.csv>] [-out <dir>] [-no-aux] | eda [-no-maps] [-top-cities N] | stats | web [-addr :8080]\nENV: set CONFIG_PATH to point to a YAML config file (default ./config.yml)")
	os.Exit(2)
}

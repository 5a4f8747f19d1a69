package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config models config.yml. Every field is optional; zero values fall back
// to the defaults below, and command-line flags override both.
type Config struct {
	ETL struct {
		RawCSV          string  `yaml:"raw_csv"`
		ProcessedDir    string  `yaml:"processed_dir"`
		SLAThresholdMin float64 `yaml:"sla_threshold_min"`
	} `yaml:"etl"`
	EDA struct {
		FigsDir      string  `yaml:"figs_dir"`
		MapsDir      string  `yaml:"maps_dir"`
		TablesDir    string  `yaml:"tables_dir"`
		TopCities    int     `yaml:"top_cities"`
		MapCenterLat float64 `yaml:"map_center_lat"`
		MapCenterLon float64 `yaml:"map_center_lon"`
		MapZoom      int     `yaml:"map_zoom"`
	} `yaml:"eda"`
	Stats struct {
		OutDir string `yaml:"out_dir"`
	} `yaml:"stats"`
	Web struct {
		Addr string `yaml:"addr"`
	} `yaml:"web"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	c := &Config{}
	c.ETL.RawCSV = "data/raw/incidencias_asistencia.csv"
	c.ETL.ProcessedDir = "data/processed"
	c.ETL.SLAThresholdMin = 45
	c.EDA.FigsDir = "reports/figs"
	c.EDA.MapsDir = "reports/mapas"
	c.EDA.TablesDir = "reports/tables"
	c.EDA.TopCities = 15
	// Approximate center of Spain
	c.EDA.MapCenterLat = 40.4168
	c.EDA.MapCenterLon = -3.7038
	c.EDA.MapZoom = 5
	c.Stats.OutDir = "reports/stats"
	c.Web.Addr = ":8080"
	return c
}

// Load parses the YAML configuration file at path over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(c)
	slog.Info("config.loaded", "path", path)
	return c, nil
}

// Resolve loads the file named by CONFIG_PATH (default ./config.yml),
// falling back to defaults when the file does not exist.
func Resolve() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config.yml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// applyDefaults restores defaults for fields the file left empty. Zero is
// indistinguishable from unset, so an explicit `sla_threshold_min: 0` or
// `top_cities: 0` is overridden back to the default.
func applyDefaults(c *Config) {
	d := Default()
	if c.ETL.RawCSV == "" {
		c.ETL.RawCSV = d.ETL.RawCSV
	}
	if c.ETL.ProcessedDir == "" {
		c.ETL.ProcessedDir = d.ETL.ProcessedDir
	}
	if c.ETL.SLAThresholdMin == 0 {
		c.ETL.SLAThresholdMin = d.ETL.SLAThresholdMin
	}
	if c.EDA.FigsDir == "" {
		c.EDA.FigsDir = d.EDA.FigsDir
	}
	if c.EDA.MapsDir == "" {
		c.EDA.MapsDir = d.EDA.MapsDir
	}
	if c.EDA.TablesDir == "" {
		c.EDA.TablesDir = d.EDA.TablesDir
	}
	if c.EDA.TopCities == 0 {
		c.EDA.TopCities = d.EDA.TopCities
	}
	if c.EDA.MapCenterLat == 0 && c.EDA.MapCenterLon == 0 {
		c.EDA.MapCenterLat = d.EDA.MapCenterLat
		c.EDA.MapCenterLon = d.EDA.MapCenterLon
	}
	if c.EDA.MapZoom == 0 {
		c.EDA.MapZoom = d.EDA.MapZoom
	}
	if c.Stats.OutDir == "" {
		c.Stats.OutDir = d.Stats.OutDir
	}
	if c.Web.Addr == "" {
		c.Web.Addr = d.Web.Addr
	}
}

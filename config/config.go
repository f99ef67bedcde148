package config

import (
	"encoding/json"
	"fmt"
	"os"

	"electricchair/meta"
)

// Analysis holds the analyzer knobs of the configuration document.
type Analysis struct {
	MaxBatchSize       int    `json:"maxBatchSize"`
	PrecisionDigits    int    `json:"precisionDigits"`
	SaveInterval       int    `json:"saveInterval"`
	OutputDirectory    string `json:"outputDirectory"`
	StateHashDirectory string `json:"stateHashDirectory"`
	Goroutines         int    `json:"goroutines"`
}

// Evaluation holds the payoff knobs.
type Evaluation struct {
	// Draw is the Player-A-perspective value assigned to draws.
	Draw float64 `json:"draw"`
}

// Config is the single JSON document recognized at initialization time.
// Every key is optional; missing keys keep their defaults. Load returns a
// value to be passed to constructors explicitly, there is no process-wide
// instance.
type Config struct {
	Analysis   Analysis   `json:"analysis"`
	Evaluation Evaluation `json:"evaluation"`
}

func Default() Config {
	return Config{
		Analysis: Analysis{
			MaxBatchSize:       1000,
			PrecisionDigits:    6,
			SaveInterval:       100,
			OutputDirectory:    "./analysis-results",
			StateHashDirectory: "./state-hashes",
			Goroutines:         meta.GO_ROUTINES,
		},
		Evaluation: Evaluation{Draw: 0},
	}
}

// Load reads the configuration document at path on top of the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return c.sanitized(), nil
}

// sanitized folds out-of-range values back to their defaults.
func (c Config) sanitized() Config {
	d := Default()
	if c.Analysis.MaxBatchSize <= 0 {
		c.Analysis.MaxBatchSize = d.Analysis.MaxBatchSize
	}
	if c.Analysis.PrecisionDigits <= 0 || c.Analysis.PrecisionDigits > 12 {
		c.Analysis.PrecisionDigits = d.Analysis.PrecisionDigits
	}
	if c.Analysis.SaveInterval <= 0 {
		c.Analysis.SaveInterval = d.Analysis.SaveInterval
	}
	if c.Analysis.OutputDirectory == "" {
		c.Analysis.OutputDirectory = d.Analysis.OutputDirectory
	}
	if c.Analysis.StateHashDirectory == "" {
		c.Analysis.StateHashDirectory = d.Analysis.StateHashDirectory
	}
	if c.Analysis.Goroutines <= 0 {
		c.Analysis.Goroutines = d.Analysis.Goroutines
	}
	return c
}

// String renders the resolved configuration for --config.
func (c Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", struct {
			Analysis   Analysis
			Evaluation Evaluation
		}{c.Analysis, c.Evaluation})
	}
	return string(data)
}

package prep

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config carries the validated preparation parameters. Position lists are
// 1-based in the JSON file (the user-facing convention) and converted to the
// 0-based internal convention at load time; everything downstream is 0-based
// until serialization converts back.
type Config struct {
	NumMutations         int     `json:"num_mutations"`
	EpitopeLength        int     `json:"epitope_length"`
	ExcludedPositions    []int   `json:"excluded_positions"`
	IgnoredPositions     []int   `json:"ignored_positions"`
	UseSingleSiteModel   bool    `json:"use_single_site_model"`
	LambdaH              float64 `json:"lambda_h"`
	MinObservedFrequency float64 `json:"min_observed_frequency"`
	Workers              int     `json:"workers"`
}

// LoadConfig reads and validates a preparation config, shifting the position
// lists to 0-based indices.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	if cfg.ExcludedPositions, err = shift(cfg.ExcludedPositions); err != nil {
		return Config{}, fmt.Errorf("config %s: excluded positions: %w", path, err)
	}
	if cfg.IgnoredPositions, err = shift(cfg.IgnoredPositions); err != nil {
		return Config{}, fmt.Errorf("config %s: ignored positions: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func shift(positions []int) ([]int, error) {
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		if p < 1 {
			return nil, fmt.Errorf("position %d is not 1-based", p)
		}
		out = append(out, p-1)
	}
	return out, nil
}

// Validate fails fast on inconsistent parameters so that no partial output is
// ever produced from a bad configuration.
func (c Config) Validate() error {
	if c.NumMutations <= 0 {
		return errors.New("number of mutations must be positive")
	}
	if c.EpitopeLength <= 0 {
		return errors.New("epitope length must be positive")
	}
	if c.UseSingleSiteModel && c.LambdaH <= 0 {
		return errors.New("single-site model requires a positive regularization strength")
	}
	if c.MinObservedFrequency < 0 || c.MinObservedFrequency > 1 {
		return errors.New("minimum observed frequency must be within [0, 1]")
	}
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	for _, p := range c.ExcludedPositions {
		if p < 0 {
			return fmt.Errorf("excluded position %d is negative", p)
		}
	}
	for _, p := range c.IgnoredPositions {
		if p < 0 {
			return fmt.Errorf("ignored position %d is negative", p)
		}
	}
	return nil
}

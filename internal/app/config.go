package app

import (
	"errors"
	"fmt"
	"slices"
)

// Definition formats accepted by Config.Format.
const (
	FormatAuto = "auto"
	FormatHCL  = "hcl"
	FormatYAML = "yaml"
)

// Report formats accepted by Config.Output.
const (
	OutputText = "text"
	OutputYAML = "yaml"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	DefinitionPaths []string          // definition files or directories
	Vars            map[string]string // variable overrides
	Format          string            // auto, hcl or yaml
	Flows           []string          // flows to plan, all when empty

	// Permissive reports illegal paths as split requests instead of
	// rejecting them outright.
	Permissive bool
	// Fail simulates the failure of the named steps (by sink path or step
	// name) to preview which dependents would be withdrawn.
	Fail []string

	Output      string // text or yaml
	DotPath     string
	MetricsPath string

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.DefinitionPaths) == 0 {
		return nil, errors.New("at least one definition path is required")
	}

	if cfg.Format == "" {
		cfg.Format = FormatAuto
	}
	if !slices.Contains([]string{FormatAuto, FormatHCL, FormatYAML}, cfg.Format) {
		return nil, fmt.Errorf("invalid format %q: must be 'auto', 'hcl' or 'yaml'", cfg.Format)
	}

	if cfg.Output == "" {
		cfg.Output = OutputText
	}
	if cfg.Output != OutputText && cfg.Output != OutputYAML {
		return nil, fmt.Errorf("invalid output %q: must be 'text' or 'yaml'", cfg.Output)
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	return &cfg, nil
}

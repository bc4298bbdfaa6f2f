// Package config loads the archstatus YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/export"
	"archstatus/internal/logging"
	"archstatus/internal/validate"
)

// Config is the root of config.yaml.
type Config struct {
	Logging    logging.Config `yaml:"logging"`
	Validation Validation     `yaml:"validation"`
	Scan       Scan           `yaml:"scan"`
	Export     Export         `yaml:"export"`
}

// Validation tunes the rule engine and overrides the default registry.
type Validation struct {
	// Parallelism caps concurrently running checks. Zero uses GOMAXPROCS.
	Parallelism  int                     `yaml:"parallelism"`
	CheckTimeout time.Duration           `yaml:"check_timeout"`
	Rules        map[string]RuleOverride `yaml:"rules,omitempty"`
	Gates        map[string]GateOverride `yaml:"gates,omitempty"`
}

// RuleOverride replaces the set fields of a default rule.
type RuleOverride struct {
	Enabled   *bool    `yaml:"enabled,omitempty"`
	Weight    *float64 `yaml:"weight,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
}

// GateOverride replaces the set fields of a default gate.
type GateOverride struct {
	Enabled   *bool    `yaml:"enabled,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
}

// Scan configures scanners.
type Scan struct {
	// Deny lists globs of paths scanners never read.
	Deny []string `yaml:"deny,omitempty"`
}

// Export configures the diagram exporters.
type Export struct {
	MermaidMaxNodes int `yaml:"mermaid_max_nodes"`
	DotMaxNodes     int `yaml:"dot_max_nodes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Validation: Validation{
			CheckTimeout: validate.DefaultCheckTimeout,
		},
		Export: Export{
			MermaidMaxNodes: export.DefaultMermaidMaxNodes,
			DotMaxNodes:     export.DefaultDotMaxNodes,
		},
	}
}

// DefaultPath returns ~/.archstatus/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".archstatus", "config.yaml"), nil
}

// Load reads path over the defaults. A missing file yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Config("parse "+path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Validate rejects values no component can honor.
func (c *Config) Validate() error {
	switch {
	case c.Validation.Parallelism < 0:
		return apperrors.Config("validation.parallelism must not be negative", nil)
	case c.Validation.CheckTimeout < 0:
		return apperrors.Config("validation.check_timeout must not be negative", nil)
	case c.Export.MermaidMaxNodes < 0 || c.Export.DotMaxNodes < 0:
		return apperrors.Config("export node limits must not be negative", nil)
	}
	return nil
}

// Registry applies the rule and gate overrides to the default registry and
// returns the result. The defaults are left untouched.
func (c *Config) Registry() (*validate.Registry, error) {
	rules := validate.DefaultRules()
	gates := validate.DefaultGates()

	ruleIdx := make(map[string]int, len(rules))
	for i, r := range rules {
		ruleIdx[r.ID] = i
	}
	for _, id := range sortedKeys(c.Validation.Rules) {
		i, ok := ruleIdx[id]
		if !ok {
			return nil, apperrors.Config(fmt.Sprintf("validation.rules: unknown rule %q", id), nil)
		}
		o := c.Validation.Rules[id]
		if o.Enabled != nil {
			rules[i].Enabled = *o.Enabled
		}
		if o.Weight != nil {
			rules[i].Weight = *o.Weight
		}
		if o.Threshold != nil {
			t := *o.Threshold
			rules[i].Threshold = &t
		}
	}

	gateIdx := make(map[string]int, len(gates))
	for i, g := range gates {
		gateIdx[g.ID] = i
	}
	for _, id := range sortedKeys(c.Validation.Gates) {
		i, ok := gateIdx[id]
		if !ok {
			return nil, apperrors.Config(fmt.Sprintf("validation.gates: unknown gate %q", id), nil)
		}
		o := c.Validation.Gates[id]
		if o.Enabled != nil {
			gates[i].Enabled = *o.Enabled
		}
		if o.Threshold != nil {
			gates[i].Threshold = *o.Threshold
		}
	}

	return validate.NewRegistry(rules, gates)
}

// EngineOptions returns the engine options implied by the validation
// section.
func (c *Config) EngineOptions() []validate.Option {
	var opts []validate.Option
	if c.Validation.CheckTimeout > 0 {
		opts = append(opts, validate.WithTimeout(c.Validation.CheckTimeout))
	}
	if c.Validation.Parallelism > 0 {
		opts = append(opts, validate.WithParallelism(c.Validation.Parallelism))
	}
	return opts
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

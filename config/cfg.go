package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/rupor-github/gencfg"
	yaml "gopkg.in/yaml.v3"

	"csslint/lint"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// PropertyGroupConfig is one named slot of the canonical declaration
	// order, first group expected first.
	PropertyGroupConfig struct {
		Name       string   `yaml:"name" validate:"required"`
		Properties []string `yaml:"properties" validate:"min=1,dive,required"`
	}

	// LintConfig holds the adjustable rule policy. Defaults are advisory
	// conventions, not a contract - see the embedded template.
	LintConfig struct {
		StructuralSelectors []string              `yaml:"structural_selectors" validate:"min=1,dive,required"`
		GlobalExceptions    []string              `yaml:"global_exceptions" validate:"dive,required"`
		PropertyGroups      []PropertyGroupConfig `yaml:"property_groups" validate:"min=1,dive"`
		MaxNestingDepth     int                   `yaml:"max_nesting_depth" validate:"min=8"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Lint      LintConfig     `yaml:"lint"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// Policy converts the configured rule set into the engine's policy form.
func (c *LintConfig) Policy() lint.Policy {
	groups := make([]lint.PropertyGroup, 0, len(c.PropertyGroups))
	for _, g := range c.PropertyGroups {
		groups = append(groups, lint.PropertyGroup{Name: g.Name, Properties: g.Properties})
	}
	return lint.Policy{
		StructuralSelectors: c.StructuralSelectors,
		GlobalExceptions:    c.GlobalExceptions,
		PropertyGroups:      groups,
		MaxNestingDepth:     c.MaxNestingDepth,
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

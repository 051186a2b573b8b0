// Package config holds the run configuration of the footnote tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "github.com/FocuswithJustin/FootnoteTool/core/errors"
	"github.com/FocuswithJustin/FootnoteTool/core/footnote"
	"github.com/FocuswithJustin/FootnoteTool/internal/logging"
	"github.com/FocuswithJustin/FootnoteTool/internal/validation"
)

// DefaultSuffix is appended to the input name for the repacked EPUB and
// its journal.
const DefaultSuffix = " [FootnoteTool]"

// Config holds all configuration for a run.
type Config struct {
	// Policy is the requested footnote layout.
	Policy footnote.Policy `yaml:"policy"`

	// Jobs is the number of content documents processed concurrently.
	Jobs int `yaml:"jobs"`

	// Suffix is appended to the output EPUB and journal names.
	Suffix string `yaml:"suffix"`

	// CompressLog saves the journal as .log.xz.
	CompressLog bool `yaml:"compress_log"`

	// Report is the path of the JSON run report. Empty disables it.
	Report string `yaml:"report"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  logging.Level  `yaml:"level"`
	Format logging.Format `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Policy: footnote.DontMove,
		Jobs:   4,
		Suffix: DefaultSuffix,
		Logging: LoggingConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatText,
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, ferrors.NewIO("read config", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ferrors.NewParse("YAML", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.NewIO("write config", path, err)
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Jobs < 1 {
		return ferrors.NewValidation("jobs", fmt.Sprint(c.Jobs), "must be at least 1")
	}
	// The suffix ends up inside a file name next to the input.
	if err := validation.ValidateFilename("book" + c.Suffix + ".epub"); err != nil {
		return &ferrors.ValidationError{Field: "suffix", Value: c.Suffix, Message: "not usable in a file name", Err: err}
	}
	if c.Report != "" {
		if err := validation.ValidatePath(c.Report); err != nil {
			return &ferrors.ValidationError{Field: "report", Value: c.Report, Message: "bad path", Err: err}
		}
	}
	return nil
}

// OutputName is the base name, without extension, of the repacked EPUB
// for an input named name.epub.
func (c *Config) OutputName(input string) string {
	base := filepath.Base(input)
	return base[:len(base)-len(filepath.Ext(base))] + c.Suffix
}

// JournalName is the file name of the diagnostics journal for input.
func (c *Config) JournalName(input string) string {
	name := c.OutputName(input) + ".log"
	if c.CompressLog {
		name += ".xz"
	}
	return name
}

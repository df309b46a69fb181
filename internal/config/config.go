// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the mount-time configuration and binds it to
// command-line flags via viper.BindPFlag and to an optional YAML file
// decoded with mapstructure. Flag values override file values, which
// override defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Severity is the logging severity, one of TRACE, DEBUG, INFO, WARNING,
// ERROR or OFF.
type Severity string

const (
	Trace   Severity = "TRACE"
	Debug   Severity = "DEBUG"
	Info    Severity = "INFO"
	Warning Severity = "WARNING"
	Error   Severity = "ERROR"
	Off     Severity = "OFF"
)

var severityRank = map[Severity]int{
	Trace:   0,
	Debug:   1,
	Info:    2,
	Warning: 3,
	Error:   4,
	Off:     5,
}

// UnmarshalText upper-cases and validates the severity against the fixed
// enum, rejecting unknown values.
func (s *Severity) UnmarshalText(text []byte) error {
	v := Severity(strings.ToUpper(string(text)))
	if _, ok := severityRank[v]; !ok {
		return fmt.Errorf("invalid log severity %q: must be one of TRACE, DEBUG, INFO, WARNING, ERROR, OFF", text)
	}
	*s = v
	return nil
}

// Rank orders severities for comparison; higher is louder-filtering
// (fewer messages pass). Unknown severities rank below Trace.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Logging holds the ambient logging configuration.
type Logging struct {
	Format   string   `yaml:"format" mapstructure:"format"`       // "text" or "json"
	Severity Severity `yaml:"severity" mapstructure:"severity"`
	FilePath string   `yaml:"file-path" mapstructure:"file-path"` // empty means stderr
}

// Metrics holds the ambient metrics configuration.
type Metrics struct {
	// ListenAddr, if non-empty, serves Prometheus metrics at /metrics on
	// this address (e.g. ":9090").
	ListenAddr string `yaml:"listen-addr" mapstructure:"listen-addr"`
}

// Config is the full mount-time configuration: repository and mount
// point paths, the active agent identity, run-mode switches, and the
// logging and metrics sections.
type Config struct {
	RepoPath    string  `yaml:"repo-path" mapstructure:"repo-path"`
	MountPoint  string  `yaml:"mount-point" mapstructure:"mount-point"`
	ActiveAgent string  `yaml:"active-agent" mapstructure:"active-agent"`
	Foreground  bool    `yaml:"foreground" mapstructure:"foreground"`
	Debug       bool    `yaml:"debug" mapstructure:"debug"`
	Logging     Logging `yaml:"logging" mapstructure:"logging"`
	Metrics     Metrics `yaml:"metrics" mapstructure:"metrics"`
}

// Default returns the configuration used when neither flags nor a config
// file override a value. The active agent comes from AGENT_ID, falling
// back to "default" when unset.
func Default() Config {
	return Config{
		ActiveAgent: agentIDFromEnv(),
		Logging: Logging{
			Format:   "text",
			Severity: Info,
		},
	}
}

func agentIDFromEnv() string {
	if v := os.Getenv("AGENT_ID"); v != "" {
		return v
	}
	return "default"
}

// BindFlags registers the mount command's flags and binds each to its
// viper key.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.BoolP("foreground", "f", false, "Run the mount in the foreground instead of daemonizing.")
	if err := viper.BindPFlag("foreground", flagSet.Lookup("foreground")); err != nil {
		return err
	}

	flagSet.BoolP("debug", "d", false, "Enable verbose FUSE debug logging.")
	if err := viper.BindPFlag("debug", flagSet.Lookup("debug")); err != nil {
		return err
	}

	flagSet.String("active-agent", "", "The writer identity for this mount. Defaults to $AGENT_ID or \"default\".")
	if err := viper.BindPFlag("active-agent", flagSet.Lookup("active-agent")); err != nil {
		return err
	}

	flagSet.String("log-format", "text", "Log format: text or json.")
	if err := viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.String("log-severity", "INFO", "Log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err := viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.String("log-file", "", "Write logs to this file instead of stderr.")
	if err := viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.String("metrics-listen-addr", "", "If set, serve Prometheus metrics on this address.")
	if err := viper.BindPFlag("metrics.listen-addr", flagSet.Lookup("metrics-listen-addr")); err != nil {
		return err
	}

	return nil
}

// Load reads an optional YAML config file at path (if non-empty), then
// decodes the explicitly set viper keys (changed flags) over it via
// mapstructure: file values first, flags override.
func Load(path string, v *viper.Viper) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		cfg = mergeNonZero(cfg, fileCfg)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("config: building decoder: %w", err)
	}
	// AllSettings also reports the default of every flag the user left
	// unchanged; drop those so they don't override file values or the
	// AGENT_ID default.
	settings := v.AllSettings()
	for _, key := range v.AllKeys() {
		if v.IsSet(key) {
			continue
		}
		parts := strings.Split(key, ".")
		m := settings
		for _, part := range parts[:len(parts)-1] {
			m, _ = m[part].(map[string]any)
		}
		delete(m, parts[len(parts)-1])
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("config: decoding flags: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeNonZero overlays any non-zero-valued field of override onto base,
// used to apply an optional config file's values without clobbering
// defaults it didn't mention.
func mergeNonZero(base, override Config) Config {
	if override.ActiveAgent != "" {
		base.ActiveAgent = override.ActiveAgent
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Logging.Severity != "" {
		base.Logging.Severity = override.Logging.Severity
	}
	if override.Logging.FilePath != "" {
		base.Logging.FilePath = override.Logging.FilePath
	}
	if override.Metrics.ListenAddr != "" {
		base.Metrics.ListenAddr = override.Metrics.ListenAddr
	}
	base.Foreground = base.Foreground || override.Foreground
	base.Debug = base.Debug || override.Debug
	return base
}

// Validate rejects configurations that cannot be mounted.
func Validate(c *Config) error {
	if _, ok := severityRank[c.Logging.Severity]; !ok {
		return fmt.Errorf("config: invalid logging.severity %q", c.Logging.Severity)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid logging.format %q: must be text or json", c.Logging.Format)
	}
	return nil
}

// Package operations implements the threadpool command line
// interface: serving pages through a pool, querying a running pool's
// status, and benchmarking the pool.
package operations

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddr       = "127.0.0.1:7878"
	defaultStatusPort = 2285
	defaultLogLevel   = "info"
)

// LogConfig describes where the serve command writes its logs. An
// empty File logs to standard output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config holds the settings for the serve command.
type Config struct {
	Workers    int       `yaml:"workers"`
	Addr       string    `yaml:"addr"`
	Root       string    `yaml:"root"`
	StatusPort int       `yaml:"status_port"`
	AcceptRate float64   `yaml:"accept_rate"`
	Burst      int       `yaml:"burst"`
	Log        LogConfig `yaml:"log"`
}

// LoadConfig reads a YAML config file. Fields the file does not set
// keep their zero values until Validate is called.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "problem reading config file '%s'", path)
	}

	conf := &Config{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrapf(err, "problem parsing config file '%s'", path)
	}

	return conf, nil
}

// Validate fills in defaults and reports settings that cannot be
// used.
func (c *Config) Validate() error {
	catcher := grip.NewBasicCatcher()

	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	catcher.NewWhen(c.Workers < 0, "workers must be positive")

	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.Root == "" {
		c.Root = "."
	}

	if c.StatusPort == 0 {
		c.StatusPort = defaultStatusPort
	}
	catcher.NewWhen(c.StatusPort < 0 || c.StatusPort > 65535, fmt.Sprintf("status port %d is out of range", c.StatusPort))

	catcher.NewWhen(c.AcceptRate < 0, "accept rate cannot be negative")
	if c.AcceptRate > 0 && c.Burst <= 0 {
		c.Burst = 1
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	catcher.NewWhen(!level.FromString(c.Log.Level).IsValid(), fmt.Sprintf("'%s' is not a valid log level", c.Log.Level))

	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}

	return catcher.Resolve()
}

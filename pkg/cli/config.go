package cli

import "github.com/arewefastyet/jsbuild/pkg/types"

// Config holds all CLI configuration, so commands never read globals
type Config struct {
	SettingsFile string
	Verbosity    string
	LogFile      string
	Version      string

	Source      string
	Revision    string
	Output      string
	BuildConfig string
	Force       bool
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		Verbosity:   "info",
		Version:     "dev",
		Source:      "mozilla",
		Output:      "output",
		BuildConfig: string(types.ConfigAuto),
	}
}

// Options returns the run request described by the flags
func (c *Config) Options() types.Options {
	return types.Options{
		Repository:    c.Source,
		Revision:      c.Revision,
		OutputDir:     c.Output,
		Configuration: types.Configuration(c.BuildConfig),
		Force:         c.Force,
	}
}

// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/renameio"
	"gopkg.in/yaml.v3"
)

// Version is the only settings schema version understood
const Version = "1.0"

// FileNames are the settings files looked up in a directory, in order
var FileNames = []string{"jsbuild.yaml", "jsbuild.yml", "jsbuild.json"}

// ErrNotFound indicates no settings file exists in the searched directory
var ErrNotFound = errors.New("no settings file found")

// Duration is a time.Duration written as "60s" or "15m" in settings files
type Duration time.Duration

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if tag := value.ShortTag(); tag == "!!int" || tag == "!!float" {
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Settings tunes how jsbuild syncs and builds. Every field has a default.
type Settings struct {
	Version        string   `json:"version" yaml:"version" validate:"required,eq=1.0"`
	Jobs           int      `json:"jobs" yaml:"jobs" validate:"min=1,max=512"`
	IdleTimeout    Duration `json:"idleTimeout" yaml:"idleTimeout" validate:"gt=0"`
	CommandTimeout Duration `json:"commandTimeout" yaml:"commandTimeout" validate:"gt=0"`

	// ToolchainDir holds pinned compilers; empty means <output>/.toolchains
	ToolchainDir string `json:"toolchainDir,omitempty" yaml:"toolchainDir,omitempty"`
	ClangURL     string `json:"clangUrl,omitempty" yaml:"clangUrl,omitempty" validate:"omitempty,url"`
	NDKURL       string `json:"ndkUrl,omitempty" yaml:"ndkUrl,omitempty" validate:"omitempty,url"`

	// Repositories adds or replaces short repository names
	Repositories map[string]string `json:"repositories,omitempty" yaml:"repositories,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	DepotBranch  string            `json:"depotBranch,omitempty" yaml:"depotBranch,omitempty"`

	Notifications bool   `json:"notifications" yaml:"notifications"`
	LogLevel      string `json:"logLevel" yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	LogFile       string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

// Manager handles configuration operations
type Manager struct {
	validate *validator.Validate
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// GetDefaultConfig returns the settings used when no file is present
func (m *Manager) GetDefaultConfig() *Settings {
	return &Settings{
		Version:        Version,
		Jobs:           6,
		IdleTimeout:    Duration(60 * time.Second),
		CommandTimeout: Duration(15 * time.Minute),
		DepotBranch:    "main",
		LogLevel:       "info",
	}
}

// LoadConfig loads settings from a JSON or YAML file on top of the defaults
func (m *Manager) LoadConfig(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := m.GetDefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfig returns the first settings file present in dir
func (m *Manager) FindConfig(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNotFound, dir)
}

// LoadOrDefault loads path, or the first settings file in dir when path is
// empty, falling back to the defaults when there is none
func (m *Manager) LoadOrDefault(path, dir string) (*Settings, string, error) {
	if path == "" {
		found, err := m.FindConfig(dir)
		if errors.Is(err, ErrNotFound) {
			return m.GetDefaultConfig(), "", nil
		}
		if err != nil {
			return nil, "", err
		}
		path = found
	}
	cfg, err := m.LoadConfig(path)
	return cfg, path, err
}

// ValidateConfig validates settings
func (m *Manager) ValidateConfig(cfg *Settings) error {
	if err := m.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SaveConfig writes settings to path, as JSON or YAML by extension
func (m *Manager) SaveConfig(path string, cfg *Settings) error {
	if err := m.ValidateConfig(cfg); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return renameio.WriteFile(path, data, 0644)
}

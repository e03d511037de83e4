// Package types provides the core types shared by the sync and build layers
package types

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Configuration is the target word-width/platform selector for one run
type Configuration string

const (
	ConfigAuto      Configuration = "auto"
	Config32Bit     Configuration = "32bit"
	Config64Bit     Configuration = "64bit"
	ConfigAndroid   Configuration = "android"
	ConfigAndroid64 Configuration = "android64"
)

// Configurations lists every accepted value, in CLI help order
var Configurations = []Configuration{ConfigAuto, Config32Bit, Config64Bit, ConfigAndroid, ConfigAndroid64}

var (
	// ErrInvalidConfiguration indicates a value outside the closed enumeration
	ErrInvalidConfiguration = errors.New("invalid build configuration")

	// ErrIncompatibleHost indicates a configuration the host cannot build
	ErrIncompatibleHost = errors.New("configuration not buildable on this host")
)

// ParseConfiguration validates s against the closed enumeration
func ParseConfiguration(s string) (Configuration, error) {
	c := Configuration(strings.TrimSpace(s))
	for _, known := range Configurations {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidConfiguration, s, configurationList())
}

func configurationList() string {
	names := make([]string, len(Configurations))
	for i, c := range Configurations {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// IsMobile reports whether the configuration targets Android
func (c Configuration) IsMobile() bool {
	return c == ConfigAndroid || c == ConfigAndroid64
}

// String implements fmt.Stringer
func (c Configuration) String() string {
	return string(c)
}

// Resolve turns auto into the host word size and rejects builds the host cannot produce.
// No work may start before this succeeds.
func (c Configuration) Resolve(host Host) (Configuration, error) {
	if _, err := ParseConfiguration(string(c)); err != nil {
		return "", err
	}

	resolved := c
	if c == ConfigAuto {
		resolved = host.WordSize
	}

	if resolved == Config64Bit && host.WordSize == Config32Bit {
		return "", fmt.Errorf("%w: cannot compile a 64bit binary on a 32bit architecture", ErrIncompatibleHost)
	}
	return resolved, nil
}

// Host describes the machine running the orchestrator
type Host struct {
	OS       string        // runtime.GOOS values: linux, darwin, windows
	WordSize Configuration // Config32Bit or Config64Bit
}

// CurrentHost reports the running host
func CurrentHost() Host {
	size := Config64Bit
	if strconv.IntSize == 32 {
		size = Config32Bit
	}
	return Host{OS: runtime.GOOS, WordSize: size}
}

// Is64Bit reports whether the host word size is 64 bits
func (h Host) Is64Bit() bool {
	return h.WordSize == Config64Bit
}

// EngineType tags the engine family in a manifest
type EngineType string

const (
	EngineFirefox EngineType = "firefox"
	EngineWebKit  EngineType = "webkit"
	EngineChrome  EngineType = "chrome"
	EngineServo   EngineType = "servo"
)

// PlatformAndroid is the manifest platform tag for mobile builds
const PlatformAndroid = "android"

// Manifest describes a completed build; it is written as info.json beside the source tree
type Manifest struct {
	EngineType EngineType `json:"engine_type" validate:"required,oneof=firefox webkit chrome servo"`
	Args       []string   `json:"args,omitempty"`
	Platform   string     `json:"platform,omitempty" validate:"omitempty,eq=android"`
	Revision   string     `json:"revision" validate:"required"`
	Binary     string     `json:"binary" validate:"required"`
	Shell      *bool      `json:"shell,omitempty"`
}

// UsesShell returns the shell flag, defaulting to true when unset
func (m *Manifest) UsesShell() bool {
	if m.Shell == nil {
		return true
	}
	return *m.Shell
}

// Bool returns a pointer to b
func Bool(b bool) *bool {
	return &b
}

// Options selects what a single orchestration run builds
type Options struct {
	Repository    string        `json:"repository" validate:"required"`
	Revision      string        `json:"revision,omitempty"`
	OutputDir     string        `json:"outputDir" validate:"required"`
	Configuration Configuration `json:"configuration" validate:"required,oneof=auto 32bit 64bit android android64"`
	Force         bool          `json:"force,omitempty"`
}

// BuildStatus represents the state of the most recent run
type BuildStatus string

const (
	BuildStatusIdle      BuildStatus = "idle"
	BuildStatusSyncing   BuildStatus = "syncing"
	BuildStatusBuilding  BuildStatus = "building"
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

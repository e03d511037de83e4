// Package cli provides the command-line interface for jsbuild
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arewefastyet/jsbuild/internal/engine"
	"github.com/arewefastyet/jsbuild/pkg/config"
	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

// EnvPrefix prefixes environment variables that stand in for flags, e.g. JSBUILD_SOURCE
const EnvPrefix = "JSBUILD"

// CLI encapsulates the command tree and everything it needs to run
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	viper    *viper.Viper
	logger   logger.Logger
	console  *logger.ConsoleLogger
	settings *config.Settings
	output   io.Writer
	errorOut io.Writer

	host      types.Host
	overrides engine.Dependencies
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		viper:    viper.New(),
		output:   os.Stdout,
		errorOut: os.Stderr,
		host:     types.CurrentHost(),
	}
	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// SetHost overrides the detected host (for testing)
func (c *CLI) SetHost(h types.Host) {
	c.host = h
}

// SetDependencies replaces the default run collaborators with the non-nil fields of deps
func (c *CLI) SetDependencies(deps engine.Dependencies) {
	c.overrides = deps
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.Execute()
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "jsbuild",
		Short: "Sync and build JavaScript engine shells",
		Long: `jsbuild brings a JavaScript engine checkout to a revision, builds its
shell for the requested configuration and writes info.json describing the binary.

Without a subcommand it builds, so "jsbuild -s v8 -c android" is a full run.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initializeConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context())
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("jsbuild v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newBuildCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newCleanCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVarP(&c.config.Source, "source", "s", c.config.Source, "repository short name (mozilla, webkit, v8, servo, mozilla-try) or URL")
	flags.StringVarP(&c.config.Revision, "rev", "r", c.config.Revision, "revision to build (default: tip)")
	flags.StringVarP(&c.config.Output, "output", "o", c.config.Output, "folder holding the checkout and build")
	flags.StringVarP(&c.config.BuildConfig, "config", "c", c.config.BuildConfig, "build configuration (auto, 32bit, 64bit, android, android64)")
	flags.BoolVarP(&c.config.Force, "force", "f", c.config.Force, "remove the previous build output first")

	flags.StringVar(&c.config.SettingsFile, "settings", "", "settings file (default: jsbuild.yaml or jsbuild.json in the current directory)")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", c.config.Verbosity, "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.LogFile, "log-file", "", "also write logs to this file")
}

// initializeConfig layers flags over JSBUILD_* environment variables and
// loads the settings file
func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	v := c.viper
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	c.config.Source = v.GetString("source")
	c.config.Revision = v.GetString("rev")
	c.config.Output = v.GetString("output")
	c.config.BuildConfig = v.GetString("config")
	c.config.Force = v.GetBool("force")
	c.config.SettingsFile = v.GetString("settings")
	c.config.LogFile = v.GetString("log-file")
	c.config.Verbosity = v.GetString("verbosity")

	manager := config.NewManager()
	settings, path, err := manager.LoadOrDefault(c.config.SettingsFile, ".")
	if err != nil {
		// init is how a missing settings file gets created
		if cmd.Name() != "init" {
			return err
		}
		settings, path = manager.GetDefaultConfig(), ""
	}
	c.settings = settings

	level := c.config.Verbosity
	if !cmd.Flags().Changed("verbosity") && !v.IsSet("verbosity") && settings.LogLevel != "" {
		level = settings.LogLevel
	}
	logFile := c.config.LogFile
	if logFile == "" {
		logFile = settings.LogFile
	}

	if c.output == os.Stdout {
		c.logger = logger.CreateLogger(logFile, level)
		c.console = logger.NewConsoleLogger()
	} else {
		c.logger = logger.CreateLoggerWithOutput(level, c.output)
		c.console = logger.NewConsoleLoggerWithOutput(c.output)
	}

	if path != "" {
		c.logger.Debug("Using settings file", logger.WithField("file", path))
	}
	return nil
}

func (c *CLI) printSuccess(message string) {
	c.console.Success(message)
}

func (c *CLI) printInfo(message string) {
	c.console.Info(message)
}

func (c *CLI) printWarning(message string) {
	c.console.Warn(message)
}

func (c *CLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.output, format, args...)
}

// ExecuteWithVersion runs the CLI on os.Args
func ExecuteWithVersion(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).ExecuteContext(context.Background(), os.Args[1:])
}

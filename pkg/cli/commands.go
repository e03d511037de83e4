package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arewefastyet/jsbuild/internal/engine"
	"github.com/arewefastyet/jsbuild/internal/state"
	"github.com/arewefastyet/jsbuild/pkg/manifest"
	"github.com/arewefastyet/jsbuild/pkg/process"
	"github.com/arewefastyet/jsbuild/pkg/types"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Sync the repository and build its shell",
		Long: `Bring the output folder to the requested revision of the repository,
build the engine found there and write info.json next to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context())
		},
	}
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last run and the current manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus()
		},
	}
}

func (c *CLI) newCleanCmd() *cobra.Command {
	var withState bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the build output of the checked out engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runClean(withState)
		},
	}
	cmd.Flags().BoolVar(&withState, "state", false, "also forget the recorded run")
	return cmd
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			c.printf("jsbuild v%s\n", c.config.Version)
		},
	}
}

func (c *CLI) newEngine() *engine.Engine {
	factory := engine.NewDependencyFactory(c.config.Output, c.logger, c.settings)
	return engine.New(c.settings, c.host, c.logger, factory.CreateWithOverrides(c.overrides))
}

func (c *CLI) runBuild(ctx context.Context) error {
	c.console.Banner("BUILD")

	pm := process.NewManager(c.logger)
	ctx = pm.Start(ctx)
	defer pm.Stop()

	res, err := c.newEngine().Run(ctx, c.config.Options())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.printWarning("Build interrupted")
		}
		return err
	}

	c.printSuccess(fmt.Sprintf("Built %s revision %s in %s", res.Family, res.Manifest.Revision, res.Duration.Round(time.Second)))
	c.printInfo(fmt.Sprintf("Binary: %s", res.Manifest.Binary))
	c.printInfo(fmt.Sprintf("Manifest: %s", manifest.Path(c.config.Output)))
	return nil
}

func (c *CLI) runStatus() error {
	recorder := state.NewRecorder(c.config.Output, c.logger)

	run, err := state.Load(recorder.Path())
	if errors.Is(err, os.ErrNotExist) {
		c.printInfo(fmt.Sprintf("No runs recorded in %s", c.config.Output))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read run state: %w", err)
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "REPOSITORY\t%s\n", run.Repository)
	fmt.Fprintf(w, "CONFIG\t%s\n", run.Configuration)
	fmt.Fprintf(w, "STATUS\t%s\n", colorStatus(run.Status))
	if !run.StartedAt.IsZero() {
		fmt.Fprintf(w, "STARTED\t%s\n", run.StartedAt.Format(time.DateTime))
	}
	if run.Duration > 0 {
		fmt.Fprintf(w, "DURATION\t%s\n", run.Duration.Round(time.Second))
	}
	fmt.Fprintf(w, "BUILDS\t%d\n", run.BuildCount)
	fmt.Fprintf(w, "FAILURES\t%d\n", run.FailureCount)
	if run.LastError != "" {
		fmt.Fprintf(w, "LAST ERROR\t%s\n", run.LastError)
	}

	if m, err := manifest.Read(c.config.Output); err == nil {
		fmt.Fprintf(w, "ENGINE\t%s\n", m.EngineType)
		fmt.Fprintf(w, "REVISION\t%s\n", m.Revision)
		fmt.Fprintf(w, "BINARY\t%s\n", m.Binary)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if locked, err := recorder.IsLocked(); err == nil && locked {
		c.printWarning(fmt.Sprintf("Process %d is still running against this folder", run.ProcessID))
	}
	return nil
}

func (c *CLI) runClean(withState bool) error {
	removed, err := c.newEngine().Clean(c.config.Output, types.Configuration(c.config.BuildConfig))
	if err != nil {
		return err
	}
	c.printSuccess(fmt.Sprintf("Removed %s", removed))

	if withState {
		if err := state.NewRecorder(c.config.Output, c.logger).Remove(); err != nil {
			return err
		}
		c.printSuccess("Forgot recorded run")
	}
	return nil
}

func colorStatus(s types.BuildStatus) string {
	switch s {
	case types.BuildStatusSucceeded:
		return color.GreenString(string(s))
	case types.BuildStatusFailed:
		return color.RedString(string(s))
	case types.BuildStatusSyncing, types.BuildStatusBuilding:
		return color.YellowString(string(s))
	}
	return string(s)
}

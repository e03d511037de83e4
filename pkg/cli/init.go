package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arewefastyet/jsbuild/pkg/config"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var (
		force  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the defaults",
		Long: `Write jsbuild.yaml (or jsbuild.json) in the current directory with every
setting at its default, ready to edit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(format, force)
		},
	}

	cmd.Flags().BoolVar(&force, "overwrite", false, "overwrite an existing settings file")
	cmd.Flags().StringVar(&format, "format", "yaml", "file format (yaml, json)")
	return cmd
}

func (c *CLI) runInit(format string, force bool) error {
	path := c.config.SettingsFile
	if path == "" {
		switch format {
		case "yaml":
			path = "jsbuild.yaml"
		case "json":
			path = "jsbuild.json"
		default:
			return fmt.Errorf("unknown format %q (want yaml or json)", format)
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --overwrite to replace it", path)
	}

	m := config.NewManager()
	if err := m.SaveConfig(path, m.GetDefaultConfig()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	c.printSuccess(fmt.Sprintf("Created settings at %s", path))
	return nil
}

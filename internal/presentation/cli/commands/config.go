package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/webdistill/internal/infrastructure/config"
	"github.com/jbctechsolutions/webdistill/internal/presentation/cli/output"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the defaults",
		Long: `Write the default configuration to path, or to the --config path, or to
~/.webdistill/config.yaml. A path ending in .toml is written as TOML.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: standalone,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			return initConfig(GetFormatter(), path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func initConfig(formatter *output.Formatter, path string, force bool) error {
	loader, err := config.NewLoader("")
	if err != nil {
		return err
	}
	if path == "" {
		path = loader.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := loader.Save(config.NewDefaultConfig(), path); err != nil {
		return err
	}
	return formatter.Success("wrote %s", path)
}

func newConfigShowCmd() *cobra.Command {
	var asTOML bool

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Long:        `Print the configuration after defaults and WEBDISTILL_* environment overrides are applied.`,
		Annotations: standalone,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(globalFlags.ConfigFile)
			if err != nil {
				return err
			}
			return showConfig(GetFormatter(), cfg, path, asTOML)
		},
	}

	cmd.Flags().BoolVar(&asTOML, "toml", false, "print as TOML instead of YAML")
	return cmd
}

func showConfig(formatter *output.Formatter, cfg *config.Config, path string, asTOML bool) error {
	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(cfg)
	}

	data, err := config.Marshal(cfg, asTOML)
	if err != nil {
		return err
	}
	formatter.Println("# %s", path)
	_, err = formatter.Writer().Write(data)
	return err
}

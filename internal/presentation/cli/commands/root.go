// Package commands implements the CLI commands for webdistill.
package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/webdistill/internal/application"
	"github.com/jbctechsolutions/webdistill/internal/infrastructure/config"
	"github.com/jbctechsolutions/webdistill/internal/presentation/cli/output"
)

// Version information - set at build time via ldflags.
var (
	Version   = "0.3.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GlobalFlags holds the global CLI flags.
type GlobalFlags struct {
	ConfigFile string
	EnvFile    string
	Output     string
	Verbose    bool
	NoColor    bool
}

// AppContext holds the application runtime context.
type AppContext struct {
	Config     *config.Config
	ConfigPath string
	Formatter  *output.Formatter
	Container  *application.Container
}

var (
	globalFlags GlobalFlags
	appCtx      *AppContext
	appCtxMu    sync.RWMutex
)

// standaloneAnnotation marks commands that run without a container.
const standaloneAnnotation = "webdistill/standalone"

var standalone = map[string]string{standaloneAnnotation: "true"}

func isStandalone(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "completion", cobra.ShellCompRequestCmd:
		return true
	}
	return cmd.Annotations[standaloneAnnotation] == "true"
}

// NewRootCmd creates the root command for the webdistill CLI.
func NewRootCmd() *cobra.Command {
	globalFlags = GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:   "webdistill",
		Short: "Run LLM instructions over web pages within a token budget",
		Long: `webdistill fetches pages, converts them to markdown, text or HTML and
runs a set of instructions on each one with a language model.

Pages that do not fit the model context are skipped, truncated or split
into chunks according to the configured policy. Every processed page
produces one record with the answer and its token usage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(globalFlags.EnvFile); err != nil {
				return err
			}
			if isStandalone(cmd) {
				return initializeFormatter(cmd)
			}
			return initializeApp(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "config file path (default: ~/.webdistill/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.EnvFile, "env-file", "", "load environment variables from this file (default: .env if present)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "output format: text, json, table")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewModelsCmd())
	rootCmd.AddCommand(NewProvidersCmd())
	rootCmd.AddCommand(NewSchemaCmd())
	rootCmd.AddCommand(NewResultsCmd())
	rootCmd.AddCommand(NewCacheCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

// loadEnvFile loads path, or .env when path is empty and the file exists.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func newFormatter(cmd *cobra.Command) (*output.Formatter, error) {
	format, err := output.ParseFormat(globalFlags.Output)
	if err != nil {
		return nil, err
	}
	opts := []output.Option{
		output.WithFormat(format),
		output.WithWriter(cmd.OutOrStdout()),
	}
	if globalFlags.NoColor || format == output.FormatJSON {
		opts = append(opts, output.WithColor(false))
	}
	return output.NewFormatter(opts...), nil
}

func initializeFormatter(cmd *cobra.Command) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	setAppContext(&AppContext{Formatter: formatter})
	return nil
}

// initializeApp loads configuration and builds the container.
func initializeApp(cmd *cobra.Command) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	cfg, path, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := application.NewContainer(cfg, globalFlags.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	setAppContext(&AppContext{
		Config:     cfg,
		ConfigPath: path,
		Formatter:  formatter,
		Container:  container,
	})
	return nil
}

// loadConfig loads configuration from the given file or the default
// location and applies environment overrides.
func loadConfig(configPath string) (*config.Config, string, error) {
	loader, err := config.NewLoader("")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create config loader: %w", err)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = loader.LoadFromFile(configPath)
	} else {
		configPath = loader.DefaultConfigPath()
		cfg, err = loader.Load(configPath)
	}
	if err != nil {
		return nil, "", err
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, configPath, nil
}

func setAppContext(ctx *AppContext) {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()
	appCtx = ctx
}

// GetAppContext returns the current application context, or nil.
func GetAppContext() *AppContext {
	appCtxMu.RLock()
	defer appCtxMu.RUnlock()
	return appCtx
}

// GetFormatter returns the output formatter, or a default one before
// initialization.
func GetFormatter() *output.Formatter {
	if ctx := GetAppContext(); ctx != nil && ctx.Formatter != nil {
		return ctx.Formatter
	}
	return output.NewFormatter()
}

// GetContainer returns the application container, or nil.
func GetContainer() *application.Container {
	if ctx := GetAppContext(); ctx != nil {
		return ctx.Container
	}
	return nil
}

func shutdown() error {
	if c := GetContainer(); c != nil {
		return c.Close()
	}
	return nil
}

// Execute runs the root command. An interrupt cancels the command context,
// which stops in-flight pages.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	formatter := GetFormatter()
	if ctx.Err() != nil {
		formatter.Warning("interrupted")
		_ = shutdown()
		return 130
	}
	formatter.Error("%s", err.Error())
	_ = shutdown()
	return 1
}

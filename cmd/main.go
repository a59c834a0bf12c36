package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ngld/rackbuild/pkg/config"
)

var (
	cfg           *config.Config
	invocationDir string
	logger        = zerolog.New(NewConsoleWriter(os.Stderr))
)

var rootCmd = &cobra.Command{
	Use:   "rackbuild",
	Short: "Builds the rack host and its plugins",
	Long: `Builds the rack host application in the current directory, then clones every
plugin listed in modules.json into plugins/ and builds it with the same commands.

Running rackbuild without a subcommand is the same as running "rackbuild build".`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd)
	},
}

func init() {
	addGlobalFlags(rootCmd)
	addBuildFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "rackbuild.toml", "config file")
	flags.String("root", "", "host application root (defaults to the current directory)")
	flags.String("manifest", "", "plugin manifest (defaults to modules.json)")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.Bool("json", false, "log JSON lines instead of colored console output")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	invocationDir, err = os.Getwd()
	if err != nil {
		return eris.Wrap(err, "Failed to retrieve the current working directory")
	}

	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	loaded, loader := config.Loader(cfgFile)
	if err = loader.Load(); err != nil {
		return eris.Wrap(err, "Failed to load config")
	}
	cfg = loaded

	if err = applyFlags(cmd, cfg); err != nil {
		return err
	}

	if err = cfg.Validate(); err != nil {
		return eris.Wrap(err, "Failed to parse config")
	}

	if cfg.Log.JSON {
		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			return eris.ToJSON(err, true)
		}
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		writer := NewConsoleWriter(os.Stderr)
		writer.debug = writer.debug || cfg.Debug
		logger = zerolog.New(writer)
	}
	logger = logger.Level(cfg.LogLevel())

	return nil
}

// applyFlags copies explicitly passed flags over the values from the config file and environment
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	stringFlags := map[string]*string{
		"root":         &cfg.Root,
		"manifest":     &cfg.Manifest,
		"log-level":    &cfg.Log.Level,
		"profile":      &cfg.Profile,
		"on-error":     &cfg.OnError,
		"remote":       &cfg.Remote,
		"metrics-file": &cfg.Metrics.File,
	}
	for name, dest := range stringFlags {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}

		*dest, err = flags.GetString(name)
		if err != nil {
			return err
		}
	}

	boolFlags := map[string]*bool{
		"json":       &cfg.Log.JSON,
		"clone-host": &cfg.Host.Clone,
		"dry":        &cfg.DryRun,
	}
	for name, dest := range boolFlags {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}

		*dest, err = flags.GetBool(name)
		if err != nil {
			return err
		}
	}

	if flags.Lookup("no-ledger") != nil && flags.Changed("no-ledger") {
		disabled, err := flags.GetBool("no-ledger")
		if err != nil {
			return err
		}
		cfg.Ledger.Enabled = !disabled
	}

	if flags.Lookup("jobs") != nil && flags.Changed("jobs") {
		cfg.Jobs, err = flags.GetInt("jobs")
		if err != nil {
			return err
		}
	}

	return nil
}

// Execute runs the root command and exits with status 1 on failure
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("rackbuild failed")
		cancel()
		os.Exit(1)
	}
}

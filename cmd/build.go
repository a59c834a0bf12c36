package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ngld/rackbuild/pkg"
	"github.com/ngld/rackbuild/pkg/buildsys"
	"github.com/ngld/rackbuild/pkg/config"
	"github.com/ngld/rackbuild/pkg/ledger"
	"github.com/ngld/rackbuild/pkg/metrics"
)

// newExecutor creates the executor used by build
var newExecutor = func() buildsys.Executor {
	return buildsys.NewShellExecutor()
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Builds the host and every plugin listed in the manifest",
	Long: `Runs "git submodule update --init --recursive", "make dep" and "make" in the host
directory, then clones every plugin from the manifest into plugins/, checks out
the requested branch and runs the same commands in the plugin directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd)
	},
}

func init() {
	addBuildFlags(buildCmd)
	rootCmd.AddCommand(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntP("jobs", "j", 0, "parallel make jobs; 0 uses the number of CPUs")
	flags.String("profile", "", "build profile (release or asan)")
	flags.String("on-error", "", "what to do when a command fails (continue or fail-fast)")
	flags.String("remote", "", "base URL repositories are cloned from")
	flags.Bool("clone-host", false, "clone the host application before building it")
	flags.BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	flags.Bool("no-ledger", false, "don't record this run in the state database")
	flags.String("metrics-file", "", "write Prometheus metrics to this file after the run")
}

func getProgressBar(total int) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" || cfg.Log.JSON {
		return progressbar.NewOptions(total, progressbar.OptionSetVisibility(false))
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("plugins"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
	)
}

func prepareBuild() (buildsys.Options, error) {
	opts, err := cfg.Options(invocationDir)
	if err != nil {
		return opts, err
	}

	opts.Root, err = pkg.ResolveHostRoot(opts.Root)
	if err != nil {
		return opts, err
	}

	return opts, nil
}

func runBuild(cmd *cobra.Command) error {
	ctx := buildsys.WithLogger(cmd.Context(), &logger)

	pkg.PrintTask("Loading config")
	opts, err := prepareBuild()
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	orchestrator := &buildsys.Orchestrator{
		Options:  opts,
		Executor: newExecutor(),
		Manifest: buildsys.ManifestFile(cfg.ManifestPath(invocationDir)),
	}
	if !opts.DryRun {
		orchestrator.Progress = func(done, total int) {
			if bar == nil {
				bar = getProgressBar(total)
			}
			if err := bar.Set(done); err != nil {
				logger.Debug().Err(err).Msg("Failed to update progress bar")
			}
		}
	}

	pkg.PrintTask(fmt.Sprintf("Building %s with %d jobs", opts.HostDir(), opts.Jobs))
	report, runErr := orchestrator.Run(ctx)

	if cfg.Ledger.Enabled && !opts.DryRun {
		saveReport(report, cfg, opts.HostDir())
	}

	if cfg.Metrics.File != "" && !opts.DryRun {
		collector := metrics.New()
		collector.Observe(report)
		err = collector.WriteTextfile(config.ResolvePath(invocationDir, cfg.Metrics.File))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to write metrics")
		}
	}

	if runErr != nil {
		return runErr
	}

	failed := report.FailedTargets()
	if len(failed) > 0 {
		for _, name := range failed {
			pkg.PrintError(name)
		}
		return eris.Errorf("%d step(s) failed in %s", report.Failures(), strings.Join(failed, ", "))
	}

	pkg.PrintTask("Done")
	return nil
}

func saveReport(report *buildsys.Report, cfg *config.Config, hostDir string) {
	path := cfg.LedgerPath(hostDir)
	store, err := ledger.Open(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to open state database")
		return
	}
	defer store.Close()

	err = store.SaveRun(report)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to record run")
		return
	}

	logger.Debug().Str("run", report.RunID).Str("path", path).Msg("Recorded run")
}

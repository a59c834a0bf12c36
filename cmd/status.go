package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ngld/rackbuild/pkg"
	"github.com/ngld/rackbuild/pkg/buildsys"
	"github.com/ngld/rackbuild/pkg/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the result of the last recorded build",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := prepareBuild()
		if err != nil {
			return err
		}

		path := cfg.LedgerPath(opts.HostDir())
		if _, err = os.Stat(path); errors.Is(err, os.ErrNotExist) {
			pkg.PrintTask("No builds recorded yet")
			return nil
		}

		store, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		all, err := cmd.Flags().GetBool("all")
		if err != nil {
			return err
		}

		if all {
			runs, err := store.ListRuns()
			if err != nil {
				return err
			}

			for _, run := range runs {
				color := "green"
				if run.Failures > 0 || run.Aborted {
					color = "red"
				}
				colorstring.Printf("[%s]%s[reset]  %s  %d targets, %d failed steps\n",
					color, run.RunID, run.Started.Format(time.RFC822), run.Targets, run.Failures)
			}
			return nil
		}

		runID, err := cmd.Flags().GetString("run")
		if err != nil {
			return err
		}

		var report *buildsys.Report
		if runID != "" {
			report, err = store.Run(runID)
		} else {
			report, err = store.LastRun()
		}
		if err != nil {
			return err
		}

		if report == nil {
			if runID != "" {
				return eris.Errorf("Run %s not found", runID)
			}
			pkg.PrintTask("No builds recorded yet")
			return nil
		}

		printReport(report)
		return nil
	},
}

func printReport(report *buildsys.Report) {
	pkg.PrintTask(fmt.Sprintf("Run %s started %s (%s, %d jobs, %s)",
		report.RunID, report.Started.Format(time.RFC822), report.Profile, report.Jobs,
		report.Finished.Sub(report.Started).Round(time.Second)))

	for _, target := range report.Targets {
		line := target.Name
		if target.Version != "" {
			line += " " + target.Version
		}
		if target.Branch != "" {
			line += " @" + target.Branch
		}

		switch target.Status() {
		case buildsys.StepFailed:
			pkg.PrintError(line)
			for _, step := range target.Steps {
				if step.Status == buildsys.StepFailed {
					fmt.Printf("      %s: %s\n", step.Name, step.Error)
				}
			}
		case buildsys.StepSkipped:
			colorstring.Printf("[yellow][bold]  ->[reset] %s (skipped)\n", line)
		default:
			pkg.PrintSubtask(line)
		}
	}

	if report.Aborted != "" {
		pkg.PrintError("aborted: " + report.Aborted)
	}
}

func init() {
	statusCmd.Flags().Bool("all", false, "list every recorded run")
	statusCmd.Flags().String("run", "", "show the run with this ID instead of the last one")
	rootCmd.AddCommand(statusCmd)
}

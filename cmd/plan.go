package cmd

import (
	"fmt"

	"github.com/mitchellh/colorstring"
	"github.com/spf13/cobra"

	"github.com/ngld/rackbuild/pkg/buildsys"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Prints the commands a build would run without executing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := prepareBuild()
		if err != nil {
			return err
		}
		opts.DryRun = true

		orchestrator := &buildsys.Orchestrator{
			Options:  opts,
			Manifest: buildsys.ManifestFile(cfg.ManifestPath(invocationDir)),
		}

		// no logger is attached so the listing below is the only output
		report, err := orchestrator.Run(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, target := range report.Targets {
			colorstring.Fprintf(out, "[blue][bold]==>[default] %s[reset] (%s)\n", target.Name, target.Dir)
			for _, step := range target.Steps {
				fmt.Fprintf(out, "    %-10s %s\n", step.Name, step.Command)
			}
		}

		return nil
	},
}

func init() {
	planCmd.Flags().IntP("jobs", "j", 0, "parallel make jobs; 0 uses the number of CPUs")
	planCmd.Flags().String("profile", "", "build profile (release or asan)")
	planCmd.Flags().Bool("clone-host", false, "include the host clone in the plan")
	rootCmd.AddCommand(planCmd)
}

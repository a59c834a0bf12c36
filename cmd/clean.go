package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ngld/rackbuild/pkg"
	"github.com/ngld/rackbuild/pkg/manifest"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [repo...]",
	Short: "Removes plugin checkouts so the next build clones them again",
	Long: `Deletes plugins/<repo> for each repository given on the command line. Without
arguments, every plugin listed in the manifest is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := prepareBuild()
		if err != nil {
			return err
		}

		dry, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		m, err := manifest.Load(cfg.ManifestPath(invocationDir))
		if err != nil {
			return err
		}

		repos := args
		if len(repos) == 0 {
			for _, plugin := range m.Plugins {
				repos = append(repos, plugin.Repo)
			}
		}

		pluginsDir := opts.PluginsDir()
		for _, repo := range repos {
			if _, ok := m.Find(repo); !ok {
				return eris.Errorf("%s is not listed in the manifest", repo)
			}

			if dry {
				pkg.PrintSubtask("would remove plugins/" + repo)
				continue
			}

			removed, err := pkg.RemoveWithin(pluginsDir, repo)
			if err != nil {
				return err
			}

			if removed {
				pkg.PrintSubtask("removed plugins/" + repo)
			}
		}

		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolP("dry", "n", false, "only print what would be removed")
	rootCmd.AddCommand(cleanCmd)
}

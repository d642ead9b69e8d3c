package cmd

import (
	"github.com/spf13/cobra"
)

var (
	listAll    bool
	listDeps   string
	listHasDep string
)

var listCmd = &cobra.Command{
	Use:   "bundle-list",
	Short: "List installed bundles, installable bundles, and dependencies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := newManager()
		if err != nil {
			return err
		}

		switch {
		case listDeps != "":
			return mgr.ShowIncluded(listDeps)
		case listHasDep != "":
			return mgr.ShowRequiredBy(listHasDep, listAll)
		case listAll:
			return mgr.ListAll()
		default:
			return mgr.ListLocal()
		}
	},
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false,
		"List all available bundles for the current OS version")
	listCmd.Flags().StringVarP(&listDeps, "deps", "D", "",
		"List bundles included by BUNDLE")
	listCmd.Flags().StringVar(&listHasDep, "has-dep", "",
		"List dependency tree of all bundles that have BUNDLE as a dependency")
	rootCmd.AddCommand(listCmd)
}

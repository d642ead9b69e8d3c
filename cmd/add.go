package cmd

import (
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "bundle-add [bundle...]",
	Short: "Install one or more bundles and their dependencies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := newManager()
		if err != nil {
			return err
		}
		return mgr.Add(args)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}

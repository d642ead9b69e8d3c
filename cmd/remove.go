package cmd

import (
	"github.com/spf13/cobra"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "bundle-remove [bundle...]",
	Short: "Remove one or more installed bundles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, ctx, err := newManager()
		if err != nil {
			return err
		}
		ctx.Force = removeForce
		return mgr.Remove(args)
	},
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "x", false,
		"Removes a bundle along with all the bundles that depend on it")
	rootCmd.AddCommand(removeCmd)
}

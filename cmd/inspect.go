package cmd

import (
	"github.com/encodeous/routesim/core"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <topology>",
	Aliases: []string{"i"},
	Short:   "Runs a simulation and dumps every forwarding table",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.Inspect = true
		return core.Bootstrap(args[0], opts)
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addRunFlags(inspectCmd)
}

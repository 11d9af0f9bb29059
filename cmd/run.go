package cmd

import (
	"github.com/encodeous/routesim/core"
	"github.com/encodeous/routesim/state"
	"github.com/spf13/cobra"
)

func runOptions(cmd *cobra.Command) core.RunOptions {
	opts := core.RunOptions{Out: cmd.OutOrStdout()}
	if ok, _ := cmd.Flags().GetBool("ls"); ok {
		opts.Variant = core.LinkState
	}
	opts.Verbose, _ = cmd.Flags().GetBool("verbose")
	opts.LogPath, _ = cmd.Flags().GetString("log-file")
	opts.SnapshotPath, _ = cmd.Flags().GetString("snapshot")
	opts.JSON, _ = cmd.Flags().GetBool("json")
	opts.DebugAddr, _ = cmd.Flags().GetString("debug")
	return opts
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("ls", false, "Use the link state protocol instead of distance vector")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	cmd.Flags().StringP("log-file", "l", "", "Also write logs to this file")
	cmd.Flags().StringP("snapshot", "s", "", "Write the final route snapshot to this file")
	cmd.Flags().Bool("json", false, "Write the snapshot as JSON instead of YAML")
	cmd.Flags().String("debug", "", "Serve /debug/metrics and /debug/vars on this address")
	cmd.Flags().Lookup("debug").NoOptDefVal = state.DebugAddr
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <topology>",
	Short: "Run a simulation",
	Long:  `Runs the simulation described by the topology file until its end time, then prints every observed route and whether it is correct.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return core.Bootstrap(args[0], runOptions(cmd))
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

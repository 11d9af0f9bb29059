package cmd

import (
	"fmt"

	"github.com/encodeous/routesim/core"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <topology>",
	Short: "Validates a topology and prints it in normalized form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.ReadTopology(args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Topology is valid")
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
	GroupID: "topo",
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

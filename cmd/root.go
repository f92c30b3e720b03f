// Package cmd implements the daemon's CLI surface using cobra.
package cmd

import (
	"github.com/spf13/cobra"
)

var configFile string

// rootCmd is the base command when flux is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "flux",
	Short: "flux runs a streaming dataflow execution core",
	Long: `flux is the runtime core of a streaming dataflow framework: typed
nodes wired into pipelines by a declarative config, with bounded-queue
backpressure, control-signal propagation, and cooperative shutdown.`,
	Version: "0.1.0",
}

// Execute adds all child commands to rootCmd and runs it. Called once by
// main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/flux/config.yml",
		"daemon config file path")

	rootCmd.AddCommand(serveCmd)
}

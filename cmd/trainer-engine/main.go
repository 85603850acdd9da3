package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "trainer-engine",
		Short:         "Multi-sensor telemetry and structured workout engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	root.PersistentFlags().Bool("verbose", false, "log every dropped frame and diagnostic")

	root.AddCommand(newRunCmd(&configFile))
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newWorkoutCmd())
	return root
}

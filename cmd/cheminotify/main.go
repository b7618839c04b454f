// cheminotify watches ChemiNot for an open seat in a course and alerts the
// operator when one appears.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "cheminotify",
		Short:        "Course availability automation for ChemiNot",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or .env)")

	run := newRunCmd(&cfgPath)
	root.AddCommand(run, newClassifyCmd(&cfgPath), newHistoryCmd(&cfgPath), newCoordsCmd())

	// Bare "cheminotify" starts the automation.
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())

	return root
}

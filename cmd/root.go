package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "basket-slippage",
	Short: "Batch conversion slippage simulator",
	Long: `Repeatedly deposits a fixed amount of base asset into a batched
basket-token converter, mints, values the resulting basket at current
component prices and reports the slippage of every cycle.

The simulation runs against an in-process paper market by default or
against a forked chain over JSON-RPC in live mode.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tinyrange-pi/m68kjit/internal/jitlog"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "rtgjit",
	Short: "m68k-to-AArch64 JIT core exercise harness",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			jitlog.SetLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(translateCmd, disasmCmd, runCmd)
}

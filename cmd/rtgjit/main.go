// Command rtgjit is a manual exercise harness around the translator
// core: translate/disasm/run subcommands for feeding it a raw 68K
// binary blob and looking at what it produces. It is not the
// guest-memory dispatcher spec.md treats as an external collaborator
// (§1); nothing here decides when to retranslate or chains blocks
// together.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

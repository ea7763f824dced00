package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file>",
	Short: "disassemble a raw AArch64 code blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		lines, err := emit.Disassemble(data)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	},
}

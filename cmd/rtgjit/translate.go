package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/translator"
)

var (
	translateAddr  uint32
	translateModel string
	translateDBF   bool
)

var translateCmd = &cobra.Command{
	Use:   "translate <file>",
	Short: "translate one basic block of 68K code and print the AArch64 it produces",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		model, err := parseModel(translateModel)
		if err != nil {
			return err
		}

		icache := newFlatMemory(translateAddr, data)
		res, err := translator.Translate(icache, translateAddr, emit.RegScratch,
			translator.WithModel(model),
			translator.WithDBFSlowdown(translateDBF),
		)
		if err != nil {
			return err
		}

		fmt.Printf("start=%#x instructions=%d bytes=%d fixups=%d\n",
			res.StartPC, res.Instructions, len(res.Code), len(res.Fixups))
		lines, err := emit.Disassemble(res.Code)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	},
}

func init() {
	translateCmd.Flags().Uint32Var(&translateAddr, "addr", 0, "starting guest address")
	translateCmd.Flags().StringVar(&translateModel, "model", "68000", "target CPU model: 68000, 68010, or 68020")
	translateCmd.Flags().BoolVar(&translateDBF, "dbf-slowdown", false, "pad self-looping DBF with a stall sequence")
}

func parseModel(s string) (guest.CPUModel, error) {
	switch s {
	case "68000":
		return guest.Model68000, nil
	case "68010":
		return guest.Model68010, nil
	case "68020":
		return guest.Model68020, nil
	default:
		return 0, fmt.Errorf("unknown model %q (want 68000, 68010, or 68020)", s)
	}
}

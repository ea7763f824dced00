package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyrange-pi/m68kjit/internal/codebuf"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/translator"
)

var (
	runAddr  uint32
	runModel string
)

// runCmd translates one block and carries its code through the full
// codebuf write/finalize lifecycle (§6 "Emit buffer": a writable
// region that becomes executable after a cache-flush), proving the
// mmap/mprotect path end to end. It deliberately stops short of
// jumping into the result: entering translated code needs the guest-
// state setup and calling-convention bridge spec.md names as the
// dispatcher's job (§1 Non-goals), which this harness is not.
var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "translate and finalize one block as executable memory, without entering it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		model, err := parseModel(runModel)
		if err != nil {
			return err
		}

		icache := newFlatMemory(runAddr, data)
		res, err := translator.Translate(icache, runAddr, emit.RegScratch, translator.WithModel(model))
		if err != nil {
			return err
		}

		region, err := codebuf.New(len(res.Code))
		if err != nil {
			return err
		}
		defer region.Close()
		copy(region.Bytes(), res.Code)
		if err := region.Finalize(); err != nil {
			return err
		}

		fmt.Printf("translated %d instructions (%d bytes) at %#x, mapped executable at %#x\n",
			res.Instructions, len(res.Code), res.StartPC, region.Addr())
		if len(res.Fixups) > 0 {
			fmt.Printf("%d pending fixup(s) to resolve before chaining or entering this block:\n", len(res.Fixups))
			for _, f := range res.Fixups {
				fmt.Printf("  offset=%#x kind=%d target=%#x vector=%d\n", f.EmitOffset, f.Kind, f.Target, f.Vector)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Uint32Var(&runAddr, "addr", 0, "starting guest address")
	runCmd.Flags().StringVar(&runModel, "model", "68000", "target CPU model: 68000, 68010, or 68020")
}

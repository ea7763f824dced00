// Package decode implements DecodeDispatch (§4.1): mapping a 16-bit
// opcode to its handler and metadata, line by line (upper 4 bits of
// the opcode select one of 16 per-line tables).
//
// Grounded on original_source/src/M68k_LINE{0,4,5,C,E}.c (one source
// file per 68K line in the original) and on
// tinyrange-rtg/std/compiler/backend.go's GenerateELF dispatch-by-
// field pattern, generalized from "dispatch by target triple" to
// "dispatch by opcode line".
package decode

import (
	"fmt"

	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

// EmitFn is the signature every per-instruction emitter implements
// (§4.5): given the block and the already-fetched opcode word, emit
// AArch64 code and report how many guest instructions were consumed
// (almost always 1; >1 is a valid peephole fusion).
type EmitFn func(blk *xlate.Block, opcode uint16) (consumed int, err error)

// OpcodeDef is the per-opcode metadata record DecodeDispatch resolves
// to: the handler plus the pure accessors §4.1 requires to be exposed
// separately from emission.
type OpcodeDef struct {
	Name string

	Emit EmitFn

	// SRNeeds / SRSets are the guest CCR bits this opcode reads before
	// emitting and writes after, used by sr_mask.
	SRNeeds uint8
	SRSets  uint8

	// BaseLength is insn_length's answer before any EA tail is added:
	// 1 word for most opcodes, more for those with a fixed immediate
	// tail (ADDI/SUBI/CMPI #imm32 and friends add it themselves).
	BaseLength int

	HasEA bool // opcode carries a 6-bit mode/reg EA field at bits 5:0

	MinModel guest.CPUModel // first CPU this opcode exists on
}

// lineTable is one of the sixteen per-line tables, indexed by the
// lower 12 bits of the opcode; every table has all 4096 entries.
type lineTable = [4096]*OpcodeDef

var lines [16]*lineTable

// Register records def for every opcode word matching pattern under
// mask, i.e. every word w such that w&mask == pattern. Called from
// each emit68k family's init() to populate a line table without
// writing out all 4096 entries by hand.
func Register(line int, mask, pattern uint16, def OpcodeDef) {
	t := lines[line]
	if t == nil {
		t = new(lineTable)
		lines[line] = t
	}
	d := def
	for w := 0; w < 0x10000; w++ {
		if uint16(w)&mask == pattern && (uint16(w)>>12) == uint16(line) {
			if t[w&0xFFF] == nil {
				t[w&0xFFF] = &d
			}
		}
	}
}

// ErrIllegal is returned by Lookup for an opcode with no registered
// handler; callers translate this into the illegal-instruction
// exception emit sequence rather than ever reaching a host crash
// (§4.1 "Missing entries trigger an illegal-instruction exception
// emit sequence, never a host crash.").
type ErrIllegal struct{ Opcode uint16 }

func (e ErrIllegal) Error() string { return fmt.Sprintf("decode: illegal opcode %#04x", e.Opcode) }

// Lookup resolves opcode to its OpcodeDef, or ErrIllegal.
func Lookup(opcode uint16) (*OpcodeDef, error) {
	line := int(opcode >> 12)
	t := lines[line]
	if t == nil {
		return nil, ErrIllegal{opcode}
	}
	def := t[opcode&0xFFF]
	if def == nil {
		return nil, ErrIllegal{opcode}
	}
	return def, nil
}

// SRMask returns the (needs, sets) CCR bit masks for opcode, per
// §4.1's "sr_mask(opcode) -> (needs, sets)" pure accessor contract.
func SRMask(opcode uint16) (needs, sets uint8) {
	def, err := Lookup(opcode)
	if err != nil {
		return 0, 0
	}
	return def.SRNeeds, def.SRSets
}

// InsnLength returns the instruction's length in 16-bit words,
// including any EA extension words tailExtWords already counted by
// the caller (ea.ExtraWords / ea.Decode), per §4.1's "insn_length(opcode,
// tail_words) -> words".
func InsnLength(opcode uint16, tailExtWords int) int {
	def, err := Lookup(opcode)
	if err != nil {
		return 1
	}
	return def.BaseLength + tailExtWords
}

package translator

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/internal/jitctx"
)

// flatMemory is a minimal jitctx.InstructionCache backed by a byte
// slice, enough to drive an end-to-end Translate call without a real
// guest address space.
type flatMemory struct {
	base uint32
	data []byte
}

func newFlatMemory(base uint32, words ...uint16) *flatMemory {
	data := make([]byte, 0, len(words)*2)
	for _, w := range words {
		data = binary.BigEndian.AppendUint16(data, w)
	}
	return &flatMemory{base: base, data: data}
}

func (m *flatMemory) Read16(addr uint32) uint16 {
	off := addr - m.base
	if int(off)+2 > len(m.data) {
		return 0
	}
	return binary.BigEndian.Uint16(m.data[off:])
}
func (m *flatMemory) Read32(addr uint32) uint32 {
	return uint32(m.Read16(addr))<<16 | uint32(m.Read16(addr+2))
}

func TestTranslateStraightLineBlockClosesWithRTS(t *testing.T) {
	const nop = 0x4E71
	const rts = 0x4E75
	icache := newFlatMemory(0x1000, nop, nop, rts)

	res, err := Translate(icache, 0x1000, emit.RegScratch)
	require.NoError(t, err)
	require.Equal(t, 3, res.Instructions)
	require.Equal(t, uint32(0x1000), res.StartPC)
	require.NotEmpty(t, res.Code)

	lines, derr := emit.Disassemble(res.Code)
	require.NoError(t, derr)
	require.NotEmpty(t, lines)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}

	require.NotEmpty(t, res.Fixups)
	last := res.Fixups[len(res.Fixups)-1]
	require.Equal(t, jitctx.FixupLocalExit, last.Kind)
}

func TestTranslateIllegalOpcodeRaisesExceptionAndCloses(t *testing.T) {
	icache := newFlatMemory(0x2000, 0xA000) // line A ("Line-A trap") has no registered handler
	res, err := Translate(icache, 0x2000, emit.RegScratch)
	require.NoError(t, err)
	require.NotEmpty(t, res.Fixups)

	found := false
	for _, f := range res.Fixups {
		if f.Kind == jitctx.FixupException {
			found = true
			require.Equal(t, int(guest.VectorIllegalInstruction), f.Vector)
		}
	}
	require.True(t, found, "an unregistered opcode must close the block via a FixupException entry")
}

func TestTranslateRespectsModelGating(t *testing.T) {
	// CAS2 (line 0, 0x0EFC) is 68020+-only; translating it under the
	// default 68000 model must raise illegal-instruction rather than
	// emit 68020 code.
	icache := newFlatMemory(0x3000, 0x0EFC, 0x0000, 0x0000)
	res, err := Translate(icache, 0x3000, emit.RegScratch, WithModel(guest.Model68000))
	require.NoError(t, err)

	found := false
	for _, f := range res.Fixups {
		if f.Kind == jitctx.FixupException {
			found = true
		}
	}
	require.True(t, found)
}

package emit68k

import (
	"encoding/binary"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/internal/jitctx"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

// flatIcache is a minimal jitctx.InstructionCache over a byte slice,
// enough to feed emitters that read extension words off the cursor.
type flatIcache struct {
	base uint32
	data []byte
}

func newFlatIcache(base uint32, words ...uint16) *flatIcache {
	data := make([]byte, 0, len(words)*2)
	for _, w := range words {
		data = binary.BigEndian.AppendUint16(data, w)
	}
	return &flatIcache{base: base, data: data}
}

func (m *flatIcache) Read16(addr uint32) uint16 {
	off := addr - m.base
	if int(off)+2 > len(m.data) {
		return 0
	}
	return binary.BigEndian.Uint16(m.data[off:])
}

func (m *flatIcache) Read32(addr uint32) uint32 {
	return uint32(m.Read16(addr))<<16 | uint32(m.Read16(addr+2))
}

// newTestBlock builds a Block whose cursor sits right after opcode,
// with words providing whatever extension words the handler under
// test will read next (the opcode word itself is never part of
// words: callers pass it directly to the emitter function).
func newTestBlock(words ...uint16) *xlate.Block {
	const base = 0x4000
	icache := newFlatIcache(base, words...)
	ctx := jitctx.NewCtx(guest.Model68020, icache, base)
	buf := emit.NewBuffer()
	return xlate.New(ctx, buf, emit.RegScratch)
}

package ea

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/jitctx"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
)

// flatMem is a tiny InstructionCache backed by a byte slice, for tests
// that need Decode to actually pull extension words.
type flatMem struct {
	base uint32
	data []byte
}

func (m *flatMem) Read16(addr uint32) uint16 {
	off := addr - m.base
	return uint16(m.data[off])<<8 | uint16(m.data[off+1])
}
func (m *flatMem) Read32(addr uint32) uint32 {
	return uint32(m.Read16(addr))<<16 | uint32(m.Read16(addr+2))
}

func newCtx(words ...uint16) *jitctx.Ctx {
	data := make([]byte, 0, len(words)*2)
	for _, w := range words {
		data = append(data, byte(w>>8), byte(w))
	}
	mem := &flatMem{base: 0x1000, data: data}
	c := jitctx.NewCtx(0, mem, 0x1000)
	return c
}

func TestDecodeRegisterDirectModesConsumeNoExtensionWords(t *testing.T) {
	c := newCtx()

	e, err := Decode(c, 0, 3)
	require.NoError(t, err)
	require.Equal(t, ModeDn, e.Mode)
	require.Equal(t, 3, e.Reg)
	require.Equal(t, 0, e.ExtWords)

	e, err = Decode(c, 1, 5)
	require.NoError(t, err)
	require.Equal(t, ModeAn, e.Mode)
	require.Equal(t, 5, e.Reg)
}

func TestDecodeIndirectModesTakeNoExtensionWord(t *testing.T) {
	c := newCtx()
	for mode, want := range map[uint16]Mode{2: ModeAnInd, 3: ModeAnPostInc, 4: ModeAnPreDec} {
		e, err := Decode(c, mode, 6)
		require.NoError(t, err)
		require.Equal(t, want, e.Mode)
		require.Equal(t, 6, e.Reg)
		require.Equal(t, 0, e.ExtWords)
	}
}

func TestDecodeDispModeConsumesOneWordAndSignExtendsDisp(t *testing.T) {
	c := newCtx(0xFFF0) // -16
	e, err := Decode(c, 5, 2)
	require.NoError(t, err)
	require.Equal(t, ModeAnDisp, e.Mode)
	require.Equal(t, int16(-16), e.Disp16)
	require.Equal(t, 1, e.ExtWords)
	require.Equal(t, uint32(0x1002), c.GuestPCCursor)
}

func TestDecodeAbsWordSignExtends(t *testing.T) {
	c := newCtx(0x8000) // negative as a signed word
	e, err := Decode(c, 7, 0)
	require.NoError(t, err)
	require.Equal(t, ModeAbsWord, e.Mode)
	require.Equal(t, int16(-32768), e.Disp16)
}

func TestDecodeAbsLongConsumesTwoWords(t *testing.T) {
	c := newCtx(0x0001, 0x2340)
	e, err := Decode(c, 7, 1)
	require.NoError(t, err)
	require.Equal(t, ModeAbsLong, e.Mode)
	require.Equal(t, int32(0x00012340), e.BaseDisp)
	require.Equal(t, 2, e.ExtWords)
}

func TestDecodeImmediateConsumesNoExtensionOfItsOwn(t *testing.T) {
	// ea.Decode itself never reads the immediate payload: callers read
	// it separately sized to the opcode's own operand width and stash
	// it into Resources.ImmLo before calling Load.
	c := newCtx()
	e, err := Decode(c, 7, 4)
	require.NoError(t, err)
	require.Equal(t, ModeImmediate, e.Mode)
	require.Equal(t, 0, e.ExtWords)
}

func TestDecodeBriefIndexedExtension(t *testing.T) {
	// D3 as index, word-sized, scale 1, disp8 = 0x10, brief format (bit8=0).
	ext := uint16(0x3010)
	c := newCtx(ext)
	e, err := Decode(c, 6, 2)
	require.NoError(t, err)
	require.Equal(t, ModeAnIndex, e.Mode)
	require.False(t, e.IndexIsA)
	require.Equal(t, 3, e.IndexReg)
	require.False(t, e.IndexLong)
	require.Equal(t, int16(0x10), e.Disp16)
	require.Equal(t, 1, e.ExtWords)
}

func TestDecodeFullIndexedExtensionWithBaseDisplacement(t *testing.T) {
	// Full format (bit8=1), base displacement size=2 (word), no base/
	// index suppression, no memory indirection (IIS field 0).
	full := uint16(0x0100 | (2 << 4))
	c := newCtx(full, 0x0020) // full-format ext word, then base disp word = 0x20
	e, err := Decode(c, 6, 1)
	require.NoError(t, err)
	require.Equal(t, ModeAnIndexBD, e.Mode)
	require.Equal(t, int32(0x20), e.BaseDisp)
	require.False(t, e.BaseSupp)
	require.False(t, e.IndexSupp)
	require.Equal(t, 2, e.ExtWords)
}

func TestExtraWordsMatchesDecodeConsumption(t *testing.T) {
	require.Equal(t, 1, ExtraWords(5, 0, 0))
	require.Equal(t, 1, ExtraWords(7, 0, 0))
	require.Equal(t, 2, ExtraWords(7, 1, 0))
	require.Equal(t, 0, ExtraWords(7, 4, 0))
	require.Equal(t, 1, ExtraWords(6, 0, 0x0000)) // brief format
}

func newResources(buf *emit.Buffer, c *jitctx.Ctx) *Resources {
	a := regalloc.New(buf, emit.AllocPool)
	return &Resources{Buf: buf, Alloc: a, Ctx: c}
}

func TestLoadDnModeReadOnlyReturnsMappedRegister(t *testing.T) {
	buf := emit.NewBuffer()
	c := newCtx()
	r := newResources(buf, c)

	out, err := Load(r, SizeLong, RegUnassigned, EA{Mode: ModeDn, Reg: 2}, true)
	require.NoError(t, err)
	require.Equal(t, out, r.Alloc.MapRead(regalloc.D(2)), "readOnly Load of a Dn must return the same host register MapRead would")
}

func TestLoadImmediateEmitsLoadImm32Compact(t *testing.T) {
	buf := emit.NewBuffer()
	c := newCtx()
	r := newResources(buf, c)
	r.ImmLo = 0x1234

	before := buf.Len()
	_, err := Load(r, SizeLong, RegUnassigned, EA{Mode: ModeImmediate}, true)
	require.NoError(t, err)
	require.Greater(t, buf.Len(), before)
}

func TestStoreThenLoadDnRoundTripsThroughSameHostRegister(t *testing.T) {
	buf := emit.NewBuffer()
	c := newCtx()
	r := newResources(buf, c)

	src := r.Alloc.AllocTmp()
	err := Store(r, SizeLong, src, EA{Mode: ModeDn, Reg: 4})
	require.NoError(t, err)
	require.True(t, r.Alloc.IsGuestMapped(r.Alloc.MapRead(regalloc.D(4))))
}

func TestIncrementForByteOnA7IsTwoForStackAlignment(t *testing.T) {
	require.Equal(t, 2, incrementFor(7, SizeByte))
	require.Equal(t, 1, incrementFor(3, SizeByte))
	require.Equal(t, 2, incrementFor(3, SizeWord))
	require.Equal(t, 4, incrementFor(3, SizeLong))
	require.Equal(t, 4, incrementFor(3, SizeAddrOnly))
}

func TestSizeWidthAndSignExt(t *testing.T) {
	require.Equal(t, 1, SizeByte.width())
	require.Equal(t, 2, SizeWord.width())
	require.Equal(t, 4, SizeLong.width())
	require.False(t, SizeByte.signExt())
	require.True(t, (SizeByte | SignExtendBit).signExt())
	require.Equal(t, 1, (SizeByte | SignExtendBit).width())
}

package decode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
)

func TestRegisterExactPatternMatchesOnlyThatOpcode(t *testing.T) {
	def := OpcodeDef{Name: "TESTEXACT", BaseLength: 1}
	Register(7, 0xFFFF, 0x7123, def)

	got, err := Lookup(0x7123)
	require.NoError(t, err)
	require.Equal(t, "TESTEXACT", got.Name)

	_, err = Lookup(0x7124)
	require.Error(t, err)
	var illegal ErrIllegal
	require.True(t, errors.As(err, &illegal))
	require.Equal(t, uint16(0x7124), illegal.Opcode)
}

func TestRegisterFillsEveryMatchingOpcodeInMask(t *testing.T) {
	def := OpcodeDef{Name: "TESTMASK", BaseLength: 1}
	// line 8, bits 5:0 free (EA field), everything else fixed.
	Register(8, 0xFFC0, 0x8100, def)

	for _, reg := range []uint16{0, 1, 7, 0x3f} {
		got, err := Lookup(0x8100 | reg)
		require.NoError(t, err)
		require.Equal(t, "TESTMASK", got.Name)
	}
}

func TestRegisterIsFillOnlyIfNil(t *testing.T) {
	// Narrower/earlier registration wins over a later, broader one
	// that would otherwise overwrite it — this is how opcode-overlap
	// resolution by registration order works in the real line tables.
	narrow := OpcodeDef{Name: "NARROW", BaseLength: 1}
	broad := OpcodeDef{Name: "BROAD", BaseLength: 1}

	Register(9, 0xFFFF, 0x9042, narrow)
	Register(9, 0xFF00, 0x9000, broad)

	got, err := Lookup(0x9042)
	require.NoError(t, err)
	require.Equal(t, "NARROW", got.Name, "an exact earlier registration must not be overwritten by a later broader one")

	got, err = Lookup(0x9001)
	require.NoError(t, err)
	require.Equal(t, "BROAD", got.Name)
}

func TestLookupUnregisteredLineReturnsErrIllegal(t *testing.T) {
	_, err := Lookup(0xA000 | 0x0001)
	require.Error(t, err)
	var illegal ErrIllegal
	require.True(t, errors.As(err, &illegal))
}

func TestSRMaskReturnsZeroForUnregisteredOpcode(t *testing.T) {
	needs, sets := SRMask(0xB7FF)
	require.Equal(t, uint8(0), needs)
	require.Equal(t, uint8(0), sets)
}

func TestSRMaskReturnsDefFields(t *testing.T) {
	def := OpcodeDef{Name: "TESTSR", SRNeeds: 0x1F, SRSets: 0x03, BaseLength: 1}
	Register(0xB, 0xFFFF, 0xB111, def)

	needs, sets := SRMask(0xB111)
	require.Equal(t, uint8(0x1F), needs)
	require.Equal(t, uint8(0x03), sets)
}

func TestInsnLengthAddsTailWords(t *testing.T) {
	def := OpcodeDef{Name: "TESTLEN", BaseLength: 2}
	Register(0xC, 0xFFFF, 0xC222, def)

	require.Equal(t, 2, InsnLength(0xC222, 0))
	require.Equal(t, 4, InsnLength(0xC222, 2))
}

func TestInsnLengthDefaultsToOneForIllegalOpcode(t *testing.T) {
	require.Equal(t, 1, InsnLength(0xD999, 3))
}

func TestMinModelGatesLaterCPUOnlyOpcodes(t *testing.T) {
	def := OpcodeDef{Name: "TEST020ONLY", BaseLength: 1, MinModel: guest.Model68020}
	Register(0xE, 0xFFFF, 0xE333, def)

	got, err := Lookup(0xE333)
	require.NoError(t, err)
	require.True(t, got.MinModel >= guest.Model68020)
	require.True(t, guest.Model68000 < guest.Model68020)
}

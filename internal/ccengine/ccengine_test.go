package ccengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
)

func TestResetClearsStaleness(t *testing.T) {
	buf := emit.NewBuffer()
	e := New(buf, emit.RegScratch)

	e.NoteProducer(AllBits, 4)
	require.Equal(t, uint8(AllBits), e.StaleMask())

	e.Reset()
	require.Equal(t, uint8(0), e.StaleMask())
}

func TestNoteProducerMarksMaskStale(t *testing.T) {
	buf := emit.NewBuffer()
	e := New(buf, emit.RegScratch)

	e.NoteProducer(MaskN|MaskZ, 4)
	require.Equal(t, uint8(MaskN|MaskZ), e.StaleMask())
}

func TestNeedFlagsClearsOnlyRequestedBits(t *testing.T) {
	buf := emit.NewBuffer()
	e := New(buf, emit.RegScratch)

	e.NoteProducer(AllBits, 4)
	before := buf.Len()
	e.NeedFlags(MaskN | MaskZ)
	require.Greater(t, buf.Len(), before, "NeedFlags must emit the commit sequence when bits are stale")
	require.Equal(t, uint8(MaskV|MaskC|MaskX), e.StaleMask(), "only the requested bits should be cleared from staleness")
}

func TestNeedFlagsIsNoopWhenNothingStale(t *testing.T) {
	buf := emit.NewBuffer()
	e := New(buf, emit.RegScratch)

	before := buf.Len()
	e.NeedFlags(AllBits)
	require.Equal(t, before, buf.Len(), "NeedFlags must not emit anything when the mirror is already current")
}

func TestCommitNZClearVCClearsStalenessForAllFourBits(t *testing.T) {
	buf := emit.NewBuffer()
	e := New(buf, emit.RegScratch)

	e.NoteProducer(MaskN|MaskZ, 4)
	e.CommitNZClearVC()
	require.Equal(t, uint8(0), e.StaleMask()&(MaskN|MaskZ|MaskV|MaskC))
}

func TestCommitNZCVXAlsoClearsXStaleness(t *testing.T) {
	buf := emit.NewBuffer()
	e := New(buf, emit.RegScratch)

	e.NoteProducer(AllBits, 4)
	e.CommitNZCVX(CarryAddLike)
	require.Equal(t, uint8(0), e.StaleMask())
}

func TestSetZOnlyAndSetNOnlyClearTheirBitWithoutTouchingOthers(t *testing.T) {
	buf := emit.NewBuffer()
	e := New(buf, emit.RegScratch)

	e.NoteProducer(AllBits, 4)
	e.SetZOnly(true)
	require.Equal(t, uint8(AllBits&^MaskZ), e.StaleMask())

	e.SetNOnly(false)
	require.Equal(t, uint8(AllBits&^MaskZ&^MaskN), e.StaleMask())
}

func TestNoteFastPathSingleBitOnlyFiresForSingleNOrZMask(t *testing.T) {
	// Pure smoke test: must not panic for any mask shape, single-bit or
	// not, since jitlog.FastPathSingleFlag is only gated internally.
	NoteFastPathSingleBit("TST", MaskZ)
	NoteFastPathSingleBit("TST", MaskN)
	NoteFastPathSingleBit("ADD", MaskN|MaskZ)
	NoteFastPathSingleBit("ADD", MaskC)
}

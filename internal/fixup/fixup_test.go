package fixup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/jitctx"
)

func newTestCtx() *jitctx.Ctx {
	return &jitctx.Ctx{BlockStartPC: 0x2000, GuestPCCursor: 0x2000}
}

func TestEmitCondBranchPlaceholderRecordsFixup(t *testing.T) {
	buf := emit.NewBuffer()
	c := newTestCtx()

	EmitCondBranchPlaceholder(c, buf, emit.CondEQ, 0x3000)

	require.Len(t, c.Fixups, 1)
	f := c.Fixups[0]
	require.Equal(t, jitctx.FixupConditionalBranch, f.Kind)
	require.Equal(t, uint32(0x3000), f.Target)
	require.Equal(t, 4, buf.Len(), "B.cond placeholder must be exactly one instruction")
}

func TestEmitExitBlockRecordsFixup(t *testing.T) {
	buf := emit.NewBuffer()
	c := newTestCtx()

	EmitExitBlock(c, buf, 0x4000)

	require.Len(t, c.Fixups, 1)
	require.Equal(t, jitctx.FixupExitBlock, c.Fixups[0].Kind)
	require.Equal(t, uint32(0x4000), c.Fixups[0].Target)
}

func TestEmitLocalExitFlushesAndClosesBlock(t *testing.T) {
	buf := emit.NewBuffer()
	c := newTestCtx()
	cc := ccengine.New(buf, emit.RegScratch)

	flushed := false
	EmitLocalExit(c, buf, cc, func() { flushed = true })

	require.True(t, flushed, "EmitLocalExit must call the supplied flush callback")
	require.True(t, c.Closed)
	require.Len(t, c.Fixups, 1)
	require.Equal(t, jitctx.FixupLocalExit, c.Fixups[0].Kind)
	require.Equal(t, buf.Len(), c.Fixups[0].EmitOffset, "the local-exit fixup must be recorded right after the RET")
}

func TestEmitDoubleExitRecordsBothTargetsAtSameOffset(t *testing.T) {
	c := newTestCtx()
	EmitDoubleExit(c, 0x40, 0x100, 0x200)

	require.Len(t, c.Fixups, 2)
	require.Equal(t, jitctx.FixupDoubleExit, c.Fixups[0].Kind)
	require.Equal(t, jitctx.FixupDoubleExit, c.Fixups[1].Kind)
	require.Equal(t, 0x40, c.Fixups[0].EmitOffset)
	require.Equal(t, 0x40, c.Fixups[1].EmitOffset)
	require.Equal(t, uint32(0x100), c.Fixups[0].Target)
	require.Equal(t, uint32(0x200), c.Fixups[1].Target)
}

func TestEmitExceptionClosesBlockAndRecordsVector(t *testing.T) {
	buf := emit.NewBuffer()
	c := newTestCtx()
	cc := ccengine.New(buf, emit.RegScratch)

	flushed := false
	EmitException(c, buf, cc, emit.RegScratch, func() { flushed = true }, 5, 0x2004)

	require.True(t, flushed)
	require.True(t, c.Closed)
	require.Len(t, c.Fixups, 1)
	f := c.Fixups[0]
	require.Equal(t, jitctx.FixupException, f.Kind)
	require.Equal(t, 5, f.Vector)
	require.Equal(t, uint32(0x2004), f.Target)
}

func TestPatchChainRewritesCondBranchInPlace(t *testing.T) {
	buf := emit.NewBuffer()
	c := newTestCtx()
	EmitCondBranchPlaceholder(c, buf, emit.CondNE, 0x3000)
	f := c.Fixups[0]

	PatchChain(buf, f, 10)
	word := buf.Peek(emit.Offset(f.EmitOffset))
	require.Equal(t, uint32(0x54000000)|uint32(10<<5)|uint32(emit.CondNE), word)
}

func TestPatchChainRewritesUnconditionalBranchInPlace(t *testing.T) {
	buf := emit.NewBuffer()
	c := newTestCtx()
	EmitExitBlock(c, buf, 0x4000)
	f := c.Fixups[0]

	PatchChain(buf, f, -3)
	word := buf.Peek(emit.Offset(f.EmitOffset))
	require.Equal(t, uint32(0x14000000)|(uint32(-3)&0x03FFFFFF), word)
}

func TestInlineReturnRoundTripOnMatchingPC(t *testing.T) {
	c := newTestCtx()
	ok := TryInlineReturn(c, 0x2010)
	require.True(t, ok)

	matched := ResolveReturn(c, 0x2010)
	require.True(t, matched)
}

func TestInlineReturnRejectsMismatchedPC(t *testing.T) {
	c := newTestCtx()
	require.True(t, TryInlineReturn(c, 0x2010))

	matched := ResolveReturn(c, 0x2099)
	require.False(t, matched)
}

func TestResolveReturnWithEmptyStackReturnsFalse(t *testing.T) {
	c := newTestCtx()
	require.False(t, ResolveReturn(c, 0x1234))
}

func TestTryInlineReturnFailsPastStackDepth(t *testing.T) {
	c := newTestCtx()
	for i := 0; i < 8; i++ {
		require.True(t, TryInlineReturn(c, uint32(0x2000+i)))
	}
	require.False(t, TryInlineReturn(c, 0x9999), "the ninth push must fail since the return stack is bounded at 8")
}

package jitctx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/guest"
)

type fakeIcache struct {
	base uint32
	data []byte
}

func (m *fakeIcache) Read16(addr uint32) uint16 {
	off := addr - m.base
	return uint16(m.data[off])<<8 | uint16(m.data[off+1])
}

func (m *fakeIcache) Read32(addr uint32) uint32 {
	return uint32(m.Read16(addr))<<16 | uint32(m.Read16(addr+2))
}

func TestReadNext16AdvancesCursorByTwo(t *testing.T) {
	ic := &fakeIcache{base: 0x1000, data: []byte{0x12, 0x34, 0x56, 0x78}}
	ctx := NewCtx(guest.Model68020, ic, 0x1000)

	require.Equal(t, uint16(0x1234), ctx.ReadNext16())
	require.Equal(t, uint32(0x1002), ctx.GuestPCCursor)
	require.Equal(t, uint16(0x5678), ctx.ReadNext16())
	require.Equal(t, uint32(0x1004), ctx.GuestPCCursor)
}

func TestReadNext32AdvancesCursorByFour(t *testing.T) {
	ic := &fakeIcache{base: 0x2000, data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	ctx := NewCtx(guest.Model68020, ic, 0x2000)

	require.Equal(t, uint32(0xDEADBEEF), ctx.ReadNext32())
	require.Equal(t, uint32(0x2004), ctx.GuestPCCursor)
}

func TestPeekWordDoesNotAdvanceCursor(t *testing.T) {
	ic := &fakeIcache{base: 0x3000, data: []byte{0x00, 0x01, 0x00, 0x02}}
	ctx := NewCtx(guest.Model68020, ic, 0x3000)

	require.Equal(t, uint16(2), ctx.PeekWord(1))
	require.Equal(t, uint32(0x3000), ctx.GuestPCCursor, "PeekWord must not move the cursor")
}

func TestPushPopReturnIsLIFO(t *testing.T) {
	ctx := NewCtx(guest.Model68020, nil, 0)

	ok := ctx.PushReturn(ReturnSlot{ExpectedReturnPC: 0x10, EmitOffsetAfter: 4})
	require.True(t, ok)
	ok = ctx.PushReturn(ReturnSlot{ExpectedReturnPC: 0x20, EmitOffsetAfter: 8})
	require.True(t, ok)

	slot, ok := ctx.PopReturn()
	require.True(t, ok)
	require.Equal(t, uint32(0x20), slot.ExpectedReturnPC)

	slot, ok = ctx.PopReturn()
	require.True(t, ok)
	require.Equal(t, uint32(0x10), slot.ExpectedReturnPC)

	_, ok = ctx.PopReturn()
	require.False(t, ok, "popping an empty return stack must report not-ok")
}

func TestPushReturnRejectsBeyondMaxDepth(t *testing.T) {
	ctx := NewCtx(guest.Model68020, nil, 0)

	for i := 0; i < maxReturnStackDepth; i++ {
		require.True(t, ctx.PushReturn(ReturnSlot{ExpectedReturnPC: uint32(i)}))
	}
	require.False(t, ctx.PushReturn(ReturnSlot{ExpectedReturnPC: 99}), "push past capacity must fail rather than grow unbounded")
	require.Len(t, ctx.ReturnStack, maxReturnStackDepth)
}

// Package jitctx defines the per-block translation context and the
// static opcode metadata consumed by the decode and emit layers.
package jitctx

import "github.com/tinyrange-pi/m68kjit/internal/guest"

// FixupKind enumerates the deferred-patch kinds recorded at block
// close (§4.6).
type FixupKind int

const (
	FixupConditionalBranch FixupKind = iota
	FixupExitBlock
	FixupDoubleExit
	FixupLocalExit
	FixupException
)

// Fixup is one pending patch, recorded at the emit offset it refers
// to.
type Fixup struct {
	EmitOffset int
	Kind       FixupKind
	// Target is the guest PC the fixup chains to, when applicable
	// (FixupConditionalBranch / FixupDoubleExit), or the faulting PC
	// for FixupException.
	Target uint32
	// Vector is the exception vector number, valid only for
	// FixupException.
	Vector int
}

// ReturnSlot is one entry of the bounded BSR/RTS inlining stack
// (§4.6 "Return-address inlining").
type ReturnSlot struct {
	ExpectedReturnPC uint32
	EmitOffsetAfter  int // where the inlined fallthrough resumes
}

const maxReturnStackDepth = 8

// Ctx is the TranslationContext: state owned for the lifetime of
// translating one block (§3).
type Ctx struct {
	Model guest.CPUModel

	// GuestPCCursor is the address of the next unread 16-bit guest
	// word; ReadNext16/ReadNext32 advance it.
	GuestPCCursor uint32

	// BlockStartPC is the guest PC the block began translating at.
	BlockStartPC uint32

	// PCOffset is the signed byte delta between the logical guest PC
	// (GuestPCCursor minus the current instruction's start) and the
	// value materialized into RegPCShad, letting PC updates coalesce
	// across a straight-line run of instructions.
	PCOffset int32

	Fixups []Fixup

	ReturnStack []ReturnSlot

	// Closed is set once a BlockCloser terminator has been emitted;
	// DecodeDispatch stops feeding further instructions.
	Closed bool

	// Icache is the external guest instruction-fetch collaborator
	// (§6); kept as an interface so translation never embeds a raw
	// pointer cast, per §9's design note.
	Icache InstructionCache

	// DBFSlowdown requests the optional cycle-inflating stall sequence
	// for a DBF that branches back to its own start (spec.md §4.5
	// "Scc / DBcc / TRAPcc / BRA / Bcc / BSR"), set from translator.
	// Options.WithDBFSlowdown.
	DBFSlowdown bool
}

// InstructionCache is the external guest memory read-side collaborator
// (§6 "Guest memory read interface"). The translator only ever calls
// the 16/32-bit word forms on code fetch.
type InstructionCache interface {
	Read16(addr uint32) uint16
	Read32(addr uint32) uint32
}

// NewCtx begins translating a block starting at startPC.
func NewCtx(model guest.CPUModel, icache InstructionCache, startPC uint32) *Ctx {
	return &Ctx{
		Model:         model,
		GuestPCCursor: startPC,
		BlockStartPC:  startPC,
		Icache:        icache,
	}
}

// ReadNext16 fetches the next 16-bit guest word and advances the
// cursor. It does not touch PCOffset; callers account for consumed
// words explicitly per the emitter contract (§4.5 step 4).
func (c *Ctx) ReadNext16() uint16 {
	v := c.Icache.Read16(c.GuestPCCursor)
	c.GuestPCCursor += 2
	return v
}

// ReadNext32 fetches the next 32-bit guest value (two words) and
// advances the cursor.
func (c *Ctx) ReadNext32() uint32 {
	v := c.Icache.Read32(c.GuestPCCursor)
	c.GuestPCCursor += 4
	return v
}

// PeekWord reads a guest word at cursor+offset without advancing,
// used by EA decode to look ahead at extension words.
func (c *Ctx) PeekWord(wordOffset int) uint16 {
	return c.Icache.Read16(c.GuestPCCursor + uint32(wordOffset*2))
}

// AddFixup records a pending patch at the given emit offset.
func (c *Ctx) AddFixup(f Fixup) { c.Fixups = append(c.Fixups, f) }

// PushReturn records an inlineable BSR return expectation. Per §9's
// design note the stack is small and bounded: growth beyond capacity
// is a signal to exit the block rather than reallocate.
func (c *Ctx) PushReturn(slot ReturnSlot) (ok bool) {
	if len(c.ReturnStack) >= maxReturnStackDepth {
		return false
	}
	c.ReturnStack = append(c.ReturnStack, slot)
	return true
}

// PopReturn removes and returns the most recent return expectation,
// if any.
func (c *Ctx) PopReturn() (ReturnSlot, bool) {
	if len(c.ReturnStack) == 0 {
		return ReturnSlot{}, false
	}
	n := len(c.ReturnStack) - 1
	slot := c.ReturnStack[n]
	c.ReturnStack = c.ReturnStack[:n]
	return slot, true
}

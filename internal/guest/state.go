// Package guest defines the 68K architectural state that is the single
// source of truth when no translated block is running.
package guest

import "unsafe"

// CCR/SR bit positions, low byte (condition codes) and high byte
// (system byte). V and C are stored in the translator's internal
// alternate encoding (Valt, Calt); canonical 68K order is restored
// only at the external boundary (MOVE from SR/CCR, RTE, stack frames).
const (
	CCR_C = 1 << 0
	CCR_V = 1 << 1
	CCR_Z = 1 << 2
	CCR_N = 1 << 3
	CCR_X = 1 << 4

	SR_IPL0 = 1 << 8
	SR_IPL1 = 1 << 9
	SR_IPL2 = 1 << 10
	SR_M    = 1 << 12
	SR_S    = 1 << 13
	SR_T0   = 1 << 14
	SR_T1   = 1 << 15

	SR_IPL_MASK = SR_IPL0 | SR_IPL1 | SR_IPL2
)

// State is the C-ABI-compatible guest register block. Field offsets
// are referenced directly by emitted LDR/STR instructions, so field
// order and size must never change without touching every emitter
// that hard-codes an offset via Offset().
type State struct {
	D [8]uint32 // D0-D7
	A [8]uint32 // A0-A7; A7 mirrors the active stack per (S,M)

	PC uint32
	SR uint16 // system byte (bits 15:8) + CCR (bits 7:0, alternate C/V)

	USP uint32
	ISP uint32
	MSP uint32

	SFC uint8
	DFC uint8

	VBR uint32

	ITT0 uint32
	ITT1 uint32
	DTT0 uint32
	DTT1 uint32

	TCR   uint32
	URP   uint32
	SRP   uint32
	MMUSR uint32

	INT uint32 // pending-interrupt/event word, polled by STOP's wait loop

	// Instrumentation exposed to the guest via MOVEC (§6).
	JITCacheMiss  uint32
	JITUnitCount  uint32
	JITCacheTotal uint64
	JITCacheFree  uint64
}

// Offset returns the byte offset of a State field for use by emitters
// that materialize LDR/STR [ctxReg, #off] instructions. Centralizing
// the unsafe.Offsetof calls here keeps them out of the hot emit path.
func Offset(field *uint32, base *State) uintptr {
	return uintptr(unsafe.Pointer(field)) - uintptr(unsafe.Pointer(base))
}

var zero State

// Field offsets, computed once against the zero-value sentinel above.
// These are the constants emitters use to build LDR/STR immediates.
var (
	OffD0  = unsafe.Offsetof(zero.D)
	OffA0  = unsafe.Offsetof(zero.A)
	OffPC  = unsafe.Offsetof(zero.PC)
	OffSR  = unsafe.Offsetof(zero.SR)
	OffUSP = unsafe.Offsetof(zero.USP)
	OffISP = unsafe.Offsetof(zero.ISP)
	OffMSP = unsafe.Offsetof(zero.MSP)
	OffVBR = unsafe.Offsetof(zero.VBR)
	OffINT = unsafe.Offsetof(zero.INT)

	OffJITCacheMiss  = unsafe.Offsetof(zero.JITCacheMiss)
	OffJITUnitCount  = unsafe.Offsetof(zero.JITUnitCount)
	OffJITCacheTotal = unsafe.Offsetof(zero.JITCacheTotal)
	OffJITCacheFree  = unsafe.Offsetof(zero.JITCacheFree)
)

// OffD returns the byte offset of D[n].
func OffD(n int) uintptr { return OffD0 + uintptr(n)*4 }

// OffA returns the byte offset of A[n].
func OffA(n int) uintptr { return OffA0 + uintptr(n)*4 }

// StackMode selects which of {USP, ISP, MSP} currently backs A7,
// derived from the (S, M) bits of SR.
type StackMode int

const (
	StackUser StackMode = iota
	StackInterrupt
	StackMaster
)

// SelectStack returns which stack A7 mirrors for the given SR value.
// S=0 -> USP always. S=1,M=0 -> ISP. S=1,M=1 -> MSP (68020+ only;
// callers targeting a plain 68000 never set M).
func SelectStack(sr uint16) StackMode {
	if sr&SR_S == 0 {
		return StackUser
	}
	if sr&SR_M != 0 {
		return StackMaster
	}
	return StackInterrupt
}

// ActiveStackOffset returns the State field offset of the stack
// pointer backing A7 for the given SR value.
func ActiveStackOffset(sr uint16) uintptr {
	switch SelectStack(sr) {
	case StackMaster:
		return OffMSP
	case StackInterrupt:
		return OffISP
	default:
		return OffUSP
	}
}

// DecodeAltCCR splits the CCR mirror byte into its {X,N,Z,V,C} bits.
// The mirror uses the canonical 68K bit positions, and ccengine
// already stores C in 68K sense (inverted from the host carry for
// subtract-like producers), so every bit is read as a straight copy.
func DecodeAltCCR(alt uint8) (x, n, z, v, c bool) {
	x = alt&CCR_X != 0
	n = alt&CCR_N != 0
	z = alt&CCR_Z != 0
	v = alt&CCR_V != 0
	c = alt&CCR_C != 0
	return
}

package guest

// Exception vector numbers, named per the 68K reference manual and
// as pushed by original_source/src/M68k_LINE0.c's exception prologues.
// Vector N lives at VBR + N*4.
const (
	VectorBusError            = 2
	VectorAddressError        = 3
	VectorIllegalInstruction  = 4
	VectorZeroDivide          = 5
	VectorCHK                 = 6
	VectorTRAPV               = 7
	VectorPrivilegeViolation  = 8
	VectorTrace               = 9
	VectorLine1010Emulator    = 10
	VectorLine1111Emulator    = 11
	VectorFormatError         = 14
	VectorUninitializedInt    = 15
	VectorSpuriousInt         = 24
	VectorAutovectorLevel1    = 25
	VectorAutovectorLevel7    = 31
	VectorTrap0               = 32 // TRAP #0 .. TRAP #15 = 32..47
)

// TrapVector returns the vector number for TRAP #n, n in [0,15].
func TrapVector(n uint8) int { return VectorTrap0 + int(n&0xF) }

// AutovectorLevel returns the vector number for autovectored
// interrupt priority level 1..7.
func AutovectorLevel(level uint8) int {
	return VectorAutovectorLevel1 + int(level-1)
}

// StackFrameFormat distinguishes the two exception-frame shapes the
// translator ever pushes; format 2 additionally carries a fault
// address word (used for address error, CHK, zero divide and the
// line-1010/1111 emulator traps on 68020+).
type StackFrameFormat uint8

const (
	FrameFormat0 StackFrameFormat = 0
	FrameFormat2 StackFrameFormat = 2
)

// CPUModel gates which opcodes and addressing modes DecodeDispatch
// considers legal, per original_source's feature-availability checks.
type CPUModel int

const (
	Model68000 CPUModel = iota
	Model68010
	Model68020
)

// SupportsExtendedEA reports whether (bd,An,Xn) / memory-indirect
// addressing and scaled index registers are available.
func (m CPUModel) SupportsExtendedEA() bool { return m >= Model68020 }

// SupportsBitfield reports whether BFxxx instructions are available.
func (m CPUModel) SupportsBitfield() bool { return m >= Model68020 }

// SupportsLongMulDiv reports whether 32x32 MULU/MULS/DIVU/DIVS and
// 64-bit forms are available.
func (m CPUModel) SupportsLongMulDiv() bool { return m >= Model68020 }

// SupportsCAS reports whether CAS/CAS2 are available.
func (m CPUModel) SupportsCAS() bool { return m >= Model68020 }

// SupportsMasterStack reports whether the M bit / MSP is meaningful.
func (m CPUModel) SupportsMasterStack() bool { return m >= Model68020 }

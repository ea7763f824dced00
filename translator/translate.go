// Package translator is the public entry point wiring DecodeDispatch,
// the per-instruction emitter family, RegAllocator, CondCodeEngine,
// and FixupTable into one translated block. It mirrors the role
// tinyrange-rtg/std/compiler/backend.go's GenerateELF plays for that
// compiler: the one function a caller needs, everything else internal.
package translator

import (
	"fmt"

	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	_ "github.com/tinyrange-pi/m68kjit/internal/emit68k" // registers every opcode family's init()
	"github.com/tinyrange-pi/m68kjit/internal/fixup"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/internal/jitctx"
	"github.com/tinyrange-pi/m68kjit/internal/jitlog"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

// maxBlockInstructions bounds how many guest instructions one
// Translate call will fold into a single block before forcing a plain
// exit, guarding against a pathological straight-line run of
// non-branching opcodes producing an unbounded host buffer.
const maxBlockInstructions = 512

// Options configures a Translate call. The zero value is a valid,
// unmodified-behavior configuration; use the With* functions to adjust
// it, following the teacher's package-tunable pattern scoped to a
// struct since this is a library entry point, not a main package.
type Options struct {
	model       guest.CPUModel
	dbfSlowdown bool
}

// Option mutates an Options value under construction.
type Option func(*Options)

// WithModel selects the target CPU model gating which opcodes
// DecodeDispatch accepts (§3 "CPU model gating"). Defaults to
// guest.Model68000 when unset.
func WithModel(model guest.CPUModel) Option {
	return func(o *Options) { o.model = model }
}

// WithDBFSlowdown requests the cycle-inflating stall sequence for a
// DBF that branches back to its own start, emulating legacy busy-wait
// timing (spec.md §4.5).
func WithDBFSlowdown(enabled bool) Option {
	return func(o *Options) { o.dbfSlowdown = enabled }
}

func newOptions(opts []Option) Options {
	o := Options{model: guest.Model68000}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// Result is everything a caller needs after a successful Translate:
// the host machine code and bookkeeping to chain fixups against it
// later.
type Result struct {
	Code         []byte
	StartPC      uint32
	Fixups       []jitctx.Fixup
	Instructions int
}

// Translate compiles one basic block of guest code starting at
// startPC, decoding and emitting until a handler closes the block
// (branch, return, exception, supervisor transition) or the
// instruction-count guard trips. icache supplies guest code words;
// scratch is the host register the CondCodeEngine may use as its own
// working temporary (must not be in emit.AllocPool).
func Translate(icache jitctx.InstructionCache, startPC uint32, scratch emit.Reg, opts ...Option) (res Result, err error) {
	o := newOptions(opts)

	ctx := jitctx.NewCtx(o.model, icache, startPC)
	ctx.DBFSlowdown = o.dbfSlowdown
	buf := emit.NewBuffer()
	blk := xlate.New(ctx, buf, scratch)

	insns := 0

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(allocatorExhausted); ok {
				emitPlainExit(blk)
				res = Result{Code: buf.Bytes(), StartPC: startPC, Fixups: ctx.Fixups, Instructions: insns}
				err = fixup.ErrAllocatorExhausted
				return
			}
			panic(r)
		}
	}()

	for !ctx.Closed {
		if insns >= maxBlockInstructions {
			emitPlainExit(blk)
			break
		}

		opcodePC := ctx.GuestPCCursor
		opcode := ctx.ReadNext16()

		def, lookupErr := decode.Lookup(opcode)
		if lookupErr != nil {
			blk.RaiseException(guest.VectorIllegalInstruction, opcodePC)
			break
		}
		if def.MinModel > o.model {
			blk.RaiseException(guest.VectorIllegalInstruction, opcodePC)
			break
		}

		consumed, emitErr := runEmitter(def, blk, opcode)
		if emitErr != nil {
			return Result{}, fmt.Errorf("translator: translating opcode %#04x at %#x: %w", opcode, opcodePC, emitErr)
		}
		insns += consumed
	}

	jitlog.BlockCompiled(startPC, int(ctx.GuestPCCursor-startPC)/2, insns)
	return Result{Code: buf.Bytes(), StartPC: startPC, Fixups: ctx.Fixups, Instructions: insns}, nil
}

// allocatorExhausted is the panic value regalloc raises on pool
// exhaustion; Translate is the one place that turns it back into a
// Go error rather than letting it propagate as a host crash.
type allocatorExhausted struct{}

// runEmitter calls the opcode's handler, converting the RegAllocator's
// "pool exhausted" panic (§4.2 "Failure semantics") into
// allocatorExhausted so the deferred recover in Translate can handle
// it uniformly whether it originates here or anywhere deeper in the
// call chain.
func runEmitter(def *decode.OpcodeDef, blk *xlate.Block, opcode uint16) (consumed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if isAllocatorExhausted(r) {
				panic(allocatorExhausted{})
			}
			panic(r)
		}
	}()
	return def.Emit(blk, opcode)
}

func isAllocatorExhausted(r any) bool {
	s, ok := r.(string)
	return ok && s == "regalloc: pool exhausted"
}

// emitPlainExit closes a block that ran out of translation budget or
// hit an unrecoverable resource limit mid-block, per spec.md's
// "Untranslatable sequence" edge case: the dispatcher re-enters and
// resumes interpreted or retries with a shorter horizon. The resume PC
// stored is the translation cursor.
func emitPlainExit(blk *xlate.Block) {
	blk.Buf.LoadImm32Compact(blk.Scratch, blk.Ctx.GuestPCCursor)
	blk.Buf.StrwImm(blk.Scratch, emit.RegCtx, uint32(guest.OffPC))
	fixup.EmitLocalExit(blk.Ctx, blk.Buf, blk.CC, func() {
		blk.Alloc.FlushAllDirty()
		blk.Alloc.FlushFPUDirty()
	})
}

// ErrAllocatorExhausted re-exports fixup's sentinel so callers never
// need to import internal/fixup themselves to check for it.
var ErrAllocatorExhausted = fixup.ErrAllocatorExhausted

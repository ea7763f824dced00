// Package jitlog is a thin zerolog wrapper exposing the few
// diagnostic log sites the translator needs (§9's fast-path note,
// block-compile tracing). The hot emit path is otherwise silent.
package jitlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the package-wide sink; callers may replace it via
// SetOutput/SetLevel (e.g. from cobra flag handling in cmd/rtgjit).
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// SetOutput redirects where log lines go.
func SetOutput(w io.Writer) {
	Logger = Logger.Output(w)
}

// SetLevel adjusts the minimum emitted level, e.g. zerolog.DebugLevel
// under a -v CLI flag.
func SetLevel(level zerolog.Level) {
	Logger = Logger.Level(level)
}

// FastPathSingleFlag logs the diagnostic spec.md §9 says the original
// authors left in: several arithmetic emitters were unsure their
// Z-only/N-only fast path was correct. The general path here is
// authoritative (see DESIGN.md), so this is purely informational.
func FastPathSingleFlag(insn string, mask uint8) {
	Logger.Debug().Str("insn", insn).Uint8("mask", mask).Msg("single-flag update mask, using general commit path")
}

// BlockCompiled logs a completed block translation.
func BlockCompiled(startPC uint32, words int, insns int) {
	Logger.Debug().Uint32("pc", startPC).Int("words", words).Int("insns", insns).Msg("block compiled")
}

// Exception logs a guest-visible exception emission.
func Exception(vector int, atPC uint32) {
	Logger.Debug().Int("vector", vector).Uint32("pc", atPC).Msg("exception emitted")
}

package emit

import (
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// Disassemble decodes the AArch64 words in code and returns one
// mnemonic-level line per instruction. Used by cmd/rtgjit's disasm
// subcommand and by aarch64_test.go to self-check that an encoder
// function produced the instruction it claims to, rather than just
// comparing against a second hand-computed hex constant.
func Disassemble(code []byte) ([]string, error) {
	var lines []string
	for off := 0; off+4 <= len(code); off += 4 {
		inst, err := arm64asm.Decode(code[off : off+4])
		if err != nil {
			lines = append(lines, fmt.Sprintf("%04x: <bad: %v>", off, err))
			continue
		}
		lines = append(lines, fmt.Sprintf("%04x: %s", off, arm64asm.GNUSyntax(inst)))
	}
	return lines, nil
}

// Mnemonic returns just the opcode mnemonic of a single encoded
// instruction word, e.g. "ADD" or "LDR", lowercased. Used by tests
// that only want to assert the instruction class, not the full
// operand text.
func Mnemonic(word uint32) (string, error) {
	b := []byte{byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24)}
	inst, err := arm64asm.Decode(b)
	if err != nil {
		return "", err
	}
	s := inst.Op.String()
	return strings.ToLower(s), nil
}

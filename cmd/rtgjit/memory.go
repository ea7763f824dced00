package main

import "encoding/binary"

// flatMemory is the simplest possible jitctx.InstructionCache: a flat
// byte slice addressed from zero, used to feed a raw guest binary blob
// into Translate without standing up a real guest-memory bridge.
type flatMemory struct {
	base uint32
	data []byte
}

func newFlatMemory(base uint32, data []byte) *flatMemory {
	return &flatMemory{base: base, data: data}
}

func (m *flatMemory) Read16(addr uint32) uint16 {
	off := addr - m.base
	if int(off)+2 > len(m.data) {
		return 0
	}
	return binary.BigEndian.Uint16(m.data[off:])
}

func (m *flatMemory) Read32(addr uint32) uint32 {
	off := addr - m.base
	if int(off)+4 > len(m.data) {
		return 0
	}
	return binary.BigEndian.Uint32(m.data[off:])
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"testing"

	"github.com/saferwall/macres/memory"
)

// relocFixture stages a guest buffer of zeroed words and returns a state
// whose write cursor starts at its base.
func relocFixture(t *testing.T, words int, imports []uint32) (*memory.Context, *relocState, memory.Addr) {
	t.Helper()
	mem := memory.NewContext(&memory.Options{PageBits: 16})
	base, err := mem.Allocate(uint32(words*4), false)
	if err != nil {
		t.Fatal(err)
	}
	state := &relocState{
		mem:          mem,
		sectionAddrs: []uint32{uint32(base), 0x20000},
		importAddr: func(index uint32) (uint32, error) {
			return imports[index], nil
		},
		addr:        uint32(base),
		sectionBase: uint32(base),
		sectionC:    0x1000,
		sectionD:    0x0100,
	}
	return mem, state, base
}

func cmds(words ...uint16) []byte {
	out := make([]byte, 0, len(words)*2)
	for _, w := range words {
		out = append(out, byte(w>>8), byte(w))
	}
	return out
}

func TestRelocIncrRelocAddr(t *testing.T) {
	tests := []struct {
		cmd  uint16
		want uint32
	}{
		{0x8000, 2},
		{0x8001, 4},
		{0x8FFF, 0x2000},
	}
	for _, tt := range tests {
		_, state, base := relocFixture(t, 4, nil)
		if err := runRelocations(cmds(tt.cmd), state); err != nil {
			t.Fatalf("cmd %04X: %v", tt.cmd, err)
		}
		if got := state.addr - uint32(base); got != tt.want {
			t.Fatalf("cmd %04X advanced %#x, want %#x", tt.cmd, got, tt.want)
		}
	}
}

func TestRelocAddSectionDWithSkip(t *testing.T) {
	// cmd 0000 00sssssssscc cccc: skip 1 word, then add section-D to 2 words.
	cmd := uint16(0x0000 | 1<<6 | 2)
	mem, state, base := relocFixture(t, 4, nil)
	if err := runRelocations(cmds(cmd), state); err != nil {
		t.Fatal(err)
	}
	// With a canonical word value of 0, the relocated words equal the delta.
	v0, _ := mem.ReadU32(base)
	v1, _ := mem.ReadU32(base + 4)
	v2, _ := mem.ReadU32(base + 8)
	if v0 != 0 {
		t.Fatalf("skipped word was modified: %#x", v0)
	}
	if v1 != 0x0100 || v2 != 0x0100 {
		t.Fatalf("relocated words = %#x %#x, want section-D delta", v1, v2)
	}
}

func TestRelocVectorAddSectionC(t *testing.T) {
	// Vector group 0x4000 sub 0: count field is count-1.
	cmd := uint16(0x4000 | (3 - 1))
	mem, state, base := relocFixture(t, 4, nil)
	if err := runRelocations(cmds(cmd), state); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		v, _ := mem.ReadU32(base + memory.Addr(i*4))
		if v != 0x1000 {
			t.Fatalf("word %d = %#x, want section-C delta", i, v)
		}
	}
}

func TestRelocVectorAddImports(t *testing.T) {
	cmd := uint16(0x4000 | 0x0A00 | (2 - 1))
	mem, state, base := relocFixture(t, 4, []uint32{0x111, 0x222})
	if err := runRelocations(cmds(cmd), state); err != nil {
		t.Fatal(err)
	}
	v0, _ := mem.ReadU32(base)
	v1, _ := mem.ReadU32(base + 4)
	if v0 != 0x111 || v1 != 0x222 {
		t.Fatalf("imports applied = %#x %#x", v0, v1)
	}
	if state.importIndex != 2 {
		t.Fatalf("import index = %d, want 2", state.importIndex)
	}
}

func TestRelocIndividualImportByIndex(t *testing.T) {
	cmd := uint16(0x6000 | 1)
	mem, state, base := relocFixture(t, 2, []uint32{0x111, 0x222})
	if err := runRelocations(cmds(cmd), state); err != nil {
		t.Fatal(err)
	}
	v, _ := mem.ReadU32(base)
	if v != 0x222 {
		t.Fatalf("import value = %#x", v)
	}
	if state.importIndex != 2 {
		t.Fatalf("running import index = %d, want index+1", state.importIndex)
	}
}

func TestRelocSetSectionRegisters(t *testing.T) {
	// Set section-C from section 1's base, then add it at the cursor.
	setC := uint16(0x6000 | 0x0200 | 1)
	addC := uint16(0x4000 | 0) // one word
	mem, state, base := relocFixture(t, 2, nil)
	if err := runRelocations(cmds(setC, addC), state); err != nil {
		t.Fatal(err)
	}
	v, _ := mem.ReadU32(base)
	if v != 0x20000 {
		t.Fatalf("word = %#x, want section 1 base", v)
	}
}

func TestRelocSmallRepeat(t *testing.T) {
	// Add section-D to one word, then repeat that block twice more:
	// three words total get the delta.
	addD := uint16(0x4000 | 0x0200 | 0)
	// The raw block field counts repeated payload words; the rewind spans
	// the repeat word itself as well.
	rep := uint16(0x9000 | 1<<8 | (2 - 1)) // one payload word, 2 more times
	mem, state, base := relocFixture(t, 4, nil)
	if err := runRelocations(cmds(addD, rep), state); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		v, _ := mem.ReadU32(base + memory.Addr(i*4))
		if v != 0x0100 {
			t.Fatalf("word %d = %#x after repeat", i, v)
		}
	}
	v, _ := mem.ReadU32(base + 12)
	if v != 0 {
		t.Fatalf("word 3 modified: %#x", v)
	}
}

func TestRelocSetPositionLargeForm(t *testing.T) {
	// 0xA000-form: position = section base + 26-bit offset (low 10 bits of
	// the command, then the 16 bits of the next word).
	cmd := []uint16{0xA000, 0x0008}
	_, state, base := relocFixture(t, 4, nil)
	if err := runRelocations(cmds(cmd...), state); err != nil {
		t.Fatal(err)
	}
	if state.addr != uint32(base)+8 {
		t.Fatalf("addr = %#x, want base+8", state.addr)
	}
}

func TestRelocInvalidCommand(t *testing.T) {
	_, state, _ := relocFixture(t, 2, nil)
	// 0xBC00 has no assigned meaning.
	if err := runRelocations(cmds(0xBC00), state); err == nil {
		t.Fatal("expected invalid relocation command to fail")
	}
}

func TestRelocCanonicalBaseEqualsDelta(t *testing.T) {
	// Relocations applied to zeroed words produce values equal to the
	// applied deltas, for every add form.
	mem, state, base := relocFixture(t, 4, []uint32{0x4242})
	prog := cmds(
		0x4000|0,        // add section-C
		0x4000|0x0200|0, // add section-D
		0x6000|0,        // add import 0
	)
	if err := runRelocations(prog, state); err != nil {
		t.Fatal(err)
	}
	v0, _ := mem.ReadU32(base)
	v1, _ := mem.ReadU32(base + 4)
	v2, _ := mem.ReadU32(base + 8)
	if v0 != 0x1000 || v1 != 0x0100 || v2 != 0x4242 {
		t.Fatalf("deltas = %#x %#x %#x", v0, v1, v2)
	}
}

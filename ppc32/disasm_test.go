// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ppc32

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisassembleOneForms(t *testing.T) {
	tests := []struct {
		op   uint32
		want string
	}{
		{0x38220010, "addi      r1, r2, 0x0010"},
		{0x38A00005, "li        r5, 0x0005"},
		{0x3C600102, "lis       r3, 0x0102"},
		{0x3821FFF0, "subi      r1, r1, 0x0010"},
		{0x54832007, "rlwinm.   r3, r4, 4, 0, 3"},
		{0x60000000, "nop       r0"},
		{0x60630001, "ori       r3, r3, 0x0001"},
		{0x7C601B78, "mr        r0, r3"},
		{0x7C632214, "add       r3, r3, r4"},
		{0x7C632215, "add.      r3, r3, r4"},
		{0x80610008, "lwz       r3, [r1 + 0x0008]"},
		{0x9061FFF8, "stw       [r1 - 0x0008], r3"},
		{0x90640000, "stw       [r4], r3"},
		{0x7C6802A6, "mflr      r3"},
		{0x7C6803A6, "mtlr      r3"},
		{0x7C6902A6, "mfctr     r3"},
		{0x44000002, "sc"},
		{0x4E800020, "blr"},
		{0x4E800420, "bctr"},
		{0x4182000C, "beq       +0x0000000C /* 0000100C */"},
		{0x4082000C, "bne       +0x0000000C /* 0000100C */"},
		{0x4200FFF8, "bdnz      -0x00000008 /* 00000FF8 */"},
		{0x48000010, "b         +0x00000010 /* 00001010 */"},
		{0x48000011, "bl        +0x00000010 /* 00001010 */"},
		{0x2C030000, "cmpwi     r3, 0"},
		{0x28030010, "cmplwi    r3, 16"},
		{0x7C032000, "cmp       r3, r4"},
		{0xC8210008, "lfd       f1, [r1 + 0x0008]"},
		{0xD8210008, "stfd      [r1 + 0x0008], f1"},
		{0xFC200890, "fmr       f1, f1"},
	}
	for _, tt := range tests {
		got := DisassembleOne(0x1000, tt.op)
		require.Equal(t, tt.want, got, "opcode %08X", tt.op)
	}
}

func TestDisassembleOneIsStable(t *testing.T) {
	// Re-entrant and side-effect-free: repeated invocations agree.
	for _, op := range []uint32{0x38210010, 0x54832006, 0x4E800020, 0x7C632214} {
		first := DisassembleOne(0x2000, op)
		for i := 0; i < 3; i++ {
			require.Equal(t, first, DisassembleOne(0x2000, op))
		}
	}
}

func TestDisassembleOneUnknownRendersInvalid(t *testing.T) {
	got := DisassembleOne(0, 0x00000000)
	require.True(t, strings.HasPrefix(got, ".invalid"), "got %q", got)
}

func TestMnemonicColumnAlignment(t *testing.T) {
	// Operands start at column 10 for every mnemonic short enough to pad.
	for _, op := range []uint32{0x38210010, 0x80610008, 0x7C632214} {
		text := DisassembleOne(0x1000, op)
		require.Equal(t, byte(' '), text[9], "got %q", text)
		require.NotEqual(t, byte(' '), text[10], "got %q", text)
	}
}

func TestDisassembleSynthesizesLabels(t *testing.T) {
	// 0x1000: bl +8   -> fn00001008
	// 0x1004: nop
	// 0x1008: blr
	code := []byte{
		0x48, 0x00, 0x00, 0x09,
		0x60, 0x00, 0x00, 0x00,
		0x4E, 0x80, 0x00, 0x20,
	}
	listing := Disassemble(code, 0x1000, nil)
	require.Contains(t, listing, "fn00001008:")
	require.Contains(t, listing, "00001000  48000009  bl")
}

func TestDisassemblePlainBranchGetsLabel(t *testing.T) {
	// b +8 without link produces a label prefix, not fn.
	code := []byte{
		0x48, 0x00, 0x00, 0x08,
		0x60, 0x00, 0x00, 0x00,
		0x4E, 0x80, 0x00, 0x20,
	}
	listing := Disassemble(code, 0x1000, nil)
	require.Contains(t, listing, "label00001008:")
	require.NotContains(t, listing, "fn00001008:")
}

func TestDisassembleInjectsCallerLabels(t *testing.T) {
	code := []byte{
		0x60, 0x00, 0x00, 0x00,
		0x4E, 0x80, 0x00, 0x20,
	}
	listing := Disassemble(code, 0x2000, map[uint32]string{0x2004: "decompress_entry"})
	require.Contains(t, listing, "decompress_entry:")
}

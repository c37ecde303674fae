// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ppc32

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistersDefaults(t *testing.T) {
	r := NewRegisters()
	require.Equal(t, uint64(1), r.TBRTicksPerCycle)
	require.Equal(t, uint32(0), r.PC)
	require.False(t, r.Terminate)
	for i := 0; i < 32; i++ {
		require.Equal(t, uint32(0), r.GPR[i])
		require.Equal(t, uint64(0), r.FPR[i])
	}
}

func TestCRFieldNumberingFromMSB(t *testing.T) {
	r := NewRegisters()
	r.SetCRField(0, 0xF)
	require.Equal(t, uint32(0xF0000000), r.CR, "field 0 is the high nibble")
	r.SetCRField(7, 0xA)
	require.Equal(t, uint32(0xF000000A), r.CR)
	require.Equal(t, uint32(0xF), r.CRField(0))
	require.Equal(t, uint32(0xA), r.CRField(7))
}

func TestCRFieldBitAccessors(t *testing.T) {
	r := NewRegisters()
	r.SetCRField(2, 0x8) // LT
	require.True(t, r.CRFieldLT(2))
	require.False(t, r.CRFieldGT(2))
	r.SetCRField(2, 0x4) // GT
	require.True(t, r.CRFieldGT(2))
	r.SetCRField(2, 0x2) // EQ
	require.True(t, r.CRFieldEQ(2))
	r.SetCRField(2, 0x1) // SO
	require.True(t, r.CRFieldSO(2))
}

func TestXERBits(t *testing.T) {
	r := NewRegisters()
	r.SetXERSO(true)
	require.Equal(t, uint32(1)<<31, r.XER)
	require.True(t, r.XERSO())
	r.SetXERCA(true)
	require.True(t, r.XERCA())
	r.SetXERCA(false)
	require.False(t, r.XERCA())
	require.True(t, r.XERSO(), "clearing CA must not disturb SO")

	r.SetXERByteCount(0x7F + 1) // masked to 7 bits
	require.Equal(t, uint32(0), r.XERByteCount())
	r.SetXERByteCount(33)
	require.Equal(t, uint32(33), r.XERByteCount())
}

func TestSetCR0UsesXERSO(t *testing.T) {
	r := NewRegisters()
	r.setCR0(-5)
	require.Equal(t, uint32(0x8), r.CRField(0))
	r.setCR0(5)
	require.Equal(t, uint32(0x4), r.CRField(0))
	r.setCR0(0)
	require.Equal(t, uint32(0x2), r.CRField(0))

	r.SetXERSO(true)
	r.setCR0(0)
	require.Equal(t, uint32(0x3), r.CRField(0), "SO is copied from XER.SO")
}

func TestSignedAndFloatViews(t *testing.T) {
	r := NewRegisters()
	r.SetGPRSigned(3, -1)
	require.Equal(t, uint32(0xFFFFFFFF), r.GPR[3])
	require.Equal(t, int32(-1), r.GPRSigned(3))

	r.SetFPRFloat(1, 1.5)
	require.Equal(t, uint64(0x3FF8000000000000), r.FPR[1])
	require.Equal(t, 1.5, r.FPRFloat(1))
}

func TestStringRendersFixedColumns(t *testing.T) {
	r := NewRegisters()
	r.GPR[0] = 0xDEADBEEF
	r.PC = 0x1000
	first := r.String()
	require.Equal(t, first, r.String(), "diagnostic form must be stable")

	lines := strings.Split(strings.TrimRight(first, "\n"), "\n")
	require.Len(t, lines, 9, "8 GPR rows plus one special-register row")
	require.Contains(t, lines[0], "r0 =deadbeef")
	require.Contains(t, lines[8], "pc=00001000")
}

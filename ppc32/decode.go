// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ppc32

// insn is a raw 32-bit PowerPC instruction word with field-extraction
// helpers at the fixed bit positions the UISA specifies. Naming follows the
// architecture manual; the shifts are expressed from the LSB (bit 0) rather
// than IBM's MSB-0 convention, but name-for-name they extract the same
// fields.
type insn uint32

func (i insn) op() uint32  { return uint32(i) >> 26 }
func (i insn) rd() int     { return int((uint32(i) >> 21) & 0x1F) }
func (i insn) rs() int     { return int((uint32(i) >> 21) & 0x1F) }
func (i insn) ra() int     { return int((uint32(i) >> 16) & 0x1F) }
func (i insn) rb() int     { return int((uint32(i) >> 11) & 0x1F) }
func (i insn) rc() bool    { return uint32(i)&1 != 0 }
func (i insn) oe() bool    { return (uint32(i)>>10)&1 != 0 }
func (i insn) aa() bool    { return (uint32(i)>>1)&1 != 0 }
func (i insn) lk() bool    { return uint32(i)&1 != 0 }
func (i insn) bo() uint32  { return (uint32(i) >> 21) & 0x1F }
func (i insn) bi() uint32  { return (uint32(i) >> 16) & 0x1F }
func (i insn) sh() uint32  { return (uint32(i) >> 11) & 0x1F }
func (i insn) mb() uint32  { return (uint32(i) >> 6) & 0x1F }
func (i insn) me() uint32  { return (uint32(i) >> 1) & 0x1F }
func (i insn) xo10() uint32 { return (uint32(i) >> 1) & 0x3FF }
func (i insn) xo5() uint32  { return (uint32(i) >> 1) & 0x1F } // short form, family 0x3F

// simm is the 16-bit signed immediate, sign-extended to 32 bits.
func (i insn) simm() int32 { return int32(int16(uint32(i) & 0xFFFF)) }

// uimm is the 16-bit unsigned immediate.
func (i insn) uimm() uint32 { return uint32(i) & 0xFFFF }

// bd is the 14-bit branch displacement, sign-extended and shifted left 2.
func (i insn) bd() int32 {
	raw := (uint32(i) >> 2) & 0x3FFF
	return signExtend(raw, 14) << 2
}

// li is the 24-bit unconditional-branch displacement, sign-extended and
// shifted left 2.
func (i insn) li() int32 {
	raw := (uint32(i) >> 2) & 0xFFFFFF
	return signExtend(raw, 24) << 2
}

// spr decodes the split SPR field used by mfspr/mtspr: the architecture
// stores the 10-bit SPR number with its two 5-bit halves swapped.
func (i insn) spr() uint32 {
	lo := (uint32(i) >> 16) & 0x1F
	hi := (uint32(i) >> 11) & 0x1F
	return lo | (hi << 5)
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// maskBeginEnd builds the standard PowerPC rotate mask: all-ones from bit
// mb through bit me inclusive, in MSB-0 (bit 0 is most significant) numbering,
// wrapping if mb > me.
func maskBeginEnd(mb, me uint32) uint32 {
	var m uint32
	if mb <= me {
		for b := mb; b <= me; b++ {
			m |= 1 << (31 - b)
		}
	} else {
		for b := uint32(0); b <= me; b++ {
			m |= 1 << (31 - b)
		}
		for b := mb; b <= 31; b++ {
			m |= 1 << (31 - b)
		}
	}
	return m
}

func rotl32(v uint32, n uint32) uint32 {
	n &= 31
	return (v << n) | (v >> (32 - n))
}

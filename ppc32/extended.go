// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ppc32

import (
	"math/bits"

	"github.com/saferwall/macres/errcode"
	"github.com/saferwall/macres/memory"
)

// extended31Table holds the handlers reachable through primary opcode 31,
// keyed by the 10-bit extended opcode. OE=1 variants of the XO-form
// arithmetic group fold onto the same handler as the base opcode (raw
// sub-opcode value + 512), so the dispatch can reject them with a precise
// error instead of a generic unknown-opcode failure.
var extended31Table map[uint32]handler

func init() {
	extended31Table = map[uint32]handler{
		0:   execCmp,
		4:   execTw,
		8:   execSubfc,
		10:  execAddc,
		11:  execMulhwu,
		19:  execMfcr,
		23:  execLwzx,
		24:  execSlw,
		26:  execCntlzw,
		28:  execAndX,
		32:  execCmpl,
		40:  execSubf,
		55:  execLwzux,
		60:  execAndc,
		75:  execMulhw,
		87:  execLbzx,
		104: execNeg,
		119: execLbzux,
		124: execNorX,
		136: execSubfe,
		138: execAdde,
		144: execMtcrf,
		150: execStwcx,
		151: execStwx,
		183: execStwux,
		200: execSubfze,
		202: execAddze,
		215: execStbx,
		232: execSubfme,
		234: execAddme,
		235: execMullw,
		247: execStbux,
		266: execAdd,
		279: execLhzx,
		284: execEqv,
		311: execLhzux,
		316: execXorX,
		339: execMfspr,
		343: execLhax,
		371: execMftb,
		375: execLhaux,
		407: execSthx,
		412: execOrc,
		439: execSthux,
		444: execOrX,
		459: execDivwu,
		467: execMtspr,
		476: execNand,
		491: execDivw,
		534: execLwbrx,
		536: execSrw,
		598: execSync,
		662: execStwbrx,
		790: execLhbrx,
		792: execSraw,
		824: execSrawi,
		854: execEieio,
		918: execSthbrx,
		922: execExtsh,
		954: execExtsb,
	}
	// OE=1 aliases for the XO-form arithmetic group; the handlers reject
	// them via insn.oe().
	for _, xo := range []uint32{8, 10, 40, 104, 136, 138, 200, 202, 232, 234, 235, 266, 459, 491} {
		extended31Table[xo+512] = extended31Table[xo]
	}
}

func execExtended31(e *Emulator, i insn) error {
	h, ok := extended31Table[i.xo10()]
	if !ok || h == nil {
		return e.unimplemented(i)
	}
	return h(e, i)
}

func rejectOE(e *Emulator, i insn) error {
	if i.oe() {
		return errcode.Wrap(errcode.Unimplemented, ErrOverflowUnsupported)
	}
	return nil
}

// ---- register-register logical (X-form) ----

func logicalResult(e *Emulator, i insn, r uint32) error {
	e.Regs.GPR[i.ra()] = r
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

func execAndX(e *Emulator, i insn) error {
	return logicalResult(e, i, e.Regs.GPR[i.rs()]&e.Regs.GPR[i.rb()])
}

// execOrX also implements the "mr" pseudo-instruction when RS == RB, which
// the disassembler special-cases for display purposes only.
func execOrX(e *Emulator, i insn) error {
	return logicalResult(e, i, e.Regs.GPR[i.rs()]|e.Regs.GPR[i.rb()])
}

func execXorX(e *Emulator, i insn) error {
	return logicalResult(e, i, e.Regs.GPR[i.rs()]^e.Regs.GPR[i.rb()])
}

func execNorX(e *Emulator, i insn) error {
	return logicalResult(e, i, ^(e.Regs.GPR[i.rs()] | e.Regs.GPR[i.rb()]))
}

func execAndc(e *Emulator, i insn) error {
	return logicalResult(e, i, e.Regs.GPR[i.rs()]&^e.Regs.GPR[i.rb()])
}

func execOrc(e *Emulator, i insn) error {
	return logicalResult(e, i, e.Regs.GPR[i.rs()]|^e.Regs.GPR[i.rb()])
}

func execNand(e *Emulator, i insn) error {
	return logicalResult(e, i, ^(e.Regs.GPR[i.rs()] & e.Regs.GPR[i.rb()]))
}

func execEqv(e *Emulator, i insn) error {
	return logicalResult(e, i, ^(e.Regs.GPR[i.rs()] ^ e.Regs.GPR[i.rb()]))
}

func execCntlzw(e *Emulator, i insn) error {
	return logicalResult(e, i, uint32(bits.LeadingZeros32(e.Regs.GPR[i.rs()])))
}

func execExtsb(e *Emulator, i insn) error {
	return logicalResult(e, i, uint32(int32(int8(e.Regs.GPR[i.rs()]))))
}

func execExtsh(e *Emulator, i insn) error {
	return logicalResult(e, i, uint32(int32(int16(e.Regs.GPR[i.rs()]))))
}

// ---- XO-form arithmetic ----

func execAdd(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	r := e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
	e.Regs.GPR[i.rd()] = r
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

func execSubf(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	r := e.Regs.GPR[i.rb()] - e.Regs.GPR[i.ra()]
	e.Regs.GPR[i.rd()] = r
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

func execNeg(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	r := -e.Regs.GPRSigned(i.ra())
	e.Regs.SetGPRSigned(i.rd(), r)
	if i.rc() {
		e.Regs.setCR0(r)
	}
	return nil
}

func execAddc(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := e.Regs.GPR[i.ra()]
	r := a + e.Regs.GPR[i.rb()]
	e.Regs.GPR[i.rd()] = r
	e.Regs.SetXERCA(r < a)
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

func execSubfc(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := e.Regs.GPR[i.ra()]
	b := e.Regs.GPR[i.rb()]
	e.Regs.GPR[i.rd()] = b - a
	e.Regs.SetXERCA(b >= a)
	if i.rc() {
		e.Regs.setCR0(int32(b - a))
	}
	return nil
}

func carryIn(e *Emulator) uint32 {
	if e.Regs.XERCA() {
		return 1
	}
	return 0
}

func execAdde(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := uint64(e.Regs.GPR[i.ra()])
	b := uint64(e.Regs.GPR[i.rb()])
	sum := a + b + uint64(carryIn(e))
	e.Regs.GPR[i.rd()] = uint32(sum)
	e.Regs.SetXERCA(sum > 0xFFFFFFFF)
	if i.rc() {
		e.Regs.setCR0(int32(sum))
	}
	return nil
}

func execSubfe(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := uint64(^e.Regs.GPR[i.ra()])
	b := uint64(e.Regs.GPR[i.rb()])
	sum := a + b + uint64(carryIn(e))
	e.Regs.GPR[i.rd()] = uint32(sum)
	e.Regs.SetXERCA(sum > 0xFFFFFFFF)
	if i.rc() {
		e.Regs.setCR0(int32(sum))
	}
	return nil
}

func execAddze(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := uint64(e.Regs.GPR[i.ra()])
	sum := a + uint64(carryIn(e))
	e.Regs.GPR[i.rd()] = uint32(sum)
	e.Regs.SetXERCA(sum > 0xFFFFFFFF)
	if i.rc() {
		e.Regs.setCR0(int32(sum))
	}
	return nil
}

func execSubfze(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := uint64(^e.Regs.GPR[i.ra()])
	sum := a + uint64(carryIn(e))
	e.Regs.GPR[i.rd()] = uint32(sum)
	e.Regs.SetXERCA(sum > 0xFFFFFFFF)
	if i.rc() {
		e.Regs.setCR0(int32(sum))
	}
	return nil
}

func execAddme(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := uint64(e.Regs.GPR[i.ra()])
	sum := a + uint64(carryIn(e)) + 0xFFFFFFFF
	e.Regs.GPR[i.rd()] = uint32(sum)
	e.Regs.SetXERCA(sum > 0xFFFFFFFF)
	if i.rc() {
		e.Regs.setCR0(int32(sum))
	}
	return nil
}

func execSubfme(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := uint64(^e.Regs.GPR[i.ra()])
	sum := a + uint64(carryIn(e)) + 0xFFFFFFFF
	e.Regs.GPR[i.rd()] = uint32(sum)
	e.Regs.SetXERCA(sum > 0xFFFFFFFF)
	if i.rc() {
		e.Regs.setCR0(int32(sum))
	}
	return nil
}

func execMullw(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	r := e.Regs.GPRSigned(i.ra()) * e.Regs.GPRSigned(i.rb())
	e.Regs.SetGPRSigned(i.rd(), r)
	if i.rc() {
		e.Regs.setCR0(r)
	}
	return nil
}

func execMulhw(e *Emulator, i insn) error {
	p := int64(e.Regs.GPRSigned(i.ra())) * int64(e.Regs.GPRSigned(i.rb()))
	r := int32(p >> 32)
	e.Regs.SetGPRSigned(i.rd(), r)
	if i.rc() {
		e.Regs.setCR0(r)
	}
	return nil
}

func execMulhwu(e *Emulator, i insn) error {
	p := uint64(e.Regs.GPR[i.ra()]) * uint64(e.Regs.GPR[i.rb()])
	r := uint32(p >> 32)
	e.Regs.GPR[i.rd()] = r
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

func execDivw(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := e.Regs.GPRSigned(i.ra())
	b := e.Regs.GPRSigned(i.rb())
	var r int32
	// Division by zero and the INT_MIN/-1 overflow case leave an undefined
	// result in the architecture; zero is as good as any.
	if b != 0 && !(a == -1<<31 && b == -1) {
		r = a / b
	}
	e.Regs.SetGPRSigned(i.rd(), r)
	if i.rc() {
		e.Regs.setCR0(r)
	}
	return nil
}

func execDivwu(e *Emulator, i insn) error {
	if err := rejectOE(e, i); err != nil {
		return err
	}
	a := e.Regs.GPR[i.ra()]
	b := e.Regs.GPR[i.rb()]
	var r uint32
	if b != 0 {
		r = a / b
	}
	e.Regs.GPR[i.rd()] = r
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

// ---- compares ----

func execCmp(e *Emulator, i insn) error {
	field := int((uint32(i) >> 23) & 0x7)
	setCmpField(e, field, int64(e.Regs.GPRSigned(i.ra())), int64(e.Regs.GPRSigned(i.rb())), false)
	return nil
}

func execCmpl(e *Emulator, i insn) error {
	field := int((uint32(i) >> 23) & 0x7)
	setCmpField(e, field, int64(e.Regs.GPR[i.ra()]), int64(e.Regs.GPR[i.rb()]), true)
	return nil
}

// ---- shifts ----

func execSlw(e *Emulator, i insn) error {
	n := e.Regs.GPR[i.rb()] & 0x3F
	var r uint32
	if n < 32 {
		r = e.Regs.GPR[i.rs()] << n
	}
	return logicalResult(e, i, r)
}

func execSrw(e *Emulator, i insn) error {
	n := e.Regs.GPR[i.rb()] & 0x3F
	var r uint32
	if n < 32 {
		r = e.Regs.GPR[i.rs()] >> n
	}
	return logicalResult(e, i, r)
}

func execSraw(e *Emulator, i insn) error {
	n := e.Regs.GPR[i.rb()] & 0x3F
	s := e.Regs.GPRSigned(i.rs())
	var r int32
	var carry bool
	if n >= 32 {
		if s < 0 {
			r = -1
			carry = true
		}
	} else if n > 0 {
		r = s >> n
		carry = s < 0 && (uint32(s)<<(32-n)) != 0
	} else {
		r = s
	}
	e.Regs.SetGPRSigned(i.ra(), r)
	e.Regs.SetXERCA(carry)
	if i.rc() {
		e.Regs.setCR0(r)
	}
	return nil
}

func execSrawi(e *Emulator, i insn) error {
	n := i.sh()
	s := e.Regs.GPRSigned(i.rs())
	r := s
	carry := false
	if n > 0 {
		r = s >> n
		carry = s < 0 && (uint32(s)<<(32-n)) != 0
	}
	e.Regs.SetGPRSigned(i.ra(), r)
	e.Regs.SetXERCA(carry)
	if i.rc() {
		e.Regs.setCR0(r)
	}
	return nil
}

// ---- indexed loads / stores ----

func effAddrX(e *Emulator, i insn) uint32 {
	if i.ra() == 0 {
		return e.Regs.GPR[i.rb()]
	}
	return e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
}

func execLwzx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	v, err := e.Mem.ReadU32(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = v
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLwzux(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	addr := e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
	e.Regs.GPR[i.ra()] = addr
	v, err := e.Mem.ReadU32(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = v
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLbzx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	v, err := e.Mem.ReadU8(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLbzux(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	addr := e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
	e.Regs.GPR[i.ra()] = addr
	v, err := e.Mem.ReadU8(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLhzx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	v, err := e.Mem.ReadU16(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLhzux(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	addr := e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
	e.Regs.GPR[i.ra()] = addr
	v, err := e.Mem.ReadU16(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLhax(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	v, err := e.Mem.ReadS16(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.SetGPRSigned(i.rd(), int32(v))
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLhaux(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	addr := e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
	e.Regs.GPR[i.ra()] = addr
	v, err := e.Mem.ReadS16(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.SetGPRSigned(i.rd(), int32(v))
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStwx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	if err := e.Mem.WriteU32(memory.Addr(addr), e.Regs.GPR[i.rs()]); err != nil {
		return err
	}
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStwux(e *Emulator, i insn) error {
	if err := checkStoreUpdateForm(i.ra()); err != nil {
		return err
	}
	addr := e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
	if err := e.Mem.WriteU32(memory.Addr(addr), e.Regs.GPR[i.rs()]); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = addr
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStbx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	if err := e.Mem.WriteU8(memory.Addr(addr), uint8(e.Regs.GPR[i.rs()])); err != nil {
		return err
	}
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStbux(e *Emulator, i insn) error {
	if err := checkStoreUpdateForm(i.ra()); err != nil {
		return err
	}
	addr := e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
	if err := e.Mem.WriteU8(memory.Addr(addr), uint8(e.Regs.GPR[i.rs()])); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = addr
	e.Regs.LastAccessAddr = addr
	return nil
}

func execSthx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	if err := e.Mem.WriteU16(memory.Addr(addr), uint16(e.Regs.GPR[i.rs()])); err != nil {
		return err
	}
	e.Regs.LastAccessAddr = addr
	return nil
}

func execSthux(e *Emulator, i insn) error {
	if err := checkStoreUpdateForm(i.ra()); err != nil {
		return err
	}
	addr := e.Regs.GPR[i.ra()] + e.Regs.GPR[i.rb()]
	if err := e.Mem.WriteU16(memory.Addr(addr), uint16(e.Regs.GPR[i.rs()])); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = addr
	e.Regs.LastAccessAddr = addr
	return nil
}

// Byte-reversed loads/stores move the guest value without the big-endian
// swap the normal accessors apply, so they go through At directly.

func execLwbrx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	b, err := e.Mem.At(memory.Addr(addr), 4)
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLhbrx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	b, err := e.Mem.At(memory.Addr(addr), 2)
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(b[0]) | uint32(b[1])<<8
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStwbrx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	b, err := e.Mem.At(memory.Addr(addr), 4)
	if err != nil {
		return err
	}
	v := e.Regs.GPR[i.rs()]
	b[0] = uint8(v)
	b[1] = uint8(v >> 8)
	b[2] = uint8(v >> 16)
	b[3] = uint8(v >> 24)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execSthbrx(e *Emulator, i insn) error {
	addr := effAddrX(e, i)
	b, err := e.Mem.At(memory.Addr(addr), 2)
	if err != nil {
		return err
	}
	v := e.Regs.GPR[i.rs()]
	b[0] = uint8(v)
	b[1] = uint8(v >> 8)
	e.Regs.LastAccessAddr = addr
	return nil
}

// ---- condition register / SPR access ----

func execMfcr(e *Emulator, i insn) error {
	e.Regs.GPR[i.rd()] = e.Regs.CR
	return nil
}

func execMtcrf(e *Emulator, i insn) error {
	crm := (uint32(i) >> 12) & 0xFF
	var mask uint32
	for f := 0; f < 8; f++ {
		if crm&(0x80>>uint(f)) != 0 {
			mask |= 0xF << uint(28-4*f)
		}
	}
	e.Regs.CR = (e.Regs.CR &^ mask) | (e.Regs.GPR[i.rs()] & mask)
	return nil
}

// sprXER/sprLR/sprCTR are the only SPR numbers mfspr/mtspr accept, per
// spec §4.3's restricted register set.
const (
	sprXER = 1
	sprLR  = 8
	sprCTR = 9
)

func execMfspr(e *Emulator, i insn) error {
	switch i.spr() {
	case sprXER:
		e.Regs.GPR[i.rd()] = e.Regs.XER
	case sprLR:
		e.Regs.GPR[i.rd()] = e.Regs.LR
	case sprCTR:
		e.Regs.GPR[i.rd()] = e.Regs.CTR
	default:
		return e.unimplemented(i)
	}
	return nil
}

func execMtspr(e *Emulator, i insn) error {
	switch i.spr() {
	case sprXER:
		e.Regs.XER = e.Regs.GPR[i.rs()]
	case sprLR:
		e.Regs.LR = e.Regs.GPR[i.rs()]
	case sprCTR:
		e.Regs.CTR = e.Regs.GPR[i.rs()]
	default:
		return e.unimplemented(i)
	}
	return nil
}

// execMftb reads the time base. TBL is SPR 268, TBU is 269, with the same
// split-field encoding as mfspr.
func execMftb(e *Emulator, i insn) error {
	switch i.spr() {
	case 268:
		e.Regs.GPR[i.rd()] = uint32(e.Regs.TBR)
	case 269:
		e.Regs.GPR[i.rd()] = uint32(e.Regs.TBR >> 32)
	default:
		return e.unimplemented(i)
	}
	return nil
}

// ---- no-ops and traps ----

// sync, eieio and stwcx. have no observable effect in a single-threaded
// interpreter; stwcx. always reports success in CR0.EQ.
func execSync(e *Emulator, i insn) error  { return nil }
func execEieio(e *Emulator, i insn) error { return nil }

func execStwcx(e *Emulator, i insn) error {
	if !i.rc() {
		return e.unimplemented(i)
	}
	addr := effAddrX(e, i)
	if err := e.Mem.WriteU32(memory.Addr(addr), e.Regs.GPR[i.rs()]); err != nil {
		return err
	}
	v := uint32(1) << 1 // EQ: reservation "succeeded"
	if e.Regs.XERSO() {
		v |= 1
	}
	e.Regs.SetCRField(0, v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execTw(e *Emulator, i insn) error { return e.unimplemented(i) }

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ppc32

import (
	"github.com/saferwall/macres/errcode"
	"github.com/saferwall/macres/memory"
)

// handler executes one instruction. i is the full instruction word; the
// PC has not yet been advanced when a handler runs.
type handler func(e *Emulator, i insn) error

// dispatch resolves i to a handler via the two-level (primary, then
// extended/short) opcode tables and executes it.
func (e *Emulator) dispatch(i insn) error {
	h, ok := primaryTable[i.op()]
	if !ok {
		return e.unimplemented(i)
	}
	return h(e, i)
}

// primaryTable maps the top 6 bits of an instruction to its handler;
// opcodes absent from the map are unimplemented. Op 19 dispatches on its
// extended opcode in a switch, op 31 through extended31Table, and op 63
// (floating point) is unimplemented.
var primaryTable = map[uint32]handler{
	3:  execTwi,
	7:  execMulli,
	8:  execSubfic,
	10: execCmpli,
	11: execCmpi,
	12: execAddic,
	13: execAddicDot,
	14: execAddi,
	15: execAddis,
	16: execBc,
	17: execSc,
	18: execB,
	19: execExtended19,
	20: execRlwimi,
	21: execRlwinm,
	23: execRlwnm,
	24: execOri,
	25: execOris,
	26: execXori,
	27: execXoris,
	28: execAndiDot,
	29: execAndisDot,
	31: execExtended31,
	32: execLwz,
	33: execLwzu,
	34: execLbz,
	35: execLbzu,
	36: execStw,
	37: execStwu,
	38: execStb,
	39: execStbu,
	40: execLhz,
	41: execLhzu,
	42: execLha,
	43: execLhau,
	44: execSth,
	45: execSthu,
	46: execLmw,
	47: execStmw,
	48: execLfs,
	49: execLfsu,
	50: execLfd,
	51: execLfdu,
	52: execStfs,
	53: execStfsu,
	54: execStfd,
	55: execStfdu,
	63: execExtended63,
}

// ---- branch helpers ----

// branchTaken decomposes BO into {skip-CTR, branch-if-CTR-zero,
// skip-condition, condition-value} and evaluates the condition, per
// spec §4.3. It always decrements CTR when the instruction does not skip
// it, regardless of whether the branch is taken.
func (e *Emulator) branchTaken(bo, bi uint32) bool {
	skipCond := bo&0x10 != 0
	condValue := bo&0x08 != 0
	skipCTR := bo&0x04 != 0
	ctrZeroBranches := bo&0x02 != 0

	ctrOK := true
	if !skipCTR {
		e.Regs.CTR--
		if ctrZeroBranches {
			ctrOK = e.Regs.CTR == 0
		} else {
			ctrOK = e.Regs.CTR != 0
		}
	}

	condOK := true
	if !skipCond {
		field := bi / 4
		bit := bi % 4
		var bitSet bool
		switch bit {
		case 0:
			bitSet = e.Regs.CRFieldLT(int(field))
		case 1:
			bitSet = e.Regs.CRFieldGT(int(field))
		case 2:
			bitSet = e.Regs.CRFieldEQ(int(field))
		case 3:
			bitSet = e.Regs.CRFieldSO(int(field))
		}
		condOK = bitSet == condValue
	}

	return ctrOK && condOK
}

func execB(e *Emulator, i insn) error {
	target := computeBranchTarget(e.Regs.PC, i.li(), i.aa())
	if i.lk() {
		e.Regs.LR = e.Regs.PC + 4
	}
	e.Regs.PC = target - 4
	return nil
}

func execBc(e *Emulator, i insn) error {
	taken := e.branchTaken(i.bo(), i.bi())
	// The link bit writes LR = PC + 4 unconditionally, as the architecture
	// requires, even when the branch is not taken.
	if i.lk() {
		e.Regs.LR = e.Regs.PC + 4
	}
	if taken {
		target := computeBranchTarget(e.Regs.PC, i.bd(), i.aa())
		e.Regs.PC = target - 4
	}
	return nil
}

func computeBranchTarget(pc uint32, disp int32, absolute bool) uint32 {
	if absolute {
		return uint32(disp) &^ 3
	}
	return pc + uint32(disp)
}

// execExtended19 covers the XL-form branch-to-LR/CTR and condition-register
// instructions, keyed by the 10-bit extended opcode.
func execExtended19(e *Emulator, i insn) error {
	switch i.xo10() {
	case 16: // bclr[l]
		taken := e.branchTaken(i.bo(), i.bi())
		if i.lk() {
			e.Regs.LR = e.Regs.PC + 4
		}
		if taken {
			e.Regs.PC = (e.Regs.LR &^ 3) - 4
		}
		return nil
	case 528: // bcctr[l]
		taken := e.branchTaken(i.bo(), i.bi())
		if i.lk() {
			e.Regs.LR = e.Regs.PC + 4
		}
		if taken {
			e.Regs.PC = (e.Regs.CTR &^ 3) - 4
		}
		return nil
	case 150: // isync
		return nil
	case 0: // mcrf
		dst := int((uint32(i) >> 23) & 0x7)
		src := int((uint32(i) >> 18) & 0x7)
		e.Regs.SetCRField(dst, e.Regs.CRField(src))
		return nil
	case 33, 129, 193, 225, 257, 289, 417, 449: // cr-logical ops
		return execCRLogical(e, i)
	}
	return e.unimplemented(i)
}

// execCRLogical covers the eight XL-form condition-register bit operations.
// Bit numbering is MSB-0 across the whole 32-bit CR.
func execCRLogical(e *Emulator, i insn) error {
	bt := uint(i.rd())
	ba := uint(i.ra())
	bb := uint(i.rb())
	a := (e.Regs.CR >> (31 - ba)) & 1
	b := (e.Regs.CR >> (31 - bb)) & 1
	var v uint32
	switch i.xo10() {
	case 257: // crand
		v = a & b
	case 449: // cror
		v = a | b
	case 193: // crxor
		v = a ^ b
	case 33: // crnor
		v = (a | b) ^ 1
	case 225: // crnand
		v = (a & b) ^ 1
	case 129: // crandc
		v = a & (b ^ 1)
	case 289: // creqv
		v = (a ^ b) ^ 1
	case 417: // crorc
		v = a | (b ^ 1)
	}
	mask := uint32(1) << (31 - bt)
	e.Regs.CR = (e.Regs.CR &^ mask) | (v << (31 - bt))
	return nil
}

// ---- arithmetic / logical (primary forms) ----

func execAddi(e *Emulator, i insn) error {
	base := int32(0)
	if i.ra() != 0 {
		base = e.Regs.GPRSigned(i.ra())
	}
	e.Regs.SetGPRSigned(i.rd(), base+i.simm())
	return nil
}

func execAddis(e *Emulator, i insn) error {
	base := int32(0)
	if i.ra() != 0 {
		base = e.Regs.GPRSigned(i.ra())
	}
	e.Regs.SetGPRSigned(i.rd(), base+(i.simm()<<16))
	return nil
}

func execAddic(e *Emulator, i insn) error {
	a := e.Regs.GPR[i.ra()]
	sum := a + uint32(i.simm())
	e.Regs.GPR[i.rd()] = sum
	e.Regs.SetXERCA(sum < a)
	return nil
}

func execAddicDot(e *Emulator, i insn) error {
	if err := execAddic(e, i); err != nil {
		return err
	}
	e.Regs.setCR0(e.Regs.GPRSigned(i.rd()))
	return nil
}

func execSubfic(e *Emulator, i insn) error {
	a := e.Regs.GPR[i.ra()]
	imm := uint32(i.simm())
	result := imm - a
	e.Regs.GPR[i.rd()] = result
	e.Regs.SetXERCA(imm >= a)
	return nil
}

func execMulli(e *Emulator, i insn) error {
	e.Regs.SetGPRSigned(i.rd(), e.Regs.GPRSigned(i.ra())*i.simm())
	return nil
}

func execCmpi(e *Emulator, i insn) error {
	field := int((uint32(i) >> 23) & 0x7) // crfD occupies bits 6-8 of the instruction
	a := e.Regs.GPRSigned(i.ra())
	setCmpField(e, field, int64(a), int64(i.simm()), false)
	return nil
}

func execCmpli(e *Emulator, i insn) error {
	field := int((uint32(i) >> 23) & 0x7)
	a := e.Regs.GPR[i.ra()]
	setCmpField(e, field, int64(a), int64(i.uimm()), true)
	return nil
}

func setCmpField(e *Emulator, field int, a, b int64, unsigned bool) {
	var v uint32
	switch {
	case a < b:
		v = 1 << 3
	case a > b:
		v = 1 << 2
	default:
		v = 1 << 1
	}
	if e.Regs.XERSO() {
		v |= 1
	}
	e.Regs.SetCRField(field, v)
}

func execOri(e *Emulator, i insn) error {
	e.Regs.GPR[i.ra()] = e.Regs.GPR[i.rs()] | i.uimm()
	return nil
}

func execOris(e *Emulator, i insn) error {
	e.Regs.GPR[i.ra()] = e.Regs.GPR[i.rs()] | (i.uimm() << 16)
	return nil
}

func execXori(e *Emulator, i insn) error {
	e.Regs.GPR[i.ra()] = e.Regs.GPR[i.rs()] ^ i.uimm()
	return nil
}

func execXoris(e *Emulator, i insn) error {
	e.Regs.GPR[i.ra()] = e.Regs.GPR[i.rs()] ^ (i.uimm() << 16)
	return nil
}

func execAndiDot(e *Emulator, i insn) error {
	r := e.Regs.GPR[i.rs()] & i.uimm()
	e.Regs.GPR[i.ra()] = r
	e.Regs.setCR0(int32(r))
	return nil
}

func execAndisDot(e *Emulator, i insn) error {
	r := e.Regs.GPR[i.rs()] & (i.uimm() << 16)
	e.Regs.GPR[i.ra()] = r
	e.Regs.setCR0(int32(r))
	return nil
}

// execRlwinm computes the 32-bit left rotation of RS by SH and ANDs with
// the mask generated from MB/ME in the standard PPC way.
func execRlwinm(e *Emulator, i insn) error {
	r := rotl32(e.Regs.GPR[i.rs()], i.sh()) & maskBeginEnd(i.mb(), i.me())
	e.Regs.GPR[i.ra()] = r
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

func execRlwimi(e *Emulator, i insn) error {
	mask := maskBeginEnd(i.mb(), i.me())
	rotated := rotl32(e.Regs.GPR[i.rs()], i.sh())
	r := (rotated & mask) | (e.Regs.GPR[i.ra()] &^ mask)
	e.Regs.GPR[i.ra()] = r
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

func execRlwnm(e *Emulator, i insn) error {
	shift := e.Regs.GPR[i.rb()] & 0x1F
	r := rotl32(e.Regs.GPR[i.rs()], shift) & maskBeginEnd(i.mb(), i.me())
	e.Regs.GPR[i.ra()] = r
	if i.rc() {
		e.Regs.setCR0(int32(r))
	}
	return nil
}

func execSc(e *Emulator, i insn) error {
	if e.SyscallHandler == nil {
		return errcode.Wrap(errcode.Unimplemented, ErrNoSyscallHandler)
	}
	cont, err := e.SyscallHandler(e)
	if err != nil {
		return err
	}
	if !cont {
		e.Regs.Terminate = true
	}
	return nil
}

func execTwi(e *Emulator, i insn) error { return e.unimplemented(i) }

// ---- loads / stores ----

// checkUpdateForm rejects the load-with-update encodings the architecture
// forbids: RA == 0 or RA == RT.
func checkUpdateForm(ra, rd int) error {
	if ra == 0 || ra == rd {
		return errcode.Wrap(errcode.InvalidInput, ErrIllegalUpdateForm)
	}
	return nil
}

// checkStoreUpdateForm rejects RA == 0 only: a store-with-update may use
// the same register as source and base (stwu r1, -N(r1) is the standard
// stack push).
func checkStoreUpdateForm(ra int) error {
	if ra == 0 {
		return errcode.Wrap(errcode.InvalidInput, ErrIllegalUpdateForm)
	}
	return nil
}

func effAddr(e *Emulator, ra int, disp int32) uint32 {
	base := uint32(0)
	if ra != 0 {
		base = e.Regs.GPR[ra]
	}
	return base + uint32(disp)
}

func execLwz(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	v, err := e.Mem.ReadU32(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = v
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLwzu(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	addr := effAddr(e, i.ra(), i.simm())
	e.Regs.GPR[i.ra()] = addr
	v, err := e.Mem.ReadU32(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = v
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLbz(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	v, err := e.Mem.ReadU8(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLbzu(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	addr := effAddr(e, i.ra(), i.simm())
	e.Regs.GPR[i.ra()] = addr
	v, err := e.Mem.ReadU8(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLhz(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	v, err := e.Mem.ReadU16(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLhzu(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	addr := effAddr(e, i.ra(), i.simm())
	e.Regs.GPR[i.ra()] = addr
	v, err := e.Mem.ReadU16(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.GPR[i.rd()] = uint32(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLha(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	v, err := e.Mem.ReadS16(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.SetGPRSigned(i.rd(), int32(v))
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLhau(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	addr := effAddr(e, i.ra(), i.simm())
	e.Regs.GPR[i.ra()] = addr
	v, err := e.Mem.ReadS16(memory.Addr(addr))
	if err != nil {
		return err
	}
	e.Regs.SetGPRSigned(i.rd(), int32(v))
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStw(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	if err := e.Mem.WriteU32(memory.Addr(addr), e.Regs.GPR[i.rs()]); err != nil {
		return err
	}
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStwu(e *Emulator, i insn) error {
	if err := checkStoreUpdateForm(i.ra()); err != nil {
		return err
	}
	addr := effAddr(e, i.ra(), i.simm())
	if err := e.Mem.WriteU32(memory.Addr(addr), e.Regs.GPR[i.rs()]); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = addr
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStb(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	if err := e.Mem.WriteU8(memory.Addr(addr), uint8(e.Regs.GPR[i.rs()])); err != nil {
		return err
	}
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStbu(e *Emulator, i insn) error {
	if err := checkStoreUpdateForm(i.ra()); err != nil {
		return err
	}
	addr := effAddr(e, i.ra(), i.simm())
	if err := e.Mem.WriteU8(memory.Addr(addr), uint8(e.Regs.GPR[i.rs()])); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = addr
	e.Regs.LastAccessAddr = addr
	return nil
}

func execSth(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	if err := e.Mem.WriteU16(memory.Addr(addr), uint16(e.Regs.GPR[i.rs()])); err != nil {
		return err
	}
	e.Regs.LastAccessAddr = addr
	return nil
}

func execSthu(e *Emulator, i insn) error {
	if err := checkStoreUpdateForm(i.ra()); err != nil {
		return err
	}
	addr := effAddr(e, i.ra(), i.simm())
	if err := e.Mem.WriteU16(memory.Addr(addr), uint16(e.Regs.GPR[i.rs()])); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = addr
	e.Regs.LastAccessAddr = addr
	return nil
}

// execLmw loads GPRs rd..31 from consecutive words. The architecture makes
// RA in the loaded range illegal; the usual update-form check covers it.
func execLmw(e *Emulator, i insn) error {
	if i.ra() >= i.rd() && i.ra() != 0 {
		return errcode.Wrap(errcode.InvalidInput, ErrIllegalUpdateForm)
	}
	addr := effAddr(e, i.ra(), i.simm())
	for n := i.rd(); n < 32; n++ {
		v, err := e.Mem.ReadU32(memory.Addr(addr))
		if err != nil {
			return err
		}
		e.Regs.GPR[n] = v
		addr += 4
	}
	e.Regs.LastAccessAddr = addr - 4
	return nil
}

func execStmw(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	for n := i.rs(); n < 32; n++ {
		if err := e.Mem.WriteU32(memory.Addr(addr), e.Regs.GPR[n]); err != nil {
			return err
		}
		addr += 4
	}
	e.Regs.LastAccessAddr = addr - 4
	return nil
}

// ---- floating point data movement (bit-exact, no arithmetic) ----

func execLfd(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	hi, err := e.Mem.ReadU32(memory.Addr(addr))
	if err != nil {
		return err
	}
	lo, err := e.Mem.ReadU32(memory.Addr(addr + 4))
	if err != nil {
		return err
	}
	e.Regs.FPR[i.rd()] = uint64(hi)<<32 | uint64(lo)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLfdu(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	if err := execLfd(e, i); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = effAddr(e, i.ra(), i.simm())
	return nil
}

func execStfd(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	v := e.Regs.FPR[i.rd()]
	if err := e.Mem.WriteU32(memory.Addr(addr), uint32(v>>32)); err != nil {
		return err
	}
	if err := e.Mem.WriteU32(memory.Addr(addr+4), uint32(v)); err != nil {
		return err
	}
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStfdu(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	if err := execStfd(e, i); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = effAddr(e, i.ra(), i.simm())
	return nil
}

func execLfs(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	v, err := e.Mem.ReadU32(memory.Addr(addr))
	if err != nil {
		return err
	}
	// Bit-exact movement only: the 32-bit guest value is parked in the low
	// half of the FPR, not converted to binary64 (no FP accuracy guarantee
	// beyond data movement, per spec §1 Non-goals).
	e.Regs.FPR[i.rd()] = uint64(v)
	e.Regs.LastAccessAddr = addr
	return nil
}

func execLfsu(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	if err := execLfs(e, i); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = effAddr(e, i.ra(), i.simm())
	return nil
}

func execStfs(e *Emulator, i insn) error {
	addr := effAddr(e, i.ra(), i.simm())
	if err := e.Mem.WriteU32(memory.Addr(addr), uint32(e.Regs.FPR[i.rd()])); err != nil {
		return err
	}
	e.Regs.LastAccessAddr = addr
	return nil
}

func execStfsu(e *Emulator, i insn) error {
	if err := checkUpdateForm(i.ra(), i.rd()); err != nil {
		return err
	}
	if err := execStfs(e, i); err != nil {
		return err
	}
	e.Regs.GPR[i.ra()] = effAddr(e, i.ra(), i.simm())
	return nil
}

func execExtended63(e *Emulator, i insn) error {
	return e.unimplemented(i)
}

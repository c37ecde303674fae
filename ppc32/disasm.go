// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ppc32

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// The disassembler decodes every PowerPC 32-bit user-mode instruction, even
// the ones the executor has no semantics for; the execution entry points of
// those raise an unimplemented-opcode error carrying the text produced here.
//
// Rendering rules: mnemonics are left-aligned in a 10-column field, record
// forms carry a '.' suffix, branch targets are emitted both relatively and
// absolutely in a comment, and SPR numbers render symbolically when known.

// DisassembleOne renders a single instruction. It is re-entrant and
// side-effect-free.
func (e *Emulator) DisassembleOne(pc uint32, opcode uint32) (string, error) {
	return DisassembleOne(pc, opcode), nil
}

// Disassemble renders code (big-endian 32-bit words) as a multi-line
// listing beginning at basePC. Branch targets discovered during the first
// pass become synthetic labels ("fn00001234:" for call targets,
// "label00001234:" for fall-through targets); labels supplies additional
// caller-chosen names by address.
func (e *Emulator) Disassemble(code []byte, basePC uint32, labels map[uint32]string) (string, error) {
	return Disassemble(code, basePC, labels), nil
}

// DisassembleOne is the package-level single-instruction form.
func DisassembleOne(pc uint32, opcode uint32) string {
	targets := make(map[uint32]bool)
	return dasmOne(pc, insn(opcode), targets)
}

// Disassemble is the package-level listing form.
func Disassemble(code []byte, basePC uint32, labels map[uint32]string) string {
	// Phase 1: disassemble each word, collecting branch targets. A target
	// reached by a linking branch is a function ("fn"); one reached only by
	// plain branches is a local label.
	targets := make(map[uint32]bool)
	count := len(code) / 4
	lines := make([]string, count)
	pc := basePC
	for x := 0; x < count; x++ {
		op := insn(binary.BigEndian.Uint32(code[x*4 : x*4+4]))
		lines[x] = fmt.Sprintf("%08X  %08X  %s\n", pc, uint32(op), dasmOne(pc, op, targets))
		pc += 4
	}

	// Phase 2: weave labels into the listing in address order.
	targetAddrs := make([]uint32, 0, len(targets))
	for a := range targets {
		targetAddrs = append(targetAddrs, a)
	}
	sort.Slice(targetAddrs, func(i, j int) bool { return targetAddrs[i] < targetAddrs[j] })
	labelAddrs := make([]uint32, 0, len(labels))
	for a := range labels {
		labelAddrs = append(labelAddrs, a)
	}
	sort.Slice(labelAddrs, func(i, j int) bool { return labelAddrs[i] < labelAddrs[j] })

	var b strings.Builder
	ti, li := 0, 0
	pc = basePC
	for x := 0; x < count; x++ {
		for li < len(labelAddrs) && labelAddrs[li] <= pc {
			a := labelAddrs[li]
			if a != pc {
				fmt.Fprintf(&b, "%s: // at %08X (misaligned)\n", labels[a], a)
			} else {
				fmt.Fprintf(&b, "%s:\n", labels[a])
			}
			li++
		}
		for ti < len(targetAddrs) && targetAddrs[ti] <= pc {
			a := targetAddrs[ti]
			kind := "label"
			if targets[a] {
				kind = "fn"
			}
			if a != pc {
				fmt.Fprintf(&b, "%s%08X: // (misaligned)\n", kind, a)
			} else {
				fmt.Fprintf(&b, "%s%08X:\n", kind, a)
			}
			ti++
		}
		b.WriteString(lines[x])
		pc += 4
	}
	return b.String()
}

// pad renders a mnemonic (plus optional record-form dot) left-aligned in
// the 10-column mnemonic field.
func pad(mnemonic string, rc bool) string {
	if rc {
		mnemonic += "."
	}
	if len(mnemonic) < 10 {
		mnemonic += strings.Repeat(" ", 10-len(mnemonic))
	}
	return mnemonic
}

func invalid(what string) string { return pad(".invalid", false) + what }

// mnemonicForBC resolves the BO/BI pair to a condition mnemonic using the
// standard simplified-mnemonic table, or "" for the always-branch form.
// The second return is false when no simplified form exists.
func mnemonicForBC(bo, bi uint32) (string, bool) {
	as := ((bo & 0x1E) << 5) | (bi & 3)
	if as&0x0080 != 0 {
		as &= 0x03BF
	}
	if as&0x0200 != 0 {
		as &= 0x02FF
	}
	switch as {
	case 0x0000, 0x0001:
		return "dnzf", true
	case 0x0080:
		return "ge", true
	case 0x0081:
		return "le", true
	case 0x0082:
		return "ne", true
	case 0x0083:
		return "ns", true
	case 0x0103:
		return "dnzt", true
	case 0x0140, 0x0141:
		return "dzt", true
	case 0x0180:
		return "lt", true
	case 0x0181:
		return "gt", true
	case 0x0182:
		return "eq", true
	case 0x0183:
		return "so", true
	case 0x0200:
		return "dnz", true
	case 0x0243:
		return "dz", true
	case 0x0280:
		return "", true
	}
	return "", false
}

// nameForSPR returns the symbolic name of an SPR, or "" if unknown.
func nameForSPR(spr uint32) string {
	switch spr {
	case 1:
		return "xer"
	case 8:
		return "lr"
	case 9:
		return "ctr"
	case 18:
		return "dsisr"
	case 19:
		return "dar"
	case 22:
		return "dec"
	case 25:
		return "sdr1"
	case 26:
		return "srr0"
	case 27:
		return "srr1"
	case 272, 273, 274, 275:
		return fmt.Sprintf("sprg%d", spr-272)
	case 282:
		return "ear"
	case 287:
		return "pvr"
	case 1013:
		return "dabr"
	}
	if spr >= 528 && spr <= 543 {
		kind := "ibat"
		n := spr - 528
		if n >= 8 {
			kind = "dbat"
			n -= 8
		}
		half := "u"
		if n&1 != 0 {
			half = "l"
		}
		return fmt.Sprintf("%s%d%s", kind, n/2, half)
	}
	return ""
}

// dasmDAB renders "mnem rD, rA, rB".
func dasmDAB(i insn, mnem string) string {
	return pad(mnem, false) + fmt.Sprintf("r%d, r%d, r%d", i.rd(), i.ra(), i.rb())
}

// dasmDABRc renders "mnem[.] rD, rA, rB" for the XO-form arithmetic group.
func dasmDABRc(i insn, mnem string) string {
	if i.oe() {
		mnem += "o"
	}
	return pad(mnem, i.rc()) + fmt.Sprintf("r%d, r%d, r%d", i.rd(), i.ra(), i.rb())
}

// dasmDARc renders "mnem[.] rD, rA" for the two-operand XO forms.
func dasmDARc(i insn, mnem string) string {
	if i.oe() {
		mnem += "o"
	}
	return pad(mnem, i.rc()) + fmt.Sprintf("r%d, r%d", i.rd(), i.ra())
}

// dasmSABRc renders "mnem[.] rA, rS, rB" for the X-form logical group.
func dasmSABRc(i insn, mnem string) string {
	return pad(mnem, i.rc()) + fmt.Sprintf("r%d, r%d, r%d", i.ra(), i.rs(), i.rb())
}

// dasmSARc renders "mnem[.] rA, rS".
func dasmSARc(i insn, mnem string) string {
	return pad(mnem, i.rc()) + fmt.Sprintf("r%d, r%d", i.ra(), i.rs())
}

// effRef renders a load/store effective-address operand.
func effRef(ra int, imm int32) string {
	switch {
	case imm < 0:
		return fmt.Sprintf("[r%d - 0x%04X]", ra, -imm)
	case imm > 0:
		return fmt.Sprintf("[r%d + 0x%04X]", ra, imm)
	default:
		return fmt.Sprintf("[r%d]", ra)
	}
}

// dasmLoadStoreImm renders the D-form load/store family, including the
// update ('u') variants and the FPR-targeted variants.
func dasmLoadStoreImm(i insn, mnem string, store, fpReg bool) string {
	regClass := "r"
	if fpReg {
		regClass = "f"
	}
	data := fmt.Sprintf("%s%d", regClass, i.rd())
	ref := effRef(i.ra(), i.simm())
	if store {
		return pad(mnem, false) + ref + ", " + data
	}
	return pad(mnem, false) + data + ", " + ref
}

// dasmLoadStoreX renders the indexed (X-form) load/store family.
func dasmLoadStoreX(i insn, mnem string, store, fpReg bool) string {
	regClass := "r"
	if fpReg {
		regClass = "f"
	}
	data := fmt.Sprintf("%s%d", regClass, i.rd())
	ref := fmt.Sprintf("[r%d + r%d]", i.ra(), i.rb())
	if store {
		return pad(mnem, false) + ref + ", " + data
	}
	return pad(mnem, false) + data + ", " + ref
}

func branchSuffix(absolute, link bool) string {
	switch {
	case absolute && link:
		return "la"
	case absolute:
		return "a"
	case link:
		return "l"
	default:
		return ""
	}
}

// branchTargetComment renders the "relative /* absolute */" operand form
// shared by b and bc.
func branchTargetComment(offset int32, target uint32, absolute bool) string {
	if absolute {
		return fmt.Sprintf("0x%08X", target)
	}
	if offset < 0 {
		return fmt.Sprintf("-0x%08X /* %08X */", -offset, target)
	}
	return fmt.Sprintf("+0x%08X /* %08X */", offset, target)
}

func dasmB(pc uint32, i insn, targets map[uint32]bool) string {
	offset := i.li()
	target := uint32(offset)
	if !i.aa() {
		target += pc
	}
	if i.lk() {
		targets[target] = true
	} else if _, ok := targets[target]; !ok {
		targets[target] = false
	}
	return pad("b"+branchSuffix(i.aa(), i.lk()), false) +
		branchTargetComment(offset, target, i.aa())
}

func dasmBC(pc uint32, i insn, targets map[uint32]bool) string {
	offset := i.bd()
	target := uint32(offset)
	if !i.aa() {
		target += pc
	}
	if i.lk() {
		targets[target] = true
	} else if _, ok := targets[target]; !ok {
		targets[target] = false
	}

	mnem, ok := mnemonicForBC(i.bo(), i.bi())
	var head string
	if ok {
		head = pad("b"+mnem+branchSuffix(i.aa(), i.lk()), false)
		if i.bi()&0x1C != 0 {
			head += fmt.Sprintf("cr%d, ", i.bi()>>2)
		}
	} else {
		head = pad("bc"+branchSuffix(i.aa(), i.lk()), false) +
			fmt.Sprintf("%d, %d, ", i.bo(), i.bi())
	}
	return head + branchTargetComment(offset, target, i.aa())
}

func dasmBCLR(i insn) string {
	mnem, ok := mnemonicForBC(i.bo(), i.bi())
	if !ok {
		return pad("bclr", i.lk()) + fmt.Sprintf("%d, %d", i.bo(), i.bi())
	}
	ret := "b" + mnem + "lr"
	if i.lk() {
		ret += "l"
	}
	if i.bi()&0x1C != 0 {
		return pad(ret, false) + fmt.Sprintf("cr%d", i.bi()>>2)
	}
	return ret
}

func dasmBCCTR(i insn) string {
	mnem, ok := mnemonicForBC(i.bo(), i.bi())
	if !ok {
		return pad("bcctr", i.lk()) + fmt.Sprintf("%d, %d", i.bo(), i.bi())
	}
	ret := "b" + mnem + "ctr"
	if i.lk() {
		ret += "l"
	}
	if i.bi()&0x1C != 0 {
		return pad(ret, false) + fmt.Sprintf("cr%d", i.bi()>>2)
	}
	return ret
}

// dasmOne decodes one instruction word, recording branch targets in targets.
func dasmOne(pc uint32, i insn, targets map[uint32]bool) string {
	switch i.op() {
	case 3:
		return pad("twi", false) + fmt.Sprintf("%d, r%d, %d", i.rd(), i.ra(), i.simm())
	case 7:
		return pad("mulli", false) + fmt.Sprintf("r%d, r%d, %d", i.rd(), i.ra(), i.simm())
	case 8:
		return pad("subfic", false) + fmt.Sprintf("r%d, r%d, %d", i.rd(), i.ra(), i.simm())
	case 10:
		if uint32(i)&0x00600000 != 0 {
			return invalid("cmpli")
		}
		crf := (uint32(i) >> 23) & 0x7
		if crf != 0 {
			return pad("cmplwi", false) + fmt.Sprintf("cr%d, r%d, %d", crf, i.ra(), int16(i.uimm()))
		}
		return pad("cmplwi", false) + fmt.Sprintf("r%d, %d", i.ra(), int16(i.uimm()))
	case 11:
		if uint32(i)&0x00600000 != 0 {
			return invalid("cmpi")
		}
		crf := (uint32(i) >> 23) & 0x7
		if crf != 0 {
			return pad("cmpwi", false) + fmt.Sprintf("cr%d, r%d, %d", crf, i.ra(), i.simm())
		}
		return pad("cmpwi", false) + fmt.Sprintf("r%d, %d", i.ra(), i.simm())
	case 12:
		return pad("addic", false) + fmt.Sprintf("r%d, r%d, %d", i.rd(), i.ra(), i.simm())
	case 13:
		return pad("addic", true) + fmt.Sprintf("r%d, r%d, %d", i.rd(), i.ra(), i.simm())
	case 14:
		if i.ra() == 0 {
			return pad("li", false) + fmt.Sprintf("r%d, 0x%04X", i.rd(), uint32(i.simm())&0xFFFF)
		}
		if i.simm() < 0 {
			return pad("subi", false) + fmt.Sprintf("r%d, r%d, 0x%04X", i.rd(), i.ra(), -i.simm())
		}
		return pad("addi", false) + fmt.Sprintf("r%d, r%d, 0x%04X", i.rd(), i.ra(), i.simm())
	case 15:
		if i.ra() == 0 {
			return pad("lis", false) + fmt.Sprintf("r%d, 0x%04X", i.rd(), i.uimm())
		}
		return pad("addis", false) + fmt.Sprintf("r%d, r%d, 0x%04X", i.rd(), i.ra(), i.uimm())
	case 16:
		return dasmBC(pc, i, targets)
	case 17:
		if uint32(i) == 0x44000002 {
			return "sc"
		}
		return invalid("sc")
	case 18:
		return dasmB(pc, i, targets)
	case 19:
		return dasm19(i)
	case 20:
		return pad("rlwimi", i.rc()) +
			fmt.Sprintf("r%d, r%d, %d, %d, %d", i.ra(), i.rs(), i.sh(), i.mb(), i.me())
	case 21:
		return pad("rlwinm", i.rc()) +
			fmt.Sprintf("r%d, r%d, %d, %d, %d", i.ra(), i.rs(), i.sh(), i.mb(), i.me())
	case 23:
		return pad("rlwnm", i.rc()) +
			fmt.Sprintf("r%d, r%d, r%d, %d, %d", i.ra(), i.rs(), i.rb(), i.mb(), i.me())
	case 24:
		if i.uimm() == 0 {
			return pad("nop", false) + fmt.Sprintf("r%d", i.rs())
		}
		return pad("ori", false) + fmt.Sprintf("r%d, r%d, 0x%04X", i.ra(), i.rs(), i.uimm())
	case 25:
		return pad("oris", false) + fmt.Sprintf("r%d, r%d, 0x%04X", i.ra(), i.rs(), i.uimm())
	case 26:
		return pad("xori", false) + fmt.Sprintf("r%d, r%d, 0x%04X", i.ra(), i.rs(), i.uimm())
	case 27:
		return pad("xoris", false) + fmt.Sprintf("r%d, r%d, 0x%04X", i.ra(), i.rs(), i.uimm())
	case 28:
		return pad("andi", true) + fmt.Sprintf("r%d, r%d, 0x%04X", i.ra(), i.rs(), i.uimm())
	case 29:
		return pad("andis", true) + fmt.Sprintf("r%d, r%d, 0x%04X", i.ra(), i.rs(), i.uimm())
	case 31:
		return dasm31(i)
	case 32:
		return dasmLoadStoreImm(i, "lwz", false, false)
	case 33:
		return dasmLoadStoreImm(i, "lwzu", false, false)
	case 34:
		return dasmLoadStoreImm(i, "lbz", false, false)
	case 35:
		return dasmLoadStoreImm(i, "lbzu", false, false)
	case 36:
		return dasmLoadStoreImm(i, "stw", true, false)
	case 37:
		return dasmLoadStoreImm(i, "stwu", true, false)
	case 38:
		return dasmLoadStoreImm(i, "stb", true, false)
	case 39:
		return dasmLoadStoreImm(i, "stbu", true, false)
	case 40:
		return dasmLoadStoreImm(i, "lhz", false, false)
	case 41:
		return dasmLoadStoreImm(i, "lhzu", false, false)
	case 42:
		return dasmLoadStoreImm(i, "lha", false, false)
	case 43:
		return dasmLoadStoreImm(i, "lhau", false, false)
	case 44:
		return dasmLoadStoreImm(i, "sth", true, false)
	case 45:
		return dasmLoadStoreImm(i, "sthu", true, false)
	case 46:
		return dasmLoadStoreImm(i, "lmw", false, false)
	case 47:
		return dasmLoadStoreImm(i, "stmw", true, false)
	case 48:
		return dasmLoadStoreImm(i, "lfs", false, true)
	case 49:
		return dasmLoadStoreImm(i, "lfsu", false, true)
	case 50:
		return dasmLoadStoreImm(i, "lfd", false, true)
	case 51:
		return dasmLoadStoreImm(i, "lfdu", false, true)
	case 52:
		return dasmLoadStoreImm(i, "stfs", true, true)
	case 53:
		return dasmLoadStoreImm(i, "stfsu", true, true)
	case 54:
		return dasmLoadStoreImm(i, "stfd", true, true)
	case 55:
		return dasmLoadStoreImm(i, "stfdu", true, true)
	case 59:
		return dasm59(i)
	case 63:
		return dasm63(i)
	}
	return invalid(fmt.Sprintf("op=0x%02X", i.op()))
}

// dasm19 covers the XL-form branch and condition-register family.
func dasm19(i insn) string {
	switch i.xo10() {
	case 0:
		return pad("mcrf", false) +
			fmt.Sprintf("cr%d, cr%d", (uint32(i)>>23)&7, (uint32(i)>>18)&7)
	case 16:
		return dasmBCLR(i)
	case 33:
		return dasmCRBits(i, "crnor")
	case 50:
		return "rfi"
	case 129:
		return dasmCRBits(i, "crandc")
	case 150:
		return "isync"
	case 193:
		return dasmCRBits(i, "crxor")
	case 225:
		return dasmCRBits(i, "crnand")
	case 257:
		return dasmCRBits(i, "crand")
	case 289:
		return dasmCRBits(i, "creqv")
	case 417:
		return dasmCRBits(i, "crorc")
	case 449:
		return dasmCRBits(i, "cror")
	case 528:
		return dasmBCCTR(i)
	}
	return invalid(fmt.Sprintf("family 0x13 subopcode 0x%03X", i.xo10()))
}

func dasmCRBits(i insn, mnem string) string {
	return pad(mnem, false) + fmt.Sprintf("crb%d, crb%d, crb%d", i.rd(), i.ra(), i.rb())
}

// dasm31 covers the integer X/XO-form family. Overflow variants share a row
// with the base opcode: the renderer appends 'o' from the OE bit.
func dasm31(i insn) string {
	switch i.xo10() &^ 0x200 {
	case 8:
		return dasmDABRc(i, "subfc")
	case 10:
		return dasmDABRc(i, "addc")
	case 40:
		return dasmDABRc(i, "subf")
	case 104:
		return dasmDARc(i, "neg")
	case 136:
		return dasmDABRc(i, "subfe")
	case 138:
		return dasmDABRc(i, "adde")
	case 200:
		return dasmDARc(i, "subfze")
	case 202:
		return dasmDARc(i, "addze")
	case 232:
		return dasmDARc(i, "subfme")
	case 234:
		return dasmDARc(i, "addme")
	case 235:
		return dasmDABRc(i, "mullw")
	case 266:
		return dasmDABRc(i, "add")
	case 459:
		return dasmDABRc(i, "divwu")
	case 491:
		return dasmDABRc(i, "divw")
	}

	switch i.xo10() {
	case 0:
		if uint32(i)&0x00600000 != 0 {
			return invalid("cmp")
		}
		crf := (uint32(i) >> 23) & 0x7
		if crf != 0 {
			return pad("cmp", false) + fmt.Sprintf("cr%d, r%d, r%d", crf, i.ra(), i.rb())
		}
		return pad("cmp", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 4:
		return pad("tw", false) + fmt.Sprintf("%d, r%d, r%d", i.rd(), i.ra(), i.rb())
	case 11:
		return dasmDABRc(i, "mulhwu")
	case 19:
		return pad("mfcr", false) + fmt.Sprintf("r%d", i.rd())
	case 20:
		return dasmDAB(i, "lwarx")
	case 23:
		return dasmLoadStoreX(i, "lwzx", false, false)
	case 24:
		return dasmSABRc(i, "slw")
	case 26:
		return dasmSARc(i, "cntlzw")
	case 28:
		return dasmSABRc(i, "and")
	case 32:
		if uint32(i)&0x00600000 != 0 {
			return invalid("cmpl")
		}
		crf := (uint32(i) >> 23) & 0x7
		if crf != 0 {
			return pad("cmpl", false) + fmt.Sprintf("cr%d, r%d, r%d", crf, i.ra(), i.rb())
		}
		return pad("cmpl", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 54:
		return pad("dcbst", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 55:
		return dasmLoadStoreX(i, "lwzux", false, false)
	case 60:
		return dasmSABRc(i, "andc")
	case 75:
		return dasmDABRc(i, "mulhw")
	case 83:
		return pad("mfmsr", false) + fmt.Sprintf("r%d", i.rd())
	case 86:
		return pad("dcbf", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 87:
		return dasmLoadStoreX(i, "lbzx", false, false)
	case 119:
		return dasmLoadStoreX(i, "lbzux", false, false)
	case 124:
		return dasmSABRc(i, "nor")
	case 144:
		return pad("mtcrf", false) + fmt.Sprintf("0x%02X, r%d", (uint32(i)>>12)&0xFF, i.rs())
	case 146:
		return pad("mtmsr", false) + fmt.Sprintf("r%d", i.rs())
	case 150:
		return dasmLoadStoreX(i, "stwcx.", true, false)
	case 151:
		return dasmLoadStoreX(i, "stwx", true, false)
	case 183:
		return dasmLoadStoreX(i, "stwux", true, false)
	case 210:
		return pad("mtsr", false) + fmt.Sprintf("%d, r%d", (uint32(i)>>16)&0xF, i.rs())
	case 215:
		return dasmLoadStoreX(i, "stbx", true, false)
	case 242:
		return pad("mtsrin", false) + fmt.Sprintf("r%d, r%d", i.rs(), i.rb())
	case 246:
		return pad("dcbtst", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 247:
		return dasmLoadStoreX(i, "stbux", true, false)
	case 278:
		return pad("dcbt", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 279:
		return dasmLoadStoreX(i, "lhzx", false, false)
	case 284:
		return dasmSABRc(i, "eqv")
	case 306:
		return pad("tlbie", false) + fmt.Sprintf("r%d", i.rb())
	case 310:
		return dasmDAB(i, "eciwx")
	case 311:
		return dasmLoadStoreX(i, "lhzux", false, false)
	case 316:
		return dasmSABRc(i, "xor")
	case 339:
		rd := i.rd()
		if name := nameForSPR(i.spr()); name != "" {
			return pad("mf"+name, false) + fmt.Sprintf("r%d", rd)
		}
		return pad("mfspr", false) + fmt.Sprintf("r%d, %d", rd, i.spr())
	case 343:
		return dasmLoadStoreX(i, "lhax", false, false)
	case 370:
		return "tlbia"
	case 371:
		switch i.spr() {
		case 268:
			return pad("mftb", false) + fmt.Sprintf("r%d", i.rd())
		case 269:
			return pad("mftbu", false) + fmt.Sprintf("r%d", i.rd())
		}
		return pad("mftb", false) + fmt.Sprintf("r%d, %d", i.rd(), i.spr())
	case 375:
		return dasmLoadStoreX(i, "lhaux", false, false)
	case 407:
		return dasmLoadStoreX(i, "sthx", true, false)
	case 412:
		return dasmSABRc(i, "orc")
	case 439:
		return dasmLoadStoreX(i, "sthux", true, false)
	case 444:
		// "or rA, rS, rS" is the canonical register move; rendering it as
		// mr is a disassembly convenience only.
		if i.rs() == i.rb() {
			return pad("mr", i.rc()) + fmt.Sprintf("r%d, r%d", i.ra(), i.rs())
		}
		return dasmSABRc(i, "or")
	case 467:
		rs := i.rs()
		if name := nameForSPR(i.spr()); name != "" {
			return pad("mt"+name, false) + fmt.Sprintf("r%d", rs)
		}
		return pad("mtspr", false) + fmt.Sprintf("%d, r%d", i.spr(), rs)
	case 470:
		return pad("dcbi", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 476:
		return dasmSABRc(i, "nand")
	case 512:
		return pad("mcrxr", false) + fmt.Sprintf("cr%d", (uint32(i)>>23)&7)
	case 533:
		return dasmDAB(i, "lswx")
	case 534:
		return dasmLoadStoreX(i, "lwbrx", false, false)
	case 535:
		return dasmLoadStoreX(i, "lfsx", false, true)
	case 536:
		return dasmSABRc(i, "srw")
	case 566:
		return "tlbsync"
	case 567:
		return dasmLoadStoreX(i, "lfsux", false, true)
	case 595:
		return pad("mfsr", false) + fmt.Sprintf("r%d, %d", i.rd(), (uint32(i)>>16)&0xF)
	case 597:
		return pad("lswi", false) + fmt.Sprintf("r%d, r%d, %d", i.rd(), i.ra(), i.rb())
	case 598:
		return "sync"
	case 599:
		return dasmLoadStoreX(i, "lfdx", false, true)
	case 631:
		return dasmLoadStoreX(i, "lfdux", false, true)
	case 659:
		return pad("mfsrin", false) + fmt.Sprintf("r%d, r%d", i.rd(), i.rb())
	case 661:
		return dasmDAB(i, "stswx")
	case 662:
		return dasmLoadStoreX(i, "stwbrx", true, false)
	case 663:
		return dasmLoadStoreX(i, "stfsx", true, true)
	case 695:
		return dasmLoadStoreX(i, "stfsux", true, true)
	case 725:
		return pad("stswi", false) + fmt.Sprintf("r%d, r%d, %d", i.rs(), i.ra(), i.rb())
	case 727:
		return dasmLoadStoreX(i, "stfdx", true, true)
	case 758:
		return pad("dcba", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 759:
		return dasmLoadStoreX(i, "stfdux", true, true)
	case 790:
		return dasmLoadStoreX(i, "lhbrx", false, false)
	case 792:
		return dasmSABRc(i, "sraw")
	case 824:
		return pad("srawi", i.rc()) + fmt.Sprintf("r%d, r%d, %d", i.ra(), i.rs(), i.sh())
	case 854:
		return "eieio"
	case 918:
		return dasmLoadStoreX(i, "sthbrx", true, false)
	case 922:
		return dasmSARc(i, "extsh")
	case 954:
		return dasmSARc(i, "extsb")
	case 982:
		return pad("icbi", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	case 983:
		return dasmLoadStoreX(i, "stfiwx", true, true)
	case 1014:
		return pad("dcbz", false) + fmt.Sprintf("r%d, r%d", i.ra(), i.rb())
	}
	return invalid(fmt.Sprintf("family 0x1F subopcode 0x%03X", i.xo10()))
}

// dasmFPR3 renders "mnem[.] fD, fA, fB".
func dasmFPR3(i insn, mnem string) string {
	return pad(mnem, i.rc()) + fmt.Sprintf("f%d, f%d, f%d", i.rd(), i.ra(), i.rb())
}

// dasmFPR2 renders "mnem[.] fD, fB".
func dasmFPR2(i insn, mnem string) string {
	return pad(mnem, i.rc()) + fmt.Sprintf("f%d, f%d", i.rd(), i.rb())
}

// dasmFPR4 renders the A-form fused multiply group "mnem[.] fD, fA, fC, fB".
func dasmFPR4(i insn, mnem string) string {
	fc := int((uint32(i) >> 6) & 0x1F)
	return pad(mnem, i.rc()) + fmt.Sprintf("f%d, f%d, f%d, f%d", i.rd(), i.ra(), fc, i.rb())
}

// dasm59 covers the single-precision floating-point arithmetic family.
func dasm59(i insn) string {
	switch i.xo5() {
	case 18:
		return dasmFPR3(i, "fdivs")
	case 20:
		return dasmFPR3(i, "fsubs")
	case 21:
		return dasmFPR3(i, "fadds")
	case 22:
		return dasmFPR2(i, "fsqrts")
	case 24:
		return dasmFPR2(i, "fres")
	case 25:
		fc := int((uint32(i) >> 6) & 0x1F)
		return pad("fmuls", i.rc()) + fmt.Sprintf("f%d, f%d, f%d", i.rd(), i.ra(), fc)
	case 28:
		return dasmFPR4(i, "fmsubs")
	case 29:
		return dasmFPR4(i, "fmadds")
	case 30:
		return dasmFPR4(i, "fnmsubs")
	case 31:
		return dasmFPR4(i, "fnmadds")
	}
	return invalid(fmt.Sprintf("family 0x3B subopcode 0x%02X", i.xo5()))
}

// dasm63 covers the double-precision floating-point family: the 5-bit short
// sub-opcode selects the arithmetic group, the 10-bit field the rest.
func dasm63(i insn) string {
	switch i.xo5() {
	case 18:
		return dasmFPR3(i, "fdiv")
	case 20:
		return dasmFPR3(i, "fsub")
	case 21:
		return dasmFPR3(i, "fadd")
	case 22:
		return dasmFPR2(i, "fsqrt")
	case 23:
		return dasmFPR4(i, "fsel")
	case 25:
		fc := int((uint32(i) >> 6) & 0x1F)
		return pad("fmul", i.rc()) + fmt.Sprintf("f%d, f%d, f%d", i.rd(), i.ra(), fc)
	case 26:
		return dasmFPR2(i, "frsqrte")
	case 28:
		return dasmFPR4(i, "fmsub")
	case 29:
		return dasmFPR4(i, "fmadd")
	case 30:
		return dasmFPR4(i, "fnmsub")
	case 31:
		return dasmFPR4(i, "fnmadd")
	}

	switch i.xo10() {
	case 0:
		return pad("fcmpu", false) + fmt.Sprintf("cr%d, f%d, f%d", (uint32(i)>>23)&7, i.ra(), i.rb())
	case 12:
		return dasmFPR2(i, "frsp")
	case 14:
		return dasmFPR2(i, "fctiw")
	case 15:
		return dasmFPR2(i, "fctiwz")
	case 32:
		return pad("fcmpo", false) + fmt.Sprintf("cr%d, f%d, f%d", (uint32(i)>>23)&7, i.ra(), i.rb())
	case 38:
		return pad("mtfsb1", i.rc()) + fmt.Sprintf("crb%d", i.rd())
	case 40:
		return dasmFPR2(i, "fneg")
	case 64:
		return pad("mcrfs", false) +
			fmt.Sprintf("cr%d, cr%d", (uint32(i)>>23)&7, (uint32(i)>>18)&7)
	case 70:
		return pad("mtfsb0", i.rc()) + fmt.Sprintf("crb%d", i.rd())
	case 72:
		return dasmFPR2(i, "fmr")
	case 134:
		return pad("mtfsfi", i.rc()) +
			fmt.Sprintf("cr%d, %d", (uint32(i)>>23)&7, (uint32(i)>>12)&0xF)
	case 136:
		return dasmFPR2(i, "fnabs")
	case 264:
		return dasmFPR2(i, "fabs")
	case 583:
		return pad("mffs", i.rc()) + fmt.Sprintf("f%d", i.rd())
	case 711:
		return pad("mtfsf", i.rc()) +
			fmt.Sprintf("0x%02X, f%d", (uint32(i)>>17)&0xFF, i.rb())
	}
	return invalid(fmt.Sprintf("family 0x3F subopcode 0x%03X", i.xo10()))
}

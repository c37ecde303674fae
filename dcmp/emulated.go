// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"encoding/binary"

	"github.com/saferwall/macres/errcode"
	"github.com/saferwall/macres/memory"
	"github.com/saferwall/macres/peff"
	"github.com/saferwall/macres/ppc32"
)

const (
	// ncmpLibName is the name the decoder container is loaded under in the
	// guest symbol table.
	ncmpLibName = "ncmp"

	stackSize     = 0x10000
	stackRedZone  = 0x40
	minWorkBuffer = 0x100
)

// runNcmp executes a PowerPC 'ncmp' decompressor against the compressed
// payload, per spec §4.5's emulated path: load the PEFF into a fresh guest
// address space, stage the input/output/working/header buffers, seed the
// argument registers per the PowerPC calling convention, and run until the
// decoder returns through the sentinel link address.
func (p *Pipeline) runNcmp(h *Header, body []byte, container []byte) ([]byte, error) {
	mem := memory.NewContext(&memory.Options{
		StrictUnmapped: p.Flags&StrictMemory != 0,
		Logger:         p.Logger,
	})

	if err := RegisterStubLibrary(mem); err != nil {
		return nil, err
	}

	pf, err := peff.NewFile(container)
	if err != nil {
		return nil, err
	}
	if err := pf.LoadInto(ncmpLibName, mem, 0); err != nil {
		return nil, err
	}

	entry, err := mem.GetSymbolAddr(ncmpLibName + ":[main]")
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidInput, ErrNoEntryPoint)
	}

	inputAddr, err := allocAndCopy(mem, body)
	if err != nil {
		return nil, err
	}

	outputSize := h.DecompressedSize + uint32(h.OutputExtraBytes)
	if outputSize == 0 {
		outputSize = 1
	}
	outputAddr, err := mem.Allocate(outputSize, false)
	if err != nil || outputAddr == 0 {
		return nil, allocFailure(err)
	}

	// The v8 header scales the working buffer as a fraction of the
	// decompressed size, out of 256.
	workSize := uint32(minWorkBuffer)
	if h.WorkingBufferFractionalSize != 0 {
		scaled := (h.DecompressedSize * uint32(h.WorkingBufferFractionalSize)) >> 8
		if scaled > workSize {
			workSize = scaled
		}
	}
	workAddr, err := mem.Allocate(workSize, false)
	if err != nil || workAddr == 0 {
		return nil, allocFailure(err)
	}

	// The header is staged verbatim, parameter bytes included: user
	// decoders read their free parameters straight out of it.
	headerAddr, err := allocAndCopy(mem, encodeHeader(h))
	if err != nil {
		return nil, err
	}

	stackAddr, err := mem.Allocate(stackSize, true)
	if err != nil || stackAddr == 0 {
		return nil, allocFailure(err)
	}

	// The sentinel is a mapped, never-executed address; returning to it
	// ends the run before the fetch.
	sentinel, err := mem.Allocate(16, false)
	if err != nil || sentinel == 0 {
		return nil, allocFailure(err)
	}

	regs := ppc32.NewRegisters()
	regs.PC = uint32(entry)
	regs.LR = uint32(sentinel)
	regs.GPR[1] = uint32(stackAddr) + stackSize - stackRedZone
	regs.GPR[3] = uint32(inputAddr)
	regs.GPR[4] = uint32(outputAddr)
	regs.GPR[5] = uint32(workAddr)
	regs.GPR[6] = uint32(headerAddr)

	emu := ppc32.NewEmulator(mem)
	if p.Logger != nil {
		emu.SetLogger(p.Logger)
	}
	logger := p.logger()
	trace := p.Flags&TraceExecution != 0
	debug := p.Flags&DebugExecution != 0
	emu.DebugHook = func(e *ppc32.Emulator) (bool, error) {
		if e.Regs.PC == uint32(sentinel) {
			e.Regs.Terminate = true
			return false, nil
		}
		if debug {
			logger.Debugf("emulated decoder state:\n%s", e.Regs)
		} else if trace {
			word, err := e.Mem.ReadU32(memory.Addr(e.Regs.PC))
			if err == nil {
				logger.Debugf("%08X  %s", e.Regs.PC, ppc32.DisassembleOne(e.Regs.PC, word))
			}
		}
		return true, nil
	}

	if err := emu.Execute(regs); err != nil {
		return nil, err
	}

	return mem.ReadBytes(outputAddr, h.DecompressedSize)
}

func allocAndCopy(mem *memory.Context, data []byte) (memory.Addr, error) {
	size := uint32(len(data))
	if size == 0 {
		size = 1
	}
	addr, err := mem.Allocate(size, false)
	if err != nil || addr == 0 {
		return 0, allocFailure(err)
	}
	if err := mem.WriteBytes(addr, data); err != nil {
		return 0, err
	}
	return addr, nil
}

func allocFailure(err error) error {
	if err != nil {
		return err
	}
	return errcode.Wrap(errcode.AllocationFailure, ErrGuestAlloc)
}

// encodeHeader rebuilds the big-endian on-disk form of a parsed header so
// the emulated decoder sees exactly what the resource carried.
func encodeHeader(h *Header) []byte {
	buf := make([]byte, 18)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.HeaderSize)
	buf[6] = h.HeaderVersion
	buf[7] = h.Attributes
	binary.BigEndian.PutUint32(buf[8:12], h.DecompressedSize)
	if h.Version9() {
		binary.BigEndian.PutUint16(buf[12:14], uint16(h.DcmpResourceID))
		binary.BigEndian.PutUint16(buf[14:16], h.OutputExtraBytes)
		buf[16] = h.Param[0]
		buf[17] = h.Param[1]
	} else {
		buf[12] = h.WorkingBufferFractionalSize
		buf[13] = uint8(h.OutputExtraBytes)
		binary.BigEndian.PutUint16(buf[14:16], uint16(h.DcmpResourceID))
	}
	return buf
}

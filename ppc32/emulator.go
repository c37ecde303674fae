// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ppc32

import (
	"errors"
	"fmt"
	"os"

	"github.com/saferwall/macres/errcode"
	"github.com/saferwall/macres/log"
	"github.com/saferwall/macres/memory"
)

// Errors returned by Emulator operations.
var (
	// ErrNoSyscallHandler is returned when sc executes with no handler installed.
	ErrNoSyscallHandler = errors.New("sc executed with no syscall handler installed")

	// ErrIllegalUpdateForm is returned by a load/store-with-update instruction
	// whose RA == 0 or RA == RD/RS, which the architecture forbids.
	ErrIllegalUpdateForm = errors.New("illegal update-form encoding (RA==0 or RA==RT)")

	// ErrOverflowUnsupported is returned for any OE=1 instruction variant.
	ErrOverflowUnsupported = errors.New("overflow-enabled (OE=1) variant not implemented")
)

// SyscallHandler is invoked when the sc instruction executes. It returns
// whether execution should continue.
type SyscallHandler func(e *Emulator) (bool, error)

// DebugHook is invoked once per cycle before fetch/decode/execute. It
// returns whether execution should continue.
type DebugHook func(e *Emulator) (bool, error)

// InterruptManager is notified at the start of every cycle.
type InterruptManager func(e *Emulator)

// Emulator interprets PPC32 instructions against a Registers file and a
// shared memory.Context. The debug/syscall/interrupt hooks are small
// capability values rather than an interface with many methods, per the
// "hook polymorphism" design note: the set of hooks is fixed and named.
type Emulator struct {
	Mem  *memory.Context
	Regs *Registers

	SyscallHandler   SyscallHandler
	DebugHook        DebugHook
	InterruptManager InterruptManager

	logger *log.Helper
}

// NewEmulator constructs an Emulator sharing mem. MemoryContext is the
// shared resource between the emulator, the PEFF loader, and any user
// decoder; the caller is responsible for not reentering mem concurrently.
func NewEmulator(mem *memory.Context) *Emulator {
	return &Emulator{
		Mem: mem,
		logger: log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout),
			log.FilterLevel(log.LevelError))),
	}
}

// SetLogger overrides the default error-only logger.
func (e *Emulator) SetLogger(l *log.Helper) { e.logger = l }

// Execute seeds the register file and runs a fetch-decode-execute loop
// until a termination-trap exception propagates out, or the debug/syscall
// handler asks to stop, per spec §4.3's per-cycle steps.
func (e *Emulator) Execute(start *Registers) error {
	e.Regs = start
	for {
		if e.DebugHook != nil {
			cont, err := e.DebugHook(e)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}

		if e.InterruptManager != nil {
			e.InterruptManager(e)
		}

		word, err := e.Mem.ReadU32(memory.Addr(e.Regs.PC))
		if err != nil {
			return err
		}
		e.Regs.LastAccessAddr = e.Regs.PC

		if err := e.dispatch(insn(word)); err != nil {
			return err
		}

		e.Regs.PC += 4
		e.Regs.TBR += e.Regs.TBRTicksPerCycle

		if e.Regs.Terminate {
			return nil
		}
	}
}

// unimplemented raises an Unimplemented error carrying the disassembled
// text of the offending instruction, per spec §4.3.
func (e *Emulator) unimplemented(i insn) error {
	text, _ := e.DisassembleOne(e.Regs.PC, uint32(i))
	return errcode.Wrap(errcode.Unimplemented, fmt.Errorf("unimplemented opcode: %s", text))
}

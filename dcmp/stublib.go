// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"errors"

	"github.com/saferwall/macres/memory"
)

// ErrGuestAlloc is returned when guest memory for the emulated-decoder
// buffers cannot be allocated.
var ErrGuestAlloc = errors.New("dcmp: guest memory allocation failed")

// opBLR is the PowerPC return instruction the stub routines consist of.
const opBLR = 0x4E800020

// stubSymbols are the CFM runtime entry points real 'ncmp' decompressors
// import but never call on the decompression-only path. Resolving them to
// a do-nothing stub lets both weak and hard imports succeed during load.
var stubSymbols = []string{
	"InterfaceLib:__initialize",
	"InterfaceLib:__terminate",
	"InterfaceLib:BlockMove",
	"InterfaceLib:BlockMoveData",
	"InterfaceLib:Debugger",
	"InterfaceLib:DebugStr",
	"InterfaceLib:NewPtr",
	"InterfaceLib:DisposePtr",
	"MathLib:FixRatio",
	"MathLib:FixMul",
	"StdCLib:__CheckForIntlForcePoppingGuts",
}

// RegisterStubLibrary publishes the built-in stub import library into mem:
// every stub symbol resolves to a single guest routine that immediately
// returns.
func RegisterStubLibrary(mem *memory.Context) error {
	addr, err := mem.Allocate(16, false)
	if err != nil {
		return err
	}
	if addr == 0 {
		return allocFailure(nil)
	}
	if err := mem.WriteU32(addr, opBLR); err != nil {
		return err
	}
	for _, name := range stubSymbols {
		if err := mem.SetSymbolAddr(name, addr); err != nil {
			return err
		}
	}
	return nil
}

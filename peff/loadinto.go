// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"errors"
	"fmt"

	"github.com/saferwall/macres/errcode"
	"github.com/saferwall/macres/memory"
)

// LoadInto instantiates the container's sections into mem, runs each
// section's relocation program, and publishes every export to the memory
// symbol table under "libName:symbol" (plus "libName:section:index" for
// each instantiated section), per spec §4.4.
//
// When baseAddr is nonzero, sections are placed at consecutive
// page-aligned addresses starting there; otherwise the allocator chooses.
// Imports resolve through mem's symbol table; a missing weak import
// resolves to 0, a missing hard import fails the load.
func (f *File) LoadInto(libName string, mem *memory.Context, baseAddr memory.Addr) error {
	sectionAddrs := make([]uint32, len(f.Sections))
	for i := range f.Sections {
		sec := &f.Sections[i]
		if sec.TotalSize < uint32(len(sec.Data)) {
			return errcode.Wrap(errcode.InvalidInput,
				fmt.Errorf("section %d: %w", i, ErrSectionSize))
		}
		if sec.TotalSize == 0 {
			continue
		}

		var addr memory.Addr
		if baseAddr == 0 {
			a, err := mem.Allocate(sec.TotalSize, false)
			if err != nil {
				return err
			}
			addr = a
		} else {
			if err := mem.AllocateAt(baseAddr, sec.TotalSize); err != nil {
				return err
			}
			addr = baseAddr
			baseAddr = memory.Addr(mem.PageAlign(uint32(baseAddr) + sec.TotalSize))
		}
		if addr == 0 {
			return errcode.Wrap(errcode.AllocationFailure,
				fmt.Errorf("section %d: cannot allocate %d bytes", i, sec.TotalSize))
		}

		if err := mem.WriteBytes(addr, sec.Data); err != nil {
			return err
		}
		if tail := sec.TotalSize - uint32(len(sec.Data)); tail > 0 {
			if err := mem.Zero(addr+memory.Addr(len(sec.Data)), tail); err != nil {
				return err
			}
		}
		sectionAddrs[i] = uint32(addr)
		sec.effectiveAddr = addr
	}

	importAddr := func(index uint32) (uint32, error) {
		if int(index) >= len(f.Imports) {
			return 0, errcode.Wrap(errcode.InvalidInput,
				fmt.Errorf("%w: import index %d", ErrUnresolvedImport, index))
		}
		sym := f.Imports[index]
		addr, err := mem.GetSymbolAddr(sym.Library + ":" + sym.Name)
		if err != nil {
			if sym.Weak() && errors.Is(err, memory.ErrSymbolNotFound) {
				return 0, nil
			}
			return 0, fmt.Errorf("%w: %s:%s", ErrUnresolvedImport, sym.Library, sym.Name)
		}
		return uint32(addr), nil
	}

	for i := range f.Sections {
		sec := &f.Sections[i]
		if len(sec.RelocProgram) == 0 {
			continue
		}
		state := &relocState{
			mem:          mem,
			sectionAddrs: sectionAddrs,
			importAddr:   importAddr,
			addr:         sectionAddrs[i],
			sectionBase:  sectionAddrs[i],
		}
		// section_c and section_d start biased against the link-time
		// default addresses of sections 0 and 1.
		if len(f.Sections) > 0 {
			state.sectionC = sectionAddrs[0] - uint32(f.Sections[0].DefaultAddr)
		}
		if len(f.Sections) > 1 {
			state.sectionD = sectionAddrs[1] - uint32(f.Sections[1].DefaultAddr)
		}
		if err := runRelocations(sec.RelocProgram, state); err != nil {
			return fmt.Errorf("section %d relocations: %w", i, err)
		}
	}

	registerExport := func(name string, exp ExportSymbol) error {
		if exp.Section < 0 || int(exp.Section) >= len(sectionAddrs) {
			return fmt.Errorf("export %q: %w", name, ErrSectionIndex)
		}
		return mem.SetSymbolAddr(libName+":"+name,
			memory.Addr(sectionAddrs[exp.Section]+exp.Offset))
	}

	if f.Main.present() {
		if err := registerExport("[main]", ExportSymbol{Section: f.Main.section, Offset: f.Main.offset}); err != nil {
			return err
		}
	}
	if f.Init.present() {
		if err := registerExport("[init]", ExportSymbol{Section: f.Init.section, Offset: f.Init.offset}); err != nil {
			return err
		}
	}
	if f.Term.present() {
		if err := registerExport("[term]", ExportSymbol{Section: f.Term.section, Offset: f.Term.offset}); err != nil {
			return err
		}
	}
	for name, exp := range f.Exports {
		if err := registerExport(name, exp); err != nil {
			return err
		}
	}
	for i, addr := range sectionAddrs {
		if addr == 0 {
			continue
		}
		name := fmt.Sprintf("%s:section:%d", libName, i)
		if err := mem.SetSymbolAddr(name, memory.Addr(addr)); err != nil {
			return err
		}
	}
	return nil
}

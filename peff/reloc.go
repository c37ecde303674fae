// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"encoding/binary"
	"fmt"

	"github.com/saferwall/macres/memory"
)

// relocState is the mutable state threaded through one section's
// relocation program, per spec §4.4: a write cursor, a running import
// index, two section-base registers, and a pending repeat counter backing
// the repeat opcodes.
type relocState struct {
	mem          *memory.Context
	sectionAddrs []uint32
	importAddr   func(index uint32) (uint32, error)

	addr        uint32 // reloc_address
	sectionBase uint32 // base of the section being relocated

	importIndex        uint32
	sectionC           uint32
	sectionD           uint32
	pendingRepeatCount uint32
}

// addWord reads the 32-bit big-endian word at s.addr, adds delta, writes it
// back big-endian, and advances s.addr by 4, as every "add at addr"
// operation in spec §4.4 requires.
func (s *relocState) addWord(delta uint32) error {
	v, err := s.mem.ReadU32(memory.Addr(s.addr))
	if err != nil {
		return err
	}
	if err := s.mem.WriteU32(memory.Addr(s.addr), v+delta); err != nil {
		return err
	}
	s.addr += 4
	return nil
}

func (s *relocState) addImport(index uint32) error {
	a, err := s.importAddr(index)
	if err != nil {
		return err
	}
	return s.addWord(a)
}

func (s *relocState) sectionAddr(index uint32) (uint32, error) {
	if int(index) >= len(s.sectionAddrs) {
		return 0, fmt.Errorf("%w: %d", ErrSectionIndex, index)
	}
	return s.sectionAddrs[index], nil
}

// runRelocations executes one section's relocation program against state.
// Opcodes are 16-bit big-endian words; the repeat opcodes rewind the word
// cursor over the previous blocks until pendingRepeatCount drains.
func runRelocations(program []byte, state *relocState) error {
	words := len(program) / 2
	i := 0

	// repeat rewinds the cursor by blocks opcode words, or consumes one
	// pending iteration; both repeat forms share it.
	repeat := func(blocks int, times uint32) {
		switch {
		case state.pendingRepeatCount == 0:
			state.pendingRepeatCount = times
			i -= blocks
		case state.pendingRepeatCount != 1:
			state.pendingRepeatCount--
			i -= blocks
		default:
			state.pendingRepeatCount = 0
		}
		if i < 0 {
			i = 0
		}
	}

	for i < words {
		cmd := binary.BigEndian.Uint16(program[i*2 : i*2+2])
		i++

		switch {
		case cmd&0xC000 == 0x0000: // skip words, then add section-D
			count := cmd & 0x3F
			skip := (cmd >> 6) & 0xFF
			state.addr += uint32(skip) * 4
			for ; count > 0; count-- {
				if err := state.addWord(state.sectionD); err != nil {
					return err
				}
			}

		case cmd&0xE000 == 0x4000: // vector add group
			count := uint32(cmd&0x01FF) + 1
			switch cmd & 0x1E00 {
			case 0x0000: // add section-C to count words
				for ; count > 0; count-- {
					if err := state.addWord(state.sectionC); err != nil {
						return err
					}
				}
			case 0x0200: // add section-D to count words
				for ; count > 0; count-- {
					if err := state.addWord(state.sectionD); err != nil {
						return err
					}
				}
			case 0x0400: // 3-word blocks: add C, add D, skip one
				for ; count > 0; count-- {
					if err := state.addWord(state.sectionC); err != nil {
						return err
					}
					if err := state.addWord(state.sectionD); err != nil {
						return err
					}
					state.addr += 4
				}
			case 0x0600: // 2-word blocks: add C, add D
				for ; count > 0; count-- {
					if err := state.addWord(state.sectionC); err != nil {
						return err
					}
					if err := state.addWord(state.sectionD); err != nil {
						return err
					}
				}
			case 0x0800: // 2-word blocks: add D, skip one
				for ; count > 0; count-- {
					if err := state.addWord(state.sectionD); err != nil {
						return err
					}
					state.addr += 4
				}
			case 0x0A00: // add the next count imports in sequence
				for ; count > 0; count-- {
					if err := state.addImport(state.importIndex); err != nil {
						return err
					}
					state.importIndex++
				}
			default:
				return fmt.Errorf("%w: 0x%04X", ErrInvalidReloc, cmd)
			}

		case cmd&0xE000 == 0x6000: // individual reference group
			index := uint32(cmd & 0x01FF)
			switch cmd & 0x1E00 {
			case 0x0000: // add one import by index
				if err := state.addImport(index); err != nil {
					return err
				}
				state.importIndex = index + 1
			case 0x0200: // set section-C from a section base
				a, err := state.sectionAddr(index)
				if err != nil {
					return err
				}
				state.sectionC = a
			case 0x0400: // set section-D from a section base
				a, err := state.sectionAddr(index)
				if err != nil {
					return err
				}
				state.sectionD = a
			case 0x0600: // add a section base at the write address
				a, err := state.sectionAddr(index)
				if err != nil {
					return err
				}
				if err := state.addWord(a); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%w: 0x%04X", ErrInvalidReloc, cmd)
			}

		case cmd&0xF000 == 0x8000: // increment reloc_address by delta*2 + 2
			state.addr += uint32(cmd&0x0FFF)*2 + 2

		case cmd&0xF000 == 0x9000: // small repeat
			blocks := int((cmd>>8)&0x0F) + 1
			times := uint32(cmd&0x00FF) + 1
			repeat(blocks, times)

		case cmd&0xFC00 == 0xA000: // set position (large form)
			if i >= words {
				return ErrTruncated
			}
			extra := binary.BigEndian.Uint16(program[i*2 : i*2+2])
			i++
			state.addr = state.sectionBase + (uint32(cmd&0x03FF)<<16 | uint32(extra))

		case cmd&0xFC00 == 0xA400: // add import by index (large form)
			if i >= words {
				return ErrTruncated
			}
			extra := binary.BigEndian.Uint16(program[i*2 : i*2+2])
			i++
			index := uint32(cmd&0x03FF)<<16 | uint32(extra)
			if err := state.addImport(index); err != nil {
				return err
			}
			state.importIndex = index + 1

		case cmd&0xFC00 == 0xB000: // repeat (large form)
			if i >= words {
				return ErrTruncated
			}
			extra := binary.BigEndian.Uint16(program[i*2 : i*2+2])
			i++
			blocks := int((cmd>>6)&0x0F) + 1
			times := uint32(cmd&0x003F)<<16 | uint32(extra)
			repeat(blocks, times)

		case cmd&0xFC00 == 0xB400: // set or add section base (large form)
			if i >= words {
				return ErrTruncated
			}
			extra := binary.BigEndian.Uint16(program[i*2 : i*2+2])
			i++
			index := uint32(cmd&0x003F)<<16 | uint32(extra)
			a, err := state.sectionAddr(index)
			if err != nil {
				return err
			}
			switch (cmd >> 6) & 0x0F {
			case 0:
				if err := state.addWord(a); err != nil {
					return err
				}
			case 1:
				state.sectionC = a
			case 2:
				state.sectionD = a
			default:
				return fmt.Errorf("%w: 0x%04X", ErrInvalidReloc, cmd)
			}

		default:
			return fmt.Errorf("%w: 0x%04X", ErrInvalidReloc, cmd)
		}
	}
	return nil
}

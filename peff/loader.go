// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"encoding/binary"
	"fmt"
)

// loaderHeaderSize is the fixed size, in bytes, of the loader section's
// header: the three entry points, counts and offsets for imported libraries,
// imported symbols, relocation headers, the string table, and the export
// hash table, per spec §4.4's "Loader section".
const loaderHeaderSize = 56

const (
	importedLibraryRecSize = 24
	importedSymbolRecSize  = 4
	relocHeaderRecSize     = 12
	exportSymbolRecSize    = 10 // packed: type/name word, value word, section half
	hashSlotRecSize        = 4
	hashKeyRecSize         = 4
)

// importedLibraryWeakFlag marks every symbol of the library as a weak
// import, per spec §3: "the 'weak import' library flag propagates to each
// of its symbols."
const importedLibraryWeakFlag = 0x40

// parseLoaderSection parses the loader section's fixed header, its
// imported-library and imported-symbol tables, its relocation headers, and
// its export hash table, attaching per-section relocation programs and
// populating f.Imports / f.Exports / f.Main / f.Init / f.Term.
//
// loaderIdx is the position of the loader section within the section table.
// Relocation headers may only target sections that were declared before the
// loader section, so the targeted section's size is already known. lenient
// downgrades the export-hash cross-check to an anomaly.
func (f *File) parseLoaderSection(raw []byte, loaderIdx int, lenient bool) error {
	if len(raw) < loaderHeaderSize {
		return ErrTruncated
	}

	h := raw
	mainSection := int32(binary.BigEndian.Uint32(h[0:4]))
	mainOffset := binary.BigEndian.Uint32(h[4:8])
	initSection := int32(binary.BigEndian.Uint32(h[8:12]))
	initOffset := binary.BigEndian.Uint32(h[12:16])
	termSection := int32(binary.BigEndian.Uint32(h[16:20]))
	termOffset := binary.BigEndian.Uint32(h[20:24])
	importedLibraryCount := binary.BigEndian.Uint32(h[24:28])
	importedSymbolCount := binary.BigEndian.Uint32(h[28:32])
	relocSectionCount := binary.BigEndian.Uint32(h[32:36])
	relocInstrOffset := binary.BigEndian.Uint32(h[36:40])
	stringTableOffset := binary.BigEndian.Uint32(h[40:44])
	exportHashOffset := binary.BigEndian.Uint32(h[44:48])
	exportHashPower := binary.BigEndian.Uint32(h[48:52])
	exportedSymbolCount := binary.BigEndian.Uint32(h[52:56])

	f.Main = entryPoint{section: mainSection, offset: mainOffset}
	f.Init = entryPoint{section: initSection, offset: initOffset}
	f.Term = entryPoint{section: termSection, offset: termOffset}

	stringAt := func(off uint32, length int) (string, error) {
		start := int(stringTableOffset) + int(off)
		end := start + length
		if start < 0 || end > len(raw) || end < start {
			return "", ErrTruncated
		}
		return string(raw[start:end]), nil
	}
	cstringAt := func(off uint32) (string, error) {
		start := int(stringTableOffset) + int(off)
		if start < 0 || start >= len(raw) {
			return "", ErrTruncated
		}
		end := start
		for end < len(raw) && raw[end] != 0 {
			end++
		}
		return string(raw[start:end]), nil
	}

	// Imported libraries name intervals of the import-symbol array.
	off := loaderHeaderSize
	type libRange struct {
		name     string
		weak     bool
		firstSym uint32
		symCount uint32
	}
	libs := make([]libRange, importedLibraryCount)
	for i := range libs {
		if off+importedLibraryRecSize > len(raw) {
			return ErrTruncated
		}
		rec := raw[off : off+importedLibraryRecSize]
		nameOffset := binary.BigEndian.Uint32(rec[0:4])
		symCount := binary.BigEndian.Uint32(rec[12:16])
		firstSym := binary.BigEndian.Uint32(rec[16:20])
		options := rec[20]

		name, err := cstringAt(nameOffset)
		if err != nil {
			return fmt.Errorf("imported library %d: %w", i, err)
		}
		libs[i] = libRange{
			name:     name,
			weak:     options&importedLibraryWeakFlag != 0,
			firstSym: firstSym,
			symCount: symCount,
		}
		off += importedLibraryRecSize
	}

	f.Imports = make([]ImportSymbol, importedSymbolCount)
	for i := uint32(0); i < importedSymbolCount; i++ {
		if off+importedSymbolRecSize > len(raw) {
			return ErrTruncated
		}
		word := binary.BigEndian.Uint32(raw[off : off+importedSymbolRecSize])
		off += importedSymbolRecSize

		name, err := cstringAt(word & 0x00FFFFFF)
		if err != nil {
			return fmt.Errorf("imported symbol %d: %w", i, err)
		}

		sym := ImportSymbol{
			Name:  name,
			Flags: uint8(word>>28) & 0x0F,
			Kind:  uint8(word>>24) & 0x0F,
		}
		for _, lib := range libs {
			if i >= lib.firstSym && i < lib.firstSym+lib.symCount {
				sym.Library = lib.name
				if lib.weak {
					sym.Flags |= importWeakFlag
				}
				break
			}
		}
		f.Imports[i] = sym
	}

	// Relocation headers: one per section carrying a program, sliced from
	// the relocation-instructions area by (relocInstrOffset + startOffset,
	// wordCount*2 bytes), per spec §4.4.
	for i := uint32(0); i < relocSectionCount; i++ {
		if off+relocHeaderRecSize > len(raw) {
			return ErrTruncated
		}
		rec := raw[off : off+relocHeaderRecSize]
		sectionIndex := binary.BigEndian.Uint16(rec[0:2])
		wordCount := binary.BigEndian.Uint32(rec[4:8])
		startOffset := binary.BigEndian.Uint32(rec[8:12])
		off += relocHeaderRecSize

		if int(sectionIndex) >= loaderIdx || int(sectionIndex) >= len(f.Sections) {
			return fmt.Errorf("reloc header %d: %w", i, ErrRelocBeforeSize)
		}
		if f.Sections[sectionIndex].RelocProgram != nil {
			return fmt.Errorf("reloc header %d: %w", i, ErrDuplicateReloc)
		}
		start := int(relocInstrOffset) + int(startOffset)
		end := start + int(wordCount)*2
		if start < 0 || end > len(raw) || end < start {
			return ErrTruncated
		}
		f.Sections[sectionIndex].RelocProgram = append([]byte(nil), raw[start:end]...)
	}

	if exportedSymbolCount == 0 {
		return nil
	}

	numHashSlots := 1 << exportHashPower
	hashSlotsStart := int(exportHashOffset)
	hashSlotsEnd := hashSlotsStart + numHashSlots*hashSlotRecSize
	hashKeysStart := hashSlotsEnd
	hashKeysEnd := hashKeysStart + int(exportedSymbolCount)*hashKeyRecSize
	symsStart := hashKeysEnd
	symsEnd := symsStart + int(exportedSymbolCount)*exportSymbolRecSize
	if hashSlotsStart < 0 || symsEnd > len(raw) || symsEnd < hashSlotsStart {
		return ErrTruncated
	}

	// The sum of the hash chain lengths must equal the declared export
	// count; a mismatch means the table is corrupt.
	var totalChainLength uint32
	for s := 0; s < numHashSlots; s++ {
		slot := binary.BigEndian.Uint32(raw[hashSlotsStart+s*hashSlotRecSize:])
		totalChainLength += (slot >> 18) & 0x3FFF
	}
	if totalChainLength != exportedSymbolCount {
		if !lenient {
			return fmt.Errorf("%w: chains sum to %d, want %d",
				ErrExportHashMismatch, totalChainLength, exportedSymbolCount)
		}
		f.Anomalies = append(f.Anomalies, fmt.Sprintf(
			"export hash chains sum to %d, want %d", totalChainLength, exportedSymbolCount))
	}

	// The hash key table carries the symbol-name lengths; pairing key k
	// with export record k recovers the name.
	for k := uint32(0); k < exportedSymbolCount; k++ {
		keyRec := raw[hashKeysStart+int(k)*hashKeyRecSize:]
		nameLen := int(binary.BigEndian.Uint16(keyRec[0:2]))

		rec := raw[symsStart+int(k)*exportSymbolRecSize:]
		typeAndName := binary.BigEndian.Uint32(rec[0:4])
		value := binary.BigEndian.Uint32(rec[4:8])
		sectionIndex := int16(binary.BigEndian.Uint16(rec[8:10]))

		name, err := stringAt(typeAndName&0x00FFFFFF, nameLen)
		if err != nil {
			return fmt.Errorf("export %d: %w", k, err)
		}

		f.Exports[name] = ExportSymbol{
			Name:    name,
			Section: int32(sectionIndex),
			Offset:  value,
			Flags:   uint8(typeAndName>>28) & 0x0F,
			Kind:    uint8(typeAndName>>24) & 0x0F,
		}
	}

	return nil
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"encoding/binary"
	"fmt"

	"github.com/saferwall/macres/memory"
)

// LoadOptions bounds a parse the way pe.Options bounds the teacher's: hard
// limits against hostile inputs plus a leniency switch for advisory checks.
// The zero value is usable.
type LoadOptions struct {
	// MaxSections caps the declared section count. Zero means
	// DefaultMaxSections.
	MaxSections uint16

	// Lenient downgrades the export-hash chain-count cross-check from a
	// fatal parse error to an anomaly.
	Lenient bool
}

// DefaultMaxSections bounds the section table; real containers carry a
// handful of sections.
const DefaultMaxSections = 256

// NewFile parses a PEFF container from an in-memory byte buffer, mirroring
// pe.NewBytes: header, section table, pattern-compressed section payloads,
// and the loader section (imports/exports/relocation programs), per spec
// §4.4.
func NewFile(data []byte) (*File, error) {
	return NewFileWithOptions(data, nil)
}

// NewFileWithOptions is NewFile with explicit parse limits.
func NewFileWithOptions(data []byte, opts *LoadOptions) (*File, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}
	maxSections := opts.MaxSections
	if maxSections == 0 {
		maxSections = DefaultMaxSections
	}

	if len(data) < headerSize {
		return nil, ErrTruncated
	}

	tag1 := binary.BigEndian.Uint32(data[0:4])
	tag2 := binary.BigEndian.Uint32(data[4:8])
	if tag1 != magicTag1 || tag2 != magicTag2 {
		return nil, ErrInvalidMagic
	}

	archTag := binary.BigEndian.Uint32(data[8:12])
	var arch Architecture
	switch archTag {
	case archTagPowerPC:
		arch = ArchPowerPC
	case archTagM68K:
		arch = ArchM68K
	default:
		return nil, ErrUnknownArch
	}

	formatVersion := binary.BigEndian.Uint32(data[12:16])
	if formatVersion != supportedFormat {
		return nil, ErrUnsupportedVersion
	}

	f := &File{
		Arch:               arch,
		FormatVersion:      formatVersion,
		DateTimeStamp:      binary.BigEndian.Uint32(data[16:20]),
		OldDefVersion:      binary.BigEndian.Uint32(data[20:24]),
		OldImpVersion:      binary.BigEndian.Uint32(data[24:28]),
		CurrentVersion:     binary.BigEndian.Uint32(data[28:32]),
		Exports:            make(map[string]ExportSymbol),
		Main:               entryPoint{section: -1},
		Init:               entryPoint{section: -1},
		Term:               entryPoint{section: -1},
		loaderSectionIndex: -1,
		data:               data,
	}

	sectionCount := binary.BigEndian.Uint16(data[32:34])
	if sectionCount > maxSections {
		return nil, fmt.Errorf("%w: %d sections", ErrTruncated, sectionCount)
	}
	// instSectionCount at data[34:36] counts sections with code/data to
	// instantiate; every section is parsed regardless so it is not
	// otherwise consulted.

	off := headerSize
	type rawHeader struct {
		nameOffset      int32
		defaultAddr     uint32
		totalSize       uint32
		unpackedSize    uint32
		packedSize      uint32
		containerOffset uint32
		kind            SectionKind
		share           ShareKind
		alignment       uint8
	}
	raws := make([]rawHeader, sectionCount)
	for i := range raws {
		if off+sectionHeaderSize > len(data) {
			return nil, ErrTruncated
		}
		h := data[off : off+sectionHeaderSize]
		raws[i] = rawHeader{
			nameOffset:      int32(binary.BigEndian.Uint32(h[0:4])),
			defaultAddr:     binary.BigEndian.Uint32(h[4:8]),
			totalSize:       binary.BigEndian.Uint32(h[8:12]),
			unpackedSize:    binary.BigEndian.Uint32(h[12:16]),
			packedSize:      binary.BigEndian.Uint32(h[16:20]),
			containerOffset: binary.BigEndian.Uint32(h[20:24]),
			kind:            SectionKind(h[24]),
			share:           ShareKind(h[25]),
			alignment:       h[26],
		}
		off += sectionHeaderSize
	}

	// Section names live in a string table that immediately follows the
	// section headers; name_offset is -1 for an unnamed section.
	nameTableOffset := off
	nameAt := func(nameOffset int32) string {
		start := nameTableOffset + int(nameOffset)
		if nameOffset < 0 || start >= len(data) {
			return ""
		}
		end := start
		for end < len(data) && data[end] != 0 {
			end++
		}
		return string(data[start:end])
	}

	f.Sections = make([]Section, sectionCount)
	var loaderRaw []byte
	for i, rh := range raws {
		start := int(rh.containerOffset)
		end := start + int(rh.packedSize)
		if start < 0 || end > len(data) || end < start {
			return nil, ErrTruncated
		}
		raw := data[start:end]

		sec := Section{
			Name:         nameAt(rh.nameOffset),
			DefaultAddr:  memory.Addr(rh.defaultAddr),
			TotalSize:    rh.totalSize,
			UnpackedSize: rh.unpackedSize,
			PackedSize:   rh.packedSize,
			Kind:         rh.kind,
			Share:        rh.share,
			Alignment:    rh.alignment,
		}

		switch rh.kind {
		case SectionLoader:
			f.loaderSectionIndex = i
			loaderRaw = raw
			// The loader section is parsed into imports/exports/relocation
			// programs below and is not itself stored as section bytes.
		case SectionPatternData:
			decoded, err := decodePattern(raw, int(rh.unpackedSize))
			if err != nil {
				return nil, fmt.Errorf("section %d: %w", i, err)
			}
			sec.Data = decoded
		default:
			if rh.kind > SectionTracebackReserved {
				f.Anomalies = append(f.Anomalies,
					fmt.Sprintf("section %d: reserved section kind %d", i, rh.kind))
			}
			sec.Data = append([]byte(nil), raw...)
		}

		f.Sections[i] = sec
	}

	if loaderRaw != nil {
		if err := f.parseLoaderSection(loaderRaw, f.loaderSectionIndex, opts.Lenient); err != nil {
			return nil, err
		}
	}

	return f, nil
}

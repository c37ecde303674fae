// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package peff parses the Preferred Executable Format (PEFF) container used
// by classic PowerPC Mac OS: header, section table, pattern-compressed data,
// the loader section (imports/exports/relocation programs), and a small
// bytecoded relocation VM that fixes up loaded sections in guest memory.
package peff

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/saferwall/macres/memory"
)

// Architecture tags, read from the container's 4-byte architecture field.
type Architecture uint32

const (
	ArchUnknown Architecture = iota
	ArchPowerPC
	ArchM68K
)

func (a Architecture) String() string {
	switch a {
	case ArchPowerPC:
		return "pwpc"
	case ArchM68K:
		return "m68k"
	default:
		return "unknown"
	}
}

// Container magics, big-endian 4-byte tags at offset 0 and 4 of the header.
const (
	magicTag1       = 0x4A6F7921 // 'Joy!'
	magicTag2       = 0x70656666 // 'peff'
	archTagPowerPC  = 0x70777063 // 'pwpc'
	archTagM68K     = 0x6D36386B // 'm68k'
	supportedFormat = 1
)

// headerSize is the fixed size, in bytes, of the PEFF container header.
const headerSize = 40

// sectionHeaderSize is the fixed size, in bytes, of one section header
// record in the section table that immediately follows the container
// header.
const sectionHeaderSize = 28

// SectionKind classifies what a Section holds, from the section header's
// kind byte (the share kind is the byte after it).
type SectionKind uint8

const (
	SectionCode SectionKind = iota
	SectionUnpackedData
	SectionPatternData
	SectionConstant
	SectionLoader
	SectionDebug
	SectionExecDataReserved
	SectionExceptionReserved
	SectionTracebackReserved
)

// ShareKind classifies how a section's host memory is shared across
// processes under classic Mac OS. macres has no multi-process loader, but
// the value is preserved for diagnostics and round-tripping.
type ShareKind uint8

const (
	ShareProcess ShareKind = iota
	ShareGlobal
	ShareProtected
)

// Section is one instantiated PEFF section: its header fields plus the
// decompressed payload bytes and, for sections named by the loader's
// relocation-header table, the attached relocation program.
type Section struct {
	Name string

	DefaultAddr memory.Addr
	TotalSize   uint32 // including BSS
	UnpackedSize uint32
	PackedSize   uint32 // on-disk size before pattern decompression

	Kind      SectionKind
	Share     ShareKind
	Alignment uint8

	Data []byte

	// RelocProgram is the 16-bit-word relocation bytecode attached from the
	// loader section's relocation-header table, or nil if this section has
	// none.
	RelocProgram []byte

	// effectiveAddr is filled in by LoadInto once the section has been
	// instantiated into a memory.Context.
	effectiveAddr memory.Addr
}

// ExportSymbol is one entry published by the loader's export hash table.
type ExportSymbol struct {
	Name    string
	Section int32 // index into File.Sections, or -1 for an absolute export
	Offset  uint32
	Flags   uint8
	Kind    uint8
}

// ImportSymbol is one entry consumed from another library at load time.
type ImportSymbol struct {
	Library string
	Name    string
	Flags   uint8
	Kind    uint8
}

// Weak reports whether an unresolved import should resolve to 0 rather than
// fail, per spec §3's "weak import" flag.
func (s ImportSymbol) Weak() bool { return s.Flags&importWeakFlag != 0 }

const importWeakFlag = 0x40

// entryPoint names one of the loader section's main/init/term entries.
type entryPoint struct {
	section int32 // -1 if absent
	offset  uint32
}

func (e entryPoint) present() bool { return e.section >= 0 }

// File is a parsed PEFF container.
type File struct {
	Arch          Architecture
	FormatVersion uint32
	DateTimeStamp uint32
	OldDefVersion uint32
	OldImpVersion uint32
	CurrentVersion uint32

	Sections []Section

	// Main, Init, Term identify the loader section's three optional
	// entry points. Section is -1 when the entry is absent.
	Main entryPoint
	Init entryPoint
	Term entryPoint

	// Exports maps an export name to its symbol record.
	Exports map[string]ExportSymbol

	// Imports is the flat list of imported symbols in container order.
	Imports []ImportSymbol

	// Anomalies collects non-fatal parse-time observations, mirroring
	// pe.File.Anomalies: reserved section kinds, export-hash-count
	// mismatches downgraded under LoadOptions.Lenient, and similar.
	Anomalies []string

	loaderSectionIndex int // -1 if the container has no loader section
	data               []byte

	// f and mapped back a File returned by New; nil otherwise.
	f      *os.File
	mapped mmap.MMap
}

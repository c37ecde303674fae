// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/saferwall/macres/memory"
)

// containerBuilder assembles a synthetic PEFF byte buffer for tests.
type containerBuilder struct {
	buf bytes.Buffer
}

func (b *containerBuilder) u8(v uint8)   { b.buf.WriteByte(v) }
func (b *containerBuilder) u16(v uint16) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *containerBuilder) u32(v uint32) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *containerBuilder) raw(p []byte) { b.buf.Write(p) }

// buildLoaderSection assembles a loader section with one weak import
// library carrying two symbols, a one-word relocation program for section
// 0, one export, and a main entry in section 0.
func buildLoaderSection(t *testing.T) []byte {
	t.Helper()

	stringTable := []byte("StubLib\x00initProc\x00dataRef\x00expEntry")
	libNameOff := uint32(0)
	sym0NameOff := uint32(8)
	sym1NameOff := uint32(17)
	expNameOff := uint32(25)

	// Advance the cursor to offset 8, then add section-C to one word.
	relocProgram := []byte{0x80, 0x03, 0x40, 0x00}

	var b containerBuilder
	// Tables follow the 56-byte header in declaration order; the offsets
	// in the header are computed from the running layout.
	libsOff := uint32(56)
	importsOff := libsOff + 24
	relocHdrsOff := importsOff + 2*4
	relocInstrOff := relocHdrsOff + 12
	stringsOff := relocInstrOff + uint32(len(relocProgram))
	hashOff := stringsOff + uint32(len(stringTable))

	b.u32(0) // main: section 0
	b.u32(4) // main offset
	b.u32(0xFFFFFFFF)
	b.u32(0) // no init
	b.u32(0xFFFFFFFF)
	b.u32(0) // no term
	b.u32(1) // imported library count
	b.u32(2) // imported symbol count
	b.u32(1) // relocated section count
	b.u32(relocInstrOff)
	b.u32(stringsOff)
	b.u32(hashOff)
	b.u32(0) // hash table power: one slot
	b.u32(1) // exported symbol count

	// Imported library: both symbols weak.
	b.u32(libNameOff)
	b.u32(0) // old imp version
	b.u32(0) // current version
	b.u32(2) // symbol count
	b.u32(0) // first symbol
	b.u8(importedLibraryWeakFlag)
	b.u8(0)
	b.u16(0)

	// Imported symbols: class in the top byte, name offset in the rest.
	b.u32(0x02<<24 | sym0NameOff)
	b.u32(0x01<<24 | sym1NameOff)

	// Relocation header for section 0.
	b.u16(0) // section index
	b.u16(0)
	b.u32(uint32(len(relocProgram) / 2))
	b.u32(0) // start offset

	b.raw(relocProgram)
	b.raw(stringTable)

	// Export hash: one slot with one chain entry, one key, one symbol.
	b.u32(1 << 18)
	b.u16(8) // name length
	b.u16(0) // hash
	b.u32(0x02<<24 | expNameOff)
	b.u32(8) // value: offset 8 in section
	b.u16(0) // section index

	return b.buf.Bytes()
}

// buildContainer assembles a two-section container: an executable section
// holding code and the loader section from buildLoaderSection.
func buildContainer(t *testing.T, code []byte, codeTotalSize uint32) []byte {
	t.Helper()
	loader := buildLoaderSection(t)

	var b containerBuilder
	const sectionCount = 2
	headersEnd := uint32(headerSize + sectionCount*sectionHeaderSize)
	codeOff := headersEnd
	loaderOff := codeOff + uint32(len(code))

	b.u32(magicTag1)
	b.u32(magicTag2)
	b.u32(archTagPowerPC)
	b.u32(supportedFormat)
	b.u32(0x5F000000) // timestamp
	b.u32(1)          // old def version
	b.u32(1)          // old imp version
	b.u32(2)          // current version
	b.u16(sectionCount)
	b.u16(1) // instantiated section count
	b.u32(0) // reserved

	// Section 0: executable.
	b.u32(0xFFFFFFFF) // unnamed
	b.u32(0x1000)     // default address
	b.u32(codeTotalSize)
	b.u32(uint32(len(code)))
	b.u32(uint32(len(code)))
	b.u32(codeOff)
	b.u8(uint8(SectionCode))
	b.u8(uint8(ShareProcess))
	b.u8(2)
	b.u8(0)

	// Section 1: loader.
	b.u32(0xFFFFFFFF)
	b.u32(0)
	b.u32(0)
	b.u32(uint32(len(loader)))
	b.u32(uint32(len(loader)))
	b.u32(loaderOff)
	b.u8(uint8(SectionLoader))
	b.u8(uint8(ShareProcess))
	b.u8(0)
	b.u8(0)

	b.raw(code)
	b.raw(loader)
	return b.buf.Bytes()
}

var testCode = []byte{
	0x60, 0x00, 0x00, 0x00, // nop
	0x4E, 0x80, 0x00, 0x20, // blr
	0x00, 0x00, 0x00, 0x00, // relocated data word
}

func TestParseContainer(t *testing.T) {
	f, err := NewFile(buildContainer(t, testCode, 0x20))
	if err != nil {
		t.Fatal(err)
	}

	if f.Arch != ArchPowerPC {
		t.Fatalf("arch = %v", f.Arch)
	}
	if f.FormatVersion != 1 {
		t.Fatalf("format version = %d", f.FormatVersion)
	}
	if f.DateTimeStamp != 0x5F000000 {
		t.Fatalf("timestamp = %#x", f.DateTimeStamp)
	}
	if len(f.Sections) != 2 {
		t.Fatalf("sections = %d", len(f.Sections))
	}

	sec := f.Sections[0]
	if sec.Kind != SectionCode || sec.DefaultAddr != 0x1000 {
		t.Fatalf("section 0 = %+v", sec)
	}
	if !bytes.Equal(sec.Data, testCode) {
		t.Fatalf("section 0 data = % x", sec.Data)
	}
	if len(sec.RelocProgram) != 4 {
		t.Fatalf("section 0 reloc program = % x", sec.RelocProgram)
	}

	// The loader section itself stores no bytes.
	if f.Sections[1].Data != nil {
		t.Fatal("loader section retained payload bytes")
	}

	if !f.Main.present() || f.Main.section != 0 || f.Main.offset != 4 {
		t.Fatalf("main = %+v", f.Main)
	}
	if f.Init.present() || f.Term.present() {
		t.Fatal("init/term should be absent")
	}

	if len(f.Imports) != 2 {
		t.Fatalf("imports = %+v", f.Imports)
	}
	if f.Imports[0].Library != "StubLib" || f.Imports[0].Name != "initProc" {
		t.Fatalf("import 0 = %+v", f.Imports[0])
	}
	if !f.Imports[0].Weak() || !f.Imports[1].Weak() {
		t.Fatal("library weak flag must propagate to each symbol")
	}

	exp, ok := f.Exports["expEntry"]
	if !ok {
		t.Fatalf("exports = %+v", f.Exports)
	}
	if exp.Section != 0 || exp.Offset != 8 {
		t.Fatalf("export = %+v", exp)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := buildContainer(t, testCode, 0x20)
	data[0] = 'X'
	if _, err := NewFile(data); err == nil {
		t.Fatal("expected bad magic to fail")
	}
}

func TestParseRejectsUnknownArch(t *testing.T) {
	data := buildContainer(t, testCode, 0x20)
	copy(data[8:12], "ia64")
	if _, err := NewFile(data); err == nil {
		t.Fatal("expected unknown architecture to fail")
	}
}

func TestParseRejectsWrongVersion(t *testing.T) {
	data := buildContainer(t, testCode, 0x20)
	binary.BigEndian.PutUint32(data[12:16], 2)
	if _, err := NewFile(data); err == nil {
		t.Fatal("expected wrong format version to fail")
	}
}

func TestParseExportHashMismatchIsFatal(t *testing.T) {
	data := buildContainer(t, testCode, 0x20)
	f, err := NewFile(data)
	if err != nil {
		t.Fatal(err)
	}
	_ = f

	// Corrupt the hash slot's chain count. The slot sits right after the
	// string table inside the loader section; find it by value.
	want := make([]byte, 4)
	binary.BigEndian.PutUint32(want, 1<<18)
	idx := bytes.LastIndex(data, want)
	if idx < 0 {
		t.Fatal("hash slot not found in fixture")
	}
	binary.BigEndian.PutUint32(data[idx:], 2<<18)
	if _, err := NewFile(data); err == nil {
		t.Fatal("expected export hash mismatch to fail")
	}
}

func TestLoadInto(t *testing.T) {
	f, err := NewFile(buildContainer(t, testCode, 0x20))
	if err != nil {
		t.Fatal(err)
	}

	mem := memory.NewContext(&memory.Options{PageBits: 16})
	if err := f.LoadInto("testlib", mem, 0); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}

	base, err := mem.GetSymbolAddr("testlib:section:0")
	if err != nil {
		t.Fatal(err)
	}

	// Code bytes were copied in and the BSS tail zero-filled.
	got, err := mem.ReadBytes(base, uint32(len(testCode)))
	if err != nil {
		t.Fatal(err)
	}
	// The relocated word at offset 8 now carries the section-C bias
	// (section base minus the 0x1000 default address).
	wantBias := uint32(base) - 0x1000
	v, _ := mem.ReadU32(base + 8)
	if v != wantBias {
		t.Fatalf("relocated word = %#x, want %#x", v, wantBias)
	}
	if !bytes.Equal(got[:8], testCode[:8]) {
		t.Fatalf("code bytes = % x", got[:8])
	}
	for off := uint32(len(testCode)); off < 0x20; off++ {
		b, _ := mem.ReadU8(base + memory.Addr(off))
		if b != 0 {
			t.Fatalf("tail byte %d = %#x, want zero fill", off, b)
		}
	}

	// Exports and entry points published under the library namespace.
	expAddr, err := mem.GetSymbolAddr("testlib:expEntry")
	if err != nil {
		t.Fatal(err)
	}
	if expAddr != base+8 {
		t.Fatalf("export addr = %#x, want %#x", expAddr, base+8)
	}
	mainAddr, err := mem.GetSymbolAddr("testlib:[main]")
	if err != nil {
		t.Fatal(err)
	}
	if mainAddr != base+4 {
		t.Fatalf("main addr = %#x", mainAddr)
	}
}

func TestLoadIntoWeakImportsResolveToZero(t *testing.T) {
	// The fixture's imports are weak and nothing registers them, so a load
	// must succeed without symbol-table entries for them.
	f, err := NewFile(buildContainer(t, testCode, 0x20))
	if err != nil {
		t.Fatal(err)
	}
	mem := memory.NewContext(&memory.Options{PageBits: 16})
	if err := f.LoadInto("weaklib", mem, 0); err != nil {
		t.Fatalf("LoadInto with unresolved weak imports: %v", err)
	}
}

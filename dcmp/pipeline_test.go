// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestDecompressPassThroughUncompressed(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	out, err := Decompress(data, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("uncompressed buffer modified: % x", out)
	}
}

func TestDecompressDisabledReturnsRaw(t *testing.T) {
	data := compressedV8(2, 0, []byte{0x01, 0xAB, 0xCD, 0xFF})
	out, err := Decompress(data, Disabled, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("Disabled must return the compressed bytes as-is")
	}
}

func TestDecompressRoutesNativeDecoders(t *testing.T) {
	// System 0 via the conventional ID.
	data := compressedV8(2, 0, []byte{0x01, 0xAB, 0xCD, 0xFF})
	out, err := Decompress(data, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0xAB, 0xCD}) {
		t.Fatalf("system 0 output = % x", out)
	}

	// System 1.
	data = compressedV8(1, 1, []byte{0x00, 0x5A, 0xFF})
	out, err = Decompress(data, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0x5A}) {
		t.Fatalf("system 1 output = % x", out)
	}

	// System 3: a single literal byte.
	var w bitWriter
	w.write(0, 2)
	w.write(0, 1)
	w.write(0xAB, 8)
	data = compressedV8(1, 3, w.buf)
	out, err = Decompress(data, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0xAB}) {
		t.Fatalf("system 3 output = % x", out)
	}
}

func TestDecompressTotalSizeProperty(t *testing.T) {
	inputs := [][]byte{
		compressedV8(2, 0, []byte{0x01, 0xAB, 0xCD, 0xFF}),
		compressedV8(3, 0, []byte{0x02, 0x01, 0x02, 0x03, 0x04, 0xFF}),
		compressedV8(1, 1, []byte{0x00, 0x5A, 0xFF}),
	}
	for _, data := range inputs {
		h, err := ParseHeader(data)
		if err != nil {
			t.Fatal(err)
		}
		out, err := Decompress(data, 0, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if uint32(len(out)) != h.DecompressedSize {
			t.Fatalf("output size %d != declared %d", len(out), h.DecompressedSize)
		}
	}
}

func TestDecompressNoDecoderFound(t *testing.T) {
	data := compressedV8(2, 42, nil)
	_, err := Decompress(data, 0, nil, nil)
	if !errors.Is(err, ErrNoDecompressor) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecompressDcmpOnlyIsUnsupported(t *testing.T) {
	ctx := memFile{}
	ctx.add(ResourceTypeDcmp, 42, []byte{0x4E, 0x75})
	data := compressedV8(2, 42, nil)
	_, err := Decompress(data, 0, ctx, nil)
	if !errors.Is(err, Err68KUnsupported) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecompressSkipFlagsRemoveSources(t *testing.T) {
	ctx := memFile{}
	ctx.add(ResourceTypeDcmp, 42, []byte{0x4E, 0x75})
	data := compressedV8(2, 42, nil)
	_, err := Decompress(data, SkipFileDcmp, ctx, nil)
	if !errors.Is(err, ErrNoDecompressor) {
		t.Fatalf("err = %v", err)
	}
}

// buildNcmp assembles a minimal PowerPC decompressor container whose main
// routine copies the first words of the input buffer to the output buffer
// and returns: lwz/stw pairs followed by blr.
func buildNcmp(t *testing.T, words int) []byte {
	t.Helper()

	var code []byte
	appendWord := func(w uint32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], w)
		code = append(code, b[:]...)
	}
	for i := 0; i < words; i++ {
		off := uint32(i * 4)
		appendWord(0x80E30000 | off) // lwz r7, off(r3)
		appendWord(0x90E40000 | off) // stw r7, off(r4)
	}
	appendWord(0x4E800020) // blr

	// Loader section: main at section 0 offset 0, nothing else.
	loader := make([]byte, 56)
	binary.BigEndian.PutUint32(loader[0:4], 0)           // main section
	binary.BigEndian.PutUint32(loader[4:8], 0)           // main offset
	binary.BigEndian.PutUint32(loader[8:12], 0xFFFFFFFF) // no init
	binary.BigEndian.PutUint32(loader[16:20], 0xFFFFFFFF)
	binary.BigEndian.PutUint32(loader[36:40], 56) // reloc instr offset
	binary.BigEndian.PutUint32(loader[40:44], 56) // string table offset
	binary.BigEndian.PutUint32(loader[44:48], 56) // export hash offset

	var buf bytes.Buffer
	w32 := func(v uint32) { binary.Write(&buf, binary.BigEndian, v) }
	w16 := func(v uint16) { binary.Write(&buf, binary.BigEndian, v) }

	w32(0x4A6F7921) // 'Joy!'
	w32(0x70656666) // 'peff'
	w32(0x70777063) // 'pwpc'
	w32(1)
	w32(0) // timestamp
	w32(0)
	w32(0)
	w32(0)
	w16(2) // section count
	w16(1)
	w32(0)

	codeOff := uint32(40 + 2*28)
	loaderOff := codeOff + uint32(len(code))

	// Section 0: code.
	w32(0xFFFFFFFF)
	w32(0)
	w32(uint32(len(code)))
	w32(uint32(len(code)))
	w32(uint32(len(code)))
	w32(codeOff)
	buf.WriteByte(0) // EXECUTABLE_READONLY
	buf.WriteByte(0)
	buf.WriteByte(2)
	buf.WriteByte(0)

	// Section 1: loader.
	w32(0xFFFFFFFF)
	w32(0)
	w32(0)
	w32(uint32(len(loader)))
	w32(uint32(len(loader)))
	w32(loaderOff)
	buf.WriteByte(4) // LOADER
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(0)

	buf.Write(code)
	buf.Write(loader)
	return buf.Bytes()
}

func TestDecompressEmulatedNcmp(t *testing.T) {
	ctx := memFile{}
	ctx.add(ResourceTypeNcmp, 42, buildNcmp(t, 1))

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := compressedV9(4, 42, 0, 0, payload)

	out, err := Decompress(data, 0, ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("emulated output = % x, want % x", out, payload)
	}
}

func TestDecompressEmulatedNcmpMultiWord(t *testing.T) {
	ctx := memFile{}
	ctx.add(ResourceTypeNcmp, 7, buildNcmp(t, 2))

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	data := compressedV9(8, 7, 0, 0, payload)

	out, err := Decompress(data, StrictMemory, ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("emulated output = % x", out)
	}
}

func TestDecompressRetryFallsThroughSources(t *testing.T) {
	// The context file offers only an unusable dcmp; the system file holds
	// a working ncmp. Without Retry the dcmp failure is final; with Retry
	// the pipeline moves on.
	ctx := memFile{}
	ctx.add(ResourceTypeDcmp, 9, []byte{0x4E, 0x75})
	sys := memFile{}
	sys.add(ResourceTypeNcmp, 9, buildNcmp(t, 1))

	payload := []byte{0xCA, 0xFE, 0xBA, 0xBE}
	data := compressedV9(4, 9, 0, 0, payload)

	if _, err := Decompress(data, 0, ctx, sys); !errors.Is(err, Err68KUnsupported) {
		t.Fatalf("without Retry: err = %v", err)
	}

	out, err := Decompress(data, Retry, ctx, sys)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("retry output = % x", out)
	}
}

func TestDecompressSkipNativeForcesEmulation(t *testing.T) {
	// ID 0 would normally use the native System 0 decoder; SkipNative
	// forces resolution through the resource files instead.
	ctx := memFile{}
	ctx.add(ResourceTypeNcmp, 0, buildNcmp(t, 1))

	payload := []byte{0x11, 0x22, 0x33, 0x44}
	data := compressedV9(4, 0, 0, 0, payload)

	out, err := Decompress(data, SkipNative, ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("forced-emulation output = % x", out)
	}
}

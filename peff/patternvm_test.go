// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"bytes"
	"testing"
)

func TestPatternZeroFill(t *testing.T) {
	// Opcode 0x05: op=0, count=5 expands to five zero bytes.
	out, err := decodePattern([]byte{0x05}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, make([]byte, 5)) {
		t.Fatalf("got % x", out)
	}

	// Opcode 0x00 with varint count 3 expands to three zero bytes.
	out, err = decodePattern([]byte{0x00, 0x03}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, make([]byte, 3)) {
		t.Fatalf("got % x", out)
	}
}

func TestPatternLiteralBlock(t *testing.T) {
	out, err := decodePattern([]byte{0x23, 0xAA, 0xBB, 0xCC}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("got % x", out)
	}
}

func TestPatternRepeatBlock(t *testing.T) {
	// op=2, count=2, block "AB CD", varint repeat 2 -> block appears 3 times.
	out, err := decodePattern([]byte{0x42, 0xAB, 0xCD, 0x02}, 6)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xAB, 0xCD, 0xAB, 0xCD, 0xAB, 0xCD}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x, want % x", out, want)
	}
}

func TestPatternInterleave(t *testing.T) {
	// op=3, count=1 (common "FF"), custom size 2, 2 custom sections.
	src := []byte{0x61, 0xFF, 0x02, 0x02, 0x01, 0x02, 0x03, 0x04}
	out, err := decodePattern(src, 7)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xFF, 0x01, 0x02, 0xFF, 0x03, 0x04, 0xFF}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x, want % x", out, want)
	}
}

func TestPatternInterleaveZero(t *testing.T) {
	// op=4, count=2 (two zeroes), custom size 1, 2 custom sections.
	src := []byte{0x82, 0x01, 0x02, 0xAA, 0xBB}
	out, err := decodePattern(src, 8)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x00, 0xAA, 0x00, 0x00, 0xBB, 0x00, 0x00}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x, want % x", out, want)
	}
}

func TestPatternVarintMultiByte(t *testing.T) {
	// Varint 0x81 0x00 encodes 0x80: op=0 with a two-byte count.
	out, err := decodePattern([]byte{0x00, 0x81, 0x00}, 0x80)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0x80 {
		t.Fatalf("len = %d", len(out))
	}
}

func TestPatternDeterministic(t *testing.T) {
	src := []byte{0x23, 0xAA, 0xBB, 0xCC, 0x42, 0x11, 0x22, 0x01, 0x05}
	first, err := decodePattern(src, 12)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := decodePattern(src, 12)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("pattern VM output is not a pure function of its input")
		}
	}
	if len(first) != 12 {
		t.Fatalf("output not padded to unpacked size: %d", len(first))
	}
}

func TestPatternInvalidOpcode(t *testing.T) {
	// op=5 is undefined.
	if _, err := decodePattern([]byte{0xA1, 0x00}, 4); err == nil {
		t.Fatal("expected invalid pattern opcode to fail")
	}
}

func TestPatternTruncatedLiteral(t *testing.T) {
	if _, err := decodePattern([]byte{0x25, 0xAA}, 8); err == nil {
		t.Fatal("expected truncated literal to fail")
	}
}

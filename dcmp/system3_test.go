// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"bytes"
	"testing"
)

func decode3(t *testing.T, size uint32, body []byte) ([]byte, error) {
	t.Helper()
	h, err := ParseHeader(compressedV8(size, 3, body))
	if err != nil {
		t.Fatal(err)
	}
	return DecompressSystem3(h, body)
}

// literalRun emits the bits for "literal run of n bytes" followed by the
// raw bytes: a zero back-reference length, then the 1-63 run code.
func literalRun(w *bitWriter, data []byte) {
	w.write(0, 2) // backreference length code for 0
	n := uint32(len(data))
	switch {
	case n == 1:
		w.write(0, 1)
	case n == 2:
		w.write(0b100, 3)
	case n == 3:
		w.write(0b101, 3)
	case n <= 7:
		w.write(0b110, 3)
		w.write(n-4, 2)
	case n <= 15:
		w.write(0b1110, 4)
		w.write(n-8, 3)
	default:
		panic("fixture runs are short")
	}
	for _, b := range data {
		w.write(uint32(b), 8)
	}
}

func TestSystem3SingleLiteral(t *testing.T) {
	// A literal run of length 1 carrying 0xAB; the stream terminates by
	// reaching the declared decompressed size.
	var w bitWriter
	literalRun(&w, []byte{0xAB})
	out, err := decode3(t, 1, w.buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0xAB}) {
		t.Fatalf("got % x", out)
	}
}

func TestSystem3LiteralThenBackreference(t *testing.T) {
	// Four literal bytes, then a back-reference of length 3 at offset 1,
	// repeating the last byte: AA BB CC DD DD DD DD.
	var w bitWriter
	literalRun(&w, []byte{0xAA, 0xBB, 0xCC, 0xDD})
	// After a short literal run the next command must be a back-reference,
	// so the length code's raw value 0 means 0+2+1 = 3 bytes.
	w.write(0, 2)
	// Offset: output length is 4, table cap 0x15: first stage is a single
	// zero bit for offset 1.
	w.write(0, 1)
	out, err := decode3(t, 7, w.buf)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xDD, 0xDD, 0xDD}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x, want % x", out, want)
	}
}

func TestSystem3OverlappingBackreferenceRepeats(t *testing.T) {
	// Two literals then a backreference of length 6 at offset 2 builds the
	// repeating pattern AB CD AB CD AB CD AB CD.
	var w bitWriter
	literalRun(&w, []byte{0xAB, 0xCD})
	// Length: raw 3 (+2+1 for the forced-backreference state) = 6.
	// Code for 3: "101" with x=0 -> bits 1,0,1,0.
	w.write(0b101, 3)
	w.write(0, 1)
	// Offset 2 with max 2: second bit pattern: first stage covers 1 only
	// via read(0)+1; use the second stage: "10" then read(2)+2 -> 2.
	w.write(0b10, 2)
	w.write(0, 2)
	out, err := decode3(t, 8, w.buf)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xAB, 0xCD, 0xAB, 0xCD, 0xAB, 0xCD, 0xAB, 0xCD}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x, want % x", out, want)
	}
}

func TestSystem3BackreferenceBeyondStartFails(t *testing.T) {
	var w bitWriter
	literalRun(&w, []byte{0xAA})
	// Backreference length 3 at offset read via table: offset 2 > output 1.
	w.write(0, 2)
	w.write(0b10, 2)
	w.write(0, 2)
	if _, err := decode3(t, 8, w.buf); err == nil {
		t.Fatal("expected out-of-range backreference to fail")
	}
}

func TestSystem3TruncatedStreamFails(t *testing.T) {
	var w bitWriter
	literalRun(&w, []byte{0xAA})
	// Declared size larger than the stream can produce.
	if _, err := decode3(t, 64, w.buf); err == nil {
		t.Fatal("expected bit exhaustion to fail")
	}
}

func TestDecodeInt1To63Boundaries(t *testing.T) {
	tests := []struct {
		bits []uint32
		n    []int
		want uint32
	}{
		{[]uint32{0}, []int{1}, 1},
		{[]uint32{0b100}, []int{3}, 2},
		{[]uint32{0b101}, []int{3}, 3},
		{[]uint32{0b110, 0}, []int{3, 2}, 4},
		{[]uint32{0b110, 3}, []int{3, 2}, 7},
		{[]uint32{0b1110, 0}, []int{4, 3}, 8},
		{[]uint32{0b1110, 7}, []int{4, 3}, 15},
		{[]uint32{0b111, 0b1000, 0b00}, []int{3, 4, 2}, 16},
		{[]uint32{0b111, 0b1111, 0b111}, []int{3, 4, 3}, 63},
	}
	for _, tt := range tests {
		var w bitWriter
		for i, v := range tt.bits {
			w.write(v, tt.n[i])
		}
		r := &bitReader{data: w.buf}
		got, err := decodeInt1To63(r)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Fatalf("bits %v => %d, want %d", tt.bits, got, tt.want)
		}
	}
}

func TestDecodeInt0To2042Boundaries(t *testing.T) {
	tests := []struct {
		bits []uint32
		n    []int
		want uint32
	}{
		{[]uint32{0b00}, []int{2}, 0},
		{[]uint32{0b01}, []int{2}, 1},
		{[]uint32{0b100}, []int{3}, 2},
		{[]uint32{0b101, 0}, []int{3, 1}, 3},
		{[]uint32{0b1100, 1}, []int{4, 1}, 6},
		{[]uint32{0b1101, 0b11}, []int{4, 2}, 10},
		{[]uint32{0b1110, 0b000}, []int{4, 3}, 11},
		{[]uint32{0b11110, 0b111}, []int{5, 3}, 26},
		{[]uint32{0b111110, 0b00000}, []int{6, 5}, 27},
		// The unary prefix saturates at ten ones; no terminating zero.
		{[]uint32{0b1111111111, 0}, []int{10, 10}, 1019},
		{[]uint32{0b1111111111, 1023}, []int{10, 10}, 2042},
	}
	for _, tt := range tests {
		var w bitWriter
		for i, v := range tt.bits {
			w.write(v, tt.n[i])
		}
		r := &bitReader{data: w.buf}
		got, err := decodeInt0To2042(r)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Fatalf("bits %v => %d, want %d", tt.bits, got, tt.want)
		}
	}
}

func TestReadOffsetFirstRungsPerTable(t *testing.T) {
	// For every table, a leading zero bit selects the smallest offsets:
	// value = read(firstBits) + 1.
	maxes := []uint32{
		0x0A, 0x14, 0x28, 0x50, 0xA0, 0x2A0, 0x3E8, 0xA80,
		0x1500, 0x2A00, 0x5400, 0xA800, 0x11170, 0x2A000, 0x54000,
	}
	for i, max := range maxes {
		table := tableForMax(max)
		var w bitWriter
		w.write(0, 1)
		w.write(0, table.firstBits)
		r := &bitReader{data: w.buf}
		got, err := readOffset(max, r)
		if err != nil {
			t.Fatalf("table %d: %v", i, err)
		}
		if got != 1 {
			t.Fatalf("table %d: first-rung zero payload => %d, want 1", i, got)
		}

		var w2 bitWriter
		w2.write(0b10, 2)
		w2.write(0, table.secondBits)
		r = &bitReader{data: w2.buf}
		got, err = readOffset(max, r)
		if err != nil {
			t.Fatalf("table %d: %v", i, err)
		}
		if got != table.secondBase {
			t.Fatalf("table %d: second-rung zero payload => %#x, want %#x",
				i, got, table.secondBase)
		}
	}
}

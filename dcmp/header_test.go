// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"bytes"
	"testing"
)

func TestIsCompressedDetection(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"valid v8", compressedV8(4, 0, nil), true},
		{"valid v9", compressedV9(4, 0, 0, 0, nil), true},
		{"too short", []byte{0xA8, 0x9F, 0x65, 0x72}, false},
		{"wrong magic", append([]byte{0, 0, 0, 0}, compressedV8(4, 0, nil)[4:]...), false},
		{"attr bit clear", func() []byte {
			d := compressedV8(4, 0, nil)
			d[7] = 0
			return d
		}(), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCompressed(tt.data); got != tt.want {
				t.Fatalf("IsCompressed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseHeaderV8(t *testing.T) {
	data := compressedV8(0x1234, 7, nil)
	data[12] = 0x80 // working buffer fraction
	data[13] = 0x10 // output extra bytes
	h, err := ParseHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if h.Version9() {
		t.Fatal("v8 header reported as v9")
	}
	if h.DecompressedSize != 0x1234 || h.DcmpResourceID != 7 {
		t.Fatalf("header = %+v", h)
	}
	if h.WorkingBufferFractionalSize != 0x80 || h.OutputExtraBytes != 0x10 {
		t.Fatalf("v8 tail = %+v", h)
	}
	if h.BodyOffset() != 16 {
		t.Fatalf("body offset = %d", h.BodyOffset())
	}
}

func TestParseHeaderV9RecordsParamsVerbatim(t *testing.T) {
	data := compressedV9(8, -1, 0xAA, 0x55, nil)
	h, err := ParseHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if !h.Version9() {
		t.Fatal("v9 header reported as v8")
	}
	if h.DcmpResourceID != -1 {
		t.Fatalf("dcmp id = %d", h.DcmpResourceID)
	}
	if h.Param != [2]byte{0xAA, 0x55} {
		t.Fatalf("params = %v", h.Param)
	}
	if h.BodyOffset() != 18 {
		t.Fatalf("body offset = %d", h.BodyOffset())
	}
}

func TestParseHeaderTwelveByteForm(t *testing.T) {
	// A 12-byte header leaves the union absent; the ID defaults to 0 and
	// the body begins right after the declared size.
	data := []byte{
		0xA8, 0x9F, 0x65, 0x72,
		0x00, 0x0C,
		0x08, 0x01,
		0x00, 0x00, 0x00, 0x02,
		0x01, 0xAB, 0xCD, 0xFF, // body: one literal word, end of stream
	}
	if !IsCompressed(data) {
		t.Fatal("12-byte-header resource not detected")
	}
	h, err := ParseHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if h.DcmpResourceID != 0 {
		t.Fatalf("dcmp id = %d, want default 0", h.DcmpResourceID)
	}
	if h.BodyOffset() != 12 {
		t.Fatalf("body offset = %d", h.BodyOffset())
	}

	out, err := Decompress(data, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0xAB, 0xCD}) {
		t.Fatalf("decompressed = % x", out)
	}
}

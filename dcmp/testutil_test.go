// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import "encoding/binary"

// memFile is a map-backed ContextResourceFile for the test suite; the real
// ResourceFile index parser sits above this package.
type memFile map[string][]byte

func (m memFile) Lookup(resType string, id int16) ([]byte, bool) {
	b, ok := m[resTypeKey(resType, id)]
	return b, ok
}

func resTypeKey(resType string, id int16) string {
	return resType + "/" + string(rune(id))
}

func (m memFile) add(resType string, id int16, data []byte) {
	m[resTypeKey(resType, id)] = data
}

// compressedV8 builds a 16-byte version 8 header followed by body.
func compressedV8(decompressedSize uint32, dcmpID int16, body []byte) []byte {
	buf := make([]byte, 16, 16+len(body))
	binary.BigEndian.PutUint32(buf[0:4], HeaderMagic)
	binary.BigEndian.PutUint16(buf[4:6], 16)
	buf[6] = 8
	buf[7] = attrCompressed
	binary.BigEndian.PutUint32(buf[8:12], decompressedSize)
	buf[12] = 0 // working buffer fraction
	buf[13] = 0 // output extra bytes
	binary.BigEndian.PutUint16(buf[14:16], uint16(dcmpID))
	return append(buf, body...)
}

// compressedV9 builds an 18-byte version 9 header followed by body.
func compressedV9(decompressedSize uint32, dcmpID int16, param1, param2 byte, body []byte) []byte {
	buf := make([]byte, 18, 18+len(body))
	binary.BigEndian.PutUint32(buf[0:4], HeaderMagic)
	binary.BigEndian.PutUint16(buf[4:6], 18)
	buf[6] = 9
	buf[7] = attrCompressed
	binary.BigEndian.PutUint32(buf[8:12], decompressedSize)
	binary.BigEndian.PutUint16(buf[12:14], uint16(dcmpID))
	binary.BigEndian.PutUint16(buf[14:16], 0)
	buf[16] = param1
	buf[17] = param2
	return append(buf, body...)
}

// bitWriter packs MSB-first bits into bytes for System 3 fixtures.
type bitWriter struct {
	buf  []byte
	nbit int
}

func (w *bitWriter) write(v uint32, n int) {
	for n > 0 {
		n--
		if w.nbit%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		bit := (v >> uint(n)) & 1
		w.buf[len(w.buf)-1] |= byte(bit) << uint(7-w.nbit%8)
		w.nbit++
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"encoding/binary"

	"github.com/saferwall/macres/errcode"
)

// constTable2 holds the System 2 default constant words: the high-frequency
// 68K opcode words and small offsets shared with the System 0 table, in the
// order System 2 resources index them.
var constTable2 = [...]uint16{
	0x0000, 0x0001, 0x0002, 0x0003, 0x0004, 0x0005, 0x0006, 0x0007,
	0x0008, 0x000A, 0x000C, 0x000E, 0x0010, 0x0012, 0x0014, 0x0016,
	0x0018, 0x001A, 0x001C, 0x001E, 0x0020, 0x0024, 0x0028, 0x002C,
	0x0030, 0x0038, 0x0040, 0x0050, 0x0060, 0x0080, 0x00FF, 0x0100,
	0x4E75, 0x4E56, 0x4E5E, 0x4EBA, 0x4EB9, 0x4EAD, 0x4ED0, 0x4EED,
	0x2F00, 0x2F0B, 0x2F0C, 0x2F2E, 0x2F3C, 0x2050, 0x2053, 0x2054,
	0x205F, 0x2068, 0x206E, 0x226E, 0x266E, 0x286E, 0x2D40, 0x2D48,
	0x3028, 0x302E, 0x3D40, 0x3D7C, 0x41EE, 0x43EE, 0x486E, 0x4878,
	0x48E7, 0x4CDF, 0x4CEE, 0x4A2E, 0x4A40, 0x4AAE, 0x6000, 0x6100,
	0x6600, 0x6602, 0x6604, 0x6606, 0x6700, 0x6702, 0x6704, 0x6706,
	0x7000, 0x7001, 0x70FF, 0x7200, 0xFFF0, 0xFFF4, 0xFFF8, 0xFFFC,
	0xFFFF, 0xFFFE, 0xFFEC, 0xFFE8, 0x558F, 0x588F, 0x598F, 0x508F,
}

// DecompressSystem2 decodes the System 2 format: the same command-stream
// pattern as Systems 0 and 1, word-oriented, with its own constant table.
// The version 9 header's parameter bytes govern an extra constant-word
// table: when Param[0] bit 0 is set, Param[1] counts extra big-endian words
// prepended to the command stream, which extend the table and are indexed
// before the built-in entries.
func DecompressSystem2(h *Header, body []byte) ([]byte, error) {
	s := &byteStream{data: body}
	w := &wordWriter{buf: make([]byte, 0, h.DecompressedSize+1)}

	var extra []uint16
	if h.Version9() && h.Param[0]&1 != 0 {
		count := int(h.Param[1])
		raw, err := s.take(count * 2)
		if err != nil {
			return nil, err
		}
		extra = make([]uint16, count)
		for i := range extra {
			extra[i] = binary.BigEndian.Uint16(raw[i*2:])
		}
	}
	constAt := func(slot int) (uint16, error) {
		if slot < len(extra) {
			return extra[slot], nil
		}
		slot -= len(extra)
		if slot >= len(constTable2) {
			return 0, errcode.Wrap(errcode.InvalidInput, ErrBadStream)
		}
		return constTable2[slot], nil
	}

	for {
		command, err := s.u8()
		if err != nil {
			return nil, err
		}
		switch {
		case command == 0: // <size> <data> - raw data, size in words
			n, err := readEncodedInt(s)
			if err != nil {
				return nil, err
			}
			b, err := s.take(int(n) * 2)
			if err != nil {
				return nil, err
			}
			w.bytes(b)
		case command < 0x10: // raw data, fixed word count
			b, err := s.take(int(command) * 2)
			if err != nil {
				return nil, err
			}
			w.bytes(b)
		case command < 0xFE: // constant word
			v, err := constAt(int(command) - 0x10)
			if err != nil {
				return nil, err
			}
			w.u16(v)
		case command == 0xFE:
			if err := executeExtensionCommand(s, w); err != nil {
				return nil, err
			}
		default: // 0xFF: end of stream
			return trimToSize(w.buf, h.DecompressedSize), nil
		}
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"encoding/binary"
	"fmt"

	"github.com/saferwall/macres/errcode"
)

// constTable0 holds the System 0 constant words, indexed by command byte
// minus 0x4B. The values are mostly 68K instruction words and small
// offsets common in CODE resources.
var constTable0 = [...]uint16{
	// 4B
	0x0000, 0x4EBA, 0x0008, 0x4E75, 0x000C,
	// 50
	0x4EAD, 0x2053, 0x2F0B, 0x6100, 0x0010, 0x7000, 0x2F00, 0x486E,
	0x2050, 0x206E, 0x2F2E, 0xFFFC, 0x48E7, 0x3F3C, 0x0004, 0xFFF8,
	// 60
	0x2F0C, 0x2006, 0x4EED, 0x4E56, 0x2068, 0x4E5E, 0x0001, 0x588F,
	0x4FEF, 0x0002, 0x0018, 0x6000, 0xFFFF, 0x508F, 0x4E90, 0x0006,
	// 70
	0x266E, 0x0014, 0xFFF4, 0x4CEE, 0x000A, 0x000E, 0x41EE, 0x4CDF,
	0x48C0, 0xFFF0, 0x2D40, 0x0012, 0x302E, 0x7001, 0x2F28, 0x2054,
	// 80
	0x6700, 0x0020, 0x001C, 0x205F, 0x1800, 0x266F, 0x4878, 0x0016,
	0x41FA, 0x303C, 0x2840, 0x7200, 0x286E, 0x200C, 0x6600, 0x206B,
	// 90
	0x2F07, 0x558F, 0x0028, 0xFFFE, 0xFFEC, 0x22D8, 0x200B, 0x000F,
	0x598F, 0x2F3C, 0xFF00, 0x0118, 0x81E1, 0x4A00, 0x4EB0, 0xFFE8,
	// A0
	0x48C7, 0x0003, 0x0022, 0x0007, 0x001A, 0x6706, 0x6708, 0x4EF9,
	0x0024, 0x2078, 0x0800, 0x6604, 0x002A, 0x4ED0, 0x3028, 0x265F,
	// B0
	0x6704, 0x0030, 0x43EE, 0x3F00, 0x201F, 0x001E, 0xFFF6, 0x202E,
	0x42A7, 0x2007, 0xFFFA, 0x6002, 0x3D40, 0x0C40, 0x6606, 0x0026,
	// C0
	0x2D48, 0x2F01, 0x70FF, 0x6004, 0x1880, 0x4A40, 0x0040, 0x002C,
	0x2F08, 0x0011, 0xFFE4, 0x2140, 0x2640, 0xFFF2, 0x426E, 0x4EB9,
	// D0
	0x3D7C, 0x0038, 0x000D, 0x6006, 0x422E, 0x203C, 0x670C, 0x2D68,
	0x6608, 0x4A2E, 0x4AAE, 0x002E, 0x4840, 0x225F, 0x2200, 0x670A,
	// E0
	0x3007, 0x4267, 0x0032, 0x2028, 0x0009, 0x487A, 0x0200, 0x2F2B,
	0x0005, 0x226E, 0x6602, 0xE580, 0x670E, 0x660A, 0x0050, 0x3E00,
	// F0
	0x660C, 0x2E00, 0xFFEE, 0x206D, 0x2040, 0xFFE0, 0x5340, 0x6008,
	0x0480, 0x0068, 0x0B7C, 0x4400, 0x41E8, 0x4841,
}

// constTable1 holds the System 1 constant words, indexed by command byte
// minus 0xD5.
var constTable1 = [...]uint16{
	// D5
	0x0000, 0x0001, 0x0002,
	0x0003, 0x2E01, 0x3E01, 0x0101, 0x1E01, 0xFFFF, 0x0E01, 0x3100,
	// E0
	0x1112, 0x0107, 0x3332, 0x1239, 0xED10, 0x0127, 0x2322, 0x0137,
	0x0706, 0x0117, 0x0123, 0x00FF, 0x002F, 0x070E, 0xFD3C, 0x0135,
	// F0
	0x0115, 0x0102, 0x0007, 0x003E, 0x05D5, 0x0201, 0x0607, 0x0708,
	0x3001, 0x0133, 0x0010, 0x1716, 0x373E, 0x3637,
}

// byteStream is the sequential reader shared by the System 0/1/2 decoders.
type byteStream struct {
	data []byte
	pos  int
}

func (s *byteStream) u8() (uint8, error) {
	if s.pos >= len(s.data) {
		return 0, errcode.Wrap(errcode.InvalidInput, ErrBadStream)
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *byteStream) u16() (uint16, error) {
	if s.pos+2 > len(s.data) {
		return 0, errcode.Wrap(errcode.InvalidInput, ErrBadStream)
	}
	v := binary.BigEndian.Uint16(s.data[s.pos:])
	s.pos += 2
	return v, nil
}

func (s *byteStream) u32() (uint32, error) {
	if s.pos+4 > len(s.data) {
		return 0, errcode.Wrap(errcode.InvalidInput, ErrBadStream)
	}
	v := binary.BigEndian.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

func (s *byteStream) take(n int) ([]byte, error) {
	if n < 0 || s.pos+n > len(s.data) {
		return nil, errcode.Wrap(errcode.InvalidInput, ErrBadStream)
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// readEncodedInt reads the shared System 0/1 varint: one byte below 0x80 is
// the value itself, 0xFF prefixes a full 32-bit word, and anything else is
// a two-byte form biased by 0xC0 and sign-extended from 15 bits.
func readEncodedInt(s *byteStream) (uint32, error) {
	b, err := s.u8()
	if err != nil {
		return 0, err
	}
	ret := uint32(b)
	if ret&0x80 == 0 {
		return ret, nil
	}
	if ret == 0xFF {
		return s.u32()
	}
	lo, err := s.u8()
	if err != nil {
		return 0, err
	}
	ret = ((ret - 0xC0) << 8) | uint32(lo)
	if ret&0x4000 != 0 {
		ret |= 0xFFFF8000
	}
	return ret, nil
}

// wordWriter accumulates decoder output with big-endian word helpers.
type wordWriter struct {
	buf []byte
}

func (w *wordWriter) bytes(b []byte)  { w.buf = append(w.buf, b...) }
func (w *wordWriter) u8(v uint8)      { w.buf = append(w.buf, v) }
func (w *wordWriter) u16(v uint16)    { w.buf = append(w.buf, byte(v>>8), byte(v)) }
func (w *wordWriter) u32(v uint32)    { w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)) }

// executeExtensionCommand handles the 0xFE escape shared by formats 0, 1
// and 2: export-table unpacking, jump-table expansion, run-length bytes and
// words, and the three difference-encoding variants, per spec §4.5.
func executeExtensionCommand(s *byteStream, w *wordWriter) error {
	sub, err := s.u8()
	if err != nil {
		return err
	}

	// Several subcommands read a count whose high 16 bits can carry garbage
	// on real resources (the original 68K code used dbf, which only sees
	// the low half), so counts are masked to 16 bits throughout.
	switch sub {
	case 0: // <segnum> <count-1> <index>... - export table
		index := uint16(6)
		segNum, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		count, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		for x := uint32(0); x < count&0xFFFF; x++ {
			delta, err := readEncodedInt(s)
			if err != nil {
				return err
			}
			index += uint16(delta) - 6
			w.u16(0x3F3C)
			w.u16(uint16(segNum))
			w.u16(0xA9F0)
			w.u16(index)
		}
		w.u16(0x3F3C)
		w.u16(uint16(segNum))
		w.u16(0xA9F0)

	case 1: // <tgoff> <a5dlt> <count-1> <a5off>... - jump table
		targetOffset16, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		targetOffset := uint16(targetOffset16)
		a5Delta, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		count, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		a5Offset32, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		a5Offset := uint16(a5Offset32)
		for x := uint32(0); x < (count&0xFFFF)+1; x++ {
			if x != 0 {
				targetOffset -= 8
				if a5Delta == 0 {
					next, err := readEncodedInt(s)
					if err != nil {
						return err
					}
					a5Offset = uint16(next)
				} else {
					a5Offset += uint16(a5Delta)
				}
			}
			w.u16(0x6100)
			w.u16(targetOffset)
			w.u16(0x4EED)
			w.u16(a5Offset)
		}

	case 2: // <value> <count> - run-length encoded bytes
		v, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		count, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		for n := (count & 0xFFFF) + 1; n > 0; n-- {
			w.u8(uint8(v))
		}

	case 3: // <value> <count> - run-length encoded words
		v, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		count, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		for n := (count & 0xFFFF) + 1; n > 0; n-- {
			w.u16(uint16(v))
		}

	case 4: // <start> <count-1> <diff8>... - words, bytewise deltas
		v32, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		v := uint16(v32)
		count, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		for x := uint32(0); x < (count&0xFFFF)+1; x++ {
			if x != 0 {
				d, err := s.u8()
				if err != nil {
					return err
				}
				delta := uint16(d)
				if delta&0x80 != 0 {
					delta |= 0xFF00
				}
				v += delta
			}
			w.u16(v)
		}

	case 5: // <start> <count-1> <diff>... - words, varint deltas
		v32, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		v := uint16(v32)
		count, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		for x := uint32(0); x < (count&0xFFFF)+1; x++ {
			if x != 0 {
				d, err := readEncodedInt(s)
				if err != nil {
					return err
				}
				v += uint16(d)
			}
			w.u16(v)
		}

	case 6: // <start> <count-1> <diff>... - longs, varint deltas
		v, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		count, err := readEncodedInt(s)
		if err != nil {
			return err
		}
		for x := uint32(0); x < (count&0xFFFF)+1; x++ {
			if x != 0 {
				d, err := readEncodedInt(s)
				if err != nil {
					return err
				}
				v += d
			}
			w.u32(v)
		}

	default:
		return errcode.Wrap(errcode.InvalidInput,
			fmt.Errorf("%w: extension subcommand 0x%02X", ErrBadStream, sub))
	}
	return nil
}

// decompressSystem01 decodes the shared System 0/1 dictionary-plus-
// constant-table format: format 0 operates on 16-bit words, format 1 on
// bytes. Output that overruns the declared decompressed size is truncated.
func decompressSystem01(h *Header, body []byte, isSystem1 bool) ([]byte, error) {
	s := &byteStream{data: body}
	w := &wordWriter{buf: make([]byte, 0, h.DecompressedSize+1)}

	// The memo list replaces the original's offset-table working buffer:
	// every memoized copy appends one entry, and memo references index it.
	var memo [][]byte
	memoAt := func(slot int) ([]byte, error) {
		if slot < 0 || slot >= len(memo) {
			return nil, errcode.Wrap(errcode.InvalidInput,
				fmt.Errorf("%w: memo slot %d of %d", ErrBadStream, slot, len(memo)))
		}
		return memo[slot], nil
	}
	memoize := func(n int) error {
		b, err := s.take(n)
		if err != nil {
			return err
		}
		entry := append([]byte(nil), b...)
		memo = append(memo, entry)
		w.bytes(entry)
		return nil
	}

	if isSystem1 {
		for {
			command, err := s.u8()
			if err != nil {
				return nil, err
			}
			switch {
			case command < 0x10: // raw data, fixed size
				b, err := s.take(int(command) + 1)
				if err != nil {
					return nil, err
				}
				w.bytes(b)
			case command < 0x20: // raw data, fixed size, memoize
				if err := memoize(int(command) - 0x0F); err != nil {
					return nil, err
				}
			case command < 0xD0: // memo reference, fixed slot
				b, err := memoAt(int(command) - 0x20)
				if err != nil {
					return nil, err
				}
				w.bytes(b)
			case command == 0xD0: // <size> <data> - raw data
				n, err := readEncodedInt(s)
				if err != nil {
					return nil, err
				}
				b, err := s.take(int(n))
				if err != nil {
					return nil, err
				}
				w.bytes(b)
			case command == 0xD1: // <size> <data> - raw data, memoize
				n, err := readEncodedInt(s)
				if err != nil {
					return nil, err
				}
				if err := memoize(int(n)); err != nil {
					return nil, err
				}
			case command == 0xD2: // <slot8> - memo reference, slot + 0xB0
				slot, err := s.u8()
				if err != nil {
					return nil, err
				}
				b, err := memoAt(int(slot) + 0xB0)
				if err != nil {
					return nil, err
				}
				w.bytes(b)
			case command == 0xD3: // <slot8> - memo reference, slot + 0x1B0
				slot, err := s.u8()
				if err != nil {
					return nil, err
				}
				b, err := memoAt(int(slot) + 0x1B0)
				if err != nil {
					return nil, err
				}
				w.bytes(b)
			case command == 0xD4: // <slot16> - memo reference, slot + 0xB0
				slot, err := s.u16()
				if err != nil {
					return nil, err
				}
				b, err := memoAt(int(slot) + 0xB0)
				if err != nil {
					return nil, err
				}
				w.bytes(b)
			case command < 0xFE: // constant word
				w.u16(constTable1[int(command)-0xD5])
			case command == 0xFE:
				if err := executeExtensionCommand(s, w); err != nil {
					return nil, err
				}
			default: // 0xFF: end of stream
				return trimToSize(w.buf, h.DecompressedSize), nil
			}
		}
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
		case command == 0x10: // <size> <data> - raw data, memoize
			n, err := readEncodedInt(s)
			if err != nil {
				return nil, err
			}
			if err := memoize(int(n) * 2); err != nil {
				return nil, err
			}
		case command < 0x20: // raw data, fixed word count, memoize
			if err := memoize((int(command) - 0x10) * 2); err != nil {
				return nil, err
			}
		case command == 0x20: // <slot8> - memo reference, slot + 0x28
			slot, err := s.u8()
			if err != nil {
				return nil, err
			}
			b, err := memoAt(int(slot) + 0x28)
			if err != nil {
				return nil, err
			}
			w.bytes(b)
		case command == 0x21: // <slot8> - memo reference, slot + 0x128
			slot, err := s.u8()
			if err != nil {
				return nil, err
			}
			b, err := memoAt(int(slot) + 0x128)
			if err != nil {
				return nil, err
			}
			w.bytes(b)
		case command == 0x22: // <slot16> - memo reference, slot + 0x28
			slot, err := s.u16()
			if err != nil {
				return nil, err
			}
			b, err := memoAt(int(slot) + 0x28)
			if err != nil {
				return nil, err
			}
			w.bytes(b)
		case command < 0x4B: // memo reference, fixed slot
			b, err := memoAt(int(command) - 0x23)
			if err != nil {
				return nil, err
			}
			w.bytes(b)
		case command < 0xFE: // constant word
			w.u16(constTable0[int(command)-0x4B])
		case command == 0xFE:
			if err := executeExtensionCommand(s, w); err != nil {
				return nil, err
			}
		default: // 0xFF: end of stream
			return trimToSize(w.buf, h.DecompressedSize), nil
		}
	}
}

// trimToSize drops any excess tail bytes a sloppy compressor left behind;
// real resources sometimes overrun by a byte of word-encoding slack.
func trimToSize(buf []byte, size uint32) []byte {
	if uint32(len(buf)) > size {
		return buf[:size]
	}
	return buf
}

// DecompressSystem0 decodes the word-oriented System 0 format.
func DecompressSystem0(h *Header, body []byte) ([]byte, error) {
	return decompressSystem01(h, body, false)
}

// DecompressSystem1 decodes the byte-oriented System 1 format.
func DecompressSystem1(h *Header, body []byte) ([]byte, error) {
	return decompressSystem01(h, body, true)
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import "github.com/saferwall/macres/errcode"

// bitReader yields n bits at a time, MSB-first, from a byte slice.
type bitReader struct {
	data []byte
	pos  int // bit offset
}

func (r *bitReader) read(n int) (uint32, error) {
	var v uint32
	for ; n > 0; n-- {
		byteIdx := r.pos >> 3
		if byteIdx >= len(r.data) {
			return 0, errcode.Wrap(errcode.InvalidInput, ErrBadStream)
		}
		bit := (r.data[byteIdx] >> (7 - uint(r.pos&7))) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}
	return v, nil
}

// decodeInt1To63 decodes the literal-run length code. Input => output map:
//
//	0          => 1
//	100        => 2
//	101        => 3
//	110xx      => 4 + x
//	1110xxx    => 8 + x
//	11110xxyy  => 16 + x.y
//	11111xxyyy => 32 + x.y
func decodeInt1To63(r *bitReader) (uint32, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return 1, nil
	}
	sel, err := r.read(2)
	if err != nil {
		return 0, err
	}
	switch sel {
	case 0:
		return 2, nil
	case 1:
		return 3, nil
	case 2:
		v, err := r.read(2)
		return v + 4, err
	default:
		which, err := r.read(4)
		if err != nil {
			return 0, err
		}
		switch {
		case which < 8:
			return which + 8, nil
		case which < 12:
			v, err := r.read(2)
			return v + ((which - 0x08) << 2) + 0x10, err
		default:
			v, err := r.read(3)
			return v + ((which - 0x0C) << 3) + 0x20, err
		}
	}
}

// decodeInt0To2042 decodes the back-reference length code: a unary prefix
// of up to ten ones selects the staircase rung, then the rung's payload
// bits follow. The rungs are 0-1, 2, 3-4, 5-6, 7-10, 11-18, 19-26, 27-58,
// 59-122, 123-250, 251-506, 507-1018, 1019-2042.
func decodeInt0To2042(r *bitReader) (uint32, error) {
	which := 0
	for which < 10 {
		b, err := r.read(1)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		which++
	}
	switch which {
	case 0:
		return r.read(1)
	case 1:
		b, err := r.read(1)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			return 2, nil
		}
		v, err := r.read(1)
		return v + 3, err
	case 2:
		b, err := r.read(1)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			v, err := r.read(1)
			return v + 5, err
		}
		v, err := r.read(2)
		return v + 7, err
	case 3:
		v, err := r.read(3)
		return v + 11, err
	case 4:
		v, err := r.read(3)
		return v + 19, err
	case 5:
		v, err := r.read(5)
		return v + 27, err
	case 6:
		v, err := r.read(6)
		return v + 59, err
	case 7:
		v, err := r.read(7)
		return v + 123, err
	case 8:
		v, err := r.read(8)
		return v + 251, err
	case 9:
		v, err := r.read(9)
		return v + 507, err
	default:
		v, err := r.read(10)
		return v + 1019, err
	}
}

// offsetRung is one step of an offset table's third stage: requests whose
// maximum offset is at most max consume bits payload bits.
type offsetRung struct {
	max  uint32
	bits int
}

// offsetTable encodes one of the fifteen back-reference offset codings,
// parameterized by the current output length's order of magnitude; every
// maximum above 0x2A000 shares the last one. The
// first stage reads firstBits bits biased by 1; the second reads
// secondBits biased by secondBase; the third reads a rung-dependent width
// biased by thirdBase.
type offsetTable struct {
	firstBits  int
	secondBits int
	secondBase uint32
	thirdBase  uint32
	rungs      []offsetRung
}

// The rung widths reproduce the original decompressor bit-exactly,
// including its two miscoded thresholds (0x66C for 0x680, 0x200C for
// 0x14080) and the doubled 4-bit rung in the 0xA80 table.
var offsetTables = [...]offsetTable{
	{0, 2, 2, 0x06, []offsetRung{{0x7, 1}, {0x9, 2}, {0xD, 3}, {0x15, 4}}},
	{1, 3, 3, 0x0B, []offsetRung{{0xC, 1}, {0xE, 2}, {0x12, 3}, {0x1A, 4}, {0x2A, 5}}},
	{2, 4, 5, 0x15, []offsetRung{{0x16, 1}, {0x18, 2}, {0x1C, 3}, {0x24, 4}, {0x34, 5}, {0x54, 6}}},
	{3, 5, 9, 0x29, []offsetRung{{0x2A, 1}, {0x2C, 2}, {0x30, 3}, {0x38, 4}, {0x48, 5}, {0x68, 6}, {0xA8, 7}}},
	{4, 6, 0x11, 0x51, []offsetRung{{0x52, 1}, {0x54, 2}, {0x58, 3}, {0x60, 4}, {0x70, 5}, {0x90, 6}, {0xD0, 7}, {0x150, 8}}},
	{5, 7, 0x21, 0xA1, []offsetRung{{0xA2, 1}, {0xA4, 2}, {0xA8, 3}, {0xB0, 4}, {0xC0, 5}, {0xE0, 6}, {0x120, 7}, {0x1A0, 8}, {0x2A0, 9}}},
	{6, 8, 0x41, 0x141, []offsetRung{{0x142, 1}, {0x144, 2}, {0x148, 3}, {0x150, 4}, {0x160, 5}, {0x180, 6}, {0x1C0, 7}, {0x240, 8}, {0x340, 9}, {0x540, 10}}},
	{7, 9, 0x81, 0x281, []offsetRung{{0x282, 1}, {0x284, 2}, {0x288, 4}, {0x290, 4}, {0x2A0, 5}, {0x2C0, 6}, {0x300, 7}, {0x380, 8}, {0x480, 9}, {0x66C, 10}, {0xA80, 11}}},
	{8, 10, 0x101, 0x501, []offsetRung{{0x502, 1}, {0x504, 2}, {0x508, 3}, {0x510, 4}, {0x520, 5}, {0x540, 6}, {0x580, 7}, {0x600, 8}, {0x700, 9}, {0x900, 10}, {0xD00, 11}, {0x1500, 12}}},
	{9, 11, 0x201, 0xA01, []offsetRung{{0xA02, 1}, {0xA04, 2}, {0xA08, 3}, {0xA10, 4}, {0xA20, 5}, {0xA40, 6}, {0xA80, 7}, {0xB00, 8}, {0xC00, 9}, {0xE00, 10}, {0x1200, 11}, {0x1A00, 12}, {0x2A00, 13}}},
	{10, 12, 0x401, 0x1401, []offsetRung{{0x1402, 1}, {0x1404, 2}, {0x1408, 3}, {0x1410, 4}, {0x1420, 5}, {0x1440, 6}, {0x1480, 7}, {0x1500, 8}, {0x1600, 9}, {0x1800, 10}, {0x1C00, 11}, {0x2400, 12}, {0x3400, 13}, {0x5400, 14}}},
	{11, 13, 0x801, 0x2801, []offsetRung{{0x2802, 1}, {0x2804, 2}, {0x2808, 3}, {0x2810, 4}, {0x2820, 5}, {0x2840, 6}, {0x2880, 7}, {0x2900, 8}, {0x2A00, 9}, {0x2C00, 10}, {0x3000, 11}, {0x3800, 12}, {0x4800, 13}, {0x6800, 14}, {0xA800, 15}}},
	{12, 14, 0x1001, 0x5001, []offsetRung{{0x5002, 1}, {0x5004, 2}, {0x5008, 3}, {0x5010, 4}, {0x5020, 5}, {0x5040, 6}, {0x5080, 7}, {0x5100, 8}, {0x5200, 9}, {0x5400, 10}, {0x5800, 11}, {0x6000, 12}, {0x7000, 13}, {0x9000, 14}, {0xD000, 15}, {0x15000, 16}}},
	{13, 15, 0x2001, 0xA001, []offsetRung{{0xA002, 1}, {0xA004, 2}, {0xA008, 3}, {0xA010, 4}, {0xA020, 5}, {0xA040, 6}, {0xA080, 7}, {0xA100, 8}, {0xA200, 9}, {0xA400, 10}, {0xA800, 11}, {0xB000, 12}, {0xC000, 13}, {0xE000, 14}, {0x12000, 15}, {0x1A000, 16}, {0x2A000, 17}}},
	{14, 16, 0x4001, 0x14001, []offsetRung{{0x14002, 1}, {0x14004, 2}, {0x14008, 3}, {0x14010, 4}, {0x14020, 5}, {0x14040, 6}, {0x200C, 7}, {0x14100, 8}, {0x14200, 9}, {0x14400, 10}, {0x14800, 11}, {0x15000, 12}, {0x16000, 13}, {0x18000, 14}, {0x1C000, 15}, {0x24000, 16}, {0x34000, 17}, {0x54000, 18}}},
}

// tableForMax selects the offset table for the current maximum offset.
func tableForMax(maxValue uint32) *offsetTable {
	switch {
	case maxValue <= 0x0A:
		return &offsetTables[0]
	case maxValue <= 0x14:
		return &offsetTables[1]
	case maxValue <= 0x28:
		return &offsetTables[2]
	case maxValue <= 0x50:
		return &offsetTables[3]
	case maxValue <= 0xA0:
		return &offsetTables[4]
	case maxValue <= 0x2A0:
		return &offsetTables[5]
	case maxValue <= 0x3E8:
		return &offsetTables[6]
	case maxValue <= 0xA80:
		return &offsetTables[7]
	case maxValue <= 0x1500:
		return &offsetTables[8]
	case maxValue <= 0x2A00:
		return &offsetTables[9]
	case maxValue <= 0x5400:
		return &offsetTables[10]
	case maxValue <= 0xA800:
		return &offsetTables[11]
	case maxValue <= 0x11170:
		return &offsetTables[12]
	case maxValue <= 0x2A000:
		return &offsetTables[13]
	default:
		return &offsetTables[14]
	}
}

// readOffset decodes one back-reference offset against the table chosen by
// the current output length.
func readOffset(maxValue uint32, r *bitReader) (uint32, error) {
	t := tableForMax(maxValue)

	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	if b == 0 {
		v, err := r.read(t.firstBits)
		return v + 1, err
	}
	b, err = r.read(1)
	if err != nil {
		return 0, err
	}
	if b == 0 {
		v, err := r.read(t.secondBits)
		return v + t.secondBase, err
	}
	for _, rung := range t.rungs {
		if maxValue <= rung.max {
			v, err := r.read(rung.bits)
			return v + t.thirdBase, err
		}
	}
	return 0, errcode.Wrap(errcode.InvalidInput, ErrBadStream)
}

// DecompressSystem3 decodes the System 3 variable-length-code format: each
// command is either a literal run of 1-63 raw bytes or a back-reference
// whose length and offset are staircase-coded. After a literal run shorter
// than 63 bytes the next command must be a back-reference. Back-references
// may overlap the write point to form repeating patterns, so the copy runs
// byte at a time.
func DecompressSystem3(h *Header, body []byte) ([]byte, error) {
	r := &bitReader{data: body}
	out := make([]byte, 0, h.DecompressedSize)

	streamBlockAllowed := true
	for uint32(len(out)) < h.DecompressedSize {
		before := len(out)

		backrefBytes, err := decodeInt0To2042(r)
		if err != nil {
			return nil, err
		}
		var streamBytes, backrefOffset uint32

		if backrefBytes == 0 && streamBlockAllowed {
			streamBytes, err = decodeInt1To63(r)
			if err != nil {
				return nil, err
			}
			streamBlockAllowed = streamBytes >= 0x3F
		} else {
			backrefBytes += 2
			if !streamBlockAllowed {
				backrefBytes++
			}
			streamBlockAllowed = true
			backrefOffset, err = readOffset(uint32(before), r)
			if err != nil {
				return nil, err
			}
		}

		if backrefBytes == 0 {
			for ; streamBytes > 0; streamBytes-- {
				v, err := r.read(8)
				if err != nil {
					return nil, err
				}
				out = append(out, uint8(v))
			}
		} else {
			if backrefOffset > uint32(len(out)) {
				return nil, errcode.Wrap(errcode.InvalidInput, ErrBackreference)
			}
			for ; backrefBytes > 0; backrefBytes-- {
				out = append(out, out[uint32(len(out))-backrefOffset])
			}
		}

		if len(out) <= before {
			return nil, errcode.Wrap(errcode.LogicError, ErrNoProgress)
		}
	}
	return out, nil
}

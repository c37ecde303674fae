// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

// decodePattern expands a pattern-compressed section payload, per spec
// §4.4's "Pattern VM". It is a pure function of its input: identical inputs
// always produce identical outputs of the declared unpacked length.
func decodePattern(src []byte, unpackedSize int) ([]byte, error) {
	out := make([]byte, 0, unpackedSize)
	pos := 0

	readVarint := func() (uint32, error) {
		var v uint32
		for {
			if pos >= len(src) {
				return 0, ErrTruncated
			}
			b := src[pos]
			pos++
			v = (v << 7) | uint32(b&0x7F)
			if b&0x80 == 0 {
				return v, nil
			}
		}
	}

	readCount := func(lowBits uint8) (uint32, error) {
		if lowBits != 0 {
			return uint32(lowBits), nil
		}
		return readVarint()
	}

	for pos < len(src) && len(out) < unpackedSize {
		opByte := src[pos]
		pos++
		op := opByte >> 5
		lowBits := opByte & 0x1F

		count, err := readCount(lowBits)
		if err != nil {
			return nil, err
		}

		switch op {
		case 0: // append count zero bytes
			out = append(out, make([]byte, count)...)

		case 1: // append count literal bytes from the input
			if pos+int(count) > len(src) {
				return nil, ErrTruncated
			}
			out = append(out, src[pos:pos+int(count)]...)
			pos += int(count)

		case 2: // append a count-byte block, repeated (varint+1) times
			if pos+int(count) > len(src) {
				return nil, ErrTruncated
			}
			block := src[pos : pos+int(count)]
			pos += int(count)
			repeat, err := readVarint()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i <= repeat; i++ {
				out = append(out, block...)
			}

		case 3: // interleave: common block then (custom, common) * n
			if pos+int(count) > len(src) {
				return nil, ErrTruncated
			}
			common := src[pos : pos+int(count)]
			pos += int(count)
			customSize, err := readVarint()
			if err != nil {
				return nil, err
			}
			numCustom, err := readVarint()
			if err != nil {
				return nil, err
			}
			out = append(out, common...)
			for i := uint32(0); i < numCustom; i++ {
				if pos+int(customSize) > len(src) {
					return nil, ErrTruncated
				}
				out = append(out, src[pos:pos+int(customSize)]...)
				pos += int(customSize)
				out = append(out, common...)
			}

		case 4: // like op 3 but "common" is implicit zeroes of length count
			customSize, err := readVarint()
			if err != nil {
				return nil, err
			}
			numCustom, err := readVarint()
			if err != nil {
				return nil, err
			}
			zeros := make([]byte, count)
			out = append(out, zeros...)
			for i := uint32(0); i < numCustom; i++ {
				if pos+int(customSize) > len(src) {
					return nil, ErrTruncated
				}
				out = append(out, src[pos:pos+int(customSize)]...)
				pos += int(customSize)
				out = append(out, zeros...)
			}

		default:
			return nil, ErrInvalidPattern
		}
	}

	if len(out) > unpackedSize {
		out = out[:unpackedSize]
	} else if len(out) < unpackedSize {
		out = append(out, make([]byte, unpackedSize-len(out))...)
	}
	return out, nil
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"encoding/binary"
	"errors"

	"github.com/saferwall/macres/errcode"
)

// HeaderMagic opens every compressed resource.
const HeaderMagic = 0xA89F6572

// attrCompressed is bit 0 of the header's attribute byte.
const attrCompressed = 0x01

// minHeaderSize is the smallest buffer that can carry a compressed-resource
// header: the 12 fixed bytes plus the 4-byte version-dependent tail.
const minHeaderSize = 16

// ErrShortHeader is returned when a buffer detected as compressed is too
// small to carry its own declared header.
var ErrShortHeader = errors.New("dcmp: compressed resource header truncated")

// Header is the fixed preamble of a compressed resource. The version
// nibble selects which of the two trailing layouts was read, per spec §3.
type Header struct {
	Magic            uint32
	HeaderSize       uint16
	HeaderVersion    uint8
	Attributes       uint8
	DecompressedSize uint32

	// Version 8 layout.
	WorkingBufferFractionalSize uint8
	OutputExtraBytes            uint16

	// DcmpResourceID selects the decompressor; IDs 0-3 are the built-in
	// native decoders.
	DcmpResourceID int16

	// Param carries the two free parameter bytes of the version 9 layout.
	// Their semantics differ per user decoder; they are recorded verbatim
	// and passed through to the emulated decoder. Among the native
	// decoders only System 2 reads them.
	Param [2]byte
}

// Version9 reports whether the header uses the version 9 trailing layout.
func (h *Header) Version9() bool { return h.HeaderVersion&1 != 0 }

// BodyOffset is the offset of the compressed command stream within the
// resource: the declared header size, or the full header span when the
// resource declares none.
func (h *Header) BodyOffset() int {
	if h.HeaderSize >= 12 {
		return int(h.HeaderSize)
	}
	return minHeaderSize
}

// IsCompressed reports whether data starts with a compressed-resource
// header: at least 16 bytes, the magic word, and the compressed attribute
// bit, per spec §4.5's header detection.
func IsCompressed(data []byte) bool {
	if len(data) < minHeaderSize {
		return false
	}
	return binary.BigEndian.Uint32(data[0:4]) == HeaderMagic &&
		data[7]&attrCompressed != 0
}

// ParseHeader reads the compressed-resource header at the front of data.
// Callers should gate on IsCompressed first.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < minHeaderSize {
		return nil, errcode.Wrap(errcode.InvalidInput, ErrShortHeader)
	}
	h := &Header{
		Magic:            binary.BigEndian.Uint32(data[0:4]),
		HeaderSize:       binary.BigEndian.Uint16(data[4:6]),
		HeaderVersion:    data[6],
		Attributes:       data[7],
		DecompressedSize: binary.BigEndian.Uint32(data[8:12]),
	}
	// A resource may declare a 12-byte header, in which case the trailing
	// union is absent and the decompressor ID defaults to 0 (System 0).
	if h.HeaderSize >= 12 && h.HeaderSize < minHeaderSize {
		return h, nil
	}
	if h.Version9() {
		h.DcmpResourceID = int16(binary.BigEndian.Uint16(data[12:14]))
		h.OutputExtraBytes = binary.BigEndian.Uint16(data[14:16])
		if h.HeaderSize >= 18 && len(data) >= 18 {
			h.Param[0] = data[16]
			h.Param[1] = data[17]
		}
	} else {
		h.WorkingBufferFractionalSize = data[12]
		h.OutputExtraBytes = uint16(data[13])
		h.DcmpResourceID = int16(binary.BigEndian.Uint16(data[14:16]))
	}
	if int(h.HeaderSize) > len(data) {
		return nil, errcode.Wrap(errcode.InvalidInput, ErrShortHeader)
	}
	return h, nil
}

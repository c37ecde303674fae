// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package text decodes the Mac OS Roman strings that classic resource
// forks carry: resource names, STR# entries, and the Pascal strings
// embedded in PEFF diagnostics.
package text

import (
	"errors"

	"golang.org/x/text/encoding/charmap"
)

// ErrShortPascalString is returned when a Pascal string's declared length
// exceeds the buffer.
var ErrShortPascalString = errors.New("text: pascal string length exceeds buffer")

// DecodeMacRoman converts Mac OS Roman bytes to UTF-8.
func DecodeMacRoman(b []byte) (string, error) {
	return charmap.Macintosh.NewDecoder().String(string(b))
}

// EncodeMacRoman converts a UTF-8 string to Mac OS Roman bytes. A character
// outside the repertoire makes the encoder fail, and that error is returned.
func EncodeMacRoman(s string) ([]byte, error) {
	out, err := charmap.Macintosh.NewEncoder().String(s)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// DecodePascalString reads a length-prefixed Mac OS Roman string from the
// front of b, returning the decoded string and the number of bytes
// consumed (length byte included).
func DecodePascalString(b []byte) (string, int, error) {
	if len(b) == 0 {
		return "", 0, ErrShortPascalString
	}
	n := int(b[0])
	if 1+n > len(b) {
		return "", 0, ErrShortPascalString
	}
	s, err := DecodeMacRoman(b[1 : 1+n])
	if err != nil {
		return "", 0, err
	}
	return s, 1 + n, nil
}

//go:build gofuzz

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

func Fuzz(data []byte) int {
	if _, err := Decompress(data, 0, nil, nil); err != nil {
		return 0
	}
	return 1
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// New parses a PEFF container straight off disk. The file is memory-mapped
// instead of read into a buffer; callers must Close the returned File to
// release the mapping. For an in-memory buffer use NewFile.
func New(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	// Memory map the file instead of using read/write.
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	pf, err := NewFile(data)
	if err != nil {
		_ = data.Unmap()
		f.Close()
		return nil, err
	}
	pf.f = f
	pf.mapped = data
	return pf, nil
}

// Close releases the memory mapping held by a File returned from New. It is
// a no-op for files parsed from an in-memory buffer.
func (f *File) Close() error {
	if f.mapped != nil {
		_ = f.mapped.Unmap()
		f.mapped = nil
	}
	if f.f != nil {
		err := f.f.Close()
		f.f = nil
		return err
	}
	return nil
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package memory

import "encoding/binary"

// ReadU8 reads an unsigned byte at addr.
func (c *Context) ReadU8(addr Addr) (uint8, error) {
	b, err := c.At(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadS8 reads a signed byte at addr.
func (c *Context) ReadS8(addr Addr) (int8, error) {
	v, err := c.ReadU8(addr)
	return int8(v), err
}

// ReadU16 reads a big-endian guest uint16 at addr, byte-swapped from host order.
func (c *Context) ReadU16(addr Addr) (uint16, error) {
	b, err := c.At(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadS16 reads a big-endian guest int16 at addr.
func (c *Context) ReadS16(addr Addr) (int16, error) {
	v, err := c.ReadU16(addr)
	return int16(v), err
}

// ReadU32 reads a big-endian guest uint32 at addr, byte-swapped from host order.
func (c *Context) ReadU32(addr Addr) (uint32, error) {
	b, err := c.At(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadS32 reads a big-endian guest int32 at addr.
func (c *Context) ReadS32(addr Addr) (int32, error) {
	v, err := c.ReadU32(addr)
	return int32(v), err
}

// WriteU8 writes an unsigned byte at addr.
func (c *Context) WriteU8(addr Addr, v uint8) error {
	b, err := c.At(addr, 1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

// WriteS8 writes a signed byte at addr.
func (c *Context) WriteS8(addr Addr, v int8) error {
	return c.WriteU8(addr, uint8(v))
}

// WriteU16 writes v at addr as a big-endian guest uint16.
func (c *Context) WriteU16(addr Addr, v uint16) error {
	b, err := c.At(addr, 2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b, v)
	return nil
}

// WriteS16 writes v at addr as a big-endian guest int16.
func (c *Context) WriteS16(addr Addr, v int16) error {
	return c.WriteU16(addr, uint16(v))
}

// WriteU32 writes v at addr as a big-endian guest uint32.
func (c *Context) WriteU32(addr Addr, v uint32) error {
	b, err := c.At(addr, 4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b, v)
	return nil
}

// WriteS32 writes v at addr as a big-endian guest int32.
func (c *Context) WriteS32(addr Addr, v int32) error {
	return c.WriteU32(addr, uint32(v))
}

// ReadBytes copies n bytes starting at addr out of guest memory.
func (c *Context) ReadBytes(addr Addr, n uint32) ([]byte, error) {
	b, err := c.At(addr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// WriteBytes copies data into guest memory starting at addr.
func (c *Context) WriteBytes(addr Addr, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	b, err := c.At(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

// Zero clears n bytes of guest memory starting at addr.
func (c *Context) Zero(addr Addr, n uint32) error {
	if n == 0 {
		return nil
	}
	b, err := c.At(addr, n)
	if err != nil {
		return err
	}
	for i := range b {
		b[i] = 0
	}
	return nil
}

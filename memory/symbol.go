// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package memory

import "github.com/saferwall/macres/errcode"

// SetSymbolAddr binds name to addr with insert-once semantics. Redefining an
// existing name is a fatal error, per spec §3.
//
// The PEFF loader stores imported symbols as "library:symbol" and sections
// as "library:section:index"; this package treats names as opaque byte
// strings and has no opinion on that grammar.
func (c *Context) SetSymbolAddr(name string, addr Addr) error {
	if _, exists := c.symbols[name]; exists {
		return errcode.Wrap(errcode.LogicError, ErrSymbolRedefined)
	}
	c.symbols[name] = addr
	return nil
}

// GetSymbolAddr looks up name, failing if it was never bound.
func (c *Context) GetSymbolAddr(name string) (Addr, error) {
	addr, ok := c.symbols[name]
	if !ok {
		return 0, errcode.Wrap(errcode.OutOfRange, ErrSymbolNotFound)
	}
	return addr, nil
}

// HasSymbol reports whether name is bound, without failing if it is not.
func (c *Context) HasSymbol(name string) bool {
	_, ok := c.symbols[name]
	return ok
}

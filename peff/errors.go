// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import "errors"

// Errors returned while parsing or loading a PEFF container.
var (
	ErrInvalidMagic       = errors.New("peff: invalid container magic")
	ErrUnknownArch        = errors.New("peff: unknown architecture tag")
	ErrUnsupportedVersion = errors.New("peff: unsupported format version")
	ErrTruncated          = errors.New("peff: container truncated")
	ErrInvalidPattern     = errors.New("peff: invalid pattern opcode")
	ErrInvalidReloc       = errors.New("peff: invalid relocation subcommand")
	ErrRelocBeforeSize    = errors.New("peff: relocation references a section not yet sized")
	ErrDuplicateReloc     = errors.New("peff: section has multiple relocation programs")
	ErrSectionSize        = errors.New("peff: section total size smaller than data size")
	ErrExportHashMismatch = errors.New("peff: export hash chain count mismatch")
	ErrNoLoaderSection    = errors.New("peff: container has no loader section")
	ErrUnresolvedImport   = errors.New("peff: unresolved import symbol")
	ErrSectionIndex       = errors.New("peff: section index out of range")
)

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package dcmp implements the Mac OS compressed-resource pipeline: it
// detects the standard 0xA89F6572 header, decompresses System 0/1/2/3
// payloads natively, and falls back to executing a user-supplied 'ncmp'
// PowerPC decompressor through the ppc32 emulator against a guest
// memory.Context.
package dcmp

import (
	"errors"
	"os"

	"github.com/saferwall/macres/log"
)

// Flags select decompression behavior, per spec §4.5.
type Flags uint32

const (
	// Disabled returns the compressed bytes as-is.
	Disabled Flags = 1 << iota
	// Verbose prints state and info while decompressing.
	Verbose
	// TraceExecution logs the address and disassembly of each instruction
	// when running ncmp resources.
	TraceExecution
	// DebugExecution dumps the register file once per emulated cycle.
	DebugExecution
	// SkipFileDcmp ignores 'dcmp' resources from the context file.
	SkipFileDcmp
	// SkipFileNcmp ignores 'ncmp' resources from the context file.
	SkipFileNcmp
	// SkipSystemDcmp ignores 'dcmp' resources from the system file.
	SkipSystemDcmp
	// SkipSystemNcmp ignores 'ncmp' resources from the system file.
	SkipSystemNcmp
	// SkipNative disables the built-in decoders and forces emulation even
	// for the standard IDs.
	SkipNative
	// Retry moves on to the next candidate decoder source when one fails,
	// instead of returning that failure.
	Retry
	// StrictMemory makes the guest memory context refuse unmapped accesses.
	StrictMemory
)

// ResourceTypeDcmp and ResourceTypeNcmp name the resource types that carry
// 68K and PowerPC decompressor payloads.
const (
	ResourceTypeDcmp = "dcmp"
	ResourceTypeNcmp = "ncmp"
)

// ContextResourceFile is the minimal lookup surface the pipeline needs from
// a resource file: user-defined decompressors are found by (type, id). It
// is consumed here, never implemented; the full ResourceFile index parser
// sits above this package.
type ContextResourceFile interface {
	Lookup(resType string, id int16) ([]byte, bool)
}

// Errors returned by the decompression pipeline.
var (
	// ErrNoDecompressor is returned when no candidate source supplies a
	// decoder for the header's resource ID.
	ErrNoDecompressor = errors.New("dcmp: no decompressor found for resource id")

	// ErrBadStream is returned for a malformed native decoder command stream.
	ErrBadStream = errors.New("dcmp: malformed compressed stream")

	// ErrBackreference is returned when a System 3 back-reference points
	// before the beginning of the output.
	ErrBackreference = errors.New("dcmp: backreference beyond beginning of output")

	// ErrNoProgress is returned when a decoder command produced no output,
	// which would loop forever.
	ErrNoProgress = errors.New("dcmp: decompression did not advance")

	// Err68KUnsupported is returned when the only candidate decoder is a
	// 68K 'dcmp' resource; 68K emulation is out of scope for this pipeline.
	Err68KUnsupported = errors.New("dcmp: 68K decompressors are not supported")

	// ErrNoEntryPoint is returned when an ncmp container exports no main
	// entry point.
	ErrNoEntryPoint = errors.New("dcmp: decompressor has no main entry point")
)

// Pipeline decompresses resource buffers. The zero value is usable; Flags,
// ContextFile, SystemFile, and Logger refine behavior.
type Pipeline struct {
	Flags Flags

	// ContextFile supplies per-file 'dcmp'/'ncmp' decompressors; SystemFile
	// supplies the system ones. Either may be nil.
	ContextFile ContextResourceFile
	SystemFile  ContextResourceFile

	Logger *log.Helper
}

func (p *Pipeline) logger() *log.Helper {
	if p.Logger != nil {
		return p.Logger
	}
	level := log.LevelError
	if p.Flags&(Verbose|TraceExecution|DebugExecution) != 0 {
		level = log.LevelDebug
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout),
		log.FilterLevel(level)))
}

// Decompress is a convenience wrapper over a one-shot Pipeline.
func Decompress(data []byte, flags Flags, contextFile, systemFile ContextResourceFile) ([]byte, error) {
	p := &Pipeline{Flags: flags, ContextFile: contextFile, SystemFile: systemFile}
	return p.Decompress(data)
}

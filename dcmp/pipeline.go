// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dcmp

import (
	"fmt"

	"github.com/saferwall/macres/errcode"
)

// Decompress returns the decompressed bytes of a resource buffer. A buffer
// without the compressed-resource header is returned unchanged. The built-in
// System 0/1/2/3 decoders handle the conventional IDs; any other ID (or any
// ID under SkipNative) is resolved to a 'dcmp'/'ncmp' resource from the
// context or system file. An 'ncmp' resource is executed through the ppc32
// emulator; a 'dcmp' (68K) resource fails with Err68KUnsupported.
func (p *Pipeline) Decompress(data []byte) ([]byte, error) {
	if p.Flags&Disabled != 0 {
		return data, nil
	}
	if !IsCompressed(data) {
		return data, nil
	}

	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[h.BodyOffset():]

	if p.Flags&Verbose != 0 {
		p.logger().Infof("compressed resource: id=%d version=%d size=%d",
			h.DcmpResourceID, h.HeaderVersion, h.DecompressedSize)
	}

	if p.Flags&SkipNative == 0 {
		switch h.DcmpResourceID {
		case 0:
			return DecompressSystem0(h, body)
		case 1:
			return DecompressSystem1(h, body)
		case 2:
			return DecompressSystem2(h, body)
		case 3:
			return DecompressSystem3(h, body)
		}
	}

	return p.decompressWithResource(h, body)
}

// decoderSource names one place a user decompressor can come from.
type decoderSource struct {
	file    ContextResourceFile
	resType string
	skip    bool
}

// decompressWithResource walks the candidate decoder sources in the fixed
// order file dcmp, file ncmp, system dcmp, system ncmp. Without Retry the
// first failing candidate decides the outcome; with Retry the pipeline
// moves on to the next source, per spec §7.
func (p *Pipeline) decompressWithResource(h *Header, body []byte) ([]byte, error) {
	sources := []decoderSource{
		{p.ContextFile, ResourceTypeDcmp, p.Flags&SkipFileDcmp != 0},
		{p.ContextFile, ResourceTypeNcmp, p.Flags&SkipFileNcmp != 0},
		{p.SystemFile, ResourceTypeDcmp, p.Flags&SkipSystemDcmp != 0},
		{p.SystemFile, ResourceTypeNcmp, p.Flags&SkipSystemNcmp != 0},
	}

	var lastErr error
	for _, src := range sources {
		if src.skip || src.file == nil {
			continue
		}
		payload, ok := src.file.Lookup(src.resType, h.DcmpResourceID)
		if !ok {
			continue
		}

		var out []byte
		var err error
		if src.resType == ResourceTypeDcmp {
			// The 68K emulator is architecturally independent of this
			// pipeline and not wired in; a dcmp-only decoder cannot run.
			err = errcode.Wrap(errcode.Unimplemented, Err68KUnsupported)
		} else {
			out, err = p.runNcmp(h, body, payload)
		}
		if err == nil {
			return out, nil
		}
		if p.Flags&Verbose != 0 {
			p.logger().Warnf("decoder %s %d failed: %v", src.resType, h.DcmpResourceID, err)
		}
		lastErr = err
		if p.Flags&Retry == 0 {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errcode.Wrap(errcode.OutOfRange,
		fmt.Errorf("%w: %d", ErrNoDecompressor, h.DcmpResourceID))
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package security verifies the optional detached PKCS#7 manifests that
// accompany some re-released resource archives: the signed content is a
// digest list over the decompressed resources, letting a preservation
// pipeline prove an archive was not altered since signing.
package security

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"go.mozilla.org/pkcs7"
)

var (
	// ErrNotSigned is returned when manifest bytes do not parse as a
	// PKCS#7 SignedData structure.
	ErrNotSigned = errors.New("security: manifest is not a PKCS#7 SignedData structure")

	// ErrContentMismatch is returned when the signed digest does not match
	// the archive content.
	ErrContentMismatch = errors.New("security: manifest digest does not match content")

	// ErrNoSigners is returned for a manifest carrying no signer infos.
	ErrNoSigners = errors.New("security: manifest has no signers")
)

// ManifestInfo wraps the fields of a verified manifest a caller usually
// wants to surface.
type ManifestInfo struct {
	SignerCommonName string
	SignerIssuer     string
	Verified         bool
}

// VerifyManifest checks a detached PKCS#7 manifest against content: the
// manifest's signed payload must be the SHA-256 digest of content, and the
// signature chain must verify against the certificates embedded in the
// manifest itself.
func VerifyManifest(manifest, content []byte) (*ManifestInfo, error) {
	p7, err := pkcs7.Parse(manifest)
	if err != nil {
		return nil, ErrNotSigned
	}
	if len(p7.Signers) == 0 {
		return nil, ErrNoSigners
	}

	digest := sha256.Sum256(content)
	if !bytes.Equal(p7.Content, digest[:]) {
		return nil, ErrContentMismatch
	}

	info := &ManifestInfo{}
	if signer := p7.GetOnlySigner(); signer != nil {
		info.SignerCommonName = signer.Subject.CommonName
		info.SignerIssuer = signer.Issuer.CommonName
	}

	if err := p7.Verify(); err != nil {
		return info, err
	}
	info.Verified = true
	return info, nil
}

// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"fmt"

	"go.mozilla.org/pkcs7"
)

// tagSignature is this codec's own vendor-private custom component,
// carrying a detached PKCS#7 SignedData blob over the package's other
// component bytes. The teacher verifies Authenticode WIN_CERTIFICATE blobs
// the same way (security.go, also built on a PKCS#7 parse); there is no
// such signature convention in the real Java Card CAP format, so this tag
// is this codec's own extension, documented here rather than silently
// invented in SPEC_FULL.md.
const tagSignature ComponentTag = 128

// SignatureRecord is the parsed form of the Signature custom component.
// Verification is advisory only, per Shallow mode (§4.2): a failed or
// unparseable signature is a diagnostic, never a hard decode failure.
type SignatureRecord struct {
	RawPair
	SignerCount int      `json:"signer_count"`
	SignerSerials []string `json:"signer_serials,omitempty"`
}

func decodeSignature(blob []byte, diags *Diagnostics) *SignatureRecord {
	rec := &SignatureRecord{RawPair: rawPairFor(blob)}
	p7, err := pkcs7.Parse(blob)
	if err != nil {
		diags.Warn(DiagInvariantViolation, "Signature", "not a parseable PKCS#7 SignedData blob: %v", err)
		return rec
	}
	rec.SignerCount = len(p7.Signers)
	for _, s := range p7.Signers {
		rec.SignerSerials = append(rec.SignerSerials, fmt.Sprintf("%x", s.IssuerAndSerialNumber.SerialNumber))
	}
	return rec
}

// CustomRecord is the parsed form of any custom component other than
// Signature: this codec has no a priori knowledge of vendor-private
// component layouts, so it records the tag and leaves the bytes opaque.
type CustomRecord struct {
	RawPair
	TagU1 uint8 `json:"tag-u1"`
}

func decodeCustom(tag ComponentTag, blob []byte) *CustomRecord {
	return &CustomRecord{RawPair: rawPairFor(blob), TagU1: uint8(tag)}
}

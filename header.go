// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// headerMagic is the fixed 4-byte magic every Header component's info opens
// with.
const headerMagic uint32 = 0xDECAFFED

// HeaderRecord is the parsed form of the Header component (§3.4, §4.4).
// Field names carry the -u1/-u2/-u4 suffixes §6.2 requires so a human editor
// can locate them inside Raw.
type HeaderRecord struct {
	RawPair
	MagicU4         uint32   `json:"magic-u4"`
	MinorVersionU1  uint8    `json:"minor_version-u1"`
	MajorVersionU1  uint8    `json:"major_version-u1"`
	FlagsU1         uint8    `json:"flags-u1"`
	Flags           []string `json:"flags"`
	PackageMinorU1  uint8    `json:"package_minor_version-u1"`
	PackageMajorU1  uint8    `json:"package_major_version-u1"`
	PackageAID      string   `json:"package_aid"`
	PackageNameUTF8 string   `json:"package_name,omitempty"`
}

// decodeHeader parses a Header component's info bytes.
func decodeHeader(blob []byte, diags *Diagnostics) (*HeaderRecord, error) {
	r := newReader(blob)
	rec := &HeaderRecord{RawPair: rawPairFor(blob)}

	magic, err := r.u4()
	if err != nil {
		return nil, fmt.Errorf("header: magic: %w", err)
	}
	rec.MagicU4 = magic
	if magic != headerMagic {
		diags.Warn(DiagInvariantViolation, "Header", "magic is %#08x, want %#08x", magic, headerMagic)
	}

	if rec.MinorVersionU1, err = r.u1(); err != nil {
		return nil, fmt.Errorf("header: minor_version: %w", err)
	}
	if rec.MajorVersionU1, err = r.u1(); err != nil {
		return nil, fmt.Errorf("header: major_version: %w", err)
	}
	v := FormatVersion{Major: rec.MajorVersionU1, Minor: rec.MinorVersionU1}
	if !v.Supported() {
		diags.Warn(DiagInvariantViolation, "Header", "unsupported format version %s", v)
	}

	flags, err := r.u1()
	if err != nil {
		return nil, fmt.Errorf("header: flags: %w", err)
	}
	rec.FlagsU1 = flags
	rec.Flags = HeaderFlag(flags).Names()

	if rec.PackageMinorU1, err = r.u1(); err != nil {
		return nil, fmt.Errorf("header: package_minor_version: %w", err)
	}
	if rec.PackageMajorU1, err = r.u1(); err != nil {
		return nil, fmt.Errorf("header: package_major_version: %w", err)
	}
	aid, err := r.aid()
	if err != nil {
		return nil, fmt.Errorf("header: package AID: %w", err)
	}
	if len(aid) < 5 || len(aid) > 16 {
		diags.Warn(DiagInvariantViolation, "Header", "package AID length %d outside [5,16]", len(aid))
	}
	rec.PackageAID = encodeHex(aid)

	// package_name is optional and, per the real format, only present for
	// 2.2+ when the low bit of a following length byte is set; this codec
	// treats any bytes left in the blob after the fixed fields as the
	// package name (length-prefixed), tolerating its total absence.
	if r.remaining() > 0 {
		name, err := r.name()
		if err != nil {
			diags.Warn(DiagTagMismatch, "Header", "trailing bytes present but not a well-formed package name: %v", err)
		} else {
			rec.PackageNameUTF8 = name
		}
	}
	return rec, nil
}

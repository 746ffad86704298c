// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "testing"

func u4be(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func buildHeaderBlob(magic uint32, minor, major, flags uint8, aid []byte) []byte {
	var blob []byte
	blob = append(blob, u4be(magic)...)
	blob = append(blob, minor, major, flags)
	blob = append(blob, 0x00, 0x01) // package minor/major version
	blob = append(blob, byte(len(aid)))
	blob = append(blob, aid...)
	return blob
}

func TestDecodeHeaderWellFormed(t *testing.T) {
	aid := []byte{0x44, 0x44, 0x44, 0x44, 0x44}
	blob := buildHeaderBlob(headerMagic, 1, 2, byte(FlagInt), aid)

	var diags Diagnostics
	rec, err := decodeHeader(blob, &diags)
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags.All())
	}
	if rec.MagicU4 != headerMagic {
		t.Errorf("MagicU4 = %#x, want %#x", rec.MagicU4, headerMagic)
	}
	if rec.MinorVersionU1 != 1 || rec.MajorVersionU1 != 2 {
		t.Errorf("version = %d.%d, want 1.2", rec.MinorVersionU1, rec.MajorVersionU1)
	}
	if rec.PackageAID != encodeHex(aid) {
		t.Errorf("PackageAID = %q, want %q", rec.PackageAID, encodeHex(aid))
	}
	wantFlags := HeaderFlag(byte(FlagInt)).Names()
	if len(rec.Flags) != len(wantFlags) {
		t.Errorf("Flags = %v, want %v", rec.Flags, wantFlags)
	}
}

// TestDecodeHeaderBadMagicWarns covers scenario S1 (§8): a header with the
// wrong magic value still decodes, carrying an InvariantViolation warning
// rather than failing outright.
func TestDecodeHeaderBadMagicWarns(t *testing.T) {
	aid := []byte{0x44, 0x44, 0x44, 0x44, 0x44}
	blob := buildHeaderBlob(0x12345678, 1, 2, 0x00, aid)

	var diags Diagnostics
	if _, err := decodeHeader(blob, &diags); err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation && d.Component == "Header" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an InvariantViolation warning for the bad magic, got %+v", diags.All())
	}
}

func TestDecodeHeaderUnsupportedVersionWarns(t *testing.T) {
	aid := []byte{0x44, 0x44, 0x44, 0x44, 0x44}
	blob := buildHeaderBlob(headerMagic, 9, 9, 0x00, aid)

	var diags Diagnostics
	if _, err := decodeHeader(blob, &diags); err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning for the unsupported version, got %+v", diags.All())
	}
}

func TestDecodeHeaderAIDLengthOutOfRangeWarns(t *testing.T) {
	aid := []byte{0x01, 0x02, 0x03} // too short: [5,16] required
	blob := buildHeaderBlob(headerMagic, 1, 2, 0x00, aid)

	var diags Diagnostics
	if _, err := decodeHeader(blob, &diags); err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning for the out-of-range AID length, got %+v", diags.All())
	}
}

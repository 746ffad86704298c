// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"bytes"
	"errors"
	"testing"
)

// buildMinimalExpBytes assembles a small, well-formed EXP file: magic,
// version 2.3, a constant pool containing exactly one Package entry whose
// AID is 44 44 44 44 44, this_package pointing at it, an empty
// referenced-packages list (2.3+ requires the count byte), and no classes.
// This mirrors the shape of testable scenario S6 without depending on a
// vendored helloworldPackage_2.3.exp fixture.
func buildMinimalExpBytes() []byte {
	var b []byte
	b = append(b, 0x00, 0xFA, 0xCA, 0xDE) // magic
	b = append(b, 0x03, 0x02)             // minor=3, major=2 -> Version23
	b = append(b, u2be(1)...)             // constant_pool_count = 1

	// Package constant pool entry: tag, aid (len-prefixed), minor, major.
	b = append(b, byte(ExpTagPackage))
	b = append(b, 0x05, 0x44, 0x44, 0x44, 0x44, 0x44)
	b = append(b, 0x00, 0x01) // minor=0, major=1

	b = append(b, u2be(0)...)    // this_package = index 0
	b = append(b, 0x00)          // referenced_package_count = 0 (2.3+)
	b = append(b, u2be(0)...)    // class_count = 0
	return b
}

func TestExpDecodePackageConstantPoolEntry(t *testing.T) {
	data := buildMinimalExpBytes()
	ef, err := OpenExpBytes(data, nil)
	if err != nil {
		t.Fatalf("OpenExpBytes failed: %v", err)
	}
	defer ef.Close()

	if ef.MajorVersionU1 != 2 || ef.MinorVersionU1 != 3 {
		t.Errorf("version = %d.%d, want 2.3", ef.MajorVersionU1, ef.MinorVersionU1)
	}
	if len(ef.ConstantPool) != 1 {
		t.Fatalf("got %d constant pool entries, want 1", len(ef.ConstantPool))
	}
	entry := ef.ConstantPool[0]
	if entry.Kind != "Package" {
		t.Errorf("entry.Kind = %q, want %q", entry.Kind, "Package")
	}
	if entry.PackageAID != "4444444444" {
		t.Errorf("entry.PackageAID = %q, want %q", entry.PackageAID, "4444444444")
	}
	if ef.ThisPackageU2 != 0 {
		t.Errorf("this_package = %d, want 0", ef.ThisPackageU2)
	}
	if len(ef.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %+v", ef.Diagnostics)
	}
}

// TestOpenExpBytesRejectsUnsupportedVersion mirrors the CAP coordinator's
// version gate: the referenced-packages read further down ExpFile.decode
// branches on version.AtLeast(Version23), so an unrecognized
// version must abort the decode rather than continue against a dispatch
// table it doesn't actually match.
func TestOpenExpBytesRejectsUnsupportedVersion(t *testing.T) {
	var b []byte
	b = append(b, 0x00, 0xFA, 0xCA, 0xDE) // magic
	b = append(b, 0x09, 0x09)             // minor=9, major=9: unrecognized
	b = append(b, u2be(0)...)             // constant_pool_count = 0
	b = append(b, u2be(0)...)             // this_package

	_, err := OpenExpBytes(b, nil)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("OpenExpBytes error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestExpEncodeRoundTrip(t *testing.T) {
	data := buildMinimalExpBytes()
	ef, err := OpenExpBytes(data, nil)
	if err != nil {
		t.Fatalf("OpenExpBytes failed: %v", err)
	}
	defer ef.Close()

	ef.RawPair = RawPair{}
	reencoded, err := ef.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(reencoded, data) {
		t.Errorf("re-encoded EXP bytes differ: got %x, want %x", reencoded, data)
	}
}

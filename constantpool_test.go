// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "testing"

func TestParseClassRefRoundTripsExternal(t *testing.T) {
	c := classRef{External: true, PackageToken: 0x0a, ClassToken: 0x1b}
	rendered := renderClassRef(c)
	got, err := parseClassRef(rendered)
	if err != nil {
		t.Fatalf("parseClassRef(%q) failed: %v", rendered, err)
	}
	if got != c {
		t.Errorf("parseClassRef(%q) = %+v, want %+v", rendered, got, c)
	}
}

func TestParseClassRefRoundTripsInternal(t *testing.T) {
	c := classRef{InternalOffset: 0x00ff}
	rendered := renderClassRef(c)
	got, err := parseClassRef(rendered)
	if err != nil {
		t.Fatalf("parseClassRef(%q) failed: %v", rendered, err)
	}
	if got != c {
		t.Errorf("parseClassRef(%q) = %+v, want %+v", rendered, got, c)
	}
}

func TestParseClassRefRejectsUnrecognizedForm(t *testing.T) {
	if _, err := parseClassRef("bogus:form"); err == nil {
		t.Error("expected an error for an unrecognized class_ref form, got nil")
	}
}

// TestConstantPoolEntryZeroIsClassrefWarns covers the §4.5 invariant that
// entries[0], if a Classref, must never be used as a catch_type.
func TestConstantPoolEntryZeroIsClassrefWarns(t *testing.T) {
	var blob []byte
	blob = append(blob, u2be(1)...) // count = 1
	blob = append(blob, byte(CPClassref))
	blob = append(blob, 0x00, 0x00) // internal class_ref, offset 0
	blob = append(blob, 0x00)       // token

	var diags Diagnostics
	rec, err := decodeConstantPool(blob, &diags)
	if err != nil {
		t.Fatalf("decodeConstantPool failed: %v", err)
	}
	if len(rec.Entries) != 1 || rec.Entries[0].Kind != "Classref" {
		t.Fatalf("unexpected entries: %+v", rec.Entries)
	}
	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation && d.Component == "ConstantPool" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an InvariantViolation warning for entries[0] being a Classref, got %+v", diags.All())
	}
}

func TestConstantPoolEntryZeroNonClassrefNoWarning(t *testing.T) {
	var blob []byte
	blob = append(blob, u2be(1)...)
	blob = append(blob, byte(CPStaticMethodref))
	blob = append(blob, 0x00, 0x00)
	blob = append(blob, 0x00)

	var diags Diagnostics
	if _, err := decodeConstantPool(blob, &diags); err != nil {
		t.Fatalf("decodeConstantPool failed: %v", err)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags.All())
	}
}

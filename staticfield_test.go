// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "testing"

// TestStaticFieldArithmeticInvariantHolds covers testable property 9 (§8):
// image_size = 2*reference_count + default_value_count + non_default_value_count.
func TestStaticFieldArithmeticInvariantHolds(t *testing.T) {
	var blob []byte
	blob = append(blob, u2be(7)...) // image_size = 2*1 + 2 + 3 = 7
	blob = append(blob, u2be(1)...) // reference_count
	blob = append(blob, u2be(0)...) // array_init_count
	blob = append(blob, u2be(2)...) // default_value_count
	blob = append(blob, u2be(3)...) // non_default_value_count
	blob = append(blob, 0xAA, 0xBB, 0xCC)

	var diags Diagnostics
	if _, err := decodeStaticField(blob, &diags); err != nil {
		t.Fatalf("decodeStaticField failed: %v", err)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics when the arithmetic invariant holds, got %+v", diags.All())
	}
}

func TestStaticFieldArithmeticInvariantViolationWarns(t *testing.T) {
	var blob []byte
	blob = append(blob, u2be(99)...) // wrong on purpose
	blob = append(blob, u2be(1)...)
	blob = append(blob, u2be(0)...)
	blob = append(blob, u2be(2)...)
	blob = append(blob, u2be(3)...)
	blob = append(blob, 0xAA, 0xBB, 0xCC)

	var diags Diagnostics
	if _, err := decodeStaticField(blob, &diags); err != nil {
		t.Fatalf("decodeStaticField failed: %v", err)
	}
	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation && d.Component == "StaticField" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an InvariantViolation warning for the arithmetic mismatch, got %+v", diags.All())
	}
}

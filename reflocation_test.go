// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "testing"

// TestRefLocationDeltaOffsetsMonotone covers testable property 8 (§8):
// reconstructed absolute offsets are strictly increasing within each list,
// reconstructed from stored deltas.
func TestRefLocationDeltaOffsetsMonotone(t *testing.T) {
	// offsets_1_byte: deltas {2, 3, 0} -> absolute {2, 5, 5}; the trailing
	// repeat is non-monotone and should produce a warning.
	var blob []byte
	blob = append(blob, u2be(3)...)
	blob = append(blob, 2, 3, 0)
	blob = append(blob, u2be(0)...) // offsets_2_byte: empty

	var diags Diagnostics
	rec, err := decodeRefLocation(blob, &diags)
	if err != nil {
		t.Fatalf("decodeRefLocation failed: %v", err)
	}

	wantAbs := []uint16{2, 5, 5}
	if len(rec.AbsoluteOffsets1Byte) != len(wantAbs) {
		t.Fatalf("got %d absolute offsets, want %d", len(rec.AbsoluteOffsets1Byte), len(wantAbs))
	}
	for i, v := range wantAbs {
		if rec.AbsoluteOffsets1Byte[i] != v {
			t.Errorf("offsets_1_byte[%d] = %d, want %d", i, rec.AbsoluteOffsets1Byte[i], v)
		}
	}

	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an InvariantViolation warning for the non-monotone repeat, got %+v", diags.All())
	}
}

func TestRefLocationStrictlyIncreasingHasNoWarning(t *testing.T) {
	var blob []byte
	blob = append(blob, u2be(3)...)
	blob = append(blob, 1, 2, 3) // absolute: 1, 3, 6 -- strictly increasing
	blob = append(blob, u2be(0)...)

	var diags Diagnostics
	if _, err := decodeRefLocation(blob, &diags); err != nil {
		t.Fatalf("decodeRefLocation failed: %v", err)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics for a strictly increasing offset list, got %+v", diags.All())
	}
}

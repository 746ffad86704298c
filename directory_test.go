// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "testing"

// buildDirectoryBlob writes component_sizes in canonicalOrder, substituting
// sizes[name] (defaulting to 0) for each row.
func buildDirectoryBlob(sizes map[string]uint16) []byte {
	var blob []byte
	for _, spec := range canonicalOrder {
		blob = append(blob, u2be(sizes[spec.name])...)
	}
	blob = append(blob, u2be(0)...) // static_field_image_size
	blob = append(blob, u2be(0)...) // static_field_reference_count
	blob = append(blob, 0x00)       // import_count
	blob = append(blob, 0x00)       // applet_count
	blob = append(blob, 0x00)       // custom_count
	return blob
}

func allMandatoryNonzero() map[string]uint16 {
	sizes := make(map[string]uint16)
	for _, spec := range canonicalOrder {
		if spec.mandatory {
			sizes[spec.name] = 10
		}
	}
	return sizes
}

func TestDecodeDirectoryMandatoryNonzeroNoWarning(t *testing.T) {
	blob := buildDirectoryBlob(allMandatoryNonzero())
	var diags Diagnostics
	rec, err := decodeDirectory(blob, &diags)
	if err != nil {
		t.Fatalf("decodeDirectory failed: %v", err)
	}
	if len(rec.ComponentSizes) != len(canonicalOrder) {
		t.Fatalf("got %d component_sizes rows, want %d", len(rec.ComponentSizes), len(canonicalOrder))
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags.All())
	}
}

func TestDecodeDirectoryMandatoryZeroWarns(t *testing.T) {
	sizes := allMandatoryNonzero()
	sizes["Header"] = 0
	blob := buildDirectoryBlob(sizes)

	var diags Diagnostics
	if _, err := decodeDirectory(blob, &diags); err != nil {
		t.Fatalf("decodeDirectory failed: %v", err)
	}
	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation && d.Component == "Directory" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an InvariantViolation warning for a mandatory component with size 0, got %+v", diags.All())
	}
}

func TestDecodeDirectoryOptionalComponentAbsentNoWarning(t *testing.T) {
	sizes := allMandatoryNonzero() // Applet, Export, StaticResources, Debug left at 0 (absent)
	blob := buildDirectoryBlob(sizes)

	var diags Diagnostics
	if _, err := decodeDirectory(blob, &diags); err != nil {
		t.Fatalf("decodeDirectory failed: %v", err)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics when optional components are legitimately absent, got %+v", diags.All())
	}
}

func TestDecodeDirectoryCustomComponents(t *testing.T) {
	sizes := allMandatoryNonzero()
	blob := buildDirectoryBlob(sizes)
	// Patch custom_count (last byte) to 1 and append one custom entry.
	blob[len(blob)-1] = 1
	blob = append(blob, 0x80)                               // tag
	blob = append(blob, 0x05, 0x44, 0x44, 0x44, 0x44, 0x44) // aid

	var diags Diagnostics
	rec, err := decodeDirectory(blob, &diags)
	if err != nil {
		t.Fatalf("decodeDirectory failed: %v", err)
	}
	if len(rec.CustomComponents) != 1 {
		t.Fatalf("got %d custom components, want 1", len(rec.CustomComponents))
	}
	if rec.CustomComponents[0].TagU1 != 0x80 {
		t.Errorf("TagU1 = %#x, want 0x80", rec.CustomComponents[0].TagU1)
	}
}

// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "testing"

func buildDescriptorClassBlob(fieldAccessFlags, fieldToken uint8) []byte {
	var blob []byte
	blob = append(blob, u2be(1)...)               // class_count = 1
	blob = append(blob, internalClassRefBytes(0)...) // class_ref
	blob = append(blob, 0x00)                     // token
	blob = append(blob, 0x01)                     // access_flags
	blob = append(blob, 0x00)                     // interface_count = 0
	blob = append(blob, u2be(1)...)                // field_count = 1
	blob = append(blob, fieldToken)
	blob = append(blob, fieldAccessFlags)
	blob = append(blob, u2be(0)...) // field_offset
	blob = append(blob, u2be(0)...) // type_offset
	blob = append(blob, u2be(0)...) // method_count = 0
	blob = append(blob, u2be(0)...) // type_descriptor_pool count = 0
	return blob
}

func TestDescriptorNonPublicFieldWithoutPrivateTokenWarns(t *testing.T) {
	blob := buildDescriptorClassBlob(0x00, 0x03) // not public, token != 0xFF
	var diags Diagnostics
	if _, err := decodeDescriptor(blob, &diags); err != nil {
		t.Fatalf("decodeDescriptor failed: %v", err)
	}
	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation && d.Component == "Descriptor" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an InvariantViolation warning, got %+v", diags.All())
	}
}

func TestDescriptorNonPublicFieldWithPrivateTokenNoWarning(t *testing.T) {
	blob := buildDescriptorClassBlob(0x00, privateOrPackageToken)
	var diags Diagnostics
	if _, err := decodeDescriptor(blob, &diags); err != nil {
		t.Fatalf("decodeDescriptor failed: %v", err)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags.All())
	}
}

func TestDescriptorPublicFieldAnyTokenNoWarning(t *testing.T) {
	blob := buildDescriptorClassBlob(0x01, 0x07)
	var diags Diagnostics
	if _, err := decodeDescriptor(blob, &diags); err != nil {
		t.Fatalf("decodeDescriptor failed: %v", err)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics for a public field, got %+v", diags.All())
	}
}

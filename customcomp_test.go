// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "testing"

func TestDecodeSignatureRejectsNonPKCS7Blob(t *testing.T) {
	var diags Diagnostics
	rec := decodeSignature([]byte{0x01, 0x02, 0x03}, &diags)
	if rec.SignerCount != 0 {
		t.Errorf("SignerCount = %d, want 0 for an unparseable blob", rec.SignerCount)
	}
	found := false
	for _, d := range diags.All() {
		if d.Kind == DiagInvariantViolation && d.Component == "Signature" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning for the unparseable PKCS#7 blob, got %+v", diags.All())
	}
}

func TestDecodeCustomFallbackRecordsTag(t *testing.T) {
	rec := decodeCustom(ComponentTag(200), []byte{0xAA, 0xBB})
	if rec.TagU1 != 200 {
		t.Errorf("TagU1 = %d, want 200", rec.TagU1)
	}
	if rec.Raw != encodeHex([]byte{0xAA, 0xBB}) {
		t.Errorf("Raw = %q, want the hex-encoded input bytes", rec.Raw)
	}
}

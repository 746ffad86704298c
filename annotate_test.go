// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"bytes"
	"testing"
)

func TestNormalizeRawModifiedStripsComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain hex", "deadbeef", "deadbeef"},
		{"paren comment", "dead(this is a comment)beef", "deadbeef"},
		{"bracket comment", "dead[also a comment]beef", "deadbeef"},
		{"angle comment", "dead<anything (even) [this]>beef", "deadbeef"},
		{"separators", "de ad|be,ef", "deadbeef"},
		{"mixed case", "DEadBEEF", "deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeRawModified("Test", tt.in)
			if err != nil {
				t.Fatalf("normalizeRawModified(%q) failed: %v", tt.in, err)
			}
			want, err := decodeRawHex("Test", tt.want)
			if err != nil {
				t.Fatalf("decodeRawHex(%q) failed: %v", tt.want, err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("normalizeRawModified(%q) = %x, want %x", tt.in, got, want)
			}
		})
	}
}

// TestNormalizeRawModifiedEquivalentForms covers testable property 4
// (§8): adding or removing legal separators/comment brackets around the
// same underlying hex must normalize identically.
func TestNormalizeRawModifiedEquivalentForms(t *testing.T) {
	base := "01000fdecaffed0102040001"
	variants := []string{
		base,
		"01 00 0f de ca ff ed 01 02 04 00 01",
		"01,00,0f,de,ca,ff,ed,01,02,04,00,01",
		"01000f(package header)decaffed0102040001",
		"01000fdecaffed[flags]0102040001",
		"01000fdecaffed0102040001<trailing annotation>",
	}
	want, err := normalizeRawModified("Header", base)
	if err != nil {
		t.Fatalf("baseline normalize failed: %v", err)
	}
	for _, v := range variants {
		got, err := normalizeRawModified("Header", v)
		if err != nil {
			t.Fatalf("normalize(%q) failed: %v", v, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("normalize(%q) = %x, want %x", v, got, want)
		}
	}
}

func TestNormalizeRawModifiedUnbalancedAngleConsumesToEnd(t *testing.T) {
	got, err := normalizeRawModified("Test", "dead<unterminated beef")
	if err != nil {
		t.Fatalf("normalizeRawModified failed: %v", err)
	}
	want, err := decodeRawHex("Test", "dead")
	if err != nil {
		t.Fatalf("decodeRawHex failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestNormalizeRawModifiedRejectsNonHex(t *testing.T) {
	if _, err := normalizeRawModified("Test", "not hex at all"); err == nil {
		t.Fatal("expected ErrMalformedHex, got nil")
	}
}

// TestNormalizeRawModifiedAngleSpanRetainsLiteralHex covers §4.6's own
// worked example (§8 scenario S3): a `<...>` span's nested (...) comment is
// stripped, but the hex that remains inside the brackets -- the actual
// field bytes the comment is annotating -- survives rather than being
// deleted along with the delimiters.
func TestNormalizeRawModifiedAngleSpanRetainsLiteralHex(t *testing.T) {
	in := "01 000f decaffed 0102040001<(AID Len)05><(AID)5555555555>"
	want := "01000fdecaffed0102040001055555555555"

	got, err := normalizeRawModified("Header", in)
	if err != nil {
		t.Fatalf("normalizeRawModified(%q) failed: %v", in, err)
	}
	wantBytes, err := decodeRawHex("Header", want)
	if err != nil {
		t.Fatalf("decodeRawHex(%q) failed: %v", want, err)
	}
	if !bytes.Equal(got, wantBytes) {
		t.Errorf("normalizeRawModified(%q) = %x, want %x", in, got, wantBytes)
	}
}

func TestEncodeHexIsLowercase(t *testing.T) {
	got := encodeHex([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	if got != "deadbeef" {
		t.Errorf("encodeHex = %q, want %q", got, "deadbeef")
	}
}

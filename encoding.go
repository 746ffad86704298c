// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// nameDecoder validates Name and Utf8Info byte strings. The JCVM's "modified
// UTF-8" is plain UTF-8 except it disallows 0x00 and 0xF0-0xFF (no 4-byte
// sequences): every code point needed by a Java identifier or literal fits
// in the Basic Multilingual Plane, so there's never a surrogate pair to
// encode as two back-to-back 3-byte sequences the way Java's own modified
// UTF-8 does for code points above it. The teacher uses x/text/encoding/
// unicode to decode UTF-16 version-resource strings (version.go); here the
// same package's UTF-8 codec is reused to validate well-formedness before
// this codec additionally rejects the bytes the JCVM charset forbids.
var nameDecoder = unicode.UTF8.NewDecoder()

// validateModifiedUTF8 reports whether b is valid modified UTF-8 per §4.4:
// well-formed UTF-8 that contains neither 0x00 nor any byte in [0xF0,0xFF].
func validateModifiedUTF8(b []byte) error {
	for _, c := range b {
		if c == 0x00 {
			return fmt.Errorf("cap: modified UTF-8 forbids 0x00")
		}
		if c >= 0xF0 {
			return fmt.Errorf("cap: modified UTF-8 forbids byte %#02x (0xF0-0xFF reserved)", c)
		}
	}
	// The UTF-8 decoder replaces ill-formed sequences with U+FFFD instead of
	// failing, so any difference between its output and b means b is not
	// well-formed.
	decoded, err := nameDecoder.Bytes(b)
	if err != nil {
		return fmt.Errorf("cap: not valid UTF-8: %w", err)
	}
	if !bytes.Equal(decoded, b) {
		return fmt.Errorf("cap: not valid UTF-8")
	}
	return nil
}

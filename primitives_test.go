// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"errors"
	"testing"
)

func TestReaderAdvanceRejectsNegativeLength(t *testing.T) {
	r := newReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.advance(-1); !errors.Is(err, ErrNegativeAdvance) {
		t.Fatalf("advance(-1) error = %v, want ErrNegativeAdvance", err)
	}
}

func TestReaderAdvanceRejectsPastEnd(t *testing.T) {
	r := newReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.advance(4); !errors.Is(err, ErrTruncatedComponent) {
		t.Fatalf("advance(4) error = %v, want ErrTruncatedComponent", err)
	}
}

func TestReaderAdvanceWithinBounds(t *testing.T) {
	r := newReader([]byte{0x01, 0x02, 0x03})
	b, err := r.advance(2)
	if err != nil {
		t.Fatalf("advance(2) failed: %v", err)
	}
	if len(b) != 2 || b[0] != 0x01 || b[1] != 0x02 {
		t.Errorf("advance(2) = %x, want [01 02]", b)
	}
	if r.remaining() != 1 {
		t.Errorf("remaining() = %d, want 1", r.remaining())
	}
}

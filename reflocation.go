// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// RefLocationRecord is the parsed form of the RefLocation component: two
// delta-encoded offset lists into Method (§3.4, §4.5). AbsoluteOffsets1Byte
// and AbsoluteOffsets2Byte are reconstructed conveniences; Offsets1Byte and
// Offsets2Byte hold the stored deltas, which is the form §4.5 says is
// authoritative ("the stored form is deltas").
type RefLocationRecord struct {
	RawPair
	Count1ByteU2           uint16   `json:"offset_count_1_byte-u2"`
	Offsets1Byte           []uint16 `json:"offsets_1_byte-deltas"`
	AbsoluteOffsets1Byte   []uint16 `json:"offsets_1_byte-absolute"`
	Count2ByteU2           uint16   `json:"offset_count_2_byte-u2"`
	Offsets2Byte           []uint16 `json:"offsets_2_byte-deltas"`
	AbsoluteOffsets2Byte   []uint16 `json:"offsets_2_byte-absolute"`
}

func decodeRefLocation(blob []byte, diags *Diagnostics) (*RefLocationRecord, error) {
	r := newReader(blob)
	rec := &RefLocationRecord{RawPair: rawPairFor(blob)}

	count1, deltas1, abs1, err := decodeDeltaList(r, "offsets_1_byte")
	if err != nil {
		return nil, err
	}
	rec.Count1ByteU2, rec.Offsets1Byte, rec.AbsoluteOffsets1Byte = count1, deltas1, abs1

	count2, deltas2, abs2, err := decodeDeltaList(r, "offsets_2_byte")
	if err != nil {
		return nil, err
	}
	rec.Count2ByteU2, rec.Offsets2Byte, rec.AbsoluteOffsets2Byte = count2, deltas2, abs2

	checkMonotone(diags, "offsets_1_byte", abs1)
	checkMonotone(diags, "offsets_2_byte", abs2)
	return rec, nil
}

func decodeDeltaList(r *reader, name string) (count uint16, deltas []uint16, absolute []uint16, err error) {
	count, err = r.u2()
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reflocation: %s: count: %w", name, err)
	}
	var running uint16
	for i := uint16(0); i < count; i++ {
		b, err := r.u1()
		if err != nil {
			return 0, nil, nil, fmt.Errorf("reflocation: %s[%d]: %w", name, i, err)
		}
		deltas = append(deltas, uint16(b))
		running += uint16(b)
		absolute = append(absolute, running)
	}
	return count, deltas, absolute, nil
}

func checkMonotone(diags *Diagnostics, name string, absolute []uint16) {
	for i := 1; i < len(absolute); i++ {
		if absolute[i] <= absolute[i-1] {
			diags.Warn(DiagInvariantViolation, "RefLocation", "%s: offset at index %d (%d) is not strictly greater than previous (%d)", name, i, absolute[i], absolute[i-1])
		}
	}
}

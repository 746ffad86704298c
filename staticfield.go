// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// ArrayInitEntry is one entry of the array_init table: a typed, literal
// array initializer baked into the static-field image (§4.5 StaticField).
type ArrayInitEntry struct {
	TypeU1  uint8  `json:"type-u1"`
	CountU2 uint16 `json:"count-u2"`
	Values  string `json:"values"`
}

// StaticFieldRecord is the parsed form of the StaticField component.
type StaticFieldRecord struct {
	RawPair
	ImageSizeU2           uint16           `json:"image_size-u2"`
	ReferenceCountU2      uint16           `json:"reference_count-u2"`
	ArrayInitCountU2      uint16           `json:"array_init_count-u2"`
	ArrayInit             []ArrayInitEntry `json:"array_init"`
	DefaultValueCountU2   uint16           `json:"default_value_count-u2"`
	NonDefaultValueCountU2 uint16          `json:"non_default_value_count-u2"`
	NonDefaultValues      string           `json:"non_default_values"`
}

func decodeStaticField(blob []byte, diags *Diagnostics) (*StaticFieldRecord, error) {
	r := newReader(blob)
	rec := &StaticFieldRecord{RawPair: rawPairFor(blob)}

	var err error
	if rec.ImageSizeU2, err = r.u2(); err != nil {
		return nil, fmt.Errorf("staticfield: image_size: %w", err)
	}
	if rec.ReferenceCountU2, err = r.u2(); err != nil {
		return nil, fmt.Errorf("staticfield: reference_count: %w", err)
	}
	if rec.ArrayInitCountU2, err = r.u2(); err != nil {
		return nil, fmt.Errorf("staticfield: array_init_count: %w", err)
	}

	for i := uint16(0); i < rec.ArrayInitCountU2; i++ {
		typ, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("staticfield: array_init[%d]: type: %w", i, err)
		}
		count, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("staticfield: array_init[%d]: count: %w", i, err)
		}
		values, err := r.bytesN(int(count))
		if err != nil {
			return nil, fmt.Errorf("staticfield: array_init[%d]: values: %w", i, err)
		}
		rec.ArrayInit = append(rec.ArrayInit, ArrayInitEntry{
			TypeU1:  typ,
			CountU2: count,
			Values:  encodeHex(values),
		})
	}

	if rec.DefaultValueCountU2, err = r.u2(); err != nil {
		return nil, fmt.Errorf("staticfield: default_value_count: %w", err)
	}
	if rec.NonDefaultValueCountU2, err = r.u2(); err != nil {
		return nil, fmt.Errorf("staticfield: non_default_value_count: %w", err)
	}
	nonDefault, err := r.bytesN(int(rec.NonDefaultValueCountU2))
	if err != nil {
		return nil, fmt.Errorf("staticfield: non_default_values: %w", err)
	}
	rec.NonDefaultValues = encodeHex(nonDefault)

	want := 2*rec.ReferenceCountU2 + rec.DefaultValueCountU2 + rec.NonDefaultValueCountU2
	if want != rec.ImageSizeU2 {
		diags.Warn(DiagInvariantViolation, "StaticField",
			"image_size %d != 2*reference_count(%d) + default_value_count(%d) + non_default_value_count(%d) = %d",
			rec.ImageSizeU2, rec.ReferenceCountU2, rec.DefaultValueCountU2, rec.NonDefaultValueCountU2, want)
	}
	return rec, nil
}

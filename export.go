// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// ExportedClassEntry is one externally-visible class and its static member
// offset tables (§3.4, §4.5 Export: "Tabular structures with fixed per-entry
// layout").
type ExportedClassEntry struct {
	ClassOffsetU2        uint16   `json:"class_offset-u2"`
	StaticFieldCountU1   uint8    `json:"static_field_count-u1"`
	StaticFieldOffsets   []uint16 `json:"static_field_offsets"`
	StaticMethodCountU1  uint8    `json:"static_method_count-u1"`
	StaticMethodOffsets  []uint16 `json:"static_method_offsets"`
}

// ExportRecord is the parsed form of the Export component. Present iff
// Header.Flags includes EXPORT.
type ExportRecord struct {
	RawPair
	ClassCountU1 uint8                 `json:"class_count-u1"`
	Classes      []ExportedClassEntry  `json:"classes"`
}

func decodeExport(blob []byte, diags *Diagnostics) (*ExportRecord, error) {
	r := newReader(blob)
	rec := &ExportRecord{RawPair: rawPairFor(blob)}

	count, err := r.u1()
	if err != nil {
		return nil, fmt.Errorf("export: class_count: %w", err)
	}
	rec.ClassCountU1 = count

	for i := uint8(0); i < count; i++ {
		offset, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("export: classes[%d]: class_offset: %w", i, err)
		}
		fieldCount, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("export: classes[%d]: static_field_count: %w", i, err)
		}
		ce := ExportedClassEntry{ClassOffsetU2: offset, StaticFieldCountU1: fieldCount}
		for j := uint8(0); j < fieldCount; j++ {
			fo, err := r.u2()
			if err != nil {
				return nil, fmt.Errorf("export: classes[%d]: static_field_offsets[%d]: %w", i, j, err)
			}
			ce.StaticFieldOffsets = append(ce.StaticFieldOffsets, fo)
		}
		methodCount, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("export: classes[%d]: static_method_count: %w", i, err)
		}
		ce.StaticMethodCountU1 = methodCount
		for j := uint8(0); j < methodCount; j++ {
			mo, err := r.u2()
			if err != nil {
				return nil, fmt.Errorf("export: classes[%d]: static_method_offsets[%d]: %w", i, j, err)
			}
			ce.StaticMethodOffsets = append(ce.StaticMethodOffsets, mo)
		}
		rec.Classes = append(rec.Classes, ce)
	}
	return rec, nil
}

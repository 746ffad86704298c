// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// ComponentSizeEntry names one row of Directory's component-size table.
type ComponentSizeEntry struct {
	Component string `json:"component"`
	SizeU2    uint16 `json:"size-u2"`
}

// CustomComponentEntry names one custom component Directory knows about.
type CustomComponentEntry struct {
	TagU1 uint8  `json:"tag-u1"`
	AID   string `json:"aid"`
}

// DirectoryRecord is the parsed form of the Directory component (§3.4). Its
// ComponentSizes slice is what the coordinator cross-checks against the
// actual present-component blob sizes to produce InconsistentSize warnings
// (§4.3, §8 property 7).
type DirectoryRecord struct {
	RawPair
	ComponentSizes           []ComponentSizeEntry    `json:"component_sizes"`
	StaticFieldImageSizeU2   uint16                  `json:"static_field_image_size-u2"`
	StaticFieldRefCountU2    uint16                  `json:"static_field_reference_count-u2"`
	ImportCountU1            uint8                   `json:"import_count-u1"`
	AppletCountU1            uint8                   `json:"applet_count-u1"`
	CustomCountU1            uint8                   `json:"custom_count-u1"`
	CustomComponents         []CustomComponentEntry  `json:"custom_components,omitempty"`
}

func decodeDirectory(blob []byte, diags *Diagnostics) (*DirectoryRecord, error) {
	r := newReader(blob)
	rec := &DirectoryRecord{RawPair: rawPairFor(blob)}

	rec.ComponentSizes = make([]ComponentSizeEntry, len(canonicalOrder))
	for i, spec := range canonicalOrder {
		size, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("directory: component_sizes[%s]: %w", spec.name, err)
		}
		rec.ComponentSizes[i] = ComponentSizeEntry{Component: spec.name, SizeU2: size}
	}

	var err error
	if rec.StaticFieldImageSizeU2, err = r.u2(); err != nil {
		return nil, fmt.Errorf("directory: static_field_image_size: %w", err)
	}
	if rec.StaticFieldRefCountU2, err = r.u2(); err != nil {
		return nil, fmt.Errorf("directory: static_field_reference_count: %w", err)
	}
	if rec.ImportCountU1, err = r.u1(); err != nil {
		return nil, fmt.Errorf("directory: import_count: %w", err)
	}
	if rec.AppletCountU1, err = r.u1(); err != nil {
		return nil, fmt.Errorf("directory: applet_count: %w", err)
	}
	if rec.CustomCountU1, err = r.u1(); err != nil {
		return nil, fmt.Errorf("directory: custom_count: %w", err)
	}

	for i := uint8(0); i < rec.CustomCountU1; i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("directory: custom_components[%d]: tag: %w", i, err)
		}
		aid, err := r.aid()
		if err != nil {
			return nil, fmt.Errorf("directory: custom_components[%d]: aid: %w", i, err)
		}
		rec.CustomComponents = append(rec.CustomComponents, CustomComponentEntry{
			TagU1: tag,
			AID:   encodeHex(aid),
		})
	}

	// Size row for a mandatory, non-optional component must be nonzero; an
	// absent optional/conditional one must be zero (§3.4 Directory
	// invariant). Flag violations as diagnostics, never hard failures.
	for _, entry := range rec.ComponentSizes {
		spec := componentSpecByName[entry.Component]
		if spec.mandatory && entry.SizeU2 == 0 {
			diags.Warn(DiagInvariantViolation, "Directory", "mandatory component %s has recorded size 0", entry.Component)
		}
	}

	return rec, nil
}

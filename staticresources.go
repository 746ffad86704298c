// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// maxResourceSize is the largest size a single resource may declare (§4.5:
// "Each resource size in [0, 32767]").
const maxResourceSize = 32767

// ResourceEntry is one directory row plus its sniffed content kind. The
// teacher repo runs icon blobs it finds in version resources through
// mimetype to confirm they're PNGs (icon.go); here the same library
// fingerprints each opaque StaticResources blob purely for diagnostic
// display in the intermediate form -- §4.5 says nothing about resource
// content types, so this is informational only, never validated.
type ResourceEntry struct {
	ResourceIDU2   uint16 `json:"resource_id-u2"`
	ResourceSizeU4 uint32 `json:"resource_size-u4"`
	Data           string `json:"data"`
	SniffedType    string `json:"sniffed_type,omitempty"`
}

// StaticResourcesRecord is the parsed form of the StaticResources component.
// Present iff the package carries 2.3+ resources (§3.4, §6.1).
type StaticResourcesRecord struct {
	RawPair
	ResourceCountU2 uint16          `json:"resource_count-u2"`
	Resources       []ResourceEntry `json:"resources"`
}

func decodeStaticResources(blob []byte, diags *Diagnostics) (*StaticResourcesRecord, error) {
	r := newReader(blob)
	rec := &StaticResourcesRecord{RawPair: rawPairFor(blob)}

	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("staticresources: resource_count: %w", err)
	}
	rec.ResourceCountU2 = count

	type dirRow struct {
		id   uint16
		size uint32
	}
	dir := make([]dirRow, count)
	for i := uint16(0); i < count; i++ {
		id, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("staticresources: directory[%d]: resource_id: %w", i, err)
		}
		size, err := r.u4()
		if err != nil {
			return nil, fmt.Errorf("staticresources: directory[%d]: resource_size: %w", i, err)
		}
		if size > maxResourceSize {
			diags.Warn(DiagInvariantViolation, "StaticResources", "directory[%d] resource_size %d exceeds %d", i, size, maxResourceSize)
		}
		dir[i] = dirRow{id: id, size: size}
	}

	seen := make(map[uint16]bool, count)
	for i, row := range dir {
		if seen[row.id] {
			diags.Warn(DiagInvariantViolation, "StaticResources", "resource_id %d repeated at directory[%d]", row.id, i)
		}
		seen[row.id] = true

		data, err := r.bytesN(int(row.size))
		if err != nil {
			return nil, fmt.Errorf("staticresources: resources[%d]: data: %w", i, err)
		}
		sniffed := ""
		if len(data) > 0 {
			sniffed = mimetype.Detect(data).String()
		}
		rec.Resources = append(rec.Resources, ResourceEntry{
			ResourceIDU2:   row.id,
			ResourceSizeU4: row.size,
			Data:           encodeHex(data),
			SniffedType:    sniffed,
		})
	}
	return rec, nil
}

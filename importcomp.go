// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// PackageImportEntry is one imported package's AID and version (§3.4
// Import: "table of imported package AIDs with version"). Its position in
// ImportRecord.Packages is the package token referenced by external
// ConstantPool entries and class/interface references elsewhere.
type PackageImportEntry struct {
	MinorVersionU1 uint8  `json:"minor_version-u1"`
	MajorVersionU1 uint8  `json:"major_version-u1"`
	AID            string `json:"aid"`
}

// ImportRecord is the parsed form of the Import component.
type ImportRecord struct {
	RawPair
	CountU1  uint8                 `json:"count-u1"`
	Packages []PackageImportEntry  `json:"packages"`
}

func decodeImport(blob []byte, diags *Diagnostics) (*ImportRecord, error) {
	r := newReader(blob)
	rec := &ImportRecord{RawPair: rawPairFor(blob)}

	count, err := r.u1()
	if err != nil {
		return nil, fmt.Errorf("import: count: %w", err)
	}
	rec.CountU1 = count

	for i := uint8(0); i < count; i++ {
		minor, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("import: packages[%d]: minor_version: %w", i, err)
		}
		major, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("import: packages[%d]: major_version: %w", i, err)
		}
		aid, err := r.aid()
		if err != nil {
			return nil, fmt.Errorf("import: packages[%d]: aid: %w", i, err)
		}
		if len(aid) < 5 || len(aid) > 16 {
			diags.Warn(DiagInvariantViolation, "Import", "packages[%d] AID length %d outside [5,16]", i, len(aid))
		}
		rec.Packages = append(rec.Packages, PackageImportEntry{
			MinorVersionU1: minor,
			MajorVersionU1: major,
			AID:            encodeHex(aid),
		})
	}
	return rec, nil
}

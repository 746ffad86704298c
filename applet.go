// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// AppletEntry is one applet's AID and the offset of its install method
// within the Method component (§3.4 Applet).
type AppletEntry struct {
	AID                 string `json:"aid"`
	InstallMethodOffset uint16 `json:"install_method_offset-u2"`
}

// AppletRecord is the parsed form of the Applet component. Present iff
// Header.Flags includes APPLET (§3.4).
type AppletRecord struct {
	RawPair
	CountU1 uint8         `json:"count-u1"`
	Applets []AppletEntry `json:"applets"`
}

func decodeApplet(blob []byte, diags *Diagnostics) (*AppletRecord, error) {
	r := newReader(blob)
	rec := &AppletRecord{RawPair: rawPairFor(blob)}

	count, err := r.u1()
	if err != nil {
		return nil, fmt.Errorf("applet: count: %w", err)
	}
	rec.CountU1 = count

	var rid string
	for i := uint8(0); i < count; i++ {
		aid, err := r.aid()
		if err != nil {
			return nil, fmt.Errorf("applet: applets[%d]: aid: %w", i, err)
		}
		offset, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("applet: applets[%d]: install_method_offset: %w", i, err)
		}
		if len(aid) >= 5 {
			thisRID := encodeHex(aid[:5])
			if rid == "" {
				rid = thisRID
			} else if rid != thisRID {
				diags.Warn(DiagInvariantViolation, "Applet", "applets[%d] RID %s differs from first applet's RID %s", i, thisRID, rid)
			}
		}
		rec.Applets = append(rec.Applets, AppletEntry{
			AID:                 encodeHex(aid),
			InstallMethodOffset: offset,
		})
	}
	return rec, nil
}

// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"encoding/json"
	"fmt"
)

// capIntermediateDoc is the wire shape cap2json/json2cap exchange: §6.2's
// "mapping from component filename to record" (Components) plus the
// cross-component context (Version, Extended) a bare component mapping
// can't carry on its own, and the _diagnostics accumulator from §7.
type capIntermediateDoc struct {
	Components  ComponentSet `json:"components"`
	Version     FormatVersion `json:"version"`
	Extended    bool          `json:"extended"`
	Diagnostics []Diagnostic  `json:"_diagnostics,omitempty"`
}

// MarshalIntermediateJSON renders the CapFile's intermediate form, per §6.2.
// pretty selects two-space indentation, matching the CLI's `-p` flag.
func (c *CapFile) MarshalIntermediateJSON(pretty bool) ([]byte, error) {
	doc := capIntermediateDoc{
		Components:  c.Components,
		Version:     c.Version,
		Extended:    c.Extended,
		Diagnostics: c.Diagnostics,
	}
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// MarshalIntermediateJSON renders the ExpFile's intermediate form.
func (e *ExpFile) MarshalIntermediateJSON(pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(e, "", "  ")
	}
	return json.Marshal(e)
}

// LoadComponentSetFromJSON reads a cap2json-produced intermediate document
// back into a ComponentSet, ready for EncodeComponentSet. This is the
// json2cap CLI's entry point (§6.4): it never needs a full CapFile, because
// Shallow-mode encoding only ever reads raw/raw_modified back out of each
// component record.
func LoadComponentSetFromJSON(data []byte) (*ComponentSet, error) {
	var doc capIntermediateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cap: parsing intermediate JSON: %w", err)
	}
	return &doc.Components, nil
}

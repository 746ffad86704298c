// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawPair is embedded first in every component record so its JSON encoding
// leads with `raw`/`raw_modified`, per §3.3: "Every record carries raw, ...
// raw_modified." Go preserves struct field declaration order in
// encoding/json, which is what makes field order part of the wire contract
// satisfiable without a code-generated marshaler per component.
type RawPair struct {
	Raw         string `json:"raw"`
	RawModified string `json:"raw_modified,omitempty"`
}

// rawPair returns p itself. Every component record embeds RawPair, so this
// promoted method is how Encode recovers the Raw/RawModified pair back out
// of a record stored as `any` in a ComponentSet, without a type switch over
// every component kind.
func (p RawPair) rawPair() RawPair {
	return p
}

// rawPairSetter is implemented (via promotion) by every *XRecord type that
// embeds RawPair. The coordinator uses it to overwrite a freshly-decoded
// record's Raw field with the full tag+size+info bytes of its envelope
// entry, once the component decoder itself (which only ever sees the info
// payload) has returned.
type rawPairSetter interface {
	setRawPair(RawPair)
}

func (p *RawPair) setRawPair(np RawPair) {
	*p = np
}

// resolveBytes implements the §4.2 Shallow Mode priority order for a single
// component: raw_modified (annotation-normalized) if set, else raw. Deep
// mode's third fallback (re-serialize from parsed fields) doesn't exist yet,
// matching §9's "explicitly out of scope for the initial implementation".
func (p RawPair) resolveBytes(component string) ([]byte, error) {
	if p.RawModified != "" {
		return normalizeRawModified(component, p.RawModified)
	}
	return decodeRawHex(component, p.Raw)
}

func decodeRawHex(component, s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: component %s raw has odd hex length", ErrMalformedHex, component)
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(s[2*i])
		if err != nil {
			return nil, fmt.Errorf("%w: component %s raw: %v", ErrMalformedHex, component, err)
		}
		lo, err := hexNibble(s[2*i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: component %s raw: %v", ErrMalformedHex, component, err)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

// rawPairFor builds a RawPair from a decoded blob.
func rawPairFor(blob []byte) RawPair {
	return RawPair{Raw: encodeHex(blob)}
}

// ComponentEntry is one entry of the intermediate form's top-level mapping:
// a component filename (e.g. "Header.cap") paired with its parsed record.
// The record is stored as the decoded value; ComponentSet.MarshalJSON
// marshals each one in insertion order.
type ComponentEntry struct {
	Name   string
	Record any
}

// ComponentSet is the ordered mapping "component filename -> record"
// described in §6.2. A plain Go map can't preserve the insertion order that
// §9 calls load-bearing ("Implementations MUST use an ordered mapping
// type"), and nothing in the reference corpus supplies a ready-made ordered
// JSON map, so this type hand-rolls the minimum needed: an ordered slice of
// entries plus custom (Un)MarshalJSON that reads/writes a JSON object while
// preserving key order.
type ComponentSet struct {
	entries []ComponentEntry
}

// Set appends or replaces the entry named name, preserving its original
// position on replace and otherwise appending at the end.
func (c *ComponentSet) Set(name string, record any) {
	for i := range c.entries {
		if c.entries[i].Name == name {
			c.entries[i].Record = record
			return
		}
	}
	c.entries = append(c.entries, ComponentEntry{Name: name, Record: record})
}

// Get returns the record stored under name, if any.
func (c *ComponentSet) Get(name string) (any, bool) {
	for _, e := range c.entries {
		if e.Name == name {
			return e.Record, true
		}
	}
	return nil, false
}

// Names returns every entry name, in insertion order.
func (c *ComponentSet) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns every entry, in insertion order.
func (c *ComponentSet) Entries() []ComponentEntry {
	return c.entries
}

// MarshalJSON writes the set as a JSON object whose key order matches
// insertion order.
func (c ComponentSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e.Record)
		if err != nil {
			return nil, fmt.Errorf("marshal component %s: %w", e.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object into the set, preserving the key order
// in which json.Decoder observes them on the wire (Go's encoding/json
// token stream for objects is emission-ordered, unlike map[string]any).
//
// Each entry is decoded only as far as RawPair: Shallow-mode encoding never
// reads a component's parsed fields back (§4.2), so a freshly-loaded
// ComponentSet only ever needs raw/raw_modified to reconstruct bytes. A
// human-edited parsed field is simply ignored on the way back to binary --
// which is exactly Shallow mode's contract: editing raw_modified is the
// supported path, editing parsed fields is a future Deep-mode feature.
func (c *ComponentSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("cap: expected JSON object for component set")
	}
	c.entries = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("cap: expected string key in component set")
		}
		var p RawPair
		if err := dec.Decode(&p); err != nil {
			return err
		}
		c.entries = append(c.entries, ComponentEntry{Name: key, Record: &p})
	}
	return nil
}

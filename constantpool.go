// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// ConstantPoolTag identifies the kind of a single ConstantPool entry (§3.4,
// §4.5: "First byte is the tag in {1..6}").
type ConstantPoolTag uint8

// ConstantPool entry kinds.
const (
	CPClassref          ConstantPoolTag = 1
	CPInstanceFieldref  ConstantPoolTag = 2
	CPVirtualMethodref  ConstantPoolTag = 3
	CPSuperMethodref    ConstantPoolTag = 4
	CPStaticFieldref    ConstantPoolTag = 5
	CPStaticMethodref   ConstantPoolTag = 6
)

var cpTagNames = map[ConstantPoolTag]string{
	CPClassref:         "Classref",
	CPInstanceFieldref: "InstanceFieldref",
	CPVirtualMethodref: "VirtualMethodref",
	CPSuperMethodref:   "SuperMethodref",
	CPStaticFieldref:   "StaticFieldref",
	CPStaticMethodref:  "StaticMethodref",
}

func (t ConstantPoolTag) String() string {
	if name, ok := cpTagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// ConstantPoolEntry is one decoded, 4-byte constant-pool entry: a tag byte
// plus a class/interface reference and a one-byte token, which covers the
// shape of all six entry kinds (§4.5, §9 "Variant types": the tag is a
// value read during decode, not a type-level discriminator in Go -- callers
// switch on Tag).
type ConstantPoolEntry struct {
	TagU1   uint8    `json:"tag-u1"`
	Kind    string   `json:"kind"`
	Ref     classRef `json:"-"`
	Class   string   `json:"class_ref"`
	TokenU1 uint8    `json:"token-u1"`
}

// renderClassRef renders the classRef in the intermediate form as either an
// external "external:pkg=PP,class=CC" token pair or an internal
// "internal:offset=OOOO" offset, in hex.
func renderClassRef(c classRef) string {
	if c.External {
		return fmt.Sprintf("external:pkg=%02x,class=%02x", c.PackageToken, c.ClassToken)
	}
	return fmt.Sprintf("internal:offset=%04x", c.InternalOffset)
}

// parseClassRef is the inverse of renderClassRef, used by encoders that
// rebuild a component from its parsed fields (the EXP encoder; a future
// Deep-mode CAP encoder) rather than from raw bytes.
func parseClassRef(s string) (classRef, error) {
	var c classRef
	switch {
	case len(s) >= len("external:") && s[:len("external:")] == "external:":
		var pkg, class uint8
		if _, err := fmt.Sscanf(s, "external:pkg=%02x,class=%02x", &pkg, &class); err != nil {
			return c, fmt.Errorf("cap: malformed external class_ref %q: %w", s, err)
		}
		c.External = true
		c.PackageToken = pkg
		c.ClassToken = class
		return c, nil
	case len(s) >= len("internal:") && s[:len("internal:")] == "internal:":
		var offset uint16
		if _, err := fmt.Sscanf(s, "internal:offset=%04x", &offset); err != nil {
			return c, fmt.Errorf("cap: malformed internal class_ref %q: %w", s, err)
		}
		c.InternalOffset = offset
		return c, nil
	default:
		return c, fmt.Errorf("cap: unrecognized class_ref form %q", s)
	}
}

// ConstantPoolRecord is the parsed form of the ConstantPool component.
type ConstantPoolRecord struct {
	RawPair
	CountU2 uint16               `json:"count-u2"`
	Entries []ConstantPoolEntry  `json:"entries"`
}

func decodeConstantPool(blob []byte, diags *Diagnostics) (*ConstantPoolRecord, error) {
	r := newReader(blob)
	rec := &ConstantPoolRecord{RawPair: rawPairFor(blob)}

	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("constantpool: count: %w", err)
	}
	rec.CountU2 = count

	for i := uint16(0); i < count; i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("constantpool: entries[%d]: tag: %w", i, err)
		}
		ref, err := r.classRef()
		if err != nil {
			return nil, fmt.Errorf("constantpool: entries[%d]: class_ref: %w", i, err)
		}
		token, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("constantpool: entries[%d]: token: %w", i, err)
		}
		if i == 0 && ConstantPoolTag(tag) == CPClassref {
			diags.Warn(DiagInvariantViolation, "ConstantPool", "entries[0] is a Classref; must not be used as a catch_type")
		}
		rec.Entries = append(rec.Entries, ConstantPoolEntry{
			TagU1:   tag,
			Kind:    ConstantPoolTag(tag).String(),
			Ref:     ref,
			Class:   renderClassRef(ref),
			TokenU1: token,
		})
	}
	return rec, nil
}

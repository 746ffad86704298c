// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// privateOrPackageToken is the sentinel §4.5/§9 describes for a field or
// method with no externally visible token ("private/package-visible
// elements have token = 0xFF").
const privateOrPackageToken uint8 = 0xFF

// FieldDescriptor is one field_descriptor_info entry (§4.5 Descriptor).
type FieldDescriptor struct {
	TokenU1      uint8  `json:"token-u1"`
	AccessFlags  uint8  `json:"access_flags-u1"`
	FieldOffset  uint16 `json:"field_offset-u2"`
	TypeOffsetU2 uint16 `json:"type_offset-u2"`
}

// MethodDescriptor is one method_descriptor_info entry.
type MethodDescriptor struct {
	TokenU1         uint8  `json:"token-u1"`
	AccessFlags     uint8  `json:"access_flags-u1"`
	MethodOffsetU2  uint16 `json:"method_offset-u2"`
	TypeOffsetU2    uint16 `json:"type_offset-u2"`
	BytecodeCountU2 uint16 `json:"bytecode_count-u2"`
}

// ClassDescriptor is one class_descriptor_info entry.
type ClassDescriptor struct {
	ClassRef       string             `json:"class_ref"`
	TokenU1        uint8              `json:"token-u1"`
	AccessFlags    uint8              `json:"access_flags-u1"`
	InterfaceCount uint8              `json:"interface_count-u1"`
	FieldCountU2   uint16             `json:"field_count-u2"`
	Fields         []FieldDescriptor  `json:"fields"`
	MethodCountU2  uint16             `json:"method_count-u2"`
	Methods        []MethodDescriptor `json:"methods"`
}

// TypeDescriptorEntry is one entry of the type descriptor pool referenced
// by field/method type_offset indices.
type TypeDescriptorEntry struct {
	NibbleCountU1 uint8  `json:"nibble_count-u1"`
	Packed        string `json:"packed"`
}

// DescriptorRecord is the parsed form of the Descriptor component.
type DescriptorRecord struct {
	RawPair
	ClassCountU2    uint16                 `json:"class_count-u2"`
	Classes         []ClassDescriptor      `json:"classes"`
	TypeDescriptors []TypeDescriptorEntry  `json:"type_descriptor_pool"`
}

func decodeDescriptor(blob []byte, diags *Diagnostics) (*DescriptorRecord, error) {
	r := newReader(blob)
	rec := &DescriptorRecord{RawPair: rawPairFor(blob)}

	classCount, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("descriptor: class_count: %w", err)
	}
	rec.ClassCountU2 = classCount

	for i := uint16(0); i < classCount; i++ {
		cd, err := decodeClassDescriptor(r, i)
		if err != nil {
			return nil, err
		}
		rec.Classes = append(rec.Classes, cd)
	}

	poolCount, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("descriptor: type_descriptor_pool count: %w", err)
	}
	for i := uint16(0); i < poolCount; i++ {
		nibbleCount, packed, err := r.typeDescriptor()
		if err != nil {
			return nil, fmt.Errorf("descriptor: type_descriptor_pool[%d]: %w", i, err)
		}
		rec.TypeDescriptors = append(rec.TypeDescriptors, TypeDescriptorEntry{
			NibbleCountU1: nibbleCount,
			Packed:        encodeHex(packed),
		})
	}

	for _, cd := range rec.Classes {
		for _, f := range cd.Fields {
			if f.AccessFlags&0x1 == 0 && f.TokenU1 != privateOrPackageToken {
				diags.Warn(DiagInvariantViolation, "Descriptor", "field in class %s has non-public access but token %#x != 0xFF", cd.ClassRef, f.TokenU1)
			}
		}
	}
	return rec, nil
}

func decodeClassDescriptor(r *reader, index uint16) (ClassDescriptor, error) {
	var cd ClassDescriptor
	ref, err := r.classRef()
	if err != nil {
		return cd, fmt.Errorf("descriptor: classes[%d]: class_ref: %w", index, err)
	}
	cd.ClassRef = renderClassRef(ref)

	if cd.TokenU1, err = r.u1(); err != nil {
		return cd, fmt.Errorf("descriptor: classes[%d]: token: %w", index, err)
	}
	if cd.AccessFlags, err = r.u1(); err != nil {
		return cd, fmt.Errorf("descriptor: classes[%d]: access_flags: %w", index, err)
	}
	if cd.InterfaceCount, err = r.u1(); err != nil {
		return cd, fmt.Errorf("descriptor: classes[%d]: interface_count: %w", index, err)
	}
	// implemented_interfaces entries are class_ref values already recorded
	// in the Class component; Descriptor only needs their count here.
	for i := uint8(0); i < cd.InterfaceCount; i++ {
		if _, err := r.classRef(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: interfaces[%d]: %w", index, i, err)
		}
	}

	if cd.FieldCountU2, err = r.u2(); err != nil {
		return cd, fmt.Errorf("descriptor: classes[%d]: field_count: %w", index, err)
	}
	for i := uint16(0); i < cd.FieldCountU2; i++ {
		var fd FieldDescriptor
		if fd.TokenU1, err = r.u1(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: fields[%d]: token: %w", index, i, err)
		}
		if fd.AccessFlags, err = r.u1(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: fields[%d]: access_flags: %w", index, i, err)
		}
		if fd.FieldOffset, err = r.u2(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: fields[%d]: field_offset: %w", index, i, err)
		}
		if fd.TypeOffsetU2, err = r.u2(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: fields[%d]: type_offset: %w", index, i, err)
		}
		cd.Fields = append(cd.Fields, fd)
	}

	if cd.MethodCountU2, err = r.u2(); err != nil {
		return cd, fmt.Errorf("descriptor: classes[%d]: method_count: %w", index, err)
	}
	for i := uint16(0); i < cd.MethodCountU2; i++ {
		var md MethodDescriptor
		if md.TokenU1, err = r.u1(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: methods[%d]: token: %w", index, i, err)
		}
		if md.AccessFlags, err = r.u1(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: methods[%d]: access_flags: %w", index, i, err)
		}
		if md.MethodOffsetU2, err = r.u2(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: methods[%d]: method_offset: %w", index, i, err)
		}
		if md.TypeOffsetU2, err = r.u2(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: methods[%d]: type_offset: %w", index, i, err)
		}
		if md.BytecodeCountU2, err = r.u2(); err != nil {
			return cd, fmt.Errorf("descriptor: classes[%d]: methods[%d]: bytecode_count: %w", index, i, err)
		}
		cd.Methods = append(cd.Methods, md)
	}
	return cd, nil
}

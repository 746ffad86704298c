// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "fmt"

// classFlagACCInterface is the top bit of a class_info/interface_info's
// flags nibble, distinguishing the two shapes (§4.5 Class: "Distinguishing
// interface from class is by the top bit of the flags nibble").
const classFlagACCInterface = 0x8
const classFlagACCRemote = 0x4 // 2.2+, gates remote_interface_info

// SignaturePoolEntry is one entry of the 2.2+ signature pool, a packed type
// descriptor shared by multiple methods (§4.5: "Read the signature pool
// (2.2+)").
type SignaturePoolEntry struct {
	NibbleCountU1 uint8  `json:"nibble_count-u1"`
	Packed        string `json:"packed"`
}

// RemoteInterfaceInfo is present on a class_info entry iff ACC_REMOTE is set
// (2.2+).
type RemoteInterfaceInfo struct {
	RemoteMethodCountU1 uint8    `json:"remote_method_count-u1"`
	ClassReceiverCount  uint8    `json:"class_receiver_count-u1"`
	HashModifierLength  uint8    `json:"hash_modifier_length-u1"`
	HashModifier        string   `json:"hash_modifier"`
}

// InterfaceInfo is one interface_info entry within the Class component.
type InterfaceInfo struct {
	FlagsNibble         uint8    `json:"flags-nibble"`
	InterfaceCountLow   uint8    `json:"interface_count-nibble"`
	Superinterfaces     []string `json:"superinterfaces"`
}

// ClassInfo is one class_info entry within the Class component.
type ClassInfo struct {
	FlagsNibble                   uint8                `json:"flags-nibble"`
	InterfaceCountLow             uint8                `json:"interface_count-nibble"`
	SuperclassRef                 string               `json:"superclass_ref,omitempty"`
	HasSuperclass                 bool                 `json:"has_superclass"`
	DeclaredInstanceSizeU1        uint8                `json:"declared_instance_size-u1"`
	FirstReferenceTokenU1         uint8                `json:"first_reference_token-u1"`
	ReferenceCountU1              uint8                `json:"reference_count-u1"`
	PublicMethodTableBaseU2       uint16               `json:"public_method_table_base-u2"`
	PublicMethodTableCountU2      uint16               `json:"public_method_table_count-u2"`
	PackageMethodTableBaseU2      uint16               `json:"package_method_table_base-u2"`
	PackageMethodTableCountU2     uint16               `json:"package_method_table_count-u2"`
	PublicVirtualMethodTable      []uint16             `json:"public_virtual_method_table"`
	PackageVirtualMethodTable     []uint16             `json:"package_virtual_method_table"`
	Interfaces                    []string             `json:"implemented_interfaces"`
	RemoteInterface                *RemoteInterfaceInfo `json:"remote_interface_info,omitempty"`
	// 2.3+ only (§4.5): a method token remap plus a count of how many of
	// this class's inherited public methods are token-addressable.
	PublicVirtualMethodTokenMappingU1  uint8 `json:"public_virtual_method_token_mapping-u1,omitempty"`
	InheritablePublicMethodTokenCountU1 uint8 `json:"inheritable_public_method_token_count-u1,omitempty"`
}

// ClassRecord is the parsed form of the Class component (§3.4, §4.5).
type ClassRecord struct {
	RawPair
	SignaturePool []SignaturePoolEntry `json:"signature_pool,omitempty"`
	Interfaces    []InterfaceInfo      `json:"interfaces,omitempty"`
	Classes       []ClassInfo          `json:"classes,omitempty"`
}

// decodeClass parses the Class component. Per §4.5 this component has no
// per-entry length prefix, so a short read propagates as a
// TruncatedComponent error for the whole component rather than a localized
// per-entry warning -- there is no way to resynchronize. The one exception is
// the pair of 2.3 trailing bytes at the end of a class_info: if they are
// missing, a TagMismatch warning is recorded and decoding stops at the end
// of the blob.
func decodeClass(blob []byte, v FormatVersion, diags *Diagnostics) (*ClassRecord, error) {
	r := newReader(blob)
	rec := &ClassRecord{RawPair: rawPairFor(blob)}

	if v.AtLeast(Version22) {
		count, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("class: signature_pool count: %w", err)
		}
		for i := uint8(0); i < count; i++ {
			nibbleCount, packed, err := r.typeDescriptor()
			if err != nil {
				return nil, fmt.Errorf("class: signature_pool[%d]: %w", i, err)
			}
			rec.SignaturePool = append(rec.SignaturePool, SignaturePoolEntry{
				NibbleCountU1: nibbleCount,
				Packed:        encodeHex(packed),
			})
		}
	}

	for r.remaining() > 0 {
		flagsByte, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("class: entry flags: %w", err)
		}
		hi, lo := flagNibble(flagsByte)

		if hi&classFlagACCInterface != 0 {
			ifc := InterfaceInfo{FlagsNibble: hi, InterfaceCountLow: lo}
			for i := uint8(0); i < lo; i++ {
				ref, err := r.classRef()
				if err != nil {
					return nil, fmt.Errorf("class: interfaces[%d]: superinterfaces[%d]: %w", len(rec.Interfaces), i, err)
				}
				ifc.Superinterfaces = append(ifc.Superinterfaces, renderClassRef(ref))
			}
			rec.Interfaces = append(rec.Interfaces, ifc)
			continue
		}

		ci := ClassInfo{FlagsNibble: hi, InterfaceCountLow: lo}
		// A superclass_ref is absent for java.lang.Object itself; this codec
		// treats the raw bytes 0xFF 0xFF (which decode as an external
		// reference with PackageToken=0x7f, ClassToken=0xff) as the "no
		// superclass" sentinel, matching the convention the real format uses.
		ref, err := r.classRef()
		if err != nil {
			return nil, fmt.Errorf("class: classes[%d]: superclass_ref: %w", len(rec.Classes), err)
		}
		if ref.External && ref.PackageToken == 0x7f && ref.ClassToken == 0xff {
			ci.HasSuperclass = false
		} else {
			ci.HasSuperclass = true
			ci.SuperclassRef = renderClassRef(ref)
		}

		if ci.DeclaredInstanceSizeU1, err = r.u1(); err != nil {
			return nil, fmt.Errorf("class: classes[%d]: declared_instance_size: %w", len(rec.Classes), err)
		}
		if ci.FirstReferenceTokenU1, err = r.u1(); err != nil {
			return nil, fmt.Errorf("class: classes[%d]: first_reference_token: %w", len(rec.Classes), err)
		}
		if ci.ReferenceCountU1, err = r.u1(); err != nil {
			return nil, fmt.Errorf("class: classes[%d]: reference_count: %w", len(rec.Classes), err)
		}
		if ci.PublicMethodTableBaseU2, err = r.u2(); err != nil {
			return nil, fmt.Errorf("class: classes[%d]: public_method_table_base: %w", len(rec.Classes), err)
		}
		if ci.PublicMethodTableCountU2, err = r.u2(); err != nil {
			return nil, fmt.Errorf("class: classes[%d]: public_method_table_count: %w", len(rec.Classes), err)
		}
		if ci.PackageMethodTableBaseU2, err = r.u2(); err != nil {
			return nil, fmt.Errorf("class: classes[%d]: package_method_table_base: %w", len(rec.Classes), err)
		}
		if ci.PackageMethodTableCountU2, err = r.u2(); err != nil {
			return nil, fmt.Errorf("class: classes[%d]: package_method_table_count: %w", len(rec.Classes), err)
		}
		for i := uint16(0); i < ci.PublicMethodTableCountU2; i++ {
			slot, err := r.u2()
			if err != nil {
				return nil, fmt.Errorf("class: classes[%d]: public_virtual_method_table[%d]: %w", len(rec.Classes), i, err)
			}
			ci.PublicVirtualMethodTable = append(ci.PublicVirtualMethodTable, slot)
		}
		for i := uint16(0); i < ci.PackageMethodTableCountU2; i++ {
			slot, err := r.u2()
			if err != nil {
				return nil, fmt.Errorf("class: classes[%d]: package_virtual_method_table[%d]: %w", len(rec.Classes), i, err)
			}
			ci.PackageVirtualMethodTable = append(ci.PackageVirtualMethodTable, slot)
		}
		for i := uint8(0); i < lo; i++ {
			ref, err := r.classRef()
			if err != nil {
				return nil, fmt.Errorf("class: classes[%d]: implemented_interfaces[%d]: %w", len(rec.Classes), i, err)
			}
			ci.Interfaces = append(ci.Interfaces, renderClassRef(ref))
		}
		if v.AtLeast(Version22) && hi&classFlagACCRemote != 0 {
			var rem RemoteInterfaceInfo
			if rem.RemoteMethodCountU1, err = r.u1(); err != nil {
				return nil, fmt.Errorf("class: classes[%d]: remote_interface_info: remote_method_count: %w", len(rec.Classes), err)
			}
			// remote_methods table omitted from the parsed form; bytes
			// still live untouched inside raw/raw_modified (Shallow mode).
			if _, err := r.bytesN(int(rem.RemoteMethodCountU1) * 2); err != nil {
				return nil, fmt.Errorf("class: classes[%d]: remote_interface_info: remote_methods: %w", len(rec.Classes), err)
			}
			if rem.ClassReceiverCount, err = r.u1(); err != nil {
				return nil, fmt.Errorf("class: classes[%d]: remote_interface_info: class_receiver_count: %w", len(rec.Classes), err)
			}
			if rem.HashModifierLength, err = r.u1(); err != nil {
				return nil, fmt.Errorf("class: classes[%d]: remote_interface_info: hash_modifier_length: %w", len(rec.Classes), err)
			}
			hm, err := r.bytesN(int(rem.HashModifierLength))
			if err != nil {
				return nil, fmt.Errorf("class: classes[%d]: remote_interface_info: hash_modifier: %w", len(rec.Classes), err)
			}
			rem.HashModifier = encodeHex(hm)
			ci.RemoteInterface = &rem
		}
		if v.AtLeast(Version23) {
			// public_virtual_method_token_mapping and
			// CAP22_inheritable_public_method_token_count: one byte each
			// per §4.5's listed 2.3 additions; both must be consumed in
			// order or every subsequent class_info entry decodes one byte
			// out of alignment.
			if ci.PublicVirtualMethodTokenMappingU1, err = r.u1(); err != nil {
				diags.Warn(DiagTagMismatch, "Class", "classes[%d]: missing 2.3 public_virtual_method_token_mapping byte", len(rec.Classes))
			}
			if ci.InheritablePublicMethodTokenCountU1, err = r.u1(); err != nil {
				diags.Warn(DiagTagMismatch, "Class", "classes[%d]: missing 2.3 inheritable_public_method_token_count byte", len(rec.Classes))
			}
		}

		rec.Classes = append(rec.Classes, ci)
	}
	return rec, nil
}

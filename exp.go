// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// expMagic is the EXP file's leading 4-byte magic (§6.3), distinct from the
// Header component's magic used inside a CAP envelope.
const expMagic uint32 = 0x00FACADE

// ExpConstantPoolTag identifies the kind of one EXP constant pool entry
// (§6.3: "constant pool tags {1=Utf8, 3=Integer, 7=ClassRef, 13=Package}").
type ExpConstantPoolTag uint8

const (
	ExpTagUtf8     ExpConstantPoolTag = 1
	ExpTagInteger  ExpConstantPoolTag = 3
	ExpTagClassRef ExpConstantPoolTag = 7
	ExpTagPackage  ExpConstantPoolTag = 13
)

func (t ExpConstantPoolTag) String() string {
	switch t {
	case ExpTagUtf8:
		return "Utf8"
	case ExpTagInteger:
		return "Integer"
	case ExpTagClassRef:
		return "ClassRef"
	case ExpTagPackage:
		return "Package"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// ExpConstantPoolEntry is one tagged entry of the EXP constant pool. Only
// the fields relevant to its tag are populated; this mirrors the way
// ConstantPoolEntry (the CAP-side equivalent, §4.5) carries a tag plus a
// handful of tag-dependent fields rather than one struct per kind.
type ExpConstantPoolEntry struct {
	TagU1 uint8  `json:"tag-u1"`
	Kind  string `json:"kind"`

	// Utf8
	Utf8Value string `json:"utf8_value,omitempty"`

	// Integer
	IntegerValueU4 uint32 `json:"integer_value-u4,omitempty"`

	// ClassRef
	ClassRefPackageTokenU1 uint8 `json:"class_ref_package_token-u1,omitempty"`
	ClassRefClassTokenU1   uint8 `json:"class_ref_class_token-u1,omitempty"`

	// Package
	PackageAID          string `json:"package_aid,omitempty"`
	PackageMinorVersion uint8  `json:"package_minor_version-u1,omitempty"`
	PackageMajorVersion uint8  `json:"package_major_version-u1,omitempty"`
}

// ExpReferencedPackage is one entry of the optional 2.3+ referenced-packages
// list (§4.7): the same minor/major/AID shape as a CAP Import entry, naming
// a package this export file's ClassRef entries may point into.
type ExpReferencedPackage struct {
	MinorVersionU1 uint8  `json:"minor_version-u1"`
	MajorVersionU1 uint8  `json:"major_version-u1"`
	AID            string `json:"aid"`
}

// ExpFieldInfo is one field_info entry of an export class_info (§6.3).
type ExpFieldInfo struct {
	TokenU1       uint8  `json:"token-u1"`
	AccessFlagsU1 uint8  `json:"access_flags-u1"`
	NibbleCountU1 uint8  `json:"nibble_count-u1"`
	TypeDescriptor string `json:"type_descriptor"`
}

// ExpMethodInfo is one method_info entry of an export class_info.
type ExpMethodInfo struct {
	TokenU1        uint8  `json:"token-u1"`
	AccessFlagsU1  uint8  `json:"access_flags-u1"`
	NibbleCountU1  uint8  `json:"nibble_count-u1"`
	TypeDescriptor string `json:"type_descriptor"`
}

// ExpClassInfo is one class_info entry: the externally-visible shape of a
// package's class, as published for other packages' linkers to consume.
type ExpClassInfo struct {
	ClassRef        string          `json:"class_ref"`
	TokenU1         uint8           `json:"token-u1"`
	AccessFlagsU1   uint8           `json:"access_flags-u1"`
	InterfaceCountU1 uint8          `json:"interface_count-u1"`
	Interfaces      []string        `json:"interfaces"`
	FieldCountU2    uint16          `json:"field_count-u2"`
	Fields          []ExpFieldInfo  `json:"fields"`
	MethodCountU2   uint16          `json:"method_count-u2"`
	Methods         []ExpMethodInfo `json:"methods"`
}

// ExpFile is a decoded EXP file, the §4.7/§6.3 flat sibling of CapFile. An
// EXP file bypasses the envelope layer entirely (§4.1): the whole file is
// one component blob, so there's no Directory cross-check or per-component
// tag/size split to perform. The file carries a single whole-file
// raw/raw_modified pair rather than one per component: Encode emits
// raw_modified, else raw, and re-serializes the parsed fields only when both
// are empty.
type ExpFile struct {
	RawPair
	MinorVersionU1        uint8                  `json:"minor_version-u1"`
	MajorVersionU1        uint8                  `json:"major_version-u1"`
	ConstantPool          []ExpConstantPoolEntry `json:"constant_pool"`
	ThisPackageU2         uint16                 `json:"this_package-u2"`
	ReferencedPackages    []ExpReferencedPackage `json:"referenced_packages,omitempty"`
	Classes               []ExpClassInfo         `json:"classes"`
	Diagnostics           []Diagnostic           `json:"_diagnostics,omitempty"`

	data   []byte
	mapped mmap.MMap
	f      *os.File
	opts   *Options
	diags  Diagnostics
}

// OpenExp memory-maps an EXP file by name and decodes it, mirroring Open.
func OpenExp(name string, opts *Options) (*ExpFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	ef := newExpFile(data, opts)
	ef.f = f
	ef.mapped = data
	if err := ef.decode(); err != nil {
		ef.Close()
		return nil, err
	}
	return ef, nil
}

// OpenExpBytes decodes an EXP file already resident in memory, mirroring
// OpenBytes.
func OpenExpBytes(data []byte, opts *Options) (*ExpFile, error) {
	ef := newExpFile(data, opts)
	if err := ef.decode(); err != nil {
		return nil, err
	}
	return ef, nil
}

func newExpFile(data []byte, opts *Options) *ExpFile {
	if opts == nil {
		opts = &Options{}
	}
	return &ExpFile{data: data, opts: opts}
}

// Close releases the memory mapping, if OpenExp (rather than OpenExpBytes)
// produced this ExpFile.
func (e *ExpFile) Close() error {
	var err error
	if e.mapped != nil {
		err = e.mapped.Unmap()
	}
	if e.f != nil {
		if cerr := e.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (e *ExpFile) decode() error {
	r := newReader(e.data)
	e.RawPair = rawPairFor(e.data)

	magic, err := r.u4()
	if err != nil {
		return fmt.Errorf("%w: exp magic: %v", ErrTruncatedComponent, err)
	}
	if magic != expMagic {
		e.diags.Warn(DiagTagMismatch, "Exp", "magic %#08x does not match expected %#08x", magic, expMagic)
	}

	if e.MinorVersionU1, err = r.u1(); err != nil {
		return fmt.Errorf("exp: minor_version: %w", err)
	}
	if e.MajorVersionU1, err = r.u1(); err != nil {
		return fmt.Errorf("exp: major_version: %w", err)
	}
	version := FormatVersion{Major: e.MajorVersionU1, Minor: e.MinorVersionU1}
	if !version.Supported() {
		// As in the CAP coordinator, the referenced-packages read below
		// branches on version.AtLeast(Version23); an unrecognized
		// version makes that dispatch nonsense rather than something
		// tolerant decode can shrug off (§7).
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}

	poolCount, err := r.u2()
	if err != nil {
		return fmt.Errorf("exp: constant_pool_count: %w", err)
	}
	for i := uint16(0); i < poolCount; i++ {
		entry, err := decodeExpConstantPoolEntry(r, &e.diags, i)
		if err != nil {
			return fmt.Errorf("exp: constant_pool[%d]: %w", i, err)
		}
		e.ConstantPool = append(e.ConstantPool, entry)
	}

	if e.ThisPackageU2, err = r.u2(); err != nil {
		return fmt.Errorf("exp: this_package: %w", err)
	}
	if int(e.ThisPackageU2) >= len(e.ConstantPool) {
		e.diags.Warn(DiagInvariantViolation, "Exp", "this_package index %d is out of constant_pool bounds (%d entries)", e.ThisPackageU2, len(e.ConstantPool))
	} else if e.ConstantPool[e.ThisPackageU2].TagU1 != uint8(ExpTagPackage) {
		e.diags.Warn(DiagInvariantViolation, "Exp", "this_package index %d does not name a Package constant pool entry", e.ThisPackageU2)
	}

	if version.AtLeast(Version23) {
		refCount, err := r.u1()
		if err != nil {
			return fmt.Errorf("exp: referenced_package_count: %w", err)
		}
		for i := uint8(0); i < refCount; i++ {
			var ref ExpReferencedPackage
			if ref.MinorVersionU1, err = r.u1(); err != nil {
				return fmt.Errorf("exp: referenced_packages[%d]: minor_version: %w", i, err)
			}
			if ref.MajorVersionU1, err = r.u1(); err != nil {
				return fmt.Errorf("exp: referenced_packages[%d]: major_version: %w", i, err)
			}
			aid, err := r.aid()
			if err != nil {
				return fmt.Errorf("exp: referenced_packages[%d]: aid: %w", i, err)
			}
			ref.AID = encodeHex(aid)
			e.ReferencedPackages = append(e.ReferencedPackages, ref)
		}
	}

	classCount, err := r.u2()
	if err != nil {
		return fmt.Errorf("exp: class_count: %w", err)
	}
	for i := uint16(0); i < classCount; i++ {
		class, err := decodeExpClassInfo(r, i)
		if err != nil {
			return err
		}
		e.Classes = append(e.Classes, class)
	}

	e.Diagnostics = e.diags.All()
	return nil
}

func decodeExpConstantPoolEntry(r *reader, diags *Diagnostics, index uint16) (ExpConstantPoolEntry, error) {
	var entry ExpConstantPoolEntry
	tag, err := r.u1()
	if err != nil {
		return entry, fmt.Errorf("tag: %w", err)
	}
	entry.TagU1 = tag
	entry.Kind = ExpConstantPoolTag(tag).String()

	switch ExpConstantPoolTag(tag) {
	case ExpTagUtf8:
		n, err := r.u2()
		if err != nil {
			return entry, fmt.Errorf("utf8 length: %w", err)
		}
		b, err := r.bytesN(int(n))
		if err != nil {
			return entry, fmt.Errorf("utf8 bytes: %w", err)
		}
		if err := validateModifiedUTF8(b); err != nil {
			// Non-conformant Utf8Info bytes are recorded verbatim rather than
			// rejected outright -- §7's tolerant-decode policy extends to the
			// EXP constant pool the same as to CAP components.
			diags.Warn(DiagInvariantViolation, "Exp", "constant_pool[%d]: %v", index, err)
		}
		entry.Utf8Value = string(b)
	case ExpTagInteger:
		v, err := r.u4()
		if err != nil {
			return entry, fmt.Errorf("integer value: %w", err)
		}
		entry.IntegerValueU4 = v
	case ExpTagClassRef:
		pkgTok, err := r.u1()
		if err != nil {
			return entry, fmt.Errorf("class_ref package_token: %w", err)
		}
		classTok, err := r.u1()
		if err != nil {
			return entry, fmt.Errorf("class_ref class_token: %w", err)
		}
		entry.ClassRefPackageTokenU1 = pkgTok
		entry.ClassRefClassTokenU1 = classTok
	case ExpTagPackage:
		aid, err := r.aid()
		if err != nil {
			return entry, fmt.Errorf("package aid: %w", err)
		}
		entry.PackageAID = encodeHex(aid)
		if entry.PackageMinorVersion, err = r.u1(); err != nil {
			return entry, fmt.Errorf("package minor_version: %w", err)
		}
		if entry.PackageMajorVersion, err = r.u1(); err != nil {
			return entry, fmt.Errorf("package major_version: %w", err)
		}
	default:
		return entry, fmt.Errorf("unknown constant pool tag %d", tag)
	}
	return entry, nil
}

func decodeExpClassInfo(r *reader, index uint16) (ExpClassInfo, error) {
	var ci ExpClassInfo
	ref, err := r.classRef()
	if err != nil {
		return ci, fmt.Errorf("exp: classes[%d]: class_ref: %w", index, err)
	}
	ci.ClassRef = renderClassRef(ref)

	if ci.TokenU1, err = r.u1(); err != nil {
		return ci, fmt.Errorf("exp: classes[%d]: token: %w", index, err)
	}
	if ci.AccessFlagsU1, err = r.u1(); err != nil {
		return ci, fmt.Errorf("exp: classes[%d]: access_flags: %w", index, err)
	}
	if ci.InterfaceCountU1, err = r.u1(); err != nil {
		return ci, fmt.Errorf("exp: classes[%d]: interface_count: %w", index, err)
	}
	for i := uint8(0); i < ci.InterfaceCountU1; i++ {
		iref, err := r.classRef()
		if err != nil {
			return ci, fmt.Errorf("exp: classes[%d]: interfaces[%d]: %w", index, i, err)
		}
		ci.Interfaces = append(ci.Interfaces, renderClassRef(iref))
	}

	if ci.FieldCountU2, err = r.u2(); err != nil {
		return ci, fmt.Errorf("exp: classes[%d]: field_count: %w", index, err)
	}
	for i := uint16(0); i < ci.FieldCountU2; i++ {
		var fi ExpFieldInfo
		if fi.TokenU1, err = r.u1(); err != nil {
			return ci, fmt.Errorf("exp: classes[%d]: fields[%d]: token: %w", index, i, err)
		}
		if fi.AccessFlagsU1, err = r.u1(); err != nil {
			return ci, fmt.Errorf("exp: classes[%d]: fields[%d]: access_flags: %w", index, i, err)
		}
		nibbleCount, packed, err := r.typeDescriptor()
		if err != nil {
			return ci, fmt.Errorf("exp: classes[%d]: fields[%d]: type_descriptor: %w", index, i, err)
		}
		fi.NibbleCountU1 = nibbleCount
		fi.TypeDescriptor = encodeHex(packed)
		ci.Fields = append(ci.Fields, fi)
	}

	if ci.MethodCountU2, err = r.u2(); err != nil {
		return ci, fmt.Errorf("exp: classes[%d]: method_count: %w", index, err)
	}
	for i := uint16(0); i < ci.MethodCountU2; i++ {
		var mi ExpMethodInfo
		if mi.TokenU1, err = r.u1(); err != nil {
			return ci, fmt.Errorf("exp: classes[%d]: methods[%d]: token: %w", index, i, err)
		}
		if mi.AccessFlagsU1, err = r.u1(); err != nil {
			return ci, fmt.Errorf("exp: classes[%d]: methods[%d]: access_flags: %w", index, i, err)
		}
		nibbleCount, packed, err := r.typeDescriptor()
		if err != nil {
			return ci, fmt.Errorf("exp: classes[%d]: methods[%d]: type_descriptor: %w", index, i, err)
		}
		mi.NibbleCountU1 = nibbleCount
		mi.TypeDescriptor = encodeHex(packed)
		ci.Methods = append(ci.Methods, mi)
	}
	return ci, nil
}

// Encode emits the whole-file RawPair through the same resolveBytes contract
// every CAP component record follows: raw_modified (normalized) if set, else
// raw. Decode fills raw with the file's own bytes, so an unedited ExpFile
// encodes to exactly those bytes. Only when both are empty does Encode
// rebuild the file from its parsed fields (ConstantPool, Classes, ...).
func (e *ExpFile) Encode() ([]byte, error) {
	if e.RawModified != "" || e.Raw != "" {
		return e.RawPair.resolveBytes("Exp")
	}

	w := newWriter()
	w.u4(expMagic)
	w.u1(e.MinorVersionU1)
	w.u1(e.MajorVersionU1)
	w.u2(uint16(len(e.ConstantPool)))
	for _, entry := range e.ConstantPool {
		if err := encodeExpConstantPoolEntry(w, entry); err != nil {
			return nil, err
		}
	}
	w.u2(e.ThisPackageU2)

	version := FormatVersion{Major: e.MajorVersionU1, Minor: e.MinorVersionU1}
	if version.AtLeast(Version23) {
		w.u1(uint8(len(e.ReferencedPackages)))
		for _, ref := range e.ReferencedPackages {
			w.u1(ref.MinorVersionU1)
			w.u1(ref.MajorVersionU1)
			aid, err := decodeRawHex("Exp", ref.AID)
			if err != nil {
				return nil, fmt.Errorf("encoding referenced_packages: %w", err)
			}
			w.aid(aid)
		}
	}

	w.u2(uint16(len(e.Classes)))
	for _, class := range e.Classes {
		if err := encodeExpClassInfo(w, class); err != nil {
			return nil, err
		}
	}
	return w.bytesOut(), nil
}

func encodeExpConstantPoolEntry(w *writer, entry ExpConstantPoolEntry) error {
	w.u1(entry.TagU1)
	switch ExpConstantPoolTag(entry.TagU1) {
	case ExpTagUtf8:
		w.u2(uint16(len(entry.Utf8Value)))
		w.bytes([]byte(entry.Utf8Value))
	case ExpTagInteger:
		w.u4(entry.IntegerValueU4)
	case ExpTagClassRef:
		w.u1(entry.ClassRefPackageTokenU1)
		w.u1(entry.ClassRefClassTokenU1)
	case ExpTagPackage:
		aid, err := decodeRawHex("Exp", entry.PackageAID)
		if err != nil {
			return fmt.Errorf("encoding constant_pool package entry: %w", err)
		}
		w.aid(aid)
		w.u1(entry.PackageMinorVersion)
		w.u1(entry.PackageMajorVersion)
	default:
		return fmt.Errorf("cap: unknown exp constant pool tag %d", entry.TagU1)
	}
	return nil
}

func encodeExpClassInfo(w *writer, ci ExpClassInfo) error {
	ref, err := parseClassRef(ci.ClassRef)
	if err != nil {
		return fmt.Errorf("encoding class_ref: %w", err)
	}
	enc := ref.encode()
	w.bytes(enc[:])
	w.u1(ci.TokenU1)
	w.u1(ci.AccessFlagsU1)
	w.u1(uint8(len(ci.Interfaces)))
	for _, iface := range ci.Interfaces {
		iref, err := parseClassRef(iface)
		if err != nil {
			return fmt.Errorf("encoding interface ref: %w", err)
		}
		ienc := iref.encode()
		w.bytes(ienc[:])
	}
	w.u2(uint16(len(ci.Fields)))
	for _, f := range ci.Fields {
		w.u1(f.TokenU1)
		w.u1(f.AccessFlagsU1)
		packed, err := decodeRawHex("Exp", f.TypeDescriptor)
		if err != nil {
			return fmt.Errorf("encoding field type_descriptor: %w", err)
		}
		w.u1(f.NibbleCountU1)
		w.bytes(packed)
	}
	w.u2(uint16(len(ci.Methods)))
	for _, m := range ci.Methods {
		w.u1(m.TokenU1)
		w.u1(m.AccessFlagsU1)
		packed, err := decodeRawHex("Exp", m.TypeDescriptor)
		if err != nil {
			return fmt.Errorf("encoding method type_descriptor: %w", err)
		}
		w.u1(m.NibbleCountU1)
		w.bytes(packed)
	}
	return nil
}

// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

// Package cap implements a bidirectional codec for Java Card CAP and EXP
// files: the binary container formats used to deploy compiled bytecode,
// metadata, linkage tables and resources onto a Java Card Virtual Machine.
//
// The codec decodes a CAP archive or a flat EXP file into a structured,
// human-editable intermediate form, and re-serializes that form back into
// bytes. Shallow mode (the only mode this package implements) guarantees
// that a decode-then-encode with no edits reproduces the original bytes
// exactly: every component record carries its own exact source bytes and
// encode emits those bytes verbatim unless the caller supplied an override.
package cap

import "fmt"

// FormatVersion identifies one of the three CAP/EXP format generations this
// codec understands.
type FormatVersion struct {
	Major uint8
	Minor uint8
}

// Supported format generations, oldest first.
var (
	Version21 = FormatVersion{Major: 2, Minor: 1}
	Version22 = FormatVersion{Major: 2, Minor: 2}
	Version23 = FormatVersion{Major: 2, Minor: 3}
)

// String renders a FormatVersion as "major.minor".
func (v FormatVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Supported reports whether v is one of the three generations this codec
// understands.
func (v FormatVersion) Supported() bool {
	return v == Version21 || v == Version22 || v == Version23
}

// AtLeast reports whether v is the same as, or newer than, other.
func (v FormatVersion) AtLeast(other FormatVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

// ComponentTag identifies the kind of a CAP component, matching the leading
// tag byte of its on-disk TLV encoding (§3.2).
type ComponentTag uint8

// Standard component tags, per §6.1. Tags 128-255 are reserved for custom,
// vendor-specific components.
const (
	TagHeader           ComponentTag = 1
	TagDirectory        ComponentTag = 2
	TagApplet           ComponentTag = 3
	TagImport           ComponentTag = 4
	TagConstantPool     ComponentTag = 5
	TagClass            ComponentTag = 6
	TagMethod           ComponentTag = 7
	TagStaticField      ComponentTag = 8
	TagRefLocation      ComponentTag = 9
	TagExport           ComponentTag = 10
	TagDescriptor       ComponentTag = 11
	TagDebug            ComponentTag = 12
	TagStaticResources  ComponentTag = 13
	TagCustomRangeStart ComponentTag = 128
	TagCustomRangeEnd   ComponentTag = 255
)

// IsCustom reports whether t falls in the vendor-reserved custom range.
func (t ComponentTag) IsCustom() bool {
	return t >= TagCustomRangeStart && t <= TagCustomRangeEnd
}

// String returns the component's canonical base filename, e.g. "Header" for
// TagHeader. Unknown/custom tags return "".
func (t ComponentTag) String() string {
	if name, ok := componentNameByTag[t]; ok {
		return name
	}
	return ""
}

// sizeWidth describes whether a component's leading size field is a u2 or a
// u4, which depends on both the component kind and the Compact/Extended
// choice recorded in Header.Flags (§6.1).
type sizeWidth int

const (
	widthCompactOnly sizeWidth = iota // always u2, regardless of Extended
	widthExtendedAware                // u2 in Compact, u4 in Extended
	widthLongAlways                   // always u4 (StaticResources)
)

// componentSpec is one row of the §6.1 canonical layout table.
type componentSpec struct {
	order      int
	tag        ComponentTag
	name       string
	mandatory  bool // present in every well-formed CAP regardless of flags
	conditional string // english description of the condition, for diagnostics
	width      sizeWidth
}

// canonicalOrder lists every standard component in CAP install order. The
// coordinator replays this order on encode and uses it to validate the
// Directory component on decode.
var canonicalOrder = []componentSpec{
	{1, TagHeader, "Header", true, "", widthCompactOnly},
	{2, TagDirectory, "Directory", true, "", widthCompactOnly},
	{3, TagImport, "Import", true, "", widthCompactOnly},
	{4, TagApplet, "Applet", false, "Header.APPLET", widthCompactOnly},
	{5, TagClass, "Class", true, "", widthCompactOnly},
	{6, TagMethod, "Method", true, "", widthExtendedAware},
	{7, TagStaticField, "StaticField", true, "", widthCompactOnly},
	{8, TagExport, "Export", false, "Header.EXPORT", widthCompactOnly},
	{9, TagConstantPool, "ConstantPool", true, "", widthCompactOnly},
	{10, TagRefLocation, "RefLocation", true, "", widthExtendedAware},
	{11, TagStaticResources, "StaticResources", false, "2.3+, has resources", widthLongAlways},
	{12, TagDescriptor, "Descriptor", true, "", widthExtendedAware},
	{13, TagDebug, "Debug", false, "off-card, optional", widthExtendedAware},
}

var componentNameByTag = func() map[ComponentTag]string {
	m := make(map[ComponentTag]string, len(canonicalOrder))
	for _, c := range canonicalOrder {
		m[c.tag] = c.name
	}
	return m
}()

var componentSpecByName = func() map[string]componentSpec {
	m := make(map[string]componentSpec, len(canonicalOrder))
	for _, c := range canonicalOrder {
		m[c.name] = c
	}
	return m
}()

// HeaderFlag is one bit of the Header component's flags byte (§3.4).
type HeaderFlag uint8

// Header flag bits.
const (
	FlagInt      HeaderFlag = 0x01 // package contains at least one integer-using class
	FlagExport   HeaderFlag = 0x02 // Export component present
	FlagApplet   HeaderFlag = 0x04 // Applet component present
	FlagExtended HeaderFlag = 0x08 // Method/RefLocation/Descriptor/Debug/custom use long-size form
)

var headerFlagNames = []struct {
	bit  HeaderFlag
	name string
}{
	{FlagInt, "INT"},
	{FlagExport, "EXPORT"},
	{FlagApplet, "APPLET"},
	{FlagExtended, "EXTENDED"},
}

// Names decodes a flags byte into the set of flag names it carries, in bit
// order, for use in the intermediate form.
func (f HeaderFlag) Names() []string {
	var names []string
	for _, e := range headerFlagNames {
		if f&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	return names
}

// Has reports whether bit is set in f.
func (f HeaderFlag) Has(bit HeaderFlag) bool {
	return f&bit != 0
}

// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

// Synthetic fixture builders. The real helloworldPackage_<ver>.{cap,exp}
// fixtures this format's conformance scenarios are framed against aren't
// vendored into this repository, so these helpers assemble the smallest
// well-formed CAP archive this codec's own writer/reader pair agrees on:
// every mandatory component present with zero entries, every conditional
// component absent. That's enough to exercise the envelope/coordinator
// round-trip without needing a real compiled Java Card package on disk.

func u2be(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

// minimalHeaderInfo builds a Header component's info bytes: magic, 2.1
// version, no flags set, package AID 44 44 44 44 44, no package name.
func minimalHeaderInfo() []byte {
	var b []byte
	b = append(b, 0xDE, 0xCA, 0xFF, 0xED) // magic
	b = append(b, 0x01, 0x02)             // minor=1, major=2 -> Version21
	b = append(b, 0x00)                   // flags
	b = append(b, 0x00, 0x01)             // package minor/major
	b = append(b, 0x05)                   // aid length
	b = append(b, 0x44, 0x44, 0x44, 0x44, 0x44)
	return b
}

// minimalComponentInfos returns each mandatory component's zero-entry info
// bytes, keyed by canonical component name, plus the optional components
// absent (zero length, not present as an envelope entry at all).
func minimalComponentInfos() map[string][]byte {
	return map[string][]byte{
		"Import":       {0x00},                                     // count=0
		"Class":        {},                                         // no entries
		"Method":       {0x00},                                     // handler_count=0
		"StaticField":  append(append(append(append(append([]byte{}, u2be(0)...), u2be(0)...), u2be(0)...), u2be(0)...), u2be(0)...),
		"ConstantPool": u2be(0),
		"RefLocation":  append(u2be(0), u2be(0)...),
		"Descriptor":   append(u2be(0), u2be(0)...),
	}
}

// buildMinimalCapBytes assembles a complete, well-formed CAP archive (2.1,
// Compact form, no optional components) using this package's own envelope
// writer, so the fixture is guaranteed self-consistent with the reader.
func buildMinimalCapBytes() ([]byte, error) {
	headerInfo := minimalHeaderInfo()
	infos := minimalComponentInfos()

	present := []string{"Import", "Class", "Method", "StaticField", "ConstantPool", "RefLocation", "Descriptor"}
	// directorySelfSize is Directory's own info length with zero custom
	// components: 13 two-byte component_sizes rows, plus five fixed fields
	// (static_field_image_size, static_field_reference_count, import_count,
	// applet_count, custom_count). Directory's row for itself is filled in
	// with this constant rather than computed after the fact, since the
	// table's byte length doesn't depend on the values it holds.
	const directorySelfSize = uint16(len(canonicalOrder))*2 + 2 + 2 + 1 + 1 + 1
	sizeOf := func(name string) uint16 {
		switch name {
		case "Header":
			return uint16(len(headerInfo))
		case "Directory":
			return directorySelfSize
		default:
			if b, ok := infos[name]; ok {
				return uint16(len(b))
			}
			return 0
		}
	}

	// Directory's component_sizes table walks canonicalOrder in full,
	// including the absent optional components (recorded as size 0).
	var dirInfo []byte
	for _, spec := range canonicalOrder {
		dirInfo = append(dirInfo, u2be(sizeOf(spec.name))...)
	}
	dirInfo = append(dirInfo, u2be(0)...) // static_field_image_size
	dirInfo = append(dirInfo, u2be(0)...) // static_field_reference_count
	dirInfo = append(dirInfo, 0x00)       // import_count (Import component itself carries the real count; Directory's own copy is informational)
	dirInfo = append(dirInfo, 0x00)       // applet_count
	dirInfo = append(dirInfo, 0x00)       // custom_count

	makeEntry := func(name string, tag ComponentTag, info []byte) envelopeEntry {
		var full []byte
		full = append(full, byte(tag))
		full = append(full, u2be(uint16(len(info)))...)
		full = append(full, info...)
		return envelopeEntry{Name: name + ".cap", Data: full}
	}

	entries := []envelopeEntry{
		makeEntry("Header", TagHeader, headerInfo),
		makeEntry("Directory", TagDirectory, dirInfo),
	}
	tagOf := map[string]ComponentTag{
		"Import":       TagImport,
		"Class":        TagClass,
		"Method":       TagMethod,
		"StaticField":  TagStaticField,
		"ConstantPool": TagConstantPool,
		"RefLocation":  TagRefLocation,
		"Descriptor":   TagDescriptor,
	}
	for _, name := range present {
		entries = append(entries, makeEntry(name, tagOf[name], infos[name]))
	}

	return writeCAP(entries)
}

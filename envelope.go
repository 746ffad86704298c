// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
	"strings"
	"time"
)

// envelopeEntry is one named blob inside a CAP archive, before any
// component-layer interpretation (§4.1: "knows nothing of component
// internals"). The fields after Data are the original ZIP entry's container
// metadata, carried so writeCAP can replay an unmodified entry byte-for-byte
// rather than always re-serializing through zip.Writer.Create (§4.2, §8
// properties 1/S2: "encode(decode(B)) == B"). Entries built outside readCAP
// (the synthetic test fixtures, EncodeComponentSet's JSON-only path) simply
// leave these at their zero values, which writeCAP treats as "no original
// container to replay" and falls back to a fresh root-level DEFLATE entry.
type envelopeEntry struct {
	Name string
	Data []byte

	originalName     string    // full path as it appeared in the source ZIP, including any package prefix
	method           uint16    // zip.Store or zip.Deflate, as the source entry used
	modified         time.Time // the source entry's modification time
	rawBytes         []byte    // the entry's exact compressed-or-stored bytes, as read from the source ZIP
	crc32            uint32    // the source entry's CRC-32 of its decompressed Data
	uncompressedSize uint64    // the source entry's declared uncompressed size
}

// standardEntryNames is every filename the envelope layer recognizes without
// consulting the custom-AID convention, built from canonicalOrder plus each
// component's Extended overflow variant.
var standardEntryNames = func() map[string]bool {
	m := make(map[string]bool, len(canonicalOrder)*2)
	for _, c := range canonicalOrder {
		m[c.name+".cap"] = true
		m[c.name+".capx"] = true
	}
	m["Debug.cap"] = true
	m["Debug.capx"] = true
	return m
}()

// isCustomEntryName reports whether name follows the custom-component
// filename convention this codec uses: "Custom-<tag>-<n>.cap" or its
// ".capx" overflow form, where <tag> is the component's tag byte (128-255)
// and <n> disambiguates multiple custom components sharing a tag. Only the
// "Custom-" prefix is checked; the <tag> and <n> parts are not parsed or
// validated (the tag actually used comes from the entry's first byte). There is
// no standardized custom-component filename in the Java Card spec itself
// (custom components are vendor-private); this convention only needs to be
// self-consistent between write_cap and read_cap.
func isCustomEntryName(name string) bool {
	base := strings.TrimSuffix(strings.TrimSuffix(name, ".capx"), ".cap")
	return strings.HasPrefix(base, "Custom-")
}

// readCAP enumerates a CAP archive's entries (§4.1 read_cap). It recognizes
// the fixed component filenames and the custom-component naming convention;
// anything else is ErrUnknownEntry. Archive structure that can't be read at
// all (bad ZIP central directory, etc.) is ErrInvalidEnvelope.
//
// Grounded on the teacher's mmap-based File.New/NewBytes: here the "file" is
// a ZIP archive rather than a flat memory-mapped image, since a CAP file's
// outer container is itself ZIP-like (§3.1), but the ethos -- read once into
// memory, fail fast on structural corruption -- is the same.
func readCAP(data []byte) ([]envelopeEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	entries := make([]envelopeEntry, 0, len(zr.File))
	for _, f := range zr.File {
		name := entryBaseName(f.Name)
		if !standardEntryNames[name] && !isCustomEntryName(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrInvalidEnvelope, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidEnvelope, f.Name, err)
		}

		// Keep the exact compressed-or-stored bytes too, alongside the
		// header fields needed to replay them (Method, Modified, CRC32):
		// writeCAP uses this to reproduce the original entry exactly when
		// its decompressed Data hasn't changed, instead of always
		// re-deflating at the ZIP root under a stripped-down name.
		raw, err := f.OpenRaw()
		if err != nil {
			return nil, fmt.Errorf("%w: opening raw %s: %v", ErrInvalidEnvelope, f.Name, err)
		}
		rawBytes, err := io.ReadAll(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: reading raw %s: %v", ErrInvalidEnvelope, f.Name, err)
		}

		entries = append(entries, envelopeEntry{
			Name:             name,
			Data:             data,
			originalName:     f.Name,
			method:           f.Method,
			modified:         f.Modified,
			rawBytes:         rawBytes,
			crc32:            f.CRC32,
			uncompressedSize: f.UncompressedSize64,
		})
	}
	return entries, nil
}

// entryBaseName strips any package-path directory prefix a real-world CAP's
// ZIP entries carry (e.g. "com/example/javacard/helloworld/javacard/Header.cap"),
// leaving just the component filename the envelope layer matches against.
func entryBaseName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// writeCAP serializes entries into a CAP archive, preserving the caller's
// ordering (§4.1 write_cap). When an entry carries its source ZIP metadata
// (originalName/method/modified, from readCAP) and its Data is unchanged
// from what that entry decompressed to, the entry is replayed via
// CreateRaw with the exact original compressed-or-stored bytes and CRC-32 --
// this is what makes encode(decode(B)) == B byte-for-byte (§8 property 1,
// scenario S2) for a real CAP produced by an actual converter, nested under
// a package path and possibly STORED rather than DEFLATEd. An entry whose
// Data has changed (edited via raw_modified) or that carries no source
// metadata (built directly, e.g. by EncodeComponentSet's JSON-only path)
// falls back to CreateHeader, still preserving Method/Modified/Name when
// they're known rather than always re-deflating a fresh header at the
// ZIP root.
func writeCAP(entries []envelopeEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		name := e.originalName
		if name == "" {
			name = e.Name
		}

		if e.rawBytes != nil && e.crc32 == crc32.ChecksumIEEE(e.Data) {
			fh := &zip.FileHeader{
				Name:               name,
				Method:             e.method,
				Modified:           e.modified,
				CRC32:              e.crc32,
				CompressedSize64:   uint64(len(e.rawBytes)),
				UncompressedSize64: e.uncompressedSize,
			}
			w, err := zw.CreateRaw(fh)
			if err != nil {
				return nil, fmt.Errorf("%w: creating raw entry %s: %v", ErrInvalidEnvelope, name, err)
			}
			if _, err := w.Write(e.rawBytes); err != nil {
				return nil, fmt.Errorf("%w: writing raw entry %s: %v", ErrInvalidEnvelope, name, err)
			}
			continue
		}

		fh := &zip.FileHeader{Name: name, Modified: e.modified}
		if e.originalName != "" {
			fh.Method = e.method
		} else {
			fh.Method = zip.Deflate
		}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			return nil, fmt.Errorf("%w: creating entry %s: %v", ErrInvalidEnvelope, name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("%w: writing entry %s: %v", ErrInvalidEnvelope, name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return buf.Bytes(), nil
}

// sortEntriesCanonical orders entries by canonical component order (§6.1),
// with any custom or unrecognized entries sorted last by name. Used when
// reassembling an archive from a ComponentSet that may have been built or
// edited out of canonical order.
func sortEntriesCanonical(entries []envelopeEntry) {
	rank := func(name string) int {
		base := strings.TrimSuffix(strings.TrimSuffix(name, ".capx"), ".cap")
		if spec, ok := componentSpecByName[base]; ok {
			return spec.order
		}
		return len(canonicalOrder) + 1
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := rank(entries[i].Name), rank(entries[j].Name)
		if ri != rj {
			return ri < rj
		}
		return entries[i].Name < entries[j].Name
	})
}

// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"
)

// Options configures CapFile/ExpFile construction, mirroring the teacher's
// pe.Options. Its only field is an injectable logger.
type Options struct {
	// Logger receives the errors of components the coordinator skips: a
	// component (other than Header and Directory) whose entry can't be split
	// or decoded is logged here and left out of the component set, and a
	// custom entry whose declared size doesn't match is logged here too.
	// Warning-level findings go through Diagnostics instead (§7): they're
	// data about the file, not operational logs.
	Logger log.Logger
}

// CapFile is a decoded CAP archive: the coordinator described in §4.3. It
// owns the component set and the cross-component context (format version,
// Compact/Extended choice) every component decoder was invoked with.
type CapFile struct {
	Components  ComponentSet `json:"components"`
	Version     FormatVersion `json:"version"`
	Extended    bool          `json:"extended"`
	Diagnostics []Diagnostic  `json:"_diagnostics,omitempty"`

	data   []byte
	mapped mmap.MMap
	f      *os.File
	opts   *Options
	logger *log.Helper
	diags  Diagnostics

	// envelopeMeta carries each decoded entry's source ZIP container
	// metadata (original path, compression method, modified time, raw
	// bytes, CRC-32), keyed by component filename. Encode consults it to
	// replay an unmodified component's exact original bytes rather than
	// re-serializing through a fresh root-level DEFLATE entry.
	envelopeMeta map[string]envelopeEntry
}

// Open memory-maps a CAP file by name and decodes it, mirroring the
// teacher's pe.New.
func Open(name string, opts *Options) (*CapFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	cf := newCapFile(data, opts)
	cf.f = f
	cf.mapped = data
	if err := cf.decode(); err != nil {
		cf.Close()
		return nil, err
	}
	return cf, nil
}

// OpenBytes decodes a CAP archive already resident in memory, mirroring the
// teacher's pe.NewBytes.
func OpenBytes(data []byte, opts *Options) (*CapFile, error) {
	cf := newCapFile(data, opts)
	if err := cf.decode(); err != nil {
		return nil, err
	}
	return cf, nil
}

func newCapFile(data []byte, opts *Options) *CapFile {
	if opts == nil {
		opts = &Options{}
	}
	return &CapFile{
		data:   data,
		opts:   opts,
		logger: helperFor(opts.Logger),
	}
}

// Close releases the memory mapping, if Open (rather than OpenBytes)
// produced this CapFile.
func (c *CapFile) Close() error {
	var err error
	if c.mapped != nil {
		err = c.mapped.Unmap()
	}
	if c.f != nil {
		if cerr := c.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// componentDecoder decodes one component's info bytes into its record,
// given the cross-component context already established by Header and
// Directory.
type componentDecoder func(c *CapFile, blob []byte) (any, error)

var componentDecoders = map[ComponentTag]componentDecoder{
	TagHeader: func(c *CapFile, blob []byte) (any, error) {
		return decodeHeader(blob, &c.diags)
	},
	TagDirectory: func(c *CapFile, blob []byte) (any, error) {
		return decodeDirectory(blob, &c.diags)
	},
	TagImport: func(c *CapFile, blob []byte) (any, error) {
		return decodeImport(blob, &c.diags)
	},
	TagApplet: func(c *CapFile, blob []byte) (any, error) {
		return decodeApplet(blob, &c.diags)
	},
	TagClass: func(c *CapFile, blob []byte) (any, error) {
		return decodeClass(blob, c.Version, &c.diags)
	},
	TagMethod: func(c *CapFile, blob []byte) (any, error) {
		return decodeMethod(blob, c.Extended, &c.diags)
	},
	TagStaticField: func(c *CapFile, blob []byte) (any, error) {
		return decodeStaticField(blob, &c.diags)
	},
	TagExport: func(c *CapFile, blob []byte) (any, error) {
		return decodeExport(blob, &c.diags)
	},
	TagConstantPool: func(c *CapFile, blob []byte) (any, error) {
		return decodeConstantPool(blob, &c.diags)
	},
	TagRefLocation: func(c *CapFile, blob []byte) (any, error) {
		return decodeRefLocation(blob, &c.diags)
	},
	TagStaticResources: func(c *CapFile, blob []byte) (any, error) {
		return decodeStaticResources(blob, &c.diags)
	},
	TagDescriptor: func(c *CapFile, blob []byte) (any, error) {
		return decodeDescriptor(blob, &c.diags)
	},
	TagDebug: func(c *CapFile, blob []byte) (any, error) {
		return decodeDebug(blob), nil
	},
}

// decode drives the envelope and component layers per §4.3: Header first,
// Directory second (cross-checked against present blobs), then every other
// present standard component in canonical order (§6.1), then custom entries.
func (c *CapFile) decode() error {
	entries, err := readCAP(c.data)
	if err != nil {
		return err
	}

	byName := make(map[string]envelopeEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}
	c.envelopeMeta = byName

	headerSpec := componentSpecByName["Header"]
	headerEntry, ok := byName["Header.cap"]
	if !ok {
		return fmt.Errorf("%w: missing mandatory Header component", ErrInvalidEnvelope)
	}
	headerInfo, err := splitComponentEnvelope(headerSpec, false, headerEntry.Data, &c.diags)
	if err != nil {
		return fmt.Errorf("decoding Header: %w", err)
	}
	headerRecord, err := c.decodeOne(TagHeader, headerInfo)
	if err != nil {
		return fmt.Errorf("decoding Header: %w", err)
	}
	hr := headerRecord.(*HeaderRecord)
	hr.setRawPair(rawPairFor(headerEntry.Data))
	c.Version = FormatVersion{Major: hr.MajorVersionU1, Minor: hr.MinorVersionU1}
	if !c.Version.Supported() {
		// Every remaining component decoder dispatches on c.Version via
		// AtLeast comparisons against {2.1, 2.2, 2.3}; a version outside
		// that set makes the rest of the dispatch nonsense rather than
		// something tolerant decode can shrug off (§7).
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, c.Version)
	}
	c.Extended = HeaderFlag(hr.FlagsU1).Has(FlagExtended)
	c.Components.Set("Header.cap", hr)

	directorySpec := componentSpecByName["Directory"]
	directoryEntry, ok := byName["Directory.cap"]
	if !ok {
		return fmt.Errorf("%w: missing mandatory Directory component", ErrInvalidEnvelope)
	}
	directoryInfo, err := splitComponentEnvelope(directorySpec, c.Extended, directoryEntry.Data, &c.diags)
	if err != nil {
		return fmt.Errorf("decoding Directory: %w", err)
	}
	dirRecord, err := c.decodeOne(TagDirectory, directoryInfo)
	if err != nil {
		return fmt.Errorf("decoding Directory: %w", err)
	}
	dr := dirRecord.(*DirectoryRecord)
	dr.setRawPair(rawPairFor(directoryEntry.Data))
	c.Components.Set("Directory.cap", dr)
	c.crossCheckDirectory(dr, byName)

	for _, spec := range canonicalOrder {
		if spec.tag == TagHeader || spec.tag == TagDirectory {
			continue
		}
		name := spec.name + ".cap"
		entry, present := byName[name]
		if !present {
			continue
		}
		info, err := splitComponentEnvelope(spec, c.Extended, entry.Data, &c.diags)
		if err != nil {
			c.logger.Errorf("splitting %s: %v", spec.name, err)
			continue
		}
		rec, err := c.decodeOne(spec.tag, info)
		if err != nil {
			c.logger.Errorf("decoding %s: %v", spec.name, err)
			continue
		}
		if setter, ok := rec.(rawPairSetter); ok {
			setter.setRawPair(rawPairFor(entry.Data))
		}
		c.Components.Set(name, rec)
	}

	for name, entry := range byName {
		if !isCustomEntryName(name) {
			continue
		}
		rec := c.decodeCustomEntry(name, entry.Data, c.Extended)
		c.Components.Set(name, rec)
	}

	c.Diagnostics = c.diags.All()
	return nil
}

// splitComponentEnvelope separates a component's leading tag and size
// fields from its info payload, detecting a component whose size form
// (short u2 vs long u4) disagrees with what Header.EXTENDED implies (§8
// scenario S5). The filename (carried by spec, not re-derived here) is
// trusted as ground truth for which component this is; a disagreeing tag
// byte is itself a TagMismatch finding.
func splitComponentEnvelope(spec componentSpec, extended bool, raw []byte, diags *Diagnostics) ([]byte, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("%w: %s entry has no tag byte", ErrTruncatedComponent, spec.name)
	}
	tag := ComponentTag(raw[0])
	if tag != spec.tag {
		diags.Warn(DiagTagMismatch, spec.name, "leading tag byte %d disagrees with filename (want %d)", tag, spec.tag)
	}
	rest := raw[1:]

	expected := resolveSizeWidth(spec.width, extended)
	if info, ok := trySizeWidth(rest, expected); ok {
		return info, nil
	}

	alt := 2
	if expected == 2 {
		alt = 4
	}
	if info, ok := trySizeWidth(rest, alt); ok {
		diags.Warn(DiagTagMismatch, spec.name,
			"uses %d-byte size form; %d-byte form was expected given EXTENDED=%v", alt, expected, extended)
		return info, nil
	}

	if len(rest) >= expected {
		diags.Warn(DiagInconsistentSize, spec.name, "declared size matches neither the 2-byte nor 4-byte size form")
		return rest[expected:], nil
	}
	return nil, fmt.Errorf("%w: %s entry too short for its size field", ErrTruncatedComponent, spec.name)
}

func resolveSizeWidth(width sizeWidth, extended bool) int {
	switch width {
	case widthLongAlways:
		return 4
	case widthExtendedAware:
		if extended {
			return 4
		}
		return 2
	default:
		return 2
	}
}

// trySizeWidth reads a width-byte (2 or 4) big-endian size field from the
// front of rest and reports whether the remaining bytes match that
// declared size exactly.
func trySizeWidth(rest []byte, width int) (info []byte, ok bool) {
	if len(rest) < width {
		return nil, false
	}
	var size uint64
	for i := 0; i < width; i++ {
		size = size<<8 | uint64(rest[i])
	}
	info = rest[width:]
	return info, uint64(len(info)) == size
}

// decodeOne dispatches one component blob to its decoder, recovering from
// a decoder panic the same way the teacher's ParseDataDirectories recovers
// around each data-directory parser: a malformed blob degrades to a logged
// error rather than aborting the whole file.
func (c *CapFile) decodeOne(tag ComponentTag, blob []byte) (rec any, err error) {
	decodeFn, ok := componentDecoders[tag]
	if !ok {
		return nil, fmt.Errorf("no decoder registered for tag %d", tag)
	}
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("panic decoding component tag %d: %v", tag, e)
		}
	}()
	return decodeFn(c, blob)
}

// decodeCustomEntry splits and decodes a vendor-private component. Custom
// components follow the same tag+size+info shape as standard ones, always
// in the Extended-aware size form (§6.1: "EXTENDED forces ... all custom
// components into long-size form").
func (c *CapFile) decodeCustomEntry(name string, raw []byte, extended bool) (rec any) {
	defer func() {
		if e := recover(); e != nil {
			c.logger.Errorf("panic decoding custom entry %s: %v", name, e)
			rec = decodeCustom(0, raw)
		}
	}()
	if len(raw) < 1 {
		return decodeCustom(0, raw)
	}
	tag := ComponentTag(raw[0])
	width := resolveSizeWidth(widthExtendedAware, extended)
	info, ok := trySizeWidth(raw[1:], width)
	if !ok {
		c.logger.Errorf("custom entry %s: declared size doesn't match entry length", name)
		info = raw[1:]
	}
	var decoded any
	if tag == tagSignature {
		decoded = decodeSignature(info, &c.diags)
	} else {
		decoded = decodeCustom(tag, info)
	}
	if setter, ok := decoded.(rawPairSetter); ok {
		setter.setRawPair(rawPairFor(raw))
	}
	return decoded
}

// crossCheckDirectory compares Directory's recorded sizes against the
// actual present-component blob sizes, producing InconsistentSize warnings
// rather than failing (§4.3, §7, §8 property 7).
func (c *CapFile) crossCheckDirectory(dr *DirectoryRecord, byName map[string]envelopeEntry) {
	for _, row := range dr.ComponentSizes {
		entry, present := byName[row.Component+".cap"]
		if !present {
			if row.SizeU2 != 0 {
				c.diags.Warn(DiagInconsistentSize, row.Component,
					"Directory records size %d but the component is absent", row.SizeU2)
			}
			continue
		}
		spec := componentSpecByName[row.Component]
		width := resolveSizeWidth(spec.width, c.Extended)
		actual := len(entry.Data) - 1 - width // tag byte + size field
		if actual < 0 {
			actual = 0
		}
		if int(row.SizeU2) != actual {
			c.diags.Warn(DiagInconsistentSize, row.Component,
				"Directory records size %d but the present blob's info is %d bytes", row.SizeU2, actual)
		}
	}
}

// Encode reassembles a CAP archive from the current component set, per
// §4.2/§4.3: each component emits raw_modified (normalized) if present,
// else raw, verbatim -- Shallow mode never re-serializes from parsed
// fields. Entries are replayed in canonical order (§6.1), with any custom
// entries appended after. Unlike EncodeComponentSet, Encode has access to
// the original archive's envelope metadata (captured during decode), so an
// untouched component is written back with its exact original path,
// compression method and bytes rather than a fresh root-level DEFLATE entry
// (§8 property 1, scenario S2).
func (c *CapFile) Encode() ([]byte, error) {
	var entries []envelopeEntry
	for _, name := range c.Components.Names() {
		rec, _ := c.Components.Get(name)
		pair, err := rawPairOf(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", name, err)
		}
		blob, err := pair.resolveBytes(name)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", name, err)
		}
		entry := envelopeEntry{Name: name, Data: blob}
		if meta, ok := c.envelopeMeta[name]; ok {
			entry.originalName = meta.originalName
			entry.method = meta.method
			entry.modified = meta.modified
			entry.crc32 = meta.crc32
			entry.uncompressedSize = meta.uncompressedSize
			entry.rawBytes = meta.rawBytes
		}
		entries = append(entries, entry)
	}
	sortEntriesCanonical(entries)
	return writeCAP(entries)
}

// EncodeComponentSet reassembles a CAP archive straight from a component
// set, without requiring a full CapFile -- the path json2cap uses when the
// caller only ever decoded the intermediate JSON form, never the original
// binary (§6.4). No envelope metadata survives a round trip through JSON,
// so every entry is written fresh at the ZIP root.
func EncodeComponentSet(cs *ComponentSet) ([]byte, error) {
	var entries []envelopeEntry
	for _, name := range cs.Names() {
		rec, _ := cs.Get(name)
		pair, err := rawPairOf(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", name, err)
		}
		blob, err := pair.resolveBytes(name)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", name, err)
		}
		entries = append(entries, envelopeEntry{Name: name, Data: blob})
	}
	sortEntriesCanonical(entries)
	return writeCAP(entries)
}

// rawPairOf extracts the embedded RawPair from any of this package's
// component record types. Records are stored as `any` in ComponentSet so a
// single encode path can serve every component kind without a type switch
// per component; this is the one place that needs to see through that
// erasure again.
func rawPairOf(rec any) (RawPair, error) {
	type rawPairHolder interface {
		rawPair() RawPair
	}
	if h, ok := rec.(rawPairHolder); ok {
		return h.rawPair(), nil
	}
	return RawPair{}, fmt.Errorf("record type %T does not embed RawPair", rec)
}

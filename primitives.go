// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"bytes"
	"fmt"
)

// reader is a bounds-checked cursor over a single component's info bytes.
// Every component decoder reads through one of these instead of indexing
// pe.data directly (the teacher's equivalent is File.ReadUint8/16/32/64 and
// File.ReadBytesAtOffset, bounds-checked against the whole mapped file; here
// the "file" is just the component's own blob, per §5: "decoders MUST NOT
// read past their component blob's declared size").
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

// remaining returns the number of unread bytes.
func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

// advance moves the cursor forward n bytes after validating the read is in
// bounds, returning the skipped-over span.
func (r *reader) advance(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: at offset %d, requested %d bytes", ErrNegativeAdvance, r.pos, n)
	}
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w: at offset %d, want %d bytes, have %d",
			ErrTruncatedComponent, r.pos, n, r.remaining())
	}
	span := r.data[r.pos : r.pos+n]
	r.pos += n
	return span, nil
}

// u1 reads one unsigned byte.
func (r *reader) u1() (uint8, error) {
	b, err := r.advance(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// u2 reads a big-endian uint16 (§9: "all multibyte integers are
// big-endian").
func (r *reader) u2() (uint16, error) {
	b, err := r.advance(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// u4 reads a big-endian uint32.
func (r *reader) u4() (uint32, error) {
	b, err := r.advance(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// bytesN reads n raw bytes.
func (r *reader) bytesN(n int) ([]byte, error) {
	b, err := r.advance(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// aid reads an AID: a u1 length followed by that many bytes, length in
// [5,16] (§4.4). A length outside that range is recorded as a diagnostic by
// the caller rather than failing the read outright -- the bytes themselves
// are still structurally readable.
func (r *reader) aid() ([]byte, error) {
	n, err := r.u1()
	if err != nil {
		return nil, err
	}
	return r.bytesN(int(n))
}

// name reads a Name: a u1 length followed by that many UTF-8 bytes (§4.4).
// Bytes that are not valid modified UTF-8 (see validateModifiedUTF8) are
// consumed but reported as an error.
func (r *reader) name() (string, error) {
	n, err := r.u1()
	if err != nil {
		return "", err
	}
	b, err := r.bytesN(int(n))
	if err != nil {
		return "", err
	}
	if err := validateModifiedUTF8(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// typeDescriptor reads a type descriptor: a u1 nibble count followed by
// ceil(nibbleCount/2) bytes of packed nibbles (§4.4).
func (r *reader) typeDescriptor() (nibbleCount uint8, packed []byte, err error) {
	nibbleCount, err = r.u1()
	if err != nil {
		return 0, nil, err
	}
	packed, err = r.bytesN((int(nibbleCount) + 1) / 2)
	return nibbleCount, packed, err
}

// classRef is the decoded form of the 2-byte class/interface reference
// field described in §4.4: the high bit of the first byte discriminates
// between an external reference (7-bit package token + class token) and an
// internal offset into the Class component.
type classRef struct {
	External      bool
	PackageToken  uint8 // valid iff External
	ClassToken    uint8 // valid iff External
	InternalOffset uint16 // valid iff !External
}

func (r *reader) classRef() (classRef, error) {
	b, err := r.advance(2)
	if err != nil {
		return classRef{}, err
	}
	if b[0]&0x80 != 0 {
		return classRef{
			External:     true,
			PackageToken: b[0] & 0x7f,
			ClassToken:   b[1],
		}, nil
	}
	return classRef{InternalOffset: uint16(b[0])<<8 | uint16(b[1])}, nil
}

func (c classRef) encode() [2]byte {
	if c.External {
		return [2]byte{0x80 | (c.PackageToken & 0x7f), c.ClassToken}
	}
	return [2]byte{byte(c.InternalOffset >> 8), byte(c.InternalOffset)}
}

// flagNibble splits a byte into its high and low nibble, per the
// "{high_nibble, low_nibble}" bit-packed form of §4.4.
func flagNibble(b byte) (hi, lo uint8) {
	return b >> 4, b & 0x0f
}

// packNibble recombines a high/low nibble pair into one byte.
func packNibble(hi, lo uint8) byte {
	return (hi&0x0f)<<4 | (lo & 0x0f)
}

// stopBitField splits a two-byte field into the "{1-bit stop | 15-bit length}" form
// described in §4.4. It operates over the first two bytes at the cursor.
func (r *reader) stopBitField() (stop bool, length uint16, err error) {
	b, err := r.advance(2)
	if err != nil {
		return false, 0, err
	}
	stop = b[0]&0x80 != 0
	length = uint16(b[0]&0x7f)<<8 | uint16(b[1])
	return stop, length, nil
}

func encodeStopBitField(stop bool, length uint16) [2]byte {
	hi := byte(length >> 8 & 0x7f)
	if stop {
		hi |= 0x80
	}
	return [2]byte{hi, byte(length)}
}

// writer is the dual of reader: it appends u1/u2/u4/AID/Name values to a
// growing byte buffer in the same big-endian, length-prefixed conventions.
// Used by component encoders that need to emit a freshly-built blob (the
// EXP encoder) rather than pass raw bytes straight through.
type writer struct {
	buf bytes.Buffer
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) u1(v uint8) {
	w.buf.WriteByte(v)
}

func (w *writer) u2(v uint16) {
	w.buf.WriteByte(byte(v >> 8))
	w.buf.WriteByte(byte(v))
}

func (w *writer) u4(v uint32) {
	w.buf.WriteByte(byte(v >> 24))
	w.buf.WriteByte(byte(v >> 16))
	w.buf.WriteByte(byte(v >> 8))
	w.buf.WriteByte(byte(v))
}

func (w *writer) bytes(b []byte) {
	w.buf.Write(b)
}

func (w *writer) aid(b []byte) {
	w.u1(uint8(len(b)))
	w.bytes(b)
}

func (w *writer) name(s string) {
	w.u1(uint8(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) bytesOut() []byte {
	return w.buf.Bytes()
}

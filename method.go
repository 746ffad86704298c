// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"fmt"
	"sort"
)

// ExceptionHandlerEntry is one 8-byte exception handler row preceding the
// method bodies in the Method component (§4.5).
type ExceptionHandlerEntry struct {
	StartOffsetU2 uint16 `json:"start_offset-u2"`
	StopBit       bool   `json:"stop_bit"`
	ActiveLength  uint16 `json:"active_length-u2"`
	HandlerOffset uint16 `json:"handler_offset-u2"`
	CatchTypeIndex uint16 `json:"catch_type_index-u2"`
}

// MethodRecord is the parsed form of the Method component. Per §9's
// "Method-component boundary ambiguity" design note, individual method_info
// records can only be split out reliably using Descriptor's method_offset
// and bytecode_count fields; without a Descriptor record to consult, this
// decoder records the handler table and leaves the rest of the blob as one
// opaque MethodBodiesRaw span rather than guessing at boundaries. A future
// pass (once Descriptor is decoded) can re-slice MethodBodiesRaw using
// ResolveMethodBodies.
type MethodRecord struct {
	RawPair
	HandlerCountU1 uint8                    `json:"handler_count-u1"`
	Handlers       []ExceptionHandlerEntry  `json:"handlers"`
	MethodBodiesRaw string                  `json:"method_bodies_raw"`
}

func decodeMethod(blob []byte, extended bool, diags *Diagnostics) (*MethodRecord, error) {
	r := newReader(blob)
	rec := &MethodRecord{RawPair: rawPairFor(blob)}

	count, err := r.u1()
	if err != nil {
		return nil, fmt.Errorf("method: handler_count: %w", err)
	}
	rec.HandlerCountU1 = count

	var prevOffset uint16
	for i := uint8(0); i < count; i++ {
		start, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("method: handlers[%d]: start_offset: %w", i, err)
		}
		stop, length, err := r.stopBitField()
		if err != nil {
			return nil, fmt.Errorf("method: handlers[%d]: active_length: %w", i, err)
		}
		handlerOffset, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("method: handlers[%d]: handler_offset: %w", i, err)
		}
		catchType, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("method: handlers[%d]: catch_type_index: %w", i, err)
		}
		if i > 0 && handlerOffset < prevOffset {
			diags.Warn(DiagInvariantViolation, "Method", "handlers[%d] handler_offset %d is not >= previous %d (table must be sorted ascending)", i, handlerOffset, prevOffset)
		}
		prevOffset = handlerOffset
		rec.Handlers = append(rec.Handlers, ExceptionHandlerEntry{
			StartOffsetU2:  start,
			StopBit:        stop,
			ActiveLength:   length,
			HandlerOffset:  handlerOffset,
			CatchTypeIndex: catchType,
		})
	}

	// The Compact header is 2 bytes per method_info, Extended is 4; neither
	// width is used here since boundaries aren't resolved without
	// Descriptor (see the MethodRecord doc comment).
	body, err := r.bytesN(r.remaining())
	if err != nil {
		return nil, fmt.Errorf("method: method_bodies: %w", err)
	}
	rec.MethodBodiesRaw = encodeHex(body)
	return rec, nil
}

// ResolvedMethodBody is one method_info body re-sliced out of a
// MethodRecord's opaque MethodBodiesRaw span, using the boundaries recorded
// by the companion Descriptor component.
type ResolvedMethodBody struct {
	ClassIndex int    `json:"class_index"`
	Token      uint8  `json:"token-u1"`
	Offset     uint16 `json:"method_offset-u2"`
	Bytecode   string `json:"bytecode"`
}

// ResolveMethodBodies re-slices a MethodRecord's MethodBodiesRaw span into
// individual method bodies using desc's method_offset/bytecode_count fields
// (§9's "Method-component boundary ambiguity" design note). It returns
// entries ordered by method_offset; a method whose declared span runs past
// the end of MethodBodiesRaw is truncated to what's actually there rather
// than erroring, consistent with this codec's tolerant-decode policy (§7).
func ResolveMethodBodies(rec *MethodRecord, desc *DescriptorRecord) ([]ResolvedMethodBody, error) {
	body, err := decodeRawHex("Method", rec.MethodBodiesRaw)
	if err != nil {
		return nil, fmt.Errorf("method: resolving bodies: %w", err)
	}

	type located struct {
		classIndex int
		md         MethodDescriptor
	}
	var all []located
	for ci, cd := range desc.Classes {
		for _, md := range cd.Methods {
			all = append(all, located{classIndex: ci, md: md})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].md.MethodOffsetU2 < all[j].md.MethodOffsetU2 })

	out := make([]ResolvedMethodBody, 0, len(all))
	for _, e := range all {
		start := int(e.md.MethodOffsetU2)
		if start > len(body) {
			start = len(body)
		}
		end := start + int(e.md.BytecodeCountU2)
		if end > len(body) {
			end = len(body)
		}
		out = append(out, ResolvedMethodBody{
			ClassIndex: e.classIndex,
			Token:      e.md.TokenU1,
			Offset:     e.md.MethodOffsetU2,
			Bytecode:   encodeHex(body[start:end]),
		})
	}
	return out, nil
}

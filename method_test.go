// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import "testing"

func TestDecodeMethodHandlerTableAndBody(t *testing.T) {
	var blob []byte
	blob = append(blob, 0x01)       // handler_count
	blob = append(blob, u2be(0)...) // start_offset
	blob = append(blob, u2be(0x8004)...) // stop_bit=1, active_length=4
	blob = append(blob, u2be(10)...) // handler_offset
	blob = append(blob, u2be(0)...)  // catch_type_index
	blob = append(blob, 0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE)

	rec, err := decodeMethod(blob, false, &Diagnostics{})
	if err != nil {
		t.Fatalf("decodeMethod failed: %v", err)
	}
	if rec.HandlerCountU1 != 1 {
		t.Fatalf("HandlerCountU1 = %d, want 1", rec.HandlerCountU1)
	}
	if len(rec.Handlers) != 1 {
		t.Fatalf("got %d handlers, want 1", len(rec.Handlers))
	}
	h := rec.Handlers[0]
	if !h.StopBit || h.ActiveLength != 4 || h.HandlerOffset != 10 {
		t.Errorf("handler = %+v, want stop_bit=true active_length=4 handler_offset=10", h)
	}
	if rec.MethodBodiesRaw != "deadbeefcafe" {
		t.Errorf("MethodBodiesRaw = %q, want %q", rec.MethodBodiesRaw, "deadbeefcafe")
	}
}

// TestResolveMethodBodies exercises re-slicing MethodBodiesRaw using a
// companion DescriptorRecord's method_offset/bytecode_count boundaries.
func TestResolveMethodBodies(t *testing.T) {
	rec := &MethodRecord{MethodBodiesRaw: "aabbccddeeff00112233"}
	desc := &DescriptorRecord{
		Classes: []ClassDescriptor{
			{
				Methods: []MethodDescriptor{
					{TokenU1: 0x01, MethodOffsetU2: 3, BytecodeCountU2: 2}, // ddee
					{TokenU1: 0x00, MethodOffsetU2: 0, BytecodeCountU2: 3}, // aabbcc
				},
			},
		},
	}

	got, err := ResolveMethodBodies(rec, desc)
	if err != nil {
		t.Fatalf("ResolveMethodBodies failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bodies, want 2", len(got))
	}
	// Ordered by method_offset ascending.
	if got[0].Offset != 0 || got[0].Bytecode != "aabbcc" {
		t.Errorf("got[0] = %+v, want offset=0 bytecode=aabbcc", got[0])
	}
	if got[1].Offset != 3 || got[1].Bytecode != "ddee" {
		t.Errorf("got[1] = %+v, want offset=3 bytecode=ddee", got[1])
	}
}

// TestResolveMethodBodiesTruncatesPastEnd guards the tolerant-decode policy
// (§7): a method_offset/bytecode_count pair running past MethodBodiesRaw's
// actual length is truncated rather than erroring.
func TestResolveMethodBodiesTruncatesPastEnd(t *testing.T) {
	rec := &MethodRecord{MethodBodiesRaw: "aabb"}
	desc := &DescriptorRecord{
		Classes: []ClassDescriptor{
			{Methods: []MethodDescriptor{{MethodOffsetU2: 1, BytecodeCountU2: 10}}},
		},
	}

	got, err := ResolveMethodBodies(rec, desc)
	if err != nil {
		t.Fatalf("ResolveMethodBodies failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d bodies, want 1", len(got))
	}
	if got[0].Bytecode != "bb" {
		t.Errorf("Bytecode = %q, want %q", got[0].Bytecode, "bb")
	}
}

// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"fmt"
	"strings"
)

// normalizeRawModified implements the §4.6 annotation-stripping algorithm
// applied to a `raw_modified` hex string before it is turned into bytes:
//
//  1. Delete any substring enclosed by (...) or [...], including the
//     delimiters (comments). Nesting isn't supported: the first matching
//     closer of the same bracket type closes the group.
//  2. Resolve any substring enclosed by <...>: this is a second, richer
//     annotation form whose interior may itself contain a (...)/[...]
//     comment (already gone by the time this step runs) alongside real
//     literal hex, e.g. "<(AID Len)05>" or "<(AID)5555555555>" (§4.6's own
//     worked example). Whatever remains inside the brackets after
//     separators are stripped is kept as literal hex if it IS hex; a span
//     whose remaining interior isn't valid hex (ordinary prose commentary)
//     is deleted along with its delimiters, same as (1).
//  3. Delete whitespace, '|', and ',' separators.
//  4. What remains must match ^[0-9A-Fa-f]*$ with even length, or the
//     component name is reported via ErrMalformedHex.
func normalizeRawModified(component, s string) ([]byte, error) {
	withoutParens := stripGroups(s, '(', ')')
	withoutParens = stripGroups(withoutParens, '[', ']')
	withoutAngles := resolveAngleSpans(withoutParens)

	var b strings.Builder
	b.Grow(len(withoutAngles))
	for _, r := range withoutAngles {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f', '|', ',':
			continue
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	if !isHex(cleaned) {
		return nil, fmt.Errorf("%w: component %s contains non-hex characters after normalization: %q",
			ErrMalformedHex, component, cleaned)
	}
	if len(cleaned)%2 != 0 {
		return nil, fmt.Errorf("%w: component %s has odd hex length after normalization", ErrMalformedHex, component)
	}

	out := make([]byte, len(cleaned)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(cleaned[2*i])
		if err != nil {
			return nil, fmt.Errorf("%w: component %s: %v", ErrMalformedHex, component, err)
		}
		lo, err := hexNibble(cleaned[2*i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: component %s: %v", ErrMalformedHex, component, err)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

// stripGroups removes every substring from s that starts with open and ends
// with the next occurrence of close, delimiters included. Unbalanced opens
// (no following close) consume to the end of the string.
func stripGroups(s string, open, close byte) string {
	if strings.IndexByte(s, open) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] == open {
			j := strings.IndexByte(s[i+1:], close)
			if j < 0 {
				// Unbalanced: the rest of the string is inside the group.
				return b.String()
			}
			i = i + 1 + j + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// resolveAngleSpans handles the §4.6 `<...>` annotation form. Unlike
// stripGroups, a `<...>` span's interior survives as literal hex when it is
// hex once its separators are removed -- this is what its nested (...)/[...]
// comment leaves behind for a span like "<(AID Len)05>". A span whose
// interior is ordinary prose (not hex even after separator-stripping) is
// deleted along with its delimiters, matching the plain-comment behavior of
// stripGroups. Unbalanced opens consume to the end of the string.
func resolveAngleSpans(s string) string {
	if strings.IndexByte(s, '<') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] == '<' {
			j := strings.IndexByte(s[i+1:], '>')
			if j < 0 {
				// Unbalanced: the rest of the string is inside the span.
				return b.String()
			}
			inner := stripSeparators(s[i+1 : i+1+j])
			if isHex(inner) {
				b.WriteString(inner)
			}
			i = i + 1 + j + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// stripSeparators removes the §4.6 step-3 separator set (whitespace, '|',
// ',') from s, leaving everything else untouched.
func stripSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f', '|', ',':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		if _, err := hexNibble(s[i]); err != nil {
			return false
		}
	}
	return true
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

// encodeHex renders b as lowercase hex, matching §6.2: "Hex strings are
// lowercase on output."
func encodeHex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[2*i] = digits[v>>4]
		out[2*i+1] = digits[v&0x0f]
	}
	return string(out)
}

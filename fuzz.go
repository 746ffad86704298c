// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

// Fuzz is the legacy go-fuzz entry point, kept source-compatible with the
// external go-fuzz-build tool without importing it (the teacher's fuzz.go
// follows the same convention). Prefer FuzzDecodeCap / FuzzDecodeExp, the
// native testing.F harnesses in cap_fuzz_test.go, for anything run through
// `go test -fuzz`.
func Fuzz(data []byte) int {
	cf, err := OpenBytes(data, nil)
	if err != nil {
		return 0
	}
	defer cf.Close()
	if _, err := cf.Encode(); err != nil {
		return 0
	}
	return 1
}

// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

// DebugRecord is the parsed form of the Debug component. Debug is off-card
// and never loaded onto a device (§3.4, §4.5), and its internal table
// layout (variable-length source/class/field/method name tables) carries no
// invariant this toolkit needs to check; it is tolerated on decode and
// optional on encode purely as an opaque blob.
type DebugRecord struct {
	RawPair
}

func decodeDebug(blob []byte) *DebugRecord {
	return &DebugRecord{RawPair: rawPairFor(blob)}
}

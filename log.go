// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package cap

import (
	"os"

	"github.com/go-kratos/kratos/v2/log"
)

// newDefaultHelper builds the same default logger the teacher's File.New /
// File.NewBytes construct when the caller doesn't supply one: a stdout
// logger filtered down to error level. Capastrophic's decoders log far more
// tolerantly than the teacher's (most findings become Diagnostics entries,
// not log lines), but a component the coordinator can't split or decode,
// and so leaves out of the component set, is reported through this logger.
func newDefaultHelper() *log.Helper {
	logger := log.NewStdLogger(os.Stdout)
	return log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelError)))
}

func helperFor(custom log.Logger) *log.Helper {
	if custom == nil {
		return newDefaultHelper()
	}
	return log.NewHelper(custom)
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Log(level Level, msg string) {
	r.lines = append(r.lines, msg)
}

func TestLevelGating(t *testing.T) {
	rec := &recordingLogger{}
	UseLogger(rec)
	defer UseLogger(stdLogger{})
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarn)
	assert.False(t, DebugEnabled(), "DebugEnabled() should be false when level is Warn")

	Debug("should not appear %d", 1)
	Info("should not appear either")
	Warn("this one: %s", "appears")
	Error("and this one")

	require.Len(t, rec.lines, 2)
	assert.Equal(t, "this one: appears", rec.lines[0])
}

func TestUseLoggerIgnoresNil(t *testing.T) {
	rec := &recordingLogger{}
	UseLogger(rec)
	defer UseLogger(stdLogger{})
	UseLogger(nil)
	SetLevel(LevelInfo)
	defer SetLevel(LevelInfo)
	Info("still routed to rec")
	require.Len(t, rec.lines, 1, "UseLogger(nil) should not replace the active logger")
}

package forest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &forestLogger{level: LogWarn, out: &buf}
	l.Info("quiet")
	assert.Empty(t, buf.String())
	l.Warn("loud")
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "loud")
}

func TestLoggerWithFieldsRendersKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := &forestLogger{level: LogDebug, out: &buf}
	l.withFields(map[string]interface{}{"round": 3, "rank": 1}).Info("balance round complete")
	out := buf.String()
	assert.Contains(t, out, "round=3")
	assert.Contains(t, out, "rank=1")
	assert.Contains(t, out, "balance round complete")
}

func TestLoggerWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	base := &forestLogger{level: LogDebug, out: &buf, fields: map[string]interface{}{"a": 1}}
	child := base.withFields(map[string]interface{}{"b": 2})
	assert.NotContains(t, base.fields, "b")
	assert.Contains(t, child.fields, "a")
	assert.Contains(t, child.fields, "b")
}

func TestSetLogLevelAndOutputAffectDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	orig := *defaultLogger
	defer func() { *defaultLogger = orig }()

	SetLogOutput(&buf)
	SetLogLevel(LogDebug)
	defaultLogger.Debug("hello")
	assert.True(t, strings.Contains(buf.String(), "hello"))
}

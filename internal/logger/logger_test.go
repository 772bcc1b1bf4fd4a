package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerKeyValues(t *testing.T) {
	var out, errOut bytes.Buffer
	l := New(&out, &errOut)

	l.Info("order placed", "order_id", 7, "total", "12.50")
	l.Error("publish failed", "err")

	assert.Contains(t, out.String(), "INFO: order placed order_id=7 total=12.50")
	assert.Contains(t, errOut.String(), "ERROR: publish failed err")
}

func TestLoggerLevelsSplitStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	l := New(&out, &errOut)

	l.Warn("slow query")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "WARN: slow query")
}

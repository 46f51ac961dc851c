package logger

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel(LogLevelInfo)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	require.NoError(t, SetLevel(LogLevelWarn))

	log := New()
	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestFieldsAndErrors(t *testing.T) {
	buf := capture(t)

	New().WithField("component", "hub").WithError(errors.New("boom")).Error("write failed")
	New().Panel("p-42", "panel opened")

	out := buf.String()
	assert.Contains(t, out, "component=hub")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "panel=p-42")
	assert.Contains(t, out, `msg="panel opened"`)
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	assert.Error(t, SetLevel("chatty"))
	assert.NoError(t, SetLevel("DEBUG"))
	SetLevel(LogLevelInfo)
}

package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLogLevel(WARN)
	t.Cleanup(func() { SetLogLevel(INFO) })

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	Errorf("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "also shown")
}

func TestInitLoggerFromFlag(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	lvl := "debug"
	InitLogger(&lvl)
	t.Cleanup(func() { SetLogLevel(INFO) })

	Debugf("debug line")
	assert.Contains(t, buf.String(), "debug line")
}

func TestWithSymbol(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLogLevel(INFO)

	l := With("BTCUSDT")
	l.Info().Msg("tagged")
	assert.Contains(t, buf.String(), "symbol=BTCUSDT")
}

func TestSetOutputKeepsConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLogLevel(INFO)

	Infof("[Step 1] Transfer successful. Transaction ID: %d", 42)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "[Step 1] Transfer successful. Transaction ID: 42")
	assert.NotContains(t, out, `"message"`)
}

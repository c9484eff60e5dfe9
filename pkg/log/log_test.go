package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestReqID(t *testing.T) {
	ctx := WithReqID(context.Background(), "W0001")
	assert.Equal(t, "W0001", GetReqID(ctx))
	assert.Equal(t, "", GetReqID(context.Background()))

	e := LoggerWith(ctx, logrus.WithField("module", "test"))
	assert.Equal(t, "W0001", e.Data["reqid"])

	e = LoggerWith(context.Background(), logrus.WithField("module", "test"))
	_, ok := e.Data["reqid"]
	assert.False(t, ok)
}

func TestTerminalHook(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := logrus.New()
	l.SetFormatter(newFormatter())
	l.SetOutput(&bytes.Buffer{})
	l.AddHook(&terminalHook{out: &buf})

	l.WithField("module", "cache").WithField("reqid", "abc").Warn("evicted")
	line := buf.String()
	assert.Contains(t, line, "warning")
	assert.Contains(t, line, "cache")
	assert.Contains(t, line, "abc")
	assert.Contains(t, line, "evicted")
}

func TestSetLevel(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	SetLevel("warn")
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	SetLevel("nonsense")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestInitSentryDisabled(t *testing.T) {
	flush, err := InitSentry("", "test")
	assert.NoError(t, err)
	flush()
}

package telemetry

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	otlplog "go.opentelemetry.io/otel/log"
)

func TestLogHookLevels(t *testing.T) {
	hook := NewLogHook(logrus.WarnLevel)
	assert.ElementsMatch(t, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}, hook.Levels())
}

func TestLogHookFireWithNoopProvider(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logger.WithField("path", "/a").WithContext(context.Background())
	entry.Level = logrus.ErrorLevel
	entry.Message = "boom"

	assert.NoError(t, NewLogHook(logrus.WarnLevel).Fire(entry))
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, otlplog.SeverityError, severity(logrus.ErrorLevel))
	assert.Equal(t, otlplog.SeverityWarn, severity(logrus.WarnLevel))
	assert.Equal(t, otlplog.SeverityTrace, severity(logrus.TraceLevel))
}

func TestReportJSONSkipsUnmarshalable(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ReportJSON(context.Background(), logger, "bad", make(chan int))
	ReportJSON(context.Background(), logger, "ok", map[string]string{"a": "b"})
}

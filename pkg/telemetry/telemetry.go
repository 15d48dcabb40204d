// Package telemetry configures OpenTelemetry tracing and log export and
// bridges logrus entries onto the OpenTelemetry log pipeline.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlplog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/denysvitali/megacmd-runtime-go/pkg/config"
)

// ServiceName is the instrumentation scope used across the module
const ServiceName = "megacmd-runtime"

// Initialize sets up tracing and log export using autoexport, which honours
// the standard OTEL_* environment variables. The returned func flushes and
// shuts both providers down.
func Initialize(cfg config.TelemetryConfig, version string, logger *logrus.Logger) (func(), error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	spanExporter, err := autoexport.NewSpanExporter(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	var logProvider *sdklog.LoggerProvider
	logExporter, err := autoexport.NewLogExporter(context.Background())
	if err != nil {
		logger.Warnf("Failed to create log exporter: %v", err)
	} else {
		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(logProvider)
		logger.AddHook(NewLogHook(logrus.WarnLevel))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithField("endpoint", cfg.Endpoint).Info("Telemetry initialized")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
		if logProvider != nil {
			if err := logProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("log provider: %w", err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}, nil
}

// ReportJSON attaches data as JSON to a child span and logs it at debug level
func ReportJSON(ctx context.Context, logger *logrus.Logger, operationName string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Errorf("Failed to marshal %s to JSON: %v", operationName, err)
		return
	}

	_, span := otel.Tracer(ServiceName).Start(ctx, operationName)
	span.SetAttributes(
		attribute.String("json.data", string(jsonData)),
		attribute.String("data.type", fmt.Sprintf("%T", data)),
	)
	span.End()

	logger.WithFields(logrus.Fields{
		"operation": operationName,
		"json_data": string(jsonData),
	}).Debug("JSON data reported")
}

// LogHook forwards logrus entries at or above a level to the global
// OpenTelemetry logger provider.
type LogHook struct {
	levels []logrus.Level
}

// NewLogHook returns a hook firing for min and every more severe level
func NewLogHook(min logrus.Level) *LogHook {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}
	return &LogHook{levels: levels}
}

// Levels implements logrus.Hook
func (h *LogHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook
func (h *LogHook) Fire(entry *logrus.Entry) error {
	var record otlplog.Record
	record.SetTimestamp(entry.Time)
	record.SetObservedTimestamp(time.Now())
	record.SetSeverity(severity(entry.Level))
	record.SetSeverityText(entry.Level.String())
	record.SetBody(otlplog.StringValue(entry.Message))
	for k, v := range entry.Data {
		record.AddAttributes(otlplog.String(k, fmt.Sprint(v)))
	}

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	global.GetLoggerProvider().Logger(ServiceName).Emit(ctx, record)
	return nil
}

func severity(l logrus.Level) otlplog.Severity {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel:
		return otlplog.SeverityFatal
	case logrus.ErrorLevel:
		return otlplog.SeverityError
	case logrus.WarnLevel:
		return otlplog.SeverityWarn
	case logrus.InfoLevel:
		return otlplog.SeverityInfo
	case logrus.DebugLevel:
		return otlplog.SeverityDebug
	default:
		return otlplog.SeverityTrace
	}
}

package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	rollupSpanName    = "updates.rollup"
	rollupEventName   = "rollup.request"
	rollupEventDomain = "tracker"
	rollupRoute       = "/api/updates/related"
)

// rollupRequestMetrics collects timing and outcome data for one rollup
// request and emits it as both a span and a structured log entry.
type rollupRequestMetrics struct {
	logger          *log.Logger
	span            trace.Span
	start           time.Time
	collectDuration time.Duration
	encodeDuration  time.Duration
	updatesReturned int
	errorStage      string
}

func newRollupRequestMetrics(ctx context.Context, logger *log.Logger) (*rollupRequestMetrics, context.Context) {
	m := &rollupRequestMetrics{logger: logger, start: time.Now()}
	if ctx == nil {
		ctx = context.Background()
	}
	spanCtx, span := otel.Tracer("tracker-api/api").Start(ctx, rollupSpanName)
	m.span = span
	return m, spanCtx
}

func (m *rollupRequestMetrics) ObserveCollect(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.collectDuration = duration
}

func (m *rollupRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *rollupRequestMetrics) SetUpdatesReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.updatesReturned = count
}

func (m *rollupRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *rollupRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	attrs := map[string]any{
		"http.route":                      rollupRoute,
		"tracker.rollup.total_ms":         totalMs,
		"tracker.rollup.updates_returned": m.updatesReturned,
	}
	if m.collectDuration > 0 {
		attrs["tracker.rollup.collect_ms"] = durationToMillis(m.collectDuration)
	}
	if m.encodeDuration > 0 {
		attrs["tracker.rollup.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		attrs["tracker.rollup.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	if m.span != nil {
		m.span.SetAttributes(
			attribute.String("http.route", rollupRoute),
			attribute.Int("http.status_code", status),
			attribute.Float64("tracker.rollup.total_ms", totalMs),
			attribute.Int("tracker.rollup.updates_returned", m.updatesReturned),
		)
		if m.errorStage != "" {
			m.span.SetAttributes(attribute.String("tracker.rollup.error_stage", m.errorStage))
		}
		m.span.AddEvent("observability.event")
		if err != nil || status >= 500 {
			m.span.SetStatus(codes.Error, m.errorStage)
			if err != nil {
				m.span.RecordError(err)
			}
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	severityText, severityNumber := severityForStatus(status, err)
	fields := log.Fields{
		"event.name":      rollupEventName,
		"event.domain":    rollupEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

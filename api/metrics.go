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
	tracerName      = "board-dnd/api"
	dropSpanName    = "board.drop"
	dropEventName   = "drop.request"
	dropEventDomain = "board"
	dropRoute       = "/api/stacks/:stackID/drop"
)

// dropRequestMetrics collects timings and outcome facts for one drop request
// and emits them as a span plus a structured observability event.
type dropRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration   time.Duration
	decodeDuration time.Duration
	applyDuration  time.Duration
	destStackID    string
	crossStack     bool
	accepted       bool
	duplicate      bool
	errorStage     string
}

func newDropRequestMetrics(ctx context.Context, logger *log.Logger) (*dropRequestMetrics, context.Context) {
	m := &dropRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, dropSpanName, trace.WithSpanKind(trace.SpanKindServer))
	m.span = span
	return m, spanCtx
}

func (m *dropRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *dropRequestMetrics) ObserveDecode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.decodeDuration = duration
}

func (m *dropRequestMetrics) ObserveApply(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.applyDuration = duration
}

func (m *dropRequestMetrics) SetDestination(stackID string) {
	m.destStackID = stackID
}

func (m *dropRequestMetrics) SetCrossStack(cross bool) {
	m.crossStack = cross
}

func (m *dropRequestMetrics) SetAccepted(accepted bool) {
	m.accepted = accepted
}

func (m *dropRequestMetrics) SetDuplicate(duplicate bool) {
	m.duplicate = duplicate
}

func (m *dropRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finalizes the span and writes one observability event carrying the
// request's attributes and trace id.
func (m *dropRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("http.route", dropRoute),
		attribute.Int("http.status_code", status),
		attribute.String("board.drop.dest_stack", m.destStackID),
		attribute.Bool("board.drop.cross_stack", m.crossStack),
		attribute.Bool("board.drop.accepted", m.accepted),
		attribute.Bool("board.drop.duplicate", m.duplicate),
		attribute.Float64("board.drop.total_ms", totalMs),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.drop.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.decodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.drop.decode_ms", durationToMillis(m.decodeDuration)))
	}
	if m.applyDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.drop.apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("board.drop.error_stage", m.errorStage))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(
			attribute.String("event.name", dropEventName),
			attribute.String("event.domain", dropEventDomain),
		))
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"event.name":   dropEventName,
		"event.domain": dropEventDomain,
		"attributes":   attributesToFields(attrs),
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func attributesToFields(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

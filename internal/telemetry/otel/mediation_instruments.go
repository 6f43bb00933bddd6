package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MediationInstruments publishes metrics and traces for one mediated
// request, keyed on its eventual allow/deny/error outcome.
type MediationInstruments struct {
	meterEnabled bool
	traceEnabled bool

	counterRequests metric.Int64Counter
	counterDenied   metric.Int64Counter
	histDuration    metric.Int64Histogram

	tracer trace.Tracer
}

// RequestHandle carries the in-flight span and start time for one mediated
// request between Start and Finish.
type RequestHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// MediationInfo names the request being mediated, known before a policy
// decision or dispatch outcome exists.
type MediationInfo struct {
	Method string
	Host   string
	Scheme string
}

func newMediationInstruments(p *Provider) *MediationInstruments {
	if p == nil {
		return nil
	}

	inst := &MediationInstruments{
		meterEnabled: p.meterProvider != nil,
		traceEnabled: p.tracerProvider != nil,
	}
	if p.meterProvider != nil {
		inst.counterRequests, _ = p.meter.Int64Counter(
			"pep.requests_total",
			metric.WithDescription("Number of mediated requests processed by the daemon"),
		)
		inst.counterDenied, _ = p.meter.Int64Counter(
			"pep.denied_total",
			metric.WithDescription("Number of mediated requests that ended in a non-allow outcome"),
		)
		inst.histDuration, _ = p.meter.Int64Histogram(
			"pep.request.duration",
			metric.WithDescription("Duration of request mediation in milliseconds"),
		)
	}
	if p.tracerProvider != nil {
		inst.tracer = p.tracer
	}
	return inst
}

// Start opens a span (when tracing is enabled) covering one full mediation
// pipeline run and returns a handle plus the context carrying that span.
func (i *MediationInstruments) Start(parent context.Context, info MediationInfo) (*RequestHandle, context.Context) {
	if i == nil {
		return nil, parent
	}

	h := &RequestHandle{
		ctx:   parent,
		start: time.Now(),
		attrs: buildMediationAttributes(info),
	}

	if i.traceEnabled && i.tracer != nil {
		ctx, span := i.tracer.Start(parent, "pep.mediate", trace.WithAttributes(h.attrs...))
		h.ctx = ctx
		h.span = span
	}
	return h, h.ctx
}

// Finish records metrics and closes the span with the pipeline's terminal
// decision: "allow" or the wire error code that rejected the request.
func (i *MediationInstruments) Finish(h *RequestHandle, status uint16, decision string) {
	if i == nil || h == nil {
		return
	}
	elapsed := time.Since(h.start)
	attrs := append([]attribute.KeyValue{}, h.attrs...)
	if status > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", int(status)))
	}
	attrs = append(attrs, attribute.String("pep.decision", decision))

	if i.meterEnabled {
		i.counterRequests.Add(h.ctx, 1, metric.WithAttributes(attrs...))
		if decision != "allow" {
			i.counterDenied.Add(h.ctx, 1, metric.WithAttributes(attrs...))
		}
		i.histDuration.Record(h.ctx, elapsed.Milliseconds(), metric.WithAttributes(attrs...))
	}

	if h.span != nil {
		h.span.SetAttributes(attrs...)
		if decision != "allow" {
			h.span.SetStatus(codes.Error, decision)
		}
		h.span.End()
	}
}

func buildMediationAttributes(info MediationInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if info.Method != "" {
		attrs = append(attrs, attribute.String("http.method", info.Method))
	}
	if info.Host != "" {
		attrs = append(attrs, attribute.String("net.peer.name", info.Host))
	}
	if info.Scheme != "" {
		attrs = append(attrs, attribute.String("url.scheme", info.Scheme))
	}
	return attrs
}

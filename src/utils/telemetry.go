package utils

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"
)

// SpanCarrier is the wire form of a span context attached to bus events.
type SpanCarrier struct {
	TraceID    string `json:"trace_id"`
	SpanID     string `json:"span_id"`
	TraceFlags byte   `json:"trace_flags"`
	TraceState string `json:"trace_state,omitempty"`
}

// EncodeSpanContext returns the active span of ctx in carrier form, or nil when there is none.
func EncodeSpanContext(ctx context.Context) ([]byte, error) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil, nil
	}

	data, err := json.Marshal(SpanCarrier{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		TraceFlags: byte(sc.TraceFlags()),
		TraceState: sc.TraceState().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("EncodeSpanContext: %w", err)
	}

	return data, nil
}

func DecodeSpanContext(data []byte) (trace.SpanContext, error) {
	var carrier SpanCarrier
	if err := json.Unmarshal(data, &carrier); err != nil {
		return trace.SpanContext{}, fmt.Errorf("DecodeSpanContext: %w", err)
	}

	traceID, err := trace.TraceIDFromHex(carrier.TraceID)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("DecodeSpanContext: trace id: %w", err)
	}

	spanID, err := trace.SpanIDFromHex(carrier.SpanID)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("DecodeSpanContext: span id: %w", err)
	}

	traceState, err := trace.ParseTraceState(carrier.TraceState)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("DecodeSpanContext: trace state: %w", err)
	}

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.TraceFlags(carrier.TraceFlags),
		TraceState: traceState,
		Remote:     true,
	}), nil
}

// ContextWithEncodedSpan parents ctx on the span carried by an event. Empty data leaves ctx unchanged.
func ContextWithEncodedSpan(ctx context.Context, data []byte) (context.Context, error) {
	if len(data) == 0 {
		return ctx, nil
	}

	sc, err := DecodeSpanContext(data)
	if err != nil {
		return ctx, err
	}

	return trace.ContextWithRemoteSpanContext(ctx, sc), nil
}

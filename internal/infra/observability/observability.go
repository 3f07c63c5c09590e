// Package observability provides tracing and metrics for the generation
// pipeline.
//
// This provides:
//   - Trace spans for the generation lifecycle (gate → invoke → finalize → reconcile)
//   - Prometheus metrics for generations, credits, and cache invalidations
//   - Structured log correlation with trace IDs
package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Trace Spans — Lightweight span tracking without external OTel SDK dependency
// ═══════════════════════════════════════════════════════════════════════════

// SpanKind classifies a span.
type SpanKind int

const (
	SpanInternal SpanKind = iota
	SpanServer
	SpanClient
)

// Span represents a unit of work within a generation trace.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	Kind      SpanKind          `json:"kind"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer provides lightweight in-process tracing. Spans are held in a ring
// buffer for inspection; in production this would wrap an OTel SDK.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 10_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 10_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// StartSpan begins a new span with the given operation name.
// Returns the span (caller must call EndSpan when done).
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if !t.enabled {
		return &Span{Operation: operation}
	}

	return &Span{
		TraceID:   traceIDFromContext(ctx),
		SpanID:    generateID(),
		ParentID:  spanIDFromContext(ctx),
		Operation: operation,
		Kind:      SpanInternal,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
		TraceErrors.Inc()
	}
	TracesRecorded.Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Ring buffer: overwrite oldest if at capacity
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the recent spans.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}

	// Return most recent spans
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "nutrigen-trace-id"
	spanIDKey  contextKey = "nutrigen-span-id"
)

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithSpanID returns a context with the given span ID.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

func traceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return generateID()
}

func spanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(spanIDKey).(string); ok {
		return v
	}
	return ""
}

// generateID creates a short unique ID (not cryptographically secure — fine for tracing).
var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), n)
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Generation Metrics ─────────────────────────────────────────────────────

// GenerationsTotal tracks generation outcomes by feature and status.
var GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nutrigen",
	Subsystem: "generation",
	Name:      "total",
	Help:      "Total generation attempts by type and terminal status.",
}, []string{"type", "status"})

// GateDenials tracks credit gate denials.
var GateDenials = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nutrigen",
	Subsystem: "generation",
	Name:      "gate_denials_total",
	Help:      "Total credit gate denials by generation type.",
}, []string{"type"})

// ActiveGenerations tracks currently in-flight generations.
var ActiveGenerations = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "nutrigen",
	Subsystem: "generation",
	Name:      "active",
	Help:      "Number of generations currently in flight.",
})

// InvokeDuration tracks remote function call latency.
var InvokeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "nutrigen",
	Subsystem: "generation",
	Name:      "invoke_duration_seconds",
	Help:      "Remote generation function latency in seconds.",
	Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90, 180},
}, []string{"function"})

// ─── Credit Metrics ─────────────────────────────────────────────────────────

// CreditsSpent tracks credits consumed through the gate.
var CreditsSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "nutrigen",
	Subsystem: "credits",
	Name:      "spent_total",
	Help:      "Total credits consumed by successful gate passes.",
})

// CreditsRefunded tracks credits returned after failed generations.
var CreditsRefunded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "nutrigen",
	Subsystem: "credits",
	Name:      "refunded_total",
	Help:      "Total credits refunded after failed generations.",
})

// CreditsGranted tracks admin and signup top-ups.
var CreditsGranted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "nutrigen",
	Subsystem: "credits",
	Name:      "granted_total",
	Help:      "Total credits granted.",
})

// ─── Cache Metrics ──────────────────────────────────────────────────────────

// CacheInvalidations tracks reconciliation invalidations by generation type.
var CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nutrigen",
	Subsystem: "cache",
	Name:      "invalidations_total",
	Help:      "Total cache invalidations triggered by reconciliation.",
}, []string{"type"})

// ─── Trace Metrics ──────────────────────────────────────────────────────────

// TracesRecorded tracks total spans recorded.
var TracesRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "nutrigen",
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// TraceErrors tracks error spans.
var TraceErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "nutrigen",
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})

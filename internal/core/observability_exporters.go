package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationStats aggregates the telemetry of one clinic service operation:
// cumulative duration, success/error counts, and the number of rule
// violations its transaction results carried (blocking and log severity
// alike, so unassigned-patient outcomes are visible here too).
type OperationStats struct {
	DurationMS float64 `json:"duration_ms_total"`
	Success    int64   `json:"success_total"`
	Error      int64   `json:"error_total"`
	Violations int64   `json:"violations_total"`
}

// ExpvarMetricsRecorder publishes per-operation clinic telemetry via expvar
// for deployments that prefer process-local metrics without external
// dependencies.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]OperationStats
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder and publishes it
// under the supplied name. When name is empty, a unique identifier is generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("clinic_service_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name: name,
		ops:  make(map[string]OperationStats),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make(map[string]OperationStats, len(r.ops))
	for operation, stats := range r.ops {
		ops[operation] = stats
	}
	return ExpvarMetricsSnapshot{
		Operations: ops,
		RecordedAt: time.Now().UTC(),
	}
}

// Observe records a service operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, violations int, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	stats := r.ops[operation]
	stats.DurationMS += float64(duration) / float64(time.Millisecond)
	if success {
		stats.Success++
	} else {
		stats.Error++
	}
	stats.Violations += int64(violations)
	r.ops[operation] = stats
	r.mu.Unlock()
}

// JSONTraceEntry is one serialized operation span. Beyond timing it carries
// the clinic outcome: the patient or doctor id the operation settled on and
// the rules violated in its result, so a trace line for a leave sweep shows
// the stranded patients without consulting the audit trail.
type JSONTraceEntry struct {
	Operation     string    `json:"operation"`
	Status        string    `json:"status"`
	EntityID      string    `json:"entity_id,omitempty"`
	Violations    int       `json:"violations,omitempty"`
	ViolatedRules []string  `json:"violated_rules,omitempty"`
	DurationMS    float64   `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
}

// JSONTraceTracer serializes spans to a writer and retains them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer constructs a tracer that writes spans as JSON lines to the writer.
// The tracer retains all encoded spans for later inspection via Entries().
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTraceTracer{
		enc: enc,
	}
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements the Tracer interface.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	span := &jsonTraceSpan{
		tracer:    t,
		operation: operation,
		started:   time.Now().UTC(),
	}
	return ctx, span
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(entityID string, res Result, err error) {
	status := "success"
	var errMsg string
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:     s.operation,
		Status:        status,
		EntityID:      entityID,
		Violations:    len(res.Violations),
		ViolatedRules: violatedRules(res),
		DurationMS:    float64(ended.Sub(s.started)) / float64(time.Millisecond),
		Error:         errMsg,
		StartedAt:     s.started,
		EndedAt:       ended,
	}

	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}

// violatedRules returns the distinct rule names in result order.
func violatedRules(res Result) []string {
	if len(res.Violations) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(res.Violations))
	var rules []string
	for _, v := range res.Violations {
		if _, ok := seen[v.Rule]; ok {
			continue
		}
		seen[v.Rule] = struct{}{}
		rules = append(rules, v.Rule)
	}
	return rules
}

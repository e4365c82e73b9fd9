package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestLokiEmitterEmit tests the push envelope: one stream carrying the
// standard labels merged with caller labels, and the record as its single
// value.
func TestLokiEmitterEmit(t *testing.T) {
	var received lokiPush
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode push body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	emitter := NewLokiEmitter(LokiConfig{
		URL:           server.URL,
		PushTimeoutMS: 2000,
		Job:           "webhook-security",
		Service:       "webhook-receiver",
	}, nil)

	record := NewSecurityRecord("security_risk_detected", SeverityHigh, "risks found", map[string]any{"ref": "refs/heads/main"})
	emitter.Emit(context.Background(), record, map[string]string{
		"repository": "acme/payments",
		"actor":      "",
	})

	if len(received.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(received.Streams))
	}
	stream := received.Streams[0]
	for label, want := range map[string]string{
		"job":        "webhook-security",
		"service":    "webhook-receiver",
		"event_type": "security_risk_detected",
		"level":      "error",
		"repository": "acme/payments",
	} {
		if stream.Stream[label] != want {
			t.Fatalf("label %s = %q, want %q", label, stream.Stream[label], want)
		}
	}
	if _, ok := stream.Stream["actor"]; ok {
		t.Fatal("empty labels must not be forwarded")
	}

	if len(stream.Values) != 1 {
		t.Fatalf("values = %d, want 1", len(stream.Values))
	}
	var line SecurityRecord
	if err := json.Unmarshal([]byte(stream.Values[0][1]), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line.EventType != "security_risk_detected" || line.Source != "webhook_receiver" {
		t.Fatalf("unexpected log line: %+v", line)
	}
}

// TestLokiEmitterSwallowsFailures tests that sink failures never escape Emit.
func TestLokiEmitterSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	emitter := NewLokiEmitter(LokiConfig{URL: server.URL, PushTimeoutMS: 2000}, nil)
	emitter.Emit(context.Background(), NewSecurityRecord("webhook_request", SeverityInfo, "received", nil), nil)

	// Unreachable sink as well.
	down := NewLokiEmitter(LokiConfig{URL: "http://127.0.0.1:1", PushTimeoutMS: 100}, nil)
	down.Emit(context.Background(), NewSecurityRecord("webhook_request", SeverityInfo, "received", nil), nil)
}

// TestLokiEmitterPushReportsStatus tests that Push surfaces non-2xx
// responses to callers that count failures.
func TestLokiEmitterPushReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	emitter := NewLokiEmitter(LokiConfig{URL: server.URL, PushTimeoutMS: 2000}, nil)
	err := emitter.Push(context.Background(), []byte(`{"message":"x"}`), map[string]string{"job": "system-auth"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
}

// TestFanoutEmitter tests that every wrapped emitter receives the record.
func TestFanoutEmitter(t *testing.T) {
	first := &countingEmitter{}
	second := &countingEmitter{}

	fanout := FanoutEmitter{first, second}
	fanout.Emit(context.Background(), NewSecurityRecord("webhook_request", SeverityInfo, "received", nil), nil)

	if first.count != 1 || second.count != 1 {
		t.Fatalf("emit counts = %d/%d, want 1/1", first.count, second.count)
	}
}

// countingEmitter counts emitted records.
type countingEmitter struct {
	count int
}

func (c *countingEmitter) Emit(ctx context.Context, record SecurityRecord, labels map[string]string) {
	c.count++
}

// TestNewSecurityRecord tests the stamped fields and the nil-metadata guard.
func TestNewSecurityRecord(t *testing.T) {
	record := NewSecurityRecord("git_event_processed", SeverityMedium, "processed", nil)

	if record.Source != "webhook_receiver" {
		t.Fatalf("source = %s, want webhook_receiver", record.Source)
	}
	if record.Timestamp == "" {
		t.Fatal("expected timestamp to be set")
	}
	if record.Metadata == nil {
		t.Fatal("metadata must never be nil")
	}
}

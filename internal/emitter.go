package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// SecurityRecord is one structured security event as written to the log sink.
type SecurityRecord struct {
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"event_type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Source    string         `json:"source"`
	Metadata  map[string]any `json:"metadata"`
}

// NewSecurityRecord stamps a record with the current UTC time.
func NewSecurityRecord(eventType string, severity Severity, message string, metadata map[string]any) SecurityRecord {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return SecurityRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: eventType,
		Severity:  severity,
		Message:   message,
		Source:    "webhook_receiver",
		Metadata:  metadata,
	}
}

// Emitter delivers security records to a sink. Delivery is best-effort:
// implementations log failures locally and never propagate them.
type Emitter interface {
	Emit(ctx context.Context, record SecurityRecord, labels map[string]string)
}

// FanoutEmitter sends each record to every wrapped emitter.
type FanoutEmitter []Emitter

func (f FanoutEmitter) Emit(ctx context.Context, record SecurityRecord, labels map[string]string) {
	for _, e := range f {
		e.Emit(ctx, record, labels)
	}
}

// LokiEmitter pushes security records to a Loki-compatible ingestion
// endpoint.
type LokiEmitter struct {
	url     string
	job     string
	service string
	client  *http.Client
	logger  *log.Logger
}

func NewLokiEmitter(cfg LokiConfig, logger *log.Logger) *LokiEmitter {
	if logger == nil {
		logger = log.Default()
	}
	return &LokiEmitter{
		url:     cfg.URL,
		job:     cfg.Job,
		service: cfg.Service,
		client:  &http.Client{Timeout: time.Duration(cfg.PushTimeoutMS) * time.Millisecond},
		logger:  logger,
	}
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type lokiPush struct {
	Streams []lokiStream `json:"streams"`
}

// Emit writes one record as a single-value stream. The stream always carries
// job, service, event_type, and level labels; caller labels (source,
// repository, actor) are merged on top.
func (e *LokiEmitter) Emit(ctx context.Context, record SecurityRecord, labels map[string]string) {
	line, err := json.Marshal(record)
	if err != nil {
		e.logger.Printf("encode security record %s: %v", record.EventType, err)
		IncEmitError("loki")
		return
	}

	stream := map[string]string{
		"job":        e.job,
		"service":    e.service,
		"event_type": record.EventType,
		"level":      record.Severity.Level(),
	}
	for key, value := range labels {
		if value != "" {
			stream[key] = value
		}
	}

	if err := e.Push(ctx, line, stream); err != nil {
		e.logger.Printf("loki push %s failed: %v", record.EventType, err)
		IncEmitError("loki")
	}
}

// Push sends one raw log line with the given label set. Unlike Emit it
// reports failures so callers that want to count them can.
func (e *LokiEmitter) Push(ctx context.Context, line []byte, labels map[string]string) error {
	payload := lokiPush{
		Streams: []lokiStream{{
			Stream: labels,
			Values: [][2]string{{
				strconv.FormatInt(time.Now().UnixNano(), 10),
				string(line),
			}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ForwarderEmitter mirrors records onto a message bus. Forward failures are
// logged and swallowed so they can never affect the webhook response.
type ForwarderEmitter struct {
	forwarder Forwarder
	logger    *log.Logger
}

func NewForwarderEmitter(forwarder Forwarder, logger *log.Logger) *ForwarderEmitter {
	if logger == nil {
		logger = log.Default()
	}
	return &ForwarderEmitter{forwarder: forwarder, logger: logger}
}

func (e *ForwarderEmitter) Emit(ctx context.Context, record SecurityRecord, labels map[string]string) {
	if err := e.forwarder.Forward(ctx, record); err != nil {
		e.logger.Printf("forward %s failed: %v", record.EventType, err)
		IncEmitError("forwarder")
	}
}

package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"sechooks/internal"

	"github.com/google/uuid"
)

// Handler is the security webhook endpoint. It gates each request on the
// shared-secret signature, normalizes the payload, runs the risk and anomaly
// analyzers, and emits structured records to the configured sinks. Emission
// is best-effort: a dead log sink never changes the HTTP response.
type Handler struct {
	cfg     internal.WebhookConfig
	emitter internal.Emitter
	logger  *log.Logger
	maxBody int64
}

func NewHandler(cfg internal.WebhookConfig, emitter internal.Emitter, logger *log.Logger, maxBody int64) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{cfg: cfg, emitter: emitter, logger: logger, maxBody: maxBody}
}

// summaryResponse is the 200 body returned after a processed event.
type summaryResponse struct {
	Status             string `json:"status"`
	EventType          string `json:"event_type"`
	SecurityRisksCount int    `json:"security_risks_count"`
	AnomaliesCount     int    `json:"anomalies_count"`
	RiskLevel          string `json:"risk_level"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	logger := internal.WithRequestID(h.logger, requestID)

	clientIP := internal.ClientIP(r)
	rawBody, err := readBody(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	h.emitter.Emit(r.Context(), internal.NewSecurityRecord(
		"webhook_request", internal.SeverityInfo, "Webhook request received",
		map[string]any{
			"client_ip":      clientIP,
			"user_agent":     r.Header.Get("User-Agent"),
			"content_length": r.ContentLength,
			"content_type":   r.Header.Get("Content-Type"),
		},
	), nil)

	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		signature = r.Header.Get("X-Gitlab-Token")
	}
	if !VerifySignature([]byte(h.cfg.Secret), rawBody, signature, !h.cfg.SkipVerification) {
		internal.IncAuthFailure()
		h.emitter.Emit(r.Context(), internal.NewSecurityRecord(
			"webhook_auth_failure", internal.SeverityHigh, "Webhook signature verification failed",
			map[string]any{
				"client_ip":          clientIP,
				"signature_provided": signature != "",
				"payload_size":       len(rawBody),
			},
		), nil)
		logger.Printf("signature verification failed client=%s", clientIP)
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		internal.IncParseError()
		h.emitter.Emit(r.Context(), internal.NewSecurityRecord(
			"webhook_parse_error", internal.SeverityMedium, "Failed to parse webhook payload",
			map[string]any{"error": err.Error(), "client_ip": clientIP},
		), nil)
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON payload"})
		return
	}
	if len(payload) == 0 {
		internal.IncParseError()
		h.emitter.Emit(r.Context(), internal.NewSecurityRecord(
			"webhook_parse_error", internal.SeverityMedium, "Empty webhook payload",
			map[string]any{"client_ip": clientIP},
		), nil)
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Empty payload"})
		return
	}

	h.process(w, r, logger, clientIP, rawBody)
}

// process covers the parsed → analyzed → emitted → responded stages. Any
// panic here is translated into a processing-error event and a generic 500.
func (h *Handler) process(w http.ResponseWriter, r *http.Request, logger *log.Logger, clientIP string, rawBody []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Printf("webhook processing panic: %v", rec)
			h.emitter.Emit(r.Context(), internal.NewSecurityRecord(
				"webhook_processing_error", internal.SeverityHigh, "Error processing webhook",
				map[string]any{
					"error":      fmt.Sprint(rec),
					"error_type": fmt.Sprintf("%T", rec),
					"client_ip":  clientIP,
				},
			), nil)
			respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		}
	}()

	ev := Normalize(r.Header, rawBody)
	internal.IncRequest(string(ev.Provider))

	findings, severity := Analyze(ev)
	anomalies := DetectAnomalies(ev)
	verdict := internal.SecurityVerdict{
		Event:     ev,
		Findings:  findings,
		Severity:  severity,
		Anomalies: anomalies,
	}
	for _, finding := range findings {
		internal.IncFinding(finding.Category)
	}
	for _, anomaly := range anomalies {
		internal.IncFinding(anomaly.Category)
	}

	metadata := map[string]any{
		"event_type":     ev.EventKind,
		"repository":     ev.Repository,
		"ref":            ev.Ref,
		"pusher":         ev.Actor,
		"commit_count":   len(ev.Commits),
		"security_risks": descriptions(findings),
		"user_anomalies": descriptions(anomalies),
		"client_ip":      clientIP,
	}
	labels := map[string]string{
		"source":     string(ev.Provider),
		"repository": ev.Repository,
		"actor":      ev.Actor,
	}

	h.emitter.Emit(r.Context(), internal.NewSecurityRecord(
		"git_event_processed", verdict.Severity,
		fmt.Sprintf("Git %s event processed", ev.EventKind), metadata,
	), labels)

	if len(verdict.Findings) > 0 {
		h.emitter.Emit(r.Context(), internal.NewSecurityRecord(
			"security_risk_detected", verdict.Severity,
			"Security risks detected in Git event: "+strings.Join(descriptions(verdict.Findings), ", "),
			metadata,
		), labels)
	}
	if len(verdict.Anomalies) > 0 {
		h.emitter.Emit(r.Context(), internal.NewSecurityRecord(
			"user_behavior_anomaly", internal.SeverityMedium,
			"User behavior anomalies detected: "+strings.Join(descriptions(verdict.Anomalies), ", "),
			metadata,
		), labels)
	}

	logger.Printf("event provider=%s kind=%s risks=%d anomalies=%d severity=%s",
		ev.Provider, ev.EventKind, len(verdict.Findings), len(verdict.Anomalies), verdict.Severity)

	respondJSON(w, http.StatusOK, summaryResponse{
		Status:             "processed",
		EventType:          ev.EventKind,
		SecurityRisksCount: len(verdict.Findings),
		AnomaliesCount:     len(verdict.Anomalies),
		RiskLevel:          verdict.Severity.String(),
	})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func descriptions(findings []internal.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, finding := range findings {
		out = append(out, finding.Description)
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// HealthHandler answers liveness probes.
func HealthHandler(service string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": service,
		})
	})
}

// NotFoundHandler reports unexpected paths as low-severity security events.
func NotFoundHandler(emitter internal.Emitter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		emitter.Emit(r.Context(), internal.NewSecurityRecord(
			"webhook_404", internal.SeverityLow, "Webhook endpoint not found",
			map[string]any{
				"path":       r.URL.Path,
				"client_ip":  internal.ClientIP(r),
				"user_agent": r.Header.Get("User-Agent"),
			},
		), nil)
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "Endpoint not found"})
	})
}

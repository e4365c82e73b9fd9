package api

import (
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"strconv"
	"time"

	"sechooks/internal"

	"github.com/google/uuid"
)

const (
	serviceName    = "demo-api"
	serviceVersion = "1.0.0"
)

var apiRequests = expvar.NewMap("sechooks_demo_api_requests_total")

// Handler serves the CRUD demo endpoints.
type Handler struct {
	store  *Store
	logger *log.Logger
}

func NewHandler(store *Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes builds the demo API mux with request logging applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/users", h.listUsers)
	mux.HandleFunc("GET /api/users/{id}", h.getUser)
	mux.HandleFunc("POST /api/users", h.createUser)
	mux.HandleFunc("GET /api/simulate-error", h.simulateError)
	mux.HandleFunc("GET /api/simulate-slow", h.simulateSlow)
	mux.HandleFunc("GET /api/unauthorized", h.unauthorized)
	mux.Handle("GET /metrics", expvar.Handler())
	return h.withLogging(mux)
}

// withLogging tags each request with a UUID and logs method, path, status,
// and latency once the handler finishes.
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		apiRequests.Add(r.URL.Path, 1)
		logger := internal.WithRequestID(h.logger, requestID)
		logger.Printf("request completed method=%s path=%s status=%d duration_ms=%d",
			r.Method, r.URL.Path, recorder.status, time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   serviceVersion,
		"service":   serviceName,
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users := h.store.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid user id"})
		return
	}
	user, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Missing required fields: name, email",
		})
		return
	}
	user := h.store.Create(req.Name, req.Email, req.Role)
	h.logger.Printf("user created id=%d email=%s", user.ID, user.Email)
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) simulateError(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "This is a simulated error for testing",
	})
}

func (h *Handler) simulateSlow(w http.ResponseWriter, r *http.Request) {
	time.Sleep(2 * time.Second)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "This endpoint simulates slow response",
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized access"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

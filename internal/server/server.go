// Package server exposes the classification engine over HTTP. The API
// surface is small: two detection routes, health probes, and a request
// status lookup backed by a short-lived in-memory store. Every handler
// enforces the same perimeter in order: in-flight limit, bearer auth,
// body size limit.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentira-ai/sentira/internal/activation"
	"github.com/sentira-ai/sentira/internal/auth"
	"github.com/sentira-ai/sentira/internal/classify"
	"github.com/sentira-ai/sentira/internal/config"
	"github.com/sentira-ai/sentira/internal/crisis"
	"github.com/sentira-ai/sentira/internal/telemetry"
)

// maxBatchInputs caps a single batch request. Larger batches should be
// split by the caller; an unbounded batch defeats the in-flight limiter.
const maxBatchInputs = 32

const (
	routeDetect      = "/v1/context/detect"
	routeDetectBatch = "/v1/context/detect/batch"
	routeRequests    = "/v1/requests/"
)

// Server wires auth, the classifier, activation, and telemetry behind
// an http.ServeMux. Construct with New; the zero value is not usable.
type Server struct {
	cfg        *config.Config
	auth       *auth.Auth
	classifier *classify.Classifier
	emitter    *activation.Emitter
	telemetry  *telemetry.Provider
	logger     *zap.Logger
	ready      func() bool

	inFlight chan struct{}
	requests *requestStore
	mux      *http.ServeMux
}

// Options collects the dependencies a Server needs. Emitter, Telemetry,
// and Ready are optional; a nil Ready means always ready.
type Options struct {
	Config     *config.Config
	Auth       *auth.Auth
	Classifier *classify.Classifier
	Emitter    *activation.Emitter
	Telemetry  *telemetry.Provider
	Logger     *zap.Logger
	Ready      func() bool
}

// New builds the server and registers its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxInFlight := opts.Config.Server.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 256
	}

	s := &Server{
		cfg:        opts.Config,
		auth:       opts.Auth,
		classifier: opts.Classifier,
		emitter:    opts.Emitter,
		telemetry:  opts.Telemetry,
		logger:     logger,
		ready:      opts.Ready,
		inFlight:   make(chan struct{}, maxInFlight),
		requests:   newRequestStore(0),
		mux:        http.NewServeMux(),
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.HandleFunc(routeDetect, s.handleDetect)
	s.mux.HandleFunc(routeDetectBatch, s.handleDetectBatch)
	s.mux.HandleFunc(routeRequests, s.handleRequestStatus)

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintln(w, "ready")
}

// detectRequest is the single-utterance request body.
type detectRequest struct {
	Query   string   `json:"query"`
	History []string `json:"history,omitempty"`
	UserID  string   `json:"user_id,omitempty"`
}

// detectResponse wraps a detection with its request id so callers can
// fetch the stored activation record later.
type detectResponse struct {
	RequestID string             `json:"request_id"`
	Result    classify.Detection `json:"result"`
}

type batchRequest struct {
	Inputs []classify.Input `json:"inputs"`
}

type batchResponse struct {
	RequestID string               `json:"request_id"`
	Results   []classify.Detection `json:"results"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required", "invalid_request_error")
		return
	}
	if !s.tryAcquire() {
		writeError(w, http.StatusTooManyRequests, "Too many requests in flight", "rate_limit_error")
		return
	}
	defer s.release()

	project, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req detectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	start := time.Now()
	requestID := uuid.NewString()
	s.requests.Start(requestID, project.ID)

	det := s.classifier.DetectInput(r.Context(), classify.Input{
		Query:       req.Query,
		History:     req.History,
		UserID:      req.UserID,
		Sensitivity: project.Sensitivity,
	})

	s.finishClassification(r.Context(), finishParams{
		detection: &det,
		query:     req.Query,
		userID:    req.UserID,
		project:   project,
		route:     routeDetect,
		requestID: requestID,
		start:     start,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	_ = json.NewEncoder(w).Encode(detectResponse{RequestID: requestID, Result: det})
}

func (s *Server) handleDetectBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required", "invalid_request_error")
		return
	}
	if !s.tryAcquire() {
		writeError(w, http.StatusTooManyRequests, "Too many requests in flight", "rate_limit_error")
		return
	}
	defer s.release()

	project, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Inputs) == 0 {
		writeError(w, http.StatusBadRequest, "inputs must not be empty", "invalid_request_error")
		return
	}
	if len(req.Inputs) > maxBatchInputs {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("inputs exceeds the batch limit of %d", maxBatchInputs), "invalid_request_error")
		return
	}

	start := time.Now()
	requestID := uuid.NewString()

	inputs := make([]classify.Input, len(req.Inputs))
	for i, in := range req.Inputs {
		in.Sensitivity = project.Sensitivity
		inputs[i] = in
	}

	results := s.classifier.DetectBatch(r.Context(), inputs)

	for i := range results {
		s.finishClassification(r.Context(), finishParams{
			detection: &results[i],
			query:     inputs[i].Query,
			userID:    inputs[i].UserID,
			project:   project,
			route:     routeDetectBatch,
			requestID: fmt.Sprintf("%s-%d", requestID, i),
			start:     start,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	_ = json.NewEncoder(w).Encode(batchResponse{RequestID: requestID, Results: results})
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required", "invalid_request_error")
		return
	}

	project, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	requestID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, routeRequests))
	if requestID == "" {
		http.NotFound(w, r)
		return
	}

	entry, ok := s.requests.Get(requestID)
	if !ok || entry.projectID != project.ID {
		// Cross-project lookups 404 rather than 403 so request ids do
		// not leak existence across tenants.
		http.NotFound(w, r)
		return
	}

	resp := map[string]any{
		"status":     entry.status,
		"activation": nil,
	}
	if entry.status == statusCompleted && entry.activation != nil {
		resp["activation"] = entry.activation
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// finishParams bundles everything the post-classification tail needs.
type finishParams struct {
	detection *classify.Detection
	query     string
	userID    string
	project   auth.Project
	route     string
	requestID string
	start     time.Time
}

// finishClassification runs the non-response side effects of a
// classification: activation event, request store, telemetry.
func (s *Server) finishClassification(ctx context.Context, p finishParams) {
	det := p.detection
	shortCircuit := det.Context == classify.ContextCrisis && crisis.IsCritical(det.Metadata.Crisis)

	ev := activation.BuildEvent(activation.BuildParams{
		Detection:    det,
		Query:        p.query,
		ProjectID:    p.project.ID,
		Sensitivity:  p.project.Sensitivity,
		UserID:       p.userID,
		Route:        p.route,
		CaptureLevel: s.cfg.Logging.ActivationLevel,
		RequestID:    p.requestID,
		ShortCircuit: shortCircuit,
		Degraded:     det.Metadata.Degraded,
		DetectorMs:   det.Metadata.ProcessingTimeMs,
	})
	s.emitter.Emit(ctx, ev)
	s.requests.Complete(p.requestID, ev)

	s.telemetry.RecordClassification(telemetry.ClassificationMetrics{
		Route:        p.route,
		Context:      string(det.Context),
		Method:       det.Metadata.AnalysisMethod,
		ProjectID:    p.project.ID,
		DurationMs:   float64(time.Since(p.start).Microseconds()) / 1000.0,
		DetectorMs:   det.Metadata.ProcessingTimeMs,
		ShortCircuit: shortCircuit,
		Degraded:     det.Metadata.Degraded,
	})
}

// authenticate resolves the bearer token to a project, writing the 401
// itself on failure. With security disabled, unauthenticated callers
// map to the anonymous project instead.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (auth.Project, bool) {
	apiKey, ok := parseBearerToken(r.Header.Get("Authorization"))
	if ok && apiKey != "" {
		if project, found := s.auth.Lookup(apiKey); found {
			return project, true
		}
		if s.cfg.Security.Enabled {
			writeError(w, http.StatusUnauthorized, "Invalid API key", "authentication_error")
			return auth.Project{}, false
		}
	} else if s.cfg.Security.Enabled {
		writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "authentication_error")
		return auth.Project{}, false
	}
	return auth.Project{ID: "anonymous", Sensitivity: "standard"}, true
}

// decodeBody decodes a size-capped JSON body, writing 413 when the cap
// is exceeded and 400 on malformed JSON.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := s.cfg.Server.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "invalid_request_error")
			return false
		}
		writeError(w, http.StatusBadRequest, "Malformed JSON body", "invalid_request_error")
		return false
	}
	return true
}

func (s *Server) tryAcquire() bool {
	select {
	case s.inFlight <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	select {
	case <-s.inFlight:
	default:
	}
}

// parseBearerToken extracts the token from an Authorization: Bearer header.
func parseBearerToken(h string) (string, bool) {
	if h == "" {
		return "", false
	}
	parts := strings.Fields(h)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeError writes the standard error JSON envelope.
func writeError(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{Message: message, Type: typ},
	})
}

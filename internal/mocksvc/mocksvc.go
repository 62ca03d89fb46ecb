// Package mocksvc runs a stand-in crisis-detection service for tests
// and local development. It answers the same wire contract the remote
// detector client speaks, backed by the pattern engine so verdicts are
// plausible rather than canned.
package mocksvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sentira-ai/sentira/internal/crisis"
	"github.com/sentira-ai/sentira/internal/risk"
)

const (
	defaultPort    = 18080
	defaultDelayMS = 50
)

type detectRequest struct {
	Text             string `json:"text"`
	SensitivityLevel string `json:"sensitivity_level,omitempty"`
	UserID           string `json:"user_id,omitempty"`
}

// StartMockService launches the mock crisis-detection server. If addr
// is empty, it listens on 127.0.0.1:MOCK_SERVICE_PORT (default 18080).
// It returns a shutdown function and the base URL.
func StartMockService(addr string) (func(context.Context) error, string, error) {
	if strings.TrimSpace(addr) == "" {
		port := strings.TrimSpace(os.Getenv("MOCK_SERVICE_PORT"))
		if port == "" {
			port = fmt.Sprintf("%d", defaultPort)
		}
		addr = "127.0.0.1:" + port
	}

	delay := defaultDelayMS
	if val := strings.TrimSpace(os.Getenv("MOCK_DELAY_MS")); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			delay = parsed
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	detector := crisis.NewPatternDetector(risk.DefaultCalibration())

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("mock crisis request method=%s path=%s", r.Method, r.URL.Path)

		p := r.URL.Path
		if len(p) > 1 {
			p = strings.TrimSuffix(p, "/")
		}

		if r.Method == http.MethodPost && p == "/v1/crisis/detect" {
			writeDetection(w, r, detector, delay)
			return
		}
		if r.Method == http.MethodGet && p == "/healthz" {
			fmt.Fprintln(w, "ok")
			return
		}

		writeNotFoundJSON(w)
	})

	srv := &http.Server{
		Handler: mux,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("mock crisis server error: %v", err)
		}
	}()

	shutdown := func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}

	baseURL := "http://" + ln.Addr().String()
	log.Printf("mock crisis service listening on %s (delay_ms=%d)", baseURL, delay)
	return shutdown, baseURL, nil
}

func writeDetection(w http.ResponseWriter, r *http.Request, detector *crisis.PatternDetector, delayMS int) {
	if delayMS > 0 {
		time.Sleep(time.Duration(delayMS) * time.Millisecond)
	}

	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	result, _ := detector.Assess(req.Text)
	if result == nil {
		// Below the surfacing floor. The wire contract still needs a
		// full verdict, so answer with an explicit non-crisis.
		result = &crisis.Result{
			IsCrisis:          false,
			Confidence:        0,
			Category:          "none",
			Severity:          crisis.SeverityNone,
			RecommendedAction: crisis.ActionMonitor,
			RiskLevel:         crisis.RiskLevelLow,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
		},
	})
}

func writeNotFoundJSON(w http.ResponseWriter) {
	writeErrorJSON(w, http.StatusNotFound, "Not found")
}

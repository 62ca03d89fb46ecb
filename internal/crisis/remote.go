package crisis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteClient calls an external crisis-detection service over HTTP.
// Any non-2xx response, transport failure, timeout, or schema-invalid
// body is returned as an error; the orchestrator treats all of them as
// "service unavailable" and falls back to patterns.
type RemoteClient struct {
	baseURL          string
	apiKey           string
	client           *http.Client
	maxResponseBytes int64
}

// NewRemoteClient creates a client for the crisis-detection service.
func NewRemoteClient(baseURL, apiKey string, timeout time.Duration, maxResponseBytes int64) *RemoteClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxResponseBytes <= 0 {
		maxResponseBytes = 1 * 1024 * 1024
	}
	return &RemoteClient{
		baseURL:          baseURL,
		apiKey:           apiKey,
		maxResponseBytes: maxResponseBytes,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type detectRequest struct {
	Text             string `json:"text"`
	SensitivityLevel string `json:"sensitivity_level,omitempty"`
	UserID           string `json:"user_id,omitempty"`
}

type detectResponse struct {
	IsCrisis             *bool    `json:"is_crisis"`
	Confidence           *float64 `json:"confidence"`
	Category             string   `json:"category"`
	Severity             string   `json:"severity"`
	RecommendedAction    string   `json:"recommended_action"`
	RequiresIntervention bool     `json:"requires_intervention"`
	RiskLevel            string   `json:"risk_level"`
}

type detectErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Detect satisfies Detector.
func (c *RemoteClient) Detect(ctx context.Context, text string, opts Options) (*Result, error) {
	body, err := json.Marshal(detectRequest{
		Text:             text,
		SensitivityLevel: opts.SensitivityLevel,
		UserID:           opts.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal crisis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/v1/crisis/detect", c.baseURL),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("create crisis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call crisis service: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.maxResponseBytes+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read crisis response: %w", err)
	}
	if int64(len(respBody)) > c.maxResponseBytes {
		return nil, fmt.Errorf("crisis response exceeded limit (%d bytes)", c.maxResponseBytes)
	}

	if resp.StatusCode >= 400 {
		var errBody detectErrorResponse
		if err := json.Unmarshal(respBody, &errBody); err != nil {
			return nil, fmt.Errorf("crisis service status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("crisis service error: %s (type=%s)", errBody.Error.Message, errBody.Error.Type)
	}

	var dr detectResponse
	if err := json.Unmarshal(respBody, &dr); err != nil {
		return nil, fmt.Errorf("decode crisis response: %w", err)
	}
	return normalizeResponse(dr)
}

// normalizeResponse validates the external verdict. Required fields
// must be present and enum values in-domain; confidence is clamped to
// [0,1] rather than rejected.
func normalizeResponse(dr detectResponse) (*Result, error) {
	if dr.IsCrisis == nil || dr.Confidence == nil {
		return nil, fmt.Errorf("crisis response missing required fields")
	}

	severity := Severity(dr.Severity)
	if !validSeverity(severity) {
		return nil, fmt.Errorf("crisis response has invalid severity %q", dr.Severity)
	}
	level := RiskLevel(dr.RiskLevel)
	if !validRiskLevel(level) {
		return nil, fmt.Errorf("crisis response has invalid risk level %q", dr.RiskLevel)
	}

	confidence := *dr.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Result{
		IsCrisis:             *dr.IsCrisis,
		Confidence:           confidence,
		Category:             dr.Category,
		Severity:             severity,
		RecommendedAction:    dr.RecommendedAction,
		RequiresIntervention: dr.RequiresIntervention,
		RiskLevel:            level,
	}, nil
}

// Package generation is the boundary to the external image transformation
// backend. The admission engine never reaches in here; the transport layer
// calls Generate only after a request was admitted.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/inkproof/stencil-gateway/internal/config"
	"github.com/inkproof/stencil-gateway/pkg/metrics"
)

// ErrPayloadTooLarge is returned before any outbound call when the base64
// image exceeds the configured cap.
var ErrPayloadTooLarge = errors.New("image payload too large")

// ErrNoImage is returned when the backend answered 2xx but without an
// inline image part.
var ErrNoImage = errors.New("no image returned")

// UpstreamError carries a non-2xx backend response.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation backend returned %d: %s", e.StatusCode, e.Message)
}

// Request is one transformation call.
type Request struct {
	ImageBase64 string
	Style       string
	MimeType    string
	Note        string
}

// Result is the transformed image.
type Result struct {
	ImageBase64 string
}

// Client calls the Gemini generateContent REST endpoint. The timeout bounds
// the whole call independently of the admission checks that preceded it.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
	maxPayload int
	timeout    time.Duration
	sanitizer  *bluemonday.Policy
	logger     *zap.Logger
}

func NewClient(cfg config.GenerationConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxPayload: cfg.MaxPayloadChars,
		timeout:    cfg.Timeout,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger,
	}
}

type geminiInline struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *geminiInline `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPayload struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs one transformation. Unknown styles and mime types are
// coerced to their defaults; the free-text note is stripped of any markup
// before it is embedded in the prompt.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(req.ImageBase64) > c.maxPayload {
		return nil, ErrPayloadTooLarge
	}

	payload := geminiPayload{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: buildPrompt(req.Style, c.sanitizer.Sanitize(req.Note))},
				{InlineData: &geminiInline{
					MimeType: normalizeMime(req.MimeType),
					Data:     req.ImageBase64,
				}},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		kind := "transport"
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			kind = "timeout"
		}
		metrics.GenerationFailures.WithLabelValues(kind).Inc()
		return nil, fmt.Errorf("generation call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GenerationFailures.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}

	var decoded geminiResponse
	// A malformed body is tolerated on error statuses; the status carries
	// the signal.
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := "generation backend error"
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		metrics.GenerationFailures.WithLabelValues("upstream").Inc()
		c.logger.Warn("generation backend rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return &Result{ImageBase64: part.InlineData.Data}, nil
			}
		}
	}
	metrics.GenerationFailures.WithLabelValues("no_image").Inc()
	return nil, ErrNoImage
}

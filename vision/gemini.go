// Package vision asks a vision-language model to describe camera frames.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/telemetry"
)

const (
	// DefaultBaseURL is the Gemini REST endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-1.5-flash"

	// DefaultTimeout bounds one Describe call.
	DefaultTimeout = 30 * time.Second

	providerName = "gemini"

	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"
	mimeTypeJPEG      = "image/jpeg"

	finishReasonSafety     = "SAFETY"
	finishReasonRecitation = "RECITATION"
	finishReasonBlocklist  = "BLOCKLIST"
	finishReasonProhibited = "PROHIBITED_CONTENT"

	maxErrorBody = 512
)

// Describer turns an image and a prompt into a description.
type Describer interface {
	Describe(ctx context.Context, image []byte, prompt string) (string, error)
}

// GeminiClient calls generateContent with one inline JPEG and a text prompt.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
	calls      atomic.Int64
}

// Option configures a GeminiClient.
type Option func(*GeminiClient)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *GeminiClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithModel sets the model id.
func WithModel(model string) Option {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *GeminiClient) {
		c.httpClient = client
	}
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(c *GeminiClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHourlyBudget limits calls to n per hour. Calls beyond the budget fail
// with ErrRateLimited without reaching the network. Zero disables the limit.
func WithHourlyBudget(n int) Option {
	return func(c *GeminiClient) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(n)), n)
	}
}

// WithTracerProvider sets the provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *GeminiClient) {
		c.tracer = telemetry.Tracer(tp)
	}
}

// NewGeminiClient creates a client authenticated with apiKey.
func NewGeminiClient(apiKey string, opts ...Option) *GeminiClient {
	c := &GeminiClient{
		apiKey:  apiKey,
		model:   DefaultModel,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: telemetry.Tracer(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model id.
func (c *GeminiClient) Model() string { return c.model }

// Calls returns the number of requests sent to the API.
func (c *GeminiClient) Calls() int64 { return c.calls.Load() }

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiGenConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// Describe sends image and prompt and returns the model's text.
func (c *GeminiClient) Describe(ctx context.Context, image []byte, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: %w", ErrInvalidResponse, ErrEmptyImage)
	}

	ctx = logger.WithProvider(ctx, providerName)
	ctx, span := c.tracer.Start(ctx, "vision.describe", trace.WithAttributes(
		attribute.String("vision.model", c.model),
		attribute.Int("vision.image_bytes", len(image)),
	))
	defer span.End()

	text, err := c.describe(ctx, image, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("vision.response_chars", len(text)))
	return text, nil
}

func (c *GeminiClient) describe(ctx context.Context, image []byte, prompt string) (string, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return "", fmt.Errorf("%w: hourly call budget exhausted", ErrRateLimited)
	}

	req := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeTypeJPEG,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: geminiGenConfig{Temperature: 0.4, MaxOutputTokens: 1024},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrInvalidResponse, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	logger.APIRequest("Gemini", http.MethodPost, endpoint,
		map[string]string{contentTypeHeader: applicationJSON}, loggableRequest(req, len(image)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}
	httpReq.Header.Set(contentTypeHeader, applicationJSON)

	c.calls.Add(1)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.APIResponse("Gemini", 0, "", err)
		// url.Error carries the request URL, which includes the key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.APIResponse("Gemini", resp.StatusCode, "", err)
		return "", fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}
	logger.APIResponse("Gemini", resp.StatusCode, string(respBody), nil)

	if resp.StatusCode != http.StatusOK {
		return "", parseErrorResponse(resp.StatusCode, respBody)
	}
	return parseResponse(respBody)
}

func parseErrorResponse(status int, body []byte) error {
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != nil {
		if er.Error.Code == 0 {
			er.Error.Code = status
		}
		return er.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return &APIError{Code: status, Status: http.StatusText(status), Message: msg}
}

func parseResponse(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %v", ErrInvalidResponse, err)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked: %s", ErrInvalidResponse, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates in response", ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case finishReasonSafety, finishReasonRecitation, finishReasonBlocklist, finishReasonProhibited:
		return "", fmt.Errorf("%w: response blocked (%s)", ErrInvalidResponse, candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty text (finish reason: %s)", ErrInvalidResponse, candidate.FinishReason)
	}
	return text, nil
}

// loggableRequest replaces inline image data with its size.
func loggableRequest(req geminiRequest, imageBytes int) geminiRequest {
	out := req
	out.Contents = make([]geminiContent, len(req.Contents))
	for i, content := range req.Contents {
		parts := make([]geminiPart, len(content.Parts))
		for j, p := range content.Parts {
			if p.InlineData != nil {
				p.InlineData = &geminiInlineData{
					MimeType: p.InlineData.MimeType,
					Data:     fmt.Sprintf("<%d bytes>", imageBytes),
				}
			}
			parts[j] = p
		}
		out.Contents[i] = geminiContent{Role: content.Role, Parts: parts}
	}
	return out
}

// Classify returns the sentinel matching err, or nil if err is not a vision error.
func Classify(err error) error {
	for _, sentinel := range []error{ErrRateLimited, ErrNetwork, ErrInvalidResponse} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

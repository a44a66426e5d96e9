package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avashx/itark/logger"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openAITTSEndpoint = "/audio/speech"
	providerOpenAI    = "openai"

	// ModelTTS1 is the OpenAI TTS model optimized for speed.
	ModelTTS1 = "tts-1"
	// ModelTTS1HD is the OpenAI TTS model optimized for quality.
	ModelTTS1HD = "tts-1-hd"

	// VoiceAlloy is the neutral default voice.
	VoiceAlloy = "alloy"
	// VoiceNova is a warm female voice.
	VoiceNova = "nova"

	defaultOpenAITimeout = 30 * time.Second

	openAIMinSpeed = 0.25
	openAIMaxSpeed = 4.0
)

// OpenAIService implements TTS using OpenAI's text-to-speech API.
type OpenAIService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
}

// OpenAIOption configures the OpenAI TTS service.
type OpenAIOption func(*OpenAIService)

// WithOpenAIBaseURL sets a custom base URL (for testing or proxies).
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(s *OpenAIService) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithOpenAIClient sets a custom HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(s *OpenAIService) {
		s.client = client
	}
}

// WithOpenAIModel sets the TTS model to use.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *OpenAIService) {
		s.model = model
	}
}

// NewOpenAI creates an OpenAI TTS service.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIService {
	s := &OpenAIService{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		client: &http.Client{
			Timeout:   defaultOpenAITimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		model: ModelTTS1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *OpenAIService) Name() string {
	return providerOpenAI
}

type openAIRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize converts text to audio using OpenAI's TTS API. PCM output is
// 24kHz 16-bit mono.
//
//nolint:gocritic // hugeParam: SynthesisConfig passed by value to satisfy Service interface
func (s *OpenAIService) Synthesize(ctx context.Context, text string, config SynthesisConfig) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	config = config.withDefaults()

	var format string
	switch config.Format.Name {
	case FormatPCM16.Name, FormatMP3.Name:
		format = config.Format.Name
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, config.Format)
	}

	voice := config.Voice
	if voice == "" {
		voice = VoiceAlloy
	}
	model := config.Model
	if model == "" {
		model = s.model
	}

	reqBody := openAIRequest{
		Model:          model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: format,
		Speed:          min(max(config.Speed, openAIMinSpeed), openAIMaxSpeed),
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := s.baseURL + openAITTSEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logger.APIRequest("OpenAI TTS", http.MethodPost, endpoint, map[string]string{
		"Authorization": req.Header.Get("Authorization"),
	}, reqBody)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.APIResponse("OpenAI TTS", 0, "", err)
		return nil, NewSynthesisError(providerOpenAI, "", "request failed", err, true)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		logger.APIResponse("OpenAI TTS", resp.StatusCode, string(body), nil)
		return nil, handleOpenAIError(resp.StatusCode, body)
	}
	logger.APIResponse("OpenAI TTS", resp.StatusCode, "<audio>", nil)
	return resp.Body, nil
}

func handleOpenAIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	retryable := statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
	if err := json.Unmarshal(body, &errResp); err != nil {
		return NewSynthesisError(providerOpenAI, strconv.Itoa(statusCode), "unknown error", statusCause(statusCode), retryable)
	}

	code := errResp.Error.Code
	if code == "" {
		code = strconv.Itoa(statusCode)
	}
	return NewSynthesisError(providerOpenAI, code, errResp.Error.Message, statusCause(statusCode), retryable)
}

package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/telemetry"
)

const (
	openAIBaseURL            = "https://api.openai.com/v1"
	openAITranscribeEndpoint = "/audio/transcriptions"
	providerOpenAI           = "openai"

	// ModelWhisper1 is the OpenAI Whisper model for transcription.
	ModelWhisper1 = "whisper-1"

	defaultOpenAITimeout = 30 * time.Second
)

// OpenAIService implements STT using OpenAI's Whisper API.
type OpenAIService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
	tracer  trace.Tracer
}

// OpenAIOption configures the OpenAI STT service.
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

// WithOpenAIModel sets the STT model to use.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *OpenAIService) {
		s.model = model
	}
}

// WithTracerProvider sets the provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) OpenAIOption {
	return func(s *OpenAIService) {
		s.tracer = telemetry.Tracer(tp)
	}
}

// NewOpenAI creates an OpenAI STT service using Whisper.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIService {
	s := &OpenAIService{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		client: &http.Client{
			Timeout:   defaultOpenAITimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		model:  ModelWhisper1,
		tracer: telemetry.Tracer(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *OpenAIService) Name() string {
	return "openai-whisper"
}

// Transcribe converts audio to text using OpenAI's Whisper API.
//
//nolint:gocritic // hugeParam: TranscriptionConfig passed by value to satisfy Service interface
func (s *OpenAIService) Transcribe(ctx context.Context, audio []byte, config TranscriptionConfig) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	config = config.withDefaults()

	ctx, span := s.tracer.Start(logger.WithProvider(ctx, providerOpenAI), "stt.transcribe", trace.WithAttributes(
		attribute.String("stt.model", s.model),
		attribute.Int("stt.audio_bytes", len(audio)),
	))
	defer span.End()

	text, err := s.transcribe(ctx, audio, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

//nolint:gocritic // hugeParam: see Transcribe
func (s *OpenAIService) transcribe(ctx context.Context, audio []byte, config TranscriptionConfig) (string, error) {
	var filename string
	switch config.Format {
	case FormatPCM:
		audio = WrapPCMAsWAV(audio, config.SampleRate, config.Channels, config.BitDepth)
		filename = "audio.wav"
	case FormatWAV:
		filename = "audio.wav"
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidFormat, config.Format)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	fields := map[string]string{
		"model":           s.model,
		"response_format": "json",
	}
	if config.Language != "" {
		fields["language"] = config.Language
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write %s field: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := s.baseURL + openAITranscribeEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	logger.APIRequest("Whisper", http.MethodPost, url, map[string]string{
		"Authorization": req.Header.Get("Authorization"),
	}, fields)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.APIResponse("Whisper", 0, "", err)
		return "", NewTranscriptionError(providerOpenAI, "", "request failed", err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewTranscriptionError(providerOpenAI, "", "read response", err, true)
	}
	logger.APIResponse("Whisper", resp.StatusCode, string(body), nil)

	if resp.StatusCode != http.StatusOK {
		return "", handleOpenAIError(resp.StatusCode, body)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", NewTranscriptionError(providerOpenAI, "", "invalid response body", err, false)
	}
	return strings.TrimSpace(result.Text), nil
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
		return NewTranscriptionError(providerOpenAI, strconv.Itoa(statusCode), string(body), nil, retryable)
	}

	var cause error
	switch {
	case statusCode == http.StatusTooManyRequests:
		cause = ErrRateLimited
	case statusCode == http.StatusUnauthorized:
		cause = errors.New("invalid API key")
	case errResp.Error.Code == "audio_too_short":
		cause = ErrAudioTooShort
	}

	code := errResp.Error.Code
	if code == "" {
		code = strconv.Itoa(statusCode)
	}
	return NewTranscriptionError(providerOpenAI, code, errResp.Error.Message, cause, retryable)
}

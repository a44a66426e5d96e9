package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avashx/itark/logger"
)

const (
	googleBaseURL    = "https://texttospeech.googleapis.com/v1"
	googleSynthesize = "/text:synthesize"
	providerGoogle   = "google"

	defaultGoogleTimeout = 30 * time.Second

	googleEncodingLinear16 = "LINEAR16"
	googleEncodingMP3      = "MP3"

	googleMinSpeed = 0.25
	googleMaxSpeed = 4.0
)

// googleLanguageCodes maps response languages to BCP-47 voice locales.
var googleLanguageCodes = map[string]string{
	"en": "en-US",
	"hi": "hi-IN",
}

// googleAccentCodes maps English accents to voice locales.
var googleAccentCodes = map[Accent]string{
	AccentUS: "en-US",
	AccentUK: "en-GB",
	AccentAU: "en-AU",
	AccentIN: "en-IN",
}

// googleLanguageCode picks the voice locale for config.
//
//nolint:gocritic // hugeParam: SynthesisConfig passed by value
func googleLanguageCode(config SynthesisConfig) string {
	if config.Language == "en" {
		if code, ok := googleAccentCodes[config.Accent]; ok {
			return code
		}
	}
	if code, ok := googleLanguageCodes[config.Language]; ok {
		return code
	}
	return config.Language
}

// GoogleService implements TTS using the Google Cloud Text-to-Speech REST API.
type GoogleService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// GoogleOption configures the Google TTS service.
type GoogleOption func(*GoogleService)

// WithGoogleBaseURL sets a custom base URL (for testing or proxies).
func WithGoogleBaseURL(baseURL string) GoogleOption {
	return func(s *GoogleService) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithGoogleClient sets a custom HTTP client.
func WithGoogleClient(client *http.Client) GoogleOption {
	return func(s *GoogleService) {
		s.client = client
	}
}

// NewGoogle creates a Google Cloud TTS service authenticated by API key.
func NewGoogle(apiKey string, opts ...GoogleOption) *GoogleService {
	s := &GoogleService{
		apiKey:  apiKey,
		baseURL: googleBaseURL,
		client: &http.Client{
			Timeout:   defaultGoogleTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *GoogleService) Name() string {
	return providerGoogle
}

type googleRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string  `json:"audioEncoding"`
		SampleRateHertz int     `json:"sampleRateHertz,omitempty"`
		SpeakingRate    float64 `json:"speakingRate,omitempty"`
	} `json:"audioConfig"`
}

// Synthesize converts text to audio. LINEAR16 responses arrive as WAV and
// are returned as raw PCM so callers can play FormatPCM16 directly.
//
//nolint:gocritic // hugeParam: SynthesisConfig passed by value to satisfy Service interface
func (s *GoogleService) Synthesize(ctx context.Context, text string, config SynthesisConfig) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	config = config.withDefaults()

	var req googleRequest
	req.Input.Text = text
	req.Voice.LanguageCode = googleLanguageCode(config)
	// Voice names carry their locale; one for another locale is rejected.
	if strings.HasPrefix(config.Voice, req.Voice.LanguageCode) {
		req.Voice.Name = config.Voice
	}
	req.AudioConfig.SpeakingRate = min(max(config.Speed, googleMinSpeed), googleMaxSpeed)
	switch config.Format.Name {
	case FormatPCM16.Name:
		req.AudioConfig.AudioEncoding = googleEncodingLinear16
		req.AudioConfig.SampleRateHertz = config.Format.SampleRate
	case FormatMP3.Name:
		req.AudioConfig.AudioEncoding = googleEncodingMP3
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, config.Format)
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := s.baseURL + googleSynthesize
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint+"?key="+url.QueryEscape(s.apiKey), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logger.APIRequest("Google TTS", http.MethodPost, endpoint, nil, req)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		// The url.Error message carries the key; keep only the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		logger.APIResponse("Google TTS", 0, "", err)
		return nil, NewSynthesisError(providerGoogle, "", "request failed", err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewSynthesisError(providerGoogle, "", "read response", err, true)
	}
	if resp.StatusCode != http.StatusOK {
		logger.APIResponse("Google TTS", resp.StatusCode, string(body), nil)
		return nil, handleGoogleError(resp.StatusCode, body)
	}
	logger.APIResponse("Google TTS", resp.StatusCode, "<audio>", nil)

	var result struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, NewSynthesisError(providerGoogle, "", "invalid response body", err, false)
	}
	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, NewSynthesisError(providerGoogle, "", "invalid audio content", err, false)
	}
	if len(audio) == 0 {
		return nil, NewSynthesisError(providerGoogle, "", "empty audio content", nil, false)
	}
	if config.Format.Name == FormatPCM16.Name {
		audio = stripWAVHeader(audio)
	}
	return io.NopCloser(bytes.NewReader(audio)), nil
}

func handleGoogleError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	retryable := statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return NewSynthesisError(providerGoogle, strconv.Itoa(statusCode), "unknown error", statusCause(statusCode), retryable)
	}
	code := errResp.Error.Status
	if code == "" {
		code = strconv.Itoa(statusCode)
	}
	return NewSynthesisError(providerGoogle, code, errResp.Error.Message, statusCause(statusCode), retryable)
}

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
)

// stripWAVHeader returns the data chunk of a RIFF/WAVE file, or audio
// unchanged when it is not one.
func stripWAVHeader(audio []byte) []byte {
	if len(audio) < riffHeaderSize || string(audio[0:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		return audio
	}
	off := riffHeaderSize
	for off+chunkHeaderSize <= len(audio) {
		id := string(audio[off : off+4])
		size := int(binary.LittleEndian.Uint32(audio[off+4 : off+8]))
		off += chunkHeaderSize
		if id == "data" {
			end := min(off+size, len(audio))
			return audio[off:end]
		}
		off += size + size%2
	}
	return audio
}

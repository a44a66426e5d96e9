// Package config loads and validates the assistant configuration.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file, a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/avashx/itark/logger"
)

// Interval bounds for auto description. The UI clamps to the same range.
const (
	MinInterval = 5 * time.Second
	MaxInterval = 60 * time.Second
)

// Defaults.
const (
	DefaultModel           = "gemini-1.5-flash"
	DefaultInterval        = 10 * time.Second
	DefaultResolution      = "640x480"
	DefaultCameraFPS       = 30
	DefaultJPEGQuality     = 85
	DefaultImageMaxWidth   = 800
	DefaultTTSRate         = 150
	DefaultVoiceTimeout    = 5 * time.Second
	DefaultPhraseTimeLimit = 10 * time.Second
	DefaultMaxCallsPerHour = 50
	DefaultLanguage        = "en"
	DefaultVoiceAccent     = "us"
	DefaultLogFile         = "itark.log"
)

// Supported response languages, in matcher order.
var (
	supportedLanguages = []string{"en", "hi"}
	languageMatcher    = language.NewMatcher([]language.Tag{language.English, language.Hindi})
	supportedAccents   = []string{"us", "uk", "au", "in"}
)

// ErrMissingAPIKey is returned when no vision credential is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

// Config is the validated runtime configuration.
type Config struct {
	// Vision
	APIKey          string
	Model           string
	MaxCallsPerHour int
	Language        string

	// Auto description
	DescriptionInterval time.Duration
	AutoDescribe        bool

	// Camera
	CameraIndex  int
	CameraDevice string
	CameraWidth  int
	CameraHeight int
	CameraFPS    int

	// Preprocessing
	JPEGQuality   int
	ImageMaxWidth int

	// Speech
	TTSRate         int
	VoiceAccent     string
	HDVoice         bool
	OpenAIAPIKey    string
	GoogleTTSAPIKey string
	VoiceTimeout    time.Duration
	PhraseTimeLimit time.Duration

	// Observability
	LogLevel     string
	LogFile      string
	LogFormat    string
	MetricsAddr  string
	OTLPEndpoint string
}

type options struct {
	envFile    string
	envFileSet bool
	configFile string
}

// Option customizes Load.
type Option func(*options)

// WithEnvFile loads variables from path. Unlike the default ".env", a file
// named here must exist.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
		o.envFileSet = true
	}
}

// WithConfigFile merges a YAML file beneath the environment.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configFile = path
	}
}

// Load reads the configuration and validates it.
func Load(opts ...Option) (*Config, error) {
	o := &options{envFile: ".env", configFile: os.Getenv("ITARK_CONFIG")}
	for _, opt := range opts {
		opt(o)
	}

	if err := godotenv.Load(o.envFile); err != nil {
		if o.envFileSet {
			return nil, fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
		logger.Debug("No .env file loaded", "path", o.envFile)
	}

	v := newViper()
	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", o.configFile, err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("gemini_model", DefaultModel)
	v.SetDefault("description_interval", DefaultInterval.Seconds())
	v.SetDefault("auto_describe", true)
	v.SetDefault("camera_index", 0)
	v.SetDefault("camera_device", "")
	v.SetDefault("camera_resolution", DefaultResolution)
	v.SetDefault("camera_fps", DefaultCameraFPS)
	v.SetDefault("jpeg_quality", DefaultJPEGQuality)
	v.SetDefault("image_max_width", DefaultImageMaxWidth)
	v.SetDefault("tts_rate", DefaultTTSRate)
	v.SetDefault("voice_accent", DefaultVoiceAccent)
	v.SetDefault("hd_voice", true)
	v.SetDefault("voice_timeout", DefaultVoiceTimeout.Seconds())
	v.SetDefault("phrase_time_limit", DefaultPhraseTimeLimit.Seconds())
	v.SetDefault("max_api_calls_per_hour", DefaultMaxCallsPerHour)
	v.SetDefault("response_language", DefaultLanguage)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("log_format", logger.FormatText)
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()
	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("google_tts_api_key", "GOOGLE_TTS_API_KEY")
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	var errs []error

	seconds := func(key string) time.Duration {
		d, err := parseSeconds(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	width, height, err := ParseResolution(v.GetString("camera_resolution"))
	if err != nil {
		errs = append(errs, fmt.Errorf("camera_resolution: %w", err))
	}

	cfg := &Config{
		APIKey:              strings.TrimSpace(v.GetString("gemini_api_key")),
		Model:               v.GetString("gemini_model"),
		MaxCallsPerHour:     v.GetInt("max_api_calls_per_hour"),
		Language:            normalizeLanguage(v.GetString("response_language")),
		DescriptionInterval: seconds("description_interval"),
		AutoDescribe:        v.GetBool("auto_describe"),
		CameraIndex:         v.GetInt("camera_index"),
		CameraDevice:        v.GetString("camera_device"),
		CameraWidth:         width,
		CameraHeight:        height,
		CameraFPS:           v.GetInt("camera_fps"),
		JPEGQuality:         v.GetInt("jpeg_quality"),
		ImageMaxWidth:       v.GetInt("image_max_width"),
		TTSRate:             v.GetInt("tts_rate"),
		VoiceAccent:         strings.ToLower(strings.TrimSpace(v.GetString("voice_accent"))),
		HDVoice:             v.GetBool("hd_voice"),
		OpenAIAPIKey:        strings.TrimSpace(v.GetString("openai_api_key")),
		GoogleTTSAPIKey:     strings.TrimSpace(v.GetString("google_tts_api_key")),
		VoiceTimeout:        seconds("voice_timeout"),
		PhraseTimeLimit:     seconds("phrase_time_limit"),
		LogLevel:            v.GetString("log_level"),
		LogFile:             v.GetString("log_file"),
		LogFormat:           v.GetString("log_format"),
		MetricsAddr:         v.GetString("metrics_addr"),
		OTLPEndpoint:        v.GetString("otlp_endpoint"),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.DescriptionInterval > 0 {
		clamped := ClampInterval(cfg.DescriptionInterval)
		if clamped != cfg.DescriptionInterval {
			logger.Warn("Description interval out of range, clamped",
				"configured", cfg.DescriptionInterval, "using", clamped)
			cfg.DescriptionInterval = clamped
		}
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.Model == "" {
		errs = append(errs, errors.New("gemini_model must not be empty"))
	}
	if c.DescriptionInterval <= 0 {
		errs = append(errs, fmt.Errorf("description_interval must be positive, got %s", c.DescriptionInterval))
	}
	if c.CameraIndex < 0 {
		errs = append(errs, fmt.Errorf("camera_index must be >= 0, got %d", c.CameraIndex))
	}
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		errs = append(errs, fmt.Errorf("camera_resolution must be positive, got %dx%d", c.CameraWidth, c.CameraHeight))
	}
	if c.CameraFPS <= 0 {
		errs = append(errs, fmt.Errorf("camera_fps must be positive, got %d", c.CameraFPS))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality must be within 1..100, got %d", c.JPEGQuality))
	}
	if c.ImageMaxWidth <= 0 {
		errs = append(errs, fmt.Errorf("image_max_width must be positive, got %d", c.ImageMaxWidth))
	}
	if c.TTSRate < 50 || c.TTSRate > 400 {
		errs = append(errs, fmt.Errorf("tts_rate must be within 50..400 words per minute, got %d", c.TTSRate))
	}
	if !slices.Contains(supportedAccents, c.VoiceAccent) {
		errs = append(errs, fmt.Errorf("voice_accent %q is not supported (us, uk, au, in)", c.VoiceAccent))
	}
	if c.VoiceTimeout <= 0 || c.PhraseTimeLimit <= 0 {
		errs = append(errs, errors.New("voice_timeout and phrase_time_limit must be positive"))
	}
	if c.MaxCallsPerHour <= 0 {
		errs = append(errs, fmt.Errorf("max_api_calls_per_hour must be positive, got %d", c.MaxCallsPerHour))
	}
	if !slices.Contains(supportedLanguages, c.Language) {
		errs = append(errs, fmt.Errorf("response_language %q is not supported (en, hi)", c.Language))
	}
	switch c.LogFormat {
	case logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not supported (text, json)", c.LogFormat))
	}
	return errors.Join(errs...)
}

// MatchLanguage maps a BCP 47 tag such as "en-GB" or "hi-IN" to a supported
// response language.
func MatchLanguage(s string) (string, bool) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	return supportedLanguages[idx], true
}

// normalizeLanguage returns the matched language, or s lowercased so that
// Validate can report it.
func normalizeLanguage(s string) string {
	if lang, ok := MatchLanguage(s); ok {
		return lang
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// SpeechRate returns TTSRate as a multiplier of the 150 words-per-minute baseline.
func (c *Config) SpeechRate() float64 {
	return float64(c.TTSRate) / DefaultTTSRate
}

// ClampInterval bounds d to [MinInterval, MaxInterval].
func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	default:
		return d
	}
}

// ParseResolution parses "WIDTHxHEIGHT".
func ParseResolution(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid resolution %q, want WIDTHxHEIGHT", s)
	}
	width, err = strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution width %q: %w", w, err)
	}
	height, err = strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution height %q: %w", h, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution %q, dimensions must be positive", s)
	}
	return width, height, nil
}

// parseSeconds accepts a bare number of seconds ("10", "2.5") or a Go
// duration string ("10s", "1m").
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

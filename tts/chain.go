package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/metrics"
	"github.com/avashx/itark/telemetry"
)

// Chain tries engines in order; the first success wins. It also holds the
// voice settings applied to every utterance, which may change while it runs.
type Chain struct {
	engines []Engine
	tracer  trace.Tracer

	mu       sync.RWMutex
	settings Settings
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithTracerProvider sets the provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) ChainOption {
	return func(c *Chain) {
		c.tracer = telemetry.Tracer(tp)
	}
}

// WithSettings sets the initial voice settings.
//
//nolint:gocritic // hugeParam: copied once at construction
func WithSettings(s Settings) ChainOption {
	return func(c *Chain) {
		c.settings = s.withDefaults()
	}
}

// NewChain creates a Chain over engines. Nil engines are skipped.
func NewChain(engines []Engine, opts ...ChainOption) *Chain {
	c := &Chain{tracer: telemetry.Tracer(nil), settings: DefaultSettings()}
	for _, e := range engines {
		if e != nil {
			c.engines = append(c.engines, e)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engines returns the engine names in order.
func (c *Chain) Engines() []string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return names
}

// Settings returns the current voice settings.
func (c *Chain) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// SetLanguage changes the speech language.
func (c *Chain) SetLanguage(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Language = lang
}

// SetSpeed changes the speaking speed and returns the value applied after
// clamping to [MinSpeed, MaxSpeed].
func (c *Chain) SetSpeed(speed float64) float64 {
	speed = ClampSpeed(speed)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Speed = speed
	return speed
}

// SetAccent changes the English voice accent. Unknown accents select US.
func (c *Chain) SetAccent(a Accent) {
	if _, ok := accentLabels[a]; !ok {
		a = AccentUS
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Accent = a
}

// SetHD turns cloud voices on or off.
func (c *Chain) SetHD(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.HD = on
}

// order returns the engines to try for voice. With HD off, standard engines
// go first and remote ones remain as a fallback.
//
//nolint:gocritic // hugeParam: Settings is copied once per utterance
func (c *Chain) order(voice Settings) []Engine {
	if voice.HD {
		return c.engines
	}
	ordered := make([]Engine, 0, len(c.engines))
	var cloud []Engine
	for _, e := range c.engines {
		if r, ok := e.(remote); ok && r.Remote() {
			cloud = append(cloud, e)
			continue
		}
		ordered = append(ordered, e)
	}
	return append(ordered, cloud...)
}

// Speak speaks text with the first engine that succeeds. When every engine
// fails the error wraps ErrAllEnginesFailed and each engine's error.
func (c *Chain) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	voice := c.Settings()

	ctx, span := c.tracer.Start(ctx, "tts.speak", trace.WithAttributes(
		attribute.Int("tts.text_length", len(text)),
		attribute.Int("tts.engines", len(c.engines)),
		attribute.String("tts.language", voice.Language),
		attribute.Bool("tts.hd", voice.HD),
	))
	defer span.End()

	var errs []error
	for _, e := range c.order(voice) {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.Speak(logger.WithProvider(ctx, e.Name()), text, voice)
		if err == nil {
			metrics.RecordTTSAttempt(e.Name(), metrics.StatusSuccess)
			span.SetAttributes(attribute.String("tts.engine", e.Name()))
			return nil
		}
		metrics.RecordTTSAttempt(e.Name(), metrics.StatusError)
		logger.Warn("TTS engine failed", "engine", e.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
	}

	err := fmt.Errorf("%w: no engines configured", ErrAllEnginesFailed)
	if len(errs) > 0 {
		err = fmt.Errorf("%w: %w", ErrAllEnginesFailed, errors.Join(errs...))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/avashx/itark/audio"
)

// Engine speaks text aloud with the given voice settings and returns when
// playback has finished.
type Engine interface {
	Name() string
	Speak(ctx context.Context, text string, voice Settings) error
}

// remote is implemented by engines that synthesize through a network
// service. Chain demotes them when HD voice is off.
type remote interface {
	Remote() bool
}

// CloudEngine synthesizes PCM with a remote Service and plays it on a Speaker.
type CloudEngine struct {
	service Service
	speaker audio.Speaker
	config  SynthesisConfig
}

// NewCloudEngine creates an engine. config.Format is forced to FormatPCM16.
//
//nolint:gocritic // hugeParam: config is copied once at construction
func NewCloudEngine(service Service, speaker audio.Speaker, config SynthesisConfig) *CloudEngine {
	config = config.withDefaults()
	config.Format = FormatPCM16
	return &CloudEngine{service: service, speaker: speaker, config: config}
}

// Name returns the underlying provider name.
func (e *CloudEngine) Name() string {
	return e.service.Name()
}

// Remote reports true.
func (e *CloudEngine) Remote() bool { return true }

// Speak synthesizes text and blocks until it has been played.
//
//nolint:gocritic // hugeParam: Settings is copied once per utterance
func (e *CloudEngine) Speak(ctx context.Context, text string, voice Settings) error {
	if e.speaker == nil {
		return fmt.Errorf("%s: %w: no speaker", e.Name(), ErrEngineUnavailable)
	}
	rc, err := e.service.Synthesize(ctx, text, voice.withDefaults().apply(e.config))
	if err != nil {
		return err
	}
	defer rc.Close()

	pcm, err := io.ReadAll(rc)
	if err != nil {
		return NewSynthesisError(e.Name(), "", "read audio", err, true)
	}
	if len(pcm) == 0 {
		return NewSynthesisError(e.Name(), "", "empty audio", nil, false)
	}
	return e.speaker.Play(ctx, pcm, e.config.Format.SampleRate)
}

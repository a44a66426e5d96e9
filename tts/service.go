// Package tts synthesizes speech for the assistant's answers.
//
// Cloud providers implement Service and return raw PCM; an Engine turns text
// into sound on the speaker. Chain tries engines in order until one succeeds.
package tts

import (
	"context"
	"io"
)

const (
	sampleRateDefault = 24000
	bitDepthDefault   = 16
)

// Service converts text to speech audio.
type Service interface {
	// Name returns the provider identifier (for logging/debugging).
	Name() string

	// Synthesize converts text to audio in config.Format.
	// The caller is responsible for closing the reader.
	Synthesize(ctx context.Context, text string, config SynthesisConfig) (io.ReadCloser, error)
}

// SynthesisConfig configures text-to-speech synthesis.
type SynthesisConfig struct {
	// Voice is the provider voice ID. Empty selects the provider default.
	Voice string

	// Format is the output audio format.
	Format AudioFormat

	// Speed is the speech rate multiplier (0.25-4.0, default 1.0).
	Speed float64

	// Language is the response language ("en" or "hi").
	Language string

	// Accent picks the English voice region where the provider has one.
	Accent Accent

	// Model is the provider-specific TTS model.
	Model string
}

// DefaultSynthesisConfig returns raw 24kHz PCM at normal speed in English.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		Format:   FormatPCM16,
		Speed:    1.0,
		Language: "en",
	}
}

func (c SynthesisConfig) withDefaults() SynthesisConfig {
	if c.Format.Name == "" {
		c.Format = FormatPCM16
	}
	if c.Speed <= 0 {
		c.Speed = 1.0
	}
	if c.Language == "" {
		c.Language = "en"
	}
	return c
}

// AudioFormat describes an audio output format.
type AudioFormat struct {
	// Name is the format identifier ("pcm", "mp3").
	Name string

	// MIMEType is the content type (e.g., "audio/pcm").
	MIMEType string

	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// BitDepth is the bits per sample (for PCM formats).
	BitDepth int

	// Channels is the number of audio channels (1=mono, 2=stereo).
	Channels int
}

// Common audio formats.
var (
	// FormatPCM16 is raw 16-bit little-endian mono PCM at 24kHz.
	FormatPCM16 = AudioFormat{
		Name:       "pcm",
		MIMEType:   "audio/pcm",
		SampleRate: sampleRateDefault,
		BitDepth:   bitDepthDefault,
		Channels:   1,
	}

	// FormatMP3 is MP3 format.
	FormatMP3 = AudioFormat{
		Name:       "mp3",
		MIMEType:   "audio/mpeg",
		SampleRate: sampleRateDefault,
		Channels:   1,
	}
)

// String returns the format name.
func (f AudioFormat) String() string {
	return f.Name
}

// Package stt transcribes recorded speech to text.
package stt

import (
	"context"
)

const (
	// Default audio settings, matching microphone capture.
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultBitDepth   = 16

	// Audio formats accepted by Transcribe.
	FormatPCM = "pcm"
	FormatWAV = "wav"
)

// Service transcribes audio to text.
type Service interface {
	// Name returns the provider identifier (for logging).
	Name() string

	// Transcribe converts audio to text. An empty string with a nil error
	// means the provider heard nothing intelligible.
	Transcribe(ctx context.Context, audio []byte, config TranscriptionConfig) (string, error)
}

// TranscriptionConfig describes the submitted audio.
type TranscriptionConfig struct {
	// Format is "pcm" (raw little-endian signed samples) or "wav". Default: "pcm".
	Format string

	// SampleRate in Hz. Default: 16000.
	SampleRate int

	// Channels (1=mono). Default: 1.
	Channels int

	// BitDepth for PCM audio. Default: 16.
	BitDepth int

	// Language is an ISO-639-1 hint ("en", "hi").
	Language string
}

// DefaultTranscriptionConfig returns the configuration for microphone audio.
func DefaultTranscriptionConfig() TranscriptionConfig {
	return TranscriptionConfig{
		Format:     FormatPCM,
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
		Language:   "en",
	}
}

func (c TranscriptionConfig) withDefaults() TranscriptionConfig {
	if c.Format == "" {
		c.Format = FormatPCM
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.BitDepth == 0 {
		c.BitDepth = DefaultBitDepth
	}
	return c
}

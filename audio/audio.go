// Package audio provides microphone capture, speaker playback and the
// level analysis used to find the start and end of a spoken phrase.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

const (
	// InputSampleRate is the microphone sample rate (16kHz for speech).
	InputSampleRate = 16000
	// OutputSampleRate is the speaker rate for synthesized speech.
	OutputSampleRate = 24000
	// Channels is mono audio.
	Channels = 1
	// InputFramesPerBuffer is 100ms of audio at 16kHz.
	InputFramesPerBuffer = 1600

	pcmBytesPerSample = 2
	pcmMaxAmplitude   = 32768.0
)

// ErrNoAudioBackend is returned when the binary was built without audio
// device support.
var ErrNoAudioBackend = errors.New("audio device support not compiled in (build with -tags portaudio)")

// Microphone streams 16-bit little-endian mono PCM chunks.
type Microphone interface {
	// Start opens the input stream. The returned channel receives chunks
	// until Stop is called or ctx is done, and is then closed.
	Start(ctx context.Context) (<-chan []byte, error)
	// Stop closes the input stream.
	Stop()
}

// Speaker plays 16-bit little-endian mono PCM.
type Speaker interface {
	// Play blocks until pcm has been played or ctx is done.
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// RMS returns the root mean square of 16-bit PCM normalized to 0..1.
func RMS(pcm []byte) float64 {
	n := len(pcm) / pcmBytesPerSample
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i < n; i++ {
		// #nosec G115 -- overflow is intentional for signed PCM conversion
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*pcmBytesPerSample:]))) / pcmMaxAmplitude
		sumSquares += s * s
	}
	return math.Sqrt(sumSquares / float64(n))
}

// Duration returns the playing time of pcm at sampleRate.
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / pcmBytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Int16ToBytes converts samples to little-endian PCM16.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*pcmBytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*pcmBytesPerSample:], uint16(s)) // #nosec G115
	}
	return out
}

// BytesToInt16 converts little-endian PCM16 to samples. A trailing odd byte
// is ignored.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/pcmBytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*pcmBytesPerSample:])) // #nosec G115
	}
	return samples
}

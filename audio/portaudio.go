//go:build portaudio

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/avashx/itark/logger"
)

// OutputFramesPerBuffer is 40ms of audio at 24kHz.
const OutputFramesPerBuffer = 960

// System owns the PortAudio library and its devices.
type System struct {
	mic     *PortAudioMicrophone
	speaker *PortAudioSpeaker
}

// OpenSystem initializes PortAudio.
func OpenSystem() (*System, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &System{
		mic:     &PortAudioMicrophone{},
		speaker: &PortAudioSpeaker{},
	}, nil
}

// Microphone returns the default input device.
func (s *System) Microphone() Microphone { return s.mic }

// Speaker returns the default output device.
func (s *System) Speaker() Speaker { return s.speaker }

// Close stops all streams and terminates PortAudio.
func (s *System) Close() error {
	s.mic.Stop()
	return portaudio.Terminate()
}

// PortAudioMicrophone captures from the default input device.
type PortAudioMicrophone struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	stop   chan struct{}
	done   chan struct{}
}

// Start opens the default input stream at InputSampleRate.
func (m *PortAudioMicrophone) Start(ctx context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return nil, fmt.Errorf("microphone already started")
	}

	in := make([]int16, InputFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(Channels, 0, InputSampleRate, InputFramesPerBuffer, in)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	out := make(chan []byte, 32)
	m.stream = stream
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.captureLoop(ctx, stream, in, out, m.stop, m.done)

	logger.Debug("Microphone started", "sample_rate", InputSampleRate, "frames_per_buffer", InputFramesPerBuffer)
	return out, nil
}

func (m *PortAudioMicrophone) captureLoop(ctx context.Context, stream *portaudio.Stream, in []int16, out chan<- []byte, stop, done chan struct{}) {
	defer close(done)
	defer close(out)

	var dropped int
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			logger.Debug("Microphone read failed", "error", err)
			continue
		}

		select {
		case out <- Int16ToBytes(in):
		default:
			dropped++
			if dropped%50 == 1 {
				logger.Warn("Dropping microphone audio, consumer too slow", "dropped", dropped)
			}
		}
	}
}

// Stop closes the input stream and waits for the capture loop to exit.
func (m *PortAudioMicrophone) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return
	}
	close(m.stop)
	<-m.done
	_ = m.stream.Stop()
	_ = m.stream.Close()
	m.stream = nil
}

// PortAudioSpeaker plays through the default output device.
type PortAudioSpeaker struct {
	mu sync.Mutex
}

// Play opens an output stream at sampleRate and writes pcm to it.
func (s *PortAudioSpeaker) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int16, OutputFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, Channels, float64(sampleRate), len(out), out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer func() { _ = stream.Stop() }()

	samples := BytesToInt16(pcm)
	for off := 0; off < len(samples); off += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, samples[off:])
		clear(out[n:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}

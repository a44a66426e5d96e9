//go:build !portaudio

package audio

// System is unavailable without the portaudio build tag.
type System struct{}

// OpenSystem always fails with ErrNoAudioBackend in this build.
func OpenSystem() (*System, error) {
	return nil, ErrNoAudioBackend
}

// Microphone returns nil in this build.
func (s *System) Microphone() Microphone { return nil }

// Speaker returns nil in this build.
func (s *System) Speaker() Speaker { return nil }

// Close is a no-op in this build.
func (s *System) Close() error { return nil }

// Package voice turns one spoken question into text.
//
// A Listener walks Idle → Calibrating → Listening → Transcribing → Idle for
// every call to Listen. Calibration measures background noise so the speech
// threshold adapts to the room; listening stops at a silence gap after
// speech, or at the phrase time limit.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avashx/itark/audio"
	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/metrics"
	"github.com/avashx/itark/stt"
)

// Defaults for Config.
const (
	DefaultCalibrationDuration = time.Second
	DefaultWaitTimeout         = 5 * time.Second
	DefaultPhraseTimeLimit     = 10 * time.Second
	DefaultSilenceGap          = 800 * time.Millisecond
)

// Listen results recorded in metrics.
const (
	resultTranscribed = "transcribed"
	resultNoSpeech    = "no_speech"
	resultError       = "recognition_error"
	resultBusy        = "busy"
)

var (
	// ErrBusy is returned when a listening session is already in progress.
	ErrBusy = errors.New("already listening")

	// ErrNoSpeechDetected is returned when nothing was said before the wait
	// timeout, or the recognizer heard nothing intelligible.
	ErrNoSpeechDetected = errors.New("no speech detected")

	// ErrRecognition is returned when the recognizer fails.
	ErrRecognition = errors.New("speech recognition failed")

	// ErrMicrophone is returned when the microphone cannot be read.
	ErrMicrophone = errors.New("microphone unavailable")
)

// State is the listener's position in a listening cycle.
type State int

const (
	// StateIdle means no session is active.
	StateIdle State = iota
	// StateCalibrating means the noise baseline is being measured.
	StateCalibrating
	// StateListening means audio is captured until the phrase ends.
	StateListening
	// StateTranscribing means the phrase is with the recognizer.
	StateTranscribing
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalibrating:
		return "calibrating"
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

// Session describes the current listening session.
type Session struct {
	Active   bool
	Baseline float64
}

// Config tunes a Listener.
type Config struct {
	CalibrationDuration time.Duration
	WaitTimeout         time.Duration
	PhraseTimeLimit     time.Duration
	SilenceGap          time.Duration
	StartDuration       time.Duration
	SampleRate          int
	Language            string
}

// DefaultConfig returns the listener defaults for 16kHz microphone audio.
func DefaultConfig() Config {
	return Config{
		CalibrationDuration: DefaultCalibrationDuration,
		WaitTimeout:         DefaultWaitTimeout,
		PhraseTimeLimit:     DefaultPhraseTimeLimit,
		SilenceGap:          DefaultSilenceGap,
		StartDuration:       time.Duration(audio.DefaultStartSecs * float64(time.Second)),
		SampleRate:          audio.InputSampleRate,
		Language:            "en",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CalibrationDuration <= 0 {
		c.CalibrationDuration = d.CalibrationDuration
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = d.WaitTimeout
	}
	if c.PhraseTimeLimit <= 0 {
		c.PhraseTimeLimit = d.PhraseTimeLimit
	}
	if c.SilenceGap <= 0 {
		c.SilenceGap = d.SilenceGap
	}
	if c.StartDuration <= 0 {
		c.StartDuration = d.StartDuration
	}
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	return c
}

// Observer is told about every state change.
type Observer func(from, to State)

// Listener captures one phrase at a time from a microphone and transcribes it.
type Listener struct {
	mic        audio.Microphone
	recognizer stt.Service
	cfg        Config
	observer   Observer

	mu      sync.Mutex
	state   State
	session Session
}

// Option configures a Listener.
type Option func(*Listener)

// WithConfig sets listener timings. Zero fields take defaults.
//
//nolint:gocritic // hugeParam: copied once at construction
func WithConfig(cfg Config) Option {
	return func(l *Listener) {
		l.cfg = cfg.withDefaults()
	}
}

// WithObserver registers a state change hook.
func WithObserver(o Observer) Option {
	return func(l *Listener) {
		l.observer = o
	}
}

// NewListener creates a Listener.
func NewListener(mic audio.Microphone, recognizer stt.Service, opts ...Option) *Listener {
	l := &Listener{
		mic:        mic,
		recognizer: recognizer,
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Session returns the current listening session.
func (l *Listener) Session() Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// SetLanguage changes the recognition language for later sessions.
func (l *Listener) SetLanguage(lang string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Language = lang
}

// Listen records one phrase and returns its transcription. It returns ErrBusy
// when called while another session is active.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	if !l.begin() {
		metrics.RecordListen(resultBusy)
		return "", ErrBusy
	}
	defer l.transition(StateIdle)

	text, err := l.listen(ctx)
	switch {
	case err == nil:
		metrics.RecordListen(resultTranscribed)
		logger.InfoContext(ctx, "Voice input transcribed", "chars", len(text))
	case errors.Is(err, ErrNoSpeechDetected):
		metrics.RecordListen(resultNoSpeech)
		logger.InfoContext(ctx, "No speech detected")
	default:
		metrics.RecordListen(resultError)
		logger.WarnContext(ctx, "Voice input failed", "error", err)
	}
	return text, err
}

// begin claims the listener, moving Idle → Calibrating.
func (l *Listener) begin() bool {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return false
	}
	l.state = StateCalibrating
	l.session = Session{Active: true}
	obs := l.observer
	l.mu.Unlock()

	if obs != nil {
		obs(StateIdle, StateCalibrating)
	}
	return true
}

func (l *Listener) transition(to State) {
	l.mu.Lock()
	from := l.state
	l.state = to
	if to == StateIdle {
		l.session.Active = false
	}
	obs := l.observer
	l.mu.Unlock()

	logger.Debug("Listener state", "from", from.String(), "to", to.String())
	if obs != nil && from != to {
		obs(from, to)
	}
}

func (l *Listener) listen(ctx context.Context) (string, error) {
	l.mu.Lock()
	cfg := l.cfg
	l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.mic == nil {
		return "", fmt.Errorf("%w: %w", ErrMicrophone, audio.ErrNoAudioBackend)
	}
	if l.recognizer == nil {
		return "", fmt.Errorf("%w: no recognizer configured", ErrRecognition)
	}

	chunks, err := l.mic.Start(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMicrophone, err)
	}
	stopped := false
	stop := func() {
		if !stopped {
			l.mic.Stop()
			stopped = true
		}
	}
	defer stop()

	baseline, err := audio.Calibrate(ctx, chunks, cfg.CalibrationDuration, cfg.SampleRate)
	if err != nil {
		return "", micError(err)
	}
	threshold := audio.ThresholdFor(baseline)
	l.mu.Lock()
	l.session.Baseline = baseline
	l.mu.Unlock()
	logger.DebugContext(ctx, "Calibrated microphone", "baseline", baseline, "threshold", threshold)

	l.transition(StateListening)
	pcm, err := capturePhrase(ctx, chunks, cfg, threshold)
	stop()
	if err != nil {
		return "", err
	}

	l.transition(StateTranscribing)
	tc := stt.DefaultTranscriptionConfig()
	tc.SampleRate = cfg.SampleRate
	tc.Language = cfg.Language
	text, err := l.recognizer.Transcribe(ctx, pcm, tc)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	if text == "" {
		return "", ErrNoSpeechDetected
	}
	return text, nil
}

// capturePhrase reads chunks until the phrase ends and returns its PCM,
// including the chunk heard just before speech began.
func capturePhrase(ctx context.Context, chunks <-chan []byte, cfg Config, threshold float64) ([]byte, error) {
	ep, err := audio.NewEndpointer(audio.EndpointParams{
		Threshold:  threshold,
		StartSecs:  cfg.StartDuration.Seconds(),
		StopSecs:   cfg.SilenceGap.Seconds(),
		SampleRate: cfg.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
	}

	var (
		preroll []byte
		pending [][]byte
		phrase  []byte
		spoken  time.Duration
		started bool
	)
	for {
		var chunk []byte
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				if ep.SpeechStarted() {
					return phrase, nil
				}
				return nil, ErrNoSpeechDetected
			}
			chunk = c
		}

		state := ep.Feed(chunk)
		switch state {
		case audio.PhraseQuiet:
			pending = nil
			preroll = chunk
			if ep.Heard() >= cfg.WaitTimeout {
				return nil, ErrNoSpeechDetected
			}
		case audio.PhraseStarting:
			pending = append(pending, chunk)
			if ep.Heard() >= cfg.WaitTimeout {
				return nil, ErrNoSpeechDetected
			}
		default:
			if !started {
				started = true
				phrase = append(phrase, preroll...)
				for _, p := range pending {
					phrase = append(phrase, p...)
					spoken += audio.Duration(p, cfg.SampleRate)
				}
				pending = nil
			}
			phrase = append(phrase, chunk...)
			spoken += audio.Duration(chunk, cfg.SampleRate)
			if state == audio.PhraseEnded || spoken >= cfg.PhraseTimeLimit {
				return phrase, nil
			}
		}
	}
}

func micError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMicrophone, err)
}

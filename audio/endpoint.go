package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Endpointing defaults.
const (
	DefaultStartSecs      = 0.2
	DefaultStopSecs       = 0.8
	DefaultMinThreshold   = 0.01
	DefaultThresholdRatio = 1.5
)

// ErrNoAudio is returned when the microphone closed before enough audio
// was read.
var ErrNoAudio = errors.New("microphone produced no audio")

// PhraseState is the position of an Endpointer within a phrase.
type PhraseState int

const (
	// PhraseQuiet means no speech has been heard.
	PhraseQuiet PhraseState = iota
	// PhraseStarting means level is above threshold but not for StartSecs yet.
	PhraseStarting
	// PhraseSpeaking means speech is in progress.
	PhraseSpeaking
	// PhraseStopping means level dropped during speech; StopSecs more ends it.
	PhraseStopping
	// PhraseEnded means the phrase is complete.
	PhraseEnded
)

// String returns a human-readable representation of the state.
func (s PhraseState) String() string {
	switch s {
	case PhraseQuiet:
		return "quiet"
	case PhraseStarting:
		return "starting"
	case PhraseSpeaking:
		return "speaking"
	case PhraseStopping:
		return "stopping"
	case PhraseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EndpointParams configures phrase detection.
type EndpointParams struct {
	// Threshold is the RMS level (0..1) separating speech from background.
	Threshold float64
	// StartSecs of audio above threshold begins a phrase.
	StartSecs float64
	// StopSecs of audio below threshold after speech ends it.
	StopSecs float64
	// SampleRate of the analysed audio.
	SampleRate int
}

// Validate checks that params are usable.
func (p EndpointParams) Validate() error {
	if p.Threshold <= 0 || p.Threshold >= 1 {
		return fmt.Errorf("threshold must be in (0,1), got %f", p.Threshold)
	}
	if p.StartSecs < 0 || p.StopSecs <= 0 {
		return fmt.Errorf("start/stop seconds must be non-negative/positive, got %f/%f", p.StartSecs, p.StopSecs)
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	}
	return nil
}

// ThresholdFor derives a speech threshold from a calibrated noise baseline.
func ThresholdFor(baseline float64) float64 {
	return max(baseline*DefaultThresholdRatio, DefaultMinThreshold)
}

// Endpointer finds the start and end of one spoken phrase in a PCM stream.
// Time is measured in audio duration, not wall clock, so results depend only
// on the samples fed in.
type Endpointer struct {
	params  EndpointParams
	state   PhraseState
	inState time.Duration
	heard   time.Duration
}

// NewEndpointer creates an Endpointer.
func NewEndpointer(params EndpointParams) (*Endpointer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Endpointer{params: params}, nil
}

// State returns the current state.
func (e *Endpointer) State() PhraseState { return e.state }

// SpeechStarted reports whether a phrase has begun.
func (e *Endpointer) SpeechStarted() bool {
	return e.state == PhraseSpeaking || e.state == PhraseStopping || e.state == PhraseEnded
}

// Heard returns the total audio duration fed in.
func (e *Endpointer) Heard() time.Duration { return e.heard }

// Feed analyses chunk and returns the new state.
func (e *Endpointer) Feed(chunk []byte) PhraseState {
	if e.state == PhraseEnded {
		return e.state
	}
	d := Duration(chunk, e.params.SampleRate)
	e.heard += d
	e.inState += d

	above := RMS(chunk) >= e.params.Threshold
	next := e.state
	switch e.state {
	case PhraseQuiet:
		if above {
			next = PhraseStarting
		}
	case PhraseStarting:
		switch {
		case !above:
			next = PhraseQuiet
		case e.inState.Seconds() >= e.params.StartSecs:
			next = PhraseSpeaking
		}
	case PhraseSpeaking:
		if !above {
			next = PhraseStopping
		}
	case PhraseStopping:
		switch {
		case above:
			next = PhraseSpeaking
		case e.inState.Seconds() >= e.params.StopSecs:
			next = PhraseEnded
		}
	}

	if next != e.state {
		e.state = next
		// The chunk that caused the transition counts towards the new state.
		e.inState = d
	}
	return e.state
}

// Calibrate reads chunks until d of audio has been collected and returns the
// mean RMS level, used as the background noise baseline.
func Calibrate(ctx context.Context, chunks <-chan []byte, d time.Duration, sampleRate int) (float64, error) {
	var (
		collected time.Duration
		sum       float64
		n         int
	)
	for collected < d {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if n == 0 {
					return 0, ErrNoAudio
				}
				return sum / float64(n), nil
			}
			collected += Duration(chunk, sampleRate)
			sum += RMS(chunk)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

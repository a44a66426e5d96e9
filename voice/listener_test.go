package voice

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avashx/itark/audio"
	"github.com/avashx/itark/stt"
)

const testRate = 16000

// chunk returns 100ms of a 440Hz tone at amplitude (0..1).
func chunk(amplitude float64) []byte {
	samples := make([]int16, testRate/10)
	for i := range samples {
		samples[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/testRate))
	}
	return audio.Int16ToBytes(samples)
}

func repeat(c []byte, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = c
	}
	return out
}

// fakeMic replays a fixed sequence of chunks then closes the stream.
type fakeMic struct {
	chunks   [][]byte
	startErr error

	mu     sync.Mutex
	starts int
	stops  int
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *fakeMic) Start(ctx context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return nil, m.startErr
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	out := make(chan []byte)
	go func(done chan struct{}) {
		defer close(done)
		defer close(out)
		for _, c := range m.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}(m.done)
	return out, nil
}

func (m *fakeMic) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
}

type fakeRecognizer struct {
	text  string
	err   error
	block chan struct{}

	mu     sync.Mutex
	audio  []byte
	config stt.TranscriptionConfig
	calls  int
}

func (r *fakeRecognizer) Name() string { return "fake" }

func (r *fakeRecognizer) Transcribe(ctx context.Context, pcm []byte, cfg stt.TranscriptionConfig) (string, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.audio = pcm
	r.config = cfg
	return r.text, r.err
}

type recorder struct {
	mu          sync.Mutex
	transitions [][2]State
}

func (r *recorder) observe(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]State{from, to})
}

func (r *recorder) get() [][2]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]State(nil), r.transitions...)
}

// phrase is 1s of quiet calibration, 0.3s quiet, 1s of speech, then 1s quiet.
func phrase() [][]byte {
	var chunks [][]byte
	chunks = append(chunks, repeat(chunk(0.001), 13)...)
	chunks = append(chunks, repeat(chunk(0.5), 10)...)
	chunks = append(chunks, repeat(chunk(0.001), 10)...)
	return chunks
}

func TestListenTranscribesPhrase(t *testing.T) {
	mic := &fakeMic{chunks: phrase()}
	rec := &fakeRecognizer{text: "what is on the desk"}
	obs := &recorder{}
	l := NewListener(mic, rec, WithObserver(obs.observe), WithConfig(Config{Language: "hi"}))

	text, err := l.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "what is on the desk", text)
	assert.Equal(t, StateIdle, l.State())
	assert.False(t, l.Session().Active)
	assert.Greater(t, l.Session().Baseline, 0.0)

	assert.Equal(t, [][2]State{
		{StateIdle, StateCalibrating},
		{StateCalibrating, StateListening},
		{StateListening, StateTranscribing},
		{StateTranscribing, StateIdle},
	}, obs.get())

	// Preroll chunk + 10 speech chunks + 8 chunks of the silence gap.
	assert.Equal(t, 19*len(chunk(0)), len(rec.audio))
	assert.Equal(t, "hi", rec.config.Language)
	assert.Equal(t, testRate, rec.config.SampleRate)
	assert.Equal(t, 1, mic.starts)
	assert.GreaterOrEqual(t, mic.stops, 1)
}

func TestSetLanguageAppliesToNextSession(t *testing.T) {
	rec := &fakeRecognizer{text: "यह क्या है"}
	l := NewListener(&fakeMic{chunks: phrase()}, rec)
	l.SetLanguage("hi")

	_, err := l.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", rec.config.Language)
}

func TestListenNeverTranscribesWithoutCalibrating(t *testing.T) {
	for i := 0; i < 3; i++ {
		obs := &recorder{}
		l := NewListener(&fakeMic{chunks: phrase()}, &fakeRecognizer{text: "hello"}, WithObserver(obs.observe))
		_, err := l.Listen(context.Background())
		require.NoError(t, err)

		calibrated := false
		for _, tr := range obs.get() {
			switch tr[1] {
			case StateCalibrating:
				calibrated = true
			case StateTranscribing:
				assert.True(t, calibrated, "transcribing before calibrating in the same cycle")
			case StateIdle:
				calibrated = false
			}
		}
	}
}

func TestListenNoSpeechTimesOut(t *testing.T) {
	mic := &fakeMic{chunks: repeat(chunk(0.001), 100)}
	rec := &fakeRecognizer{text: "unused"}
	obs := &recorder{}
	l := NewListener(mic, rec, WithObserver(obs.observe), WithConfig(Config{WaitTimeout: 2 * time.Second}))

	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeechDetected)
	assert.Equal(t, 0, rec.calls)
	for _, tr := range obs.get() {
		assert.NotEqual(t, StateTranscribing, tr[1])
	}
	assert.Equal(t, StateIdle, l.State())
}

func TestListenEmptyTranscription(t *testing.T) {
	l := NewListener(&fakeMic{chunks: phrase()}, &fakeRecognizer{})
	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeechDetected)
}

func TestListenRecognizerFailure(t *testing.T) {
	cause := stt.NewTranscriptionError("fake", "500", "boom", stt.ErrRateLimited, true)
	l := NewListener(&fakeMic{chunks: phrase()}, &fakeRecognizer{err: cause})
	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrRecognition)
	assert.ErrorIs(t, err, stt.ErrRateLimited)
}

func TestListenPhraseTimeLimit(t *testing.T) {
	chunks := append(repeat(chunk(0.001), 10), repeat(chunk(0.5), 50)...)
	rec := &fakeRecognizer{text: "long"}
	l := NewListener(&fakeMic{chunks: chunks}, rec, WithConfig(Config{PhraseTimeLimit: 2 * time.Second}))

	_, err := l.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, audio.Duration(rec.audio, testRate))
}

func TestListenMicrophoneErrors(t *testing.T) {
	l := NewListener(&fakeMic{startErr: errors.New("device busy")}, &fakeRecognizer{})
	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrMicrophone)
	assert.Equal(t, StateIdle, l.State())

	l = NewListener(&fakeMic{}, &fakeRecognizer{})
	_, err = l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrMicrophone, "stream closed during calibration")

	l = NewListener(nil, &fakeRecognizer{})
	_, err = l.Listen(context.Background())
	assert.ErrorIs(t, err, audio.ErrNoAudioBackend)
}

func TestListenRejectsConcurrentSession(t *testing.T) {
	rec := &fakeRecognizer{text: "first", block: make(chan struct{})}
	obs := &recorder{}
	transcribing := make(chan struct{})
	var once sync.Once
	l := NewListener(&fakeMic{chunks: phrase()}, rec, WithObserver(func(from, to State) {
		obs.observe(from, to)
		if to == StateTranscribing {
			once.Do(func() { close(transcribing) })
		}
	}))

	done := make(chan error, 1)
	go func() {
		_, err := l.Listen(context.Background())
		done <- err
	}()

	<-transcribing
	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StateTranscribing, l.State())

	close(rec.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, l.State())
}

func TestListenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewListener(&fakeMic{chunks: phrase()}, &fakeRecognizer{text: "x"})
	_, err := l.Listen(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateIdle, l.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "calibrating", StateCalibrating.String())
	assert.Equal(t, "listening", StateListening.String())
	assert.Equal(t, "transcribing", StateTranscribing.String())
	assert.Equal(t, "unknown", State(9).String())
}

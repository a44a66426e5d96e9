package tts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	audio  []byte
	err    error
	config SynthesisConfig
}

func (s *fakeService) Name() string { return "fake" }

func (s *fakeService) Synthesize(_ context.Context, _ string, config SynthesisConfig) (io.ReadCloser, error) {
	s.config = config
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.audio)), nil
}

type fakeSpeaker struct {
	mu    sync.Mutex
	plays [][]byte
	rate  int
}

func (s *fakeSpeaker) Play(_ context.Context, pcm []byte, sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, pcm)
	s.rate = sampleRate
	return nil
}

func TestCloudEngine_Speak(t *testing.T) {
	svc := &fakeService{audio: []byte{1, 2}}
	spk := &fakeSpeaker{}
	e := NewCloudEngine(svc, spk, SynthesisConfig{Format: FormatMP3, Voice: "en-GB-Neural2-A"})

	voice := Settings{Language: "en", Accent: AccentUK, Speed: 1.5, HD: true}
	require.NoError(t, e.Speak(context.Background(), "hello", voice))
	assert.Equal(t, "fake", e.Name())
	assert.True(t, e.Remote())
	assert.Equal(t, [][]byte{{1, 2}}, spk.plays)
	assert.Equal(t, 24000, spk.rate)
	assert.Equal(t, FormatPCM16, svc.config.Format, "cloud engines always request PCM")
	assert.Equal(t, 1.5, svc.config.Speed)
	assert.Equal(t, AccentUK, svc.config.Accent)
	assert.Equal(t, "en-GB-Neural2-A", svc.config.Voice)
}

func TestCloudEngine_SpeakDefaultsEmptySettings(t *testing.T) {
	svc := &fakeService{audio: []byte{1}}
	e := NewCloudEngine(svc, &fakeSpeaker{}, DefaultSynthesisConfig())

	require.NoError(t, e.Speak(context.Background(), "hello", Settings{Speed: 9}))
	assert.Equal(t, "en", svc.config.Language)
	assert.Equal(t, AccentUS, svc.config.Accent)
	assert.Equal(t, MaxSpeed, svc.config.Speed)
}

func TestCloudEngine_Errors(t *testing.T) {
	voice := DefaultSettings()
	e := NewCloudEngine(&fakeService{err: ErrRateLimited}, &fakeSpeaker{}, DefaultSynthesisConfig())
	assert.ErrorIs(t, e.Speak(context.Background(), "x", voice), ErrRateLimited)

	e = NewCloudEngine(&fakeService{}, &fakeSpeaker{}, DefaultSynthesisConfig())
	assert.Error(t, e.Speak(context.Background(), "x", voice), "empty audio")

	e = NewCloudEngine(&fakeService{audio: []byte{1}}, nil, DefaultSynthesisConfig())
	assert.ErrorIs(t, e.Speak(context.Background(), "x", voice), ErrEngineUnavailable)
}

func TestNewLocalEngine_Missing(t *testing.T) {
	_, err := NewLocalEngine(150, WithBinary(filepath.Join(t.TempDir(), "nope")))
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestLocalEngine_Speak(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("argument layout checked for espeak only")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "args")
	bin := filepath.Join(dir, "espeak")
	script := "#!/bin/sh\necho \"$@\" > " + out + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	e, err := NewLocalEngine(120, WithBinary(bin))
	require.NoError(t, err)
	assert.False(t, isRemote(e))

	tests := []struct {
		name  string
		voice Settings
		want  string
	}{
		{"hindi at 1.5x", Settings{Language: "hi", Speed: 1.5}, "-s 180 -v hi -- A chair."},
		{"uk english", Settings{Language: "en", Accent: AccentUK, Speed: 1}, "-s 120 -v en-gb -- A chair."},
		{"us english slow", Settings{Language: "en", Accent: AccentUS, Speed: 0.5}, "-s 60 -v en-us -- A chair."},
		{"accent without espeak voice", Settings{Language: "en", Accent: AccentIN, Speed: 1}, "-s 120 -- A chair."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, e.Speak(context.Background(), " A chair. ", tt.voice))
			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(string(data)))
		})
	}

	assert.ErrorIs(t, e.Speak(context.Background(), "", DefaultSettings()), ErrEmptyText)
}

func TestLocalEngine_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "espeak")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho no audio device >&2\nexit 1\n"), 0o755))

	e, err := NewLocalEngine(0, WithBinary(bin))
	require.NoError(t, err)
	assert.Equal(t, DefaultWordsPerMinute, e.rate)

	err = e.Speak(context.Background(), "hello", DefaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio device")
}

type fakeEngine struct {
	name   string
	err    error
	cloud  bool
	calls  int
	voices []Settings
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Remote() bool { return e.cloud }

func (e *fakeEngine) Speak(_ context.Context, _ string, voice Settings) error {
	e.calls++
	e.voices = append(e.voices, voice)
	return e.err
}

func isRemote(e Engine) bool {
	r, ok := e.(remote)
	return ok && r.Remote()
}

func TestChain_FirstSuccessWins(t *testing.T) {
	google := &fakeEngine{name: "chain-google", err: errors.New("quota")}
	openai := &fakeEngine{name: "chain-openai"}
	local := &fakeEngine{name: "chain-local"}
	c := NewChain([]Engine{google, nil, openai, local})

	assert.Equal(t, []string{"chain-google", "chain-openai", "chain-local"}, c.Engines())
	require.NoError(t, c.Speak(context.Background(), "hello"))
	assert.Equal(t, 1, google.calls)
	assert.Equal(t, 1, openai.calls)
	assert.Equal(t, 0, local.calls)
}

func TestChain_AllFail(t *testing.T) {
	a := &fakeEngine{name: "a", err: ErrRateLimited}
	b := &fakeEngine{name: "b", err: ErrEngineUnavailable}
	err := NewChain([]Engine{a, b}).Speak(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllEnginesFailed)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	assert.ErrorIs(t, NewChain(nil).Speak(context.Background(), "x"), ErrAllEnginesFailed)
	assert.ErrorIs(t, NewChain([]Engine{a}).Speak(context.Background(), " "), ErrEmptyText)
}

func TestChain_SettingsReachEngines(t *testing.T) {
	e := &fakeEngine{name: "only"}
	c := NewChain([]Engine{e}, WithSettings(Settings{Language: "hi", Speed: 1.25}))
	assert.Equal(t, Settings{Language: "hi", Accent: AccentUS, Speed: 1.25}, c.Settings())

	c.SetLanguage("en")
	c.SetAccent(AccentAU)
	assert.Equal(t, MaxSpeed, c.SetSpeed(3))
	assert.Equal(t, MinSpeed, c.SetSpeed(0.1))
	c.SetAccent("xx")

	require.NoError(t, c.Speak(context.Background(), "hello"))
	require.Len(t, e.voices, 1)
	assert.Equal(t, Settings{Language: "en", Accent: AccentUS, Speed: MinSpeed}, e.voices[0])
}

func TestChain_HDOffPrefersStandardEngines(t *testing.T) {
	google := &fakeEngine{name: "hd-google", cloud: true}
	local := &fakeEngine{name: "hd-local", err: ErrEngineUnavailable}
	c := NewChain([]Engine{google, local})

	require.NoError(t, c.Speak(context.Background(), "one"))
	assert.Equal(t, 1, google.calls)
	assert.Equal(t, 0, local.calls)

	c.SetHD(false)
	assert.False(t, c.Settings().HD)
	require.NoError(t, c.Speak(context.Background(), "two"), "cloud stays as a fallback")
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 2, google.calls)

	local.err = nil
	require.NoError(t, c.Speak(context.Background(), "three"))
	assert.Equal(t, 2, local.calls)
	assert.Equal(t, 2, google.calls)
	assert.Equal(t, []string{"hd-google", "hd-local"}, c.Engines(), "configured order is unchanged")
}

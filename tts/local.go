package tts

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// DefaultWordsPerMinute is the normal local speaking rate.
const DefaultWordsPerMinute = 150

// espeakVoices and sayVoices pick a voice per language and accent. Missing
// entries leave the synthesizer default.
var (
	espeakVoices = map[string]string{
		"hi":    "hi",
		"en-us": "en-us",
		"en-uk": "en-gb",
	}
	sayVoices = map[string]string{
		"hi":    "Lekha",
		"en-us": "Samantha",
		"en-uk": "Daniel",
		"en-au": "Karen",
		"en-in": "Rishi",
	}
)

// LocalEngine speaks through the host's offline synthesizer: say on macOS,
// espeak on Linux and System.Speech through PowerShell on Windows.
type LocalEngine struct {
	binary string
	rate   int
}

// LocalOption configures a LocalEngine.
type LocalOption func(*LocalEngine)

// WithBinary overrides the synthesizer executable.
func WithBinary(path string) LocalOption {
	return func(e *LocalEngine) {
		e.binary = path
	}
}

// NewLocalEngine creates a local engine speaking at rate words per minute at
// normal speed. It returns ErrEngineUnavailable when the synthesizer is not
// installed.
func NewLocalEngine(rate int, opts ...LocalOption) (*LocalEngine, error) {
	if rate <= 0 {
		rate = DefaultWordsPerMinute
	}
	e := &LocalEngine{binary: defaultLocalBinary(), rate: rate}
	for _, opt := range opts {
		opt(e)
	}
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrEngineUnavailable, e.binary)
	}
	e.binary = path
	return e, nil
}

func defaultLocalBinary() string {
	switch runtime.GOOS {
	case "darwin":
		return "say"
	case "windows":
		return "powershell"
	default:
		return "espeak"
	}
}

// Name returns "local".
func (e *LocalEngine) Name() string {
	return "local"
}

// Speak runs the synthesizer and waits for it to exit.
//
//nolint:gocritic // hugeParam: Settings is copied once per utterance
func (e *LocalEngine) Speak(ctx context.Context, text string, voice Settings) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	// #nosec G204 -- binary is resolved at construction, text is an argument
	cmd := exec.CommandContext(ctx, e.binary, e.args(text, voice.withDefaults())...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewSynthesisError(e.Name(), "", strings.TrimSpace(stderr.String()), err, false)
	}
	return nil
}

// voiceKey is "hi" for Hindi and "en-<accent>" for English.
//
//nolint:gocritic // hugeParam: Settings is copied once per utterance
func voiceKey(voice Settings) string {
	if voice.Language != "en" {
		return voice.Language
	}
	return "en-" + string(voice.Accent)
}

// args builds the command line for the synthesizer.
//
//nolint:gocritic // hugeParam: Settings is copied once per utterance
func (e *LocalEngine) args(text string, voice Settings) []string {
	rate := int(math.Round(float64(e.rate) * voice.Speed))
	switch runtime.GOOS {
	case "darwin":
		args := []string{"-r", strconv.Itoa(rate)}
		if v, ok := sayVoices[voiceKey(voice)]; ok {
			args = append(args, "-v", v)
		}
		return append(args, "--", text)
	case "windows":
		// SAPI rate runs -10..10 with 0 as normal.
		sapi := min(max((rate-DefaultWordsPerMinute)/25, -10), 10)
		script := fmt.Sprintf(
			"Add-Type -AssemblyName System.Speech; $s = New-Object System.Speech.Synthesis.SpeechSynthesizer; $s.Rate = %d; $s.Speak('%s')",
			sapi, strings.ReplaceAll(text, "'", "''"))
		return []string{"-NoProfile", "-NonInteractive", "-Command", script}
	default:
		args := []string{"-s", strconv.Itoa(rate)}
		if v, ok := espeakVoices[voiceKey(voice)]; ok {
			args = append(args, "-v", v)
		}
		return append(args, "--", text)
	}
}

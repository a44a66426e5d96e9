package assistant

import (
	"context"
	"errors"

	"github.com/avashx/itark/camera"
	"github.com/avashx/itark/media"
	"github.com/avashx/itark/tts"
	"github.com/avashx/itark/vision"
	"github.com/avashx/itark/voice"
)

var (
	// ErrNotRunning is returned by actions that need a running session.
	ErrNotRunning = errors.New("assistant is not running")

	// ErrAlreadyRunning is returned by Start on a running session.
	ErrAlreadyRunning = errors.New("assistant is already running")

	// ErrNoFrame is returned when a question arrives before the first frame.
	ErrNoFrame = errors.New("no camera frame available")

	// ErrBusy is returned when a trigger is dropped because a request of the
	// same mode is outstanding or its queue is full.
	ErrBusy = errors.New("request already in progress")

	// ErrVoiceUnavailable is returned by Listen when no listener is configured.
	ErrVoiceUnavailable = errors.New("voice input unavailable")

	// ErrSpeechUnavailable is returned by the speech controls when speech
	// output is not configured.
	ErrSpeechUnavailable = errors.New("speech output unavailable")

	// ErrUnsupportedLanguage is returned by SetLanguage for a language
	// without a prompt set.
	ErrUnsupportedLanguage = errors.New("unsupported response language")
)

var statusMessages = []struct {
	err error
	msg string
}{
	{camera.ErrDeviceUnavailable, "Camera not available"},
	{camera.ErrDeviceLost, "Camera disconnected"},
	{camera.ErrCaptureTimeout, "Camera not responding"},
	{vision.ErrRateLimited, "Rate limit reached, skipping this cycle"},
	{vision.ErrNetwork, "Network error, skipping this cycle"},
	{vision.ErrInvalidResponse, "Could not analyze the image."},
	{media.ErrInvalidDimensions, "Could not analyze the image."},
	{voice.ErrBusy, "Already listening"},
	{voice.ErrNoSpeechDetected, "No speech detected"},
	{voice.ErrRecognition, "Could not understand the audio"},
	{voice.ErrMicrophone, "Microphone not available"},
	{tts.ErrAllEnginesFailed, "Speech output failed"},
	{ErrNotRunning, "Please start the assistant first"},
	{ErrAlreadyRunning, "Assistant already running"},
	{ErrNoFrame, "No camera frame available"},
	{ErrBusy, "Still working on the previous request"},
	{ErrVoiceUnavailable, "Voice input not available"},
	{ErrSpeechUnavailable, "Speech output not available"},
	{ErrUnsupportedLanguage, "Language not supported"},
	{context.DeadlineExceeded, "Request timed out"},
}

// StatusMessage turns err into a short user-facing status line. Detail stays
// in the log file.
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range statusMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Something went wrong"
}

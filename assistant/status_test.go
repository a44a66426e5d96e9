package assistant

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/avashx/itark/camera"
	"github.com/avashx/itark/tts"
	"github.com/avashx/itark/vision"
	"github.com/avashx/itark/voice"
)

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("open: %w", camera.ErrDeviceUnavailable), "Camera not available"},
		{camera.ErrDeviceLost, "Camera disconnected"},
		{&vision.APIError{Code: 429}, "Rate limit reached, skipping this cycle"},
		{&vision.APIError{Code: 503}, "Network error, skipping this cycle"},
		{&vision.APIError{Code: 400}, "Could not analyze the image."},
		{fmt.Errorf("%w: mic", voice.ErrMicrophone), "Microphone not available"},
		{voice.ErrNoSpeechDetected, "No speech detected"},
		{tts.ErrAllEnginesFailed, "Speech output failed"},
		{context.DeadlineExceeded, "Request timed out"},
		{ErrNoFrame, "No camera frame available"},
		{errors.New("boom"), "Something went wrong"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusMessage(tt.err), "%v", tt.err)
	}
}

func TestSessionLog(t *testing.T) {
	l := NewSessionLog()
	_, ok := l.Last()
	assert.False(t, ok)

	now := time.Now()
	l.Append(now, RoleSystem, "started")
	l.Append(now, RoleUser, "what is this")
	l.Append(now, RoleAssistant, "a mug")

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 1, l.Count(RoleUser))
	last, ok := l.Last()
	assert.True(t, ok)
	assert.Equal(t, "a mug", last.Text)

	tail := l.Tail(2)
	assert.Equal(t, []Role{RoleUser, RoleAssistant}, []Role{tail[0].Role, tail[1].Role})
	assert.Len(t, l.Tail(10), 3)
	assert.Len(t, l.Entries(), 3)

	tail[0].Text = "mutated"
	assert.Equal(t, "what is this", l.Entries()[1].Text, "Tail returns a copy")
}

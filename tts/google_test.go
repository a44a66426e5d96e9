package tts

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wavOf wraps pcm in a minimal RIFF/WAVE container.
func wavOf(pcm []byte) []byte {
	buf := make([]byte, 0, 44+len(pcm))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 24000)
	buf = binary.LittleEndian.AppendUint32(buf, 48000)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pcm)))
	return append(buf, pcm...)
}

func TestStripWAVHeader(t *testing.T) {
	pcm := []byte{9, 8, 7, 6}
	assert.Equal(t, pcm, stripWAVHeader(wavOf(pcm)))
	assert.Equal(t, pcm, stripWAVHeader(pcm), "raw PCM is returned unchanged")
}

func TestGoogleService_Synthesize_Success(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	var got googleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text:synthesize", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString(wavOf(pcm)),
		})
	}))
	defer server.Close()

	cfg := DefaultSynthesisConfig()
	cfg.Language = "hi"
	cfg.Speed = 1.2
	rc, err := NewGoogle("g-key", WithGoogleBaseURL(server.URL)).Synthesize(context.Background(), "namaste", cfg)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pcm, data)

	assert.Equal(t, "namaste", got.Input.Text)
	assert.Equal(t, "hi-IN", got.Voice.LanguageCode)
	assert.Equal(t, "LINEAR16", got.AudioConfig.AudioEncoding)
	assert.Equal(t, 24000, got.AudioConfig.SampleRateHertz)
	assert.InDelta(t, 1.2, got.AudioConfig.SpeakingRate, 1e-9)
}

func TestGoogleService_Synthesize_AccentDropsForeignVoice(t *testing.T) {
	var got googleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString([]byte{1, 0}),
		})
	}))
	defer server.Close()

	svc := NewGoogle("k", WithGoogleBaseURL(server.URL))
	cfg := DefaultSynthesisConfig()
	cfg.Voice = "en-US-Neural2-F"
	cfg.Accent = AccentUK
	_, err := svc.Synthesize(context.Background(), "hello", cfg)
	require.NoError(t, err)
	assert.Equal(t, "en-GB", got.Voice.LanguageCode)
	assert.Empty(t, got.Voice.Name)

	cfg.Accent = AccentUS
	_, err = svc.Synthesize(context.Background(), "hello", cfg)
	require.NoError(t, err)
	assert.Equal(t, "en-US", got.Voice.LanguageCode)
	assert.Equal(t, "en-US-Neural2-F", got.Voice.Name)
}

func TestGoogleService_Synthesize_Errors(t *testing.T) {
	t.Run("quota", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
		}))
		defer server.Close()

		_, err := NewGoogle("k", WithGoogleBaseURL(server.URL)).Synthesize(context.Background(), "x", DefaultSynthesisConfig())
		assert.ErrorIs(t, err, ErrRateLimited)
		var synthErr *SynthesisError
		require.True(t, errors.As(err, &synthErr))
		assert.Equal(t, "RESOURCE_EXHAUSTED", synthErr.Code)
	})

	t.Run("empty audio", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"audioContent":""}`))
		}))
		defer server.Close()

		_, err := NewGoogle("k", WithGoogleBaseURL(server.URL)).Synthesize(context.Background(), "x", DefaultSynthesisConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty audio")
	})

	t.Run("network error hides key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		server.Close()

		_, err := NewGoogle("secret-key", WithGoogleBaseURL(server.URL)).Synthesize(context.Background(), "x", DefaultSynthesisConfig())
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "secret-key")
	})
}

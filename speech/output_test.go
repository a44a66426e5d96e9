package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEngine records utterances and detects overlapping playback.
type recordingEngine struct {
	delay   time.Duration
	err     error
	gate    chan struct{}
	started chan string

	active   atomic.Int32
	overlaps atomic.Int32

	mu     sync.Mutex
	spoken []string
}

func (e *recordingEngine) Speak(ctx context.Context, text string) error {
	if e.active.Add(1) > 1 {
		e.overlaps.Add(1)
	}
	defer e.active.Add(-1)

	if e.started != nil {
		e.started <- text
	}
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	e.spoken = append(e.spoken, text)
	e.mu.Unlock()
	return e.err
}

func (e *recordingEngine) get() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.spoken...)
}

func TestSpeakPlaysInOrderWithoutOverlap(t *testing.T) {
	eng := &recordingEngine{delay: 5 * time.Millisecond}
	out := NewOutput(eng)
	defer out.Close()

	for _, s := range []string{"one", "two", "three"} {
		assert.True(t, out.Speak(s))
	}

	assert.Eventually(t, func() bool { return len(eng.get()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, eng.get())
	assert.Zero(t, eng.overlaps.Load())
}

func TestSpeakDuringPlaybackWaits(t *testing.T) {
	eng := &recordingEngine{gate: make(chan struct{}), started: make(chan string, 4)}
	out := NewOutput(eng)
	defer out.Close()

	out.Speak("first")
	require.Equal(t, "first", <-eng.started)

	out.Speak("second")
	select {
	case s := <-eng.started:
		t.Fatalf("%q started while first was still playing", s)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, out.Pending())

	eng.gate <- struct{}{}
	assert.Equal(t, "second", <-eng.started)
	eng.gate <- struct{}{}

	assert.Eventually(t, func() bool { return len(eng.get()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, eng.overlaps.Load())
}

func TestQueueDropsOldest(t *testing.T) {
	eng := &recordingEngine{gate: make(chan struct{}), started: make(chan string, 8)}
	out := NewOutput(eng, WithQueueSize(2))
	defer out.Close()

	out.Speak("playing")
	require.Equal(t, "playing", <-eng.started)

	out.Speak("a")
	out.Speak("b")
	out.Speak("c")
	assert.Equal(t, 2, out.Pending())
	assert.Equal(t, uint64(1), out.Dropped())

	close(eng.gate)
	assert.Eventually(t, func() bool { return len(eng.get()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"playing", "b", "c"}, eng.get())
}

func TestFailureReportsStatus(t *testing.T) {
	status := make(chan string, 1)
	eng := &recordingEngine{err: errors.New("all engines failed")}
	out := NewOutput(eng, WithStatusFunc(func(msg string) { status <- msg }))
	defer out.Close()

	out.Speak("hello")
	select {
	case msg := <-status:
		assert.Equal(t, "Speech output failed", msg)
	case <-time.After(time.Second):
		t.Fatal("no status reported")
	}
}

func TestCloseInterruptsAndRejects(t *testing.T) {
	eng := &recordingEngine{gate: make(chan struct{}), started: make(chan string, 4)}
	status := make(chan string, 1)
	out := NewOutput(eng, WithStatusFunc(func(msg string) { status <- msg }))

	out.Speak("long answer")
	<-eng.started
	out.Speak("queued")

	out.Close()
	out.Close()
	assert.False(t, out.Speak("after close"))
	assert.Zero(t, out.Pending())
	assert.Empty(t, eng.get())
	assert.Empty(t, status, "shutdown is not a speech failure")
}

func TestSpeakIgnoresEmptyText(t *testing.T) {
	out := NewOutput(&recordingEngine{})
	defer out.Close()
	assert.False(t, out.Speak("   "))
}

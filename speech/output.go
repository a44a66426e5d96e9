// Package speech plays the assistant's answers one at a time.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/metrics"
)

const (
	// DefaultQueueSize is the number of utterances that may wait for playback.
	DefaultQueueSize = 8
	// DefaultUtteranceTimeout bounds one utterance including synthesis.
	DefaultUtteranceTimeout = 2 * time.Minute
)

// Engine speaks text and blocks until playback finishes.
type Engine interface {
	Speak(ctx context.Context, text string) error
}

// StatusFunc receives a user-facing status when speech fails.
type StatusFunc func(msg string)

// Output queues utterances and plays them on a single goroutine, so two
// utterances never overlap. When the queue is full the oldest waiting
// utterance is dropped.
type Output struct {
	engine    Engine
	queueSize int
	timeout   time.Duration
	onStatus  StatusFunc

	mu      sync.Mutex
	queue   []string
	closed  bool
	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	dropped uint64
}

// Option configures an Output.
type Option func(*Output)

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) Option {
	return func(o *Output) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithUtteranceTimeout bounds the time spent on one utterance.
func WithUtteranceTimeout(d time.Duration) Option {
	return func(o *Output) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithStatusFunc sets the callback used when every engine failed.
func WithStatusFunc(fn StatusFunc) Option {
	return func(o *Output) {
		o.onStatus = fn
	}
}

// NewOutput starts the player goroutine.
func NewOutput(engine Engine, opts ...Option) *Output {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Output{
		engine:    engine,
		queueSize: DefaultQueueSize,
		timeout:   DefaultUtteranceTimeout,
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	go o.run()
	return o
}

// Speak queues text for playback and returns immediately. It reports false
// when the text was not queued because it is empty or the output is closed.
func (o *Output) Speak(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if len(o.queue) >= o.queueSize {
		o.queue = o.queue[1:]
		o.dropped++
		logger.Warn("Speech queue full, dropping oldest utterance", "queue_size", o.queueSize)
	}
	o.queue = append(o.queue, text)
	depth := len(o.queue)
	o.mu.Unlock()

	metrics.SetSpeechQueueDepth(depth)
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of utterances waiting for playback.
func (o *Output) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Dropped returns how many utterances were dropped from a full queue.
func (o *Output) Dropped() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Close discards waiting utterances, interrupts the current one and waits
// for the player goroutine to exit. It is safe to call more than once.
func (o *Output) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		o.queue = nil
		o.cancel()
	}
	o.mu.Unlock()
	metrics.SetSpeechQueueDepth(0)
	<-o.done
}

func (o *Output) next() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return "", false
	}
	text := o.queue[0]
	o.queue = o.queue[1:]
	metrics.SetSpeechQueueDepth(len(o.queue))
	return text, true
}

func (o *Output) run() {
	defer close(o.done)
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.wake:
		}
		for {
			text, ok := o.next()
			if !ok {
				break
			}
			o.play(text)
			if o.ctx.Err() != nil {
				return
			}
		}
	}
}

func (o *Output) play(text string) {
	ctx, cancel := context.WithTimeout(o.ctx, o.timeout)
	defer cancel()

	start := time.Now()
	err := o.engine.Speak(ctx, text)
	switch {
	case err == nil:
		logger.Debug("Spoke utterance", "chars", len(text), "duration", time.Since(start))
	case errors.Is(err, context.Canceled) && o.ctx.Err() != nil:
		logger.Debug("Speech interrupted by shutdown")
	default:
		logger.Error("Speech output failed", "error", err)
		if o.onStatus != nil {
			o.onStatus("Speech output failed")
		}
	}
}

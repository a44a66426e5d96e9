// Package camera captures frames from a local camera and keeps the newest one
// available to readers.
package camera

import (
	"sync"
	"time"
)

// Frame is one captured image.
type Frame struct {
	Data       []byte // JPEG encoded image data
	Width      int
	Height     int
	CapturedAt time.Time
	Seq        uint64
}

// LatestFrame is a single-slot buffer holding the most recent frame.
// Publishing overwrites the slot; a frame replaced before anyone read it is
// counted as dropped.
type LatestFrame struct {
	mu        sync.Mutex
	frame     *Frame
	read      bool
	published uint64
	drops     uint64
}

// NewLatestFrame creates an empty buffer.
func NewLatestFrame() *LatestFrame {
	return &LatestFrame{}
}

// Publish stores f as the newest frame. It reports whether an unread frame
// was overwritten.
func (l *LatestFrame) Publish(f *Frame) (dropped bool) {
	if f == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frame != nil && !l.read {
		l.drops++
		dropped = true
	}
	l.frame = f
	l.read = false
	l.published++
	return dropped
}

// Latest returns the newest frame, or nil if nothing was captured yet.
func (l *LatestFrame) Latest() *Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame != nil {
		l.read = true
	}
	return l.frame
}

// Stats returns the published and dropped frame counts.
func (l *LatestFrame) Stats() (published, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.published, l.drops
}

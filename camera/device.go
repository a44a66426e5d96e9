package camera

import "context"

// Device is a frame producer.
type Device interface {
	// Open acquires the device. Failure wraps ErrDeviceUnavailable.
	Open(ctx context.Context) error
	// ReadFrame blocks until the next frame, ErrCaptureTimeout or ErrDeviceLost.
	ReadFrame(ctx context.Context) (*Frame, error)
	// Close releases the device. It is safe to call more than once.
	Close() error
}

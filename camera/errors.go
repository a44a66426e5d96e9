package camera

import "errors"

var (
	// ErrDeviceUnavailable is returned when the camera cannot be opened.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrDeviceLost is returned when a running camera stops producing frames.
	ErrDeviceLost = errors.New("camera device lost")

	// ErrCaptureTimeout is returned when no frame arrives within the read timeout.
	ErrCaptureTimeout = errors.New("camera capture timed out")

	// ErrNotOpen is returned when reading from a device that is not open.
	ErrNotOpen = errors.New("camera device not open")
)

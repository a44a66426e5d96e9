package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/metrics"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultMaxFailures  = 10
)

// SourceConfig configures a Source.
type SourceConfig struct {
	// Interval between reads. Defaults to 100ms.
	Interval time.Duration
	// MaxFailures is the number of consecutive read failures after which the
	// device is considered lost. Defaults to 10.
	MaxFailures int
	// OnFrame, if set, is called after each frame is published.
	OnFrame func(*Frame)
}

// Source runs the capture loop: it reads frames from a Device and publishes
// them to a LatestFrame.
type Source struct {
	dev    Device
	latest *LatestFrame
	cfg    SourceConfig
	seq    uint64
}

// NewSource creates a capture loop over an opened device.
func NewSource(dev Device, latest *LatestFrame, cfg SourceConfig) *Source {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	return &Source{dev: dev, latest: latest, cfg: cfg}
}

// Run captures until ctx is cancelled (returning nil) or the device is lost
// (returning an error wrapping ErrDeviceLost).
func (s *Source) Run(ctx context.Context) error {
	ctx = logger.WithLoop(ctx, "capture")
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := s.dev.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			metrics.RecordFrame("failed")
			logger.WarnContext(ctx, "Frame capture failed", "error", err, "consecutive", failures)
			if errors.Is(err, ErrDeviceLost) || failures >= s.cfg.MaxFailures {
				return fmt.Errorf("%w after %d consecutive failures: %v", ErrDeviceLost, failures, err)
			}
			continue
		}
		failures = 0

		s.seq++
		frame.Seq = s.seq
		if frame.CapturedAt.IsZero() {
			frame.CapturedAt = time.Now()
		}
		metrics.RecordFrame("captured")
		if s.latest.Publish(frame) {
			metrics.RecordFrame("dropped")
		}
		if s.cfg.OnFrame != nil {
			s.cfg.OnFrame(frame)
		}
	}
}

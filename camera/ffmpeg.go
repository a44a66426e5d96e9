package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avashx/itark/logger"
)

const (
	defaultBinary         = "ffmpeg"
	defaultReadTimeout    = 2 * time.Second
	defaultStartupTimeout = 5 * time.Second
	maxFrameBytes         = 1024 * 1024
	stderrTail            = 2048
)

// JPEG markers
var (
	jpegStart = []byte{0xFF, 0xD8} // SOI
	jpegEnd   = []byte{0xFF, 0xD9} // EOI
)

// FFmpegConfig configures an FFmpegDevice.
type FFmpegConfig struct {
	Index  int    // Camera index (0 = default)
	Device string // Explicit input, e.g. "/dev/video2"; overrides Index
	Width  int
	Height int
	FPS    int

	// ReadTimeout bounds ReadFrame. Defaults to 2s.
	ReadTimeout time.Duration
	// StartupTimeout bounds the wait for the first frame in Open. Defaults to 5s.
	StartupTimeout time.Duration
	// Binary is the ffmpeg executable. Defaults to "ffmpeg" on PATH.
	Binary string
}

// FFmpegDevice reads an MJPEG stream from an ffmpeg child process using the
// platform capture backend (v4l2, avfoundation or dshow).
type FFmpegDevice struct {
	cfg FFmpegConfig

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.Closer
	frames chan []byte
	done   chan struct{}
	stderr *tailBuffer
}

// NewFFmpegDevice creates a device. Nothing is started until Open.
func NewFFmpegDevice(cfg FFmpegConfig) *FFmpegDevice {
	if cfg.Width == 0 {
		cfg.Width = 640
	}
	if cfg.Height == 0 {
		cfg.Height = 480
	}
	if cfg.FPS == 0 {
		cfg.FPS = 30
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	return &FFmpegDevice{cfg: cfg}
}

// Open starts ffmpeg and waits for the first frame so a missing or busy
// camera is reported here rather than on the first read.
func (d *FFmpegDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return nil
	}

	bin, err := exec.LookPath(d.cfg.Binary)
	if err != nil {
		return fmt.Errorf("%w: %s not found: %v", ErrDeviceUnavailable, d.cfg.Binary, err)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, bin, d.buildArgs()...) //nolint:gosec // arguments are built from typed config
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: stdout pipe: %v", ErrDeviceUnavailable, err)
	}
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: start %s: %v", ErrDeviceUnavailable, bin, err)
	}

	frames := make(chan []byte, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := splitMJPEG(stdout, func(jpg []byte) {
			// Keep only the newest frame waiting.
			select {
			case frames <- jpg:
			default:
				select {
				case <-frames:
				default:
				}
				select {
				case frames <- jpg:
				default:
				}
			}
		})
		if err != nil && !errors.Is(err, io.EOF) {
			logger.Warn("Camera stream read error", "error", err)
		}
		_ = cmd.Wait()
	}()

	d.cmd, d.cancel, d.stdout, d.frames, d.done, d.stderr = cmd, cancel, stdout, frames, done, stderr

	timer := time.NewTimer(d.cfg.StartupTimeout)
	defer timer.Stop()

	select {
	case jpg := <-frames:
		// Put the first frame back for the first ReadFrame.
		select {
		case frames <- jpg:
		default:
		}
		logger.Info("Camera opened", "input", d.input(), "width", d.cfg.Width, "height", d.cfg.Height)
		return nil
	case <-done:
		err = fmt.Errorf("%w: ffmpeg exited: %s", ErrDeviceUnavailable, strings.TrimSpace(stderr.String()))
	case <-timer.C:
		err = fmt.Errorf("%w: no frame within %s", ErrDeviceUnavailable, d.cfg.StartupTimeout)
	case <-ctx.Done():
		err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, ctx.Err())
	}

	d.closeLocked()
	return err
}

// ReadFrame returns the next frame from the stream.
func (d *FFmpegDevice) ReadFrame(ctx context.Context) (*Frame, error) {
	d.mu.Lock()
	frames, done, stderr := d.frames, d.done, d.stderr
	d.mu.Unlock()

	if frames == nil {
		return nil, ErrNotOpen
	}

	timer := time.NewTimer(d.cfg.ReadTimeout)
	defer timer.Stop()

	select {
	case jpg := <-frames:
		return &Frame{
			Data:       jpg,
			Width:      d.cfg.Width,
			Height:     d.cfg.Height,
			CapturedAt: time.Now(),
		}, nil
	case <-done:
		return nil, fmt.Errorf("%w: ffmpeg exited: %s", ErrDeviceLost, strings.TrimSpace(stderr.String()))
	case <-timer.C:
		return nil, ErrCaptureTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops ffmpeg.
func (d *FFmpegDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
	return nil
}

func (d *FFmpegDevice) closeLocked() {
	if d.cmd == nil {
		return
	}
	d.cancel()
	_ = d.stdout.Close()
	<-d.done
	d.cmd, d.cancel, d.frames = nil, nil, nil
	logger.Debug("Camera closed", "input", d.input())
}

func (d *FFmpegDevice) input() string {
	if d.cfg.Device != "" {
		return d.cfg.Device
	}
	switch runtime.GOOS {
	case "linux":
		return "/dev/video" + strconv.Itoa(d.cfg.Index)
	case "windows":
		return "video=" + strconv.Itoa(d.cfg.Index)
	default:
		return strconv.Itoa(d.cfg.Index)
	}
}

// buildArgs builds ffmpeg arguments for continuous MJPEG streaming.
func (d *FFmpegDevice) buildArgs() []string {
	size := fmt.Sprintf("%dx%d", d.cfg.Width, d.cfg.Height)
	fps := strconv.Itoa(d.cfg.FPS)

	var format string
	switch runtime.GOOS {
	case "darwin":
		format = "avfoundation"
	case "windows":
		format = "dshow"
	default:
		format = "v4l2"
	}

	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format,
		"-framerate", fps,
		"-video_size", size,
		"-i", d.input(),
		"-an",
		"-f", "mjpeg",
		"-q:v", "5",
		"-",
	}
}

// splitMJPEG reads concatenated JPEG images from r and calls emit with each
// complete image. Bytes outside SOI..EOI are discarded, as are frames larger
// than maxFrameBytes.
func splitMJPEG(r io.Reader, emit func([]byte)) error {
	reader := bufio.NewReaderSize(r, 256*1024)

	var frame bytes.Buffer
	inFrame := false
	var prev byte

	for {
		b, err := reader.ReadByte()
		if err != nil {
			return err
		}

		if !inFrame {
			if prev == jpegStart[0] && b == jpegStart[1] {
				frame.Reset()
				frame.Write(jpegStart)
				inFrame = true
				prev = 0
				continue
			}
			prev = b
			continue
		}

		frame.WriteByte(b)
		if prev == jpegEnd[0] && b == jpegEnd[1] {
			out := make([]byte, frame.Len())
			copy(out, frame.Bytes())
			emit(out)
			frame.Reset()
			inFrame = false
			prev = 0
			continue
		}
		prev = b

		if frame.Len() > maxFrameBytes {
			frame.Reset()
			inFrame = false
			prev = 0
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

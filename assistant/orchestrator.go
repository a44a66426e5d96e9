// Package assistant runs the narration session: it captures frames, asks the
// vision model for descriptions on a timer or on request, and routes the
// answers to the session log and speech output.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/avashx/itark/camera"
	"github.com/avashx/itark/config"
	"github.com/avashx/itark/logger"
	"github.com/avashx/itark/media"
	"github.com/avashx/itark/metrics"
	"github.com/avashx/itark/tts"
	"github.com/avashx/itark/vision"
	"github.com/avashx/itark/voice"
)

// Defaults for a new Orchestrator.
const (
	DefaultRequestTimeout     = 30 * time.Second
	DefaultCaptureInterval    = 100 * time.Millisecond
	DefaultMaxCaptureFailures = 10

	questionQueueSize = 4
	listenQueueSize   = 1
	eventBufferSize   = 64
)

// Mode is what triggered a description request.
type Mode string

// Request modes.
const (
	ModeAuto     Mode = "auto"
	ModeQuestion Mode = "question"
)

// Request is one call to the vision model.
type Request struct {
	ID       string
	Mode     Mode
	Question string
	Frame    *camera.Frame
}

// Result is the outcome of a Request.
type Result struct {
	RequestID string
	Mode      Mode
	Text      string
	OK        bool
	Err       error
}

// Describer describes an encoded image.
type Describer interface {
	Describe(ctx context.Context, image []byte, prompt string) (string, error)
}

// Prompts builds the text sent with each image.
type Prompts interface {
	Scene() string
	Question(q string) string
	Language() string
}

// Preparer encodes a frame for upload.
type Preparer interface {
	Prepare(f *camera.Frame) ([]byte, error)
}

// Speaker plays text without blocking the caller.
type Speaker interface {
	Speak(text string) bool
}

// Listener records and transcribes one spoken question.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// PromptLoader returns the prompt set for a response language.
type PromptLoader func(lang string) (Prompts, error)

// VoiceSettings adjusts speech output while it runs.
type VoiceSettings interface {
	Settings() tts.Settings
	SetLanguage(lang string)
	SetSpeed(speed float64) float64
	SetAccent(a tts.Accent)
	SetHD(on bool)
}

// languageSetter is implemented by listeners that recognize more than one
// language.
type languageSetter interface {
	SetLanguage(lang string)
}

// callCounter is implemented by describers that count the requests they
// actually send.
type callCounter interface {
	Calls() int64
}

// busyFlag enforces one outstanding request per mode.
type busyFlag struct {
	v atomic.Bool
}

func (b *busyFlag) TryAcquire() bool { return b.v.CompareAndSwap(false, true) }
func (b *busyFlag) Release()         { b.v.Store(false) }
func (b *busyFlag) Busy() bool       { return b.v.Load() }

// Status is a point-in-time view of the session for rendering.
type Status struct {
	Running         bool
	AutoDescribe    bool
	Interval        time.Duration
	Message         string
	Voice           string
	VoiceAvailable  bool
	AutoBusy        bool
	QuestionBusy    bool
	Calls           int64
	FramesPublished uint64
	FramesDropped   uint64
	SessionID       string

	Language       string
	Speech         tts.Settings
	SpeechControls bool
}

// Orchestrator owns the capture, inference and voice loops of a session.
type Orchestrator struct {
	device    camera.Device
	describer Describer
	prompts   Prompts
	prep      Preparer
	speaker   Speaker
	listener  Listener
	speech    VoiceSettings
	loader    PromptLoader
	counter   callCounter
	clock     Clock
	log       *SessionLog
	latest    *camera.LatestFrame

	describerName      string
	requestTimeout     time.Duration
	captureInterval    time.Duration
	maxCaptureFailures int

	interval atomic.Int64
	auto     atomic.Bool
	calls    atomic.Int64
	autoBusy busyFlag
	askBusy  busyFlag

	// listening is held from an accepted Listen until its cycle ends.
	listening busyFlag

	questions       chan string
	listenRequests  chan struct{}
	intervalChanged chan struct{}
	events          chan Event

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu         sync.Mutex
	running    bool
	gen        uint64
	runCtx     context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	sessionID  string
	status     string
	voiceState string
	language   string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithSpeaker sets the speech output for answers.
func WithSpeaker(s Speaker) Option {
	return func(o *Orchestrator) { o.speaker = s }
}

// WithListener enables voice questions.
func WithListener(l Listener) Option {
	return func(o *Orchestrator) { o.listener = l }
}

// WithVoiceSettings enables the speech speed, accent and HD controls.
func WithVoiceSettings(v VoiceSettings) Option {
	return func(o *Orchestrator) { o.speech = v }
}

// WithPromptLoader enables switching the response language at runtime.
func WithPromptLoader(load PromptLoader) Option {
	return func(o *Orchestrator) { o.loader = load }
}

// WithPreparer replaces the default frame preprocessor.
func WithPreparer(p Preparer) Option {
	return func(o *Orchestrator) { o.prep = p }
}

// WithInterval sets the initial auto-description interval, clamped to the
// supported range.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.interval.Store(int64(config.ClampInterval(d))) }
}

// WithAutoDescribe sets the initial auto-description mode.
func WithAutoDescribe(on bool) Option {
	return func(o *Orchestrator) { o.auto.Store(on) }
}

// WithRequestTimeout bounds each vision call.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithCaptureInterval sets the frame polling interval.
func WithCaptureInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.captureInterval = d
		}
	}
}

// WithMaxCaptureFailures sets how many consecutive read failures mean the
// camera is lost.
func WithMaxCaptureFailures(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxCaptureFailures = n
		}
	}
}

// New creates an Orchestrator. The device is opened by Start.
func New(device camera.Device, describer Describer, prompts Prompts, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		device:             device,
		describer:          describer,
		prompts:            prompts,
		prep:               media.NewPreprocessor(media.DefaultMaxWidth, media.DefaultQuality),
		clock:              realClock{},
		log:                NewSessionLog(),
		latest:             camera.NewLatestFrame(),
		describerName:      "vision",
		requestTimeout:     DefaultRequestTimeout,
		captureInterval:    DefaultCaptureInterval,
		maxCaptureFailures: DefaultMaxCaptureFailures,
		questions:          make(chan string, questionQueueSize),
		listenRequests:     make(chan struct{}, listenQueueSize),
		intervalChanged:    make(chan struct{}, 1),
		events:             make(chan Event, eventBufferSize),
		voiceState:         voice.StateIdle.String(),
	}
	o.interval.Store(int64(config.DefaultInterval))
	o.auto.Store(true)
	if m, ok := describer.(interface{ Model() string }); ok {
		o.describerName = m.Model()
	}
	if c, ok := describer.(callCounter); ok {
		o.counter = c
	}
	if prompts != nil {
		o.language = prompts.Language()
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Log returns the session log.
func (o *Orchestrator) Log() *SessionLog { return o.log }

// Events returns the event stream. Events are dropped when nobody reads.
func (o *Orchestrator) Events() <-chan Event { return o.events }

// LatestFrame returns the newest captured frame, or nil.
func (o *Orchestrator) LatestFrame() *camera.Frame { return o.latest.Latest() }

// Interval returns the current auto-description interval.
func (o *Orchestrator) Interval() time.Duration { return time.Duration(o.interval.Load()) }

// Running reports whether a session is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Calls returns the number of vision requests sent. Describers that count
// their own requests are trusted over the local counter, which also sees
// calls refused by a client-side budget.
func (o *Orchestrator) Calls() int64 {
	if o.counter != nil {
		return o.counter.Calls()
	}
	return o.calls.Load()
}

// Snapshot returns the current status.
func (o *Orchestrator) Snapshot() Status {
	published, dropped := o.latest.Stats()
	var speech tts.Settings
	if o.speech != nil {
		speech = o.speech.Settings()
	}
	calls := o.Calls()
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Running:         o.running,
		AutoDescribe:    o.auto.Load(),
		Interval:        o.Interval(),
		Message:         o.status,
		Voice:           o.voiceState,
		VoiceAvailable:  o.listener != nil,
		AutoBusy:        o.autoBusy.Busy(),
		QuestionBusy:    o.askBusy.Busy(),
		Calls:           calls,
		FramesPublished: published,
		FramesDropped:   dropped,
		SessionID:       o.sessionID,
		Language:        o.language,
		Speech:          speech,
		SpeechControls:  o.speech != nil,
	}
}

// Start opens the camera and launches the session loops. When the camera
// cannot be opened the error wraps camera.ErrDeviceUnavailable and no loop
// is started.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.mu.Lock()
	running, stopping, prevDone := o.running, o.running && o.runCtx.Err() != nil, o.done
	o.mu.Unlock()
	switch {
	case stopping:
		// The previous session ended on its own and is still tearing down.
		<-prevDone
	case running:
		return ErrAlreadyRunning
	}

	o.setStatus("Starting assistant...")
	if err := o.device.Open(ctx); err != nil {
		if !errors.Is(err, camera.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", camera.ErrDeviceUnavailable, err)
		}
		o.reportError(ctx, err)
		return err
	}

	sessionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(logger.WithSessionID(context.Background(), sessionID))
	g, gctx := errgroup.WithContext(runCtx)
	done := make(chan struct{})

	o.mu.Lock()
	o.running = true
	o.gen++
	gen := o.gen
	o.runCtx = runCtx
	o.cancel = cancel
	o.done = done
	o.sessionID = sessionID
	o.mu.Unlock()

	source := camera.NewSource(o.device, o.latest, camera.SourceConfig{
		Interval:    o.captureInterval,
		MaxFailures: o.maxCaptureFailures,
	})
	g.Go(func() error { return source.Run(gctx) })
	g.Go(func() error { return o.dispatchLoop(gctx, gen) })
	if o.listener != nil {
		g.Go(func() error { return o.voiceLoop(gctx) })
	}
	go o.supervise(runCtx, g, cancel, done)

	logger.InfoContext(runCtx, "Assistant started",
		"interval", o.Interval(), "auto_describe", o.auto.Load(), "voice", o.listener != nil)
	o.emit(Event{Type: EventRunningChanged, Running: true})
	o.appendLog(RoleSystem, o.message(msgStarted))
	o.setStatus("Assistant started")
	return nil
}

// Stop cancels the session loops, waits for them to exit and drains the
// queues. In-flight vision calls are not aborted; their results are
// discarded when they return.
func (o *Orchestrator) Stop() {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel, done := o.cancel, o.done
	o.mu.Unlock()

	o.setStatus("Stopping assistant...")
	cancel()
	<-done
}

// supervise waits for the loops of one session and tears it down. running
// stays set until the teardown is complete, so a Start cannot interleave
// with it.
func (o *Orchestrator) supervise(ctx context.Context, g *errgroup.Group, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)

	err := g.Wait()
	cancel()
	if cerr := o.device.Close(); cerr != nil {
		logger.WarnContext(ctx, "Closing camera failed", "error", cerr)
	}

	// Ask and Listen refuse new work once ctx is cancelled.
	o.drain()
	o.listening.Release()

	if err != nil {
		o.reportError(ctx, err)
	}
	logger.InfoContext(ctx, "Assistant stopped", "calls", o.Calls())
	o.emit(Event{Type: EventRunningChanged, Running: false})
	o.appendLog(RoleSystem, o.message(msgStopped))
	if err == nil {
		o.setStatus("Assistant stopped")
	}

	o.mu.Lock()
	o.running = false
	o.cancel = nil
	o.mu.Unlock()
}

func (o *Orchestrator) drain() {
	for {
		select {
		case <-o.questions:
		case <-o.listenRequests:
		default:
			return
		}
	}
}

// current reports whether gen is the live session.
func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.live() && o.gen == gen
}

// live reports whether a session is running and not shutting down. The
// caller holds o.mu.
func (o *Orchestrator) live() bool {
	return o.running && o.runCtx.Err() == nil
}

// SetAutoDescribe turns auto-description on or off.
func (o *Orchestrator) SetAutoDescribe(on bool) {
	o.auto.Store(on)
	state := "disabled"
	if on {
		state = "enabled"
	}
	logger.Info("Auto-describe changed", "enabled", on)
	o.setStatus("Auto-describe " + state)
}

// ToggleAutoDescribe flips auto-description and returns the new value.
func (o *Orchestrator) ToggleAutoDescribe() bool {
	on := !o.auto.Load()
	o.SetAutoDescribe(on)
	return on
}

// SetInterval changes the auto-description interval of the running session
// and returns the value applied after clamping.
func (o *Orchestrator) SetInterval(d time.Duration) time.Duration {
	d = config.ClampInterval(d)
	o.interval.Store(int64(d))
	select {
	case o.intervalChanged <- struct{}{}:
	default:
	}
	logger.Info("Description interval changed", "interval", d)
	o.setStatus(fmt.Sprintf("Analysis interval set to %d seconds", int(d.Seconds())))
	return d
}

// Language returns the response language.
func (o *Orchestrator) Language() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.language
}

func (o *Orchestrator) currentPrompts() Prompts {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prompts
}

// SetLanguage switches the response language. The prompt set, the voice
// recognizer and the speech voice all follow it.
func (o *Orchestrator) SetLanguage(lang string) error {
	matched, ok := config.MatchLanguage(lang)
	if !ok || o.loader == nil {
		err := fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
		o.setStatus(StatusMessage(err))
		return err
	}
	prompts, err := o.loader(matched)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnsupportedLanguage, err)
		o.reportError(context.Background(), err)
		return err
	}

	o.mu.Lock()
	o.prompts = prompts
	o.language = matched
	o.mu.Unlock()

	if l, ok := o.listener.(languageSetter); ok {
		l.SetLanguage(matched)
	}
	if o.speech != nil {
		o.speech.SetLanguage(matched)
	}
	logger.Info("Response language changed", "language", matched)
	o.setStatus(o.message(msgLanguageChanged))
	return nil
}

// ToggleLanguage switches between English and Hindi and returns the new
// language.
func (o *Orchestrator) ToggleLanguage() (string, error) {
	next := "hi"
	if o.Language() == "hi" {
		next = "en"
	}
	if err := o.SetLanguage(next); err != nil {
		return o.Language(), err
	}
	return next, nil
}

// SetSpeechSpeed sets the speaking speed multiplier and returns the value
// applied after clamping to [tts.MinSpeed, tts.MaxSpeed].
func (o *Orchestrator) SetSpeechSpeed(speed float64) (float64, error) {
	if o.speech == nil {
		o.setStatus(StatusMessage(ErrSpeechUnavailable))
		return 0, ErrSpeechUnavailable
	}
	applied := o.speech.SetSpeed(speed)
	logger.Info("Speaking speed changed", "speed", applied)
	o.setStatus(fmt.Sprintf("Speaking speed set to %gx", applied))
	return applied, nil
}

// AdjustSpeechSpeed changes the speaking speed by delta.
func (o *Orchestrator) AdjustSpeechSpeed(delta float64) (float64, error) {
	if o.speech == nil {
		o.setStatus(StatusMessage(ErrSpeechUnavailable))
		return 0, ErrSpeechUnavailable
	}
	return o.SetSpeechSpeed(o.speech.Settings().Speed + delta)
}

// CycleAccent moves to the next English voice accent.
func (o *Orchestrator) CycleAccent() (tts.Accent, error) {
	if o.speech == nil {
		o.setStatus(StatusMessage(ErrSpeechUnavailable))
		return "", ErrSpeechUnavailable
	}
	next := o.speech.Settings().Accent.Next()
	o.speech.SetAccent(next)
	logger.Info("Voice accent changed", "accent", string(next))
	o.setStatus("Voice accent: " + next.Label())
	return next, nil
}

// ToggleHDVoice flips between cloud and standard speech engines and returns
// the new value.
func (o *Orchestrator) ToggleHDVoice() (bool, error) {
	if o.speech == nil {
		o.setStatus(StatusMessage(ErrSpeechUnavailable))
		return false, ErrSpeechUnavailable
	}
	on := !o.speech.Settings().HD
	o.speech.SetHD(on)
	logger.Info("HD voice changed", "enabled", on)
	if on {
		o.setStatus("HD voice enabled")
	} else {
		o.setStatus("HD voice disabled, using standard voice")
	}
	return on, nil
}

// Ask queues a typed question about the current frame.
func (o *Orchestrator) Ask(question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil
	}
	o.mu.Lock()
	live := o.live()
	o.mu.Unlock()
	if !live {
		o.setStatus(StatusMessage(ErrNotRunning))
		return ErrNotRunning
	}
	o.appendLog(RoleUser, question)
	return o.enqueueQuestion(question)
}

// enqueueQuestion hands question to the dispatch loop of the live session.
func (o *Orchestrator) enqueueQuestion(question string) error {
	o.mu.Lock()
	if !o.live() {
		o.mu.Unlock()
		return ErrNotRunning
	}
	var queued bool
	select {
	case o.questions <- question:
		queued = true
	default:
	}
	o.mu.Unlock()

	if !queued {
		metrics.RecordTriggerDropped(string(ModeQuestion))
		logger.Warn("Question queue full, dropping question")
		o.setStatus(StatusMessage(ErrBusy))
		return ErrBusy
	}
	return nil
}

// Listen asks the voice loop to capture one spoken question. While a
// listening cycle is queued or active, further requests are rejected with
// voice.ErrBusy.
func (o *Orchestrator) Listen() error {
	if o.listener == nil {
		o.setStatus(StatusMessage(ErrVoiceUnavailable))
		return ErrVoiceUnavailable
	}

	o.mu.Lock()
	if !o.live() {
		o.mu.Unlock()
		o.setStatus(StatusMessage(ErrNotRunning))
		return ErrNotRunning
	}
	claimed := o.listening.TryAcquire()
	if claimed {
		select {
		case o.listenRequests <- struct{}{}:
		default:
			o.listening.Release()
			claimed = false
		}
	}
	o.mu.Unlock()

	if !claimed {
		metrics.RecordListen("busy")
		logger.Debug("Listen request rejected, already listening")
		o.setStatus(StatusMessage(voice.ErrBusy))
		return voice.ErrBusy
	}
	return nil
}

// ObserveVoice records a voice listener state change. It matches
// voice.Observer.
func (o *Orchestrator) ObserveVoice(_, to voice.State) {
	o.mu.Lock()
	o.voiceState = to.String()
	o.mu.Unlock()
	o.emit(Event{Type: EventVoiceState, Voice: to.String()})
}

func (o *Orchestrator) dispatchLoop(ctx context.Context, gen uint64) error {
	ctx = logger.WithLoop(ctx, "inference")
	ticker := o.clock.NewTicker(o.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if o.auto.Load() {
				o.dispatch(ctx, gen, ModeAuto, "")
			}
		case <-o.intervalChanged:
			ticker.Reset(o.Interval())
		case q := <-o.questions:
			o.dispatch(ctx, gen, ModeQuestion, q)
		}
	}
}

func (o *Orchestrator) voiceLoop(ctx context.Context) error {
	ctx = logger.WithLoop(ctx, "voice")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.listenRequests:
		}
		if !o.listenOnce(ctx) {
			return nil
		}
	}
}

// listenOnce runs one listening cycle and releases the listening flag. It
// returns false when the session is shutting down.
func (o *Orchestrator) listenOnce(ctx context.Context) bool {
	defer o.listening.Release()

	o.setStatus("Listening...")
	text, err := o.listener.Listen(ctx)
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, voice.ErrBusy):
		o.setStatus(StatusMessage(err))
	case err != nil:
		o.reportError(ctx, err)
	default:
		o.appendLog(RoleUser, text)
		_ = o.enqueueQuestion(text)
	}
	return true
}

// dispatch starts a request of mode unless one is already outstanding.
func (o *Orchestrator) dispatch(ctx context.Context, gen uint64, mode Mode, question string) {
	flag := &o.autoBusy
	if mode == ModeQuestion {
		flag = &o.askBusy
	}
	if !flag.TryAcquire() {
		metrics.RecordTriggerDropped(string(mode))
		logger.DebugContext(ctx, "Trigger dropped, request outstanding", "mode", mode)
		if mode == ModeQuestion {
			o.setStatus(StatusMessage(ErrBusy))
		}
		return
	}

	frame := o.latest.Latest()
	if frame == nil {
		flag.Release()
		if mode == ModeQuestion {
			o.reportError(ctx, ErrNoFrame)
		} else {
			logger.DebugContext(ctx, "Auto tick skipped, no frame yet")
		}
		return
	}

	req := Request{ID: uuid.NewString(), Mode: mode, Question: question, Frame: frame}
	if mode == ModeAuto {
		o.setStatus("Analyzing image...")
	} else {
		o.setStatus("Processing question...")
	}

	// The call outlives Stop; its result is dropped by handleResult.
	callCtx := context.WithoutCancel(ctx)
	go func() {
		defer flag.Release()
		o.handleResult(callCtx, gen, o.describe(callCtx, req))
	}()
}

func (o *Orchestrator) describe(ctx context.Context, req Request) Result {
	ctx = logger.WithRequestID(logger.WithMode(ctx, string(req.Mode)), req.ID)
	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	res := Result{RequestID: req.ID, Mode: req.Mode}
	image, err := o.prep.Prepare(req.Frame)
	if err != nil {
		res.Err = err
		return res
	}

	prompts := o.currentPrompts()
	prompt := prompts.Scene()
	if req.Mode == ModeQuestion {
		prompt = prompts.Question(req.Question)
	}

	logger.VisionCall(ctx, o.describerName, len(image), "frame_seq", req.Frame.Seq)
	o.calls.Add(1)
	start := time.Now()
	text, err := o.describer.Describe(ctx, image, prompt)
	elapsed := time.Since(start)
	metrics.RecordDescription(string(req.Mode), resultStatus(err), elapsed.Seconds())
	if err != nil {
		logger.VisionError(ctx, o.describerName, err)
		res.Err = err
		return res
	}
	logger.VisionResponse(ctx, o.describerName, len(text), elapsed)
	res.Text = text
	res.OK = true
	return res
}

func (o *Orchestrator) handleResult(ctx context.Context, gen uint64, res Result) {
	ctx = logger.WithRequestID(ctx, res.RequestID)
	if !o.current(gen) {
		logger.InfoContext(ctx, "Discarding result after shutdown", "mode", res.Mode, "ok", res.OK)
		return
	}
	if !res.OK {
		o.reportError(ctx, res.Err)
		return
	}

	o.appendLog(RoleAssistant, res.Text)
	if o.speaker != nil {
		o.speaker.Speak(res.Text)
	}
	if res.Mode == ModeAuto {
		o.setStatus("Description complete")
	} else {
		o.setStatus("Question answered")
	}
}

// SetStatus shows msg on the status line. It matches speech.StatusFunc.
func (o *Orchestrator) SetStatus(msg string) { o.setStatus(msg) }

// reportError adds one error entry to the session log and shows its status.
func (o *Orchestrator) reportError(ctx context.Context, err error) {
	msg := StatusMessage(err)
	logger.ErrorContext(ctx, "Assistant error", "error", err, "status", msg)
	o.appendLog(RoleError, msg)
	o.setStatus(msg)
}

func (o *Orchestrator) appendLog(role Role, text string) {
	e := o.log.Append(o.clock.Now(), role, text)
	logger.Info("Session log", "role", string(role), "text", text)
	o.emit(Event{Type: EventLogAppended, Entry: e})
}

func (o *Orchestrator) setStatus(msg string) {
	o.mu.Lock()
	o.status = msg
	o.mu.Unlock()
	o.emit(Event{Type: EventStatus, Status: msg})
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}

func resultStatus(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, vision.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, vision.ErrNetwork):
		return "network"
	case errors.Is(err, vision.ErrInvalidResponse):
		return "invalid_response"
	default:
		return metrics.StatusError
	}
}

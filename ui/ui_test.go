package ui

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avashx/itark/assistant"
	"github.com/avashx/itark/camera"
	"github.com/avashx/itark/tts"
)

type fakeController struct {
	mu       sync.Mutex
	running  bool
	auto     bool
	interval time.Duration
	asked    []string
	listens  int
	startErr error
	askErr   error
	lang     string
	speech   *tts.Settings
	frame    *camera.Frame
	log      *assistant.SessionLog
	events   chan assistant.Event
}

func newFakeController() *fakeController {
	return &fakeController{
		auto:     true,
		interval: 10 * time.Second,
		lang:     "en",
		log:      assistant.NewSessionLog(),
		events:   make(chan assistant.Event, 8),
	}
}

func (c *fakeController) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.running = true
	return nil
}

func (c *fakeController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

func (c *fakeController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *fakeController) Ask(q string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asked = append(c.asked, q)
	return c.askErr
}

func (c *fakeController) Listen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listens++
	return nil
}

func (c *fakeController) ToggleAutoDescribe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auto = !c.auto
	return c.auto
}

func (c *fakeController) SetInterval(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d = min(max(d, 5*time.Second), 60*time.Second)
	c.interval = d
	return d
}

func (c *fakeController) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

func (c *fakeController) ToggleLanguage() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lang == "en" {
		c.lang = "hi"
	} else {
		c.lang = "en"
	}
	return c.lang, nil
}

func (c *fakeController) AdjustSpeechSpeed(delta float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speech == nil {
		return 0, assistant.ErrSpeechUnavailable
	}
	c.speech.Speed = tts.ClampSpeed(c.speech.Speed + delta)
	return c.speech.Speed, nil
}

func (c *fakeController) CycleAccent() (tts.Accent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speech == nil {
		return "", assistant.ErrSpeechUnavailable
	}
	c.speech.Accent = c.speech.Accent.Next()
	return c.speech.Accent, nil
}

func (c *fakeController) ToggleHDVoice() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speech == nil {
		return false, assistant.ErrSpeechUnavailable
	}
	c.speech.HD = !c.speech.HD
	return c.speech.HD, nil
}

func (c *fakeController) Snapshot() assistant.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := assistant.Status{Running: c.running, AutoDescribe: c.auto, Interval: c.interval, Language: c.lang}
	if c.speech != nil {
		st.Speech = *c.speech
		st.SpeechControls = true
	}
	return st
}

func (c *fakeController) LatestFrame() *camera.Frame     { return c.frame }
func (c *fakeController) Log() *assistant.SessionLog     { return c.log }
func (c *fakeController) Events() <-chan assistant.Event { return c.events }

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send delivers key to m, discarding any command. Used for keys that only
// edit or focus the text input, whose commands drive cursor blinking.
func send(m Model, key string) Model {
	next, _ := m.Update(keyMsg(key))
	return next.(Model)
}

// press sends key to m and runs the resulting command, feeding a doneMsg
// back into the model.
func press(t *testing.T, m Model, key string) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(keyMsg(key))
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	msg := cmd()
	if done, ok := msg.(doneMsg); ok {
		next, _ = m.Update(done)
		m = next.(Model)
	}
	return m, msg
}

func TestOnUserActionToggleRun(t *testing.T) {
	c := newFakeController()

	require.NoError(t, OnUserAction(c, Action{Kind: ActionToggleRun})())
	assert.True(t, c.Running())

	require.NoError(t, OnUserAction(c, Action{Kind: ActionToggleRun})())
	assert.False(t, c.Running())
}

func TestOnUserActionStartError(t *testing.T) {
	c := newFakeController()
	c.startErr = camera.ErrDeviceUnavailable

	err := OnUserAction(c, Action{Kind: ActionToggleRun})()
	assert.ErrorIs(t, err, camera.ErrDeviceUnavailable)
}

func TestOnUserActionAsk(t *testing.T) {
	c := newFakeController()

	assert.Nil(t, OnUserAction(c, Action{Kind: ActionAsk}), "empty question needs no call")

	require.NoError(t, OnUserAction(c, Action{Kind: ActionAsk, Text: "what is this?"})())
	assert.Equal(t, []string{"what is this?"}, c.asked)
}

func TestOnUserActionIntervalAndAuto(t *testing.T) {
	c := newFakeController()

	require.NoError(t, OnUserAction(c, Action{Kind: ActionInterval, Delta: IntervalStep})())
	assert.Equal(t, 15*time.Second, c.Interval())

	for i := 0; i < 20; i++ {
		require.NoError(t, OnUserAction(c, Action{Kind: ActionInterval, Delta: -IntervalStep})())
	}
	assert.Equal(t, 5*time.Second, c.Interval())

	require.NoError(t, OnUserAction(c, Action{Kind: ActionToggleAuto})())
	assert.False(t, c.Snapshot().AutoDescribe)

	require.NoError(t, OnUserAction(c, Action{Kind: ActionListen})())
	assert.Equal(t, 1, c.listens)

	assert.Nil(t, OnUserAction(c, Action{Kind: ActionKind(99)}))
}

func TestModelKeys(t *testing.T) {
	c := newFakeController()
	m := NewModel(c)

	m, _ = press(t, m, "s")
	assert.True(t, c.Running())
	assert.True(t, m.status.Running)

	m, _ = press(t, m, "+")
	assert.Equal(t, 15*time.Second, c.Interval())

	m, _ = press(t, m, "-")
	m, _ = press(t, m, "-")
	assert.Equal(t, 5*time.Second, c.Interval())

	m, _ = press(t, m, "a")
	assert.False(t, c.Snapshot().AutoDescribe)

	m, _ = press(t, m, " ")
	assert.Equal(t, 1, c.listens)

	m, _ = press(t, m, "s")
	assert.False(t, c.Running())
	assert.False(t, m.status.Running)
}

func TestModelVoiceControlKeys(t *testing.T) {
	c := newFakeController()
	speech := tts.DefaultSettings()
	c.speech = &speech
	m := NewModel(c)
	assert.Contains(t, m.View(), "[/] speed")

	m, _ = press(t, m, "l")
	assert.Equal(t, "hi", c.Snapshot().Language)

	m, _ = press(t, m, "]")
	m, _ = press(t, m, ">")
	assert.Equal(t, 1.5, c.Snapshot().Speech.Speed)
	m, _ = press(t, m, "[")
	assert.Equal(t, 1.25, c.Snapshot().Speech.Speed)

	m, _ = press(t, m, "v")
	assert.Equal(t, tts.AccentUK, c.Snapshot().Speech.Accent)

	m, _ = press(t, m, "h")
	assert.False(t, c.Snapshot().Speech.HD)

	next, _ := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	view := m.View()
	assert.Contains(t, view, "Lang: hi")
	assert.Contains(t, view, "Speech: 1.25x uk HD off")
}

func TestModelSpeechKeysWithoutSpeech(t *testing.T) {
	c := newFakeController()
	m := NewModel(c)
	assert.NotContains(t, m.View(), "[/] speed")

	m, _ = press(t, m, "]")
	assert.Contains(t, m.View(), "Speech output not available")
}

func TestOnUserActionVoiceControls(t *testing.T) {
	c := newFakeController()
	speech := tts.DefaultSettings()
	c.speech = &speech

	require.NoError(t, OnUserAction(c, Action{Kind: ActionToggleLanguage})())
	require.NoError(t, OnUserAction(c, Action{Kind: ActionSpeed, Speed: -SpeedStep})())
	require.NoError(t, OnUserAction(c, Action{Kind: ActionCycleAccent})())
	require.NoError(t, OnUserAction(c, Action{Kind: ActionToggleHD})())

	st := c.Snapshot()
	assert.Equal(t, "hi", st.Language)
	assert.Equal(t, tts.Settings{Language: "en", Accent: tts.AccentUK, Speed: 0.75, HD: false}, st.Speech)
}

func TestModelAskFlow(t *testing.T) {
	c := newFakeController()
	m := NewModel(c)

	m = send(m, "enter")
	require.True(t, m.input.Focused())

	// Command keys type into the focused input.
	m = send(m, "is ")
	m = send(m, "s")
	m = send(m, "omeone there?")
	assert.False(t, c.Running())
	assert.Equal(t, "is someone there?", m.input.Value())

	m, _ = press(t, m, "enter")
	assert.False(t, m.input.Focused())
	assert.Empty(t, m.input.Value())
	assert.Equal(t, []string{"is someone there?"}, c.asked)
}

func TestModelAskEscapeCancels(t *testing.T) {
	c := newFakeController()
	m := NewModel(c)

	m = send(m, "enter")
	m = send(m, "hello")
	m = send(m, "esc")
	assert.False(t, m.input.Focused())
	assert.Empty(t, c.asked)
}

func TestModelShowsCommandError(t *testing.T) {
	c := newFakeController()
	c.askErr = assistant.ErrNotRunning
	m := NewModel(c)

	m = send(m, "enter")
	m = send(m, "why")
	m, _ = press(t, m, "enter")

	assert.Equal(t, []string{"why"}, c.asked)
	assert.Contains(t, m.View(), "Please start the assistant first")
}

func TestModelQuit(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		m := NewModel(newFakeController())
		_, msg := press(t, m, key)
		assert.IsType(t, tea.QuitMsg{}, msg, key)
	}
}

func TestModelEvents(t *testing.T) {
	c := newFakeController()
	m := NewModel(c)

	c.log.Append(time.Now(), assistant.RoleAssistant, "A cat on a sofa.")
	c.events <- assistant.Event{Type: assistant.EventLogAppended}

	msg := m.listenForEvents()()
	next, cmd := m.Update(msg)
	m = next.(Model)
	assert.NotNil(t, cmd, "listening continues after an event")
	require.Len(t, m.log, 1)

	next, _ = m.Update(eventMsg(assistant.Event{Type: assistant.EventStatus, Status: "Analyzing scene..."}))
	m = next.(Model)
	next, _ = m.Update(eventMsg(assistant.Event{Type: assistant.EventVoiceState, Voice: "listening"}))
	m = next.(Model)

	view := m.View()
	assert.Contains(t, view, "A cat on a sofa.")
	assert.Contains(t, view, "Analyzing scene...")
	assert.Equal(t, "listening", m.status.Voice)
}

func TestModelView(t *testing.T) {
	c := newFakeController()
	m := NewModel(c)

	view := m.View()
	assert.Contains(t, view, "Stopped")
	assert.Contains(t, view, "Interval: 10s")
	assert.Contains(t, view, "s start")
	assert.Contains(t, view, "no camera preview")
	assert.NotContains(t, view, "space listen", "voice help is hidden without a listener")
}

func testFrame(t *testing.T, w, h int) *camera.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return &camera.Frame{Data: buf.Bytes(), Width: w, Height: h, Seq: 1}
}

func TestRenderThumbnail(t *testing.T) {
	out, err := renderThumbnail(testFrame(t, 160, 120), 40, 15)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 15)
	assert.Contains(t, out, "▀")
}

func TestRenderThumbnailInvalidFrame(t *testing.T) {
	_, err := renderThumbnail(&camera.Frame{Data: []byte("not a jpeg")}, 40, 15)
	assert.Error(t, err)

	_, err = renderThumbnail(nil, 40, 15)
	assert.Error(t, err)
}

func TestModelRefreshesPreviewOnNewFrame(t *testing.T) {
	c := newFakeController()
	c.running = true
	c.frame = testFrame(t, 64, 48)
	m := NewModel(c)
	require.NotEmpty(t, m.thumb)
	assert.Equal(t, uint64(1), m.frameSeq)

	next, _ := m.Update(eventMsg(assistant.Event{Type: assistant.EventRunningChanged, Running: false}))
	m = next.(Model)
	assert.Empty(t, m.thumb)
}

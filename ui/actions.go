package ui

import (
	"context"
	"time"

	"github.com/avashx/itark/assistant"
	"github.com/avashx/itark/camera"
	"github.com/avashx/itark/tts"
)

// Steps applied by one key press.
const (
	IntervalStep = 5 * time.Second
	SpeedStep    = 0.25
)

// Controller is the orchestrator surface the UI drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Ask(question string) error
	Listen() error
	ToggleAutoDescribe() bool
	SetInterval(d time.Duration) time.Duration
	Interval() time.Duration
	ToggleLanguage() (string, error)
	AdjustSpeechSpeed(delta float64) (float64, error)
	CycleAccent() (tts.Accent, error)
	ToggleHDVoice() (bool, error)
	Snapshot() assistant.Status
	LatestFrame() *camera.Frame
	Log() *assistant.SessionLog
	Events() <-chan assistant.Event
}

// ActionKind is a user input the UI understands.
type ActionKind int

const (
	// ActionToggleRun starts a stopped session or stops a running one.
	ActionToggleRun ActionKind = iota
	// ActionAsk asks Text about the current frame.
	ActionAsk
	// ActionToggleAuto flips auto-description.
	ActionToggleAuto
	// ActionInterval changes the interval by Delta.
	ActionInterval
	// ActionListen captures a spoken question.
	ActionListen
	// ActionToggleLanguage switches the response language.
	ActionToggleLanguage
	// ActionSpeed changes the speaking speed by Speed.
	ActionSpeed
	// ActionCycleAccent moves to the next voice accent.
	ActionCycleAccent
	// ActionToggleHD flips between cloud and standard voices.
	ActionToggleHD
)

// Action is one user input event.
type Action struct {
	Kind  ActionKind
	Text  string
	Delta time.Duration
	Speed float64
}

// Command is an orchestrator call produced by a user action. It may block
// and must not run on the UI goroutine.
type Command func() error

// OnUserAction maps an action to the orchestrator call that carries it out.
// It returns nil for actions that need no call.
func OnUserAction(c Controller, a Action) Command {
	switch a.Kind {
	case ActionToggleRun:
		if c.Running() {
			return func() error {
				c.Stop()
				return nil
			}
		}
		return func() error { return c.Start(context.Background()) }
	case ActionAsk:
		if a.Text == "" {
			return nil
		}
		return func() error { return c.Ask(a.Text) }
	case ActionToggleAuto:
		return func() error {
			c.ToggleAutoDescribe()
			return nil
		}
	case ActionInterval:
		return func() error {
			c.SetInterval(c.Interval() + a.Delta)
			return nil
		}
	case ActionListen:
		return c.Listen
	case ActionToggleLanguage:
		return func() error {
			_, err := c.ToggleLanguage()
			return err
		}
	case ActionSpeed:
		return func() error {
			_, err := c.AdjustSpeechSpeed(a.Speed)
			return err
		}
	case ActionCycleAccent:
		return func() error {
			_, err := c.CycleAccent()
			return err
		}
	case ActionToggleHD:
		return func() error {
			_, err := c.ToggleHDVoice()
			return err
		}
	default:
		return nil
	}
}

package tts

import (
	"fmt"
	"math"
	"strings"
)

// Speaking speed bounds for the user-facing multiplier.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Accent selects a regional English voice.
type Accent string

// Supported accents, in cycling order.
const (
	AccentUS Accent = "us"
	AccentUK Accent = "uk"
	AccentAU Accent = "au"
	AccentIN Accent = "in"
)

// Accents lists the supported accents in cycling order.
var Accents = []Accent{AccentUS, AccentUK, AccentAU, AccentIN}

var accentLabels = map[Accent]string{
	AccentUS: "US English",
	AccentUK: "UK English",
	AccentAU: "Australian English",
	AccentIN: "Indian English",
}

// ParseAccent accepts an accent code such as "uk".
func ParseAccent(s string) (Accent, error) {
	a := Accent(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := accentLabels[a]; !ok {
		return "", fmt.Errorf("%w: %q (us, uk, au, in)", ErrInvalidAccent, s)
	}
	return a, nil
}

// Next returns the accent after a, wrapping around.
func (a Accent) Next() Accent {
	for i, v := range Accents {
		if v == a {
			return Accents[(i+1)%len(Accents)]
		}
	}
	return AccentUS
}

// Label returns a display name.
func (a Accent) Label() string {
	if l, ok := accentLabels[a]; ok {
		return l
	}
	return string(a)
}

// Settings are the voice parameters the user can change while speech runs.
type Settings struct {
	// Language is the response language ("en" or "hi").
	Language string

	// Accent picks the English voice region. Ignored for other languages.
	Accent Accent

	// Speed is the speaking speed multiplier (MinSpeed-MaxSpeed).
	Speed float64

	// HD prefers cloud voices. When false the standard engines go first and
	// cloud engines are only a fallback.
	HD bool
}

// DefaultSettings returns English, US accent, normal speed, HD voice.
func DefaultSettings() Settings {
	return Settings{Language: "en", Accent: AccentUS, Speed: 1.0, HD: true}
}

// ClampSpeed bounds s to [MinSpeed, MaxSpeed]. Non-positive values mean 1.0.
func ClampSpeed(s float64) float64 {
	if s <= 0 || math.IsNaN(s) {
		return 1.0
	}
	return min(max(s, MinSpeed), MaxSpeed)
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Language == "" {
		s.Language = d.Language
	}
	if _, ok := accentLabels[s.Accent]; !ok {
		s.Accent = d.Accent
	}
	s.Speed = ClampSpeed(s.Speed)
	return s
}

// apply overrides the user-adjustable fields of c.
//
//nolint:gocritic // hugeParam: small value types copied per utterance
func (s Settings) apply(c SynthesisConfig) SynthesisConfig {
	c.Language = s.Language
	c.Accent = s.Accent
	c.Speed = s.Speed
	return c
}

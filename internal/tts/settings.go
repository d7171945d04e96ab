package tts

import (
	"math"
)

// Control setting bounds and defaults.
const (
	MinVolume     = 0
	MaxVolume     = 100
	DefaultVolume = 80

	DefaultSpeed = 0.7
	// SpeedDisplayOffset is added to Speed wherever it is shown to a person.
	SpeedDisplayOffset = 0.4

	MinPitch     = -12
	MaxPitch     = 12
	DefaultPitch = 0

	centsPerSemitone = 100
	centsPerOctave   = 1200
)

// ControlSettings are the listener-facing knobs applied to every playback.
// Mutate them through the setters so invalid values never land.
type ControlSettings struct {
	Volume int     `json:"volume" yaml:"volume"`
	Speed  float64 `json:"speed" yaml:"speed"`
	Pitch  int     `json:"pitch" yaml:"pitch"`
}

// SettingsPatch carries a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	Volume *int     `json:"volume,omitempty"`
	Speed  *float64 `json:"speed,omitempty"`
	Pitch  *int     `json:"pitch,omitempty"`
}

// DefaultSettings returns volume 80, speed 0.7 and pitch 0.
func DefaultSettings() ControlSettings {
	return ControlSettings{
		Volume: DefaultVolume,
		Speed:  DefaultSpeed,
		Pitch:  DefaultPitch,
	}
}

// Validate checks every field.
func (s ControlSettings) Validate() error {
	if err := validateVolume(s.Volume); err != nil {
		return err
	}
	if err := validateSpeed(s.Speed); err != nil {
		return err
	}
	return validatePitch(s.Pitch)
}

// SetVolume sets the volume percentage.
func (s *ControlSettings) SetVolume(v int) error {
	if err := validateVolume(v); err != nil {
		return err
	}
	s.Volume = v
	return nil
}

// SetSpeed sets the playback-rate multiplier.
func (s *ControlSettings) SetSpeed(v float64) error {
	if err := validateSpeed(v); err != nil {
		return err
	}
	s.Speed = v
	return nil
}

// SetPitch sets the pitch offset in semitones.
func (s *ControlSettings) SetPitch(v int) error {
	if err := validatePitch(v); err != nil {
		return err
	}
	s.Pitch = v
	return nil
}

// Apply returns s with the patch applied. Nothing changes unless every
// patched field is valid.
func (s ControlSettings) Apply(p SettingsPatch) (ControlSettings, error) {
	next := s
	if p.Volume != nil {
		if err := next.SetVolume(*p.Volume); err != nil {
			return s, err
		}
	}
	if p.Speed != nil {
		if err := next.SetSpeed(*p.Speed); err != nil {
			return s, err
		}
	}
	if p.Pitch != nil {
		if err := next.SetPitch(*p.Pitch); err != nil {
			return s, err
		}
	}
	return next, nil
}

// DisplaySpeed is the speed as presented in the panel.
func (s ControlSettings) DisplaySpeed() float64 {
	return math.Round((s.Speed+SpeedDisplayOffset)*100) / 100
}

// Gain is the linear output gain, Volume/100.
func (s ControlSettings) Gain() float64 {
	return float64(s.Volume) / MaxVolume
}

// DetuneCents is the pitch offset in cents.
func (s ControlSettings) DetuneCents() float64 {
	return float64(s.Pitch * centsPerSemitone)
}

// PlaybackRate is the effective resampling ratio once detune is folded into
// speed: Speed * 2^(cents/1200).
func (s ControlSettings) PlaybackRate() float64 {
	return s.Speed * DetuneRatio(s.DetuneCents())
}

// DetuneRatio converts cents into a frequency ratio.
func DetuneRatio(cents float64) float64 {
	return math.Pow(2, cents/centsPerOctave)
}

func validateVolume(v int) error {
	if v < MinVolume || v > MaxVolume {
		return &ValidationError{Field: "volume", Value: v, Rule: "must be between 0 and 100"}
	}
	return nil
}

func validateSpeed(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &ValidationError{Field: "speed", Value: v, Rule: "must be a positive number"}
	}
	return nil
}

func validatePitch(v int) error {
	if v < MinPitch || v > MaxPitch {
		return &ValidationError{Field: "pitch", Value: v, Rule: "must be between -12 and 12"}
	}
	return nil
}

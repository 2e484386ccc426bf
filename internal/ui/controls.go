package ui

import "sync"

// Slider is an integer slider clamped to [Min, Max].
type Slider struct {
	mu       sync.Mutex
	min, max int
	value    int
	onChange []func(int)
}

// NewSlider creates a slider with the given range and initial value.
func NewSlider(min, max, value int) *Slider {
	s := &Slider{min: min, max: max}
	s.value = s.clamp(value)
	return s
}

func (s *Slider) clamp(v int) int {
	if v < s.min {
		return s.min
	}
	if v > s.max {
		return s.max
	}
	return v
}

// Value returns the current value.
func (s *Slider) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// OnValueChanged registers fn to run with the new value after a change.
func (s *Slider) OnValueChanged(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// SetValue clamps and stores v, notifying listeners if the value changed.
func (s *Slider) SetValue(v int) bool {
	s.mu.Lock()
	v = s.clamp(v)
	if v == s.value {
		s.mu.Unlock()
		return false
	}
	s.value = v
	fns := append([]func(int){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	return true
}

// SetValueSilently stores v without notifying listeners. Used when mirroring the scene.
func (s *Slider) SetValueSilently(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = s.clamp(v)
}

// Checkbox is a two-state toggle.
type Checkbox struct {
	mu      sync.Mutex
	checked bool
}

// Checked reports the current state.
func (c *Checkbox) Checked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checked
}

// SetChecked stores the state.
func (c *Checkbox) SetChecked(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked = v
}

// Window is the persisted tool window geometry.
type Window struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultWindow matches the tool's maximum size.
var DefaultWindow = Window{Width: 195, Height: 282}

package model

import (
	"encoding/json"
	"fmt"
	"os"

	"lunargp/internal/ast"
)

// State is the lander as seen by a control program, plus the flags the
// simulation keeps about it.
type State struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Vx         float64 `json:"vx"`
	Vy         float64 `json:"vy"`
	O          float64 `json:"o"`
	W          float64 `json:"w"`
	Fuel       float64 `json:"fuel"`
	Crashed    bool    `json:"crashed"`
	Landed     bool    `json:"landed"`
	Thrusting  bool    `json:"thrusting"`
	CrashSpeed float64 `json:"crash_speed"`
}

// NewState returns a lander at the origin with a full tank.
func NewState() State {
	return State{Fuel: 1.0}
}

// Reading implements ast.Readings.
func (s State) Reading(sensor ast.Sensor) float64 {
	switch sensor {
	case ast.X:
		return s.X
	case ast.Y:
		return s.Y
	case ast.Vx:
		return s.Vx
	case ast.Vy:
		return s.Vy
	case ast.O:
		return s.O
	case ast.W:
		return s.W
	case ast.Fuel:
		return s.Fuel
	}
	return 0
}

// Done reports whether the lander has touched the ground.
func (s State) Done() bool {
	return s.Crashed || s.Landed
}

// Trace is an ordered record of simulated states.
type Trace struct {
	States []State `json:"states"`
}

func NewTrace() *Trace {
	return &Trace{States: make([]State, 0, 200)}
}

func (t *Trace) Add(s State) {
	t.States = append(t.States, s)
}

func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.States)
}

// Save writes the states as a JSON array.
func (t *Trace) Save(path string) error {
	data, err := json.Marshal(t.States)
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trace %s: %w", path, err)
	}
	return nil
}

// LoadTrace reads a trace written by Save.
func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	var states []State
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("decode trace %s: %w", path, err)
	}
	return &Trace{States: states}, nil
}

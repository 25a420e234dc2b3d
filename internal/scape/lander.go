package scape

import (
	"errors"
	"fmt"
	"math"

	"lunargp/internal/ast"
	"lunargp/internal/model"
)

// World holds the physical constants of a lander simulation.
type World struct {
	AngularIncrement      float64 `yaml:"angular_increment"`
	GravitationalConstant float64 `yaml:"gravitational_constant"`
	ThrustConstant        float64 `yaml:"thrust_constant"`
	Tolerance             float64 `yaml:"tolerance"`
	FuelConsumption       float64 `yaml:"fuel_consumption"`
	MaxLandingSpeed       float64 `yaml:"max_landing_speed"`
}

func DefaultWorld() World {
	return World{
		AngularIncrement:      0.1,
		GravitationalConstant: -0.5,
		ThrustConstant:        0.6,
		Tolerance:             0.01,
		FuelConsumption:       0.01,
		MaxLandingSpeed:       10,
	}
}

func (w World) Validate() error {
	var errs []error
	if w.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("tolerance must be > 0: %g", w.Tolerance))
	}
	if w.MaxLandingSpeed < 0 {
		errs = append(errs, fmt.Errorf("max_landing_speed must be >= 0: %g", w.MaxLandingSpeed))
	}
	if w.FuelConsumption < 0 {
		errs = append(errs, fmt.Errorf("fuel_consumption must be >= 0: %g", w.FuelConsumption))
	}
	if w.GravitationalConstant >= 0 {
		errs = append(errs, fmt.Errorf("gravitational_constant must pull down (< 0): %g", w.GravitationalConstant))
	}
	return errors.Join(errs...)
}

// Step advances s by one frame under cmd. A lander that has crashed or
// landed does not move.
func Step(s model.State, cmd ast.Command, w World) model.State {
	if s.Done() {
		return s
	}

	switch cmd {
	case ast.Left:
		s.W += w.AngularIncrement
	case ast.Right:
		s.W -= w.AngularIncrement
	}
	s.O += s.W

	acceleration := 0.0
	if cmd == ast.Thrust && s.Fuel > 0 {
		acceleration = w.ThrustConstant
	}
	s.Vx += -acceleration * math.Sin(s.O)
	s.Vy += acceleration*math.Cos(s.O) + w.GravitationalConstant
	s.X += s.Vx
	s.Y += s.Vy

	if cmd == ast.Thrust {
		s.Fuel = math.Max(s.Fuel-w.FuelConsumption, 0)
	}

	down := s.Y < w.Tolerance
	upright := math.Abs(s.O) < w.Tolerance
	s.CrashSpeed = math.Abs(s.Vy)
	tooFast := s.CrashSpeed > w.MaxLandingSpeed
	s.Crashed = down && (!upright || tooFast)
	s.Landed = down && upright && !tooFast
	s.Thrusting = cmd == ast.Thrust
	return s
}

// NextProgram steps s with the command program chooses for it.
func NextProgram(s model.State, program *ast.Node, w World) model.State {
	return Step(s, ast.Evaluate(program, s), w)
}

// NextCondition steps s with Thrust when cond holds and Skip otherwise.
func NextCondition(s model.State, cond *ast.Node, w World) model.State {
	cmd := ast.Skip
	if ast.Truth(cond, s) {
		cmd = ast.Thrust
	}
	return Step(s, cmd, w)
}

// Controller returns the stepping function for a controller tree. Only
// Program and Condition trees can fly a lander.
func Controller(tree *ast.Node) (func(model.State, World) model.State, error) {
	switch tree.Kind() {
	case ast.KindProgram:
		return func(s model.State, w World) model.State { return NextProgram(s, tree, w) }, nil
	case ast.KindCondition:
		return func(s model.State, w World) model.State { return NextCondition(s, tree, w) }, nil
	}
	return nil, fmt.Errorf("%s tree cannot control a lander", tree.Kind())
}

package attack

import (
	"fmt"
	"math"

	"github.com/tsawler/go-advtrain/training"
)

// StepScheduler rescales attack strength by gamma every stepSize epochs. A
// gamma below 1 weakens the attack over time; a gamma above 1 strengthens it.
type StepScheduler struct {
	attack   StrengthAttack
	baseEps  float64
	stepSize int
	gamma    float64
	epoch    int
}

// NewStepScheduler creates a step attack scheduler around an attack
func NewStepScheduler(attack StrengthAttack, stepSize int, gamma float64) (*StepScheduler, error) {
	if attack == nil {
		return nil, fmt.Errorf("attack must not be nil")
	}
	if stepSize <= 0 {
		return nil, fmt.Errorf("step size must be positive, got %d", stepSize)
	}
	if gamma <= 0 {
		return nil, fmt.Errorf("gamma must be positive, got %f", gamma)
	}
	return &StepScheduler{
		attack:   attack,
		baseEps:  attack.Eps(),
		stepSize: stepSize,
		gamma:    gamma,
	}, nil
}

// Advance moves the schedule forward one epoch and returns the attack with its
// updated strength
func (s *StepScheduler) Advance() training.Attack {
	s.epoch++
	s.attack.SetEps(s.baseEps * math.Pow(s.gamma, float64(s.epoch/s.stepSize)))
	return s.attack
}

// ExponentialScheduler rescales attack strength by gamma every epoch
type ExponentialScheduler struct {
	attack  StrengthAttack
	baseEps float64
	gamma   float64
	epoch   int
}

// NewExponentialScheduler creates an exponential attack scheduler around an
// attack
func NewExponentialScheduler(attack StrengthAttack, gamma float64) (*ExponentialScheduler, error) {
	if attack == nil {
		return nil, fmt.Errorf("attack must not be nil")
	}
	if gamma <= 0 {
		return nil, fmt.Errorf("gamma must be positive, got %f", gamma)
	}
	return &ExponentialScheduler{attack: attack, baseEps: attack.Eps(), gamma: gamma}, nil
}

// Advance moves the schedule forward one epoch and returns the attack with its
// updated strength
func (s *ExponentialScheduler) Advance() training.Attack {
	s.epoch++
	s.attack.SetEps(s.baseEps * math.Pow(s.gamma, float64(s.epoch)))
	return s.attack
}

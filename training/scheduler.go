package training

import (
	"math"
)

// LRScheduler computes the learning rate for a given epoch from the base
// learning rate. Implementations are pure functions of the epoch except for
// PlateauScheduler, which tracks validation metrics.
type LRScheduler interface {
	GetLR(epoch int, baseLR float64) float64
	GetName() string
}

// StepLR reduces the learning rate by a multiplicative factor every stepSize
// epochs
type StepLR struct {
	StepSize int
	Gamma    float64
}

// NewStepLR creates a step learning rate scheduler
func NewStepLR(stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLR{StepSize: stepSize, Gamma: gamma}
}

func (s *StepLR) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch/s.StepSize))
}

func (s *StepLR) GetName() string {
	return "StepLR"
}

// ExponentialLR decays the learning rate by gamma every epoch
type ExponentialLR struct {
	Gamma float64
}

// NewExponentialLR creates an exponential learning rate scheduler
func NewExponentialLR(gamma float64) *ExponentialLR {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialLR{Gamma: gamma}
}

func (s *ExponentialLR) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch))
}

func (s *ExponentialLR) GetName() string {
	return "ExponentialLR"
}

// CosineAnnealingLR anneals the learning rate along a half cosine from baseLR
// down to EtaMin over TMax epochs
type CosineAnnealingLR struct {
	TMax   int
	EtaMin float64
}

// NewCosineAnnealingLR creates a cosine annealing scheduler
func NewCosineAnnealingLR(tMax int, etaMin float64) *CosineAnnealingLR {
	if tMax <= 0 {
		tMax = 100
	}
	if etaMin < 0 {
		etaMin = 0
	}
	return &CosineAnnealingLR{TMax: tMax, EtaMin: etaMin}
}

func (s *CosineAnnealingLR) GetLR(epoch int, baseLR float64) float64 {
	if epoch >= s.TMax {
		return s.EtaMin
	}
	return s.EtaMin + (baseLR-s.EtaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(s.TMax)))/2
}

func (s *CosineAnnealingLR) GetName() string {
	return "CosineAnnealingLR"
}

// PlateauScheduler reduces the learning rate when the validation loss stops
// improving. Unlike the pure schedulers it is stateful: Observe must be fed
// the validation metric each epoch.
type PlateauScheduler struct {
	Factor    float64
	Patience  int
	Threshold float64

	best        float64
	badEpochs   int
	currentLR   float64
	initialized bool
}

// NewPlateauScheduler creates a plateau-based scheduler
func NewPlateauScheduler(factor float64, patience int, threshold float64) *PlateauScheduler {
	if factor <= 0 || factor >= 1 {
		factor = 0.1
	}
	if patience <= 0 {
		patience = 10
	}
	if threshold < 0 {
		threshold = 1e-4
	}
	return &PlateauScheduler{Factor: factor, Patience: patience, Threshold: threshold}
}

// Observe feeds the scheduler a validation loss and returns the learning rate
// to use next
func (s *PlateauScheduler) Observe(metric, currentLR float64) float64 {
	if !s.initialized {
		s.best = metric
		s.currentLR = currentLR
		s.initialized = true
		return currentLR
	}

	if metric < s.best-s.Threshold {
		s.best = metric
		s.badEpochs = 0
	} else {
		s.badEpochs++
		if s.badEpochs >= s.Patience {
			s.currentLR *= s.Factor
			s.badEpochs = 0
		}
	}
	return s.currentLR
}

func (s *PlateauScheduler) GetLR(epoch int, baseLR float64) float64 {
	if s.initialized {
		return s.currentLR
	}
	return baseLR
}

func (s *PlateauScheduler) GetName() string {
	return "ReduceLROnPlateau"
}

// ConstantLR keeps the learning rate fixed
type ConstantLR struct{}

func (s *ConstantLR) GetLR(epoch int, baseLR float64) float64 {
	return baseLR
}

func (s *ConstantLR) GetName() string {
	return "ConstantLR"
}

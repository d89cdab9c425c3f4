package search

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Direction states whether larger or smaller objective scores are better
type Direction string

const (
	Maximize Direction = "maximize"
	Minimize Direction = "minimize"
)

// Objective runs one full training run for a resolved parameter set and
// returns its score. The report callback must be invoked once per epoch with
// the validation loss; it returns true when the trial should be aborted, in
// which case the objective should stop training and return.
type Objective func(ctx context.Context, params Params, report func(epoch int, value float64) bool) (float64, error)

// StudyConfig configures a study. Zero values fall back to maximize direction,
// a single trial, a seed-0 random sampler, no pruning and no logging.
type StudyConfig struct {
	Direction Direction
	NTrials   int
	Sampler   Sampler
	Pruner    Pruner
	Logger    *zap.Logger
}

// Result holds the outcome of a study
type Result struct {
	// BestParams is the flat leaf-name -> value set of the best trial.
	BestParams map[string]interface{}
	// BestScore is the best trial's objective score.
	BestScore float64
	// BestResolved is BestParams projected onto the space's nested defaults,
	// ready to instantiate a final training run.
	BestResolved Params
	// Trials is the number of trials run; Pruned counts those aborted early.
	Trials int
	Pruned int
}

// Study runs sequential trials over a search space and tracks the best
// parameter set. Trials never run concurrently; the best accumulator is only
// touched between trials.
type Study struct {
	space   Tree
	config  StudyConfig
	logger  *zap.Logger
	started bool
}

// NewStudy validates the space and creates a study over it
func NewStudy(space Tree, config StudyConfig) (*Study, error) {
	if err := Validate(space); err != nil {
		return nil, errors.Wrap(err, "invalid search space")
	}

	if config.Direction == "" {
		config.Direction = Maximize
	}
	if config.Direction != Maximize && config.Direction != Minimize {
		return nil, errors.Errorf("unknown direction %q", config.Direction)
	}
	if config.NTrials <= 0 {
		config.NTrials = 1
	}
	if config.Sampler == nil {
		config.Sampler = NewRandomSampler(0)
	}
	if config.Pruner == nil {
		config.Pruner = NopPruner{}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if dups := DuplicateLeafNames(space); len(dups) > 0 {
		logger.Warn("search space has duplicate leaf names; best-parameter projection overwrites all matches",
			zap.Strings("names", dups))
	}

	return &Study{space: space, config: config, logger: logger}, nil
}

// Optimize runs the configured number of trials and returns the best result.
// Trials aborted by the pruner never become the best trial. An objective error
// aborts the whole study.
func (s *Study) Optimize(ctx context.Context, objective Objective) (*Result, error) {
	if s.started {
		return nil, errors.New("study has already been run")
	}
	s.started = true

	result := &Result{}
	var haveBest bool

	for number := 0; number < s.config.NTrials; number++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "study cancelled")
		}

		trial := s.config.Sampler.Trial(number)
		params, err := ResolveWithTrial(s.space, trial)
		if err != nil {
			return nil, errors.Wrapf(err, "trial %d: failed to resolve search space", number)
		}

		pruned := false
		report := func(epoch int, value float64) bool {
			if s.config.Pruner.Report(number, epoch, value) {
				pruned = true
				return true
			}
			return false
		}

		score, err := objective(ctx, params, report)
		if err != nil {
			return nil, errors.Wrapf(err, "trial %d failed", number)
		}
		result.Trials++

		if pruned {
			result.Pruned++
			s.logger.Info("trial pruned", zap.Int("trial", number))
			continue
		}
		s.config.Pruner.Finish(number)

		if !haveBest || s.better(score, result.BestScore) {
			haveBest = true
			result.BestScore = score
			result.BestParams = trial.Params()
		}
		s.logger.Info("trial finished",
			zap.Int("trial", number),
			zap.Float64("score", score),
			zap.Float64("best", result.BestScore))
	}

	if !haveBest {
		return nil, errors.New("no trial ran to completion")
	}
	result.BestResolved = ApplyBest(CollectDefaults(s.space), result.BestParams)
	return result, nil
}

func (s *Study) better(score, best float64) bool {
	if s.config.Direction == Minimize {
		return score < best
	}
	return score > best
}

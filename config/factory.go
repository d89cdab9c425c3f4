package config

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tsawler/go-advtrain/attack"
	"github.com/tsawler/go-advtrain/tensor"
	"github.com/tsawler/go-advtrain/training"
)

// Run bundles the wired components of one experiment run
type Run struct {
	Trainer   *training.Trainer
	Model     training.Module
	Criterion training.Loss
	Optimizer training.Optimizer
	Config    *RunConfig
}

// Build wires a complete training run from the config's named components. The
// config must have been normalized (Load does this). logger may be nil.
func Build(cfg *RunConfig, logger *zap.Logger) (*Run, error) {
	model, err := buildModel(cfg.ModelName, NormalizeParams(cfg.ModelParams), cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build model")
	}
	criterion, err := buildCriterion(cfg.CriterionName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build criterion")
	}
	optimizer, err := buildOptimizer(cfg.OptimizerName, model.Parameters(), NormalizeParams(cfg.OptimizerParams))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build optimizer")
	}
	scheduler, err := buildScheduler(cfg.SchedulerName, NormalizeParams(cfg.SchedulerParams))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build scheduler")
	}

	trainerConfig := training.TrainerConfig{
		Epochs:             cfg.Epochs,
		EarlyStopPatience:  cfg.EarlyStopPatience,
		EarlyStopMinDelta:  cfg.EarlyStopMinDelta,
		PrintEvery:         cfg.PrintEvery,
		Multiclass:         cfg.Multiclass,
		RegeneratePerEpoch: cfg.RegeneratePerEpoch,
	}

	var trainer *training.Trainer
	if cfg.Disc {
		atk, err := buildAttack(cfg.AttackName, NormalizeParams(cfg.AttackParams), model, criterion, cfg.Seed)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build attack")
		}
		augmenter, err := training.NewDiscAugmenter(atk, cfg.Seed)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build augmenter")
		}
		attackScheduler, err := buildAttackScheduler(cfg.AttackSchedulerName, NormalizeParams(cfg.AttackSchedulerParams), atk)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build attack scheduler")
		}
		trainer, err = training.NewDiscTrainer(model, criterion, optimizer, scheduler,
			augmenter, attackScheduler, trainerConfig, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build trainer")
		}
	} else {
		trainer = training.NewTrainer(model, criterion, optimizer, scheduler, trainerConfig, logger)
	}

	return &Run{
		Trainer:   trainer,
		Model:     model,
		Criterion: criterion,
		Optimizer: optimizer,
		Config:    cfg,
	}, nil
}

func buildModel(name string, params ParamMap, seed int64) (training.Module, error) {
	switch name {
	case "Linear":
		inFeatures := params.Int("in_features", 0)
		if inFeatures <= 0 {
			return nil, errors.New("model_params.in_features is required")
		}
		return training.NewLinearClassifier(inFeatures, params.Int("num_outputs", 1), seed)
	}
	return nil, errors.Errorf("unknown model %q", name)
}

func buildCriterion(name string) (training.Loss, error) {
	switch name {
	case "BCELoss":
		return training.NewBCELoss(), nil
	case "CrossEntropyLoss":
		return training.NewCrossEntropyLoss(), nil
	}
	return nil, errors.Errorf("unknown criterion %q", name)
}

func buildOptimizer(name string, parameters []*tensor.Tensor, params ParamMap) (training.Optimizer, error) {
	switch name {
	case "Adam":
		return training.NewAdam(parameters,
			params.Float("lr", 0.001),
			params.Float("beta1", 0.9),
			params.Float("beta2", 0.999),
			params.Float("eps", 1e-8),
			params.Float("weight_decay", 0))
	case "SGD":
		return training.NewSGD(parameters,
			params.Float("lr", 0.01),
			params.Float("momentum", 0),
			params.Float("weight_decay", 0),
			params.Bool("nesterov", false))
	}
	return nil, errors.Errorf("unknown optimizer %q", name)
}

func buildScheduler(name string, params ParamMap) (training.LRScheduler, error) {
	switch name {
	case "None":
		return nil, nil
	case "StepLR":
		return training.NewStepLR(params.Int("step_size", 30), params.Float("gamma", 0.1)), nil
	case "ExponentialLR":
		return training.NewExponentialLR(params.Float("gamma", 0.95)), nil
	case "CosineAnnealingLR":
		return training.NewCosineAnnealingLR(params.Int("t_max", 100), params.Float("eta_min", 0)), nil
	case "ReduceLROnPlateau":
		return training.NewPlateauScheduler(
			params.Float("factor", 0.1),
			params.Int("patience", 10),
			params.Float("threshold", 1e-4)), nil
	case "ConstantLR":
		return &training.ConstantLR{}, nil
	}
	return nil, errors.Errorf("unknown scheduler %q", name)
}

func buildAttack(name string, params ParamMap, model training.Module, criterion training.Loss, seed int64) (attack.StrengthAttack, error) {
	switch name {
	case "FGSM":
		gm, ok := model.(attack.GradientModel)
		if !ok {
			return nil, errors.Errorf("model %T does not expose input gradients required by FGSM", model)
		}
		return attack.NewSignGradient(gm, criterion, params.Float("eps", 0.03))
	case "GaussianNoise":
		return attack.NewGaussianNoise(params.Float("eps", 0.03), seed)
	}
	return nil, errors.Errorf("unknown attack %q", name)
}

func buildAttackScheduler(name string, params ParamMap, atk attack.StrengthAttack) (training.AttackScheduler, error) {
	switch name {
	case "None":
		return nil, nil
	case "Step":
		return attack.NewStepScheduler(atk, params.Int("step_size", 10), params.Float("gamma", 0.5))
	case "Exponential":
		return attack.NewExponentialScheduler(atk, params.Float("gamma", 0.95))
	}
	return nil, errors.Errorf("unknown attack scheduler %q", name)
}

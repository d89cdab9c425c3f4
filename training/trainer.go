package training

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/tsawler/go-advtrain/tensor"
)

// TrainerConfig holds configuration for a training run
type TrainerConfig struct {
	Epochs            int
	EarlyStopPatience int     // <= 0 disables early stopping
	EarlyStopMinDelta float64 // slack for the early stopper
	PrintEvery        int     // emit a progress line every N epochs
	Multiclass        bool    // argmax predictions instead of rounded sigmoid output
	// RegeneratePerEpoch rebuilds the adversarial loaders after every attack
	// scheduler advance instead of only once before the loop.
	RegeneratePerEpoch bool
}

// EpochCallback is invoked after each epoch with the epoch index and the
// validation loss. Returning true aborts the run at the epoch boundary; this
// is the hook a trial pruner plugs into.
type EpochCallback func(epoch int, validLoss float64) bool

// Trainer orchestrates the epoch loop: forward/backward passes, metric
// aggregation, learning rate and attack scheduling, early stopping. A Trainer
// is single-use: Train may only be called once.
type Trainer struct {
	model           Module
	criterion       Loss
	optimizer       Optimizer
	scheduler       LRScheduler
	estimator       Estimator
	augmenter       *DiscAugmenter
	attackScheduler AttackScheduler
	config          TrainerConfig
	logger          *zap.Logger
	baseLR          float64
	history         *History
	trained         bool
}

// NewTrainer creates a trainer for plain supervised classification. scheduler
// and logger may be nil.
func NewTrainer(model Module, criterion Loss, optimizer Optimizer, scheduler LRScheduler, config TrainerConfig, logger *zap.Logger) *Trainer {
	if config.Epochs <= 0 {
		config.Epochs = 30
	}
	if config.PrintEvery <= 0 {
		config.PrintEvery = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		model:     model,
		criterion: criterion,
		optimizer: optimizer,
		scheduler: scheduler,
		estimator: NewClassifierEstimator(config.Multiclass),
		config:    config,
		logger:    logger,
		baseLR:    optimizer.GetLR(),
	}
}

// NewDiscTrainer creates a trainer that trains a discriminator between clean
// and adversarially-perturbed samples. The augmenter relabels both loaders
// before the epoch loop; the attack scheduler, when non-nil, is advanced each
// epoch and its returned attack replaces the augmenter's active one.
func NewDiscTrainer(model Module, criterion Loss, optimizer Optimizer, scheduler LRScheduler,
	augmenter *DiscAugmenter, attackScheduler AttackScheduler, config TrainerConfig, logger *zap.Logger) (*Trainer, error) {
	if augmenter == nil {
		return nil, fmt.Errorf("discriminator training requires an augmenter")
	}
	t := NewTrainer(model, criterion, optimizer, scheduler, config, logger)
	t.augmenter = augmenter
	t.attackScheduler = attackScheduler
	return t, nil
}

// History returns the per-epoch metric log. It is populated by Train.
func (t *Trainer) History() *History {
	return t.history
}

// Estimator returns the metric estimator in use
func (t *Trainer) Estimator() Estimator {
	return t.estimator
}

// Train runs the full training loop and returns the validation metrics of the
// last completed epoch, keyed by metric name. Cancellation via ctx and abort
// via onEpoch are both checked at epoch boundaries only; onEpoch may be nil.
func (t *Trainer) Train(ctx context.Context, trainLoader, validLoader *DataLoader, onEpoch EpochCallback) (map[string]float64, error) {
	if t.trained {
		return nil, fmt.Errorf("trainer already consumed: construct a new Trainer for another run")
	}
	t.trained = true

	// Regeneration always starts from the clean loaders the caller passed in,
	// never from an already-augmented one: each adversarial dataset must be
	// exactly twice the clean dataset with a 50/50 label split.
	cleanTrain, cleanValid := trainLoader, validLoader

	var err error
	if t.augmenter != nil {
		trainLoader, err = t.augmenter.GenerateAdversarialData(cleanTrain)
		if err != nil {
			return nil, fmt.Errorf("failed to generate adversarial training data: %v", err)
		}
		validLoader, err = t.augmenter.GenerateAdversarialData(cleanValid)
		if err != nil {
			return nil, fmt.Errorf("failed to generate adversarial validation data: %v", err)
		}
	}

	if err := t.pretrainEmbedding(trainLoader); err != nil {
		return nil, err
	}

	names := append([]string{"loss"}, t.estimator.Names()...)
	t.history = NewHistory(names)

	var stopper *EarlyStopper
	if t.config.EarlyStopPatience > 0 {
		stopper = NewEarlyStopper(t.config.EarlyStopPatience, t.config.EarlyStopMinDelta)
	}

	var last map[string]float64
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return last, fmt.Errorf("training cancelled at epoch %d: %v", epoch, err)
		}

		trainVals, err := t.trainStep(trainLoader)
		if err != nil {
			return last, fmt.Errorf("training epoch %d failed: %v", epoch, err)
		}
		if err := t.history.Append(SplitTrain, trainVals); err != nil {
			return last, err
		}

		testVals, err := t.validStep(validLoader)
		if err != nil {
			return last, fmt.Errorf("validation epoch %d failed: %v", epoch, err)
		}
		if err := t.history.Append(SplitTest, testVals); err != nil {
			return last, err
		}

		trainMetrics := zipMetrics(names, trainVals)
		testMetrics := zipMetrics(names, testVals)
		last = testMetrics

		if epoch%t.config.PrintEvery == 0 {
			t.logger.Info("epoch summary",
				zap.Int("epoch", epoch+1),
				zap.Float64("train_loss", trainMetrics["loss"]),
				zap.Float64("train_accuracy", trainMetrics["accuracy"]),
				zap.Float64("test_loss", testMetrics["loss"]),
				zap.Float64("test_accuracy", testMetrics["accuracy"]),
				zap.Float64("test_f1", testMetrics["f1"]),
				zap.Float64("balance_pred", testMetrics["balance_pred"]),
			)
		}

		t.stepScheduler(epoch, testMetrics["loss"])

		if t.attackScheduler != nil && t.augmenter != nil {
			t.augmenter.SetAttack(t.attackScheduler.Advance())
			if t.config.RegeneratePerEpoch {
				trainLoader, validLoader, err = t.regenerate(cleanTrain, cleanValid)
				if err != nil {
					return last, err
				}
			}
		}

		if onEpoch != nil && onEpoch(epoch, testMetrics["loss"]) {
			t.logger.Info("run aborted by epoch callback", zap.Int("epoch", epoch+1))
			break
		}

		if stopper != nil && stopper.Observe(testMetrics["loss"]) {
			t.logger.Info("early stopping triggered",
				zap.Int("epoch", epoch+1),
				zap.Float64("best_loss", stopper.Best()),
			)
			break
		}
	}

	return last, nil
}

// pretrainEmbedding runs the model's self-supervised phase, when declared, on
// the full training feature tensor before the supervised loop starts.
func (t *Trainer) pretrainEmbedding(trainLoader *DataLoader) error {
	pretrainer, ok := t.model.(EmbeddingPretrainer)
	if !ok || !pretrainer.SelfSupervised() {
		return nil
	}

	td, ok := trainLoader.Dataset().(*TensorDataset)
	if !ok {
		return fmt.Errorf("self-supervised pretraining requires a TensorDataset, got %T", trainLoader.Dataset())
	}

	t.logger.Info("training self-supervised embedding")
	if err := pretrainer.TrainEmbedding(td.Features(), true); err != nil {
		return fmt.Errorf("embedding pretraining failed: %v", err)
	}
	t.logger.Info("self-supervised embedding finished")
	return nil
}

func (t *Trainer) stepScheduler(epoch int, validLoss float64) {
	if t.scheduler == nil {
		return
	}
	var lr float64
	if plateau, ok := t.scheduler.(*PlateauScheduler); ok {
		lr = plateau.Observe(validLoss, t.optimizer.GetLR())
	} else {
		lr = t.scheduler.GetLR(epoch+1, t.baseLR)
	}
	t.optimizer.SetLR(lr)
}

// regenerate rebuilds both adversarial loaders from the clean source loaders
// under the augmenter's current attack.
func (t *Trainer) regenerate(cleanTrain, cleanValid *DataLoader) (*DataLoader, *DataLoader, error) {
	newTrain, err := t.augmenter.GenerateAdversarialData(cleanTrain)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to regenerate adversarial training data: %v", err)
	}
	newValid, err := t.augmenter.GenerateAdversarialData(cleanValid)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to regenerate adversarial validation data: %v", err)
	}
	return newTrain, newValid, nil
}

// trainStep runs one training epoch and returns [mean loss, metrics...].
// The mean loss divides the accumulated per-batch loss by the batch count;
// classification metrics are computed from the label vectors accumulated over
// the whole epoch so that uneven batch sizes do not bias them.
func (t *Trainer) trainStep(loader *DataLoader) ([]float64, error) {
	t.model.Train()

	var lossSum float64
	var batches int
	var yTrue, yPred []float64

	loader.Reset()
	for {
		batch, err := loader.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}

		t.optimizer.ZeroGrad()

		output, err := t.model.Forward(batch.Data)
		if err != nil {
			return nil, fmt.Errorf("forward pass failed: %v", err)
		}
		if !tensor.IsFinite(output) {
			// Diverged runs surface here; the values still propagate so the
			// loss and early stopper see them.
			t.logger.Warn("model output contains non-finite values", zap.Int("batch", batches))
		}

		loss, err := t.criterion.Forward(output, batch.Labels)
		if err != nil {
			return nil, fmt.Errorf("loss computation failed: %v", err)
		}

		grad, err := t.criterion.Backward(output, batch.Labels)
		if err != nil {
			return nil, fmt.Errorf("loss gradient failed: %v", err)
		}
		if err := t.model.Backward(grad); err != nil {
			return nil, fmt.Errorf("backward pass failed: %v", err)
		}
		if err := t.optimizer.Step(); err != nil {
			return nil, fmt.Errorf("optimizer step failed: %v", err)
		}

		lossSum += loss
		batches++

		preds, err := predictions(output, t.config.Multiclass)
		if err != nil {
			return nil, err
		}
		yPred = append(yPred, preds...)
		yTrue = append(yTrue, batch.Labels.Float64s()...)
	}

	if batches == 0 {
		return nil, fmt.Errorf("training loader yielded no batches")
	}

	meanLoss := lossSum / float64(batches)
	return append([]float64{meanLoss}, t.estimator.Estimate(yTrue, yPred)...), nil
}

// validStep runs one validation epoch: identical protocol with the model in
// evaluation mode and no gradient or optimizer work.
func (t *Trainer) validStep(loader *DataLoader) ([]float64, error) {
	t.model.Eval()

	var lossSum float64
	var batches int
	var yTrue, yPred []float64

	loader.Reset()
	for {
		batch, err := loader.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}

		output, err := t.model.Forward(batch.Data)
		if err != nil {
			return nil, fmt.Errorf("validation forward pass failed: %v", err)
		}

		loss, err := t.criterion.Forward(output, batch.Labels)
		if err != nil {
			return nil, fmt.Errorf("validation loss computation failed: %v", err)
		}

		lossSum += loss
		batches++

		preds, err := predictions(output, t.config.Multiclass)
		if err != nil {
			return nil, err
		}
		yPred = append(yPred, preds...)
		yTrue = append(yTrue, batch.Labels.Float64s()...)
	}

	if batches == 0 {
		return nil, fmt.Errorf("validation loader yielded no batches")
	}

	meanLoss := lossSum / float64(batches)
	return append([]float64{meanLoss}, t.estimator.Estimate(yTrue, yPred)...), nil
}

// predictions converts model output into hard labels: per-row argmax for
// multiclass output, rounded probabilities otherwise
func predictions(output *tensor.Tensor, multiclass bool) ([]float64, error) {
	if multiclass {
		classes, err := tensor.ArgMaxRows(output)
		if err != nil {
			return nil, err
		}
		preds := make([]float64, len(classes))
		for i, c := range classes {
			preds[i] = float64(c)
		}
		return preds, nil
	}

	probs := output.Float64s()
	preds := make([]float64, len(probs))
	for i, p := range probs {
		preds[i] = math.Round(p)
	}
	return preds, nil
}

func zipMetrics(names []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = values[i]
	}
	return out
}

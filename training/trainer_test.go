package training

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tsawler/go-advtrain/tensor"
)

// constantModel emits a fixed probability for every sample
type constantModel struct {
	training bool
	prob     float32
}

func (m *constantModel) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	batch := input.Shape[0]
	data := make([]float32, batch)
	for i := range data {
		data[i] = m.prob
	}
	return tensor.NewTensor([]int{batch, 1}, tensor.Float32, data)
}

func (m *constantModel) Backward(gradOutput *tensor.Tensor) error { return nil }
func (m *constantModel) Parameters() []*tensor.Tensor             { return nil }
func (m *constantModel) Train()                                   { m.training = true }
func (m *constantModel) Eval()                                    { m.training = false }
func (m *constantModel) IsTraining() bool                         { return m.training }

// scriptedCriterion returns a fixed loss in training mode and replays a
// scripted sequence of validation losses in eval mode
type scriptedCriterion struct {
	model       Module
	trainLoss   float64
	validLosses []float64
	next        int
}

func (c *scriptedCriterion) Forward(predicted, target *tensor.Tensor) (float64, error) {
	if c.model.IsTraining() {
		return c.trainLoss, nil
	}
	loss := c.validLosses[len(c.validLosses)-1]
	if c.next < len(c.validLosses) {
		loss = c.validLosses[c.next]
		c.next++
	}
	return loss, nil
}

func (c *scriptedCriterion) Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.Zeros(predicted.Shape, tensor.Float32)
}

// nopOptimizer tracks learning rate only
type nopOptimizer struct {
	lr float64
}

func (o *nopOptimizer) Step() error      { return nil }
func (o *nopOptimizer) ZeroGrad()        {}
func (o *nopOptimizer) GetLR() float64   { return o.lr }
func (o *nopOptimizer) SetLR(lr float64) { o.lr = lr }

func scriptedTrainer(t *testing.T, validLosses []float64, config TrainerConfig) (*Trainer, *DataLoader) {
	t.Helper()

	model := &constantModel{prob: 0.5}
	criterion := &scriptedCriterion{model: model, trainLoss: 0.5, validLosses: validLosses}
	trainer := NewTrainer(model, criterion, &nopOptimizer{lr: 0.01}, nil, config, nil)

	ds := makeDataset(t, 8, 2)
	loader, err := NewDataLoader(ds, 8, false, 0)
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	return trainer, loader
}

func TestTrainStopsEarlyOnValidationPlateau(t *testing.T) {
	// Minimum at epoch 2, then three consecutive non-improving epochs:
	// the run must stop after epoch 5 and report that epoch's metrics.
	losses := []float64{1.0, 0.9, 0.95, 0.96, 0.97, 0.5, 0.4}
	trainer, loader := scriptedTrainer(t, losses, TrainerConfig{
		Epochs:            10,
		EarlyStopPatience: 3,
	})

	last, err := trainer.Train(context.Background(), loader, loader, nil)
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	if got := trainer.History().Epochs(SplitTest); got != 5 {
		t.Errorf("expected 5 completed epochs, got %d", got)
	}
	if last["loss"] != 0.97 {
		t.Errorf("expected metrics from the stopping epoch (loss 0.97), got %f", last["loss"])
	}
}

func TestTrainRunsFullBudgetWithoutEarlyStopping(t *testing.T) {
	losses := []float64{1.0, 0.9, 0.95, 0.96, 0.97}
	trainer, loader := scriptedTrainer(t, losses, TrainerConfig{Epochs: 4})

	if _, err := trainer.Train(context.Background(), loader, loader, nil); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if got := trainer.History().Epochs(SplitTest); got != 4 {
		t.Errorf("expected all 4 epochs to run, got %d", got)
	}
}

func TestTrainIsSingleUse(t *testing.T) {
	trainer, loader := scriptedTrainer(t, []float64{1.0}, TrainerConfig{Epochs: 1})

	if _, err := trainer.Train(context.Background(), loader, loader, nil); err != nil {
		t.Fatalf("first train failed: %v", err)
	}
	if _, err := trainer.Train(context.Background(), loader, loader, nil); err == nil {
		t.Error("expected error on second Train call")
	}
}

func TestTrainAbortsOnEpochCallback(t *testing.T) {
	trainer, loader := scriptedTrainer(t, []float64{1.0, 0.9, 0.8}, TrainerConfig{Epochs: 10})

	last, err := trainer.Train(context.Background(), loader, loader, func(epoch int, validLoss float64) bool {
		return epoch == 2
	})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	if got := trainer.History().Epochs(SplitTest); got != 3 {
		t.Errorf("expected abort after 3 epochs, got %d", got)
	}
	if last["loss"] != 0.8 {
		t.Errorf("expected last epoch metrics, got loss %f", last["loss"])
	}
}

func TestTrainHonorsContextCancellation(t *testing.T) {
	trainer, loader := scriptedTrainer(t, []float64{1.0}, TrainerConfig{Epochs: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := trainer.Train(ctx, loader, loader, nil); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestTrainRecordsBothSplits(t *testing.T) {
	trainer, loader := scriptedTrainer(t, []float64{1.0, 0.9}, TrainerConfig{Epochs: 2})

	if _, err := trainer.Train(context.Background(), loader, loader, nil); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	h := trainer.History()
	for _, split := range []string{SplitTrain, SplitTest} {
		if h.Epochs(split) != 2 {
			t.Errorf("split %s: expected 2 epochs, got %d", split, h.Epochs(split))
		}
		for _, name := range h.Names() {
			if len(h.Metric(split, name)) != 2 {
				t.Errorf("split %s metric %s: expected 2 values", split, name)
			}
		}
	}

	trainLoss := h.Metric(SplitTrain, "loss")
	if trainLoss[0] != 0.5 || trainLoss[1] != 0.5 {
		t.Errorf("expected scripted train loss 0.5, got %v", trainLoss)
	}
}

// pretrainModel is a constantModel that declares a self-supervised phase
type pretrainModel struct {
	constantModel
	pretrained    bool
	featuresShape []int
}

func (m *pretrainModel) SelfSupervised() bool { return true }

func (m *pretrainModel) TrainEmbedding(features *tensor.Tensor, verbose bool) error {
	m.pretrained = true
	m.featuresShape = features.Shape
	return nil
}

func TestTrainRunsEmbeddingPretrainingOnce(t *testing.T) {
	model := &pretrainModel{constantModel: constantModel{prob: 0.5}}
	criterion := &scriptedCriterion{model: model, trainLoss: 0.5, validLosses: []float64{1.0, 0.9}}
	trainer := NewTrainer(model, criterion, &nopOptimizer{lr: 0.01}, nil, TrainerConfig{Epochs: 2}, nil)

	ds := makeDataset(t, 8, 2)
	loader, _ := NewDataLoader(ds, 4, false, 0)

	if _, err := trainer.Train(context.Background(), loader, loader, nil); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	if !model.pretrained {
		t.Error("expected embedding pretraining to run")
	}
	if !tensor.ShapeEqual(model.featuresShape, []int{8, 2}) {
		t.Errorf("expected full training feature tensor, got shape %v", model.featuresShape)
	}
}

// recordingAttack clones features unchanged and records the size of every
// dataset it is asked to perturb
type recordingAttack struct {
	sizes []int
}

func (a *recordingAttack) ApplyAttack(loader *DataLoader) (*tensor.Tensor, error) {
	td := loader.Dataset().(*TensorDataset)
	a.sizes = append(a.sizes, td.Len())
	return td.Features().Clone()
}

// fixedAttackScheduler keeps returning the same attack
type fixedAttackScheduler struct {
	attack Attack
}

func (s *fixedAttackScheduler) Advance() Attack { return s.attack }

func TestRegeneratePerEpochStartsFromCleanLoaders(t *testing.T) {
	model := &constantModel{prob: 0.5}
	criterion := &scriptedCriterion{model: model, trainLoss: 0.5, validLosses: []float64{1.0, 0.9, 0.8}}
	atk := &recordingAttack{}
	aug, err := NewDiscAugmenter(atk, 0)
	if err != nil {
		t.Fatalf("failed to create augmenter: %v", err)
	}

	trainer, err := NewDiscTrainer(model, criterion, &nopOptimizer{lr: 0.01}, nil,
		aug, &fixedAttackScheduler{attack: atk},
		TrainerConfig{Epochs: 3, RegeneratePerEpoch: true}, nil)
	if err != nil {
		t.Fatalf("failed to create trainer: %v", err)
	}

	ds := makeDataset(t, 8, 2)
	loader, err := NewDataLoader(ds, 8, false, 0)
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}

	if _, err := trainer.Train(context.Background(), loader, loader, nil); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	// Pre-loop augmentation plus one regeneration per epoch, train and valid
	// sides each time. Every invocation must see the original 8-sample
	// dataset; growing sizes would mean loaders are re-augmented on top of
	// already-augmented ones.
	if len(atk.sizes) != 8 {
		t.Fatalf("expected 8 attack invocations, got %d (%v)", len(atk.sizes), atk.sizes)
	}
	for i, n := range atk.sizes {
		if n != 8 {
			t.Errorf("attack invocation %d saw a dataset of %d samples, want 8 (%v)", i, n, atk.sizes)
		}
	}
}

// batchLossCriterion replays a scripted per-batch loss sequence in training
// mode and returns a fixed loss in eval mode
type batchLossCriterion struct {
	model       Module
	trainLosses []float64
	next        int
	validLoss   float64
}

func (c *batchLossCriterion) Forward(predicted, target *tensor.Tensor) (float64, error) {
	if !c.model.IsTraining() {
		return c.validLoss, nil
	}
	loss := c.trainLosses[c.next%len(c.trainLosses)]
	c.next++
	return loss, nil
}

func (c *batchLossCriterion) Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.Zeros(predicted.Shape, tensor.Float32)
}

func TestEpochLossIsMeanOverBatches(t *testing.T) {
	model := &constantModel{prob: 0.5}
	criterion := &batchLossCriterion{model: model, trainLosses: []float64{0.9, 0.3}, validLoss: 1.0}
	trainer := NewTrainer(model, criterion, &nopOptimizer{lr: 0.01}, nil, TrainerConfig{Epochs: 1}, nil)

	// Six samples with batch size four yield a full batch and a two-sample
	// remainder. The epoch loss averages over the two batches, not over the
	// six samples.
	ds := makeDataset(t, 6, 2)
	loader, err := NewDataLoader(ds, 4, false, 0)
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}

	if _, err := trainer.Train(context.Background(), loader, loader, nil); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	got := trainer.History().Metric(SplitTrain, "loss")[0]
	want := (0.9 + 0.3) / 2
	if diff := got - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("expected epoch loss %f, got %f", want, got)
	}
}

func TestTrainWarnsOnNonFiniteModelOutput(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	model := &constantModel{prob: float32(math.NaN())}
	criterion := &scriptedCriterion{model: model, trainLoss: 0.5, validLosses: []float64{1.0}}
	trainer := NewTrainer(model, criterion, &nopOptimizer{lr: 0.01}, nil, TrainerConfig{Epochs: 1}, zap.New(core))

	ds := makeDataset(t, 4, 2)
	loader, _ := NewDataLoader(ds, 4, false, 0)

	if _, err := trainer.Train(context.Background(), loader, loader, nil); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	if logs.FilterMessage("model output contains non-finite values").Len() == 0 {
		t.Error("expected a warning about non-finite model output")
	}
}

func TestSchedulerAdjustsLearningRate(t *testing.T) {
	model := &constantModel{prob: 0.5}
	criterion := &scriptedCriterion{model: model, trainLoss: 0.5, validLosses: []float64{1.0, 0.9, 0.8}}
	opt := &nopOptimizer{lr: 0.1}
	trainer := NewTrainer(model, criterion, opt, NewExponentialLR(0.5), TrainerConfig{Epochs: 3}, nil)

	ds := makeDataset(t, 4, 2)
	loader, _ := NewDataLoader(ds, 4, false, 0)

	if _, err := trainer.Train(context.Background(), loader, loader, nil); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	// After three epochs the scheduler has applied gamma^3.
	want := 0.1 * 0.5 * 0.5 * 0.5
	if diff := opt.GetLR() - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("expected learning rate %f after scheduling, got %f", want, opt.GetLR())
	}
}

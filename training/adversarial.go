package training

import (
	"fmt"

	"github.com/tsawler/go-advtrain/tensor"
)

// Attack perturbs the features behind a data loader and returns the perturbed
// feature tensor. The output shape must exactly match the loader's feature
// tensor shape.
type Attack interface {
	ApplyAttack(loader *DataLoader) (*tensor.Tensor, error)
}

// AttackScheduler adjusts attack strength across epochs. Advance is called
// once per epoch and returns the attack to use from then on, which may be a
// reconfigured replacement.
type AttackScheduler interface {
	Advance() Attack
}

// DiscAugmenter turns a classification loader into a discriminator training
// loader: original samples keep label 0, attack-perturbed copies get label 1.
// This frames adversarial detection as binary classification over clean vs.
// perturbed inputs.
type DiscAugmenter struct {
	attack Attack
	seed   int64
}

// NewDiscAugmenter creates an augmenter around an attack. The seed drives the
// shuffle of the generated loaders.
func NewDiscAugmenter(attack Attack, seed int64) (*DiscAugmenter, error) {
	if attack == nil {
		return nil, fmt.Errorf("attack must not be nil")
	}
	return &DiscAugmenter{attack: attack, seed: seed}, nil
}

// SetAttack replaces the active attack, typically with one returned by an
// AttackScheduler
func (d *DiscAugmenter) SetAttack(attack Attack) {
	if attack != nil {
		d.attack = attack
	}
}

// Attack returns the active attack
func (d *DiscAugmenter) Attack() Attack {
	return d.attack
}

// GenerateAdversarialData builds a shuffled loader over the concatenation of
// clean samples (label 0) and perturbed samples (label 1). A shape mismatch
// between the clean and perturbed feature tensors signals a malformed attack
// implementation and is fatal.
func (d *DiscAugmenter) GenerateAdversarialData(loader *DataLoader) (*DataLoader, error) {
	td, ok := loader.Dataset().(*TensorDataset)
	if !ok {
		return nil, fmt.Errorf("adversarial augmentation requires a TensorDataset, got %T", loader.Dataset())
	}

	orig := td.Features()
	perturbed, err := d.attack.ApplyAttack(loader)
	if err != nil {
		return nil, fmt.Errorf("attack failed: %v", err)
	}
	if !tensor.ShapeEqual(orig.Shape, perturbed.Shape) {
		return nil, fmt.Errorf("attack output shape %v does not match input shape %v: malformed attack implementation",
			perturbed.Shape, orig.Shape)
	}

	labelShape := append([]int(nil), td.Labels().Shape...)
	zeros, err := tensor.Zeros(labelShape, td.Labels().DType)
	if err != nil {
		return nil, err
	}
	ones, err := tensor.Full(labelShape, td.Labels().DType, 1)
	if err != nil {
		return nil, err
	}

	features, err := tensor.Concat(orig, perturbed)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate features: %v", err)
	}
	labels, err := tensor.Concat(zeros, ones)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate labels: %v", err)
	}

	dataset, err := NewTensorDataset(features, labels)
	if err != nil {
		return nil, err
	}
	return NewDataLoader(dataset, loader.BatchSize(), true, d.seed)
}

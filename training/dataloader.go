package training

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/tsawler/go-advtrain/tensor"
)

// Dataset interface defines methods that all datasets must implement
type Dataset interface {
	Len() int                                                           // Total number of samples
	Get(idx int) (data *tensor.Tensor, label *tensor.Tensor, err error) // Returns a single sample
}

// TensorDataset holds a full feature tensor and a full label tensor, both
// indexed by their first dimension. It is the dataset form required by the
// adversarial augmentation path and by self-supervised pretraining, which
// both need whole-tensor access.
type TensorDataset struct {
	features *tensor.Tensor
	labels   *tensor.Tensor
}

// NewTensorDataset creates a dataset over full feature/label tensors
func NewTensorDataset(features, labels *tensor.Tensor) (*TensorDataset, error) {
	if features.Shape[0] != labels.Shape[0] {
		return nil, fmt.Errorf("features and labels must agree on sample count: got %d and %d",
			features.Shape[0], labels.Shape[0])
	}
	return &TensorDataset{features: features, labels: labels}, nil
}

// Len returns the number of samples in the dataset
func (ds *TensorDataset) Len() int {
	return ds.features.Shape[0]
}

// Get returns a single sample as row slices of the underlying tensors
func (ds *TensorDataset) Get(idx int) (*tensor.Tensor, *tensor.Tensor, error) {
	data, err := tensor.SliceRow(ds.features, idx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to slice features: %v", err)
	}
	label, err := tensor.SliceRow(ds.labels, idx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to slice labels: %v", err)
	}
	return data, label, nil
}

// Features returns the full feature tensor
func (ds *TensorDataset) Features() *tensor.Tensor {
	return ds.features
}

// Labels returns the full label tensor
func (ds *TensorDataset) Labels() *tensor.Tensor {
	return ds.labels
}

// Batch represents a batch of data and labels
type Batch struct {
	Data   *tensor.Tensor
	Labels *tensor.Tensor
}

// DataLoader provides batching and seeded shuffling over a Dataset. Shuffle
// order is driven by an explicit per-loader RNG rather than the process-wide
// source, so runs are reproducible from their configured seed.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	seed      int64
	rng       *rand.Rand
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a new DataLoader
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, seed int64) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		seed:      seed,
		rng:       rand.New(rand.NewSource(seed)),
		indices:   indices,
	}, nil
}

// Dataset returns the wrapped dataset
func (dl *DataLoader) Dataset() Dataset {
	return dl.dataset
}

// BatchSize returns the configured batch size
func (dl *DataLoader) BatchSize() int {
	return dl.batchSize
}

// Seed returns the shuffle seed the loader was constructed with
func (dl *DataLoader) Seed() int64 {
	return dl.seed
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset resets the data loader for a new epoch
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0

	if dl.shuffle {
		for i := len(dl.indices) - 1; i > 0; i-- {
			j := dl.rng.Intn(i + 1)
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		}
	}
}

// Next returns the next batch, or nil when the epoch is complete
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	if dl.position >= len(dl.indices) {
		return nil, nil
	}

	batchEnd := dl.position + dl.batchSize
	if batchEnd > len(dl.indices) {
		batchEnd = len(dl.indices)
	}

	batchIndices := dl.indices[dl.position:batchEnd]
	dl.position = batchEnd

	batch, err := dl.loadBatch(batchIndices)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %v", err)
	}
	return batch, nil
}

// HasNext returns true if there are more batches in the current epoch
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

// loadBatch stacks individual samples into batched tensors
func (dl *DataLoader) loadBatch(indices []int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty batch indices")
	}

	firstData, firstLabel, err := dl.dataset.Get(indices[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %v", indices[0], err)
	}

	batchSize := len(indices)
	dataShape := append([]int{batchSize}, firstData.Shape...)
	labelShape := append([]int{batchSize}, firstLabel.Shape...)

	batchData, err := tensor.Zeros(dataShape, firstData.DType)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch data tensor: %v", err)
	}
	batchLabels, err := tensor.Zeros(labelShape, firstLabel.DType)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch labels tensor: %v", err)
	}

	for i, idx := range indices {
		data, label, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}
		if err := copyInto(batchData, data, i); err != nil {
			return nil, fmt.Errorf("failed to copy data for sample %d: %v", i, err)
		}
		if err := copyInto(batchLabels, label, i); err != nil {
			return nil, fmt.Errorf("failed to copy label for sample %d: %v", i, err)
		}
	}

	return &Batch{Data: batchData, Labels: batchLabels}, nil
}

// copyInto copies a sample tensor into a specific position in a batch tensor
func copyInto(batchTensor, sampleTensor *tensor.Tensor, batchIndex int) error {
	if batchTensor.DType != sampleTensor.DType {
		return fmt.Errorf("dtype mismatch: batch %s, sample %s", batchTensor.DType, sampleTensor.DType)
	}

	sampleSize := sampleTensor.NumElems
	offset := batchIndex * sampleSize

	switch batchTensor.DType {
	case tensor.Float32:
		copy(batchTensor.Data.([]float32)[offset:offset+sampleSize], sampleTensor.Data.([]float32))
	case tensor.Int32:
		copy(batchTensor.Data.([]int32)[offset:offset+sampleSize], sampleTensor.Data.([]int32))
	default:
		return fmt.Errorf("unsupported dtype for batch copying: %s", batchTensor.DType)
	}
	return nil
}

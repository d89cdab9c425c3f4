package config

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/tsawler/go-advtrain/tensor"
	"github.com/tsawler/go-advtrain/training"
)

// LoadCSVDataset reads a dataset where each row is one sample: the first
// column is the class label and the remaining columns are the feature
// sequence. All rows must have the same width.
func LoadCSVDataset(path string) (*training.TensorDataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open dataset file")
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse dataset file")
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("dataset %s is empty", path)
	}
	width := len(rows[0])
	if width < 2 {
		return nil, errors.Errorf("dataset %s needs a label column and at least one feature column", path)
	}

	features := make([]float32, 0, len(rows)*(width-1))
	labels := make([]float32, 0, len(rows))
	for i, row := range rows {
		if len(row) != width {
			return nil, errors.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
		label, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: bad label %q", i, row[0])
		}
		labels = append(labels, float32(label))

		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %d: bad value %q", i, j+1, cell)
			}
			features = append(features, float32(v))
		}
	}

	x, err := tensor.NewTensor([]int{len(rows), width - 1}, tensor.Float32, features)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build feature tensor")
	}
	y, err := tensor.NewTensor([]int{len(rows), 1}, tensor.Float32, labels)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build label tensor")
	}
	return training.NewTensorDataset(x, y)
}

// LoadLoaders builds train and validation loaders from the config's dataset
// paths. The training loader shuffles with the run seed; validation keeps file
// order.
func (c *RunConfig) LoadLoaders() (*training.DataLoader, *training.DataLoader, error) {
	trainSet, err := LoadCSVDataset(c.Data.TrainPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load training data")
	}
	validSet, err := LoadCSVDataset(c.Data.ValidPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load validation data")
	}

	trainLoader, err := training.NewDataLoader(trainSet, c.BatchSize, true, c.Seed)
	if err != nil {
		return nil, nil, err
	}
	validLoader, err := training.NewDataLoader(validSet, c.BatchSize, false, c.Seed)
	if err != nil {
		return nil, nil, err
	}
	return trainLoader, validLoader, nil
}

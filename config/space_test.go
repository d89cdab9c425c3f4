package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/tsawler/go-advtrain/search"
)

func parseSearchYAML(t *testing.T, content string) *SearchConfig {
	t.Helper()
	var cfg RunConfig
	require.NoError(t, yaml.Unmarshal([]byte(content), &cfg))
	return &cfg.Search
}

func TestParseSpace(t *testing.T) {
	sc := parseSearchYAML(t, `
search:
  hyperparameters_vary:
    optimizer_params:
      lr:
        kind: float
        low: 0.0001
        high: 0.1
        log: true
    batch_size:
      kind: const
      value: 32
    model_params:
      num_outputs:
        kind: choice
        choices: [1, 3]
`)

	tree, err := sc.ParseSpace()
	require.NoError(t, err)
	require.Len(t, tree, 3)

	opt, ok := tree["optimizer_params"].(search.Tree)
	require.True(t, ok)
	lr, ok := opt["lr"].(search.Leaf)
	require.True(t, ok)
	assert.Equal(t, search.KindFloat, lr.Kind)
	assert.True(t, lr.Log)
	assert.InDelta(t, 0.0001, lr.Low, 1e-12)

	batch, ok := tree["batch_size"].(search.Leaf)
	require.True(t, ok)
	assert.Equal(t, search.KindConst, batch.Kind)
	assert.Equal(t, 32, batch.Value)

	model := tree["model_params"].(search.Tree)
	outputs := model["num_outputs"].(search.Leaf)
	assert.Equal(t, search.KindChoice, outputs.Kind)
	assert.Len(t, outputs.Choices, 2)
}

func TestParseSpaceRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", `search: {}`},
		{"scalar node", "search:\n  hyperparameters_vary:\n    lr: 0.1\n"},
		{"invalid leaf", `
search:
  hyperparameters_vary:
    lr:
      kind: float
      low: 1.0
      high: 0.5
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := parseSearchYAML(t, tt.content)
			_, err := sc.ParseSpace()
			assert.Error(t, err)
		})
	}
}

func TestBuildSamplerAndPruner(t *testing.T) {
	space := search.Tree{
		"act": search.Leaf{Kind: search.KindChoice, Choices: []interface{}{"relu", "tanh"}},
	}

	sc := &SearchConfig{}
	sampler, err := sc.BuildSampler(space)
	require.NoError(t, err)
	assert.IsType(t, &search.RandomSampler{}, sampler)

	sc.Sampler = "grid"
	sampler, err = sc.BuildSampler(space)
	require.NoError(t, err)
	grid, ok := sampler.(*search.GridSampler)
	require.True(t, ok)
	assert.Equal(t, 2, grid.Size())

	sc.Sampler = "bayes"
	_, err = sc.BuildSampler(space)
	assert.Error(t, err)

	sc.Pruner = ""
	pruner, err := sc.BuildPruner()
	require.NoError(t, err)
	assert.IsType(t, search.NopPruner{}, pruner)

	sc.Pruner = "median"
	pruner, err = sc.BuildPruner()
	require.NoError(t, err)
	assert.IsType(t, &search.MedianPruner{}, pruner)

	sc.Pruner = "hyperband"
	_, err = sc.BuildPruner()
	assert.Error(t, err)
}

func TestApplyParamsMergesComponentMaps(t *testing.T) {
	cfg := baseConfig()
	cfg.OptimizerParams = ParamMap{"lr": 0.01, "weight_decay": 0.001}

	merged := ApplyParams(cfg, search.Params{
		"n_epochs": 50,
		"optimizer_params": search.Params{
			"lr": 0.1,
		},
		"scheduler_name": "ExponentialLR",
	})

	assert.Equal(t, 50, merged.Epochs)
	assert.Equal(t, "ExponentialLR", merged.SchedulerName)

	op := merged.OptimizerParams.(ParamMap)
	assert.Equal(t, 0.1, op.Float("lr", 0))
	assert.Equal(t, 0.001, op.Float("weight_decay", 0), "unmentioned keys survive the merge")

	// The source config is untouched.
	assert.Equal(t, 30, cfg.Epochs)
	assert.Equal(t, 0.01, cfg.OptimizerParams.(ParamMap).Float("lr", 0))
}

func TestApplyParamsSkipsNilValues(t *testing.T) {
	cfg := baseConfig()

	merged := ApplyParams(cfg, search.Params{
		"n_epochs": nil,
		"optimizer_params": search.Params{
			"lr": nil,
		},
	})

	assert.Equal(t, cfg.Epochs, merged.Epochs)
	assert.Equal(t, 0.01, merged.OptimizerParams.(ParamMap).Float("lr", 0))
}

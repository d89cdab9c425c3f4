package config

import (
	"github.com/pkg/errors"

	"github.com/tsawler/go-advtrain/search"
)

// ParseSpace converts the hyperparameters_vary YAML block into a search tree.
// A mapping is a leaf iff it carries a kind tag; anything else is treated as a
// subtree. The parsed tree is validated before it is returned.
func (s *SearchConfig) ParseSpace() (search.Tree, error) {
	if s.Space == nil {
		return nil, errors.New("search config declares no hyperparameters_vary block")
	}
	tree, err := parseTree(s.Space)
	if err != nil {
		return nil, err
	}
	if err := search.Validate(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func parseTree(v interface{}) (search.Tree, error) {
	m := NormalizeParams(v)
	if len(m) == 0 {
		return nil, errors.New("search space node must be a non-empty mapping")
	}

	tree := make(search.Tree, len(m))
	for name, child := range m {
		cm, ok := child.(ParamMap)
		if !ok {
			return nil, errors.Errorf("search space node %q must be a mapping", name)
		}
		if _, isLeaf := cm["kind"]; isLeaf {
			tree[name] = parseLeaf(cm)
		} else {
			sub, err := parseTree(cm)
			if err != nil {
				return nil, errors.Wrapf(err, "in subtree %q", name)
			}
			tree[name] = sub
		}
	}
	return tree, nil
}

func parseLeaf(m ParamMap) search.Leaf {
	l := search.Leaf{
		Kind: search.Kind(m.String("kind", "")),
		Low:  m.Float("low", 0),
		High: m.Float("high", 0),
		Step: m.Float("step", 0),
		Log:  m.Bool("log", false),
	}
	if choices, ok := m["choices"].([]interface{}); ok {
		l.Choices = choices
	}
	if v, ok := m["value"]; ok {
		l.Value = v
	}
	return l
}

// BuildSampler creates the configured trial sampler. The grid sampler
// enumerates the space's choice leaves; numeric leaves fall back to their
// range midpoint under it.
func (s *SearchConfig) BuildSampler(space search.Tree) (search.Sampler, error) {
	switch s.Sampler {
	case "", "random":
		return search.NewRandomSampler(s.SamplerSeed), nil
	case "grid":
		grid := make(map[string][]interface{})
		collectChoices(space, grid)
		return search.NewGridSampler(grid), nil
	}
	return nil, errors.Errorf("unknown sampler %q", s.Sampler)
}

func collectChoices(tree search.Tree, grid map[string][]interface{}) {
	for name, node := range tree {
		switch n := node.(type) {
		case search.Leaf:
			if n.Kind == search.KindChoice {
				grid[name] = n.Choices
			}
		case search.Tree:
			collectChoices(n, grid)
		}
	}
}

// BuildPruner creates the configured trial pruner
func (s *SearchConfig) BuildPruner() (search.Pruner, error) {
	switch s.Pruner {
	case "", "none":
		return search.NopPruner{}, nil
	case "median":
		return search.NewMedianPruner(s.PrunerWarmup, s.PrunerMinTrials), nil
	}
	return nil, errors.Errorf("unknown pruner %q", s.Pruner)
}

// ApplyParams returns a copy of cfg with a resolved parameter set applied.
// Top-level names address config fields; nested maps merge per key into the
// matching component parameter map. nil values, i.e. unresolved leaves, are
// skipped.
func ApplyParams(cfg *RunConfig, params search.Params) *RunConfig {
	out := *cfg
	for name, value := range params {
		if value == nil {
			continue
		}
		switch name {
		case "model_name":
			out.ModelName = asString(value, out.ModelName)
		case "model_params":
			out.ModelParams = mergeParams(NormalizeParams(out.ModelParams), value)
		case "criterion_name":
			out.CriterionName = asString(value, out.CriterionName)
		case "criterion_params":
			out.CriterionParams = mergeParams(NormalizeParams(out.CriterionParams), value)
		case "optimizer_name":
			out.OptimizerName = asString(value, out.OptimizerName)
		case "optimizer_params":
			out.OptimizerParams = mergeParams(NormalizeParams(out.OptimizerParams), value)
		case "scheduler_name":
			out.SchedulerName = asString(value, out.SchedulerName)
		case "scheduler_params":
			out.SchedulerParams = mergeParams(NormalizeParams(out.SchedulerParams), value)
		case "attack_name":
			out.AttackName = asString(value, out.AttackName)
		case "attack_params":
			out.AttackParams = mergeParams(NormalizeParams(out.AttackParams), value)
		case "attack_scheduler_name":
			out.AttackSchedulerName = asString(value, out.AttackSchedulerName)
		case "attack_scheduler_params":
			out.AttackSchedulerParams = mergeParams(NormalizeParams(out.AttackSchedulerParams), value)
		case "n_epochs":
			out.Epochs = asInt(value, out.Epochs)
		case "early_stop_patience":
			out.EarlyStopPatience = asInt(value, out.EarlyStopPatience)
		case "early_stop_min_delta":
			out.EarlyStopMinDelta = asFloat(value, out.EarlyStopMinDelta)
		case "print_every":
			out.PrintEvery = asInt(value, out.PrintEvery)
		case "batch_size":
			out.BatchSize = asInt(value, out.BatchSize)
		case "seed":
			out.Seed = int64(asInt(value, int(out.Seed)))
		case "multiclass":
			if b, ok := value.(bool); ok {
				out.Multiclass = b
			}
		}
	}
	return &out
}

func mergeParams(base ParamMap, v interface{}) ParamMap {
	merged := make(ParamMap, len(base))
	for key, value := range base {
		merged[key] = value
	}

	var overlay ParamMap
	if p, ok := v.(search.Params); ok {
		overlay = ParamMap(p)
	} else {
		overlay = NormalizeParams(v)
	}
	for key, value := range overlay {
		if value == nil {
			continue
		}
		if sub, ok := value.(search.Params); ok {
			value = mergeParams(NormalizeParams(merged[key]), sub)
		}
		merged[key] = value
	}
	return merged
}

func asString(v interface{}, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func asInt(v interface{}, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func asFloat(v interface{}, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	}
	return def
}

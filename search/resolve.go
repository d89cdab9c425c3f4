package search

import (
	"github.com/pkg/errors"
)

// Params is a resolved parameter set. It mirrors the nesting of the search
// space it was produced from: subtree names map to nested Params, leaf names
// map to concrete values (or nil for unresolved tunables).
type Params map[string]interface{}

// CollectDefaults walks the space and returns its nesting with const leaves
// materialized and every tunable leaf left nil, to be filled in later by
// ApplyBest.
func CollectDefaults(tree Tree) Params {
	out := make(Params, len(tree))
	for name, child := range tree {
		switch n := child.(type) {
		case Leaf:
			if n.Kind == KindConst {
				out[name] = n.Value
			} else {
				out[name] = nil
			}
		case Tree:
			out[name] = CollectDefaults(n)
		}
	}
	return out
}

// ResolveWithTrial resolves every leaf against the trial sampler, preserving
// the space's nesting. Const leaves never consult the sampler.
func ResolveWithTrial(tree Tree, trial Trial) (Params, error) {
	out := make(Params, len(tree))
	for name, child := range tree {
		switch n := child.(type) {
		case Leaf:
			v, err := resolveLeaf(name, n, trial)
			if err != nil {
				return nil, err
			}
			out[name] = v
		case Tree:
			sub, err := ResolveWithTrial(n, trial)
			if err != nil {
				return nil, err
			}
			out[name] = sub
		default:
			return nil, errors.Errorf("search space node %q has unsupported type %T", name, child)
		}
	}
	return out, nil
}

func resolveLeaf(name string, l Leaf, trial Trial) (interface{}, error) {
	switch l.Kind {
	case KindInt:
		return trial.SuggestInt(name, int(l.Low), int(l.High), int(l.Step)), nil
	case KindFloat:
		return trial.SuggestFloat(name, l.Low, l.High, l.Log), nil
	case KindChoice:
		return trial.SuggestCategorical(name, l.Choices), nil
	case KindConst:
		return l.Value, nil
	}
	return nil, errors.Errorf("leaf %q: unknown kind %q", name, l.Kind)
}

// ApplyBest projects a flat best-parameter set onto a copy of the nested
// defaults. Each best name overwrites every leaf in the defaults whose key
// matches, at any depth. When a name exists at several depths all matches are
// overwritten with the same value; DuplicateLeafNames surfaces such spaces so
// callers can log the ambiguity.
func ApplyBest(defaults Params, best map[string]interface{}) Params {
	out := deepCopy(defaults)
	for name, value := range best {
		applyOne(out, name, value)
	}
	return out
}

func applyOne(params Params, name string, value interface{}) {
	for key, existing := range params {
		if sub, ok := existing.(Params); ok {
			applyOne(sub, name, value)
			continue
		}
		if key == name {
			params[key] = value
		}
	}
}

func deepCopy(params Params) Params {
	out := make(Params, len(params))
	for key, value := range params {
		if sub, ok := value.(Params); ok {
			out[key] = deepCopy(sub)
		} else {
			out[key] = value
		}
	}
	return out
}

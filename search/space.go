// Package search implements recursive search-space resolution and sequential
// trial optimization for hyperparameter tuning. A search space is a tree whose
// leaves declare tunable or constant parameters; resolving the tree against a
// trial sampler yields a same-shaped parameter set for one training run.
package search

import (
	"sort"

	"github.com/pkg/errors"
)

// Kind tags a leaf with the way its value is obtained
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindChoice Kind = "choice"
	KindConst  Kind = "const"
)

// Node is one search-space tree node: either a Leaf or a Tree of named
// children, never both.
type Node interface {
	node()
}

// Leaf declares a single parameter. The fields consulted depend on Kind:
// int and float use Low/High (and optionally Step, or Log for floats), choice
// uses Choices, const uses Value.
type Leaf struct {
	Kind    Kind
	Low     float64
	High    float64
	Step    float64
	Log     bool
	Choices []interface{}
	Value   interface{}
}

// Tree maps child names to subtrees or leaves
type Tree map[string]Node

func (Leaf) node() {}
func (Tree) node() {}

// Validate checks every leaf for the fields its kind requires. Malformed
// leaves are fatal here, before any training starts.
func Validate(tree Tree) error {
	return validateTree(tree, "")
}

func validateTree(tree Tree, path string) error {
	for name, child := range tree {
		childPath := joinPath(path, name)
		switch n := child.(type) {
		case Leaf:
			if err := validateLeaf(n, childPath); err != nil {
				return err
			}
		case Tree:
			if err := validateTree(n, childPath); err != nil {
				return err
			}
		default:
			return errors.Errorf("search space node %q has unsupported type %T", childPath, child)
		}
	}
	return nil
}

func validateLeaf(l Leaf, path string) error {
	switch l.Kind {
	case KindInt, KindFloat:
		if l.High < l.Low {
			return errors.Errorf("leaf %q: high bound %v is below low bound %v", path, l.High, l.Low)
		}
		if l.Step < 0 {
			return errors.Errorf("leaf %q: step must not be negative, got %v", path, l.Step)
		}
		if l.Log && l.Low <= 0 {
			return errors.Errorf("leaf %q: log-domain sampling requires a positive low bound, got %v", path, l.Low)
		}
	case KindChoice:
		if len(l.Choices) == 0 {
			return errors.Errorf("leaf %q: choice leaf declares no choices", path)
		}
	case KindConst:
		if l.Value == nil {
			return errors.Errorf("leaf %q: const leaf declares no value", path)
		}
	default:
		return errors.Errorf("leaf %q: unknown kind %q", path, l.Kind)
	}
	return nil
}

// DuplicateLeafNames returns leaf names that appear at more than one position
// in the tree. ApplyBest overwrites every leaf matching a best-parameter name,
// so duplicates make a flat best set ambiguous; callers should log them.
func DuplicateLeafNames(tree Tree) []string {
	counts := make(map[string]int)
	countLeafNames(tree, counts)

	var dups []string
	for name, n := range counts {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	return dups
}

func countLeafNames(tree Tree, counts map[string]int) {
	for name, child := range tree {
		switch n := child.(type) {
		case Leaf:
			counts[name]++
		case Tree:
			countLeafNames(n, counts)
		}
	}
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

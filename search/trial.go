package search

import (
	"math"
	"math/rand"
	"sort"
)

// Trial hands out one parameter value per leaf during space resolution and
// records every suggestion under its leaf name.
type Trial interface {
	SuggestInt(name string, low, high, step int) int
	SuggestFloat(name string, low, high float64, log bool) float64
	SuggestCategorical(name string, choices []interface{}) interface{}

	// Params returns the flat name -> value record of all suggestions made
	// so far.
	Params() map[string]interface{}
}

// Sampler produces trials. Number is the zero-based trial index within a
// study; samplers may use it to derive deterministic per-trial state.
type Sampler interface {
	Trial(number int) Trial
}

// RandomSampler draws every suggestion uniformly from the leaf's declared
// range. Each trial gets its own RNG derived from the sampler seed and the
// trial number, so a study's suggestions are reproducible.
type RandomSampler struct {
	seed int64
}

// NewRandomSampler creates a random sampler with an explicit seed
func NewRandomSampler(seed int64) *RandomSampler {
	return &RandomSampler{seed: seed}
}

// Trial creates the trial for one study iteration
func (s *RandomSampler) Trial(number int) Trial {
	return &randomTrial{
		rng:    rand.New(rand.NewSource(s.seed + int64(number))),
		params: make(map[string]interface{}),
	}
}

type randomTrial struct {
	rng    *rand.Rand
	params map[string]interface{}
}

func (t *randomTrial) SuggestInt(name string, low, high, step int) int {
	if step <= 0 {
		step = 1
	}
	n := (high-low)/step + 1
	v := low + t.rng.Intn(n)*step
	t.params[name] = v
	return v
}

func (t *randomTrial) SuggestFloat(name string, low, high float64, log bool) float64 {
	var v float64
	if log {
		v = math.Exp(math.Log(low) + t.rng.Float64()*(math.Log(high)-math.Log(low)))
	} else {
		v = low + t.rng.Float64()*(high-low)
	}
	t.params[name] = v
	return v
}

func (t *randomTrial) SuggestCategorical(name string, choices []interface{}) interface{} {
	v := choices[t.rng.Intn(len(choices))]
	t.params[name] = v
	return v
}

func (t *randomTrial) Params() map[string]interface{} {
	return t.params
}

// GridSampler walks an explicit per-parameter value grid. Trial number n maps
// to the n-th combination in mixed-radix order over the grid's sorted
// parameter names; numbers beyond the grid size wrap around. Parameters absent
// from the grid fall back to the midpoint of their declared range (or the
// first choice).
type GridSampler struct {
	grid  map[string][]interface{}
	names []string
}

// NewGridSampler creates a grid sampler over explicit candidate values
func NewGridSampler(grid map[string][]interface{}) *GridSampler {
	names := make([]string, 0, len(grid))
	for name, values := range grid {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return &GridSampler{grid: grid, names: names}
}

// Size returns the number of combinations in the grid
func (s *GridSampler) Size() int {
	size := 1
	for _, name := range s.names {
		size *= len(s.grid[name])
	}
	return size
}

// Trial creates the trial for one study iteration
func (s *GridSampler) Trial(number int) Trial {
	indices := make(map[string]int, len(s.names))
	n := number
	for _, name := range s.names {
		size := len(s.grid[name])
		indices[name] = n % size
		n /= size
	}
	return &gridTrial{
		grid:    s.grid,
		indices: indices,
		params:  make(map[string]interface{}),
	}
}

type gridTrial struct {
	grid    map[string][]interface{}
	indices map[string]int
	params  map[string]interface{}
}

func (t *gridTrial) gridValue(name string) (interface{}, bool) {
	idx, ok := t.indices[name]
	if !ok {
		return nil, false
	}
	return t.grid[name][idx], true
}

func (t *gridTrial) SuggestInt(name string, low, high, step int) int {
	v := low + (high-low)/2
	if gv, ok := t.gridValue(name); ok {
		v = toInt(gv)
	}
	t.params[name] = v
	return v
}

func (t *gridTrial) SuggestFloat(name string, low, high float64, log bool) float64 {
	v := (low + high) / 2
	if gv, ok := t.gridValue(name); ok {
		v = toFloat(gv)
	}
	t.params[name] = v
	return v
}

func (t *gridTrial) SuggestCategorical(name string, choices []interface{}) interface{} {
	v := choices[0]
	if gv, ok := t.gridValue(name); ok {
		v = gv
	}
	t.params[name] = v
	return v
}

func (t *gridTrial) Params() map[string]interface{} {
	return t.params
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Package config loads experiment run configuration from YAML and turns named
// component choices (model, criterion, optimizer, scheduler, attack) into
// wired training runs.
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ParamMap holds the keyword parameters of one named component
type ParamMap map[string]interface{}

// RunConfig describes one experiment run. Component parameters may be omitted
// or set to the "None" sentinel; Normalize turns both into empty maps.
type RunConfig struct {
	Seed               int64   `yaml:"seed"`
	Multiclass         bool    `yaml:"multiclass"`
	Epochs             int     `yaml:"n_epochs"`
	EarlyStopPatience  int     `yaml:"early_stop_patience"`
	EarlyStopMinDelta  float64 `yaml:"early_stop_min_delta"`
	PrintEvery         int     `yaml:"print_every"`
	BatchSize          int     `yaml:"batch_size"`
	Disc               bool    `yaml:"disc"`
	RegeneratePerEpoch bool    `yaml:"regenerate_per_epoch"`

	ModelName             string      `yaml:"model_name"`
	ModelParams           interface{} `yaml:"model_params"`
	CriterionName         string      `yaml:"criterion_name"`
	CriterionParams       interface{} `yaml:"criterion_params"`
	OptimizerName         string      `yaml:"optimizer_name"`
	OptimizerParams       interface{} `yaml:"optimizer_params"`
	SchedulerName         string      `yaml:"scheduler_name"`
	SchedulerParams       interface{} `yaml:"scheduler_params"`
	AttackName            string      `yaml:"attack_name"`
	AttackParams          interface{} `yaml:"attack_params"`
	AttackSchedulerName   string      `yaml:"attack_scheduler_name"`
	AttackSchedulerParams interface{} `yaml:"attack_scheduler_params"`

	Data   DataConfig   `yaml:"data"`
	Search SearchConfig `yaml:"search"`
}

// DataConfig points at the CSV datasets of a run
type DataConfig struct {
	TrainPath string `yaml:"train_path"`
	ValidPath string `yaml:"valid_path"`
}

// SearchConfig configures hyperparameter search over this run's parameters
type SearchConfig struct {
	NTrials         int         `yaml:"n_trials"`
	Direction       string      `yaml:"direction"`
	OptimMetric     string      `yaml:"optim_metric"`
	Sampler         string      `yaml:"sampler"`
	SamplerSeed     int64       `yaml:"sampler_seed"`
	Pruner          string      `yaml:"pruner"`
	PrunerWarmup    int         `yaml:"pruner_warmup"`
	PrunerMinTrials int         `yaml:"pruner_min_trials"`
	Space           interface{} `yaml:"hyperparameters_vary"`
}

// Load reads a run config from a YAML file and normalizes its optional fields
func Load(path string) (*RunConfig, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the config as YAML, typically into a run's output directory for
// reproducibility
func (c *RunConfig) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := ioutil.WriteFile(path, raw, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Normalize fills in defaults and replaces "None" sentinels and absent
// parameter maps with empty maps, so factories never see malformed input
func (c *RunConfig) Normalize() {
	if c.Epochs <= 0 {
		c.Epochs = 30
	}
	if c.PrintEvery <= 0 {
		c.PrintEvery = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.ModelName == "" {
		c.ModelName = "Linear"
	}
	if c.CriterionName == "" {
		c.CriterionName = "BCELoss"
	}
	if c.OptimizerName == "" {
		c.OptimizerName = "Adam"
	}
	c.SchedulerName = normalizeName(c.SchedulerName)
	c.AttackSchedulerName = normalizeName(c.AttackSchedulerName)

	c.ModelParams = NormalizeParams(c.ModelParams)
	c.CriterionParams = NormalizeParams(c.CriterionParams)
	c.OptimizerParams = NormalizeParams(c.OptimizerParams)
	c.SchedulerParams = NormalizeParams(c.SchedulerParams)
	c.AttackParams = NormalizeParams(c.AttackParams)
	c.AttackSchedulerParams = NormalizeParams(c.AttackSchedulerParams)
}

func normalizeName(name string) string {
	if name == "" || name == "None" {
		return "None"
	}
	return name
}

// NormalizeParams converts a raw parameter value into a ParamMap. nil and the
// "None" sentinel become empty maps; YAML's interface-keyed maps are converted
// recursively.
func NormalizeParams(v interface{}) ParamMap {
	switch p := v.(type) {
	case nil:
		return ParamMap{}
	case string:
		return ParamMap{}
	case ParamMap:
		return p
	case map[string]interface{}:
		return ParamMap(p)
	case map[interface{}]interface{}:
		out := make(ParamMap, len(p))
		for key, value := range p {
			out[fmt.Sprintf("%v", key)] = convertValue(value)
		}
		return out
	}
	return ParamMap{}
}

func convertValue(v interface{}) interface{} {
	if m, ok := v.(map[interface{}]interface{}); ok {
		return NormalizeParams(m)
	}
	return v
}

// Float reads a numeric parameter, falling back to def when absent
func (p ParamMap) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
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
	return def
}

// Int reads an integer parameter, falling back to def when absent
func (p ParamMap) Int(key string, def int) int {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
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
	return def
}

// Bool reads a boolean parameter, falling back to def when absent
func (p ParamMap) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// String reads a string parameter, falling back to def when absent
func (p ParamMap) String(key string, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

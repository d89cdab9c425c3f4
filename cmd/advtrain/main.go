// Command advtrain runs adversarial-training experiments: a single training
// run from a YAML config, or a hyperparameter search over it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tsawler/go-advtrain/checkpoints"
	"github.com/tsawler/go-advtrain/config"
	"github.com/tsawler/go-advtrain/logutil"
	"github.com/tsawler/go-advtrain/search"
	"github.com/tsawler/go-advtrain/training"
)

func trainCmd() *cobra.Command {
	var configPath *string
	var outputDir *string
	var verbose *bool

	trainCmd := cobra.Command{
		Use:   "train",
		Short: "run one training experiment from a YAML config",
		Run: func(cmd *cobra.Command, args []string) {
			logger := logutil.New(*verbose)
			defer logger.Sync()

			if err := runTraining(*configPath, *outputDir, logger); err != nil {
				log.Fatalln(err)
			}
		},
	}

	configPath = trainCmd.Flags().StringP("config", "c", "config.yaml",
		"path to the run config YAML")
	outputDir = trainCmd.Flags().StringP("output", "o", "results",
		"directory to create the per-run output directory in")
	verbose = trainCmd.Flags().BoolP("verbose", "v", false,
		"enable debug logging")

	return &trainCmd
}

func searchCmd() *cobra.Command {
	var configPath *string
	var outputDir *string
	var verbose *bool

	searchCmd := cobra.Command{
		Use:   "search",
		Short: "run hyperparameter search, then train with the best parameters",
		Run: func(cmd *cobra.Command, args []string) {
			logger := logutil.New(*verbose)
			defer logger.Sync()

			if err := runSearch(*configPath, *outputDir, logger); err != nil {
				log.Fatalln(err)
			}
		},
	}

	configPath = searchCmd.Flags().StringP("config", "c", "config.yaml",
		"path to the run config YAML")
	outputDir = searchCmd.Flags().StringP("output", "o", "results",
		"directory to create the per-run output directory in")
	verbose = searchCmd.Flags().BoolP("verbose", "v", false,
		"enable debug logging")

	return &searchCmd
}

func runTraining(configPath, outputDir string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	trainLoader, validLoader, err := cfg.LoadLoaders()
	if err != nil {
		return err
	}

	run, err := config.Build(cfg, logger)
	if err != nil {
		return err
	}

	metrics, err := run.Trainer.Train(context.Background(), trainLoader, validLoader, nil)
	if err != nil {
		return err
	}
	logger.Info("training finished",
		zap.Float64("loss", metrics["loss"]),
		zap.Float64("accuracy", metrics["accuracy"]),
		zap.Float64("f1", metrics["f1"]))

	return persistRun(run, metrics, outputDir, logger)
}

func runSearch(configPath, outputDir string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	trainLoader, validLoader, err := cfg.LoadLoaders()
	if err != nil {
		return err
	}

	space, err := cfg.Search.ParseSpace()
	if err != nil {
		return err
	}
	sampler, err := cfg.Search.BuildSampler(space)
	if err != nil {
		return err
	}
	pruner, err := cfg.Search.BuildPruner()
	if err != nil {
		return err
	}

	study, err := search.NewStudy(space, search.StudyConfig{
		Direction: search.Direction(cfg.Search.Direction),
		NTrials:   cfg.Search.NTrials,
		Sampler:   sampler,
		Pruner:    pruner,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	optimMetric := cfg.Search.OptimMetric
	if optimMetric == "" {
		optimMetric = "f1"
	}

	result, err := study.Optimize(context.Background(),
		func(ctx context.Context, params search.Params, report func(int, float64) bool) (float64, error) {
			trialCfg := config.ApplyParams(cfg, params)
			run, err := config.Build(trialCfg, logger)
			if err != nil {
				return 0, err
			}
			metrics, err := run.Trainer.Train(ctx, trainLoader, validLoader, report)
			if err != nil {
				return 0, err
			}
			return metrics[optimMetric], nil
		})
	if err != nil {
		return err
	}
	logger.Info("search finished",
		zap.Int("trials", result.Trials),
		zap.Int("pruned", result.Pruned),
		zap.Float64("best_score", result.BestScore),
		zap.Any("best_params", result.BestParams))

	// Retrain with the best parameter set and persist that run.
	bestCfg := config.ApplyParams(cfg, result.BestResolved)
	run, err := config.Build(bestCfg, logger)
	if err != nil {
		return err
	}
	metrics, err := run.Trainer.Train(context.Background(), trainLoader, validLoader, nil)
	if err != nil {
		return err
	}
	return persistRun(run, metrics, outputDir, logger)
}

// persistRun writes one run's artifacts under a fresh run directory: config
// copy, model checkpoint, per-epoch metrics CSV and loss/accuracy curve PNGs.
func persistRun(run *config.Run, metrics map[string]float64, outputDir string, logger *zap.Logger) error {
	runID := uuid.NewString()
	dir := filepath.Join(outputDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %v", err)
	}

	if err := run.Config.Save(filepath.Join(dir, "config.yaml")); err != nil {
		return err
	}

	weights, err := checkpoints.Capture(run.Model)
	if err != nil {
		return err
	}
	history := run.Trainer.History()
	checkpoint := &checkpoints.Checkpoint{
		Weights: weights,
		TrainingState: checkpoints.TrainingState{
			Epochs:       history.Epochs(training.SplitTest),
			LearningRate: run.Optimizer.GetLR(),
			BestLoss:     metrics["loss"],
			Multiclass:   run.Config.Multiclass,
		},
		OptimizerState: &checkpoints.OptimizerState{
			Type: run.Config.OptimizerName,
		},
		Metadata: checkpoints.Metadata{RunID: runID},
	}
	if err := checkpoints.Save(checkpoint, filepath.Join(dir, "model.json")); err != nil {
		return err
	}

	if err := history.SaveCSV(filepath.Join(dir, "metrics.csv")); err != nil {
		return err
	}
	for _, metric := range []string{"loss", "accuracy"} {
		if err := training.RenderCurves(history, metric, filepath.Join(dir, metric+".png")); err != nil {
			return err
		}
	}

	logger.Info("run artifacts written", zap.String("dir", dir))
	return nil
}

func main() {
	rootCmd := &cobra.Command{Use: "advtrain"}
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(searchCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err)
	}
}

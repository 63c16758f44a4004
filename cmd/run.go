package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entropix/gauntlet/internal/agent"
	"github.com/entropix/gauntlet/internal/config"
	"github.com/entropix/gauntlet/internal/corpus"
	"github.com/entropix/gauntlet/internal/report"
	"github.com/entropix/gauntlet/internal/result"
	"github.com/entropix/gauntlet/internal/runner"
	"github.com/entropix/gauntlet/internal/score"
)

var (
	flagDrift       string
	flagRot         string
	flagTasks       []string
	flagCategories  []string
	flagLimit       int
	flagPercentage  float64
	flagConcurrency int
	flagEndpoint    string
	flagSeed        int64
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute an assessment run",
		RunE:  runAssessment,
	}
	cmd.Flags().StringVar(&flagDrift, "drift", "", "schema drift level (none, low, medium, high)")
	cmd.Flags().StringVar(&flagRot, "rot", "", "context rot level (none, low, medium, high)")
	cmd.Flags().StringSliceVar(&flagTasks, "tasks", nil, "run only these task ids")
	cmd.Flags().StringSliceVar(&flagCategories, "category", nil, "filter by category")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "cap the number of tasks")
	cmd.Flags().Float64Var(&flagPercentage, "percentage", 0, "sample this percentage of the corpus")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "max concurrent agent round-trips")
	cmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "agent endpoint URL (overrides config)")
	cmd.Flags().Int64Var(&flagSeed, "seed", 0, "run seed (overrides config)")
	return cmd
}

func runAssessment(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyRunFlags(cfg)
	if cfg.Agent.Endpoint == "" && cfg.Agent.Image == "" {
		return fmt.Errorf("no agent: set agent.endpoint or agent.image in %s, or pass --endpoint", cfgFile)
	}

	corp, err := corpus.Load(cfg.Corpus.Path, cfg.Corpus.OrgType)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}

	baselines, err := loadBaselines(cfg)
	if err != nil {
		return err
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoint := cfg.Agent.Endpoint
	if endpoint == "" {
		ctr, err := agent.StartContainer(ctx, &agent.ContainerOpts{
			Image:         cfg.Agent.Image,
			ContainerPort: cfg.Agent.ContainerPort,
			TaskPath:      cfg.Agent.TaskPath,
			CPULimit:      cfg.Agent.CPULimit,
			MemoryLimit:   cfg.Agent.MemoryLimit,
		})
		if err != nil {
			return fmt.Errorf("starting agent container: %w", err)
		}
		defer ctr.Stop()
		endpoint = ctr.Endpoint()
		fmt.Printf("Agent container ready at %s\n", endpoint)
	}

	assessment, err := runner.RunAssessment(ctx, &runner.Options{
		Corpus:  corp,
		Client:  agent.NewHTTPClient(endpoint),
		Entropy: cfg.Assessment.Entropy(),
		Selection: corpus.Selection{
			TaskIDs:    cfg.Assessment.TaskIDs,
			Categories: cfg.Assessment.TaskCategories,
			Limit:      cfg.Assessment.TaskLimit,
			Percentage: cfg.Assessment.TaskPercentage,
		},
		Baselines:   baselines,
		MaxSteps:    cfg.Assessment.MaxSteps,
		Timeout:     time.Duration(cfg.Assessment.Timeout) * time.Second,
		Concurrency: cfg.Assessment.Concurrency,
		Seed:        cfg.Seed,
		RunDir:      runDir,
		Progress:    os.Stdout,
	})
	if err != nil {
		return err
	}
	if assessment.Summary.Aborted {
		fmt.Println("Run interrupted; summarizing completed tasks.")
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(runDir, "table", os.Stdout)
}

func applyRunFlags(cfg *config.Config) {
	if flagDrift != "" {
		cfg.Assessment.DriftLevel = flagDrift
	}
	if flagRot != "" {
		cfg.Assessment.RotLevel = flagRot
	}
	if len(flagTasks) > 0 {
		cfg.Assessment.TaskIDs = flagTasks
	}
	if len(flagCategories) > 0 {
		cfg.Assessment.TaskCategories = flagCategories
	}
	if flagLimit > 0 {
		cfg.Assessment.TaskLimit = flagLimit
	}
	if flagPercentage > 0 {
		cfg.Assessment.TaskPercentage = flagPercentage
	}
	if flagConcurrency > 0 {
		cfg.Assessment.Concurrency = flagConcurrency
	}
	if flagEndpoint != "" {
		cfg.Agent.Endpoint = flagEndpoint
	}
	if flagSeed != 0 {
		cfg.Seed = flagSeed
	}
}

func loadBaselines(cfg *config.Config) (*score.Table, error) {
	if cfg.Baselines.Path == "" {
		return nil, nil
	}
	table, err := score.LoadTable(cfg.Baselines.Path)
	if err != nil {
		return nil, fmt.Errorf("loading baselines: %w", err)
	}
	return table, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fintorai/agentforge/internal/config"
	"github.com/fintorai/agentforge/internal/domain"
	"github.com/fintorai/agentforge/internal/extractor"
	"github.com/fintorai/agentforge/internal/generator"
	"github.com/fintorai/agentforge/internal/orchestrator"
	"github.com/fintorai/agentforge/internal/publisher"
	"github.com/fintorai/agentforge/internal/report"
	"github.com/fintorai/agentforge/internal/runstore"
	"github.com/fintorai/agentforge/internal/watch"
	"github.com/fintorai/agentforge/internal/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	runRepo      string
	runBranch    string
	runNoPR      bool
	runAttempts  int
	runBackoffMs int
	runRetries   int
	scheduleCron string
	historyLimit int
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run SPEC_FILE",
		Short: "Run one generation-and-publish cycle",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runRepo, "repo", "", "target repository (owner/name), overrides config")
	runCmd.Flags().StringVar(&runBranch, "branch", "", "branch name, default is timestamped")
	runCmd.Flags().BoolVar(&runNoPR, "no-pr", false, "skip publishing entirely")
	runCmd.Flags().IntVar(&runAttempts, "max-attempts", 0, "generation attempt budget, overrides config")
	runCmd.Flags().IntVar(&runBackoffMs, "backoff-ms", 0, "delay between attempts, overrides config")
	runCmd.Flags().IntVar(&runRetries, "no-changes-retries", -1, "regeneration budget on no-changes failures, overrides config")
	rootCmd.AddCommand(runCmd)

	watchCmd := &cobra.Command{
		Use:   "watch SPEC_FILE",
		Short: "Run a cycle whenever the spec file changes",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	watchCmd.Flags().StringVar(&runRepo, "repo", "", "target repository (owner/name), overrides config")
	watchCmd.Flags().BoolVar(&runNoPR, "no-pr", false, "skip publishing entirely")
	rootCmd.AddCommand(watchCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule SPEC_FILE",
		Short: "Run cycles on a cron schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "0 6 * * *", "cron expression")
	scheduleCmd.Flags().StringVar(&runRepo, "repo", "", "target repository (owner/name), overrides config")
	scheduleCmd.Flags().BoolVar(&runNoPR, "no-pr", false, "skip publishing entirely")
	rootCmd.AddCommand(scheduleCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if runRepo != "" {
		cfg.Publish.TargetRepo = runRepo
	}
	if runNoPR {
		cfg.Publish.NoPR = true
	}
	if runAttempts > 0 {
		cfg.Generation.MaxAttempts = runAttempts
	}
	if runBackoffMs > 0 {
		cfg.Generation.BackoffMs = runBackoffMs
	}
	if runRetries >= 0 {
		cfg.Generation.NoChangesMaxRetries = runRetries
	}
}

// newLogger builds the stderr logger. Stdout is reserved for the sentinel
// delimited run report.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.General.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	rep := executeCycle(cmd.Context(), cfg, args[0], log)
	if rep.ExitCode != 0 {
		os.Exit(rep.ExitCode)
	}
	return nil
}

// executeCycle wires one full pipeline, runs it, persists history, and emits
// the report to stdout. Fatal setup errors become failure reports so every
// invocation yields exactly one sentinel-delimited record.
func executeCycle(ctx context.Context, cfg *config.Config, specFile string, log *zap.Logger) *domain.RunReport {
	reporter := report.New(os.Stdout)

	rep, state := buildAndRun(ctx, cfg, specFile, log)
	if err := reporter.Emit(rep); err != nil {
		log.Error("emitting run report", zap.Error(err))
	}

	if state != nil {
		if store, err := runstore.New(cfg.General.DatabasePath); err == nil {
			if err := store.SaveRun(state, rep); err != nil {
				log.Warn("persisting run history", zap.Error(err))
			}
			store.Close()
		} else {
			log.Warn("opening run history store", zap.Error(err))
		}
	}
	return rep
}

func buildAndRun(ctx context.Context, cfg *config.Config, specFile string, log *zap.Logger) (*domain.RunReport, *domain.RunState) {
	if err := cfg.Validate(); err != nil {
		return report.Failure(err, runBranch), nil
	}
	specText, err := os.ReadFile(specFile)
	if err != nil {
		return report.Failure(fmt.Errorf("reading specification: %w", err), runBranch), nil
	}
	owner, repo := cfg.SplitRepo()

	ws := workspace.New(owner, repo, cfg.GitHubToken, cfg.General.WorkspaceDir, log.Named("workspace"))
	if err := ws.Provision(ctx); err != nil {
		return report.Failure(err, runBranch), nil
	}

	gen, err := generatorFor(cfg, log)
	if err != nil {
		ws.Teardown()
		return report.Failure(err, runBranch), nil
	}

	request := domain.GenerationRequest{
		SpecText:            string(specText),
		TargetRepo:          cfg.Publish.TargetRepo,
		BranchName:          runBranch,
		NoPR:                cfg.Publish.NoPR,
		MaxAttempts:         cfg.Generation.MaxAttempts,
		Backoff:             time.Duration(cfg.Generation.BackoffMs) * time.Millisecond,
		NoChangesMaxRetries: cfg.Generation.NoChangesMaxRetries,
	}

	runner := generator.NewRunner(gen, ws, request.MaxAttempts, request.Backoff, log.Named("generator"))
	extract := extractor.New(cfg.Generation.TargetLanguage, log.Named("extractor"))
	host := publisher.NewGitHubHost(cfg.GitHubToken, owner, repo, cfg.Publish.BaseBranch, log.Named("publisher"))
	classifier := publisher.NewClassifier(cfg.Publish.NoChangesPatterns)
	messenger := publisher.NewAnthropicMessenger(cfg.AnthropicAPIKey, cfg.Generation.Model)
	policy := publisher.NewPolicy(host, classifier, messenger, request.NoChangesMaxRetries, log.Named("publisher"))

	orch := orchestrator.New(runner, extract, policy, ws,
		request, cfg.Generation.TargetLanguage, cfg.General.OutputDir, log.Named("orchestrator"))
	return orch.Run(ctx)
}

func generatorFor(cfg *config.Config, log *zap.Logger) (generator.Generator, error) {
	switch domain.GeneratorKind(cfg.Generation.Kind) {
	case domain.GeneratorAPI:
		return generator.NewAPIClient(cfg.AnthropicAPIKey, cfg.Generation.Model)
	case domain.GeneratorClaudeCode, "":
		return generator.NewClaudeCode(log), nil
	default:
		return nil, fmt.Errorf("unknown generator kind %q", cfg.Generation.Kind)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.General.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	specFile := args[0]
	w, err := watch.NewSpecWatcher(specFile, func(path string) {
		executeCycle(ctx, cfg, path, log)
	}, log)
	if err != nil {
		return err
	}
	defer w.Stop()

	w.Start(ctx)
	log.Info("watching specification", zap.String("path", specFile))
	<-ctx.Done()
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.General.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	sched, err := watch.NewSchedule(scheduleCron, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	specFile := args[0]
	sched.Run(ctx, func(ctx context.Context) {
		executeCycle(ctx, cfg, specFile, log)
	})
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListRecent(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tBRANCH\tPR\tFILES\tERROR")
	for _, rec := range records {
		pr := "-"
		if rec.PRNumber > 0 {
			pr = fmt.Sprintf("#%d", rec.PRNumber)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.StartedAt.Format("2006-01-02 15:04"),
			rec.Status,
			rec.Branch,
			pr,
			rec.ArtifactCount,
			rec.Error,
		)
	}
	return w.Flush()
}

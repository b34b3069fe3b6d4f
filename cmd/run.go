package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spigell/scout-responder/internal/ai"
	"github.com/spigell/scout-responder/internal/ai/gemini"
	"github.com/spigell/scout-responder/internal/bizreach"
	"github.com/spigell/scout-responder/internal/ledger"
	"github.com/spigell/scout-responder/internal/logger"
	"github.com/spigell/scout-responder/internal/metrics"
	"github.com/spigell/scout-responder/internal/pipeline"
	"github.com/spigell/scout-responder/internal/scout"
	"github.com/spigell/scout-responder/internal/secrets"
	"github.com/spigell/scout-responder/internal/surface"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate candidates and send scouts to the suitable ones",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("mode", "m", string(bizreach.ModePickup), "candidate source: pickup, unrated or all")
	runCmd.Flags().Bool("dry-run", false, "fill the scout form but never press send")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before a live run")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := zap.String(logger.FieldRunID, uuid.NewString())

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	logger = logger.With(runID)

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	mode, err := bizreach.ParseMode(cmd.Flag("mode").Value.String())
	if err != nil {
		logger.Fatal("parsing mode", zap.Error(err))
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	logger.Info("starting the scout-responder",
		zap.String("version", version),
		zap.String("mode", string(mode)),
		zap.Bool("dry_run", dryRun),
	)

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if _, err := os.Stat(config.AuthFile); err != nil {
		logger.Fatal("auth file not found",
			zap.String("file", config.AuthFile),
			zap.String("hint", "run the auth command first"),
			zap.Error(err),
		)
	}

	if config.Ledger.URL == "" {
		logger.Warn("ledger web app disabled, results go to the csv file only", zap.String("hint", "set GAS_WEB_APP_URL"))
	} else {
		logger.Info("ledger web app enabled")
	}

	if !dryRun && !autoApprove && !config.CI {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Send real scouts in %s mode", mode),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			logger.Info("exiting", zap.String("reason", "live run not confirmed"))
			return
		}
	}

	report, err := execute(ctx, config, mode, dryRun, logger)
	switch {
	case errors.Is(err, bizreach.ErrSessionInvalid):
		logger.Fatal("session is no longer valid",
			zap.String("hint", "run the auth command to refresh "+config.AuthFile),
			zap.Error(err),
		)
	case err != nil:
		logger.Fatal("run failed", zap.Error(err))
	}

	if report.Failed() {
		logger.Warn("run finished with mode failures, check the dumps", zap.String("dir", config.DumpDir))
	}
	logger.Info("run finished", zap.Int("errors", report.Errors()))
}

// execute owns the browser for the duration of the run, so it is closed
// before the caller decides how to exit.
func execute(ctx context.Context, config *Config, mode bizreach.Mode, dryRun bool, logger *zap.Logger) (*pipeline.Report, error) {
	oracle, err := newOracle(ctx, config.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("building evaluation oracle: %w", err)
	}

	browser, err := surface.NewChromeBrowser(ctx, surface.ChromeOptions{
		Headless:      config.CI || !dryRun,
		UserAgent:     config.Browser.UserAgent,
		ExecPath:      config.Browser.ExecPath,
		StateFile:     config.AuthFile,
		ActionTimeout: config.Browser.ActionTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	defer browser.Close()

	runMetrics := metrics.NewRun()
	dumper := surface.NewDumper(config.DumpDir, logger)

	var sink ledger.Sink
	if config.Ledger.URL != "" {
		sink = ledger.NewWebApp(config.Ledger.URL, config.Ledger.Timeout, logger)
	}
	book := ledger.New(sink, ledger.NewCSVFile(config.Ledger.CSVFile), runMetrics, logger)
	book.Media = config.Ledger.Media
	book.Sender = config.Ledger.Sender

	scoutConfig := config.Scout
	scoutConfig.DryRun = dryRun

	runner, err := pipeline.New(pipeline.Config{
		Site:   config.Site,
		Timing: config.PipelineTiming,
		DryRun: dryRun,
	}, pipeline.Deps{
		Browser:   browser,
		Gate:      bizreach.NewGate(config.Site, config.PlatformTiming, logger),
		List:      bizreach.NewList(config.PlatformTiming, logger),
		Extractor: bizreach.NewExtractor(config.PlatformTiming, logger),
		Oracle:    oracle,
		Composer:  scout.NewComposer(),
		Submitter: scout.NewSubmitter(scoutConfig, dumper, logger),
		Ledger:    book,
		Metrics:   runMetrics,
		Dumper:    dumper,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	report, err := runner.Run(ctx, mode)

	if config.MetricsFile != "" {
		if werr := runMetrics.WriteTextfile(config.MetricsFile, time.Now()); werr != nil {
			logger.Warn("writing metrics textfile", zap.String("file", config.MetricsFile), zap.Error(werr))
		}
	}

	return report, err
}

func newOracle(ctx context.Context, cfg AIConfig, base *zap.Logger) (ai.Oracle, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set GEMINI_API_KEY, GEMINI_API_KEY_FILE or ai.gemini.api-key-file)", err)
	}

	genLogger := logger.WithCommonFields(base, "gemini", cfg.Gemini.Model).
		With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, gemini.ResponseSchema(), genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewEvaluator(generator, logger.WithCommonFields(base, "gemini", generator.Model()), cfg.Gemini.MaxLogLength)
}

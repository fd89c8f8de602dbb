package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Vodeneev/loterias/internal/parser/orchestrator"
	"github.com/Vodeneev/loterias/internal/parser/payload"
	"github.com/Vodeneev/loterias/internal/parser/sources"
	"github.com/Vodeneev/loterias/internal/pipeline"
	pkgconfig "github.com/Vodeneev/loterias/internal/pkg/config"
	"github.com/Vodeneev/loterias/internal/pkg/export"
	"github.com/Vodeneev/loterias/internal/pkg/fetch"
	"github.com/Vodeneev/loterias/internal/pkg/interfaces"
	"github.com/Vodeneev/loterias/internal/pkg/logging"
	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/notify"
	"github.com/Vodeneev/loterias/internal/pkg/performance"
	"github.com/Vodeneev/loterias/internal/pkg/publish"
	"github.com/Vodeneev/loterias/internal/pkg/validation"
)

const (
	defaultConfigPath = "configs/production.yaml"
)

type options struct {
	configPath string
	games      []string
	outDir     string
	startYear  int
	endYear    int
	days       int
	parallel   bool
	year       int
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Loterias failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	root := &cobra.Command{
		Use:           "loterias",
		Short:         "Fetch, validate and publish Spanish lottery draws",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	root.PersistentFlags().StringSliceVar(&opts.games, "games", nil, "Games to fetch (PRIMITIVA,BONOLOTO,GORDO,EURO). Empty = use config")
	root.PersistentFlags().StringVar(&opts.outDir, "out", "", "Output directory. Empty = use config")

	historic := &cobra.Command{
		Use:   "historic",
		Short: "Rebuild every snapshot from whole calendar years",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, pipeline.ModeHistoric)
		},
	}
	historic.Flags().IntVar(&opts.startYear, "start-year", 0, "First year to fetch. 0 = use config")
	historic.Flags().IntVar(&opts.endYear, "end-year", 0, "Last year to fetch. 0 = use config")
	historic.Flags().BoolVar(&opts.parallel, "parallel", false, "Fetch games in parallel")

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Refresh the latest snapshot from the last few days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, pipeline.ModeLatest)
		},
	}
	latest.Flags().IntVar(&opts.days, "days", 0, "Days to look back. 0 = use config")
	latest.Flags().BoolVar(&opts.parallel, "parallel", false, "Fetch games in parallel")

	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "Print the source variants tried for every game",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSources(opts)
		},
	}
	sourcesCmd.Flags().IntVar(&opts.year, "year", time.Now().Year(), "Year whose window is expanded")

	root.AddCommand(historic, latest, sourcesCmd)
	return root
}

func loadConfig(opts *options, cmd *cobra.Command) (*pkgconfig.Config, []models.Game, error) {
	appConfig, err := pkgconfig.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if len(opts.games) > 0 {
		appConfig.Games = opts.games
	}
	if opts.outDir != "" {
		appConfig.OutputDir = opts.outDir
	}
	if cmd != nil {
		if opts.startYear > 0 {
			appConfig.Historic.StartYear = opts.startYear
		}
		if opts.endYear > 0 {
			appConfig.Historic.EndYear = opts.endYear
		}
		if opts.days > 0 {
			appConfig.Latest.WindowDays = opts.days
		}
		if cmd.Flags().Changed("parallel") {
			appConfig.Historic.ParallelGames = opts.parallel
		}
		if err := appConfig.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid flags: %w", err)
		}
	}

	games, err := models.ParseGames(appConfig.Games)
	if err != nil {
		return nil, nil, err
	}
	if len(games) == 0 {
		return nil, nil, fmt.Errorf("no games selected")
	}
	return appConfig, games, nil
}

func run(cmd *cobra.Command, opts *options, mode pipeline.Mode) error {
	appConfig, games, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}

	logger, closer, err := logging.SetupLogger(&appConfig.Logging, "loterias")
	if err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	} else {
		defer closer.Close()
	}

	runID := uuid.NewString()
	if logger != nil {
		slog.SetDefault(logger.With("run_id", runID))
	}
	slog.Info("Config loaded", "path", opts.configPath, "mode", mode, "games", games, "out", appConfig.OutputDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(ctx, cancel)

	catalog, err := sources.Load(appConfig.SourcesFile)
	if err != nil {
		return err
	}

	browser := startBrowser(appConfig)
	if browser != nil {
		defer func() {
			if err := browser.Close(); err != nil {
				slog.Warn("Failed to close browser", "error", err)
			}
		}()
	}

	fetcher := fetch.NewFetcher(newHTTPClient(appConfig), browser, retryPolicy(appConfig.Fetch))

	floor := validation.DefaultEpochFloor
	if appConfig.Validation.EpochFloor != "" {
		if floor, err = models.ParseDate(appConfig.Validation.EpochFloor); err != nil {
			return fmt.Errorf("validation.epoch_floor: %w", err)
		}
	}

	tracker := performance.NewTracker()
	orch := orchestrator.New(catalog, fetcher, validation.NewNormalizer(floor), orchestrator.Options{
		PauseMin:        appConfig.Fetch.PauseMin,
		PauseMax:        appConfig.Fetch.PauseMax,
		WindowSlackDays: appConfig.Validation.WindowSlackDays,
		MaxDateProbes:   appConfig.Fetch.MaxDateProbes,
	}).WithTracker(tracker)

	deps := pipeline.Deps{Source: orch, RunID: runID}
	if appConfig.Publish.S3.Enabled {
		mirror, err := publish.NewS3Mirror(ctx, appConfig.Publish.S3)
		if err != nil {
			return fmt.Errorf("failed to set up s3 mirror: %w", err)
		}
		deps.Mirror = mirror
	}

	spec := pipeline.Spec{
		Mode:          mode,
		StartYear:     appConfig.Historic.StartYear,
		EndYear:       appConfig.Historic.EndYear,
		Days:          appConfig.Latest.WindowDays,
		Parallel:      appConfig.Historic.ParallelGames,
		MinValidDraws: appConfig.Publish.MinValidDraws,
		Files: pipeline.Files{
			Historic:       appConfig.Publish.HistoricFile,
			Latest:         appConfig.Publish.LatestFile,
			PerGamePattern: appConfig.Publish.PerGamePattern,
		},
	}

	summary, err := pipeline.BuildSnapshots(ctx, deps, games, spec, appConfig.OutputDir)
	tracker.PrintSummary()
	if err != nil {
		return err
	}
	printRunSummary(summary, games)

	if notifier := newNotifier(appConfig.Telegram); notifier != nil {
		if err := notifier.Notify(ctx, summary.Report()); err != nil {
			slog.Warn("Failed to send run report", "error", err)
		}
	}
	return nil
}

func startBrowser(appConfig *pkgconfig.Config) *fetch.Browser {
	if appConfig.Browser.Disabled {
		slog.Info("Browser disabled, same-origin sources use direct HTTP")
		return nil
	}
	ua := ""
	if len(appConfig.Fetch.UserAgents) > 0 {
		ua = appConfig.Fetch.UserAgents[0]
	}
	browser, err := fetch.NewBrowser(fetch.BrowserOptions{
		Headful:     appConfig.Browser.Headful,
		ExecPath:    appConfig.Browser.ExecPath,
		UserAgent:   ua,
		NavTimeout:  appConfig.Browser.NavTimeout,
		SettleDelay: appConfig.Browser.SettleDelay,
		MaxPages:    appConfig.Browser.MaxPages,
	})
	if err != nil {
		slog.Warn("Browser unavailable, continuing without it", "error", err)
		return nil
	}
	return browser
}

func newHTTPClient(appConfig *pkgconfig.Config) *fetch.Client {
	f := appConfig.Fetch
	return fetch.NewClient(fetch.ClientOptions{
		UserAgents:        f.UserAgents,
		Headers:           f.Headers,
		Timeout:           f.Timeout,
		RequestsPerSecond: f.RequestsPerSecond,
		Burst:             f.Burst,
		ProxyList:         f.ProxyList,
	})
}

func retryPolicy(f pkgconfig.FetchConfig) fetch.RetryPolicy {
	return fetch.RetryPolicy{
		MaxTries:   f.MaxTries,
		BaseDelay:  f.BackoffBase,
		Multiplier: f.BackoffMultiplier,
		Jitter:     f.Jitter,
	}
}

func newNotifier(cfg pkgconfig.TelegramConfig) interfaces.Notifier {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil
	}
	n, err := notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID)
	if err != nil {
		slog.Warn("Telegram notifier disabled", "error", err)
		return nil
	}
	return n
}

func printRunSummary(summary pipeline.RunSummary, games []models.Game) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(fmt.Sprintf("Run %s (%s)", summary.RunID, summary.Mode))
	tw.AppendHeader(table.Row{"Game", "Draws", "Errors"})
	for _, g := range games {
		errs := 0
		for _, e := range summary.Errors {
			if export.ErrorGame(e) == g {
				errs++
			}
		}
		tw.AppendRow(table.Row{g, summary.CountsByGame[g], errs})
	}
	tw.AppendFooter(table.Row{"Written", strings.Join(summary.Written, ", "), ""})
	if len(summary.Skipped) > 0 {
		tw.AppendFooter(table.Row{"Kept", strings.Join(summary.Skipped, ", "), ""})
	}
	tw.Render()

	for _, e := range summary.Errors {
		fmt.Fprintln(os.Stderr, "error:", e)
	}
}

func printSources(opts *options) error {
	appConfig, games, err := loadConfig(opts, nil)
	if err != nil {
		return err
	}
	catalog, err := sources.Load(appConfig.SourcesFile)
	if err != nil {
		return err
	}

	window := models.YearWindow(opts.year)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Game", "#", "Variant", "Mode", "Accept", "URL"})
	for _, g := range games {
		for i, v := range catalog.Expand(g, window) {
			tw.AppendRow(table.Row{g, i + 1, v.ID, v.Mode, v.Accept, v.URL})
		}
	}
	tw.AppendFooter(table.Row{"", "", "strategies", strings.Join(payload.AvailableNames(), ", "), "", ""})
	tw.Render()
	return nil
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal, stopping run...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
}

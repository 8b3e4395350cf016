package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"jamabandi/internal/dispatcher"
	"jamabandi/pkg/auth"
	"jamabandi/pkg/config"
	"jamabandi/pkg/logger"
	"jamabandi/pkg/portal"
	"jamabandi/pkg/progress"
	"jamabandi/pkg/ratelimit"
	"jamabandi/pkg/retry"
	"jamabandi/pkg/storage"
	"jamabandi/pkg/ui"
	"jamabandi/pkg/update"
)

var (
	// Scrape command flags
	cookieValue  string
	rangeStart   int
	rangeEnd     int
	workerCount  int
	outputDir    string
	districtCode string
	tehsilCode   string
	villageCode  string
	periodValue  string
	convertAfter bool
	pdfBackend   string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Download nakal documents for a khewat range",
	Long: `Download nakal documents for an inclusive khewat number range.

A valid portal session cookie is required, supplied through one of:
  - The --cookie flag
  - Stored credentials (use 'jamabandi auth set' to store)
  - The JAMABANDI_SESSION_COOKIE environment variable
  - The configuration file

Progress is persisted after every few downloads, so an interrupted run
resumes where it left off. Khewats already downloaded are skipped.`,
	Example: `  # Download khewats 1-100 with defaults from config
  jamabandi scrape --cookie "ABC123..."

  # Download a specific range with 4 workers
  jamabandi scrape --start 500 --end 1200 --workers 4

  # Resume an interrupted run (same command, completed khewats skip)
  jamabandi scrape --start 500 --end 1200 --workers 4

  # Download and convert to PDF in one go
  jamabandi scrape --start 1 --end 50 --convert`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runScrape(cmd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&cookieValue, "cookie", "", "portal session cookie value")
	scrapeCmd.Flags().IntVar(&rangeStart, "start", 0, "first khewat number (default from config)")
	scrapeCmd.Flags().IntVar(&rangeEnd, "end", 0, "last khewat number, inclusive (default from config)")
	scrapeCmd.Flags().IntVarP(&workerCount, "workers", "w", 0, "number of concurrent workers (1-8)")
	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	scrapeCmd.Flags().StringVar(&districtCode, "district", "", "district code")
	scrapeCmd.Flags().StringVar(&tehsilCode, "tehsil", "", "tehsil code")
	scrapeCmd.Flags().StringVar(&villageCode, "village", "", "village code")
	scrapeCmd.Flags().StringVar(&periodValue, "period", "", "jamabandi period, e.g. 2022-2023")
	scrapeCmd.Flags().BoolVar(&convertAfter, "convert", false, "convert downloaded HTML to PDF after the run")
	scrapeCmd.Flags().StringVar(&pdfBackend, "pdf-backend", "", "PDF backend (wkhtmltopdf, native)")
}

func runScrape(cmd *cobra.Command) {
	cfg, err := config.Load(configFile)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	applyScrapeFlags(cfg)

	if err := cfg.Validate(); err != nil {
		ui.PrintError("Invalid configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("jamabandi downloader starting")

	update.NewChecker(version, log).CheckAsync(func(info update.Info) {
		ui.PrintWarning(fmt.Sprintf("Update available: %s -> %s (%s)",
			info.CurrentVersion, info.LatestVersion, info.ReleaseURL))
	})

	cookie := resolveCookie(cfg, log)

	store, err := storage.NewManager(cfg.Output.DownloadsDir)
	if err != nil {
		ui.PrintError("Failed to prepare output directory", err.Error())
		os.Exit(1)
	}

	tracker, err := progress.NewTracker(cfg.Output.ProgressFile, cfg.Output.SaveInterval, log)
	if err != nil {
		ui.PrintError("Failed to open progress file", err.Error())
		os.Exit(1)
	}
	if err := tracker.SetConfig(progress.TargetInfo{
		District: cfg.Target.DistrictCode,
		Tehsil:   cfg.Target.TehsilCode,
		Village:  cfg.Target.VillageCode,
		Period:   cfg.Target.Period,
	}); err != nil {
		ui.PrintError("Failed to record target in progress file", err.Error())
		os.Exit(1)
	}

	// Reconcile the progress file with files already on disk, so a
	// deleted or stale progress file does not cause re-downloads.
	for _, khewat := range tracker.GetPending(cfg.Range.Start, cfg.Range.End) {
		if store.IsDownloaded(khewat) {
			_ = tracker.MarkComplete(khewat, 0)
		}
	}

	pending := tracker.GetPending(cfg.Range.Start, cfg.Range.End)
	ui.PrintInfo("Portal", cfg.FormURL())
	ui.PrintInfo("Range", fmt.Sprintf("%d-%d", cfg.Range.Start, cfg.Range.End))
	ui.PrintInfo("Pending", fmt.Sprintf("%d", len(pending)))
	ui.PrintInfo("Workers", fmt.Sprintf("%d", cfg.Workers.Count))
	ui.PrintInfo("Output", cfg.Output.DownloadsDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := portal.Target{
		DistrictCode: cfg.Target.DistrictCode,
		TehsilCode:   cfg.Target.TehsilCode,
		VillageCode:  cfg.Target.VillageCode,
		Period:       cfg.Target.Period,
	}

	newFetcher := func(workerID int) (dispatcher.RecordFetcher, error) {
		client, err := portal.NewClient(cfg.Portal.BaseURL, cfg.Portal.CookieName, cookie, cfg.Portal.Timeout, log)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", workerID, err)
		}
		client.SetHeader("User-Agent", cfg.Portal.UserAgent)
		return portal.NewFormSession(client, target, store, cfg.Portal.FormPath, cfg.Output.DownloadsDir, cfg.Portal.PostbackSleep, log), nil
	}
	newLimiter := func() ratelimit.Limiter {
		return ratelimit.NewAdaptive(cfg.RateLimit.MinDelay, cfg.RateLimit.MaxDelay, cfg.RateLimit.WindowSize)
	}

	monitor := progress.NewMonitor(len(pending), time.Minute)
	d := dispatcher.New(cfg.Workers.Count, newFetcher, newLimiter, tracker, monitor, log)
	result := d.Run(ctx, pending)

	for _, workerErr := range result.WorkerErrors {
		ui.PrintWarning("Worker error", workerErr.Error())
	}
	if result.SessionExpired {
		ui.PrintWarning("Session expired during the run; remaining khewats left pending")
		ui.PrintInfo("Next step", "Refresh the cookie and run the same command to resume")
	}

	// Final pass: replay transient failures on a fresh session.
	if ctx.Err() == nil && !result.SessionExpired {
		retryFailures(ctx, cfg, tracker, newFetcher, newLimiter, log)
	}

	if err := tracker.Flush(); err != nil {
		log.WithError(err).Error("failed to flush progress file")
	}

	summary := tracker.GetSummary(cfg.Range.Start, cfg.Range.End)
	ui.PrintRunSummary(summary, tracker.Failed())
	fmt.Println(monitor.Format())

	if convertAfter {
		runConvertPass(ctx, cfg.Output.DownloadsDir, cfg.Workers.Count, log)
	}

	if summary.Failed > 0 || summary.Pending > 0 {
		os.Exit(1)
	}
}

// applyScrapeFlags folds command-line flags into the loaded configuration.
// Flags win over both the config file and the environment.
func applyScrapeFlags(cfg *config.Config) {
	if cookieValue != "" {
		cfg.Portal.SessionCookie = cookieValue
	}
	if rangeStart > 0 {
		cfg.Range.Start = rangeStart
	}
	if rangeEnd > 0 {
		cfg.Range.End = rangeEnd
	}
	if workerCount > 0 {
		cfg.Workers.Count = workerCount
	}
	cfg.Workers.Count = cfg.ClampWorkers(cfg.Workers.Count)
	if outputDir != "" {
		cfg.Output.DownloadsDir = outputDir
	}
	if districtCode != "" {
		cfg.Target.DistrictCode = districtCode
	}
	if tehsilCode != "" {
		cfg.Target.TehsilCode = tehsilCode
	}
	if villageCode != "" {
		cfg.Target.VillageCode = villageCode
	}
	if periodValue != "" {
		cfg.Target.Period = periodValue
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

// resolveCookie finds a session cookie, preferring the flag and config,
// then falling back to the credential store chain. Exits when none is found.
func resolveCookie(cfg *config.Config, log logger.Logger) string {
	if cfg.Portal.SessionCookie != "" {
		return cfg.Portal.SessionCookie
	}

	credManager, err := auth.NewManager()
	if err == nil {
		if cred, err := credManager.RetrieveDefault(); err == nil {
			log.WithField("profile", cred.Profile).Info("using stored session cookie")
			ui.PrintInfo("Using stored session", cred.Profile)
			return cred.Cookie
		}
	}

	log.Error("no session cookie found")
	ui.PrintError("No portal session cookie found", "")
	fmt.Println("\nTo store a cookie securely, run:")
	fmt.Println("  jamabandi auth set")
	fmt.Println("\nOr pass it directly:")
	fmt.Println("  jamabandi scrape --cookie <value>")
	fmt.Println("\nOr set an environment variable:")
	fmt.Println("  export JAMABANDI_SESSION_COOKIE=<value>")
	os.Exit(1)
	return ""
}

// retryFailures replays transient failures from this run through a single
// dedicated session with its own rate limiter.
func retryFailures(ctx context.Context, cfg *config.Config, tracker *progress.Tracker, newFetcher dispatcher.FetcherFactory, newLimiter dispatcher.LimiterFactory, log logger.Logger) {
	failed := tracker.Failed()
	if len(failed) == 0 {
		return
	}

	manager := retry.NewManager(cfg.Retry.MaxRetries, cfg.Retry.RetryDelay, log)
	for khewat, reason := range failed {
		manager.RecordFailure(khewat, reason)
	}
	if len(manager.GetRetryable()) == 0 {
		return
	}

	fetcher, err := newFetcher(0)
	if err != nil {
		log.WithError(err).Error("retry pass: failed to build session")
		return
	}
	limiter := newLimiter()

	result := manager.RetryAll(ctx, func(khewat int) error {
		if fetcher.Expired() {
			return portal.ErrSessionExpired
		}
		if !fetcher.Ready() {
			if err := fetcher.InitializeForm(); err != nil {
				return err
			}
			if err := fetcher.SetupFormSelections(); err != nil {
				return err
			}
		}
		limiter.Wait()
		res := fetcher.FetchRecord(khewat)
		if res.StatusCode != 0 {
			limiter.RecordResponse(res.StatusCode, res.Elapsed)
		}
		if res.Outcome == portal.OutcomeSaved {
			_ = tracker.MarkComplete(khewat, res.Bytes)
			return nil
		}
		reason := res.Error
		if reason == "" {
			reason = "download failed"
		}
		_ = tracker.MarkFailed(khewat, reason)
		return fmt.Errorf("%s", reason)
	})

	if result.Retried > 0 {
		ui.PrintInfo("Retry pass", fmt.Sprintf("%d retried, %d recovered", result.Retried, result.Succeeded))
	}
}

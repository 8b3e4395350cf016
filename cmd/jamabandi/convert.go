package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"jamabandi/pkg/config"
	"jamabandi/pkg/logger"
	"jamabandi/pkg/pdf"
	"jamabandi/pkg/storage"
	"jamabandi/pkg/ui"
)

var (
	// Convert command flags
	convertInput   string
	convertWorkers int
	convertBackend string
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert downloaded HTML nakals to PDF",
	Long: `Convert downloaded HTML nakal documents to PDF.

Conversion is fully offline and touches nothing on the portal, so it
can run at any time after a scrape. Files that already have a PDF
sibling are skipped.

Two backends are available: wkhtmltopdf (preferred when installed,
faithful rendering) and a pure-Go table renderer that needs no
external tools.`,
	Example: `  # Convert everything under the default downloads directory
  jamabandi convert

  # Convert a specific directory with 4 workers
  jamabandi convert --input ./downloads --workers 4

  # Force the pure-Go backend
  jamabandi convert --pdf-backend native`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runConvert(cmd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "directory holding downloaded HTML files")
	convertCmd.Flags().IntVarP(&convertWorkers, "workers", "w", 0, "number of concurrent conversions")
	convertCmd.Flags().StringVar(&convertBackend, "pdf-backend", "", "PDF backend (wkhtmltopdf, native)")
}

func runConvert(cmd *cobra.Command) {
	cfg, err := config.Load(configFile)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if convertInput != "" {
		cfg.Output.DownloadsDir = convertInput
	}
	workers := cfg.Workers.Count
	if convertWorkers > 0 {
		workers = convertWorkers
	}
	workers = cfg.ClampWorkers(workers)
	if convertBackend != "" {
		pdfBackend = convertBackend
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !runConvertPass(ctx, cfg.Output.DownloadsDir, workers, log) {
		os.Exit(1)
	}
}

// runConvertPass converts every HTML file in dir that lacks a PDF sibling.
// Returns false when any conversion failed.
func runConvertPass(ctx context.Context, dir string, workers int, log logger.Logger) bool {
	store, err := storage.NewManager(dir)
	if err != nil {
		ui.PrintError("Failed to open downloads directory", err.Error())
		return false
	}

	paths, err := store.PendingConversions()
	if err != nil {
		ui.PrintError("Failed to scan for pending conversions", err.Error())
		return false
	}
	if len(paths) == 0 {
		ui.PrintSuccess("Nothing to convert: all downloads already have PDFs")
		return true
	}

	backend := pdf.Detect(pdfBackend, log)
	ui.PrintInfo("PDF backend", backend.Name())
	ui.PrintInfo("Files to convert", fmt.Sprintf("%d", len(paths)))

	converter := pdf.NewConverter(backend, workers, log)
	result := converter.ConvertAll(ctx, paths)

	ui.PrintInfo("Converted", fmt.Sprintf("%d", result.Converted))
	if result.Skipped > 0 {
		ui.PrintInfo("Skipped", fmt.Sprintf("%d", result.Skipped))
	}
	if result.Failed > 0 {
		ui.PrintWarning("Failed conversions", fmt.Sprintf("%d", result.Failed))
		for _, f := range result.FailedFiles {
			fmt.Printf("  - %s\n", f)
		}
		return false
	}

	ui.PrintSuccess(fmt.Sprintf("Converted %d files in %s", result.Converted, result.Elapsed.Round(10*time.Millisecond)))
	return true
}

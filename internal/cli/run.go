/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full benchmark over the configured image set.

REQUIREMENTS:
  User-specified:
  - Run N trials per image at concurrency 1 or 2.
  - Specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config, then validate before touching hardware.
  - Setup failures (login, meter, sinks) abort; per-trial failures do not.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine (Runner), internal/energy.Open, internal/session.Login,
    internal/archive
  - Uses: internal/config, internal/output

ERROR HANDLING:
  - Returns error if config load, setup or sink creation fails.
  - Sink and archive write failures are logged; results already on disk stay.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Validate -> Setup -> Runner.Run -> Close.

USAGE:
  crowdcount-bench run --endpoint http://gateway:8080 --trials 5 --concurrency 2

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/engine/runner.go

MAINTENANCE:
  - Update when adding new CLI overrides or sinks.
*/

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/daryltucker/crowdcount-bench/internal/archive"
	"github.com/daryltucker/crowdcount-bench/internal/config"
	"github.com/daryltucker/crowdcount-bench/internal/energy"
	"github.com/daryltucker/crowdcount-bench/internal/engine"
	"github.com/daryltucker/crowdcount-bench/internal/model"
	"github.com/daryltucker/crowdcount-bench/internal/output"
	"github.com/daryltucker/crowdcount-bench/internal/session"
)

var (
	endpointOverride    string
	functionOverride    string
	imageDirOverride    string
	imagesOverride      []string
	trialsOverride      int
	concurrencyOverride int
	sourceOverride      string
	serialPortOverride  string
	outputOverride      string
	xlsxOverride        string
	skipLogin           bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark",
	Long: `Executes the benchmark against the crowd-counting function.
For every image, each trial:
1. Samples the energy meter.
2. Sends one request (or two concurrent requests with --concurrency 2).
3. Samples the energy meter again once every request has returned.

A failed request fails only its trial. Per-image time and energy statistics
are written to CSV, JSON Lines and (with --xlsx) an Excel workbook.`,
	Example: `  # Run with defaults (uses crowdcount_bench.yaml and .env)
  crowdcount-bench run

  # Dual-request trials against a specific gateway
  crowdcount-bench run --endpoint http://10.0.0.5:8080 --concurrency 2

  # Only two images, RAPL counters instead of the serial meter
  crowdcount-bench run --images 0p0f_0.jpg,3p2f_0.jpg --energy-source rapl

  # Append to a workbook, results in ./results
  crowdcount-bench run --xlsx results.xlsx -o ./results`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2. Overrides
		flags := cmd.Flags()
		if flags.Changed("endpoint") {
			cfg.Endpoint = endpointOverride
		}
		if flags.Changed("function") {
			cfg.Function = functionOverride
		}
		if flags.Changed("image-dir") {
			cfg.ImageDir = imageDirOverride
		}
		if len(imagesOverride) > 0 {
			cfg.Images = imagesOverride
		}
		if flags.Changed("trials") {
			cfg.Trials = trialsOverride
		}
		if flags.Changed("concurrency") {
			cfg.Concurrency = concurrencyOverride
		}
		if flags.Changed("energy-source") {
			cfg.Energy.Source = sourceOverride
		}
		if flags.Changed("serial-port") {
			cfg.Energy.SerialPort = serialPortOverride
		}
		if outputOverride != "" {
			cfg.OutputDir = outputOverride
		}
		if flags.Changed("xlsx") {
			cfg.XLSXFile = xlsxOverride
		}
		if skipLogin {
			cfg.LoginScript = ""
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// 3. Execution
		return runBenchmark(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func runBenchmark(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}

	if cfg.LoginScript != "" {
		if err := session.Login(ctx, cfg.LoginScript, cfg.LoginSudo); err != nil {
			return err
		}
	}

	meter, err := energy.Open(ctx, energyOptions(cfg))
	if err != nil {
		return fmt.Errorf("failed to open energy source %s: %w", cfg.Energy.Source, err)
	}
	defer meter.Close()

	retry := output.RetryPolicy{MaxAttempts: cfg.MaxRetries, Delay: cfg.RetryDelay, Backoff: 2}
	sinks, files, err := openSinks(ctx, cfg, retry)
	if err != nil {
		return err
	}

	url := engine.FunctionURL(cfg.Endpoint, cfg.Function)
	runner := &engine.Runner{
		Executor:    engine.NewClient(url, cfg.RequestTimeout),
		Sampler:     meter,
		Sink:        sinks,
		Endpoint:    url,
		Trials:      cfg.Trials,
		Concurrency: cfg.Concurrency,
		Pause:       cfg.Pause,
	}

	runs, runErr := runner.Run(ctx, cfg.ImagePaths())
	if err := sinks.Close(); err != nil {
		output.Logger.Error("Failed to close result files", "error", err)
	}
	printSummary(out, runs)

	if cfg.Archive.Enabled {
		archiveResults(context.WithoutCancel(ctx), cfg, retry, runner.RunID, files)
	}

	if runErr != nil {
		return fmt.Errorf("benchmark interrupted after %d images: %w", len(runs), runErr)
	}
	output.Logger.Info("Benchmark complete", "run_id", runner.RunID, "images", len(runs), "output_dir", cfg.OutputDir)
	return nil
}

func energyOptions(cfg *config.Config) energy.Options {
	return energy.Options{
		Kind:        cfg.Energy.Source,
		SerialPort:  cfg.Energy.SerialPort,
		BaudRate:    cfg.Energy.BaudRate,
		CounterPath: cfg.Energy.CounterPath,
	}
}

// openSinks creates every configured result file and the optional shared
// spreadsheet. It returns the sinks and the local paths they write to.
func openSinks(ctx context.Context, cfg *config.Config, retry output.RetryPolicy) (output.MultiSink, []string, error) {
	var sinks output.MultiSink
	var files []string
	fail := func(err error) (output.MultiSink, []string, error) {
		_ = sinks.Close()
		return nil, nil, err
	}

	if cfg.CSVFile != "" {
		trialPath, summaryPath := cfg.OutputPath(cfg.CSVFile), cfg.OutputPath(cfg.SummaryFile)
		w, err := output.NewCSVWriter(trialPath, summaryPath)
		if err != nil {
			return fail(fmt.Errorf("failed to init CSV writer at %s: %w", trialPath, err))
		}
		sinks = append(sinks, w)
		files = append(files, trialPath, summaryPath)
	}

	if cfg.JSONFile != "" {
		path := cfg.OutputPath(cfg.JSONFile)
		w, err := output.NewJSONWriter(path)
		if err != nil {
			return fail(fmt.Errorf("failed to init JSON writer at %s: %w", path, err))
		}
		sinks = append(sinks, w)
		files = append(files, path)
	}

	if cfg.XLSXFile != "" {
		path := cfg.OutputPath(cfg.XLSXFile)
		w, err := output.NewWorkbookWriter(path, cfg.Trials, retry)
		if err != nil {
			return fail(fmt.Errorf("failed to init workbook at %s: %w", path, err))
		}
		sinks = append(sinks, w)
		files = append(files, path)
	}

	if cfg.Sheets.SpreadsheetID != "" {
		values, err := output.OpenGoogleSheet(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.Sheet)
		if err != nil {
			return fail(fmt.Errorf("failed to open spreadsheet %s: %w", cfg.Sheets.SpreadsheetID, err))
		}
		sinks = append(sinks, output.NewSheetsWriter(values, cfg.Trials, retry))
	}

	return sinks, files, nil
}

func archiveResults(ctx context.Context, cfg *config.Config, retry output.RetryPolicy, runID string, files []string) {
	a, err := archive.New(cfg.Archive, retry)
	if err != nil {
		output.Logger.Error("Archive unavailable", "error", err)
		return
	}
	if _, err := a.Upload(ctx, runID, files...); err != nil {
		output.Logger.Error("Failed to archive results", "bucket", cfg.Archive.Bucket, "error", err)
	}
}

func printSummary(out io.Writer, runs []model.ImageRun) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tRECORDED\tFAILED\tAVG TIME (s)\tSTD DEV (s)\tAVG ENERGY (mWh)\tENERGY/REQ (mWh)")
	for _, r := range runs {
		s := r.Summary
		if s == nil {
			fmt.Fprintf(tw, "%s\t0\t%d\t-\t-\t-\t-\n", r.Image, len(r.Trials))
			continue
		}
		avgEnergy := "-"
		if s.Energy != nil {
			avgEnergy = fmt.Sprintf("%.4f", s.Energy.Mean)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.4f\t%.4f\t%s\t%.4f\n",
			r.Image, s.Recorded, s.Failed, s.Time.Mean, s.Time.StdDev, avgEnergy, s.EnergyPerRequest)
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&endpointOverride, "endpoint", "", "OpenFaaS gateway URL (or full function URL)")
	runCmd.Flags().StringVar(&functionOverride, "function", "", "Function name appended as /function/<name>")
	runCmd.Flags().StringVar(&imageDirOverride, "image-dir", "", "Directory holding the test images")
	runCmd.Flags().StringSliceVar(&imagesOverride, "images", nil, "Comma-separated list of image files (overrides config)")
	runCmd.Flags().IntVarP(&trialsOverride, "trials", "n", 5, "Trials per image")
	runCmd.Flags().IntVarP(&concurrencyOverride, "concurrency", "c", 1, "Concurrent requests per trial (1 or 2)")
	runCmd.Flags().StringVar(&sourceOverride, "energy-source", "", "Energy source: serial, rapl or none")
	runCmd.Flags().StringVar(&serialPortOverride, "serial-port", "", "Serial device of the power meter")
	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (CSV/JSON/XLSX)")
	runCmd.Flags().StringVar(&xlsxOverride, "xlsx", "", "Workbook to append result blocks to")
	runCmd.Flags().BoolVar(&skipLogin, "skip-login", false, "Do not run the gateway login script")
}

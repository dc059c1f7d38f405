package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"autohawk/internal/config"
	"autohawk/internal/logging"
	"autohawk/internal/search"
)

type searchFlags struct {
	carMake     string
	model       string
	yearMin     string
	yearMax     string
	zip         string
	radius      string
	noAccidents bool

	headless   bool
	driverPath string
	maxPages   int
	maxResults int
	timeout    time.Duration
	output     string
	skipCache  bool
}

var (
	configPath string
	logLevel   string
	flags      searchFlags
)

var rootCmd = &cobra.Command{
	Use:           "autohawk --make <make> --model <model> --year_min <year> --year_max <year> --zip <zip>",
	Short:         "autohawk searches used-car listings through a real browser.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSearch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to the YAML configuration file.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "warn", "Log level written to stderr (debug, info, warn, error).")

	f := rootCmd.Flags()
	f.StringVar(&flags.carMake, "make", "", "Car make, e.g. Toyota.")
	f.StringVar(&flags.model, "model", "", "Car model, e.g. Camry.")
	f.StringVar(&flags.yearMin, "year_min", "", "Earliest model year.")
	f.StringVar(&flags.yearMax, "year_max", "", "Latest model year.")
	f.StringVar(&flags.zip, "zip", "", "Five digit zip code to search around.")
	f.StringVar(&flags.radius, "radius", "50", "Search radius in miles.")
	f.BoolVar(&flags.noAccidents, "no_accidents", false, "Only show cars with no reported accidents.")

	f.BoolVar(&flags.headless, "headless", true, "Run the browser without a window.")
	f.StringVar(&flags.driverPath, "driver_path", "", "Path to the Chrome/Chromium binary.")
	f.IntVar(&flags.maxPages, "max_pages", 0, "Maximum result pages to visit (0 uses the configured limit).")
	f.IntVar(&flags.maxResults, "max_results", 0, "Maximum listings to collect (0 uses the configured limit).")
	f.DurationVar(&flags.timeout, "timeout", 0, "Overall search timeout, e.g. 2m (0 uses the configured limit).")
	f.StringVar(&flags.output, "output", "table", "Output format: table or json.")
	f.BoolVar(&flags.skipCache, "skip_cache", false, "Ignore cached results for this search.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	params, err := flags.parameters()
	if err != nil {
		return err
	}
	if err := checkOutput(flags.output); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logging.CloseLogging()

	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flags.headless
	}
	if flags.driverPath != "" {
		cfg.Browser.DriverPath = flags.driverPath
	}

	cache, _, closeCache := newCache(cmd.Context(), cfg)
	defer closeCache()

	out := cmd.OutOrStdout()
	printParameters(out, params)
	fmt.Fprintln(out, "Starting search with the above parameters...")

	orchestrator := search.NewOrchestrator(search.ConfigFrom(cfg), search.WithCache(cache))
	result, err := orchestrator.SearchWith(cmd.Context(), params, search.Overrides{
		MaxPages:   flags.maxPages,
		MaxResults: flags.maxResults,
		Timeout:    flags.timeout,
		SkipCache:  flags.skipCache,
	})
	if result != nil {
		if printErr := printResult(out, result, flags.output); printErr != nil {
			return printErr
		}
	}
	return err
}

// loadConfig reads the config file and routes logs to stderr so they never
// interleave with the result table on stdout
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.Flags().Changed("log_level") || os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = logLevel
	}
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stderr"
	cfg.Logging.Adapters = nil

	if err := logging.InitializeLogging(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/linktracker"
	"github.com/driveline/jobfeed/internal/models"
	"github.com/driveline/jobfeed/internal/pipeline"
	"github.com/driveline/jobfeed/internal/scrapers"
	llmservice "github.com/driveline/jobfeed/internal/services/llm"
	"github.com/driveline/jobfeed/internal/storage"
	badgerstore "github.com/driveline/jobfeed/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths

	location       = flag.String("location", "", "Search location, e.g. \"Dallas, TX\" (required)")
	market         = flag.String("market", "", "Market label (defaults to location)")
	customLocation = flag.Bool("custom-location", false, "Treat the location as a custom market label")
	mode           = flag.String("mode", "sample", "Search mode: test, mini, sample, medium, large, full")
	terms          = flag.String("terms", "", "Comma-separated search terms")
	routeFilter    = flag.String("route-filter", "both", "Route filter: both, local, otr")
	searchSources  = flag.String("sources", "indeed,google", "Comma-separated sources: indeed, google")
	strategy       = flag.String("strategy", "balanced", "Search strategy: balanced, indeed_first, google_first")
	classifierType = flag.String("classifier", "cdl", "Classifier type: cdl, pathway")
	radius         = flag.Int("radius", 0, "Search radius in miles")
	noExperience   = flag.Bool("no-experience", false, "Pass the no-experience flag to providers")

	memoryOnly      = flag.Bool("memory-only", false, "Serve the search purely from the persistent store")
	forceFresh      = flag.Bool("force-fresh", false, "Skip the credit controller and scrape the full target")
	forceFreshClass = flag.Bool("force-fresh-classification", false, "Skip the classification reuse pre-pass")
	forceMemory     = flag.Bool("force-memory-only", false, "Force a full bypass with whatever memory holds")
	forceLinks      = flag.Bool("force-links", false, "Regenerate tracked URLs even when present")

	outputPath   = flag.String("output", "", "Write the result JSON to this path (default: stdout summary only)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Jobfeed version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	if *location == "" {
		fmt.Fprintln(os.Stderr, "Error: -location is required")
		flag.Usage()
		os.Exit(2)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("jobfeed.toml"); err == nil {
			configFiles = append(configFiles, "jobfeed.toml")
		}
	}

	// Startup order: config -> logger -> banner -> storage -> services
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	manager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
		os.Exit(1)
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// API keys in .env land in the KV store so ResolveAPIKey can find them
	if badgerManager, ok := manager.(*badgerstore.Manager); ok {
		badgerManager.LoadEnvFile(ctx, ".env")
	}

	generator := llmservice.NewService(&config.Claude, &config.Gemini, &config.LLM, manager.KeyValueStorage(), logger)
	defer generator.Close()

	scraperClients := map[string]interfaces.ScraperClient{
		models.SourceIndeed: scrapers.NewOutscraperClient(&config.Scrapers.Outscraper, config.Pipeline.CostPerIndeedJob, manager.KeyValueStorage(), logger),
		models.SourceGoogle: scrapers.NewGoogleJobsClient(&config.Scrapers.Google, config.Pipeline.CostPerGoogleQuery, manager.KeyValueStorage(), logger),
	}
	tracker := linktracker.NewClient(&config.LinkTracker, manager.KeyValueStorage(), logger)

	orchestrator := pipeline.NewOrchestrator(config, manager, scraperClients, tracker, generator, logger)

	var result *models.PipelineResult
	if *memoryOnly {
		result = orchestrator.RunMemoryOnlySearch(ctx, &models.MemorySearchRequest{
			Location:    *location,
			Market:      *market,
			SearchTerms: splitList(*terms),
			Limit:       models.ModeLimits[*mode],
			RouteFilter: *routeFilter,
		})
	} else {
		result = orchestrator.RunCompletePipeline(ctx, &models.SearchRequest{
			Location:       *location,
			Market:         *market,
			CustomLocation: *customLocation,
			Mode:           *mode,
			SearchTerms:    splitList(*terms),
			RouteFilter:    *routeFilter,
			SearchSources:  splitList(*searchSources),
			SearchStrategy: *strategy,
			ClassifierType: *classifierType,
			Radius:         *radius,
			NoExperience:   *noExperience,
			FilterSettings: models.DefaultFilterSettings(),

			ForceFresh:               *forceFresh,
			ForceFreshClassification: *forceFreshClass,
			ForceMemoryOnly:          *forceMemory,
			ForceLinkGeneration:      *forceLinks,
		})
	}

	if *outputPath != "" {
		if err := writeResult(*outputPath, result); err != nil {
			logger.Error().Err(err).Str("path", *outputPath).Msg("Failed to write result file")
		}
	}

	printSummary(result)

	if result.Status != "completed" {
		os.Exit(1)
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeResult(path string, result *models.PipelineResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(result *models.PipelineResult) {
	fmt.Printf("\nRun %s: %s\n", result.RunID, result.Status)
	if result.Error != "" {
		fmt.Printf("  error: %s\n", result.Error)
	}
	fmt.Printf("  jobs: %d total, %d included, %d quality\n", result.TotalJobs, result.IncludedJobs, result.QualityJobs)
	fmt.Printf("  credit: %s (available %d, scraped target %d)\n", result.Credit.Type, result.Credit.AvailableQuality, result.Credit.ScrapeTarget)
	fmt.Printf("  cost: $%.4f total, memory efficiency %.1f%%\n", result.Cost.TotalCost, result.Cost.MemoryEfficiency)
	fmt.Printf("  time: %.1fs\n", result.ProcessingTimeSeconds)
	for _, warning := range result.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}

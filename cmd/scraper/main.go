package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/marketgrab/go-scrape-wildberries/catalog"
	"github.com/marketgrab/go-scrape-wildberries/config"
	"github.com/marketgrab/go-scrape-wildberries/models"
	"github.com/marketgrab/go-scrape-wildberries/pipeline"
	"github.com/marketgrab/go-scrape-wildberries/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("WB_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid WB_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("WB_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("WB_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	salesDefault := defaultCfg.WithSales
	if value, ok, err := config.EnvBool("WB_SALES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid WB_SALES: %v\n", err)
		os.Exit(1)
	} else if ok {
		salesDefault = value
	}

	mode := flag.String("mode", "category", "Query mode: category or search")
	queryValue := flag.String("query", "", "Category name/URL, or search keyword")
	maxPages := flag.Int("pages", pagesDefault, "Maximum result pages to fetch")
	delayMs := flag.Int("delay", 0, "Delay between requests (milliseconds)")
	timeoutSec := flag.Int("timeout", 10, "Per-request timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per page")
	retryBackoffMs := flag.Int("retry-backoff", 500, "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", 5000, "Maximum retry backoff (milliseconds)")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "csv", "Output format: csv, json, or dual")
	withSales := flag.Bool("sales", salesDefault, "Look up sold quantities per product")
	catalogCache := flag.String("catalog-cache", defaultCfg.CatalogCachePath, "Local cache path for the catalog menu")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if *queryValue == "" {
		fmt.Fprintln(os.Stderr, "missing -query: pass a category name/URL or a search keyword")
		os.Exit(1)
	}
	if *mode != string(models.ModeCategory) && *mode != string(models.ModeSearch) {
		fmt.Fprintf(os.Stderr, "invalid -mode %q: must be category or search\n", *mode)
		os.Exit(1)
	}

	cfg := buildConfigFromFlags(defaultCfg, *maxPages, *delayMs, *timeoutSec, *maxRetries, *retryBackoffMs, *retryBackoffMaxMs, *outputFile, *outputFormat, *withSales, *catalogCache, *metricsAddr, *verbose)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, keeping records collected so far")
	}()

	query, err := buildQuery(cfg, models.QueryMode(*mode), *queryValue)
	if err != nil {
		slog.Error("query rejected", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := scraper.New(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting scrape",
		slog.String("mode", *mode),
		slog.String("query", *queryValue),
		slog.Int("max_pages", cfg.MaxPages),
	)

	result, runErr := s.Collect(ctx, query)
	if result == nil {
		// Fatal: the platform rejected the query. No output file is produced.
		slog.Error("scrape aborted", slog.Any("error", runErr))
		os.Exit(1)
	}

	if cfg.WithSales && len(result.Products) > 0 {
		sales, err := scraper.NewSalesClient(cfg, s.Metrics)
		if err != nil {
			slog.Error("initialising sales client", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("looking up sold quantities", slog.Int("products", len(result.Products)))
		sales.Enrich(ctx, result.Products)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	p := pipeline.NewPipeline(writer)
	// A single worker keeps output rows in collection order.
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	if err := p.Process(result.Products); err != nil {
		slog.Error("submitting records", slog.Any("error", err))
	}
	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg.OutputFile)

	if runErr != nil {
		slog.Error("run ended early, output holds the records collected before the failure",
			slog.Any("error", runErr))
		os.Exit(1)
	}
}

func buildConfigFromFlags(cfg *config.Config, maxPages, delayMs, timeoutSec, maxRetries, retryBackoffMs, retryBackoffMaxMs int, outputFile, outputFormat string, withSales bool, catalogCache, metricsAddr string, verbose bool) *config.Config {
	cfg.MaxPages = maxPages
	cfg.Delay = time.Duration(delayMs) * time.Millisecond
	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	cfg.MaxRetries = maxRetries
	cfg.RetryBackoff = time.Duration(retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(retryBackoffMaxMs) * time.Millisecond
	cfg.OutputFile = outputFile
	cfg.OutputFormat = strings.ToLower(outputFormat)
	cfg.WithSales = withSales
	cfg.CatalogCachePath = catalogCache
	cfg.MetricsAddr = metricsAddr
	cfg.Verbose = verbose
	return cfg
}

// buildQuery resolves the user input to an immutable run query. Category mode
// needs the catalog menu to translate a name or URL to shard coordinates.
func buildQuery(cfg *config.Config, mode models.QueryMode, value string) (models.Query, error) {
	if mode == models.ModeSearch {
		return models.Query{Mode: mode, Value: value, PageSize: cfg.PageSize}, nil
	}

	source := catalog.NewSource(cfg)
	categories, err := source.Load()
	if err != nil {
		return models.Query{}, err
	}

	category, err := catalog.Resolve(categories, value)
	if err != nil {
		return models.Query{}, err
	}

	slog.Info("category resolved",
		slog.String("name", category.Name),
		slog.String("shard", category.Shard),
	)
	return models.Query{
		Mode:     mode,
		Value:    category.Name,
		Shard:    category.Shard,
		Filter:   category.Filter,
		PageSize: cfg.PageSize,
	}, nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.ScrapeResult, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Records:       %d\n", len(result.Products))
	fmt.Printf("  Pages fetched: %d\n", result.PagesFetched)
	fmt.Printf("  Skipped items: %d\n", result.SkippedItems)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Output file:   %s\n", outputFile)
	if result.FetchErr != nil {
		fmt.Printf("  Fetch error:   %v\n", result.FetchErr)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

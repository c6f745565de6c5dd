// -----------------------------------------------------------------------
// Last Modified: Friday, 31st July 2026
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/common"
	"github.com/ternarybob/focusedcrawl/internal/fetch"
	"github.com/ternarybob/focusedcrawl/internal/hostcoord"
	"github.com/ternarybob/focusedcrawl/internal/kv"
	"github.com/ternarybob/focusedcrawl/internal/llm"
	"github.com/ternarybob/focusedcrawl/internal/manager"
	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/publisher"
	"github.com/ternarybob/focusedcrawl/internal/scorer"
	"github.com/ternarybob/focusedcrawl/internal/search"
	"github.com/ternarybob/focusedcrawl/internal/shard"
	"github.com/ternarybob/focusedcrawl/internal/sharedstate"
	"github.com/ternarybob/focusedcrawl/internal/ssrf"
	"github.com/ternarybob/focusedcrawl/internal/store"
	"github.com/ternarybob/focusedcrawl/internal/worker"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	flagKeywords = flag.String("keywords", "", "Comma-separated keywords (crawl command)")
	flagSeeds    = flag.String("seeds", "", "Comma-separated seed URLs (crawl command)")
	flagQuery    = flag.String("query", "", "Search query (search command)")
	flagLimit    = flag.Int("limit", 10, "Result limit (search command)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("focusedcrawl version %s\n", common.GetVersion())
		os.Exit(0)
	}

	path := *configFile
	if path == "" {
		path = *configFileC
	}
	if path == "" {
		if _, err := os.Stat("focusedcrawl.toml"); err == nil {
			path = "focusedcrawl.toml"
		}
	}

	config, err := common.LoadFromFile(path)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Str("path", path).Msg("failed to load configuration")
		os.Exit(1)
	}

	logger := common.SetupLogger(config)
	defer common.Stop()

	common.PrintBanner(config, logger)

	cmd := "serve"
	if args := flag.Args(); len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		runServe(config, logger)
	case "crawl":
		runCrawl(config, logger)
	case "search":
		runSearch(config, logger)
	default:
		logger.Fatal().Str("command", cmd).Msg("unknown command (expected serve, crawl, or search)")
	}

	common.PrintShutdownBanner(logger)
}

// engine bundles every long-lived component wired from the same
// on-disk substrate, matching spec §4.11's shared-state model across
// the "user" and "default" Manager instances.
type engine struct {
	kvStore     *kv.Store
	llmFactory  *llm.Factory
	sharedState *sharedstate.State
	resultStore *store.Store
	writer      *shard.Writer
	buffer      *shard.TrainBuffer
	hosts       *hostcoord.Coordinator
	guard       *ssrf.Guard
	fetchPool   *fetch.Pool
	renderer    *fetch.Renderer
	scorer      *scorer.Scorer
	metrics     *models.Metrics

	userManager    *manager.Manager
	defaultManager *manager.Manager
	searcher       *search.Searcher
	publisher      *publisher.Publisher
}

// buildEngine wires every component named in spec §2, following the
// same dependency order as the data flow diagram: state/store/shard
// substrate first, then host coordination, then the browser pool and
// scorer that the worker pipeline depends on.
func buildEngine(config *common.Config, logger arbor.ILogger, withBrowser bool) (*engine, error) {
	e := &engine{metrics: &models.Metrics{}}

	kvStore, err := kv.Open(kv.Config{
		Path:           config.Storage.Badger.Path,
		ResetOnStartup: config.Storage.Badger.ResetOnStartup,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	e.kvStore = kvStore

	ctx := context.Background()
	llmFactory, err := llm.NewFactory(ctx, llm.Config{
		DefaultProvider:    llm.Provider(config.LLM.DefaultProvider),
		ClaudeModel:        config.Claude.Model,
		ClaudeMaxTokens:    config.Claude.MaxTokens,
		GeminiModel:        config.Gemini.Model,
		GeminiTemperature:  config.Gemini.Temperature,
		ClaudeAPIKeyEnvVar: "ANTHROPIC_API_KEY",
		GeminiAPIKeyEnvVar: "GEMINI_API_KEY",
	}, kvStore, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("no LLM provider configured; relevance fusion and article generation disabled")
	} else {
		e.llmFactory = llmFactory
	}

	e.sharedState = sharedstate.New(sharedStatePath(config), logger)

	e.resultStore = store.New(config.Crawler.MaxMemoryBytes)

	writer, err := shard.New(config.Storage.TrainDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open shard writer: %w", err)
	}
	e.writer = writer
	e.buffer = shard.NewTrainBuffer(writer, config.Crawler.BufferMaxSize)

	e.hosts = hostcoord.New()
	e.guard = ssrf.NewGuard()
	e.scorer = scorer.New(e.llmFactory, config.Crawler.OllamaModel, logger)

	if withBrowser {
		pool, err := fetch.NewPool(fetch.PoolConfig{
			Size:               config.Crawler.BrowserPoolSize,
			UserAgent:          config.Crawler.UserAgent,
			JavaScriptWaitTime: config.Crawler.JavaScriptWaitTime,
			RequestTimeout:     config.Crawler.RequestTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("start browser pool: %w", err)
		}
		e.fetchPool = pool
		e.renderer = fetch.NewRenderer(pool, config.Crawler.RequestTimeout, config.Crawler.JavaScriptWaitTime, logger)
	}

	deps := worker.Deps{
		SharedState:  e.sharedState,
		Store:        e.resultStore,
		Shards:       e.buffer,
		Hosts:        e.hosts,
		Guard:        e.guard,
		Renderer:     e.renderer,
		Scorer:       e.scorer,
		Metrics:      e.metrics,
		LLMFactory:   e.llmFactory,
		SummaryModel: config.Crawler.SummaryModel,
		Logger:       logger,
	}

	flushInterval := time.Duration(config.Crawler.FlushIntervalSeconds) * time.Second

	e.userManager = manager.New(manager.Config{
		Name:          "user",
		RunsAutoCrawl: false,
		WorkerCount:   config.Crawler.UserWorkers,
		MaxConcurrent: config.Crawler.UserMaxConcurrent,
		FlushInterval: flushInterval,
		RetentionDays: config.Crawler.RetentionDays,
	}, deps, e.writer, e.guard, logger)

	e.defaultManager = manager.New(manager.Config{
		Name:          "default",
		RunsAutoCrawl: config.Crawler.AutoEnabled,
		WorkerCount:   config.Crawler.AutoWorkers,
		MaxConcurrent: config.Crawler.AutoWorkers,
		FlushInterval: flushInterval,
		RetentionDays: config.Crawler.RetentionDays,
	}, deps, e.writer, e.guard, logger)

	e.searcher = search.New(e.resultStore, e.writer, config.Search.MaxScanDocs, logger)

	e.publisher = publisher.New(e.resultStore, e.llmFactory, nil, publisher.Config{
		Interval:        time.Duration(config.Publisher.IntervalSeconds) * time.Second,
		MinScore:        config.Publisher.MinScore,
		MaxPostsPerHour: config.Publisher.MaxPostsPerHour,
		FreshnessDays:   config.Search.FreshnessDays,
		SummaryModel:    config.Crawler.SummaryModel,
	}, logger)

	return e, nil
}

func sharedStatePath(config *common.Config) string {
	return config.Storage.SpoolDir + "/sharedstate.json"
}

func (e *engine) start() {
	e.userManager.Start(0, 0)
	e.defaultManager.Start(0, 0)
	e.publisher.Start(context.Background())
}

func (e *engine) shutdown(logger arbor.ILogger) {
	e.userManager.Stop()
	e.defaultManager.Stop()
	e.publisher.Stop()
	if e.fetchPool != nil {
		e.fetchPool.Shutdown()
	}
	if e.kvStore != nil {
		if err := e.kvStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("kv store close failed")
		}
	}
}

// runServe wires the full engine and blocks until an interrupt signal,
// the long-running mode of spec §4.11's two-instance job registry.
func runServe(config *common.Config, logger arbor.ILogger) {
	e, err := buildEngine(config, logger, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine")
	}
	e.start()

	logger.Info().Msg("focusedcrawl engine running - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	e.shutdown(logger)
}

// runCrawl submits a single ad-hoc job to the "user" Manager and waits
// for an interrupt signal, so the browser pool and worker goroutines
// stay alive long enough to actually process it.
func runCrawl(config *common.Config, logger arbor.ILogger) {
	keywords := splitCSV(*flagKeywords)
	seeds := splitCSV(*flagSeeds)
	if len(keywords) == 0 || len(seeds) == 0 {
		logger.Fatal().Msg("crawl requires -keywords and -seeds")
	}

	e, err := buildEngine(config, logger, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine")
	}
	e.start()
	defer e.shutdown(logger)

	job, err := e.userManager.CreateJob(manager.CreateJobRequest{
		Keywords:           keywords,
		Seeds:              seeds,
		MaxDepth:           2,
		MaxPages:           20,
		RelevanceThreshold: 0.3,
		RateLimitSeconds:   1.0,
		RequestedBy:        "cli",
		Priority:           models.PriorityHigh,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("job submission rejected")
	}
	logger.Info().Str("job_id", job.ID).Strs("seeds", job.Seeds).Msg("job submitted - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

// runSearch runs a one-shot BM25 query over the persisted store and
// shards without starting the browser pool or any worker pool.
func runSearch(config *common.Config, logger arbor.ILogger) {
	if *flagQuery == "" {
		logger.Fatal().Msg("search requires -query")
	}

	e, err := buildEngine(config, logger, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := e.searcher.Search(ctx, *flagQuery, *flagLimit, 0, config.Search.FreshnessDays)
	for i, r := range results {
		fmt.Printf("%2d. [%.3f] %s\n    %s\n", i+1, r.Score, r.Title, r.URL)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}

	if e.kvStore != nil {
		_ = e.kvStore.Close()
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

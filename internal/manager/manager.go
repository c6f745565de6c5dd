// Package manager implements the Manager (spec §4.11): the job
// registry, the two priority queues (via the Worker Pool), periodic
// flush/compaction, the auto-crawl loop, and metrics snapshotting.
// Grounded in the teacher's internal/services/scheduler cron-based
// periodic-task loop, generalized from the teacher's single collection
// cadence to the spec's three independent periodic jobs.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/shard"
	"github.com/ternarybob/focusedcrawl/internal/sharedstate"
	"github.com/ternarybob/focusedcrawl/internal/ssrf"
	"github.com/ternarybob/focusedcrawl/internal/worker"
)

// autoCrawlInterval is the fixed 24h cadence of the background
// auto-crawl loop (spec §4.11).
const autoCrawlInterval = 24 * time.Hour

// autoCrawlSeeds and autoCrawlKeywords are the fixed seed/keyword
// lists the "default" manager sweeps every 24h.
var (
	autoCrawlSeeds = []string{
		"https://news.ycombinator.com/",
		"https://www.technologyreview.com/",
		"https://arstechnica.com/",
	}
	autoCrawlKeywords = []string{"ai", "machine learning", "software", "open source", "linux"}
)

// Config carries the per-instance settings named in spec §6.5.
type Config struct {
	// Name identifies this instance ("user" or "default"); only
	// "default" runs the auto-crawl loop, per spec §4.11.
	Name          string
	RunsAutoCrawl bool

	WorkerCount     int
	MaxConcurrent   int
	FlushInterval   time.Duration
	RetentionDays   int
}

// CreateJobRequest is the client-submitted shape behind POST /jobs
// (spec §6.1), validated and turned into a CrawlJob by CreateJob.
type CreateJobRequest struct {
	Keywords           []string
	Seeds              []string
	MaxDepth           int
	MaxPages           int
	RelevanceThreshold float64
	RateLimitSeconds   float64
	AllowExternal      bool
	UserContext        string
	RequestedBy        string
	Metadata           map[string]interface{}
	Priority           models.Priority
	IdempotencyKey     string
	OllamaAssisted     bool
	OllamaQuery        string
}

// ValidationError reports a rejected CreateJob request (spec §7
// "Validation" / "SSRF block" error kinds).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Manager owns one job registry and worker pool instance, sharing its
// SharedState/ResultStore/ShardWriter substrate with sibling instances
// per spec §4.11's multi-instance model.
type Manager struct {
	cfg    Config
	logger arbor.ILogger

	pool        *worker.Pool
	sharedState *sharedstate.State
	shards      *shard.TrainBuffer
	writer      *shard.Writer
	guard       *ssrf.Guard
	metrics     *models.Metrics

	mu            sync.RWMutex
	jobs          map[string]*models.CrawlJob
	lastHeartbeat time.Time

	cronSched *cron.Cron
	started   bool
}

// New builds a Manager. deps.Metrics is shared across every instance
// wired to the same substrate, matching spec §3's per-category
// counters being process-wide rather than per-instance.
func New(cfg Config, deps worker.Deps, writer *shard.Writer, guard *ssrf.Guard, logger arbor.ILogger) *Manager {
	m := &Manager{
		cfg:         cfg,
		logger:      logger,
		sharedState: deps.SharedState,
		shards:      deps.Shards,
		writer:      writer,
		guard:       guard,
		metrics:     deps.Metrics,
		jobs:        make(map[string]*models.CrawlJob),
	}
	m.pool = worker.New(m.lookupJob, deps, logger)
	return m
}

func (m *Manager) lookupJob(jobID string) (*models.CrawlJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	return job, ok
}

// Start idempotently (re)sizes the worker pool and, once, begins the
// periodic flush/compaction/auto-crawl cron schedule, per spec §4.11's
// `start(worker_count?, max_concurrent?)` contract.
func (m *Manager) Start(workerCount, maxConcurrent int) {
	if workerCount > 0 {
		m.cfg.WorkerCount = workerCount
	}
	if maxConcurrent > 0 {
		m.cfg.MaxConcurrent = maxConcurrent
	}
	m.pool.Start(m.cfg.MaxConcurrent)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.startPeriodicTasksLocked()
}

func (m *Manager) startPeriodicTasksLocked() {
	m.cronSched = cron.New()

	flushSeconds := int(m.cfg.FlushInterval.Seconds())
	if flushSeconds <= 0 {
		flushSeconds = 3600
	}
	_, _ = m.cronSched.AddFunc(fmt.Sprintf("@every %ds", flushSeconds), func() {
		if m.shards != nil {
			_ = m.shards.Flush()
		}
	})

	_, _ = m.cronSched.AddFunc("@daily", func() {
		if m.writer != nil {
			retention := m.cfg.RetentionDays
			if retention <= 0 {
				retention = 14
			}
			if err := m.writer.Compact(retention); err != nil && m.logger != nil {
				m.logger.Error().Err(err).Msg("shard compaction failed")
			}
		}
	})

	if m.cfg.RunsAutoCrawl {
		_, _ = m.cronSched.AddFunc("@every 24h", func() { m.runAutoCrawl() })
	}

	m.cronSched.Start()
}

// Stop cancels the pool, stops periodic tasks, and flushes shared
// state, per spec §4.11's `stop()` contract.
func (m *Manager) Stop() {
	m.pool.Stop()

	m.mu.Lock()
	sched := m.cronSched
	m.started = false
	m.mu.Unlock()

	if sched != nil {
		ctx := sched.Stop()
		<-ctx.Done()
	}
	if m.sharedState != nil {
		_ = m.sharedState.Flush()
	}
	m.heartbeat()
}

func (m *Manager) heartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeartbeat = time.Now()
}

// runAutoCrawl enqueues the fixed background sweep, per spec §4.11:
// only the "default" instance ever calls this.
func (m *Manager) runAutoCrawl() {
	_, err := m.CreateJob(CreateJobRequest{
		Keywords:           autoCrawlKeywords,
		Seeds:              autoCrawlSeeds,
		MaxDepth:           2,
		MaxPages:           50,
		RelevanceThreshold: 0.3,
		RateLimitSeconds:   1.0,
		AllowExternal:      true,
		RequestedBy:        "auto_crawler",
		Priority:           models.PriorityLow,
		OllamaAssisted:     true,
		OllamaQuery:        "Is this article about AI, software, or open source technology?",
	})
	if err != nil && m.logger != nil {
		m.logger.Warn().Err(err).Msg("auto-crawl dispatch failed")
	}
}

// CreateJob validates req, resolves idempotency, SSRF-checks every
// seed, derives category, registers the job, and enqueues its seeds at
// depth 0, per spec §3/§4.1/§7.
func (m *Manager) CreateJob(req CreateJobRequest) (*models.CrawlJob, error) {
	if req.IdempotencyKey != "" {
		if existingID, ok := m.sharedState.GetJobForKey(req.IdempotencyKey); ok {
			if job, ok := m.lookupJob(existingID); ok {
				return job, nil
			}
		}
	}

	if len(req.Keywords) == 0 {
		return nil, &ValidationError{Reason: "keywords must be non-empty"}
	}
	if len(req.Seeds) == 0 {
		return nil, &ValidationError{Reason: "seeds must be non-empty"}
	}

	survivors, blocked := m.filterSeeds(req.Seeds)
	if len(survivors) == 0 {
		return nil, &ValidationError{Reason: "all seeds rejected by SSRF guard"}
	}

	job := m.buildJob(req, survivors, blocked)

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.sharedState.RegisterJobForKey(req.IdempotencyKey, job.ID)

	now := time.Now()
	for _, seed := range survivors {
		if !m.sharedState.MarkSeen(sharedstate.HashURL(seed)) {
			continue
		}
		m.pool.Enqueue(job, &worker.Item{
			JobID:   job.ID,
			URL:     seed,
			Depth:   0,
			AddedAt: now,
		})
	}

	return job, nil
}

func (m *Manager) filterSeeds(seeds []string) (survivors, blocked []string) {
	ctx := context.Background()
	for _, seed := range seeds {
		if m.guard == nil {
			survivors = append(survivors, seed)
			continue
		}
		if ok, _ := m.guard.IsSafe(ctx, seed); ok {
			survivors = append(survivors, seed)
		} else {
			blocked = append(blocked, seed)
		}
	}
	return survivors, blocked
}

func clampRelevanceThreshold(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 0.95 {
		return 0.95
	}
	return v
}

func clampRateLimit(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 10.0 {
		return 10.0
	}
	return v
}

func (m *Manager) buildJob(req CreateJobRequest, survivors, blocked []string) *models.CrawlJob {
	now := time.Now().UTC()
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityLow
	}

	job := &models.CrawlJob{
		ID:                 "job_" + uuid.New().String(),
		IdempotencyKey:     req.IdempotencyKey,
		Keywords:           req.Keywords,
		Seeds:              survivors,
		MaxDepth:           req.MaxDepth,
		MaxPages:           req.MaxPages,
		RelevanceThreshold: clampRelevanceThreshold(req.RelevanceThreshold),
		RateLimitSeconds:   clampRateLimit(req.RateLimitSeconds),
		AllowExternal:      req.AllowExternal,
		UserContext:        req.UserContext,
		RequestedBy:        req.RequestedBy,
		Metadata:           req.Metadata,
		Priority:           priority,
		Category:           models.DeriveCategory(req.RequestedBy, priority),
		OllamaAssisted:     req.OllamaAssisted,
		OllamaQuery:        req.OllamaQuery,
		Status:             models.JobStatusQueued,
		CreatedAt:          now,
		UpdatedAt:          now,
		AllowedDomains:     models.SeedHosts(survivors),
		BlockedSeeds:       blocked,
	}
	if job.MaxPages <= 0 {
		job.MaxPages = 1
	}
	return job
}

// GetJob returns a registered job by id.
func (m *Manager) GetJob(id string) (*models.CrawlJob, bool) {
	return m.lookupJob(id)
}

// ListJobs returns every registered job, newest first.
func (m *Manager) ListJobs() []*models.CrawlJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.CrawlJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Snapshot is the metrics view named in spec §4.11: queue depths,
// per-category metrics, and last heartbeat.
type Snapshot struct {
	Name          string
	QueueHigh     int
	QueueLow      int
	Metrics       models.MetricsSnapshot
	LastHeartbeat time.Time
}

// Metrics returns a point-in-time snapshot of queue depths and
// per-category counters.
func (m *Manager) Metrics() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	high, low := m.pool.QueueDepths()
	return Snapshot{
		Name:          m.cfg.Name,
		QueueHigh:     high,
		QueueLow:      low,
		Metrics:       m.metrics.Snapshot(),
		LastHeartbeat: m.lastHeartbeat,
	}
}

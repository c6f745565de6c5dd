package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/common"
	"github.com/ternarybob/focusedcrawl/internal/models"
)

// highPriorityPollInterval and lowPriorityPollInterval are the fixed
// dispatch cadences for the two queues (spec §4.9).
const (
	highPriorityPollInterval = 100 * time.Millisecond
	lowPriorityPollInterval  = time.Second
)

// jobWallClock is the per-job ceiling on total run time, mirroring the
// original crawler's asyncio.wait_for(crawler.run(...), timeout=300.0)
// wrapping the whole job rather than any single request.
const jobWallClock = 300 * time.Second

// JobLookup resolves a queued item's job id to the live CrawlJob,
// letting the pool stay decoupled from the Manager's job registry.
type JobLookup func(jobID string) (*models.CrawlJob, bool)

// jobRun tracks the per-job bookkeeping the dispatch loop needs to
// decide when a job has genuinely finished: how many frontier items are
// still outstanding (enqueued or in flight) and the absolute deadline
// the job must terminalize by, per spec §4.9/§4.11.
type jobRun struct {
	mu          sync.Mutex
	outstanding int
	deadline    time.Time
}

// Pool is the Worker Pool (§4.9): two priority queues dispatched on
// different poll cadences, bounded concurrency, and resize support.
type Pool struct {
	mu sync.Mutex

	highQueue *Queue
	lowQueue  *Queue

	sem    chan struct{}
	lookup JobLookup
	deps   Deps
	logger arbor.ILogger

	runsMu  sync.Mutex
	jobRuns map[string]*jobRun

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started bool
}

// New builds an idle pool. Call Start to begin dispatching.
func New(lookup JobLookup, deps Deps, logger arbor.ILogger) *Pool {
	return &Pool{
		highQueue: NewQueue(),
		lowQueue:  NewQueue(),
		lookup:    lookup,
		deps:      deps,
		logger:    logger,
		jobRuns:   make(map[string]*jobRun),
	}
}

// QueueDepths reports the current length of the high- and
// low-priority queues, for the Manager's metrics snapshot (§4.11).
func (p *Pool) QueueDepths() (high, low int) {
	return p.highQueue.Len(), p.lowQueue.Len()
}

// Enqueue adds item to the high or low priority queue per job.Priority,
// registering the job's run (on first enqueue) and tracking one more
// outstanding frontier item so the dispatch loop knows the job isn't
// done until every enqueued item has been accounted for.
func (p *Pool) Enqueue(job *models.CrawlJob, item *Item) {
	p.jobRunFor(job.ID).addOutstanding(1)

	if job.Priority == models.PriorityHigh {
		p.highQueue.Push(item)
		return
	}
	p.lowQueue.Push(item)
}

// jobRunFor returns the run-tracking record for jobID, creating it (with
// a fresh jobWallClock deadline) on first use.
func (p *Pool) jobRunFor(jobID string) *jobRun {
	p.runsMu.Lock()
	defer p.runsMu.Unlock()

	run, ok := p.jobRuns[jobID]
	if !ok {
		run = &jobRun{deadline: time.Now().Add(jobWallClock)}
		p.jobRuns[jobID] = run
	}
	return run
}

// forgetJobRun drops jobID's run-tracking record once the job has
// reached a terminal status, so the map doesn't grow unbounded.
func (p *Pool) forgetJobRun(jobID string) {
	p.runsMu.Lock()
	delete(p.jobRuns, jobID)
	p.runsMu.Unlock()
}

func (r *jobRun) addOutstanding(delta int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outstanding += delta
	return r.outstanding
}

func (r *jobRun) expired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.deadline.IsZero() && now.After(r.deadline)
}

// Start idempotently (re)sizes the pool to maxConcurrent in-flight
// requests and begins the two dispatch loops if not already running,
// per spec §4.9's `start(worker_count?, max_concurrent?)` contract.
func (p *Pool) Start(maxConcurrent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if p.started {
		p.resizeLocked(maxConcurrent)
		return
	}

	p.sem = make(chan struct{}, maxConcurrent)
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.started = true

	p.wg.Add(2)
	common.SafeGo(p.logger, "pool.dispatchLoop.high", func() { p.dispatchLoop(p.highQueue, highPriorityPollInterval) })
	common.SafeGo(p.logger, "pool.dispatchLoop.low", func() { p.dispatchLoop(p.lowQueue, lowPriorityPollInterval) })
}

// resizeLocked swaps in a differently-sized semaphore. In-flight
// requests holding a slot on the old semaphore still complete
// normally; only newly dispatched requests observe the new limit.
func (p *Pool) resizeLocked(maxConcurrent int) {
	p.sem = make(chan struct{}, maxConcurrent)
}

// Stop cancels dispatch, waits for in-flight requests to finish, and
// flushes the train buffer, per spec §4.9's `stop()` contract.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	if p.deps.Shards != nil {
		_ = p.deps.Shards.Flush()
	}
	if p.deps.SharedState != nil {
		_ = p.deps.SharedState.Flush()
	}

	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}

func (p *Pool) dispatchLoop(queue *Queue, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.dispatchOnce(queue)
		}
	}
}

// dispatchOnce pops at most one ready item and, if a concurrency slot
// is free, runs it in its own goroutine. A queue with nothing ready,
// or a pool already at capacity, is a no-op this tick.
func (p *Pool) dispatchOnce(queue *Queue) {
	item, ok := queue.TryPop()
	if !ok {
		return
	}

	job, exists := p.lookup(item.JobID)
	if !exists {
		p.jobRunFor(item.JobID).addOutstanding(-1)
		return
	}
	if job.IsTerminal() {
		p.jobRunFor(item.JobID).addOutstanding(-1)
		p.forgetJobRun(item.JobID)
		return
	}

	run := p.jobRunFor(job.ID)
	if run.expired(time.Now()) {
		p.timeoutItem(job)
		return
	}

	// Release to the same semaphore the slot was taken from, even if
	// resizeLocked swaps p.sem while the request is in flight.
	p.mu.Lock()
	sem := p.sem
	p.mu.Unlock()

	select {
	case sem <- struct{}{}:
	default:
		// At capacity this tick; drop the item back for the next poll.
		queue.Push(item)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-sem }()
		p.process(job, item, queue, run)
	}()
}

// process runs one item through the pipeline under panic recovery, then
// resolves the job's lifecycle: a retried item stays outstanding (it
// will be re-dispatched), anything else is one fewer outstanding
// frontier item, and a job whose frontier has fully drained
// terminalizes as completed.
func (p *Pool) process(job *models.CrawlJob, item *Item, queue *Queue, run *jobRun) {
	if job.Status == models.JobStatusQueued {
		job.Status = models.JobStatusRunning
		job.Touch(time.Now())
	}

	discovered, disposition, panicked := p.processRecovered(job, item)

	if panicked != nil {
		run.addOutstanding(-1)
		p.failJob(job, fmt.Sprintf("worker panic: %v", panicked))
		return
	}

	switch disposition {
	case dispositionRetry:
		if run.expired(time.Now()) {
			p.timeoutItem(job)
			return
		}
		queue.Push(item)
		return
	case dispositionFailed:
		if p.logger != nil {
			p.logger.Warn().Str("job_id", job.ID).Str("url", item.URL).Msg("request failed permanently")
		}
	}

	// Enqueue children before dropping our own outstanding count so the
	// job never looks drained in the window between this item finishing
	// and its newly discovered children being counted.
	for _, child := range discovered {
		p.Enqueue(job, child)
	}

	remaining := run.addOutstanding(-1)

	if run.expired(time.Now()) {
		p.timeoutItem(job)
		return
	}

	if remaining <= 0 {
		p.completeJob(job)
	}
}

// processRecovered runs the pipeline for one item, converting a panic
// (a worker crash, per spec §4.9/§5) into a reported failure instead of
// taking down the dispatch goroutine.
func (p *Pool) processRecovered(job *models.CrawlJob, item *Item) (discovered []*Item, disposition outcomeDisposition, panicked interface{}) {
	defer func() {
		if r := recover(); r != nil {
			panicked = r
			if p.logger != nil {
				p.logger.Error().Str("job_id", job.ID).Str("url", item.URL).Msgf("worker panic: %v", r)
			}
		}
	}()
	discovered, disposition = runPipeline(p.ctx, job, item, p.deps)
	return discovered, disposition, nil
}

// completeJob marks job completed once its frontier has fully drained,
// never overwriting a status some other goroutine already terminalized.
func (p *Pool) completeJob(job *models.CrawlJob) {
	if job.IsTerminal() {
		p.forgetJobRun(job.ID)
		return
	}
	job.Status = models.JobStatusCompleted
	job.Touch(time.Now())
	p.forgetJobRun(job.ID)
}

// timeoutItem marks job partial_complete when its jobWallClock deadline
// has passed with work still outstanding, mirroring the original
// crawler's asyncio.TimeoutError -> "partial results saved" path.
func (p *Pool) timeoutItem(job *models.CrawlJob) {
	if job.IsTerminal() {
		p.forgetJobRun(job.ID)
		return
	}
	job.Status = models.JobStatusPartialComplete
	job.Error = "crawl timed out after 300 seconds (partial results saved)"
	job.Touch(time.Now())
	p.forgetJobRun(job.ID)
}

// failJob marks job failed with msg, for fatal pipeline errors (a worker
// panic) rather than the ordinary per-request retry/failed path.
func (p *Pool) failJob(job *models.CrawlJob, msg string) {
	if job.IsTerminal() {
		p.forgetJobRun(job.ID)
		return
	}
	job.Status = models.JobStatusFailed
	job.Error = msg
	job.Touch(time.Now())
	p.forgetJobRun(job.ID)
}

// Package publisher implements the Publisher (spec §4.13): the
// periodic job that selects qualified CrawlResults, drafts an article
// via the streaming LLM provider, and hands it to the external poster.
package publisher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/llm"
	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/store"
)

// articleSystemPrompt is the fixed article-generation instruction
// given to the LLM (spec §4.13 step 3).
const articleSystemPrompt = "You are a staff writer. Turn the supplied source material into a well-structured, " +
	"publication-ready article. Use clear prose, a descriptive headline, and neutral tone. Do not fabricate facts " +
	"not present in the source material."

// Config carries the publisher_* constants of spec §6.5.
type Config struct {
	Interval        time.Duration // publisher_interval, default 3600s
	MinScore        float64       // publisher_min_score, default 0.6
	MaxPostsPerHour int           // publisher_max_posts_per_hour, default 3
	FreshnessDays   int
	SummaryModel    string // crawler_summary_model
}

// Publisher periodically promotes the highest-scoring unpublished
// results to the external poster.
type Publisher struct {
	store      *store.Store
	llmFactory *llm.Factory
	poster     Poster
	cfg        Config
	logger     arbor.ILogger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Publisher. poster may be nil in environments with no
// configured external channel, in which case RunOnce logs and skips
// every candidate rather than failing.
func New(st *store.Store, llmFactory *llm.Factory, poster Poster, cfg Config, logger arbor.ILogger) *Publisher {
	if cfg.MaxPostsPerHour <= 0 {
		cfg.MaxPostsPerHour = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Publisher{
		store:      st,
		llmFactory: llmFactory,
		poster:     poster,
		cfg:        cfg,
		logger:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs RunOnce on cfg.Interval until Stop is called.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.RunOnce(ctx)
			}
		}
	}()
}

// Stop signals the periodic loop to exit and waits for it to finish.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}

// RunOnce implements spec §4.13's per-tick algorithm: select the
// highest-scoring unposted results, draft and post an article for up
// to max_posts_per_hour of them, skipping anything already posted or
// duplicated within this run by content hash.
func (p *Publisher) RunOnce(ctx context.Context) {
	candidates := p.selectCandidates()
	seenHashes := make(map[string]bool)

	posted := 0
	for _, candidate := range candidates {
		if posted >= p.cfg.MaxPostsPerHour {
			break
		}
		if seenHashes[candidate.ContentHash] {
			continue
		}

		result, ok := p.store.Get(candidate.ID)
		if !ok || result.Status == models.ResultStatusPublished {
			continue
		}

		if err := p.publishOne(ctx, result); err != nil {
			if p.logger != nil {
				p.logger.Warn().Err(err).Str("result_id", result.ID).Msg("publish attempt failed, skipping")
			}
			continue
		}

		seenHashes[result.ContentHash] = true
		posted++
	}
}

// selectCandidates returns unposted results within the freshness
// window, sorted by score descending (spec §4.13 step 1).
func (p *Publisher) selectCandidates() []*models.CrawlResult {
	cutoff := time.Now().AddDate(0, 0, -p.cfg.FreshnessDays)

	results := p.store.List(func(r *models.CrawlResult) bool {
		return r.PostedAt == nil && r.Score >= p.cfg.MinScore && r.CreatedAt.After(cutoff)
	})

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func (p *Publisher) publishOne(ctx context.Context, result *models.CrawlResult) error {
	if p.poster == nil {
		return fmt.Errorf("no poster configured")
	}

	article, err := p.generateArticle(ctx, result)
	if err != nil {
		return fmt.Errorf("generate article: %w", err)
	}

	resp, err := p.poster.CreatePost(ctx, PostRequest{
		Title:   articleTitle(result),
		Content: article,
		Status:  "publish",
	})
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}

	now := time.Now().UTC()
	updated := *result
	updated.PostedAt = &now
	updated.PostID = resp.ID
	updated.Status = models.ResultStatusPublished
	updated.UpdatedAt = now

	return p.store.Update(result.ID, &updated)
}

// generateArticle streams the LLM's article draft and appends a
// source-attribution footer (spec §4.13 step 3).
func (p *Publisher) generateArticle(ctx context.Context, result *models.CrawlResult) (string, error) {
	if p.llmFactory == nil {
		return "", fmt.Errorf("no LLM factory configured")
	}

	userPrompt := fmt.Sprintf("Title: %s\n\nSource content:\n%s", result.Title, result.Content)
	chunks, errs := p.llmFactory.Stream(ctx, p.cfg.SummaryModel, articleSystemPrompt, userPrompt)

	var article strings.Builder
	for chunk := range chunks {
		article.WriteString(chunk.Text)
	}
	if err := <-errs; err != nil {
		return "", err
	}

	article.WriteString(fmt.Sprintf("\n\n---\nSource: %s\n", result.URL))
	return article.String(), nil
}

func articleTitle(result *models.CrawlResult) string {
	if result.Headline != "" {
		return result.Headline
	}
	return result.Title
}

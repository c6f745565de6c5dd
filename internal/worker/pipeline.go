package worker

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/extract"
	"github.com/ternarybob/focusedcrawl/internal/fetch"
	"github.com/ternarybob/focusedcrawl/internal/hostcoord"
	"github.com/ternarybob/focusedcrawl/internal/llm"
	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/scorer"
	"github.com/ternarybob/focusedcrawl/internal/shard"
	"github.com/ternarybob/focusedcrawl/internal/sharedstate"
	"github.com/ternarybob/focusedcrawl/internal/ssrf"
	"github.com/ternarybob/focusedcrawl/internal/store"
)

// maxRequestRetries bounds how many times a transient failure
// (no_response, 5xx) is retried before the page is marked failed,
// per spec §4.9.
const maxRequestRetries = 2

// requestWallClock is the absolute ceiling on one request's handling,
// including host-lock wait, fetch, extraction and scoring.
const requestWallClock = 300 * time.Second

// Deps bundles every collaborator the per-request pipeline needs.
type Deps struct {
	SharedState  *sharedstate.State
	Store        *store.Store
	Shards       *shard.TrainBuffer
	Hosts        *hostcoord.Coordinator
	Guard        *ssrf.Guard
	Renderer     *fetch.Renderer
	Scorer       *scorer.Scorer
	Metrics      *models.Metrics
	LLMFactory   *llm.Factory
	SummaryModel string
	Logger       arbor.ILogger
}

// outcomeDisposition says what the dispatcher should do after one
// pipeline run.
type outcomeDisposition int

const (
	dispositionDone outcomeDisposition = iota
	dispositionRetry
	dispositionFailed
)

// runPipeline implements the nine-step per-request pipeline (spec
// §4.10) for a single queued item, returning the items discovered for
// re-enqueue (already filtered and capped by discoverChildren) and this
// attempt's disposition.
func runPipeline(ctx context.Context, job *models.CrawlJob, item *Item, d Deps) ([]*Item, outcomeDisposition) {
	ctx, cancel := context.WithTimeout(ctx, requestWallClock)
	defer cancel()

	job.Touch(time.Now())
	metrics := d.Metrics.For(job.Category)

	host := hostcoord.HostOf(item.URL)
	lease, err := d.Hosts.Acquire(ctx, host, rateLimitDuration(job))
	if err != nil {
		return nil, dispositionRetry
	}
	defer lease.Release()

	outcome, err := d.Renderer.Fetch(ctx, item.URL)
	if err != nil {
		metrics.IncRequests5xx(time.Now())
		return nil, retryOrFail(item)
	}

	switch outcome.Kind {
	case fetch.OutcomeThrottled:
		lease.BackoffThrottled()
		metrics.IncRequests429(time.Now())
		return nil, dispositionRetry
	case fetch.OutcomeServerError:
		lease.BackoffServerError()
		metrics.IncRequests5xx(time.Now())
		return nil, retryOrFail(item)
	case fetch.OutcomeClientError:
		metrics.IncPagesFailed(time.Now())
		return nil, dispositionFailed
	case fetch.OutcomeNoResponse:
		metrics.IncPagesFailed(time.Now())
		return nil, retryOrFail(item)
	case fetch.OutcomeSkipNonHTML:
		lease.ClearBackoff()
		return nil, dispositionDone
	}

	extracted, err := extract.Extract(outcome.HTML, item.URL)
	if err != nil {
		metrics.IncPagesFailed(time.Now())
		return nil, dispositionFailed
	}

	scoreResult := d.Scorer.Score(ctx, job, extracted.NormalizedText)

	if scorer.PassesThreshold(scoreResult, job) {
		result := buildResult(ctx, job, item, extracted, scoreResult, d)
		if resolvedID, err := d.Store.Add(result); err == nil {
			job.Results = append(job.Results, resolvedID)
			if d.Shards != nil {
				_ = d.Shards.Add(result)
			}
		}
	}

	job.PagesCrawled++
	metrics.IncPagesCrawled()

	discovered := discoverChildren(job, item, extracted, d)

	lease.ClearBackoff()
	return discovered, dispositionDone
}

func retryOrFail(item *Item) outcomeDisposition {
	if item.Retries >= maxRequestRetries {
		return dispositionFailed
	}
	item.Retries++
	return dispositionRetry
}

func rateLimitDuration(job *models.CrawlJob) time.Duration {
	seconds := job.RateLimitSeconds
	if seconds <= 0 {
		seconds = 1
	}
	return time.Duration(seconds * float64(time.Second))
}

// articleSummarySystemPrompt asks the summary model for a short
// headline plus a few bullet-point highlights, mirroring the original
// crawler's summary-generation prompt (manager.py SUMMARY_SYSTEM_PROMPT).
const articleSummarySystemPrompt = "Summarize the crawled article for the content pipeline. " +
	"Reply with a short headline (at most 120 characters) on the first line, then a few bullet " +
	"points highlighting key takeaways on the following lines. No markdown formatting."

// maxSummaryInputChars bounds the text sent to the summary model, per
// the original's text[:6000] slice.
const maxSummaryInputChars = 6000

// fallbackSummaryLength is the excerpt length used when no summary
// model is configured or the call fails, per the original's
// _build_excerpt(text, max_length=360).
const fallbackSummaryLength = 360

// headlineMaxChars bounds the derived headline, per spec §3.
const headlineMaxChars = 120

func buildResult(ctx context.Context, job *models.CrawlJob, item *Item, extracted *extract.Extracted, scoreResult scorer.Result, d Deps) *models.CrawlResult {
	now := time.Now().UTC()
	content := extracted.NormalizedText
	if scoreResult.UsedLLM && scoreResult.ExtractedContent != "" {
		content = scoreResult.ExtractedContent
	}

	headline, summary := generateSummary(ctx, d, extracted.NormalizedText, extracted.MetaDescription)

	return &models.CrawlResult{
		ID:                     models.NewDocumentID(),
		JobID:                  job.ID,
		URL:                    item.URL,
		SourceDomain:           hostcoord.HostOf(item.URL),
		ParentURL:              item.ParentURL,
		Depth:                  item.Depth,
		Title:                  extracted.Title,
		Headline:               headline,
		Content:                content,
		Excerpt:                extracted.Excerpt,
		Summary:                summary,
		MetaDescription:        extracted.MetaDescription,
		PublishDate:            extracted.PublishDate,
		NormalizedText:         extracted.NormalizedText,
		ContentHash:            extracted.ContentHash,
		TokensEst:              extracted.TokensEst,
		ExtractedContentOllama: scoreResult.ExtractedContent,
		Score:                  scoreResult.FinalScore,
		KeywordsMatched:        scoreResult.KeywordsMatched,
		Tags:                   models.GuessTags(scoreResult.KeywordsMatched, job.MetadataTags()),
		Status:                 models.ResultStatusCrawled,
		CreatedAt:              now,
		UpdatedAt:              now,
		LinksFound:             len(extracted.Links),
	}
}

// generateSummary implements the headline/summary derivation dropped
// from the distilled spec but present in the original crawler's
// _generate_summary/_split_summary: an LLM-drafted headline and
// summary when a summary model is configured, falling back to the
// page's meta description or a fixed-length excerpt otherwise.
func generateSummary(ctx context.Context, d Deps, normalizedText, metaDescription string) (headline, summary string) {
	if normalizedText == "" {
		return "", metaDescription
	}

	if d.LLMFactory != nil && d.SummaryModel != "" {
		excerpt := normalizedText
		if len(excerpt) > maxSummaryInputChars {
			excerpt = excerpt[:maxSummaryInputChars]
		}

		chunks, errs := d.LLMFactory.Stream(ctx, d.SummaryModel, articleSummarySystemPrompt, excerpt)
		var text strings.Builder
		for chunk := range chunks {
			text.WriteString(chunk.Text)
		}
		if err := <-errs; err != nil {
			if d.Logger != nil {
				d.Logger.Warn().Err(err).Msg("summary generation failed, using fallback")
			}
		} else if summaryText := strings.TrimSpace(text.String()); summaryText != "" {
			return splitSummary(summaryText)
		}
	}

	fallback := metaDescription
	if fallback == "" {
		fallback = extract.ExcerptN(normalizedText, fallbackSummaryLength)
	}
	return "", fallback
}

// splitSummary implements the original's _split_summary: the first
// non-blank line is the headline (clamped to headlineMaxChars), the
// rest is the summary body.
func splitSummary(summaryText string) (headline, body string) {
	var lines []string
	for _, line := range strings.Split(summaryText, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return "", ""
	}
	headline = models.Truncate(lines[0], headlineMaxChars)
	if len(lines) > 1 {
		body = strings.Join(lines[1:], "\n")
	}
	return headline, body
}

// discoverChildren filters discovered links through the fixed link
// blocklist, the job's allowed domains, the SSRF guard and the shared
// seen-URL set, enqueuing
// at most min(survivors, max_pages-pages_crawled) children at
// depth+1, per spec §4.10 step 9.
func discoverChildren(job *models.CrawlJob, item *Item, extracted *extract.Extracted, d Deps) []*Item {
	if item.Depth+1 > job.MaxDepth {
		return nil
	}
	remaining := job.MaxPages - job.PagesCrawled
	if remaining <= 0 {
		return nil
	}

	var children []*Item
	for _, link := range extracted.Links {
		if len(children) >= remaining {
			break
		}
		if isBlocked(link) {
			continue
		}
		if !job.AllowExternal && !contains(job.AllowedDomains, hostcoord.HostOf(link)) {
			continue
		}
		safe, _ := d.Guard.IsSafe(context.Background(), link)
		if !safe {
			continue
		}
		if d.SharedState.MarkSeen(sharedstate.HashURL(link)) {
			children = append(children, &Item{
				JobID:     job.ID,
				URL:       link,
				ParentURL: item.URL,
				Depth:     item.Depth + 1,
				AddedAt:   time.Now(),
			})
		}
	}
	return children
}

// contains reports whether host is present in domains, the predicate
// behind job.allowed_domains in the original's
// `parsed.netloc not in job.allowed_domains` check.
func contains(domains []string, host string) bool {
	for _, d := range domains {
		if d == host {
			return true
		}
	}
	return false
}

// linkBlocklist is the fixed substring denylist of spec §4.10 step 8,
// matching the original's _extract_links excluded_keywords exactly:
// auth flows, carts, major social platforms and share widgets never
// make useful article-crawl targets and are skipped before the SSRF
// check even runs.
var linkBlocklist = []string{
	"login", "register", "signin", "signup", "admin", "cart", "checkout",
	"facebook.com", "twitter.com", "linkedin.com", "instagram.com", "pinterest.com",
	"youtube.com", "reddit.com", "addtoany.com", "sharethis.com", "mailto:", "tel:",
	"whatsapp.com", "t.me",
}

func isBlocked(link string) bool {
	lower := strings.ToLower(link)
	for _, b := range linkBlocklist {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

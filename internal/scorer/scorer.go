// Package scorer implements the Scorer and LLM Fusion component
// (spec §4.8): a fast keyword-match ratio score, optionally fused with
// an LLM relevance judgement when the job requests Ollama assistance.
package scorer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/llm"
	"github.com/ternarybob/focusedcrawl/internal/models"
)

// maxLLMInputChars bounds the text sent to the LLM for relevance
// fusion, per spec §4.8.
const maxLLMInputChars = 8000

// Result is the outcome of scoring a single extracted page.
type Result struct {
	KeywordScore     float64
	LLMScore         float64
	FinalScore       float64
	KeywordsMatched  []string
	ExtractedContent string
	SuggestedLinks   []string
	UsedLLM          bool
}

// llmRelevanceResponse is the strict JSON shape expected from the LLM
// relevance-fusion prompt.
type llmRelevanceResponse struct {
	RelevanceScore   float64  `json:"relevance_score"`
	ExtractedContent string   `json:"extracted_content"`
	SuggestedLinks   []string `json:"suggested_links"`
}

// Scorer computes keyword and (optionally) LLM-fused relevance scores.
type Scorer struct {
	llmFactory *llm.Factory
	model      string
	logger     arbor.ILogger
}

// New builds a Scorer. llmFactory may be nil, in which case LLM fusion
// is always skipped and FinalScore equals KeywordScore.
func New(llmFactory *llm.Factory, model string, logger arbor.ILogger) *Scorer {
	return &Scorer{llmFactory: llmFactory, model: model, logger: logger}
}

// KeywordScore computes the fraction of job keywords that appear
// (case-insensitively) anywhere in normalizedText, along with which
// keywords matched.
func KeywordScore(keywords []string, normalizedText string) (float64, []string) {
	if len(keywords) == 0 {
		return 0, nil
	}
	haystack := strings.ToLower(normalizedText)

	var matched []string
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			matched = append(matched, kw)
		}
	}
	return float64(len(matched)) / float64(len(keywords)), matched
}

// Score computes the final relevance score for a page. When
// job.OllamaAssisted is set and an LLM factory is configured, the
// keyword score is fused with an LLM judgement per spec §4.8. A failed
// LLM call keeps the keyword score alone; a reply that is not valid
// JSON is scored by parseRelevanceResponse's weak fallback (0.5 or 0)
// and fused as usual.
func (s *Scorer) Score(ctx context.Context, job *models.CrawlJob, normalizedText string) Result {
	keywordScore, matched := KeywordScore(job.Keywords, normalizedText)
	result := Result{
		KeywordScore:    keywordScore,
		FinalScore:      keywordScore,
		KeywordsMatched: matched,
	}

	if !job.OllamaAssisted || s.llmFactory == nil {
		return result
	}

	llmResult, err := s.fuseWithLLM(ctx, job, normalizedText)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("LLM relevance fusion failed, keeping keyword score")
		}
		return result
	}

	result.UsedLLM = true
	result.LLMScore = llmResult.RelevanceScore
	result.ExtractedContent = llmResult.ExtractedContent
	result.SuggestedLinks = llmResult.SuggestedLinks
	result.FinalScore = (keywordScore + llmResult.RelevanceScore) / 2
	return result
}

func (s *Scorer) fuseWithLLM(ctx context.Context, job *models.CrawlJob, normalizedText string) (*llmRelevanceResponse, error) {
	excerpt := normalizedText
	if len(excerpt) > maxLLMInputChars {
		excerpt = excerpt[:maxLLMInputChars]
	}

	systemPrompt := "You are a relevance-scoring assistant. Respond with strict JSON only: " +
		`{"relevance_score": <0..1 float>, "extracted_content": <string>, "suggested_links": [<string>...]}`
	userPrompt := "Query: " + job.OllamaQuery + "\n\nPage content:\n" + excerpt

	chunks, errs := s.llmFactory.Stream(ctx, s.model, systemPrompt, userPrompt)

	var text strings.Builder
	for chunk := range chunks {
		text.WriteString(chunk.Text)
	}
	if err := <-errs; err != nil {
		return nil, err
	}

	return parseRelevanceResponse(text.String(), job.OllamaQuery)
}

// parseRelevanceResponse parses the model's strict JSON response. On
// parse failure it falls back to the weak heuristic of spec §4.8: 0.5
// if the query string appears in the reply, else 0.0.
func parseRelevanceResponse(raw, query string) (*llmRelevanceResponse, error) {
	trimmed := strings.TrimSpace(raw)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end < start {
		return &llmRelevanceResponse{RelevanceScore: weakFallbackScore(trimmed, query)}, nil
	}

	var parsed llmRelevanceResponse
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &parsed); err != nil {
		return &llmRelevanceResponse{RelevanceScore: weakFallbackScore(trimmed, query)}, nil
	}
	if parsed.RelevanceScore < 0 {
		parsed.RelevanceScore = 0
	}
	if parsed.RelevanceScore > 1 {
		parsed.RelevanceScore = 1
	}
	return &parsed, nil
}

// weakFallbackScore implements spec §4.8's fallback for a reply that
// failed strict-JSON parsing.
func weakFallbackScore(reply, query string) float64 {
	query = strings.TrimSpace(query)
	if query != "" && strings.Contains(strings.ToLower(reply), strings.ToLower(query)) {
		return 0.5
	}
	return 0
}

// PassesThreshold reports whether result clears job's relevance
// threshold.
func PassesThreshold(result Result, job *models.CrawlJob) bool {
	return result.FinalScore >= job.RelevanceThreshold
}

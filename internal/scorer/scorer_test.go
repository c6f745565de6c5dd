package scorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

func TestKeywordScoreComputesMatchRatio(t *testing.T) {
	score, matched := KeywordScore([]string{"golang", "rust", "python"}, "an article about golang and python programming")
	assert.InDelta(t, 2.0/3.0, score, 0.0001)
	assert.ElementsMatch(t, []string{"golang", "python"}, matched)
}

func TestKeywordScoreEmptyKeywordsYieldsZero(t *testing.T) {
	score, matched := KeywordScore(nil, "some text")
	assert.Equal(t, 0.0, score)
	assert.Nil(t, matched)
}

func TestKeywordScoreIsCaseInsensitive(t *testing.T) {
	score, _ := KeywordScore([]string{"GoLang"}, "text mentioning golang here")
	assert.Equal(t, 1.0, score)
}

func TestScoreWithoutOllamaAssistUsesKeywordScoreOnly(t *testing.T) {
	job := &models.CrawlJob{Keywords: []string{"widget"}, OllamaAssisted: false, RelevanceThreshold: 0.5}
	s := New(nil, "", nil)

	result := s.Score(context.Background(), job, "a page about widgets")
	assert.False(t, result.UsedLLM)
	assert.Equal(t, result.KeywordScore, result.FinalScore)
}

func TestScoreWithOllamaAssistButNoFactoryFallsBackToKeyword(t *testing.T) {
	job := &models.CrawlJob{Keywords: []string{"widget"}, OllamaAssisted: true, RelevanceThreshold: 0.5}
	s := New(nil, "", nil)

	result := s.Score(context.Background(), job, "a page about widgets")
	assert.False(t, result.UsedLLM)
}

func TestParseRelevanceResponseHandlesValidJSON(t *testing.T) {
	resp, err := parseRelevanceResponse(`{"relevance_score": 0.8, "extracted_content": "summary", "suggested_links": ["https://a"]}`, "widgets")
	require.NoError(t, err)
	assert.Equal(t, 0.8, resp.RelevanceScore)
	assert.Equal(t, "summary", resp.ExtractedContent)
}

func TestParseRelevanceResponseWeakFallbackOnGarbage(t *testing.T) {
	resp, err := parseRelevanceResponse("not json at all", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.RelevanceScore)
}

func TestParseRelevanceResponseWeakFallbackMatchesQueryString(t *testing.T) {
	resp, err := parseRelevanceResponse("not json, but mentions Widgets somewhere", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 0.5, resp.RelevanceScore)
}

func TestParseRelevanceResponseClampsOutOfRangeScore(t *testing.T) {
	resp, err := parseRelevanceResponse(`{"relevance_score": 1.5}`, "widgets")
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.RelevanceScore)
}

func TestPassesThreshold(t *testing.T) {
	job := &models.CrawlJob{RelevanceThreshold: 0.6}
	assert.True(t, PassesThreshold(Result{FinalScore: 0.6}, job))
	assert.False(t, PassesThreshold(Result{FinalScore: 0.59}, job))
}

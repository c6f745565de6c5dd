// Package search implements the Searcher (spec §4.12): BM25 ranking
// over the union of in-memory results and recent on-disk shards, fused
// with each document's stored relevance score.
package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/models"
	"github.com/ternarybob/focusedcrawl/internal/shard"
	"github.com/ternarybob/focusedcrawl/internal/store"
)

// BM25 Okapi parameters, the standard defaults used throughout IR
// literature.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Result is one ranked hit returned by Search, matching spec §4.12's
// {url, title, excerpt, score, ts, source_domain} contract.
type Result struct {
	URL          string
	Title        string
	Excerpt      string
	Score        float64
	Timestamp    time.Time
	SourceDomain string
}

// candidate is an internal scoring unit built from either a live
// ResultStore entry or a shard record.
type candidate struct {
	url          string
	title        string
	excerpt      string
	sourceDomain string
	storedScore  float64
	hasStored    bool
	tokens       []string
	ts           time.Time
}

// Searcher answers BM25 queries over the RAM store plus shards newer
// than a caller-supplied freshness window.
type Searcher struct {
	store       *store.Store
	writer      *shard.Writer
	maxScanDocs int
	logger      arbor.ILogger
}

// New builds a Searcher. maxScanDocs is the hard safety cap on corpus
// size per spec §9 (default 10,000).
func New(st *store.Store, writer *shard.Writer, maxScanDocs int, logger arbor.ILogger) *Searcher {
	if maxScanDocs <= 0 {
		maxScanDocs = 10_000
	}
	return &Searcher{store: st, writer: writer, maxScanDocs: maxScanDocs, logger: logger}
}

// Search implements spec §4.12: tokenize the query, BM25-rank the
// corpus, fuse with each candidate's stored score when present, filter
// by min_score, and return the top `limit` by descending final score.
func (s *Searcher) Search(ctx context.Context, query string, limit int, minScore float64, freshnessDays int) []Result {
	terms := tokenize(query)
	candidates := s.buildCorpus(freshnessDays)

	bm25 := scoreBM25(terms, candidates)

	results := make([]Result, 0, len(candidates))
	for i, c := range candidates {
		var final float64
		if c.hasStored {
			final = (c.storedScore + bm25[i]) / 2
		} else {
			final = bm25[i]
		}
		if final < minScore {
			continue
		}
		results = append(results, Result{
			URL:          c.url,
			Title:        c.title,
			Excerpt:      c.excerpt,
			Score:        final,
			Timestamp:    c.ts,
			SourceDomain: c.sourceDomain,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// buildCorpus unions RAM entries with shard records newer than the
// freshness window, deduplicating by URL (RAM wins, since it is the
// more complete record) and capping at maxScanDocs.
func (s *Searcher) buildCorpus(freshnessDays int) []candidate {
	var out []candidate
	seen := make(map[string]bool)

	for _, r := range s.store.List(nil) {
		if len(out) >= s.maxScanDocs {
			return out
		}
		out = append(out, candidateFromResult(r))
		seen[r.URL] = true
	}

	if s.writer == nil {
		return out
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -freshnessDays)
	for _, entry := range s.writer.Index().Shards {
		if len(out) >= s.maxScanDocs {
			break
		}
		if entry.CreatedAt.Before(cutoff) {
			continue
		}
		records, err := s.writer.ReadShard(entry.Name)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn().Err(err).Str("shard", entry.Name).Msg("failed to read shard for search")
			}
			continue
		}
		for _, rec := range records {
			if len(out) >= s.maxScanDocs {
				break
			}
			if seen[rec.URL] {
				continue
			}
			seen[rec.URL] = true
			out = append(out, candidateFromRecord(rec))
		}
	}
	return out
}

func candidateFromResult(r *models.CrawlResult) candidate {
	return candidate{
		url:          r.URL,
		title:        r.Title,
		excerpt:      r.Excerpt,
		sourceDomain: r.SourceDomain,
		storedScore:  r.Score,
		hasStored:    true,
		tokens:       tokenize(r.NormalizedText),
		ts:           r.CreatedAt,
	}
}

func candidateFromRecord(rec shard.Record) candidate {
	return candidate{
		url:          rec.URL,
		title:        rec.Title,
		excerpt:      rec.Excerpt,
		sourceDomain: rec.SourceDomain,
		storedScore:  rec.Score,
		hasStored:    true,
		tokens:       tokenize(rec.NormalizedText),
		ts:           rec.CreatedAt,
	}
}

// tokenize splits on whitespace and lowercases, the whole of the
// query/document tokenization spec §4.12 calls for.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	return fields
}

// scoreBM25 computes the Okapi BM25 score of terms against every
// candidate document.
func scoreBM25(terms []string, docs []candidate) []float64 {
	scores := make([]float64, len(docs))
	if len(terms) == 0 || len(docs) == 0 {
		return scores
	}

	docFreq := make(map[string]int, len(terms))
	var totalLen int
	for _, d := range docs {
		totalLen += len(d.tokens)
		present := make(map[string]bool, len(terms))
		for _, t := range d.tokens {
			present[t] = true
		}
		for _, term := range terms {
			if present[term] {
				docFreq[term]++
			}
		}
	}

	n := float64(len(docs))
	avgdl := float64(totalLen) / n
	if avgdl == 0 {
		avgdl = 1
	}

	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		df := float64(docFreq[term])
		idf[term] = math.Log((n-df+0.5)/(df+0.5) + 1)
	}

	for i, d := range docs {
		termFreq := make(map[string]int, len(d.tokens))
		for _, tok := range d.tokens {
			termFreq[tok]++
		}
		dl := float64(len(d.tokens))

		var score float64
		for _, term := range terms {
			f := float64(termFreq[term])
			if f == 0 {
				continue
			}
			numerator := f * (bm25K1 + 1)
			denominator := f + bm25K1*(1-bm25B+bm25B*dl/avgdl)
			score += idf[term] * (numerator / denominator)
		}
		scores[i] = score
	}
	return scores
}

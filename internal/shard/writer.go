// Package shard implements the Shard Writer & Compactor: append-only
// hourly JSONL shard files, a persisted index, and daily gzip archival
// of aged shards (spec §4.4).
package shard

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

// Record is the on-disk JSONL shape: id, job, URL, source domain,
// title, excerpt, normalized text, score, matched keywords, tags and
// the two timestamps of a CrawlResult. The content body and the other
// CrawlResult fields (headline, summary, meta description, publish
// date, content hash, token estimate, depth, parent URL, feedback and
// publication state, among others) are not written. Unknown fields are ignored on
// read, per spec §9's closed-schema-with-forward-compatible-read rule.
type Record struct {
	ID              string    `json:"id"`
	JobID           string    `json:"job_id"`
	URL             string    `json:"url"`
	SourceDomain    string    `json:"source_domain"`
	Title           string    `json:"title"`
	Excerpt         string    `json:"excerpt"`
	NormalizedText  string    `json:"normalized_text"`
	Score           float64   `json:"score"`
	KeywordsMatched []string  `json:"keywords_matched"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toShardRecord(r *models.CrawlResult) Record {
	return Record{
		ID:              r.ID,
		JobID:           r.JobID,
		URL:             r.URL,
		SourceDomain:    r.SourceDomain,
		Title:           r.Title,
		Excerpt:         r.Excerpt,
		NormalizedText:  r.NormalizedText,
		Score:           r.Score,
		KeywordsMatched: r.KeywordsMatched,
		Tags:            r.Tags,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// Writer manages the train directory's live shards and index.
type Writer struct {
	mu sync.Mutex

	trainDir string
	log      arbor.ILogger

	index *models.ShardIndex
}

// New loads (or initializes) the shard index at <trainDir>/index.json.
func New(trainDir string, log arbor.ILogger) (*Writer, error) {
	w := &Writer{trainDir: trainDir, log: log, index: &models.ShardIndex{}}
	if err := os.MkdirAll(filepath.Join(trainDir, "archive"), 0o755); err != nil {
		return nil, fmt.Errorf("create train dir: %w", err)
	}
	w.loadIndexBestEffort()
	return w, nil
}

func (w *Writer) indexPath() string {
	return filepath.Join(w.trainDir, "index.json")
}

func (w *Writer) loadIndexBestEffort() {
	data, err := os.ReadFile(w.indexPath())
	if err != nil {
		return
	}
	var idx models.ShardIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		if w.log != nil {
			w.log.Warn().Err(err).Msg("shard index corrupt, starting empty")
		}
		return
	}
	w.index = &idx
}

// shardName returns the hourly shard filename for t, per spec's
// crawl-train-YYYYMMDD-HH.jsonl naming.
func shardName(t time.Time) string {
	return fmt.Sprintf("crawl-train-%s.jsonl", t.UTC().Format("20060102-15"))
}

// Append writes records to the current-hour shard in insertion order,
// creating the shard-index entry on first write and incrementally
// updating it thereafter (spec §4.4 "Flush").
func (w *Writer) Append(results []*models.CrawlResult) error {
	if len(results) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	name := shardName(time.Now())
	path := filepath.Join(w.trainDir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open shard %s: %w", name, err)
	}
	defer f.Close()

	var written int
	var bytesWritten int64
	for _, r := range results {
		line, err := json.Marshal(toShardRecord(r))
		if err != nil {
			continue
		}
		line = append(line, '\n')
		n, err := f.Write(line)
		if err != nil {
			return fmt.Errorf("write shard %s: %w", name, err)
		}
		written++
		bytesWritten += int64(n)
	}

	w.recordWriteLocked(name, written, bytesWritten)
	return w.saveIndexLocked()
}

func (w *Writer) recordWriteLocked(name string, records int, bytesWritten int64) {
	for i := range w.index.Shards {
		if w.index.Shards[i].Name == name {
			w.index.Shards[i].Records += records
			w.index.Shards[i].SizeBytes += bytesWritten
			return
		}
	}
	w.index.Shards = append(w.index.Shards, models.ShardEntry{
		Name:      name,
		Records:   records,
		SizeBytes: bytesWritten,
		CreatedAt: time.Now().UTC(),
	})
}

func (w *Writer) saveIndexLocked() error {
	data, err := json.MarshalIndent(w.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(w.indexPath(), data, 0o644)
}

// TrainDir returns the root directory this writer manages, letting
// callers (e.g. the searcher) locate shard files directly.
func (w *Writer) TrainDir() string {
	return w.trainDir
}

// ReadShard parses every record out of the named live shard file,
// skipping lines that fail to unmarshal rather than failing the whole
// read (a shard is append-only; a partially-written last line from a
// crash should not make the rest unreadable).
func (w *Writer) ReadShard(name string) ([]Record, error) {
	f, err := os.Open(filepath.Join(w.trainDir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Index returns a snapshot copy of the shard index.
func (w *Writer) Index() models.ShardIndex {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]models.ShardEntry, len(w.index.Shards))
	copy(cp, w.index.Shards)
	return models.ShardIndex{Shards: cp}
}

// Compact gzip-archives every live shard older than retentionDays,
// removing the original and the live index entry. Failures leave the
// shard in place and indexed (spec §4.4 "Compaction").
func (w *Writer) Compact(retentionDays int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	kept := w.index.Shards[:0]

	for _, entry := range w.index.Shards {
		if entry.Archived || entry.CreatedAt.After(cutoff) {
			kept = append(kept, entry)
			continue
		}
		if err := w.archiveShardLocked(entry.Name); err != nil {
			if w.log != nil {
				w.log.Error().Err(err).Str("shard", entry.Name).Msg("shard archival failed, keeping live")
			}
			kept = append(kept, entry)
			continue
		}
		// Archived successfully: drop from the live index.
	}
	w.index.Shards = kept
	return w.saveIndexLocked()
}

func (w *Writer) archiveShardLocked(name string) error {
	srcPath := filepath.Join(w.trainDir, name)
	dstPath := filepath.Join(w.trainDir, "archive", name+".gz")

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(dst)

	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return err
	}

	return os.Remove(srcPath)
}

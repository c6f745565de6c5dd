// Package extract implements the Content Extractor: article body
// selection, title/meta/publish-date parsing, normalization, hashing and
// token estimation (spec §4.7).
package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/focusedcrawl/internal/models"
)

// bodySelectors is the fixed ordered selector list preferred for the
// article body, per spec §4.7 step 5.
var bodySelectors = []string{
	"article",
	"main article",
	"div.post-content",
	"div.entry-content",
	"main",
}

// publishDateMeta is the fixed meta name/property list checked for a
// publish date, per spec §4.7 step 4.
var publishDateMeta = []string{
	"article:published_time",
	"og:article:published_time",
	"publish_date",
	"publication_date",
	"date",
	"dc.date",
	"dc.date.issued",
}

const excerptLength = 420

// Extracted is the output of extracting a single fetched page.
type Extracted struct {
	Title           string
	MetaDescription string
	PublishDate     *time.Time
	NormalizedText  string
	Excerpt         string
	ContentHash     string
	TokensEst       int
	Markdown        string
	Links           []string
}

// Extract parses html and produces the canonical extracted fields plus a
// markdown rendering, never as a substitute for NormalizedText. No caller
// in this module consumes Markdown: the scorer and the publisher are
// given NormalizedText (or the LLM-extracted content) instead.
func Extract(html, sourceURL string) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	title := extractTitle(doc)
	metaDescription := extractMetaDescription(doc)
	publishDate := extractPublishDate(doc)
	bodyText := extractBodyText(doc)
	normalized := models.NormalizeText(bodyText)

	markdown := convertToMarkdown(html, sourceURL)

	return &Extracted{
		Title:           title,
		MetaDescription: metaDescription,
		PublishDate:     publishDate,
		NormalizedText:  normalized,
		Excerpt:         buildExcerpt(normalized),
		ContentHash:     models.ComputeContentHash(normalized),
		TokensEst:       models.EstimateTokens(normalized),
		Markdown:        markdown,
		Links:           extractLinks(doc, sourceURL),
	}, nil
}

// extractTitle implements spec §4.7 step 2: <title>, then og:title, then
// first <h1>; fallback "Untitled Document".
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := strings.TrimSpace(ogTitle); t != "" {
			return t
		}
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return "Untitled Document"
}

// extractMetaDescription implements spec §4.7 step 3.
func extractMetaDescription(doc *goquery.Document) string {
	selectors := []string{
		`meta[name="description"]`,
		`meta[property="og:description"]`,
		`meta[name="twitter:description"]`,
	}
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).Attr("content"); ok {
			if c := strings.TrimSpace(content); c != "" {
				return c
			}
		}
	}
	return ""
}

// extractPublishDate implements spec §4.7 step 4: fixed meta list, else
// first <time datetime>; parsed as RFC3339 UTC, invalid -> absent.
func extractPublishDate(doc *goquery.Document) *time.Time {
	for _, name := range publishDateMeta {
		sel := `meta[property="` + name + `"], meta[name="` + name + `"]`
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(content)); err == nil {
				utc := t.UTC()
				return &utc
			}
		}
	}
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(dt)); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// extractBodyText implements spec §4.7 steps 5-6: select the body
// container via the fixed selector cascade (else all <p> text), strip
// script/style/nav/footer/aside, join text of paragraphs/headings/list
// items on newlines.
func extractBodyText(doc *goquery.Document) string {
	work := doc.Clone()
	work.Find("script, style, nav, footer, aside").Remove()

	var container *goquery.Selection
	for _, sel := range bodySelectors {
		if found := work.Find(sel).First(); found.Length() > 0 {
			container = found
			break
		}
	}

	var lines []string
	if container != nil {
		container.Find("p, h1, h2, h3, h4, h5, h6, li").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				lines = append(lines, text)
			}
		})
		if len(lines) == 0 {
			if text := strings.TrimSpace(container.Text()); text != "" {
				lines = append(lines, text)
			}
		}
	}
	if len(lines) == 0 {
		work.Find("p").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				lines = append(lines, text)
			}
		})
	}

	return strings.Join(lines, "\n")
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// buildExcerpt implements spec §4.7 step 7: first 420 chars, "..."
// suffix when truncated.
func buildExcerpt(normalizedText string) string {
	return ExcerptN(normalizedText, excerptLength)
}

// ExcerptN trims normalizedText to at most maxLen collapsed-whitespace
// characters, appending "..." when truncated. Shared by the spec §4.7
// excerpt (420 chars) and the fallback article summary (360 chars,
// mirroring the original crawler's _build_excerpt).
func ExcerptN(normalizedText string, maxLen int) string {
	collapsed := whitespaceRun.ReplaceAllString(normalizedText, " ")
	collapsed = strings.TrimSpace(collapsed)
	runes := []rune(collapsed)
	if len(runes) <= maxLen {
		return collapsed
	}
	return string(runes[:maxLen]) + "..."
}

// convertToMarkdown renders html to markdown for LLM consumption only,
// using the teacher's html-to-markdown wiring.
func convertToMarkdown(html, sourceURL string) string {
	converter := md.NewConverter(sourceURL, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return ""
	}
	return markdown
}

// extractLinks returns every absolute http(s) href discovered on the
// page, resolved against sourceURL, deduplicated.
func extractLinks(doc *goquery.Document, sourceURL string) []string {
	var links []string
	seen := make(map[string]bool)

	base, baseErr := resolveBase(sourceURL)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved := href
		if baseErr == nil {
			if abs, err := base.Parse(href); err == nil {
				resolved = abs.String()
			}
		}
		if u, err := url.Parse(resolved); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links
}

func resolveBase(sourceURL string) (*url.URL, error) {
	return url.Parse(sourceURL)
}

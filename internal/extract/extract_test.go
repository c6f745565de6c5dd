package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `
<html lang="en">
<head>
  <title>My Article Title</title>
  <meta name="description" content="A short description.">
  <meta property="article:published_time" content="2024-03-01T12:00:00Z">
</head>
<body>
  <nav>Site nav</nav>
  <article>
    <h1>Heading One</h1>
    <p>First paragraph of the article body.</p>
    <p>Second paragraph with more content.</p>
  </article>
  <footer>Footer text</footer>
  <a href="/relative-link">Link</a>
  <a href="https://other.example/abs">Abs Link</a>
</body>
</html>`

func TestExtractTitleMetaAndDate(t *testing.T) {
	got, err := Extract(samplePage, "https://example.com/post")
	require.NoError(t, err)

	assert.Equal(t, "My Article Title", got.Title)
	assert.Equal(t, "A short description.", got.MetaDescription)
	require.NotNil(t, got.PublishDate)
	assert.Equal(t, 2024, got.PublishDate.Year())
}

func TestExtractBodyExcludesNavAndFooter(t *testing.T) {
	got, err := Extract(samplePage, "https://example.com/post")
	require.NoError(t, err)

	assert.Contains(t, got.NormalizedText, "First paragraph")
	assert.NotContains(t, got.NormalizedText, "Site nav")
	assert.NotContains(t, got.NormalizedText, "Footer text")
}

func TestExtractContentHashAndTokens(t *testing.T) {
	got, err := Extract(samplePage, "https://example.com/post")
	require.NoError(t, err)

	assert.Len(t, got.ContentHash, 64)
	assert.Equal(t, len(got.NormalizedText)/4, got.TokensEst)
}

func TestExtractLinksResolvesRelative(t *testing.T) {
	got, err := Extract(samplePage, "https://example.com/post")
	require.NoError(t, err)

	assert.Contains(t, got.Links, "https://example.com/relative-link")
	assert.Contains(t, got.Links, "https://other.example/abs")
}

func TestExtractTitleFallsBackToUntitled(t *testing.T) {
	got, err := Extract("<html><body><p>no title here</p></body></html>", "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Document", got.Title)
}

func TestBuildExcerptTruncatesWithEllipsis(t *testing.T) {
	long := ""
	for i := 0; i < 500; i++ {
		long += "a"
	}
	excerpt := buildExcerpt(long)
	assert.True(t, len(excerpt) > excerptLength)
	assert.Contains(t, excerpt, "...")
}

package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyThrottled(t *testing.T) {
	outcome := classify(429, "text/html", "<html></html>")
	assert.Equal(t, OutcomeThrottled, outcome.Kind)
}

func TestClassifyServerError(t *testing.T) {
	outcome := classify(503, "text/html", "")
	assert.Equal(t, OutcomeServerError, outcome.Kind)
}

func TestClassifyClientErrorExcludesThrottled(t *testing.T) {
	outcome := classify(404, "text/html", "")
	assert.Equal(t, OutcomeClientError, outcome.Kind)
}

func TestClassifySkipsNonHTML(t *testing.T) {
	outcome := classify(200, "application/pdf", "")
	assert.Equal(t, OutcomeSkipNonHTML, outcome.Kind)
}

func TestClassifyAllowsXHTML(t *testing.T) {
	outcome := classify(200, "application/xhtml+xml", "<html></html>")
	assert.Equal(t, OutcomeOK, outcome.Kind)
}

func TestClassifyOKOnSuccessfulHTML(t *testing.T) {
	outcome := classify(200, "text/html; charset=utf-8", "<html><body/></html>")
	assert.Equal(t, OutcomeOK, outcome.Kind)
	assert.Equal(t, "<html><body/></html>", outcome.HTML)
}

func TestClassifyDefaultsOKWithEmptyContentType(t *testing.T) {
	outcome := classify(200, "", "<html/>")
	assert.Equal(t, OutcomeOK, outcome.Kind)
}

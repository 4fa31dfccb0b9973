package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `# Logging Analysis

The service uses slf4j with logback and ships logs to Splunk for search.
Requests carry a correlation id. Audit log entries cover admin actions.
The reviewers confirmed the code does not log passwords; sensitive fields
are properly masked.

# Availability Analysis

Outgoing calls use retry with exponential backoff and a circuit breaker.
HTTP clients set a timeout on every call.

# Error Handling Analysis

Responses use standard HTTP status codes. Unit tests cover the error paths.
`

func TestParseReviewReportSectionsAndFlags(t *testing.T) {
	caps := ParseReviewReport(sampleReport)

	assert.Equal(t, "llm", caps.Source)
	assert.True(t, caps.Flag(CapLoggingFramework))
	assert.Contains(t, caps.LoggingFrameworks, "slf4j")
	assert.Contains(t, caps.LoggingFrameworks, "logback")
	assert.True(t, caps.Flag(CapLogSearch))
	assert.True(t, caps.Flag(CapAuditLogs))
	assert.True(t, caps.Flag(CapTraceID))
	assert.True(t, caps.Flag(CapRetryLogic))
	assert.True(t, caps.Flag(CapCircuitBreaker))
	assert.True(t, caps.Flag(CapIOTimeouts))
	assert.True(t, caps.Flag(CapStandardHTTPCodes))
	assert.True(t, caps.Flag(CapAutomatedTests))

	// the report names passwords only to say they are masked
	assert.False(t, caps.Flag(CapConfidentialLogging))
}

func TestParseReviewReportFlagsConfidentialMentions(t *testing.T) {
	report := "# Logging Analysis\n\nThe login handler logs the raw password on failure.\n"
	caps := ParseReviewReport(report)
	assert.True(t, caps.Flag(CapConfidentialLogging))
}

func TestParseReviewReportMissingSections(t *testing.T) {
	report := "The repository looks fine. retry timeout circuit breaker unit test"
	caps := ParseReviewReport(report)

	// Keywords outside a recognized section heading prove nothing.
	assert.False(t, caps.Flag(CapRetryLogic))
	assert.False(t, caps.Flag(CapIOTimeouts))
	assert.False(t, caps.Flag(CapAutomatedTests))
}

func TestParseReviewReportAcceptsH2Headings(t *testing.T) {
	report := "## Availability Analysis\n\nretry everywhere\n"
	caps := ParseReviewReport(report)
	assert.True(t, caps.Flag(CapRetryLogic))
}

func TestParseReviewReportPrefersStructuredJSON(t *testing.T) {
	report := "# Availability Analysis\n\nretry everywhere\n\n" +
		"```json\n{\"capabilities\": {\"has_circuit_breaker\": true, \"has_retry_logic\": false}, " +
		"\"logging_frameworks\": [\"winston\"]}\n```\n"
	caps := ParseReviewReport(report)

	assert.Equal(t, "llm", caps.Source)
	assert.True(t, caps.Flag(CapCircuitBreaker))
	assert.Equal(t, []string{"winston"}, caps.LoggingFrameworks)

	// The structured answer wins over the surrounding prose.
	assert.False(t, caps.Flag(CapRetryLogic))
}

func TestParseReviewReportAcceptsFlatStructuredKeys(t *testing.T) {
	caps := ParseReviewReport(`{"has_audit_logs": true, "unrelated": "x"}`)
	assert.True(t, caps.Flag(CapAuditLogs))
	assert.False(t, caps.Flag(CapRetryLogic))
}

func TestParseReviewReportFallsBackOnUnrelatedJSON(t *testing.T) {
	report := "# Availability Analysis\n\nretry everywhere\n\nScore: {\"score\": 7}\n"
	caps := ParseReviewReport(report)

	// JSON that names no known capability proves nothing on its own.
	assert.True(t, caps.Flag(CapRetryLogic))
}

func TestExtractJSONFromMarkdown(t *testing.T) {
	fenced := "Here you go:\n```json\n{\"a\": 1}\n```\ndone"
	obj := ExtractJSONFromMarkdown(fenced)
	require.NotNil(t, obj)
	assert.Equal(t, float64(1), obj["a"])

	bare := `{"b": "x"}`
	obj = ExtractJSONFromMarkdown(bare)
	require.NotNil(t, obj)
	assert.Equal(t, "x", obj["b"])

	embedded := `The result is {"c": true} as requested.`
	obj = ExtractJSONFromMarkdown(embedded)
	require.NotNil(t, obj)
	assert.Equal(t, true, obj["c"])

	assert.Nil(t, ExtractJSONFromMarkdown("no json here"))
	assert.Nil(t, ExtractJSONFromMarkdown("broken { json"))
}

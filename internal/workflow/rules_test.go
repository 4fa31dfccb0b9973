package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance-hub/backend/internal/analysis"
	"compliance-hub/backend/pkg/models"
)

var canonicalDescriptions = []string{
	"Logs are searchable and available",
	"Avoid logging confidential data",
	"Create audit trail logs",
	"Implement tracking ID for log messages",
	"Log REST API calls",
	"Log application messages",
	"Client UI errors are logged",
	"Retry Logic",
	"Set timeouts on IO operation",
	"Auto scale",
	"Throttling, drop request",
	"Set circuit breakers on outgoing requests",
	"Log system errors",
	"Use HTTP standard error codes",
	"Include Client error tracking",
	"Automated Regression Testing",
}

func TestNormalizeRuleKey(t *testing.T) {
	assert.Equal(t, "retry logic", NormalizeRuleKey("Retry Logic"))
	assert.Equal(t, "retry logic", NormalizeRuleKey("  Retry   LOGIC "))
	assert.Equal(t, "throttling, drop request", NormalizeRuleKey("Throttling,\tdrop request"))
}

func TestLookupRuleCoversCanonicalDescriptions(t *testing.T) {
	for _, desc := range canonicalDescriptions {
		_, ok := LookupRule(desc)
		assert.True(t, ok, "no rule for %q", desc)
	}
	_, ok := LookupRule("Something nobody ever asked for")
	assert.False(t, ok)
}

func TestLookupRuleIsCaseInsensitive(t *testing.T) {
	_, ok := LookupRule("RETRY logic")
	assert.True(t, ok)
}

func TestLogsSearchableNeedsBothCapabilities(t *testing.T) {
	rule, ok := LookupRule("Logs are searchable and available")
	require.True(t, ok)

	caps := analysis.NewCapabilityMap()
	caps.Flags[analysis.CapLoggingFramework] = true
	res := rule(caps, nil)
	assert.False(t, res.Validated)
	assert.NotEmpty(t, res.Recommendation)

	caps.Flags[analysis.CapLogSearch] = true
	res = rule(caps, nil)
	assert.True(t, res.Validated)
}

func TestConfidentialDataRuleIsInverted(t *testing.T) {
	rule, ok := LookupRule("Avoid logging confidential data")
	require.True(t, ok)

	res := rule(analysis.NewCapabilityMap(), nil)
	assert.True(t, res.Validated)

	caps := analysis.NewCapabilityMap()
	caps.Flags[analysis.CapConfidentialLogging] = true
	res = rule(caps, nil)
	assert.False(t, res.Validated)
	assert.Contains(t, res.Reason, "confidential")
}

func TestApplicationMessagesThreshold(t *testing.T) {
	rule, ok := LookupRule("Log application messages")
	require.True(t, ok)

	caps := analysis.NewCapabilityMap()
	caps.PatternsFound["logging"] = 10
	assert.False(t, rule(caps, nil).Validated)

	caps.PatternsFound["logging"] = 11
	res := rule(caps, nil)
	assert.True(t, res.Validated)
	assert.Contains(t, res.Details, "11")
}

func TestRegressionTestingNeedsCoverage(t *testing.T) {
	rule, ok := LookupRule("Automated Regression Testing")
	require.True(t, ok)

	caps := analysis.NewCapabilityMap()
	caps.Flags[analysis.CapAutomatedTests] = true
	caps.TestCoverage = 70
	assert.False(t, rule(caps, nil).Validated)

	caps.TestCoverage = 71
	assert.True(t, rule(caps, nil).Validated)

	caps.Flags[analysis.CapAutomatedTests] = false
	caps.TestCoverage = 95
	assert.False(t, rule(caps, nil).Validated)
}

func TestSimulatedCapabilitiesPassAllRules(t *testing.T) {
	caps := analysis.SimulatedCapabilityMap()
	passed := 0
	for _, desc := range canonicalDescriptions {
		rule, ok := LookupRule(desc)
		require.True(t, ok)
		if rule(caps, nil).Validated {
			passed++
		}
	}
	assert.Equal(t, len(canonicalDescriptions), passed)
}

func TestDuplicateRuleKeys(t *testing.T) {
	items := []models.ChecklistItem{
		{Description: "Log system errors"},
		{Description: "log  SYSTEM errors"},
		{Description: "Retry Logic"},
	}
	dups := DuplicateRuleKeys(items)
	require.Len(t, dups, 1)
	assert.Equal(t, "log system errors", dups[0])

	assert.Empty(t, DuplicateRuleKeys(items[1:]))
}

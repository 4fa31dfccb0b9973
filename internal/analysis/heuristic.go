package analysis

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"compliance-hub/backend/internal/logging"
)

// PatternRule is one category-tagged regex. A match increments the category
// counter and proves the listed capabilities.
type PatternRule struct {
	Expr  string
	Flags []string
	// Framework, when set, is recorded in the logging-framework inventory
	// on first match.
	Framework string
}

// PatternConfig drives the heuristic analyzer: regex rules per category and
// the minimum number of category matches before that category's flags count.
type PatternConfig struct {
	Categories map[string][]PatternRule
	MinMatches map[string]int
}

// DefaultPatternConfig covers the four concerns the checklist rules consult:
// logging, security/confidentiality, availability/resilience and error
// handling.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		Categories: map[string][]PatternRule{
			"logging": {
				{Expr: `log4j`, Flags: []string{CapLoggingFramework}, Framework: "log4j"},
				{Expr: `slf4j`, Flags: []string{CapLoggingFramework}, Framework: "slf4j"},
				{Expr: `logback`, Flags: []string{CapLoggingFramework}, Framework: "logback"},
				{Expr: `winston`, Flags: []string{CapLoggingFramework}, Framework: "winston"},
				{Expr: `bunyan`, Flags: []string{CapLoggingFramework}, Framework: "bunyan"},
				{Expr: `\bzap\.(NewProduction|NewDevelopment|SugaredLogger)`, Flags: []string{CapLoggingFramework}, Framework: "zap"},
				{Expr: `splunk|elasticsearch|kibana|logstash|datadog|graylog`, Flags: []string{CapLogSearch}},
				{Expr: `audit[_\s.-]?(log|trail)`, Flags: []string{CapAuditLogs}},
				{Expr: `log\w*\s*\.\s*(info|debug|warn)\b`},
				{Expr: `log\w*\s*\.\s*error\b`, Flags: []string{CapSystemErrorLogging}},
				{Expr: `(api|rest)\w*.{0,40}log|log\w*.{0,40}(api|rest)`, Flags: []string{CapAPICallLogging}},
			},
			"security": {
				{Expr: `log\w*\s*[(.].{0,60}(password|passwd|secret|credential)`, Flags: []string{CapConfidentialLogging}},
				{Expr: `(print|echo|console\.log).{0,40}(password|secret|token)`, Flags: []string{CapConfidentialLogging}},
			},
			"availability": {
				{Expr: `\bretr(y|ies)\b|backoff`, Flags: []string{CapRetryLogic}},
				{Expr: `timeout`, Flags: []string{CapIOTimeouts}},
				{Expr: `auto.?scal`, Flags: []string{CapAutoScaling}},
				{Expr: `throttl|rate.?limit`, Flags: []string{CapThrottling}},
				{Expr: `circuit.?breaker|hystrix|resilience4j|gobreaker`, Flags: []string{CapCircuitBreaker}},
			},
			"error_handling": {
				{Expr: `trace.?id|correlation.?id|request.?id|x-request-id`, Flags: []string{CapTraceID}},
				{Expr: `console\.error|sentry|rollbar|bugsnag`, Flags: []string{CapUIErrorLogging, CapClientErrorTracking}},
				{Expr: `status\s*(code)?\s*[=(:]{1,2}\s*[45]\d\d|http\.Status(BadRequest|InternalServerError|NotFound)`, Flags: []string{CapStandardHTTPCodes}},
				{Expr: `(report|track)\w*error|error\w*track`, Flags: []string{CapClientErrorTracking}},
			},
		},
		MinMatches: map[string]int{
			"logging":        1,
			"security":       1,
			"availability":   1,
			"error_handling": 1,
		},
	}
}

type compiledRule struct {
	re   *regexp.Regexp
	rule PatternRule
}

// AnalyzeCorpus scans every file against every pattern, case-insensitive and
// multi-line, and derives a capability map. The scan is pure: the same corpus
// and pattern set always produce the same result. A pattern that fails to
// compile is logged and skipped, never fatal.
func AnalyzeCorpus(files []File, cfg PatternConfig, logger *logging.Logger, runID string) CapabilityMap {
	caps := NewCapabilityMap()
	caps.Source = "heuristic"

	categories := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	compiled := make(map[string][]compiledRule, len(categories))
	for _, category := range categories {
		for _, rule := range cfg.Categories[category] {
			re, err := regexp.Compile(`(?im)` + rule.Expr)
			if err != nil {
				logger.Warn("[analysis %s] skipping unparseable pattern %q in %s: %v", runID, rule.Expr, category, err)
				continue
			}
			compiled[category] = append(compiled[category], compiledRule{re: re, rule: rule})
		}
		caps.PatternsFound[category] = 0
	}

	// flags proven per category, applied only once the category clears its
	// match threshold
	pendingFlags := make(map[string]map[string]bool, len(categories))
	frameworks := make(map[string]bool)

	for _, file := range files {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Path)), ".")
		if ext != "" {
			caps.FileTypes[ext]++
		}

		for _, category := range categories {
			for _, cr := range compiled[category] {
				n := len(cr.re.FindAllStringIndex(file.Content, -1))
				if n == 0 {
					continue
				}
				caps.PatternsFound[category] += n
				if pendingFlags[category] == nil {
					pendingFlags[category] = make(map[string]bool)
				}
				for _, flag := range cr.rule.Flags {
					pendingFlags[category][flag] = true
				}
				if cr.rule.Framework != "" && !frameworks[cr.rule.Framework] {
					frameworks[cr.rule.Framework] = true
					caps.LoggingFrameworks = append(caps.LoggingFrameworks, cr.rule.Framework)
				}
			}
		}
	}
	sort.Strings(caps.LoggingFrameworks)

	for _, category := range categories {
		min := cfg.MinMatches[category]
		if min <= 0 {
			min = 1
		}
		if caps.PatternsFound[category] < min {
			continue
		}
		for flag := range pendingFlags[category] {
			caps.Flags[flag] = true
		}
	}

	caps.TestCoverage = testCoverageProxy(files)
	caps.Flags[CapAutomatedTests] = caps.TestCoverage > 0
	return caps
}

// testCoverageProxy estimates coverage as the fraction of files whose path
// mentions "test" or "spec", capped at 100.
func testCoverageProxy(files []File) int {
	if len(files) == 0 {
		return 0
	}
	testFiles := 0
	for _, f := range files {
		lower := strings.ToLower(f.Path)
		if strings.Contains(lower, "test") || strings.Contains(lower, "spec") {
			testFiles++
		}
	}
	coverage := testFiles * 100 / len(files)
	if coverage > 100 {
		coverage = 100
	}
	return coverage
}

package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseReviewReport converts the reviewer's report into a capability map.
// A structured JSON object embedded in the response wins when it names known
// capabilities; otherwise the markdown sections are read with keyword
// heuristics. Missing sections leave their capability fields at the default
// false; the parser itself never fails.
func ParseReviewReport(report string) CapabilityMap {
	if caps, ok := capsFromStructured(ExtractJSONFromMarkdown(report)); ok {
		return caps
	}

	caps := NewCapabilityMap()
	caps.Source = "llm"
	lower := strings.ToLower(report)

	if hasSection(report, "Logging Analysis") {
		if containsAny(lower, "log4j", "slf4j", "winston", "bunyan", "logback", "log4net", "nlog") {
			caps.Flags[CapLoggingFramework] = true
			for _, fw := range []string{"log4j", "slf4j", "winston", "bunyan", "logback", "log4net", "nlog", "java.util.logging"} {
				if strings.Contains(lower, fw) {
					caps.LoggingFrameworks = append(caps.LoggingFrameworks, fw)
				}
			}
		}
		if containsAny(lower, "splunk", "elasticsearch", "kibana", "datadog", "logstash", "graylog") {
			caps.Flags[CapLogSearch] = true
		}
		if containsAny(lower, "password", "token", "secret", "credential", "pii", "personally identifiable") {
			// Reviewers often mention sensitive data to confirm it is NOT
			// logged; only flag when the report lacks that negation.
			if !containsAny(lower, "not log", "avoid logging", "properly mask") {
				caps.Flags[CapConfidentialLogging] = true
			}
		}
		if strings.Contains(lower, "audit") && strings.Contains(lower, "log") {
			caps.Flags[CapAuditLogs] = true
		}
		if containsAny(lower, "traceid", "correlation id", "trace id", "request id", "transaction id") {
			caps.Flags[CapTraceID] = true
		}
		if (strings.Contains(lower, "api") && strings.Contains(lower, "log")) || strings.Contains(lower, "rest") {
			caps.Flags[CapAPICallLogging] = true
		}
		if strings.Contains(lower, "ui") && strings.Contains(lower, "error") && strings.Contains(lower, "log") {
			caps.Flags[CapUIErrorLogging] = true
		}
		if strings.Contains(lower, "system") && strings.Contains(lower, "error") && strings.Contains(lower, "log") {
			caps.Flags[CapSystemErrorLogging] = true
		}
	}

	if hasSection(report, "Availability Analysis") {
		if strings.Contains(lower, "retry") {
			caps.Flags[CapRetryLogic] = true
		}
		if strings.Contains(lower, "timeout") {
			caps.Flags[CapIOTimeouts] = true
		}
		if strings.Contains(lower, "auto") && strings.Contains(lower, "scal") {
			caps.Flags[CapAutoScaling] = true
		}
		if containsAny(lower, "throttle", "rate limit", "ratelimit") {
			caps.Flags[CapThrottling] = true
		}
		if strings.Contains(lower, "circuit breaker") {
			caps.Flags[CapCircuitBreaker] = true
		}
	}

	if hasSection(report, "Error Handling Analysis") {
		if containsAny(lower, "http", "status code", "response code", "error code") {
			caps.Flags[CapStandardHTTPCodes] = true
		}
		if strings.Contains(lower, "client") && strings.Contains(lower, "error") && strings.Contains(lower, "track") {
			caps.Flags[CapClientErrorTracking] = true
		}
		if containsAny(lower, "unit test", "integration test", "automated test", "test") {
			caps.Flags[CapAutomatedTests] = true
		}
	}

	return caps
}

var knownCapabilities = map[string]bool{
	CapLoggingFramework:    true,
	CapLogSearch:           true,
	CapConfidentialLogging: true,
	CapAuditLogs:           true,
	CapTraceID:             true,
	CapAPICallLogging:      true,
	CapUIErrorLogging:      true,
	CapRetryLogic:          true,
	CapIOTimeouts:          true,
	CapAutoScaling:         true,
	CapThrottling:          true,
	CapCircuitBreaker:      true,
	CapSystemErrorLogging:  true,
	CapStandardHTTPCodes:   true,
	CapClientErrorTracking: true,
	CapAutomatedTests:      true,
}

// capsFromStructured builds a capability map from a reviewer response that
// came back as JSON, either flat or under a "capabilities" key. It succeeds
// only when at least one known capability name is present with a boolean
// value; anything else falls through to the keyword heuristics.
func capsFromStructured(obj map[string]interface{}) (CapabilityMap, bool) {
	if obj == nil {
		return CapabilityMap{}, false
	}
	fields := obj
	if inner, ok := obj["capabilities"].(map[string]interface{}); ok {
		fields = inner
	}

	caps := NewCapabilityMap()
	caps.Source = "llm"
	recognized := false
	for name, v := range fields {
		b, ok := v.(bool)
		if !ok || !knownCapabilities[name] {
			continue
		}
		caps.Flags[name] = b
		recognized = true
	}
	if !recognized {
		return CapabilityMap{}, false
	}
	if raw, ok := obj["logging_frameworks"].([]interface{}); ok {
		for _, fw := range raw {
			if s, ok := fw.(string); ok {
				caps.LoggingFrameworks = append(caps.LoggingFrameworks, s)
			}
		}
	}
	return caps, true
}

func hasSection(report, title string) bool {
	return strings.Contains(report, "## "+title) || strings.Contains(report, "# "+title)
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

var jsonBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSONFromMarkdown pulls the first well-formed JSON object out of a
// markdown response: fenced code blocks first, then the whole text, then any
// brace-delimited span. Returns nil when no valid JSON is present.
func ExtractJSONFromMarkdown(text string) map[string]interface{} {
	for _, m := range jsonBlockRe.FindAllStringSubmatch(text, -1) {
		if obj := tryUnmarshal(m[1]); obj != nil {
			return obj
		}
	}
	if obj := tryUnmarshal(text); obj != nil {
		return obj
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return tryUnmarshal(text[start : end+1])
		}
	}
	return nil
}

func tryUnmarshal(s string) map[string]interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil
	}
	return obj
}

// Package analysis turns a source repository into a capability map: a flat
// boolean/count summary of what the codebase appears to implement. It layers
// a shallow git fetch, a glob-filtered file collector, a regex heuristic
// scanner and an optional LLM-backed reviewer behind a fixed fallback chain.
package analysis

// Capability names shared by every analyzer tier and the validation rules.
const (
	CapLoggingFramework    = "has_logging_framework"
	CapLogSearch           = "has_log_search_integration"
	CapConfidentialLogging = "has_confidential_data_logging"
	CapAuditLogs           = "has_audit_logs"
	CapTraceID             = "has_trace_id"
	CapAPICallLogging      = "has_api_call_logging"
	CapUIErrorLogging      = "has_ui_error_logging"
	CapRetryLogic          = "has_retry_logic"
	CapIOTimeouts          = "has_io_timeouts"
	CapAutoScaling         = "has_auto_scaling_config"
	CapThrottling          = "has_throttling"
	CapCircuitBreaker      = "has_circuit_breaker"
	CapSystemErrorLogging  = "has_system_error_logging"
	CapStandardHTTPCodes   = "has_standard_http_codes"
	CapClientErrorTracking = "has_client_error_tracking"
	CapAutomatedTests      = "has_automated_tests"
)

// CapabilityMap summarizes what an analyzed codebase appears to implement.
// It is produced fresh by each analyzer run and consumed immediately by the
// rule evaluator; it is never persisted on its own.
type CapabilityMap struct {
	Flags             map[string]bool
	PatternsFound     map[string]int
	FileTypes         map[string]int
	LoggingFrameworks []string
	TestCoverage      int // percent, 0..100

	// Source names the tier that produced the map: "heuristic",
	// "llm+heuristic" or "simulated".
	Source    string
	Simulated bool
}

// NewCapabilityMap returns an empty map with all flags unset.
func NewCapabilityMap() CapabilityMap {
	return CapabilityMap{
		Flags:         make(map[string]bool),
		PatternsFound: make(map[string]int),
		FileTypes:     make(map[string]int),
	}
}

// Flag reports the named capability; unknown names are false.
func (c CapabilityMap) Flag(name string) bool {
	return c.Flags[name]
}

// Merge overlays LLM-derived results onto heuristic results. Heuristic flags
// are filled in first; the overlay may add capabilities but never clears a
// flag the heuristic already proved. Counts and the coverage proxy stay
// heuristic since they come from the real corpus.
func Merge(heuristic, overlay CapabilityMap) CapabilityMap {
	merged := heuristic
	merged.Flags = make(map[string]bool, len(heuristic.Flags))
	for name, v := range heuristic.Flags {
		merged.Flags[name] = v
	}
	for name, v := range overlay.Flags {
		if v {
			merged.Flags[name] = true
		}
	}
	seen := make(map[string]bool, len(heuristic.LoggingFrameworks))
	for _, fw := range heuristic.LoggingFrameworks {
		seen[fw] = true
	}
	for _, fw := range overlay.LoggingFrameworks {
		if !seen[fw] {
			merged.LoggingFrameworks = append(merged.LoggingFrameworks, fw)
			seen[fw] = true
		}
	}
	merged.Source = "llm+heuristic"
	return merged
}

// SimulatedCapabilityMap is the last fallback tier: a fixed, clearly labeled
// synthetic result used only when real analysis cannot run at all, so the
// orchestrator always has a map to evaluate against.
func SimulatedCapabilityMap() CapabilityMap {
	caps := NewCapabilityMap()
	for _, name := range []string{
		CapLoggingFramework, CapLogSearch, CapAuditLogs, CapTraceID,
		CapAPICallLogging, CapUIErrorLogging, CapRetryLogic, CapIOTimeouts,
		CapAutoScaling, CapThrottling, CapCircuitBreaker,
		CapSystemErrorLogging, CapStandardHTTPCodes, CapClientErrorTracking,
		CapAutomatedTests,
	} {
		caps.Flags[name] = true
	}
	caps.Flags[CapConfidentialLogging] = false
	caps.LoggingFrameworks = []string{"log4j", "slf4j"}
	caps.TestCoverage = 87
	caps.FileTypes = map[string]int{
		"java": 45, "js": 20, "xml": 15, "properties": 5, "yaml": 8,
	}
	caps.PatternsFound = map[string]int{
		"logging":        120,
		"security":       0,
		"availability":   53,
		"error_handling": 35,
	}
	caps.Source = "simulated"
	caps.Simulated = true
	return caps
}

// ToDetails renders the map as an opaque payload suitable for a step's
// details column.
func (c CapabilityMap) ToDetails() map[string]interface{} {
	details := make(map[string]interface{}, len(c.Flags)+6)
	for name, v := range c.Flags {
		details[name] = v
	}
	details["test_coverage"] = c.TestCoverage
	details["patterns_found"] = c.PatternsFound
	details["file_types"] = c.FileTypes
	details["logging_frameworks"] = c.LoggingFrameworks
	details["source"] = c.Source
	details["simulated"] = c.Simulated
	return details
}

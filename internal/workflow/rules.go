// Package workflow orchestrates application validation runs: a sequential
// state machine of typed steps whose findings are reconciled back onto the
// application's checklist.
package workflow

import (
	"fmt"
	"strings"

	"compliance-hub/backend/internal/analysis"
	"compliance-hub/backend/pkg/models"
)

// RuleResult is the outcome of evaluating one checklist item against a
// capability map.
type RuleResult struct {
	Validated      bool
	Details        string
	Reason         string
	Recommendation string
}

// Rule is a pure function of (capability map, application). Rules never
// touch storage or the network, which keeps step results reproducible.
type Rule func(caps analysis.CapabilityMap, app *models.Application) RuleResult

// NormalizeRuleKey derives the stable rule key from a checklist item's legacy
// description: lowercase with whitespace collapsed. Items are matched to
// rules by this key, not by raw description text.
func NormalizeRuleKey(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

// ruleTable maps rule keys to their evaluation functions. Keys are the
// normalized forms of the canonical checklist descriptions seeded for every
// application.
var ruleTable = buildRuleTable()

// LookupRule returns the rule for a checklist item description, if any.
func LookupRule(description string) (Rule, bool) {
	r, ok := ruleTable[NormalizeRuleKey(description)]
	return r, ok
}

func buildRuleTable() map[string]Rule {
	flagRule := func(flag, detail, reason, recommendation string) Rule {
		return func(caps analysis.CapabilityMap, app *models.Application) RuleResult {
			if caps.Flag(flag) {
				return RuleResult{Validated: true, Details: detail}
			}
			return RuleResult{Reason: reason, Recommendation: recommendation}
		}
	}

	table := map[string]Rule{
		"logs are searchable and available": func(caps analysis.CapabilityMap, app *models.Application) RuleResult {
			if caps.Flag(analysis.CapLoggingFramework) && caps.Flag(analysis.CapLogSearch) {
				return RuleResult{Validated: true, Details: "Found logging framework and log search integration"}
			}
			return RuleResult{
				Reason:         "Could not confirm logs are searchable",
				Recommendation: "Ensure the application uses a logging framework and integrates with a log search system",
			}
		},
		"avoid logging confidential data": func(caps analysis.CapabilityMap, app *models.Application) RuleResult {
			if !caps.Flag(analysis.CapConfidentialLogging) {
				return RuleResult{Validated: true, Details: "No patterns of confidential data logging detected"}
			}
			return RuleResult{
				Reason:         "Detected potential confidential data in logs",
				Recommendation: "Review logging statements for potential PII, credentials, or sensitive data",
			}
		},
		"create audit trail logs": flagRule(analysis.CapAuditLogs,
			"Audit logging patterns detected",
			"Could not detect audit logging",
			"Implement audit logging for security-relevant events and user actions"),
		"implement tracking id for log messages": flagRule(analysis.CapTraceID,
			"Request tracking/trace ID patterns detected",
			"Could not detect tracking ID implementation",
			"Implement request tracking or trace IDs to correlate log messages across services"),
		"log rest api calls": flagRule(analysis.CapAPICallLogging,
			"API call logging detected",
			"Could not confirm API call logging",
			"Ensure all REST API calls are logged with appropriate details"),
		"log application messages": func(caps analysis.CapabilityMap, app *models.Application) RuleResult {
			patterns := caps.PatternsFound["logging"]
			if patterns > 10 {
				return RuleResult{Validated: true, Details: fmt.Sprintf("Found %d logging patterns in the codebase", patterns)}
			}
			return RuleResult{
				Reason:         "Insufficient application logging detected",
				Recommendation: "Implement comprehensive application logging throughout the codebase",
			}
		},
		"client ui errors are logged": flagRule(analysis.CapUIErrorLogging,
			"UI error logging detected",
			"Could not confirm UI error logging",
			"Implement client-side error logging and reporting"),
		"retry logic": flagRule(analysis.CapRetryLogic,
			"Retry logic patterns detected",
			"Could not detect retry logic",
			"Implement retry logic for transient failures in external service calls"),
		"set timeouts on io operation": flagRule(analysis.CapIOTimeouts,
			"IO timeout patterns detected",
			"Could not detect timeout settings on IO operations",
			"Set appropriate timeouts on all IO and network operations"),
		"auto scale": flagRule(analysis.CapAutoScaling,
			"Auto-scaling configuration detected",
			"Could not detect auto-scaling configuration",
			"Configure auto-scaling for the application deployment"),
		"throttling, drop request": flagRule(analysis.CapThrottling,
			"Request throttling mechanisms detected",
			"Could not detect request throttling implementation",
			"Implement request throttling to handle traffic spikes gracefully"),
		"set circuit breakers on outgoing requests": flagRule(analysis.CapCircuitBreaker,
			"Circuit breaker patterns detected",
			"Could not detect circuit breaker implementation",
			"Implement circuit breakers for outgoing service calls to prevent cascading failures"),
		"log system errors": flagRule(analysis.CapSystemErrorLogging,
			"System error logging detected",
			"Could not confirm system error logging",
			"Ensure all system errors are appropriately logged"),
		"use http standard error codes": flagRule(analysis.CapStandardHTTPCodes,
			"Standard HTTP error code usage detected",
			"Could not confirm standard HTTP error code usage",
			"Use standard HTTP status codes consistently in all API responses"),
		"include client error tracking": flagRule(analysis.CapClientErrorTracking,
			"Client error tracking implementation detected",
			"Could not detect client error tracking",
			"Implement client-side error tracking for better visibility into frontend issues"),
		"automated regression testing": func(caps analysis.CapabilityMap, app *models.Application) RuleResult {
			if caps.Flag(analysis.CapAutomatedTests) && caps.TestCoverage > 70 {
				return RuleResult{Validated: true, Details: fmt.Sprintf("Automated tests detected with %d%% coverage", caps.TestCoverage)}
			}
			return RuleResult{
				Reason:         "Insufficient automated testing",
				Recommendation: "Implement comprehensive automated regression tests with good coverage",
			}
		},
	}
	return table
}

// DuplicateRuleKeys reports rule keys shared by more than one checklist item
// in the given set. Duplicate descriptions cannot be disambiguated by the
// rule table or the reconciler, so runs flag them instead of silently
// resolving one instance.
func DuplicateRuleKeys(items []models.ChecklistItem) []string {
	counts := make(map[string]int, len(items))
	for _, item := range items {
		counts[NormalizeRuleKey(item.Description)]++
	}
	var dups []string
	for key, n := range counts {
		if n > 1 {
			dups = append(dups, key)
		}
	}
	return dups
}

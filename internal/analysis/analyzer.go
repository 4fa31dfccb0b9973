package analysis

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"

	"compliance-hub/backend/internal/logging"
)

// ErrTierUnavailable marks an analyzer tier that is disabled for this run.
// The fallback chain moves on to the next tier.
var ErrTierUnavailable = errors.New("analyzer tier unavailable")

// Options tunes one analysis run. The zero value selects the default
// collector and pattern configuration with every tier enabled.
type Options struct {
	// HeuristicOnly skips the network-dependent LLM tier.
	HeuristicOnly bool
	// DisableHeuristic skips the regex tier; with the LLM tier also
	// unavailable the run degrades to the simulated tier.
	DisableHeuristic bool
	Collector        *CollectorConfig
	Patterns         *PatternConfig
}

// Analyzer runs the fetch → collect → analyze pipeline. The tier order is
// fixed: LLM merged with heuristic, heuristic only, then a simulated map, so
// a caller always receives a capability map for real corpora.
type Analyzer struct {
	fetcher *Fetcher
	review  ReviewClient // nil disables the LLM tier
	logger  *logging.Logger
}

// NewAnalyzer creates an Analyzer. Passing a nil review client disables the
// LLM tier for every run; this is the constructor-time signal for missing
// backend credentials, not an error.
func NewAnalyzer(fetcher *Fetcher, review ReviewClient, logger *logging.Logger) *Analyzer {
	return &Analyzer{fetcher: fetcher, review: review, logger: logger}
}

// AnalyzeRepository clones the repository, collects its corpus and produces a
// capability map. Only fetch failures are returned as errors (*FetchError);
// analyzer-tier failures degrade down the chain instead.
func (a *Analyzer) AnalyzeRepository(ctx context.Context, repositoryURL string, opts Options) (CapabilityMap, error) {
	runID := uuid.New().String()[:8]

	snapshot, release, err := a.fetcher.Fetch(ctx, repositoryURL)
	if err != nil {
		return CapabilityMap{}, err
	}
	defer release()

	collectorCfg := DefaultCollectorConfig()
	if opts.Collector != nil {
		collectorCfg = *opts.Collector
	}
	files, stats, err := Collect(snapshot, collectorCfg)
	if err != nil {
		return CapabilityMap{}, err
	}
	a.logger.Info("[analysis %s] collected %d of %d files (%d skipped) from %s",
		runID, stats.Included, stats.Seen, stats.Skipped, redactURL(repositoryURL))

	return a.AnalyzeFiles(ctx, projectName(repositoryURL), files, opts, runID), nil
}

// AnalyzeFiles runs the tier chain over an already collected corpus.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, project string, files []File, opts Options, runID string) CapabilityMap {
	patterns := DefaultPatternConfig()
	if opts.Patterns != nil {
		patterns = *opts.Patterns
	}

	tiers := []struct {
		name string
		run  func() (CapabilityMap, error)
	}{
		{"llm+heuristic", func() (CapabilityMap, error) {
			if a.review == nil || opts.HeuristicOnly {
				return CapabilityMap{}, ErrTierUnavailable
			}
			report, err := a.review.Review(ctx, NewReviewRequest(project, files))
			if err != nil {
				return CapabilityMap{}, err
			}
			llm := ParseReviewReport(report)
			if opts.DisableHeuristic {
				llm.TestCoverage = testCoverageProxy(files)
				return llm, nil
			}
			heuristic := AnalyzeCorpus(files, patterns, a.logger, runID)
			return Merge(heuristic, llm), nil
		}},
		{"heuristic", func() (CapabilityMap, error) {
			if opts.DisableHeuristic {
				return CapabilityMap{}, ErrTierUnavailable
			}
			return AnalyzeCorpus(files, patterns, a.logger, runID), nil
		}},
		{"simulated", func() (CapabilityMap, error) {
			return SimulatedCapabilityMap(), nil
		}},
	}

	for _, tier := range tiers {
		caps, err := tier.run()
		if err == nil {
			a.logger.Info("[analysis %s] %s tier produced the capability map", runID, tier.name)
			return caps
		}
		if errors.Is(err, ErrTierUnavailable) {
			a.logger.Debug("[analysis %s] %s tier unavailable", runID, tier.name)
		} else {
			a.logger.Warn("[analysis %s] %s tier failed, falling back: %v", runID, tier.name, err)
		}
	}

	// Unreachable: the simulated tier never fails.
	return SimulatedCapabilityMap()
}

func projectName(repositoryURL string) string {
	name := path.Base(strings.TrimSuffix(repositoryURL, "/"))
	return strings.TrimSuffix(name, ".git")
}

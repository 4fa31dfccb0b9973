package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reviewFunc adapts a function to the ReviewClient interface.
type reviewFunc func(ctx context.Context, req *ReviewRequest) (string, error)

func (f reviewFunc) Review(ctx context.Context, req *ReviewRequest) (string, error) {
	return f(ctx, req)
}

var corpusWithRetry = []File{
	{Path: "main.go", Content: "retry with backoff"},
	{Path: "main_test.go", Content: "func TestMain(t *testing.T) {}"},
}

func TestAnalyzeFilesMergesReviewWithHeuristic(t *testing.T) {
	review := reviewFunc(func(ctx context.Context, req *ReviewRequest) (string, error) {
		assert.Equal(t, "demo", req.Project)
		return "# Availability Analysis\n\ncircuit breaker in place\n", nil
	})
	a := NewAnalyzer(nil, review, testLogger())

	caps := a.AnalyzeFiles(context.Background(), "demo", corpusWithRetry, Options{}, "t1")

	assert.Equal(t, "llm+heuristic", caps.Source)
	assert.True(t, caps.Flag(CapCircuitBreaker), "flag from the review")
	assert.True(t, caps.Flag(CapRetryLogic), "flag from the heuristic scan")
	assert.Equal(t, 50, caps.TestCoverage)
}

func TestAnalyzeFilesFallsBackWhenReviewFails(t *testing.T) {
	review := reviewFunc(func(ctx context.Context, req *ReviewRequest) (string, error) {
		return "", errors.New("model overloaded")
	})
	a := NewAnalyzer(nil, review, testLogger())

	caps := a.AnalyzeFiles(context.Background(), "demo", corpusWithRetry, Options{}, "t2")

	assert.Equal(t, "heuristic", caps.Source)
	assert.True(t, caps.Flag(CapRetryLogic))
	assert.False(t, caps.Simulated)
}

func TestAnalyzeFilesWithoutReviewClient(t *testing.T) {
	a := NewAnalyzer(nil, nil, testLogger())

	caps := a.AnalyzeFiles(context.Background(), "demo", corpusWithRetry, Options{}, "t3")
	assert.Equal(t, "heuristic", caps.Source)
}

func TestAnalyzeFilesHeuristicOnlySkipsReview(t *testing.T) {
	review := reviewFunc(func(ctx context.Context, req *ReviewRequest) (string, error) {
		t.Fatal("review must not be called")
		return "", nil
	})
	a := NewAnalyzer(nil, review, testLogger())

	caps := a.AnalyzeFiles(context.Background(), "demo", corpusWithRetry, Options{HeuristicOnly: true}, "t4")
	assert.Equal(t, "heuristic", caps.Source)
}

func TestAnalyzeFilesDegradesToSimulated(t *testing.T) {
	a := NewAnalyzer(nil, nil, testLogger())

	caps := a.AnalyzeFiles(context.Background(), "demo", corpusWithRetry, Options{DisableHeuristic: true}, "t5")

	require.True(t, caps.Simulated)
	assert.Equal(t, "simulated", caps.Source)
	assert.True(t, caps.Flag(CapLoggingFramework))
	assert.False(t, caps.Flag(CapConfidentialLogging))
}

func TestProjectName(t *testing.T) {
	assert.Equal(t, "demo", projectName("https://github.com/acme/demo.git"))
	assert.Equal(t, "demo", projectName("https://github.com/acme/demo"))
	assert.Equal(t, "demo", projectName("https://github.com/acme/demo/"))
}

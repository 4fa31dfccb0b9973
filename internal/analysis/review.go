package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ReviewClient is an interface for the LLM-backed code review service.
type ReviewClient interface {
	// Review submits the corpus digest and returns the reviewer's markdown
	// report.
	Review(ctx context.Context, req *ReviewRequest) (string, error)
}

// ReviewRequest carries the corpus digest and project metadata sent to the
// reviewer backend.
type ReviewRequest struct {
	Project    string       `json:"project"`
	FocusAreas []string     `json:"focus_areas"`
	Files      []ReviewFile `json:"files"`
}

// ReviewFile is one truncated corpus entry included in the prompt.
type ReviewFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

const (
	// reviewMaxFiles and reviewMaxFileBytes bound the digest so the prompt
	// stays within typical model context limits.
	reviewMaxFiles     = 50
	reviewMaxFileBytes = 16 * 1024
)

// NewReviewRequest builds a bounded digest of the corpus.
func NewReviewRequest(project string, files []File) *ReviewRequest {
	req := &ReviewRequest{
		Project:    project,
		FocusAreas: []string{"logging", "availability", "error_handling"},
	}
	for _, f := range files {
		if len(req.Files) >= reviewMaxFiles {
			break
		}
		content := f.Content
		if len(content) > reviewMaxFileBytes {
			content = content[:reviewMaxFileBytes]
		}
		req.Files = append(req.Files, ReviewFile{Path: f.Path, Content: content})
	}
	return req
}

// HTTPReviewClient is an HTTP implementation of the ReviewClient interface.
type HTTPReviewClient struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPReviewClient creates a new HTTPReviewClient. The generous timeout
// covers slow model responses.
func NewHTTPReviewClient(url, apiKey string) *HTTPReviewClient {
	return &HTTPReviewClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Review submits the digest and returns the markdown report.
func (c *HTTPReviewClient) Review(ctx context.Context, req *ReviewRequest) (string, error) {
	requestBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/review", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get review: status code %d", resp.StatusCode)
	}

	var body struct {
		Report string `json:"report"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if body.Report == "" {
		return "", fmt.Errorf("review backend returned an empty report")
	}
	return body.Report, nil
}

package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"compliance-hub/backend/internal/logging"
)

// DefaultCloneTimeout bounds a repository clone when no override is configured.
const DefaultCloneTimeout = 5 * time.Minute

// FetchError reports a failed repository fetch with the underlying git
// diagnostic. Fetch failures are reported on the owning step, never retried
// by the engine.
type FetchError struct {
	URL      string
	TimedOut bool
	Output   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("repository clone timed out: %s", redactURL(e.URL))
	}
	msg := strings.TrimSpace(e.Output)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("failed to clone repository %s: %s", redactURL(e.URL), msg)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher clones remote repositories into transient workspaces.
type Fetcher struct {
	token   string
	timeout time.Duration
	logger  *logging.Logger
}

// NewFetcher creates a Fetcher. An empty token disables URL credential
// injection; a zero timeout selects DefaultCloneTimeout.
func NewFetcher(token string, timeout time.Duration, logger *logging.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultCloneTimeout
	}
	return &Fetcher{token: token, timeout: timeout, logger: logger}
}

// Fetch produces a shallow depth-1 snapshot of the repository's default
// branch in a freshly created temporary directory. The returned release
// function removes the snapshot and must be called regardless of outcome.
func (f *Fetcher) Fetch(ctx context.Context, repositoryURL string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "repo-snapshot-")
	if err != nil {
		return "", nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	release := func() { os.RemoveAll(dir) }

	cloneURL := injectToken(repositoryURL, f.token)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, "git", "clone", cloneURL, dir, "--depth", "1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		release()
		fe := &FetchError{URL: repositoryURL, Output: string(out), Err: err}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			fe.TimedOut = true
		}
		return "", nil, fe
	}

	f.logger.Info("Repository cloned in %.2fs: %s", time.Since(start).Seconds(), redactURL(repositoryURL))
	return dir, release, nil
}

// tokenHosts are the remotes the access token belongs to. Injection is
// limited to these so a crafted repository URL cannot siphon the credential
// off to an arbitrary host.
var tokenHosts = []string{"github.com", "gitlab.com", "bitbucket.org"}

// injectToken embeds the token as a URL credential for https remotes on a
// known host that carry no credential of their own.
func injectToken(repositoryURL, token string) string {
	if token == "" {
		return repositoryURL
	}
	scheme, rest, found := strings.Cut(repositoryURL, "://")
	if !found || scheme != "https" || strings.Contains(rest, "@") {
		return repositoryURL
	}
	host := rest
	if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)
	for _, known := range tokenHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return "https://" + token + "@" + rest
		}
	}
	return repositoryURL
}

// redactURL strips any embedded credential before the URL reaches a log line
// or an error message.
func redactURL(repositoryURL string) string {
	scheme, rest, found := strings.Cut(repositoryURL, "://")
	if !found {
		return repositoryURL
	}
	if _, host, hasCred := strings.Cut(rest, "@"); hasCred {
		return scheme + "://***@" + host
	}
	return repositoryURL
}

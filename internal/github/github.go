package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/ctk/internal/logging"
	"github.com/dshills/ctk/internal/remote"
)

const (
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL = "https://api.github.com"

	service  = "GitHub"
	perPage  = 100
	maxPages = 30 // the files endpoint stops at 3000 entries
)

// Client provides access to the GitHub REST API.
type Client struct {
	token   string
	apiURL  string
	httpCli *http.Client
	policy  remote.Policy
	logger  *zap.Logger
}

// NewClient creates a GitHub client. An empty apiURL selects DefaultAPIURL.
func NewClient(token, apiURL string, logger *zap.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token is not set (GITHUB_TOKEN or github.token)")
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		token:   token,
		apiURL:  strings.TrimRight(apiURL, "/"),
		httpCli: &http.Client{Timeout: 60 * time.Second},
		policy:  remote.DefaultPolicy(),
		logger:  logging.OrNop(logger),
	}, nil
}

// PRFile represents a file changed in a pull request.
type PRFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// PullRequest is the subset of the pull request resource ctk uses.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Draft   bool   `json:"draft"`
	Head    Ref    `json:"head"`
	Base    Ref    `json:"base"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
}

// Ref names a branch of a pull request.
type Ref struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// NewPullRequest holds the fields for opening a pull request.
type NewPullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Draft bool   `json:"draft,omitempty"`
}

// ReviewRequest represents a PR review to post.
type ReviewRequest struct {
	Body  string `json:"body"`
	Event string `json:"event"`
}

// GetPRFiles lists the files changed by a pull request, following
// pagination. Removed files are left out since there is nothing to analyze.
func (c *Client) GetPRFiles(ctx context.Context, owner, repo string, prNumber int) ([]string, error) {
	var names []string
	for page := 1; page <= maxPages; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d", owner, repo, prNumber, perPage, page)

		var files []PRFile
		if _, err := c.do(ctx, http.MethodGet, path, "", nil, &files); err != nil {
			if remote.StatusCode(err) == http.StatusNotFound {
				return nil, fmt.Errorf("PR #%d not found in %s/%s", prNumber, owner, repo)
			}
			return nil, fmt.Errorf("fetching PR files: %w", err)
		}
		for _, f := range files {
			if f.Status == "removed" {
				continue
			}
			names = append(names, f.Filename)
		}
		if len(files) < perPage {
			break
		}
	}
	c.log().Debug("fetched PR files", zap.Int("pr", prNumber), zap.Int("files", len(names)))
	return names, nil
}

// GetPRDiff fetches the unified diff of a pull request.
func (c *Client) GetPRDiff(ctx context.Context, owner, repo string, prNumber int) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, prNumber)
	body, err := c.do(ctx, http.MethodGet, path, "application/vnd.github.v3.diff", nil, nil)
	if err != nil {
		if remote.StatusCode(err) == http.StatusNotFound {
			return "", fmt.Errorf("PR #%d not found in %s/%s", prNumber, owner, repo)
		}
		return "", fmt.Errorf("fetching PR diff: %w", err)
	}
	return string(body), nil
}

// CreateBranch creates branch name from the head of base. A branch that
// already exists is not an error.
func (c *Client) CreateBranch(ctx context.Context, owner, repo, name, base string) error {
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	refPath := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, escapePath(base))
	if _, err := c.do(ctx, http.MethodGet, refPath, "", nil, &ref); err != nil {
		return fmt.Errorf("resolving base branch %s: %w", base, err)
	}

	payload := map[string]string{"ref": "refs/heads/" + name, "sha": ref.Object.SHA}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo), "", payload, nil)
	if err != nil {
		var se *remote.StatusError
		if errors.As(err, &se) && se.Status == http.StatusUnprocessableEntity &&
			strings.Contains(se.Body, "Reference already exists") {
			c.log().Debug("branch already exists", zap.String("branch", name))
			return nil
		}
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

// CreatePullRequest opens a pull request.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, pr NewPullRequest) (*PullRequest, error) {
	var created PullRequest
	if _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pulls", owner, repo), "", pr, &created); err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	return &created, nil
}

// ListPullRequests lists up to limit pull requests in state (open, closed
// or all).
func (c *Client) ListPullRequests(ctx context.Context, owner, repo, state string, limit int) ([]PullRequest, error) {
	if state == "" {
		state = "open"
	}
	if limit <= 0 || limit > perPage {
		limit = perPage
	}
	q := url.Values{}
	q.Set("state", state)
	q.Set("per_page", fmt.Sprint(limit))

	var prs []PullRequest
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/pulls?%s", owner, repo, q.Encode()), "", nil, &prs); err != nil {
		return nil, fmt.Errorf("listing pull requests: %w", err)
	}
	return prs, nil
}

// CreateOrUpdateFile commits content to path on branch, replacing the file
// if it exists.
func (c *Client) CreateOrUpdateFile(ctx context.Context, owner, repo, path, content, message, branch string) error {
	contentsPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(path))

	var existing struct {
		SHA string `json:"sha"`
	}
	_, err := c.do(ctx, http.MethodGet, contentsPath+"?ref="+url.QueryEscape(branch), "", nil, &existing)
	if err != nil && remote.StatusCode(err) != http.StatusNotFound {
		return fmt.Errorf("looking up %s: %w", path, err)
	}

	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}
	if existing.SHA != "" {
		payload["sha"] = existing.SHA
	}
	if _, err := c.do(ctx, http.MethodPut, contentsPath, "", payload, nil); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// PostReview posts body as a comment review on a pull request.
func (c *Client) PostReview(ctx context.Context, owner, repo string, prNumber int, body string) error {
	review := ReviewRequest{Body: body, Event: "COMMENT"}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repo, prNumber)
	if _, err := c.do(ctx, http.MethodPost, path, "", review, nil); err != nil {
		if remote.StatusCode(err) == http.StatusUnprocessableEntity {
			return fmt.Errorf("GitHub rejected review (422): %w", err)
		}
		return fmt.Errorf("posting review: %w", err)
	}
	return nil
}

// do sends one request with retries. in is JSON encoded when non-nil; out,
// when non-nil, receives the decoded JSON response. The raw body is returned.
func (c *Client) do(ctx context.Context, method, path, accept string, in, out any) ([]byte, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
	}
	if accept == "" {
		accept = "application/vnd.github.v3+json"
	}

	var body []byte
	err := remote.Do(ctx, c.policy, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
		if err != nil {
			return remote.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpCli.Do(req)
		if err != nil {
			c.log().Debug("GitHub request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		return remote.CheckResponse(service, resp, body)
	})
	if err != nil {
		return nil, err
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
	}
	return body, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`^(?:ssh://)?[^@]+@[^:/]+[:/]([^/]+)/([^/\s]+)`)
)

// DetectRepo parses owner/repo from the origin remote of the repository
// at dir.
func DetectRepo(dir string) (owner, repo string, err error) {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remoteURL string) (owner, repo string, err error) {
	u := strings.TrimSuffix(strings.TrimSpace(remoteURL), "/")
	u = strings.TrimSuffix(u, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(u); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(u); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remoteURL)
}

// SplitRepo splits "owner/name".
func SplitRepo(full string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(full), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", full)
	}
	return owner, repo, nil
}

func (c *Client) log() *zap.Logger { return logging.OrNop(c.logger) }

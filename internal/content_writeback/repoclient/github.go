package repoclient

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
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

const (
	defaultAPIURL       = "https://api.github.com"
	defaultHTTPTimeout  = 30 * time.Second
	defaultWritesPerSec = 1.0
	githubAccept        = "application/vnd.github+json"
)

// GitHubConfig holds the credentials and pacing for the GitHub contents API
type GitHubConfig struct {
	APIURL          string
	Token           string
	DefaultBranch   string
	WritesPerSecond float64
	Timeout         time.Duration
}

// GitHubClient writes files through the GitHub contents API, one commit per file.
type GitHubClient struct {
	apiURL  string
	owner   string
	repo    string
	branch  string
	httpCli *http.Client
	writes  *rate.Limiter
}

// NewGitHubClient creates a client for dest. The token is sent as a bearer token on every request.
func NewGitHubClient(ctx context.Context, cfg GitHubConfig, dest domain.DestinationRepository) (*GitHubClient, error) {
	if cfg.Token == "" {
		return nil, &domain.RepositoryError{Op: "open", Err: fmt.Errorf("%w: GITHUB_TOKEN is not set", domain.ErrWriteAccessDenied)}
	}
	if dest.Owner == "" || dest.Name == "" {
		return nil, &domain.RepositoryError{Op: "open", Err: fmt.Errorf("%w: owner and name are required", domain.ErrRepositoryUnavailable)}
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	perSec := cfg.WritesPerSecond
	if perSec <= 0 {
		perSec = defaultWritesPerSec
	}
	branch := dest.Branch
	if branch == "" {
		branch = cfg.DefaultBranch
	}

	httpCli := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	httpCli.Timeout = timeout

	return &GitHubClient{
		apiURL:  strings.TrimRight(apiURL, "/"),
		owner:   dest.Owner,
		repo:    dest.Name,
		branch:  branch,
		httpCli: httpCli,
		writes:  rate.NewLimiter(rate.Limit(perSec), 1),
	}, nil
}

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

type putContentRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putContentResponse struct {
	Content struct {
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type repoResponse struct {
	Archived    bool `json:"archived"`
	Permissions struct {
		Push bool `json:"push"`
	} `json:"permissions"`
}

// GetFile returns the decoded file and its blob sha, or nil when the file does not exist
func (c *GitHubClient) GetFile(ctx context.Context, path string) (*domain.RepositoryFile, error) {
	endpoint := c.contentsURL(path)
	if c.branch != "" {
		endpoint += "?ref=" + url.QueryEscape(c.branch)
	}

	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "get", Path: path, Err: fmt.Errorf("%w: %v", domain.ErrRepositoryUnavailable, err)}
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, statusError("get", path, status, body)
	}

	var resp contentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.RepositoryError{Op: "get", Path: path, Err: fmt.Errorf("parsing response: %w", err)}
	}
	if resp.Type != "" && resp.Type != "file" {
		return nil, &domain.RepositoryError{Op: "get", Path: path, Err: fmt.Errorf("path is a %s, not a file", resp.Type)}
	}
	if resp.Encoding != "base64" {
		return nil, &domain.RepositoryError{Op: "get", Path: path, Err: fmt.Errorf("unsupported content encoding %q", resp.Encoding)}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return nil, &domain.RepositoryError{Op: "get", Path: path, Err: fmt.Errorf("decoding content: %w", err)}
	}
	return &domain.RepositoryFile{Content: string(raw), Revision: resp.SHA}, nil
}

// UpsertFile creates or replaces path in one commit. prevRevision is the blob sha the write
// replaces and must be empty for a new file; GitHub rejects the write if it is stale.
func (c *GitHubClient) UpsertFile(ctx context.Context, path, content, message, prevRevision string) (domain.Commit, error) {
	if err := c.writes.Wait(ctx); err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: err}
	}

	payload, err := json.Marshal(putContentRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		SHA:     prevRevision,
		Branch:  c.branch,
	})
	if err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	status, body, err := c.do(ctx, http.MethodPut, c.contentsURL(path), payload)
	if err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, Err: fmt.Errorf("%w: %v", domain.ErrRepositoryUnavailable, err)}
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return domain.Commit{}, statusError("upsert", path, status, body)
	}

	var resp putContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, StatusCode: status, Err: fmt.Errorf("parsing response: %w", err)}
	}
	if resp.Commit.SHA == "" {
		return domain.Commit{}, &domain.RepositoryError{Op: "upsert", Path: path, StatusCode: status, Err: errors.New("response carries no commit sha")}
	}
	return domain.Commit{ID: resp.Commit.SHA, Path: path}, nil
}

// VerifyWriteAccess checks that the token can push to the repository
func (c *GitHubClient) VerifyWriteAccess(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.apiURL, url.PathEscape(c.owner), url.PathEscape(c.repo))

	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &domain.RepositoryError{Op: "verify", Err: fmt.Errorf("%w: %v", domain.ErrRepositoryUnavailable, err)}
	}
	if status != http.StatusOK {
		return statusError("verify", "", status, body)
	}

	var resp repoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &domain.RepositoryError{Op: "verify", Err: fmt.Errorf("parsing response: %w", err)}
	}
	if resp.Archived {
		return &domain.RepositoryError{Op: "verify", Err: fmt.Errorf("%w: repository is archived", domain.ErrWriteAccessDenied)}
	}
	if !resp.Permissions.Push {
		return &domain.RepositoryError{Op: "verify", Err: fmt.Errorf("%w: token lacks push permission", domain.ErrWriteAccessDenied)}
	}
	return nil
}

func (c *GitHubClient) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.apiURL, url.PathEscape(c.owner), url.PathEscape(c.repo), strings.Join(segments, "/"))
}

func (c *GitHubClient) do(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", githubAccept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// statusError maps a non-success response onto the domain error kinds
func statusError(op, path string, status int, body []byte) error {
	var base error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		base = domain.ErrWriteAccessDenied
	case status == http.StatusNotFound:
		base = domain.ErrRepositoryUnavailable
	case status >= 500:
		base = domain.ErrRepositoryUnavailable
	default:
		base = errors.New("request rejected")
	}

	msg := strings.TrimSpace(string(body))
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	return &domain.RepositoryError{
		Op:         op,
		Path:       path,
		StatusCode: status,
		Err:        fmt.Errorf("%w: %s", base, msg),
	}
}

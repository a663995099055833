package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/posttree/internal/posts"
)

// Fetcher is the remote surface the cache layers depend on.
// This interface is implemented by *Client and can be used for testing.
type Fetcher interface {
	FetchPage(ctx context.Context, scope posts.Scope, cursor string, limit int) (Page, error)
	FetchLatest(ctx context.Context, scope posts.Scope) (*posts.Post, error)
	FetchPost(ctx context.Context, id string) (*posts.Post, error)
	FetchAncestors(ctx context.Context, id string) ([]posts.Post, error)
	CreatePost(ctx context.Context, draft posts.NewPost) (posts.Post, error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

// RequestObserver is told about every finished request. status is 0 when
// no response arrived.
type RequestObserver interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

// Client talks to the posts collaborator over HTTP.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	observer  RequestObserver
}

const (
	// DefaultBaseURL is used when neither configuration nor the environment
	// provide one.
	DefaultBaseURL   = "http://localhost:3000"
	BaseURLEnv       = "POSTTREE_APP_URL"
	defaultUserAgent = "posttree/0.1"
	requestTimeout   = 10 * time.Second
)

// NewClient builds a Client for baseURL. See ResolveBaseURL for the fallback
// order when baseURL is empty.
func NewClient(baseURL string) (*Client, error) {
	base, err := parseBaseURL(ResolveBaseURL(baseURL))
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// SetObserver installs obs for subsequent requests. Call before use.
func (c *Client) SetObserver(obs RequestObserver) {
	c.observer = obs
}

// BaseURL returns the resolved collaborator address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ResolveBaseURL picks configured, then $POSTTREE_APP_URL, then DefaultBaseURL.
func ResolveBaseURL(configured string) string {
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" {
		return v
	}
	return DefaultBaseURL
}

// FetchPage retrieves one page of scope starting at cursor. An empty cursor
// requests the first page; limit <= 0 leaves the page size to the server.
func (c *Client) FetchPage(ctx context.Context, scope posts.Scope, cursor string, limit int) (Page, error) {
	if c == nil {
		return Page{}, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		values.Set("cursor", cursor)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var payload pageResponse
	if err := c.do(ctx, http.MethodGet, scopePath(scope), values, nil, &payload); err != nil {
		return Page{}, err
	}
	return payload.page(), nil
}

// FetchLatest returns the newest post of scope, or nil when the scope is empty.
func (c *Client) FetchLatest(ctx context.Context, scope posts.Scope) (*posts.Post, error) {
	page, err := c.FetchPage(ctx, scope, "", 1)
	if err != nil {
		return nil, err
	}
	if len(page.Posts) == 0 {
		return nil, nil
	}
	latest := page.Posts[0]
	return &latest, nil
}

// FetchPost retrieves a single post. A 404 yields nil without an error.
func (c *Client) FetchPost(ctx context.Context, id string) (*posts.Post, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("post id required")
	}
	var payload posts.Post
	if err := c.do(ctx, http.MethodGet, []string{"posts", id}, nil, nil, &payload); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &payload, nil
}

// FetchAncestors returns the parent chain of id ordered root first. Roots and
// unknown ids yield an empty chain.
func (c *Client) FetchAncestors(ctx context.Context, id string) ([]posts.Post, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("post id required")
	}
	var payload parentsResponse
	if err := c.do(ctx, http.MethodGet, []string{"posts", id, "parents"}, nil, nil, &payload); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return payload.Parents, nil
}

// CreatePost submits a new post. The draft is validated first; invalid drafts
// never reach the network.
func (c *Client) CreatePost(ctx context.Context, draft posts.NewPost) (posts.Post, error) {
	if c == nil {
		return posts.Post{}, fmt.Errorf("client is nil")
	}
	if err := draft.Validate(); err != nil {
		return posts.Post{}, err
	}
	var payload posts.Post
	if err := c.do(ctx, http.MethodPost, []string{"posts"}, nil, draft, &payload); err != nil {
		return posts.Post{}, err
	}
	return payload, nil
}

func scopePath(scope posts.Scope) []string {
	if scope.IsRoot() {
		return []string{"posts"}
	}
	return []string{"posts", scope.ParentID, "children"}
}

func (c *Client) do(ctx context.Context, method string, segments []string, query url.Values, body any, dest any) error {
	reqURL := c.baseURL.JoinPath(segments...)
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, segments, 0, start)
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.observe(method, segments, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newTransportError(method, reqURL.Path, resp)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: empty body")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(method string, segments []string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(routeLabel(method, segments), status, time.Since(start))
}

// routeLabel names the endpoint without ids so metric labels stay bounded.
func routeLabel(method string, segments []string) string {
	switch {
	case method == http.MethodPost:
		return "create"
	case len(segments) <= 1:
		return "list"
	default:
		switch segments[len(segments)-1] {
		case "children":
			return "children"
		case "parents":
			return "parents"
		}
		return "post"
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url %q: missing host", raw)
	}
	// A path prefix such as /api is kept so the client can sit behind the
	// web app's route namespace.
	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Package openproject implements a client for the OpenProject API v3.
//
// The API speaks HAL+JSON. Authentication is HTTP Basic with the literal
// user "apikey" and the API key as password. All list endpoints paginate
// with a 1-based record offset and a pageSize.
package openproject

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/opterm/opterm/internal/log"
)

// APIRoot is the path prefix of the v3 API on an OpenProject host.
const APIRoot = "/api/v3"

// Client talks to a single OpenProject instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	userAgent  string
	pageSize   int

	mu  sync.Mutex
	rnd *rand.Rand

	reqID atomic.Int64
}

// Options configures the client behavior.
type Options struct {
	Timeout time.Duration
	// MaxRetries bounds the retries of idempotent requests. Zero picks
	// the default; a negative value disables retrying entirely.
	MaxRetries     int
	Backoff        time.Duration
	MaxBackoff     time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	UserAgent      string
	PageSize       int
	// HTTPClient overrides the built transport; used by tests.
	HTTPClient *http.Client
}

const (
	defaultTimeout        = 30 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
	defaultPageSize       = 25
)

// NormalizeBaseURL trims whitespace and trailing slashes and ensures the
// /api/v3 root is present, so users can paste either the instance URL or
// the API URL.
func NormalizeBaseURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	if !strings.HasSuffix(trimmed, APIRoot) {
		trimmed += APIRoot
	}
	return trimmed
}

// New creates a client for the given base URL and API key. Credentials
// embedded in the URL userinfo are honoured when no key is passed.
func New(baseURL, apiKey string, opts Options) (*Client, error) {
	trimmed := NormalizeBaseURL(baseURL)
	if u, err := url.Parse(trimmed); err == nil && u.User != nil {
		if pass, ok := u.User.Password(); ok && apiKey == "" {
			apiKey = pass
		}
		u.User = nil
		trimmed = strings.TrimRight(u.String(), "/")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openproject: API key is required")
	}

	nopts := normalizeOptions(opts)
	httpClient := nopts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: nopts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    trimmed,
		apiKey:     apiKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		maxRetries: nopts.MaxRetries,
		backoff:    nopts.Backoff,
		maxBackoff: nopts.MaxBackoff,
		userAgent:  nopts.UserAgent,
		pageSize:   nopts.PageSize,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	switch {
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	case opts.MaxRetries == 0:
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "opterm"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return opts
}

// BaseURL returns the normalised API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// PageSize returns the configured default page size.
func (c *Client) PageSize() int { return c.pageSize }

// Ping verifies connectivity and credentials against the API root.
func (c *Client) Ping(ctx context.Context) error {
	var root struct {
		Type string `json:"_type"`
	}
	return c.get(ctx, "/", nil, &root)
}

// errorDoc is the body OpenProject sends with non-2xx responses.
type errorDoc struct {
	Type       string `json:"_type"`
	Identifier string `json:"errorIdentifier"`
	Message    string `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	return c.roundTrip(ctx, http.MethodGet, path, params, nil, v)
}

func (c *Client) send(ctx context.Context, method, path string, body, v any) error {
	return c.roundTrip(ctx, method, path, nil, body, v)
}

// roundTrip performs one logical API call: rate limiting, bounded retries
// for idempotent requests, error mapping, and decode into v (ignored when
// nil, e.g. for DELETE).
func (c *Client) roundTrip(ctx context.Context, method, path string, params url.Values, body, v any) error {
	op := method + " " + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("openproject: encode %s: %w", op, err)
		}
	}

	rid := strconv.FormatInt(c.reqID.Add(1), 10)
	ctx = log.ContextWithRequestID(ctx, rid)
	logger := log.WithContext(ctx, log.WithComponent("openproject"))

	rawURL := c.baseURL + path
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	// Only GETs are retried: create/update/delete must not be replayed.
	maxAttempts := 1
	if method == http.MethodGet {
		maxAttempts = c.maxRetries + 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return wrapTransport(op, err)
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
		if err != nil {
			return wrapTransport(op, err)
		}
		c.applyHeaders(req, payload != nil)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logger.Debug().
			Str(log.FieldMethod, method).
			Str(log.FieldPath, path).
			Int(log.FieldStatus, status).
			Int(log.FieldAttempt, attempt).
			Dur("duration", duration).
			Err(err).
			Msg("api request")

		if err != nil {
			lastErr = wrapTransport(op, err)
		} else if status >= 500 {
			drainAndClose(resp)
			lastErr = wrapStatus(op, status, "")
		} else {
			return c.finish(op, resp, v)
		}

		if attempt < maxAttempts {
			if err := sleepWithContext(ctx, c.backoffFor(attempt-1)); err != nil {
				return wrapTransport(op, err)
			}
		}
	}
	return lastErr
}

// finish consumes a response with a status below 500.
func (c *Client) finish(op string, resp *http.Response, v any) error {
	defer drainAndClose(resp)

	if resp.StatusCode >= 400 {
		var doc errorDoc
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, &doc)
		return wrapStatus(op, resp.StatusCode, doc.Message)
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Op: op, Err: err}
	}
	return nil
}

func (c *Client) applyHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/hal+json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth("apikey", c.apiKey)
}

// backoffFor computes exponential backoff with jitter, capped at maxBackoff.
func (c *Client) backoffFor(retry int) time.Duration {
	d := c.backoff << uint(retry)
	if d > c.maxBackoff {
		d = c.maxBackoff
	}
	c.mu.Lock()
	jitter := time.Duration(c.rnd.Int63n(int64(d)/2 + 1))
	c.mu.Unlock()
	return d/2 + jitter
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

// Page addresses one page of a collection. The zero value means the first
// page with the client's default size.
type Page struct {
	Number int
	Size   int
}

// params returns the wire query parameters. The server expects a 1-based
// record offset: page 2 with size 10 is offset 11.
func (p Page) params(defaultSize int) url.Values {
	page := p.Number
	if page <= 0 {
		page = 1
	}
	size := p.Size
	if size <= 0 {
		size = defaultSize
	}
	v := url.Values{}
	v.Set("offset", strconv.Itoa((page-1)*size+1))
	v.Set("pageSize", strconv.Itoa(size))
	return v
}

type projectCollection struct {
	Embedded struct {
		Elements []projectDoc `json:"elements"`
	} `json:"_embedded"`
	Total int `json:"total"`
	Count int `json:"count"`
}

type workPackageCollection struct {
	Embedded struct {
		Elements []workPackageDoc `json:"elements"`
	} `json:"_embedded"`
	Total int `json:"total"`
	Count int `json:"count"`
}

// ProjectsOptions narrows a project listing.
type ProjectsOptions struct {
	ActiveOnly bool
	Page       Page
}

// Projects lists projects.
func (c *Client) Projects(ctx context.Context, opts ProjectsOptions) ([]Project, error) {
	params := opts.Page.params(c.pageSize)
	if opts.ActiveOnly {
		filters, err := json.Marshal([]map[string]any{
			{"active": map[string]any{"operator": "=", "values": []string{"t"}}},
		})
		if err != nil {
			return nil, fmt.Errorf("openproject: encode filters: %w", err)
		}
		params.Set("filters", string(filters))
	}

	var coll projectCollection
	if err := c.get(ctx, "/projects", params, &coll); err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(coll.Embedded.Elements))
	for _, d := range coll.Embedded.Elements {
		out = append(out, d.toProject())
	}
	return out, nil
}

// WorkPackages lists work packages, scoped to a project when projectID > 0.
func (c *Client) WorkPackages(ctx context.Context, projectID int, page Page) ([]WorkPackage, error) {
	path := "/work_packages"
	if projectID > 0 {
		path = fmt.Sprintf("/projects/%d/work_packages", projectID)
	}
	var coll workPackageCollection
	if err := c.get(ctx, path, page.params(c.pageSize), &coll); err != nil {
		return nil, err
	}
	out := make([]WorkPackage, 0, len(coll.Embedded.Elements))
	for _, d := range coll.Embedded.Elements {
		out = append(out, d.toWorkPackage())
	}
	return out, nil
}

// WorkPackage fetches a single work package.
func (c *Client) WorkPackage(ctx context.Context, id int) (*WorkPackage, error) {
	var doc workPackageDoc
	if err := c.get(ctx, fmt.Sprintf("/work_packages/%d", id), nil, &doc); err != nil {
		return nil, err
	}
	wp := doc.toWorkPackage()
	return &wp, nil
}

// Types lists the work package types available in a project.
func (c *Client) Types(ctx context.Context, projectID int) ([]Type, error) {
	var coll struct {
		Embedded struct {
			Elements []typeDoc `json:"elements"`
		} `json:"_embedded"`
	}
	if err := c.get(ctx, fmt.Sprintf("/projects/%d/types", projectID), nil, &coll); err != nil {
		return nil, err
	}
	out := make([]Type, 0, len(coll.Embedded.Elements))
	for _, d := range coll.Embedded.Elements {
		out = append(out, Type{ID: d.ID, Name: d.Name, Color: d.Color})
	}
	return out, nil
}

// Statuses lists all statuses known to the instance.
func (c *Client) Statuses(ctx context.Context) ([]Status, error) {
	var coll struct {
		Embedded struct {
			Elements []statusDoc `json:"elements"`
		} `json:"_embedded"`
	}
	if err := c.get(ctx, "/statuses", nil, &coll); err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(coll.Embedded.Elements))
	for _, d := range coll.Embedded.Elements {
		out = append(out, Status{ID: d.ID, Name: d.Name, Color: d.Color})
	}
	return out, nil
}

// Priorities lists all priorities known to the instance.
func (c *Client) Priorities(ctx context.Context) ([]Priority, error) {
	var coll struct {
		Embedded struct {
			Elements []priorityDoc `json:"elements"`
		} `json:"_embedded"`
	}
	if err := c.get(ctx, "/priorities", nil, &coll); err != nil {
		return nil, err
	}
	out := make([]Priority, 0, len(coll.Embedded.Elements))
	for _, d := range coll.Embedded.Elements {
		out = append(out, Priority{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

// AvailableAssignees lists the principals a work package in the project can
// be assigned to.
func (c *Client) AvailableAssignees(ctx context.Context, projectID int) ([]User, error) {
	var coll struct {
		Embedded struct {
			Elements []userDoc `json:"elements"`
		} `json:"_embedded"`
	}
	if err := c.get(ctx, fmt.Sprintf("/projects/%d/available_assignees", projectID), nil, &coll); err != nil {
		return nil, err
	}
	out := make([]User, 0, len(coll.Embedded.Elements))
	for _, d := range coll.Embedded.Elements {
		out = append(out, User{ID: d.ID, Name: d.Name, Email: d.Email})
	}
	return out, nil
}

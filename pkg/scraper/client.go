// Package scraper provides a client for the app-store review feed API.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/appsight/insights-cli/internal/model"
	"github.com/appsight/insights-cli/internal/resilience"
)

// Client defines the review feed operations.
type Client interface {
	// FetchReviews pages through the feed until count reviews are collected
	// or the feed is exhausted.
	FetchReviews(ctx context.Context, req FetchRequest) ([]model.Review, error)
}

// FetchRequest describes one review fetch.
type FetchRequest struct {
	PackageID string
	Locale    string
	Sort      model.FetchSort
	Count     int
}

// Validate checks the request before any network call is made.
func (r FetchRequest) Validate() error {
	if r.PackageID == "" {
		return resilience.NewPermanentError(eris.New("scraper: package id is required"), 0)
	}
	if r.Count <= 0 {
		return resilience.NewPermanentError(eris.Errorf("scraper: count must be positive, got %d", r.Count), 0)
	}
	if r.Locale != "" {
		if _, err := language.Parse(r.Locale); err != nil {
			return resilience.NewPermanentError(eris.Wrapf(err, "scraper: invalid locale %q", r.Locale), 0)
		}
	}
	switch r.Sort {
	case "", model.FetchSortNewest, model.FetchSortRating, model.FetchSortHelpful:
	default:
		return resilience.NewPermanentError(eris.Errorf("scraper: unknown sort %q", r.Sort), 0)
	}
	return nil
}

type feedPage struct {
	Reviews       []model.Review `json:"reviews"`
	NextPageToken string         `json:"next_page_token"`
}

// Option configures the scraper client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPageSize overrides how many reviews are requested per page.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		c.pageSize = n
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	pageSize int
	limiter  *rate.Limiter
	http     *http.Client
}

// NewClient creates a new review feed client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  "https://reviews.appsight.dev/v1",
		pageSize: 100,
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) FetchReviews(ctx context.Context, req FetchRequest) ([]model.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sort := req.Sort
	if sort == "" {
		sort = model.FetchSortNewest
	}

	reviews := make([]model.Review, 0, req.Count)
	pageToken := ""
	for len(reviews) < req.Count {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "scraper: rate limiter")
		}

		remaining := req.Count - len(reviews)
		size := c.pageSize
		if remaining < size {
			size = remaining
		}

		page, err := c.fetchPage(ctx, req, sort, size, pageToken)
		if err != nil {
			return nil, err
		}

		for _, r := range page.Reviews {
			reviews = append(reviews, r)
			if len(reviews) == req.Count {
				break
			}
		}

		if page.NextPageToken == "" || len(page.Reviews) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}

	return reviews, nil
}

func (c *httpClient) fetchPage(ctx context.Context, req FetchRequest, sort model.FetchSort, size int, pageToken string) (*feedPage, error) {
	q := url.Values{}
	q.Set("sort", string(sort))
	q.Set("count", strconv.Itoa(size))
	if req.Locale != "" {
		q.Set("locale", req.Locale)
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	reqURL := fmt.Sprintf("%s/apps/%s/reviews?%s", c.baseURL, url.PathEscape(req.PackageID), q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, resilience.ClassifyHTTP(eris.Wrap(err, "scraper: request failed"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.ClassifyHTTP(
			eris.Errorf("scraper: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}

	var page feedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, eris.Wrap(err, "scraper: unmarshal response")
	}
	return &page, nil
}

// Package services provides external service integrations.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"moviecollection/apperrors"
	"moviecollection/metrics"
	"moviecollection/models"
)

// SearchResult is a candidate movie returned by a web source.
type SearchResult struct {
	Source   string `json:"source"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Year     int    `json:"year,omitempty"`
	Overview string `json:"overview,omitempty"`
	Poster   string `json:"poster,omitempty"`
}

// WebSource is an online movie metadata provider.
type WebSource interface {
	Name() string
	Search(ctx context.Context, title string, year int) ([]SearchResult, error)
	Fetch(ctx context.Context, id string) (*models.Movie, error)
}

// Registry holds the enabled web sources in registration order.
type Registry struct {
	mu      sync.RWMutex
	sources []WebSource
	metrics *metrics.Metrics
}

// NewRegistry creates a registry of sources. m may be nil.
func NewRegistry(m *metrics.Metrics, sources ...WebSource) *Registry {
	r := &Registry{metrics: m}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register adds a source, replacing any source with the same name.
func (r *Registry) Register(source WebSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.sources {
		if s.Name() == source.Name() {
			r.sources[i] = source
			return
		}
	}
	r.sources = append(r.sources, source)
}

// Get returns the source called name.
func (r *Registry) Get(name string) (WebSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sources {
		if strings.EqualFold(s.Name(), name) {
			return s, nil
		}
	}
	return nil, apperrors.New(apperrors.NotFound, "web source %q is not enabled", name)
}

// Names lists the registered sources, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}

// Search queries the named source, or the first registered source when
// name is empty.
func (r *Registry) Search(ctx context.Context, name, title string, year int) ([]SearchResult, error) {
	source, err := r.pick(name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.New(apperrors.Validation, "search query is required")
	}
	start := time.Now()
	results, err := source.Search(ctx, title, year)
	r.metrics.ObserveWeb(source.Name(), "search", err, time.Since(start))
	return results, err
}

// Fetch loads full movie details from the named source.
func (r *Registry) Fetch(ctx context.Context, name, id string) (*models.Movie, error) {
	source, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	movie, err := source.Fetch(ctx, id)
	r.metrics.ObserveWeb(source.Name(), "fetch", err, time.Since(start))
	return movie, err
}

func (r *Registry) pick(name string) (WebSource, error) {
	if name != "" {
		return r.Get(name)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.sources) == 0 {
		return nil, apperrors.New(apperrors.Unavailable, "no web source is configured")
	}
	return r.sources[0], nil
}

// apiClient is the HTTP plumbing shared by the web sources.
type apiClient struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	logger  hclog.Logger
}

func newAPIClient(name string, rps float64, logger hclog.Logger) apiClient {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if rps <= 0 {
		rps = 4
	}
	return apiClient{
		name: name,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  logger.Named(name),
	}
}

// getJSON waits for the rate limiter, performs a GET and decodes the body
// into dest.
func (c apiClient) getJSON(ctx context.Context, url string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.Unavailable, err, "failed to reach %s", c.name)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.New(apperrors.NotFound, "%s has no such movie", c.name)
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.New(apperrors.Unavailable, "%s rejected the API key", c.name)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.New(apperrors.Unavailable, "%s rate limit exceeded", c.name)
	case resp.StatusCode != http.StatusOK:
		return apperrors.New(apperrors.Unavailable, "%s API returned status %d", c.name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}
	return nil
}

// parseYear reads the leading year of dates such as "1999-03-31" or
// ranges such as "2005–2007".
func parseYear(s string) int {
	if len(s) < 4 {
		return 0
	}
	year := 0
	for _, c := range s[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		year = year*10 + int(c-'0')
	}
	return year
}

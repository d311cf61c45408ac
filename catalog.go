package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ErrUpstream marks a catalog upstream failure. It maps to 502 at the HTTP
// boundary and never takes the identity endpoints down with it.
var ErrUpstream = errors.New("catalog upstream unavailable")

const catalogTimeout = 10 * time.Second

// CatalogClient proxies the public movie/TV catalog API. Responses are passed
// through verbatim; category listings barely change within minutes, so a
// small TTL cache keeps the upstream quota sane.
type CatalogClient struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu    sync.Mutex
	cache map[string]catalogEntry
	ttl   time.Duration
}

type catalogEntry struct {
	body    []byte
	expires time.Time
}

func NewCatalogClient(baseURL, apiKey string, ttl time.Duration) *CatalogClient {
	return &CatalogClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: catalogTimeout},
		cache:   map[string]catalogEntry{},
		ttl:     ttl,
	}
}

// Fetch returns the raw JSON body for a catalog endpoint such as
// "/movie/popular" or "/search/multi?query=x".
func (c *CatalogClient) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	if body, ok := c.cached(endpoint); ok {
		return body, nil
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	reqURL := fmt.Sprintf("%s%s%sapi_key=%s", c.baseURL, endpoint, sep, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	c.store(endpoint, body)
	return body, nil
}

func (c *CatalogClient) cached(endpoint string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[endpoint]
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.body, true
}

func (c *CatalogClient) store(endpoint string, body []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[endpoint] = catalogEntry{body: body, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// catalogHandler proxies one fixed catalog endpoint.
func (a *App) catalogHandler(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := a.Catalog.Fetch(r.Context(), endpoint)
		if err != nil {
			a.Log.Warn("catalog fetch failed", zap.String("endpoint", endpoint), zap.Error(err))
			writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Catalog service unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// catalogIDHandler proxies a catalog endpoint parameterized by the {id} path
// variable, e.g. "/movie/%d/similar".
func (a *App) catalogIDHandler(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid id")
			return
		}
		a.catalogHandler(fmt.Sprintf(format, id))(w, r)
	}
}

// HandleSearch proxies GET /api/search?q=...
func (a *App) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Query parameter q is required")
		return
	}
	a.catalogHandler("/search/multi?query="+url.QueryEscape(q))(w, r)
}

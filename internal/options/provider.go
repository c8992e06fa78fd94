// Package options resolves picklist options for choice questions: static
// lists come straight off the question, remote lists are fetched from the
// question's options endpoint with caching and a per-endpoint circuit
// breaker so a flaky upstream degrades to "no dynamic options" instead of
// taking the form engine down.
package options

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/formsmith/formsmith/model"
)

// Provider resolves question options with a TTL cache.
type Provider struct {
	client     *http.Client
	ttl        time.Duration
	maxEntries int
	logger     *zap.Logger

	mu       sync.RWMutex
	cache    map[string]cacheEntry
	breakers map[string]*breaker

	breakerThreshold int
	breakerCooldown  time.Duration
}

type cacheEntry struct {
	options   []model.PicklistOption
	expiresAt time.Time
}

// ProviderConfig tunes the Provider. Zero values fall back to defaults.
type ProviderConfig struct {
	RequestTimeout   time.Duration
	CacheTTL         time.Duration
	MaxCacheEntries  int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// NewProvider creates a Provider.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) *Provider {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.MaxCacheEntries <= 0 {
		cfg.MaxCacheEntries = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		client:           &http.Client{Timeout: cfg.RequestTimeout},
		ttl:              cfg.CacheTTL,
		maxEntries:       cfg.MaxCacheEntries,
		logger:           logger,
		cache:            make(map[string]cacheEntry),
		breakers:         make(map[string]*breaker),
		breakerThreshold: cfg.BreakerThreshold,
		breakerCooldown:  cfg.BreakerCooldown,
	}
}

// Result carries resolved options plus whether they came from the cache.
type Result struct {
	Options []model.PicklistOption `json:"options"`
	Cached  bool                   `json:"cached"`
}

// Resolve returns the options of a question. Static options win over the
// endpoint; remote failures surface as REMOTE_ENDPOINT_ERROR. The query
// filters by label, case-insensitively.
func (p *Provider) Resolve(ctx context.Context, q model.Question, query string) (Result, error) {
	if len(q.Options) > 0 {
		return Result{Options: filterOptions(staticOptions(q.Options), query)}, nil
	}
	if q.OptionsEndpoint == "" {
		return Result{}, nil
	}

	key := "endpoint:" + q.OptionsEndpoint
	if opts, hit := p.getFromCache(key); hit {
		return Result{Options: filterOptions(opts, query), Cached: true}, nil
	}

	opts, err := p.fetch(ctx, q.OptionsEndpoint)
	if err != nil {
		p.logger.Warn("options endpoint fetch failed",
			zap.String("question_id", q.ID),
			zap.String("endpoint", q.OptionsEndpoint),
			zap.Error(err))
		return Result{}, model.NewRemoteEndpointError(err.Error())
	}

	p.putInCache(key, opts)
	return Result{Options: filterOptions(opts, query)}, nil
}

// Invalidate drops the cached options of one endpoint.
func (p *Provider) Invalidate(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, "endpoint:"+endpoint)
}

// CacheLen returns the number of cached entries. For testing.
func (p *Provider) CacheLen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

func (p *Provider) fetch(ctx context.Context, endpoint string) ([]model.PicklistOption, error) {
	br := p.breakerFor(endpoint)
	if err := br.allow(); err != nil {
		return nil, err
	}

	opts, err := fetchOptions(ctx, p.client, endpoint)
	if err != nil {
		br.recordFailure()
		return nil, err
	}
	br.recordSuccess()
	return opts, nil
}

func (p *Provider) breakerFor(endpoint string) *breaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	br, ok := p.breakers[endpoint]
	if !ok {
		br = newBreaker(p.breakerThreshold, p.breakerCooldown)
		p.breakers[endpoint] = br
	}
	return br
}

func (p *Provider) getFromCache(key string) ([]model.PicklistOption, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, exists := p.cache[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.options, true
}

func (p *Provider) putInCache(key string, opts []model.PicklistOption) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.cache) >= p.maxEntries {
		p.evictExpired()
	}
	p.cache[key] = cacheEntry{options: opts, expiresAt: time.Now().Add(p.ttl)}
}

// evictExpired removes expired entries. Must be called with mu held.
func (p *Provider) evictExpired() {
	now := time.Now()
	for k, v := range p.cache {
		if now.After(v.expiresAt) {
			delete(p.cache, k)
		}
	}
}

// fetchOptions performs the HTTP GET and parses the body.
func fetchOptions(ctx context.Context, client *http.Client, endpoint string) ([]model.PicklistOption, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return parseResponse(resp)
}

// parseResponse reads and decodes an endpoint response body.
func parseResponse(resp *http.Response) ([]model.PicklistOption, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	opts := mapOptions(decoded)
	if opts == nil {
		return nil, fmt.Errorf("response carries no recognizable option list")
	}
	return opts, nil
}

// mapOptions transforms a decoded response body into picklist options. The
// body may be a bare array or an object wrapping it under "data", "items",
// or "options".
func mapOptions(body any) []model.PicklistOption {
	items := extractItems(body)
	if items == nil {
		return nil
	}

	opts := make([]model.PicklistOption, 0, len(items))
	for _, item := range items {
		label := firstString(item, "label", "name", "title")
		value := firstString(item, "value", "id", "code")
		if label == "" && value == "" {
			continue
		}
		if label == "" {
			label = value
		}
		if value == "" {
			value = label
		}
		opts = append(opts, model.PicklistOption{Label: label, Value: value, IsActive: true})
	}
	return opts
}

func extractItems(body any) []map[string]any {
	if arr, ok := body.([]any); ok {
		return toMapSlice(arr)
	}
	if m, ok := body.(map[string]any); ok {
		for _, key := range []string{"data", "items", "options"} {
			if nested, exists := m[key]; exists {
				if arr, ok := nested.([]any); ok {
					return toMapSlice(arr)
				}
			}
		}
	}
	return nil
}

func toMapSlice(arr []any) []map[string]any {
	items := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := item[key]; ok {
			switch t := v.(type) {
			case string:
				return t
			case float64:
				return strings.TrimSuffix(fmt.Sprintf("%v", t), ".0")
			}
		}
	}
	return ""
}

// staticOptions returns the active options of a question in display order.
func staticOptions(opts []model.PicklistOption) []model.PicklistOption {
	flagged := anyActive(opts)
	var active []model.PicklistOption
	for _, o := range opts {
		if o.IsActive || !flagged {
			active = append(active, o)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Order < active[j].Order
	})
	return active
}

// anyActive reports whether any option carries the active flag; lists that
// never set it are treated as all-active.
func anyActive(opts []model.PicklistOption) bool {
	for _, o := range opts {
		if o.IsActive {
			return true
		}
	}
	return false
}

func filterOptions(opts []model.PicklistOption, query string) []model.PicklistOption {
	if query == "" {
		return opts
	}
	q := strings.ToLower(query)
	var filtered []model.PicklistOption
	for _, o := range opts {
		if strings.Contains(strings.ToLower(o.Label), q) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

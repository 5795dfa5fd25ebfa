// Package robots enforces robots.txt for the scrape collector. Parsed
// files are cached per domain with a TTL so a scrape cycle hits each
// host's robots.txt at most once an hour.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/config"
)

const (
	cacheTTL       = time.Hour
	fetchTimeout   = 10 * time.Second
	maxRobotsBytes = 512 * 1024
)

type entry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// Policy answers fetch-permission questions against cached robots.txt
// data. A host whose robots.txt cannot be fetched is treated as
// permissive.
type Policy struct {
	mu    sync.Mutex
	cache map[string]entry
	httpc *http.Client
	agent string
	log   *zap.Logger
}

// New builds a Policy identified by the crawler user agent.
func New(log *zap.Logger) *Policy {
	return &Policy{
		cache: make(map[string]entry),
		httpc: &http.Client{Timeout: fetchTimeout},
		agent: config.UserAgent,
		log:   log.Named("robots"),
	}
}

// IsAllowed reports whether the crawler may fetch the URL. Unparseable
// URLs are disallowed; unreachable robots.txt allows everything.
func (p *Policy) IsAllowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	data := p.robotsFor(ctx, u)
	if data == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, p.agent)
}

// CrawlDelay returns the crawl delay advertised for our agent, if any.
func (p *Policy) CrawlDelay(ctx context.Context, rawURL string) (time.Duration, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0, false
	}
	data := p.robotsFor(ctx, u)
	if data == nil {
		return 0, false
	}
	group := data.FindGroup(p.agent)
	if group == nil || group.CrawlDelay <= 0 {
		return 0, false
	}
	return group.CrawlDelay, true
}

// Clear drops the cache. Mainly for tests.
func (p *Policy) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]entry)
}

// robotsFor returns cached robots data for the URL's host, fetching
// and caching it on miss. A nil return means fail-open: the fetch
// errored and nothing was cached, so the next call retries.
func (p *Policy) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(u.Host)

	p.mu.Lock()
	if e, ok := p.cache[key]; ok && time.Now().Before(e.expires) {
		p.mu.Unlock()
		return e.data
	}
	p.mu.Unlock()

	data, cacheable := p.fetch(ctx, u)
	if cacheable {
		p.mu.Lock()
		p.cache[key] = entry{data: data, expires: time.Now().Add(cacheTTL)}
		p.mu.Unlock()
	}
	return data
}

func (p *Policy) fetch(ctx context.Context, u *url.URL) (data *robotstxt.RobotsData, cacheable bool) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", p.agent)

	resp, err := p.httpc.Do(req)
	if err != nil {
		p.log.Debug("robots.txt fetch failed, allowing",
			zap.String("host", u.Host), zap.Error(err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Missing or errored robots.txt means no restrictions. Cache
		// the permissive result so 404 hosts are not re-fetched.
		permissive, _ := robotstxt.FromStatusAndBytes(http.StatusOK, nil)
		return permissive, true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, false
	}
	parsed, err := robotstxt.FromBytes(body)
	if err != nil {
		p.log.Debug("robots.txt parse failed, allowing",
			zap.String("host", u.Host), zap.Error(err))
		return nil, false
	}
	return parsed, true
}

// Package ratelimit provides per-domain request throttling for the
// collectors. Every outbound fetch acquires a token for its target
// domain before the request goes out, so a cycle that polls many
// feeds on one host still respects that host's limits.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	// DefaultRate is the steady-state request rate per domain.
	DefaultRate = 0.5
	// DefaultBurst allows short bursts against a fresh domain.
	DefaultBurst = 3
)

type override struct {
	rate  rate.Limit
	burst int
}

// Limiter hands out request tokens keyed by domain. The zero value is
// not usable; construct with New.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	overrides map[string]override
}

// New returns a Limiter with the default per-domain rate.
func New() *Limiter {
	return &Limiter{
		buckets:   make(map[string]*rate.Limiter),
		overrides: make(map[string]override),
	}
}

// SetDomainRate installs a custom rate for one domain, replacing any
// existing bucket for it. Used for hosts that advertise a crawl delay.
func (l *Limiter) SetDomainRate(domain string, r float64, burst int) {
	domain = strings.ToLower(domain)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[domain] = override{rate: rate.Limit(r), burst: burst}
	delete(l.buckets, domain)
}

// Acquire blocks until a token is available for the URL's domain, or
// the context is done.
func (l *Limiter) Acquire(ctx context.Context, rawURL string) error {
	domain, err := domainOf(rawURL)
	if err != nil {
		return err
	}
	return l.bucket(domain).Wait(ctx)
}

// Clear drops all buckets and overrides. Mainly for tests.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*rate.Limiter)
	l.overrides = make(map[string]override)
}

func (l *Limiter) bucket(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[domain]; ok {
		return b
	}
	r, burst := rate.Limit(DefaultRate), DefaultBurst
	if ov, ok := l.overrides[domain]; ok {
		r, burst = ov.rate, ov.burst
	}
	b := rate.NewLimiter(r, burst)
	l.buckets[domain] = b
	return b
}

func domainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return strings.ToLower(host), nil
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_BurstWithinDefault(t *testing.T) {
	l := New()
	ctx := context.Background()

	// The default burst of 3 should pass without measurable delay.
	start := time.Now()
	for i := 0; i < DefaultBurst; i++ {
		require.NoError(t, l.Acquire(ctx, "https://example.com/feed.xml"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAcquire_SeparateDomainsSeparateBuckets(t *testing.T) {
	l := New()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < DefaultBurst; i++ {
		require.NoError(t, l.Acquire(ctx, "https://a.example.com/x"))
		require.NoError(t, l.Acquire(ctx, "https://b.example.com/x"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	l := New()
	l.SetDomainRate("slow.example.com", 0.001, 1)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "https://slow.example.com/x"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "https://slow.example.com/x")
	assert.Error(t, err)
}

func TestSetDomainRate_ReplacesBucket(t *testing.T) {
	l := New()
	ctx := context.Background()

	// Exhaust the default burst, then raise the rate; the replacement
	// bucket starts full.
	for i := 0; i < DefaultBurst; i++ {
		require.NoError(t, l.Acquire(ctx, "https://example.org/a"))
	}
	l.SetDomainRate("example.org", 100, 5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(ctx, "https://example.org/a"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAcquire_BadURL(t *testing.T) {
	l := New()
	assert.Error(t, l.Acquire(context.Background(), "not-a-url"))
	assert.Error(t, l.Acquire(context.Background(), "://missing-scheme"))
}

func TestDomainOf_CaseInsensitive(t *testing.T) {
	a, err := domainOf("https://Example.COM/path")
	require.NoError(t, err)
	b, err := domainOf("https://example.com/other")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// Package llm provides the text-generation backends used by the
// pipeline's classification, enrichment and translation stages. A
// local Ollama instance serves most requests; cloud providers take
// over only when the local instance is unreachable.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Request is a single generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// Provider generates text for a request.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// StatusError is returned when a provider responds with a non-2xx
// HTTP status. It marks the provider as reachable but failing, which
// does not trigger fallback to the next provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Body)
}

// ErrNoProviders is returned when every configured provider in the
// chain is unreachable.
var ErrNoProviders = errors.New("all LLM providers unavailable")

// Chain runs requests through the local provider first and falls
// back to cloud providers only when the local instance cannot be
// reached at all. Bad output from a reachable provider is surfaced,
// not retried elsewhere.
type Chain struct {
	local     Provider
	fallbacks []Provider
	log       *zap.Logger
}

// NewChain builds the provider chain. local may be nil when no local
// instance is configured.
func NewChain(local Provider, fallbacks []Provider, log *zap.Logger) *Chain {
	return &Chain{local: local, fallbacks: fallbacks, log: log.Named("llm")}
}

// Generate runs the request through the chain and returns the raw
// text completion.
func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	if c.local != nil {
		out, err := c.local.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		if !isUnavailable(err) {
			return "", fmt.Errorf("%s: %w", c.local.Name(), err)
		}
		c.log.Warn("local provider unreachable, falling back",
			zap.String("provider", c.local.Name()), zap.Error(err))
	}

	var lastErr error
	for _, p := range c.fallbacks {
		out, err := p.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		c.log.Warn("fallback provider failed",
			zap.String("provider", p.Name()), zap.Error(err))
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrNoProviders, lastErr)
	}
	return "", ErrNoProviders
}

// GenerateJSON runs the request and unmarshals the completion into v,
// stripping markdown code fences first.
func (c *Chain) GenerateJSON(ctx context.Context, req Request, v any) error {
	out, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	cleaned := StripFences(out)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("parse LLM response as JSON: %w", err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, with or
// without a json language tag, from a completion.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// isUnavailable reports whether the error means the provider could
// not be reached: connection refused, DNS failure or timeout. HTTP
// status errors mean the provider is up, so they do not count.
func isUnavailable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

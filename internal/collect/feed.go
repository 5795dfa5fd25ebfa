package collect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

const defaultMaxEntries = 20

// FeedCollector pulls articles from RSS and Atom feeds.
type FeedCollector struct {
	parser *gofeed.Parser
	httpc  *http.Client
	log    *zap.Logger
}

// NewFeedCollector builds the feed collector.
func NewFeedCollector(log *zap.Logger) *FeedCollector {
	return &FeedCollector{
		parser: gofeed.NewParser(),
		httpc:  &http.Client{Timeout: 30 * time.Second},
		log:    log.Named("rss"),
	}
}

func (c *FeedCollector) Kind() string { return types.KindRSS }

func (c *FeedCollector) Collect(ctx context.Context, sources []types.Source) ([]types.RawArticle, []types.CollectError) {
	var articles []types.RawArticle
	var errs []types.CollectError

	for _, source := range sources {
		fetched, err := c.fetchFeed(ctx, source)
		if err != nil {
			c.log.Error("feed fetch failed",
				zap.String("source", source.Name), zap.Error(err))
			errs = append(errs, makeError(source, c.Kind(), err))
			continue
		}
		articles = append(articles, fetched...)
		c.log.Info("feed collected",
			zap.String("source", source.Name), zap.Int("count", len(fetched)))
	}
	return articles, errs
}

func (c *FeedCollector) fetchFeed(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	timeout := time.Duration(cfgInt(source, "timeout", 30)) * time.Second
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", config.UserAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	feed, err := c.parser.ParseString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	maxEntries := cfgInt(source, "max_entries", defaultMaxEntries)
	items := feed.Items
	if len(items) > maxEntries {
		items = items[:maxEntries]
	}

	var articles []types.RawArticle
	for _, item := range items {
		title := textutil.CleanWhitespace(item.Title)
		if title == "" {
			continue
		}

		body := item.Content
		if body == "" {
			body = item.Description
		}
		body = textutil.HTMLToText(body)
		if body == "" {
			body = title
		}

		var publishedAt string
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		}

		link := item.Link
		if link == "" {
			link = source.URL
		}

		var author string
		if item.Author != nil {
			author = item.Author.Name
		}

		entryID := item.GUID
		if entryID == "" {
			entryID = link
		}
		tags := make([]string, 0, len(item.Categories))
		tags = append(tags, item.Categories...)

		articles = append(articles, makeArticle(source, title, body, link,
			publishedAt, author, textutil.DetectLanguage(body), map[string]any{
				"feed_title": feed.Title,
				"entry_id":   entryID,
				"tags":       tags,
			}))
	}
	return articles, nil
}

package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/ratelimit"
	"github.com/niseko-gazet/haystack/internal/robots"
	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

const defaultMaxScraped = 15

// ScrapeCollector extracts articles from sites without feeds. It
// checks robots.txt before every fetch and throttles per domain.
type ScrapeCollector struct {
	robots  *robots.Policy
	limiter *ratelimit.Limiter
	httpc   *http.Client
	log     *zap.Logger
}

// NewScrapeCollector builds the scraper.
func NewScrapeCollector(policy *robots.Policy, limiter *ratelimit.Limiter, log *zap.Logger) *ScrapeCollector {
	return &ScrapeCollector{
		robots:  policy,
		limiter: limiter,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log.Named("scraper"),
	}
}

func (c *ScrapeCollector) Kind() string { return types.KindScrape }

func (c *ScrapeCollector) Collect(ctx context.Context, sources []types.Source) ([]types.RawArticle, []types.CollectError) {
	var articles []types.RawArticle
	var errs []types.CollectError

	for _, source := range sources {
		c.applyCrawlDelay(ctx, source.URL)

		fetched, err := c.scrapeSource(ctx, source)
		if err != nil {
			c.log.Error("scrape failed",
				zap.String("source", source.Name), zap.Error(err))
			errs = append(errs, makeError(source, c.Kind(), err))
			continue
		}
		articles = append(articles, fetched...)
		c.log.Info("scrape collected",
			zap.String("source", source.Name), zap.Int("count", len(fetched)))
	}
	return articles, errs
}

// applyCrawlDelay lowers the domain rate when robots.txt advertises a
// crawl delay.
func (c *ScrapeCollector) applyCrawlDelay(ctx context.Context, rawURL string) {
	delay, ok := c.robots.CrawlDelay(ctx, rawURL)
	if !ok || delay <= 0 {
		return
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return
	}
	c.limiter.SetDomainRate(u.Hostname(), 1.0/delay.Seconds(), 1)
}

func (c *ScrapeCollector) scrapeSource(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	pageURL := source.URL

	if !c.robots.IsAllowed(ctx, pageURL) {
		c.log.Warn("blocked by robots.txt", zap.String("url", pageURL))
		return nil, nil
	}
	if err := c.limiter.Acquire(ctx, pageURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("User-Agent", config.UserAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	articleSelector := cfgString(source, "article_selector", "article")
	maxArticles := cfgInt(source, "max_entries", defaultMaxScraped)

	containers := doc.Find(articleSelector)
	if containers.Length() == 0 {
		return c.extractSinglePage(source, doc, pageURL), nil
	}

	var articles []types.RawArticle
	containers.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(articles) >= maxArticles {
			return false
		}
		if a := c.extractArticle(ctx, source, sel, base); a != nil {
			articles = append(articles, *a)
		}
		return true
	})
	return articles, nil
}

func (c *ScrapeCollector) extractArticle(ctx context.Context, source types.Source, sel *goquery.Selection, base *url.URL) *types.RawArticle {
	titleSelector := cfgString(source, "title_selector", "h1, h2, h3")
	bodySelector := cfgString(source, "body_selector", "p")
	linkSelector := cfgString(source, "link_selector", "a[href]")
	authorSelector := cfgString(source, "author_selector", ".author, [rel='author'], .byline")

	title := strings.TrimSpace(sel.Find(titleSelector).First().Text())
	if title == "" {
		return nil
	}

	var paragraphs []string
	sel.Find(bodySelector).Each(func(i int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	body := strings.Join(paragraphs, "\n")
	if body == "" {
		if html, err := sel.Html(); err == nil {
			body = textutil.HTMLToText(html)
		}
	}
	if body == "" {
		body = title
	}

	articleURL := base.String()
	if href, ok := sel.Find(linkSelector).First().Attr("href"); ok && href != "" {
		if ref, err := url.Parse(href); err == nil {
			articleURL = base.ResolveReference(ref).String()
		}
	}
	if articleURL != base.String() && !c.robots.IsAllowed(ctx, articleURL) {
		c.log.Debug("article blocked by robots.txt", zap.String("url", articleURL))
		return nil
	}

	publishedAt, _ := sel.Find("time[datetime]").First().Attr("datetime")
	author := strings.TrimSpace(sel.Find(authorSelector).First().Text())

	a := makeArticle(source, title, body, articleURL, publishedAt, author,
		textutil.DetectLanguage(body), map[string]any{
			"scrape_method": "selector",
			"page_url":      base.String(),
		})
	return &a
}

// extractSinglePage treats a page with no matching article containers
// as one article: strip the chrome, keep the main content.
func (c *ScrapeCollector) extractSinglePage(source types.Source, doc *goquery.Document, pageURL string) []types.RawArticle {
	doc.Find("nav, footer, aside, script, style, header, .sidebar, .menu").Remove()

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = "Untitled"
	}

	var body string
	main := doc.Find("main, article, .content, #content, .post").First()
	if main.Length() > 0 {
		if html, err := main.Html(); err == nil {
			body = textutil.HTMLToText(html)
		}
	} else if html, err := doc.Find("body").Html(); err == nil {
		body = textutil.HTMLToText(html)
	}

	if len(body) < 50 {
		return nil
	}

	return []types.RawArticle{
		makeArticle(source, title, body, pageURL, "", "",
			textutil.DetectLanguage(body), map[string]any{
				"scrape_method": "single_page",
			}),
	}
}

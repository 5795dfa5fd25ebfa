package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

const redditUserAgent = "haystack-bot:niseko-gazet:v0.6.0 (news aggregation)"

const defaultSocialEntries = 15

// SocialCollector pulls posts from Reddit and Bluesky. Social posts
// are unvetted, so every article is forced into the yellow_press tier
// and will route to the moderation queue.
type SocialCollector struct {
	cfg   config.CollectConfig
	httpc *http.Client
	log   *zap.Logger

	redditBaseURL string
	bskyBaseURL   string
}

// NewSocialCollector builds the social collector.
func NewSocialCollector(cfg config.CollectConfig, log *zap.Logger) *SocialCollector {
	return &SocialCollector{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
		log:   log.Named("social"),

		redditBaseURL: "https://www.reddit.com",
		bskyBaseURL:   "https://public.api.bsky.app",
	}
}

func (c *SocialCollector) Kind() string { return types.KindSocial }

func (c *SocialCollector) Collect(ctx context.Context, sources []types.Source) ([]types.RawArticle, []types.CollectError) {
	if !c.cfg.AggregationEnabled {
		c.log.Info("social collection disabled")
		return nil, nil
	}

	var articles []types.RawArticle
	var errs []types.CollectError

	for _, source := range sources {
		var fetched []types.RawArticle
		var err error

		platform := cfgString(source, "platform", "reddit")
		switch platform {
		case "reddit":
			fetched, err = c.collectReddit(ctx, source)
		case "bluesky":
			fetched, err = c.collectBluesky(ctx, source)
		default:
			c.log.Warn("unknown social platform", zap.String("platform", platform))
		}

		if err != nil {
			c.log.Error("social fetch failed",
				zap.String("source", source.Name), zap.Error(err))
			errs = append(errs, makeError(source, c.Kind(), err))
			continue
		}
		articles = append(articles, fetched...)
		c.log.Info("social collected",
			zap.String("source", source.Name), zap.Int("count", len(fetched)))
	}
	return articles, errs
}

// socialArticle wraps makeArticle, forcing the yellow_press tier.
func socialArticle(source types.Source, title, body, sourceURL, publishedAt, author, language string, metadata map[string]any) types.RawArticle {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata[types.MetaReliabilityTier] = types.TierYellowPress
	return makeArticle(source, title, body, sourceURL, publishedAt, author, language, metadata)
}

func (c *SocialCollector) collectReddit(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	subreddit := cfgString(source, "subreddit", "niseko")
	maxEntries := cfgInt(source, "max_entries", defaultSocialEntries)

	u := fmt.Sprintf("%s/r/%s/new.json?limit=%d", c.redditBaseURL, subreddit, maxEntries)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", redditUserAgent)

	var data struct {
		Data struct {
			Children []struct {
				Data struct {
					Title       string  `json:"title"`
					Selftext    string  `json:"selftext"`
					Permalink   string  `json:"permalink"`
					Author      string  `json:"author"`
					Score       int     `json:"score"`
					NumComments int     `json:"num_comments"`
					CreatedUTC  float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := doJSONRequest(c.httpc, req, &data); err != nil {
		return nil, fmt.Errorf("reddit r/%s: %w", subreddit, err)
	}

	var articles []types.RawArticle
	for _, child := range data.Data.Children {
		post := child.Data
		title := strings.TrimSpace(post.Title)
		if title == "" {
			continue
		}
		body := post.Selftext
		if body == "" {
			body = title
		}

		var publishedAt string
		if post.CreatedUTC > 0 {
			publishedAt = time.Unix(int64(post.CreatedUTC), 0).UTC().Format(time.RFC3339)
		}

		articles = append(articles, socialArticle(source, title, body,
			"https://www.reddit.com"+post.Permalink, publishedAt, post.Author,
			textutil.DetectLanguage(body), map[string]any{
				"platform":     "reddit",
				"subreddit":    subreddit,
				"score":        post.Score,
				"num_comments": post.NumComments,
			}))
	}
	return articles, nil
}

// collectBluesky discovers accounts via searchActors and pulls their
// recent posts via getAuthorFeed, both public endpoints. Sources can
// pin explicit actor handles in config to skip the search.
func (c *SocialCollector) collectBluesky(ctx context.Context, source types.Source) ([]types.RawArticle, error) {
	query := cfgString(source, "query", "niseko")
	maxEntries := cfgInt(source, "max_entries", defaultSocialEntries)
	maxActors := cfgInt(source, "max_actors", 5)

	actors := configuredActors(source)
	if len(actors) == 0 {
		found, err := c.searchActors(ctx, query, maxActors)
		if err != nil {
			return nil, err
		}
		actors = found
	}
	if len(actors) == 0 {
		c.log.Info("no bluesky actors found", zap.String("query", query))
		return nil, nil
	}

	perActor := maxEntries / len(actors)
	if perActor < 1 {
		perActor = 1
	}

	var articles []types.RawArticle
	for _, handle := range actors {
		feed, err := c.authorFeed(ctx, handle, perActor)
		if err != nil {
			c.log.Warn("bluesky actor feed failed",
				zap.String("handle", handle), zap.Error(err))
			continue
		}

		for _, item := range feed {
			text := strings.TrimSpace(item.Post.Record.Text)
			if text == "" {
				continue
			}
			title := textutil.Truncate(strings.SplitN(text, "\n", 2)[0], 100)

			author := item.Post.Author.DisplayName
			if author == "" {
				author = item.Post.Author.Handle
			}

			articles = append(articles, socialArticle(source, title, text,
				bskyPostURL(item.Post.Author.Handle, item.Post.URI),
				item.Post.Record.CreatedAt, author,
				textutil.DetectLanguage(text), map[string]any{
					"platform":     "bluesky",
					"actor_handle": handle,
					"like_count":   item.Post.LikeCount,
					"repost_count": item.Post.RepostCount,
				}))
		}
	}
	return articles, nil
}

func configuredActors(source types.Source) []string {
	raw, ok := source.Config["actors"].([]any)
	if !ok {
		return nil
	}
	actors := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			actors = append(actors, s)
		}
	}
	return actors
}

func (c *SocialCollector) searchActors(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.bskyBaseURL+"/xrpc/app.bsky.actor.searchActors?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Actors []struct {
			Handle string `json:"handle"`
		} `json:"actors"`
	}
	if err := doJSONRequest(c.httpc, req, &data); err != nil {
		return nil, fmt.Errorf("bluesky actor search: %w", err)
	}

	handles := make([]string, 0, len(data.Actors))
	for _, a := range data.Actors {
		if a.Handle != "" {
			handles = append(handles, a.Handle)
		}
	}
	return handles, nil
}

type bskyFeedItem struct {
	Post struct {
		URI    string `json:"uri"`
		Author struct {
			Handle      string `json:"handle"`
			DisplayName string `json:"displayName"`
		} `json:"author"`
		Record struct {
			Text      string `json:"text"`
			CreatedAt string `json:"createdAt"`
		} `json:"record"`
		LikeCount   int `json:"likeCount"`
		RepostCount int `json:"repostCount"`
	} `json:"post"`
}

func (c *SocialCollector) authorFeed(ctx context.Context, handle string, limit int) ([]bskyFeedItem, error) {
	params := url.Values{}
	params.Set("actor", handle)
	params.Set("limit", fmt.Sprint(limit))
	params.Set("filter", "posts_no_replies")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.bskyBaseURL+"/xrpc/app.bsky.feed.getAuthorFeed?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Feed []bskyFeedItem `json:"feed"`
	}
	if err := doJSONRequest(c.httpc, req, &data); err != nil {
		return nil, err
	}
	return data.Feed, nil
}

// bskyPostURL converts an AT Protocol URI to a web URL. URI format:
// at://did:plc:xxx/app.bsky.feed.post/rkey
func bskyPostURL(handle, uri string) string {
	parts := strings.Split(uri, "/")
	rkey := parts[len(parts)-1]
	if handle == "" || rkey == "" {
		return uri
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, rkey)
}

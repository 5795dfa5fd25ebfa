package collect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/store"
	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

// TipCollector converts approved user tips from the moderation queue
// into raw articles. It ignores the sources argument entirely; tips
// have no source feed.
type TipCollector struct {
	store *store.Client
	log   *zap.Logger
}

// NewTipCollector builds the tip collector.
func NewTipCollector(st *store.Client, log *zap.Logger) *TipCollector {
	return &TipCollector{store: st, log: log.Named("tips")}
}

func (c *TipCollector) Kind() string { return types.KindTip }

func (c *TipCollector) Collect(ctx context.Context, _ []types.Source) ([]types.RawArticle, []types.CollectError) {
	tips, err := c.store.ApprovedTips(ctx)
	if err != nil {
		c.log.Error("tip query failed", zap.Error(err))
		return nil, []types.CollectError{{
			SourceID:      "moderation_queue",
			SourceName:    "User Tips",
			CollectorKind: c.Kind(),
			Message:       err.Error(),
		}}
	}

	var articles []types.RawArticle
	for _, tip := range tips {
		if tip.Ingested() || tip.Content == "" {
			continue
		}

		source := types.Source{
			ID:   tip.ID,
			Kind: types.KindTip,
			Name: "User Tip",
		}
		articles = append(articles, makeArticle(source,
			textutil.Truncate(textutil.CleanWhitespace(tip.Content), 100),
			tip.Content,
			fmt.Sprintf("tip://%s", tip.ID),
			"", tip.SubmitterEmail,
			textutil.DetectLanguage(tip.Content),
			map[string]any{
				"tip_id":          tip.ID,
				"submitter_email": tip.SubmitterEmail,
			}))

		// Mark immediately so a crashed run cannot re-ingest it.
		if err := c.store.MarkTipIngested(ctx, tip); err != nil {
			c.log.Error("failed to mark tip ingested",
				zap.String("tip_id", tip.ID), zap.Error(err))
		}
	}

	c.log.Info("tips collected", zap.Int("count", len(articles)))
	return articles, nil
}

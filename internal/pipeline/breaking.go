package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/types"
)

// breakingCheck raises a moderation alert for every article classified
// as breaking so editors hear about it before enrichment finishes.
// Alert failures are logged and swallowed; the article still flows
// through the normal stages.
func (p *Pipeline) breakingCheck(ctx context.Context, s *State) error {
	breaking := 0
	for _, a := range s.Classified {
		if a.Priority != types.PriorityBreaking {
			continue
		}
		breaking++

		content := fmt.Sprintf(`🔴 BREAKING NEWS ALERT

Title: %s
Source: %s
URL: %s
Topics: %s
Relevance: %.0f%%

Classification: %s`,
			a.Raw.Title, a.Raw.SourceName, a.Raw.SourceURL,
			strings.Join(a.Topics, ", "), a.RelevanceScore*100, a.Reasoning)

		metadata := map[string]any{
			"alert_type":      "breaking_news",
			"title":           a.Raw.Title,
			"source_name":     a.Raw.SourceName,
			"source_url":      a.Raw.SourceURL,
			"topics":          a.Topics,
			"relevance_score": a.RelevanceScore,
			"detected_at":     time.Now().UTC().Format(time.RFC3339),
		}

		if _, err := p.store.CreateModerationItem(ctx, types.ModerationBreakingAlert, content, metadata); err != nil {
			p.log.Error("breaking alert failed",
				zap.String("title", a.Raw.Title), zap.Error(err))
			continue
		}
		p.log.Info("breaking news alert sent",
			zap.String("run_id", s.RunID),
			zap.String("title", a.Raw.Title),
			zap.String("source", a.Raw.SourceName))
	}

	s.Stats["breaking_count"] = breaking
	return nil
}

package llm

import (
	"context"

	"go.uber.org/zap"
)

// Translation is the result of translating a Japanese article.
type Translation struct {
	TitleEN   string `json:"title_en"`
	BodyEN    string `json:"body_en"`
	SummaryEN string `json:"summary_en"`
}

// TranslateArticle translates a Japanese title and body to English.
// On failure the originals come back unchanged so downstream stages
// always have usable text.
func (c *Chain) TranslateArticle(ctx context.Context, title, body string) Translation {
	var out Translation
	if err := c.GenerateJSON(ctx, TranslateRequest(title, body), &out); err != nil {
		c.log.Error("translation failed, keeping original text",
			zap.String("title", title), zap.Error(err))
		return Translation{TitleEN: title, BodyEN: body}
	}
	if out.TitleEN == "" {
		out.TitleEN = title
	}
	if out.BodyEN == "" {
		out.BodyEN = body
	}
	return out
}

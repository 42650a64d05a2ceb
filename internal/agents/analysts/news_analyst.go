package analysts

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

const maxArticleLength = 1500

type NewsAnalyst struct {
	invoker agents.Invoker
}

func NewNewsAnalyst(inv agents.Invoker) *NewsAnalyst {
	return &NewsAnalyst{invoker: inv}
}

func (a *NewsAnalyst) Kind() models.AnalystKind { return models.AnalystNews }

func (a *NewsAnalyst) Analyze(ctx context.Context, snap *models.MarketSnapshot) (models.Finding, error) {
	if len(snap.NewsArticles) == 0 {
		return models.NewFinding(string(models.AnalystNews), models.SignalHold, 0, "No news articles available", nil), nil
	}

	var b strings.Builder
	for i, article := range snap.NewsArticles {
		if r := []rune(article); len(r) > maxArticleLength {
			article = string(r[:maxArticleLength]) + "..."
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(article))
	}

	return invokeFinding(ctx, a.invoker, models.AnalystNews, consts.TemplateNewsAnalyst, agents.Bindings{
		"ticker":        snap.Ticker,
		"article_count": len(snap.NewsArticles),
		"news":          strings.TrimSpace(b.String()),
	})
}

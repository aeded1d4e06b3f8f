package engine

import (
	"context"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
	"github.com/iWorld-y/pubmed_feed/pkg/report"
)

// Translator 自然语言兴趣 -> PubMed 检索式
type Translator interface {
	TranslateAll(ctx context.Context, interests []string) ([]string, error)
}

// Literature PubMed 检索与详情拉取
type Literature interface {
	SearchAndFetch(ctx context.Context, query string, days, maxResults int) ([]dm.Article, error)
	Fetch(ctx context.Context, pmids []string) ([]dm.Article, error)
}

// ArticleStore 去重与持久化
type ArticleStore interface {
	Exists(ctx context.Context, pmid string) (bool, error)
	Save(ctx context.Context, a dm.Article, qualityScore float64) (bool, error)
	SaveSearchHistory(ctx context.Context, e *dm.SearchHistoryEntry) (int64, error)
}

// ContentGenerator 单篇文章的四种文案
type ContentGenerator interface {
	GenerateAll(ctx context.Context, a *dm.Article) (dm.GeneratedContent, error)
}

// ReportAssembler 报告落盘与登记
type ReportAssembler interface {
	CreateReport(ctx context.Context, items []report.Item, sel report.Selection) (*dm.Report, error)
	WriteSummary(r *dm.Report, items []report.Item) (string, error)
}

// Scorer 文章质量分
type Scorer interface {
	Score(a *dm.Article) float64
}

// ConstantScorer 固定基础分加固定加分，不区分文章
type ConstantScorer struct {
	Base  float64
	Bonus float64
}

// Score 实现 Scorer
func (s ConstantScorer) Score(*dm.Article) float64 {
	return s.Base + s.Bonus
}

// DefaultScorer 基础分 50，近期发表加 20
var DefaultScorer Scorer = ConstantScorer{Base: 50, Bonus: 20}

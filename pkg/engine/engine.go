package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/pubmed_feed/pkg/logger"
	"github.com/iWorld-y/pubmed_feed/pkg/metrics"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
	"github.com/iWorld-y/pubmed_feed/pkg/query"
	"github.com/iWorld-y/pubmed_feed/pkg/report"
)

// ErrNoInterests 既没有兴趣描述也没有检索式
var ErrNoInterests = errors.New("no interests or query provided")

// Deps 引擎依赖的组件，全部由调用方构造后注入
type Deps struct {
	Translator Translator
	Literature Literature
	Store      ArticleStore
	Generator  ContentGenerator
	Assembler  ReportAssembler
	Scorer     Scorer
}

// Settings 运行参数
type Settings struct {
	Interests  []string // 未指定 RunOptions.Interests 时使用
	Days       int
	MaxResults int
	Workers    int // 同时处理的文章数，1 为逐篇顺序处理
}

// Engine 核心处理引擎：兴趣 -> 检索式 -> 检索 -> 去重 -> 生成 -> 入库 -> 报告 -> 历史
type Engine struct {
	deps     Deps
	settings Settings
	log      *logrus.Entry
}

// NewEngine 创建引擎实例
func NewEngine(deps Deps, settings Settings, log *logrus.Entry) *Engine {
	if deps.Scorer == nil {
		deps.Scorer = DefaultScorer
	}
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &Engine{deps: deps, settings: settings, log: logger.Component(log, "engine")}
}

// RunOptions 运行选项
type RunOptions struct {
	Interests        []string
	Query            string // 已写好的检索式，跳过翻译
	Days             int
	MaxResults       int
	DryRun           bool
	ProgressCallback func(status string, progress int)
}

// ScoredArticle 通过去重的文章及其质量分
type ScoredArticle struct {
	Article dm.Article `json:"article"`
	Score   float64    `json:"score"`
}

// RunResult 一次运行的结果；没有新文章或 dry-run 时 Report 为空
type RunResult struct {
	Query       string          `json:"query"`
	TotalFound  int             `json:"total_found"`
	NewArticles int             `json:"new_articles"`
	Articles    []ScoredArticle `json:"articles"`
	Report      *dm.Report      `json:"report,omitempty"`
	SummaryPath string          `json:"summary_path,omitempty"`
	HistoryID   int64           `json:"history_id"`
	DryRun      bool            `json:"dry_run"`
}

func (o RunOptions) progress(status string, p int) {
	if o.ProgressCallback != nil {
		o.ProgressCallback(status, p)
	}
}

// Run 执行一次完整的流水线
func (e *Engine) Run(ctx context.Context, opts RunOptions) (result *RunResult, err error) {
	defer func() {
		metrics.PipelineRunsTotal.WithLabelValues(metrics.Status(err)).Inc()
	}()

	days := firstPositive(opts.Days, e.settings.Days)
	maxResults := firstPositive(opts.MaxResults, e.settings.MaxResults)
	opts.progress("starting", 0)

	// 1. 检索式
	q, naturalLanguage, err := e.buildQuery(ctx, opts)
	if err != nil {
		return nil, err
	}
	result = &RunResult{Query: q, DryRun: opts.DryRun, Articles: []ScoredArticle{}}
	opts.progress("query ready", 10)

	// 2. 检索 + 拉取详情，失败按无结果处理
	articles, err := e.deps.Literature.SearchAndFetch(ctx, q, days, maxResults)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("search aborted: %w", ctx.Err())
		}
		e.log.Warnf("检索未完全成功，按已获取的 %d 篇继续: %v", len(articles), err)
	}
	result.TotalFound = len(articles)
	opts.progress(fmt.Sprintf("found %d articles", len(articles)), 30)

	// 3. 去重
	fresh := e.filterNew(ctx, articles)
	result.NewArticles = len(fresh)
	metrics.ArticlesNewTotal.Add(float64(len(fresh)))
	e.log.Infof("检索到 %d 篇，其中新文章 %d 篇", result.TotalFound, result.NewArticles)

	for _, a := range fresh {
		result.Articles = append(result.Articles, ScoredArticle{Article: a, Score: e.deps.Scorer.Score(&a)})
	}
	sort.SliceStable(result.Articles, func(i, j int) bool {
		return result.Articles[i].Score > result.Articles[j].Score
	})

	history := &dm.SearchHistoryEntry{
		Query:           q,
		NaturalLanguage: naturalLanguage,
		TotalFound:      result.TotalFound,
		NewArticles:     result.NewArticles,
	}

	if opts.DryRun || len(fresh) == 0 {
		result.HistoryID = e.recordHistory(ctx, history)
		opts.progress("completed", 100)
		return result, nil
	}

	// 4. 生成文案并入库
	opts.progress("generating content", 40)
	items, err := e.process(ctx, fresh, opts)
	if err != nil {
		result.HistoryID = e.recordHistory(ctx, history)
		return result, err
	}

	// 5. 报告
	if len(items) > 0 {
		opts.progress("assembling report", 90)
		rep, err := e.deps.Assembler.CreateReport(ctx, items, nil)
		if err != nil {
			result.HistoryID = e.recordHistory(ctx, history)
			return result, fmt.Errorf("生成报告失败: %w", err)
		}
		result.Report = rep

		if path, err := e.deps.Assembler.WriteSummary(rep, items); err != nil {
			e.log.Warnf("写入报告摘要失败: %v", err)
		} else {
			result.SummaryPath = path
		}
	}

	// 6. 历史
	result.HistoryID = e.recordHistory(ctx, history)
	opts.progress("completed", 100)
	return result, nil
}

// buildQuery 返回检索式以及写入历史的自然语言描述
func (e *Engine) buildQuery(ctx context.Context, opts RunOptions) (string, string, error) {
	if q := strings.TrimSpace(opts.Query); q != "" {
		return q, "", nil
	}

	interests := opts.Interests
	if len(interests) == 0 {
		interests = e.settings.Interests
	}
	var cleaned []string
	for _, s := range interests {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return "", "", ErrNoInterests
	}

	queries, err := e.deps.Translator.TranslateAll(ctx, cleaned)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", fmt.Errorf("translate aborted: %w", ctx.Err())
		}
		e.log.Warnf("部分兴趣使用了降级检索式: %v", err)
	}
	q := query.Combine(queries)
	e.log.Infof("检索式: %s", q)
	return q, strings.Join(cleaned, "; "), nil
}

// filterNew 去掉已入库和本批重复的文章，保持检索顺序
func (e *Engine) filterNew(ctx context.Context, articles []dm.Article) []dm.Article {
	seen := make(map[string]bool, len(articles))
	fresh := make([]dm.Article, 0, len(articles))
	for _, a := range articles {
		if seen[a.PMID] {
			continue
		}
		seen[a.PMID] = true

		exists, err := e.deps.Store.Exists(ctx, a.PMID)
		if err != nil {
			// 交给 Save 的唯一约束兜底
			e.log.Warnf("查询文章是否存在失败 pmid=%s: %v", a.PMID, err)
		}
		if exists {
			continue
		}
		fresh = append(fresh, a)
	}
	return fresh
}

// process 对每篇新文章生成文案、打分并入库。Workers 为 1 时逐篇顺序执行，结果始终按输入顺序返回。
// 入库时发现已被其他运行写入的文章不进入本次报告；入库出错的文章仍保留在报告中。
func (e *Engine) process(ctx context.Context, articles []dm.Article, opts RunOptions) ([]report.Item, error) {
	slots := make([]*report.Item, len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.Workers)

	var (
		mu   sync.Mutex
		done int
	)
	for i := range articles {
		g.Go(func() error {
			item, err := e.processOne(gctx, articles[i])
			if err != nil {
				return err
			}
			slots[i] = item

			mu.Lock()
			done++
			opts.progress(fmt.Sprintf("processed %d/%d", done, len(articles)), 40+done*50/len(articles))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("content generation aborted: %w", err)
	}

	items := make([]report.Item, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			items = append(items, *s)
		}
	}
	return items, nil
}

// processOne 返回 nil item 表示文章已被其他任务写入
func (e *Engine) processOne(ctx context.Context, a dm.Article) (*report.Item, error) {
	content, err := e.deps.Generator.GenerateAll(ctx, &a)
	if err != nil {
		e.log.Warnf("文章 %s 部分文案使用兜底模板: %v", a.PMID, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	a.QualityScore = e.deps.Scorer.Score(&a)
	inserted, err := e.deps.Store.Save(ctx, a, a.QualityScore)
	switch {
	case err != nil:
		e.log.Errorf("文章入库失败 pmid=%s: %v", a.PMID, err)
	case !inserted:
		e.log.Infof("文章 %s 已被其他任务写入，跳过", a.PMID)
		return nil, nil
	}
	return &report.Item{Article: a, Content: content}, nil
}

// Generate 对指定 PMID 重新拉取、生成并按挑选方式组装报告，已入库的文章不会重复写入
func (e *Engine) Generate(ctx context.Context, pmids []string, sel report.Selection) (*dm.Report, error) {
	if len(pmids) == 0 {
		return nil, fmt.Errorf("no pmids: %w", dm.ErrNotFound)
	}
	articles, err := e.deps.Literature.Fetch(ctx, pmids)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.log.Warnf("部分文章拉取失败: %v", err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("pmids %v: %w", pmids, dm.ErrNotFound)
	}
	articles = orderBy(articles, pmids)

	items := make([]report.Item, 0, len(articles))
	for _, a := range articles {
		content, err := e.deps.Generator.GenerateAll(ctx, &a)
		if err != nil {
			e.log.Warnf("文章 %s 部分文案使用兜底模板: %v", a.PMID, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.QualityScore = e.deps.Scorer.Score(&a)
		if _, err := e.deps.Store.Save(ctx, a, a.QualityScore); err != nil {
			e.log.Errorf("文章入库失败 pmid=%s: %v", a.PMID, err)
		}
		items = append(items, report.Item{Article: a, Content: content})
	}

	rep, err := e.deps.Assembler.CreateReport(ctx, items, sel)
	if err != nil {
		return nil, fmt.Errorf("生成报告失败: %w", err)
	}
	return rep, nil
}

// Preview 拉取单篇文章并生成四种文案，不入库也不写报告
func (e *Engine) Preview(ctx context.Context, pmid string) (*dm.Article, dm.GeneratedContent, error) {
	articles, err := e.deps.Literature.Fetch(ctx, []string{pmid})
	if len(articles) == 0 {
		if err == nil {
			err = dm.ErrNotFound
		}
		return nil, nil, fmt.Errorf("preview %s: %w", pmid, err)
	}
	a := articles[0]
	content, err := e.deps.Generator.GenerateAll(ctx, &a)
	if err != nil {
		e.log.Warnf("预览文章 %s 部分文案使用兜底模板: %v", pmid, err)
	}
	return &a, content, nil
}

// orderBy 按请求的 PMID 顺序排列，Selection 中的下标对应该顺序
func orderBy(articles []dm.Article, pmids []string) []dm.Article {
	byID := make(map[string]dm.Article, len(articles))
	for _, a := range articles {
		byID[a.PMID] = a
	}
	out := make([]dm.Article, 0, len(articles))
	for _, id := range pmids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
			delete(byID, id)
		}
	}
	return out
}

// recordHistory 写入检索历史，失败只记录日志
func (e *Engine) recordHistory(ctx context.Context, h *dm.SearchHistoryEntry) int64 {
	id, err := e.deps.Store.SaveSearchHistory(context.WithoutCancel(ctx), h)
	if err != nil {
		e.log.Errorf("保存检索历史失败: %v", err)
		return 0
	}
	return id
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/pubmed_feed/pkg/engine"
	"github.com/iWorld-y/pubmed_feed/pkg/logger"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
	"github.com/iWorld-y/pubmed_feed/pkg/report"
)

const (
	defaultLimit = 50
	searchTop    = 20
)

// Pipeline *engine.Engine 满足该接口
type Pipeline interface {
	Run(ctx context.Context, opts engine.RunOptions) (*engine.RunResult, error)
	Generate(ctx context.Context, pmids []string, sel report.Selection) (*dm.Report, error)
	Preview(ctx context.Context, pmid string) (*dm.Article, dm.GeneratedContent, error)
}

// Store *storage.Store 满足该接口
type Store interface {
	Stats(ctx context.Context) (*dm.Stats, error)
	ListRecent(ctx context.Context, limit int) ([]dm.Article, error)
	ListSearchHistory(ctx context.Context, limit int) ([]dm.SearchHistoryEntry, error)
	DeleteSearchHistory(ctx context.Context, id int64) (bool, error)
	GetReport(ctx context.Context, id string) (*dm.Report, error)
	ListReports(ctx context.Context, limit int) ([]dm.Report, error)
}

// Reports *report.Assembler 满足该接口
type Reports interface {
	ReadReport(path string) (string, error)
	Export(w io.Writer, reports ...*dm.Report) error
}

// Service 把核心流水线和存储以 JSON 接口暴露出去
type Service struct {
	pipeline  Pipeline
	store     Store
	reports   Reports
	interests []string
	now       func() time.Time
	log       *logrus.Entry
}

// NewService interests 为配置中的预设兴趣，供 interest_index 选择
func NewService(p Pipeline, store Store, reports Reports, interests []string, log *logrus.Entry) *Service {
	return &Service{
		pipeline:  p,
		store:     store,
		reports:   reports,
		interests: interests,
		now:       time.Now,
		log:       logger.Component(log, "server"),
	}
}

// SearchRequest 优先级：natural_language > custom_query > interest_index
type SearchRequest struct {
	NaturalLanguage string `json:"natural_language"`
	CustomQuery     string `json:"custom_query"`
	InterestIndex   int    `json:"interest_index"`
	Days            int    `json:"days"`
	MaxResults      int    `json:"max_results"`
}

// SearchReply 检索预览，只返回得分最高的前 20 篇
type SearchReply struct {
	Query       string                 `json:"query"`
	TotalFound  int                    `json:"total_found"`
	NewArticles int                    `json:"new_articles"`
	Articles    []engine.ScoredArticle `json:"articles"`
}

// GenerateRequest selection 的键为文案类型，值为 pmids 中的下标；省略时使用默认挑选方式
type GenerateRequest struct {
	PMIDs     []string         `json:"pmids"`
	Selection map[string][]int `json:"selection"`
}

// ExportRequest 批量导出
type ExportRequest struct {
	ReportIDs []string `json:"report_ids"`
}

// PreviewReply 单篇预览
type PreviewReply struct {
	Article *dm.Article         `json:"article"`
	Content dm.GeneratedContent `json:"content"`
}

// DeleteReply 删除结果
type DeleteReply struct {
	Deleted bool `json:"deleted"`
}

// ReportsReply 报告列表
type ReportsReply struct {
	Reports []dm.Report `json:"reports"`
}

// ArticlesReply 最近入库的文章
type ArticlesReply struct {
	Articles []dm.Article `json:"articles"`
}

// HistoryReply 检索历史
type HistoryReply struct {
	History []dm.SearchHistoryEntry `json:"history"`
}

func (s *Service) Stats(ctx context.Context) (*dm.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	return st, nil
}

func (s *Service) ListArticles(ctx context.Context, limit int) (*ArticlesReply, error) {
	list, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	return &ArticlesReply{Articles: list}, nil
}

func (s *Service) ListHistory(ctx context.Context, limit int) (*HistoryReply, error) {
	list, err := s.store.ListSearchHistory(ctx, limit)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	return &HistoryReply{History: list}, nil
}

func (s *Service) DeleteHistory(ctx context.Context, rawID string) (*DeleteReply, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, kerrors.BadRequest("INVALID_ID", fmt.Sprintf("invalid history id %q", rawID))
	}
	ok, err := s.store.DeleteSearchHistory(ctx, id)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	if !ok {
		return nil, kerrors.NotFound("HISTORY_NOT_FOUND", "记录不存在")
	}
	return &DeleteReply{Deleted: true}, nil
}

func (s *Service) ListReports(ctx context.Context, limit int) (*ReportsReply, error) {
	list, err := s.store.ListReports(ctx, limit)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	return &ReportsReply{Reports: list}, nil
}

func (s *Service) GetReport(ctx context.Context, id string) (*dm.Report, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	return r, nil
}

// ReportFile 返回报告中某个文件的 markdown 内容
func (s *Service) ReportFile(ctx context.Context, id, key string) (string, error) {
	r, err := s.GetReport(ctx, id)
	if err != nil {
		return "", err
	}
	path, ok := r.FilePaths[key]
	if !ok {
		return "", kerrors.NotFound("FILE_NOT_FOUND", fmt.Sprintf("report %s has no file %s", id, key))
	}
	text, err := s.reports.ReadReport(path)
	if err != nil {
		return "", s.toHTTPError(err)
	}
	return text, nil
}

// ExportZip 打包一个或多个报告；不存在的报告 ID 跳过，全部不存在时返回 404
func (s *Service) ExportZip(ctx context.Context, ids []string) ([]byte, error) {
	var found []*dm.Report
	for _, id := range ids {
		r, err := s.store.GetReport(ctx, id)
		if err != nil {
			if errors.Is(err, dm.ErrNotFound) {
				continue
			}
			return nil, s.toHTTPError(err)
		}
		found = append(found, r)
	}
	if len(found) == 0 {
		return nil, kerrors.NotFound("REPORT_NOT_FOUND", "report not found")
	}

	var buf bytes.Buffer
	if err := s.reports.Export(&buf, found...); err != nil {
		return nil, s.toHTTPError(err)
	}
	return buf.Bytes(), nil
}

// Search 检索并返回新文章预览，只记录检索历史，不生成文案
func (s *Service) Search(ctx context.Context, req *SearchRequest) (*SearchReply, error) {
	opts := engine.RunOptions{DryRun: true, Days: req.Days, MaxResults: req.MaxResults}
	switch {
	case strings.TrimSpace(req.NaturalLanguage) != "":
		opts.Interests = []string{strings.TrimSpace(req.NaturalLanguage)}
	case strings.TrimSpace(req.CustomQuery) != "":
		opts.Query = strings.TrimSpace(req.CustomQuery)
	default:
		if req.InterestIndex < 0 || req.InterestIndex >= len(s.interests) {
			return nil, kerrors.BadRequest("INVALID_INTEREST", "Invalid interest index")
		}
		opts.Interests = []string{s.interests[req.InterestIndex]}
	}

	res, err := s.pipeline.Run(ctx, opts)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	articles := res.Articles
	if len(articles) > searchTop {
		articles = articles[:searchTop]
	}
	return &SearchReply{
		Query:       res.Query,
		TotalFound:  res.TotalFound,
		NewArticles: res.NewArticles,
		Articles:    articles,
	}, nil
}

// Generate 为选中的文章生成文案并组装报告
func (s *Service) Generate(ctx context.Context, req *GenerateRequest) (*dm.Report, error) {
	var pmids []string
	for _, id := range req.PMIDs {
		if id = strings.TrimSpace(id); id != "" {
			pmids = append(pmids, id)
		}
	}
	if len(pmids) == 0 {
		return nil, kerrors.BadRequest("NO_PMIDS", "pmids is required")
	}

	sel := report.DefaultSelection()
	if req.Selection != nil {
		sel = report.Selection{}
		for key, idx := range req.Selection {
			v, ok := dm.ParseVariant(key)
			if !ok {
				return nil, kerrors.BadRequest("INVALID_VARIANT", fmt.Sprintf("unknown variant %q", key))
			}
			sel[v] = idx
		}
	}

	r, err := s.pipeline.Generate(ctx, pmids, sel)
	if err != nil {
		if errors.Is(err, dm.ErrNotFound) {
			return nil, kerrors.BadRequest("NO_ARTICLES", "No articles found")
		}
		return nil, s.toHTTPError(err)
	}
	return r, nil
}

func (s *Service) Preview(ctx context.Context, pmid string) (*PreviewReply, error) {
	a, content, err := s.pipeline.Preview(ctx, pmid)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	return &PreviewReply{Article: a, Content: content}, nil
}

// toHTTPError 把领域错误映射为 kratos 错误
func (s *Service) toHTTPError(err error) error {
	var se *kerrors.Error
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, dm.ErrNotFound):
		return kerrors.NotFound("NOT_FOUND", err.Error())
	case errors.Is(err, engine.ErrNoInterests), errors.Is(err, report.ErrEmptyReport):
		return kerrors.BadRequest("BAD_REQUEST", err.Error())
	case errors.Is(err, context.Canceled):
		return kerrors.ClientClosed("CANCELED", err.Error())
	}
	s.log.Errorf("请求处理失败: %v", err)
	return kerrors.InternalServer("INTERNAL", err.Error())
}

func parseLimit(ctx http.Context) (int, error) {
	raw := ctx.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, kerrors.BadRequest("INVALID_LIMIT", fmt.Sprintf("invalid limit %q", raw))
	}
	return n, nil
}

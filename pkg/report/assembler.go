package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/pubmed_feed/pkg/logger"
	"github.com/iWorld-y/pubmed_feed/pkg/metrics"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// ErrEmptyReport 没有任何文案可写
var ErrEmptyReport = errors.New("report has no content")

// Item 一篇文章及其生成的文案
type Item struct {
	Article dm.Article
	Content dm.GeneratedContent
}

// Selection 每种文案类型选用哪些文章（Item 下标）；为 nil 时全部写出
type Selection map[dm.Variant][]int

// DefaultSelection 网页端默认的挑选方式：长文各取第 1 篇，短文各取第 2、3 篇
func DefaultSelection() Selection {
	return Selection{
		dm.XiaohongshuLong:  {0},
		dm.XiaohongshuShort: {1, 2},
		dm.WechatLong:       {0},
		dm.WechatShort:      {1, 2},
	}
}

// Store 报告记录的持久化，*storage.Store 满足该接口
type Store interface {
	SaveReport(ctx context.Context, r *dm.Report) error
}

// Assembler 把文案写入按日期划分的目录并登记报告
type Assembler struct {
	dir   string
	store Store
	now   func() time.Time
	newID func() string
	log   *logrus.Entry
}

// Option 可选项
type Option func(*Assembler)

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithIDGenerator 替换报告 ID 生成方式
func WithIDGenerator(f func() string) Option {
	return func(a *Assembler) { a.newID = f }
}

// NewAssembler dir 为报告根目录，例如 data/reports
func NewAssembler(dir string, store Store, log *logrus.Entry, opts ...Option) *Assembler {
	a := &Assembler{
		dir:   dir,
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
		log:   logger.Component(log, "report"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FileKey file_paths 中的键，例如 wechat_short_1。
// 键保持 <variant>_<index> 形式，磁盘文件名另带报告 ID 前缀，见 CreateReport。
func FileKey(v dm.Variant, index int) string {
	return fmt.Sprintf("%s_%d", v, index)
}

// CreateReport 写出文案文件并保存报告记录。
// 文件名为 <variant>_<index>_<报告ID前8位>.md，同一天的多份报告互不覆盖。
// 每次调用都会生成新的报告 ID，不做报告级去重。
func (a *Assembler) CreateReport(ctx context.Context, items []Item, sel Selection) (*dm.Report, error) {
	id := a.newID()
	now := a.now()
	date := now.Format(time.DateOnly)
	dir := filepath.Join(a.dir, date)

	report := &dm.Report{
		ID:         id,
		Date:       date,
		ArticleIDs: []string{},
		FilePaths:  map[string]string{},
		CreatedAt:  now,
	}

	contributed := make([]bool, len(items))
	created := false
	for _, v := range dm.Variants {
		for _, idx := range a.indices(v, sel, len(items)) {
			text, ok := items[idx].Content[v]
			if !ok {
				continue
			}
			if !created {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("%w: create report dir: %v", dm.ErrPersistence, err)
				}
				created = true
			}

			key := FileKey(v, idx)
			path := filepath.Join(dir, fmt.Sprintf("%s_%s.md", key, shortID(id)))
			if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
				return nil, fmt.Errorf("%w: write %s: %v", dm.ErrPersistence, path, err)
			}
			report.FilePaths[key] = path
			contributed[idx] = true
		}
	}

	for i, ok := range contributed {
		if ok {
			report.ArticleIDs = append(report.ArticleIDs, items[i].Article.PMID)
		}
	}
	report.ArticleCount = len(report.ArticleIDs)

	if len(report.FilePaths) == 0 {
		return nil, ErrEmptyReport
	}

	if err := a.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save report %s: %w", id, err)
	}

	metrics.ReportsCreatedTotal.Inc()
	a.log.Infof("报告已生成: id=%s 文章数=%d 文件数=%d 目录=%s", id, report.ArticleCount, len(report.FilePaths), dir)
	return report, nil
}

// indices 返回某种文案要写出的下标：越界的跳过，重复的只保留一次
func (a *Assembler) indices(v dm.Variant, sel Selection, n int) []int {
	if sel == nil {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	seen := make(map[int]bool)
	var out []int
	for _, idx := range sel[v] {
		if idx < 0 || idx >= n {
			a.log.Debugf("忽略越界的挑选下标 %s[%d]，共 %d 篇", v, idx, n)
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

// ReadReport 读取报告文件内容
func (a *Assembler) ReadReport(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("report file %s: %w", path, dm.ErrNotFound)
		}
		return "", err
	}
	return string(data), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

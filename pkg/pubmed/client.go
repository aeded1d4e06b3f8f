package pubmed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
	"github.com/iWorld-y/pubmed_feed/pkg/logger"
	"github.com/iWorld-y/pubmed_feed/pkg/metrics"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// BatchSize 单次 efetch 请求的 PMID 上限
const BatchSize = 100

const (
	defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	dateLayout     = "2006/01/02"
	toolName       = "pubmed_feed"
)

// Client PubMed E-utilities 客户端
type Client struct {
	baseURL    string
	email      string
	apiKey     string
	days       int
	maxResults int
	client     *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
	log        *logrus.Entry
}

// Option 客户端可选项
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithClock 替换当前时间来源，用于计算检索日期窗口
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLimiter 替换请求限流器
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger 指定日志入口
func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.log = logger.Component(l, "pubmed") }
}

// NewClient 创建客户端。未配置 rps 时按 NCBI 的要求限速：无 key 每秒 3 次，有 key 每秒 10 次
func NewClient(cfg config.PubMedConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 3
		if cfg.APIKey != "" {
			rps = 10
		}
	}

	c := &Client{
		baseURL:    baseURL,
		email:      cfg.Email,
		apiKey:     cfg.APIKey,
		days:       cfg.SearchDays,
		maxResults: cfg.MaxResults,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		now:        time.Now,
		log:        logger.Component(nil, "pubmed"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse esearch 的 JSON 响应
type searchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// DateWindow 返回以 now 结束、向前 days 天的 [PDAT] 过滤条件
func DateWindow(now time.Time, days int) string {
	start := now.AddDate(0, 0, -days)
	return fmt.Sprintf("%s:%s[PDAT]", start.Format(dateLayout), now.Format(dateLayout))
}

// Search 检索最近 days 天内的文章 PMID，按发表日期倒序。
// 失败时返回空结果和错误，调用方按"无结果"处理。
func (c *Client) Search(ctx context.Context, query string, days, maxResults int) ([]string, error) {
	term := fmt.Sprintf("(%s) AND %s", query, DateWindow(c.now(), days))

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("sort", "date")
	params.Set("retmode", "json")

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		c.log.Errorf("PubMed 检索失败: %v", err)
		return []string{}, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Errorf("PubMed 检索结果解析失败: %v", err)
		return []string{}, fmt.Errorf("%w: esearch: %v", dm.ErrParse, err)
	}

	ids := resp.Result.IDList
	if ids == nil {
		ids = []string{}
	}
	c.log.Infof("PubMed 检索到 %d 篇文章 (总计 %s)", len(ids), resp.Result.Count)
	return ids, nil
}

// Fetch 按每批 100 个 PMID 拉取文章详情。
// 某一批失败时记录日志并继续后续批次，错误合并后与已获取的文章一起返回。
func (c *Client) Fetch(ctx context.Context, pmids []string) ([]dm.Article, error) {
	articles := make([]dm.Article, 0, len(pmids))
	var errs []error

	for start := 0; start < len(pmids); start += BatchSize {
		end := min(start+BatchSize, len(pmids))
		batch := pmids[start:end]

		got, err := c.fetchBatch(ctx, batch)
		articles = append(articles, got...)
		if err != nil {
			c.log.Errorf("PubMed 拉取第 %d 批失败 (%d 个 PMID): %v", start/BatchSize+1, len(batch), err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}

	metrics.ArticlesFetchedTotal.Add(float64(len(articles)))
	return articles, errors.Join(errs...)
}

func (c *Client) fetchBatch(ctx context.Context, batch []string) ([]dm.Article, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(batch, ","))
	params.Set("rettype", "xml")
	params.Set("retmode", "text")

	body, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, err
	}
	return ParseArticles(bytes.NewReader(body), c.now(), c.log)
}

// SearchAndFetch days 或 maxResults 为 0 时使用配置的默认值
func (c *Client) SearchAndFetch(ctx context.Context, query string, days, maxResults int) ([]dm.Article, error) {
	if days <= 0 {
		days = c.days
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	pmids, err := c.Search(ctx, query, days, maxResults)
	if err != nil {
		return []dm.Article{}, err
	}
	if len(pmids) == 0 {
		return []dm.Article{}, nil
	}
	return c.Fetch(ctx, pmids)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.email != "" {
		params.Set("email", c.email)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	params.Set("tool", toolName)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", dm.ErrTransport, err)
	}

	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request failed: %v", dm.ErrTransport, err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("PubMedFeed/1.0 (%s)", c.email))

	started := time.Now()
	res, err := c.client.Do(req)
	metrics.PubMedRequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.PubMedRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%w: request failed: %v", dm.ErrTransport, err)
	}
	defer res.Body.Close()

	metrics.PubMedRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(res.StatusCode)).Inc()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%w: pubmed api error (status %d): %s", dm.ErrTransport, res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body failed: %v", dm.ErrTransport, err)
	}
	return body, nil
}

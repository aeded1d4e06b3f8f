package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

// eutils 模拟 esearch/efetch 两个端点
type eutils struct {
	mu          sync.Mutex
	ids         []string
	searchTerms []string
	fetchCalls  [][]string
	failFetch   map[int]bool // 第 n 次 efetch 返回 500
}

func (e *eutils) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "date", q.Get("sort"))
		assert.Equal(t, "json", q.Get("retmode"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "PubMedFeed/1.0"))

		e.mu.Lock()
		e.searchTerms = append(e.searchTerms, q.Get("term"))
		e.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"esearchresult":{"count":"%d","idlist":[%s]}}`, len(e.ids), quoteAll(e.ids))
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "xml", q.Get("rettype"))
		assert.Equal(t, "text", q.Get("retmode"))
		ids := strings.Split(q.Get("id"), ",")

		e.mu.Lock()
		e.fetchCalls = append(e.fetchCalls, ids)
		n := len(e.fetchCalls)
		e.mu.Unlock()

		if e.failFetch[n] {
			http.Error(w, "backend unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, articleSet(ids...))
	})
	return mux
}

func quoteAll(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + id + `"`
	}
	return strings.Join(quoted, ",")
}

func articleSet(ids ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2025//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_250101.dtd">
<PubmedArticleSet>`)
	for _, id := range ids {
		fmt.Fprintf(&sb, `<PubmedArticle><MedlineCitation><PMID Version="1">%s</PMID><Article><ArticleTitle>Article %s</ArticleTitle></Article></MedlineCitation></PubmedArticle>`, id, id)
	}
	sb.WriteString(`</PubmedArticleSet>`)
	return sb.String()
}

func newTestClient(t *testing.T, e *eutils) *Client {
	t.Helper()
	srv := httptest.NewServer(e.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(config.PubMedConfig{
		BaseURL:    srv.URL,
		Email:      "feed@example.org",
		SearchDays: 7,
		MaxResults: 100,
	}, WithClock(func() time.Time { return fixedNow }), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
}

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 39000000+i)
	}
	return ids
}

func TestSearchAppendsDateWindow(t *testing.T) {
	e := &eutils{ids: []string{"39000001", "39000002"}}
	c := newTestClient(t, e)

	ids, err := c.Search(context.Background(), `"deep learning" AND cancer`, 7, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"39000001", "39000002"}, ids)

	require.Len(t, e.searchTerms, 1)
	assert.Equal(t, `("deep learning" AND cancer) AND 2025/03/03:2025/03/10[PDAT]`, e.searchTerms[0])
}

func TestSearchFailureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(config.PubMedConfig{BaseURL: srv.URL}, WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	ids, err := c.Search(context.Background(), "cancer", 7, 10)
	assert.Empty(t, ids)
	assert.ErrorIs(t, err, dm.ErrTransport)
}

func TestSearchMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":`)
	}))
	defer srv.Close()

	c := NewClient(config.PubMedConfig{BaseURL: srv.URL}, WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	ids, err := c.Search(context.Background(), "cancer", 7, 10)
	assert.Empty(t, ids)
	assert.ErrorIs(t, err, dm.ErrParse)
}

func TestFetchBatchCount(t *testing.T) {
	for _, n := range []int{0, 1, 99, 100, 101, 250} {
		t.Run(fmt.Sprintf("%d ids", n), func(t *testing.T) {
			e := &eutils{}
			c := newTestClient(t, e)

			articles, err := c.Fetch(context.Background(), makeIDs(n))
			require.NoError(t, err)
			assert.Len(t, articles, n)
			assert.Len(t, e.fetchCalls, (n+BatchSize-1)/BatchSize)
			for _, call := range e.fetchCalls {
				assert.LessOrEqual(t, len(call), BatchSize)
			}
		})
	}
}

func TestFetchContinuesAfterFailedBatch(t *testing.T) {
	e := &eutils{failFetch: map[int]bool{2: true}}
	c := newTestClient(t, e)

	articles, err := c.Fetch(context.Background(), makeIDs(250))
	assert.ErrorIs(t, err, dm.ErrTransport)
	assert.Len(t, e.fetchCalls, 3)
	assert.Len(t, articles, 150)
	assert.Equal(t, "39000000", articles[0].PMID)
	assert.Equal(t, "39000200", articles[100].PMID)
}

func TestSearchAndFetchUsesDefaults(t *testing.T) {
	e := &eutils{ids: []string{"1", "2"}}
	c := newTestClient(t, e)

	articles, err := c.SearchAndFetch(context.Background(), "oncology", 0, 0)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, fixedNow, articles[0].FetchedAt)
	assert.Contains(t, e.searchTerms[0], "2025/03/03:2025/03/10[PDAT]")
}

func TestSearchAndFetchNoResults(t *testing.T) {
	e := &eutils{}
	c := newTestClient(t, e)

	articles, err := c.SearchAndFetch(context.Background(), "nothing", 3, 5)
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.Empty(t, e.fetchCalls)
}

func TestDateWindow(t *testing.T) {
	assert.Equal(t, "2024/12/31:2025/01/01[PDAT]", DateWindow(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 1))
	assert.Equal(t, "2024/03/10:2025/03/10[PDAT]", DateWindow(fixedNow, 365))
}

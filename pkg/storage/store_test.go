package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.DBConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "data", "pubmed.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.loc = time.UTC
	return s
}

func sampleArticle(pmid string, fetched time.Time) dm.Article {
	return dm.Article{
		PMID:      pmid,
		Title:     "Title " + pmid,
		Abstract:  "Abstract " + pmid,
		Authors:   []string{"Wei Zhang", "Smith"},
		Journal:   "Lancet",
		PubDate:   "2025 Mar",
		DOI:       "10.1000/" + pmid,
		Keywords:  []string{"ai"},
		MeshTerms: []string{"Neoplasms"},
		FetchedAt: fetched,
	}
}

func TestSaveIsDedupGate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := sampleArticle("100", time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))

	exists, err := s.Exists(ctx, "100")
	require.NoError(t, err)
	assert.False(t, exists)

	inserted, err := s.Save(ctx, a, 70)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.Save(ctx, a, 70)
	require.NoError(t, err)
	assert.False(t, inserted)

	exists, err = s.Exists(ctx, "100")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaveConcurrentSamePMID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := sampleArticle("200", time.Now())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Save(ctx, a, 0)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inserted)
}

func TestSaveRejectsInvalidArticle(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.Save(context.Background(), dm.Article{PMID: "1"}, 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, dm.ErrPersistence)
}

func TestListRecentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, sampleArticle(fmt.Sprint(300+i), base.Add(time.Duration(i)*time.Hour)), float64(i))
		require.NoError(t, err)
	}
	noAbstract := dm.Article{PMID: "399", Title: "Bare", FetchedAt: base.Add(-time.Hour)}
	_, err := s.Save(ctx, noAbstract, 0)
	require.NoError(t, err)

	articles, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "302", articles[0].PMID)
	assert.Equal(t, "301", articles[1].PMID)

	got := articles[0]
	assert.Equal(t, []string{"Wei Zhang", "Smith"}, got.Authors)
	assert.Equal(t, []string{"ai"}, got.Keywords)
	assert.Equal(t, []string{"Neoplasms"}, got.MeshTerms)
	assert.Equal(t, "10.1000/302", got.DOI)
	assert.Equal(t, 2.0, got.QualityScore)
	assert.True(t, got.FetchedAt.Equal(base.Add(2*time.Hour)))

	all, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	last := all[3]
	assert.Equal(t, "399", last.PMID)
	assert.Empty(t, last.Abstract)
	assert.Empty(t, last.DOI)
	assert.Equal(t, []string{}, last.Authors)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{day1, day1, day2} {
		_, err := s.Save(ctx, sampleArticle(fmt.Sprint(400+i), ts), 0)
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveReport(ctx, &dm.Report{ID: "r1", Date: "2025-03-02", ArticleIDs: []string{"400"}}))
	_, err := s.SaveSearchHistory(ctx, &dm.SearchHistoryEntry{Query: "q", TotalFound: 3, NewArticles: 3})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalArticles)
	assert.Equal(t, 1, stats.TotalReports)
	assert.Equal(t, 1, stats.TotalSearches)
	assert.Equal(t, []dm.DateCount{{Date: "2025-03-02", Count: 1}, {Date: "2025-03-01", Count: 2}}, stats.ArticlesByDate)
}

func TestStatsGroupsByLocalDate(t *testing.T) {
	s := newTestStore(t)
	s.loc = time.FixedZone("CST", 8*3600)
	ctx := context.Background()

	// UTC 3 月 1 日 20:00 在东八区已是 3 月 2 日
	for i, ts := range []time.Time{
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC),
	} {
		_, err := s.Save(ctx, sampleArticle(fmt.Sprint(600+i), ts), 0)
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dm.DateCount{{Date: "2025-03-02", Count: 2}, {Date: "2025-03-01", Count: 1}}, stats.ArticlesByDate)
}

func TestStatsCapsDays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < statsDays+5; i++ {
		_, err := s.Save(ctx, sampleArticle(fmt.Sprint(1000+i), start.AddDate(0, 0, i)), 0)
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.ArticlesByDate, statsDays)
	assert.Equal(t, start.AddDate(0, 0, statsDays+4).Format("2006-01-02"), stats.ArticlesByDate[0].Date)
}

func TestReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &dm.Report{
		ID:         "3f0c2a9e-0000-4000-8000-000000000001",
		Date:       "2025-03-10",
		ArticleIDs: []string{"1", "2"},
		FilePaths:  map[string]string{"wechat_long_0": "data/reports/2025-03-10/wechat_long_0_3f0c2a9e.md"},
		CreatedAt:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveReport(ctx, r))
	assert.Equal(t, 2, r.ArticleCount)

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ArticleIDs, got.ArticleIDs)
	assert.Equal(t, r.FilePaths, got.FilePaths)
	assert.Equal(t, 2, got.ArticleCount)
	assert.True(t, got.CreatedAt.Equal(r.CreatedAt))

	_, err = s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, dm.ErrNotFound)

	// 同 ID 再次写入违反主键
	err = s.SaveReport(ctx, r)
	assert.ErrorIs(t, err, dm.ErrPersistence)

	older := &dm.Report{ID: "older", Date: "2025-03-09", CreatedAt: r.CreatedAt.Add(-24 * time.Hour)}
	require.NoError(t, s.SaveReport(ctx, older))

	list, err := s.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, r.ID, list[0].ID)
	assert.Equal(t, "older", list[1].ID)
	assert.Empty(t, list[1].ArticleIDs)
	assert.Empty(t, list[1].FilePaths)
}

func TestSearchHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	id1, err := s.SaveSearchHistory(ctx, &dm.SearchHistoryEntry{
		Query: "(a)", NaturalLanguage: "AI in cancer diagnosis", TotalFound: 2, NewArticles: 2, CreatedAt: base,
	})
	require.NoError(t, err)
	id2, err := s.SaveSearchHistory(ctx, &dm.SearchHistoryEntry{
		Query: "(a)", TotalFound: 2, NewArticles: 0, CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	entries, err := s.ListSearchHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, id2, entries[0].ID)
	assert.Empty(t, entries[0].NaturalLanguage)
	assert.Equal(t, "AI in cancer diagnosis", entries[1].NaturalLanguage)
	assert.Equal(t, 2, entries[1].NewArticles)

	deleted, err := s.DeleteSearchHistory(ctx, id1)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteSearchHistory(ctx, id1)
	require.NoError(t, err)
	assert.False(t, deleted)

	entries, err = s.ListSearchHistory(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DBConfig{Driver: "mysql"}, nil)
	assert.Error(t, err)
}

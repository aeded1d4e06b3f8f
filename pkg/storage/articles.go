package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

var articleColumns = []string{
	"pmid", "title", "abstract", "authors", "journal", "pub_date",
	"doi", "keywords", "mesh_terms", "fetched_at", "quality_score",
}

// Exists 判断 PMID 是否已入库
func (s *Store) Exists(ctx context.Context, pmid string) (bool, error) {
	query, args, err := s.sb.Select("1").From("articles").Where("pmid = ?", pmid).Limit(1).ToSql()
	if err != nil {
		return false, err
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: exists: %v", dm.ErrPersistence, err)
	}
	return true, nil
}

// Save 仅在文章不存在时写入，返回是否为新插入。
// 先在事务内检查是否存在，再以 ON CONFLICT DO NOTHING 插入；
// 并发写入同一 PMID 时由主键约束裁决，落败方得到 (false, nil)。
func (s *Store) Save(ctx context.Context, a dm.Article, qualityScore float64) (bool, error) {
	if !a.Valid() {
		return false, fmt.Errorf("%w: article requires pmid and title", dm.ErrPersistence)
	}

	fetchedAt := a.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}

	authors, err := marshalList(a.Authors)
	if err != nil {
		return false, err
	}
	keywords, err := marshalList(a.Keywords)
	if err != nil {
		return false, err
	}
	meshTerms, err := marshalList(a.MeshTerms)
	if err != nil {
		return false, err
	}

	var inserted bool
	err = s.withTx(ctx, "save_article", func(tx *sql.Tx) error {
		query, args, err := s.sb.Select("1").From("articles").Where("pmid = ?", a.PMID).ToSql()
		if err != nil {
			return err
		}
		var one int
		switch err := tx.QueryRowContext(ctx, query, args...).Scan(&one); {
		case err == nil:
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		query, args, err = s.sb.Insert("articles").
			Columns(articleColumns...).
			Values(a.PMID, a.Title, nullString(a.Abstract), authors, a.Journal, a.PubDate,
				nullString(a.DOI), keywords, meshTerms, formatTime(fetchedAt), qualityScore).
			Suffix("ON CONFLICT (pmid) DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// ListRecent 按抓取时间倒序返回最近的文章
func (s *Store) ListRecent(ctx context.Context, limit int) ([]dm.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	query, args, err := s.sb.Select(articleColumns...).
		From("articles").
		OrderBy("fetched_at DESC", "pmid DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list articles: %v", dm.ErrPersistence, err)
	}
	defer rows.Close()

	articles := []dm.Article{}
	for rows.Next() {
		var (
			a                           dm.Article
			abstract, doi               sql.NullString
			authors, keywords, meshTerm sql.NullString
			fetchedAt                   string
		)
		if err := rows.Scan(&a.PMID, &a.Title, &abstract, &authors, &a.Journal, &a.PubDate,
			&doi, &keywords, &meshTerm, &fetchedAt, &a.QualityScore); err != nil {
			return nil, fmt.Errorf("%w: scan article: %v", dm.ErrPersistence, err)
		}
		a.Abstract = abstract.String
		a.DOI = doi.String
		a.Authors = unmarshalList(authors)
		a.Keywords = unmarshalList(keywords)
		a.MeshTerms = unmarshalList(meshTerm)
		a.FetchedAt = parseTime(fetchedAt)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %v", dm.ErrPersistence, err)
	}
	return articles, nil
}

// Stats 汇总计数，并按抓取日期统计最近 30 天的文章数。
// 日期按 s.loc 所在时区划分，与报告目录的日期一致。
func (s *Store) Stats(ctx context.Context) (*dm.Stats, error) {
	stats := &dm.Stats{ArticlesByDate: []dm.DateCount{}}

	counts := []struct {
		table string
		dst   *int
	}{
		{"articles", &stats.TotalArticles},
		{"reports", &stats.TotalReports},
		{"search_history", &stats.TotalSearches},
	}
	for _, c := range counts {
		query, args, err := s.sb.Select("COUNT(*)").From(c.table).ToSql()
		if err != nil {
			return nil, err
		}
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("%w: count %s: %v", dm.ErrPersistence, c.table, err)
		}
	}

	// 库中为 UTC 文本，按本地日期分组在取出后进行；倒序读取时同一天的记录连续出现
	query, args, err := s.sb.Select("fetched_at").
		From("articles").
		OrderBy("fetched_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: articles by date: %v", dm.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var fetchedAt string
		if err := rows.Scan(&fetchedAt); err != nil {
			return nil, fmt.Errorf("%w: scan fetched_at: %v", dm.ErrPersistence, err)
		}
		day := parseTime(fetchedAt).In(s.loc).Format(time.DateOnly)

		n := len(stats.ArticlesByDate)
		if n > 0 && stats.ArticlesByDate[n-1].Date == day {
			stats.ArticlesByDate[n-1].Count++
			continue
		}
		if n == statsDays {
			break
		}
		stats.ArticlesByDate = append(stats.ArticlesByDate, dm.DateCount{Date: day, Count: 1})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %v", dm.ErrPersistence, err)
	}
	return stats, nil
}

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: marshal list: %v", dm.ErrPersistence, err)
	}
	return string(b), nil
}

func unmarshalList(s sql.NullString) []string {
	out := []string{}
	if !s.Valid || s.String == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return []string{}
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

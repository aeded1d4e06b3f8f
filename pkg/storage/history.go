package storage

import (
	"context"
	"database/sql"
	"fmt"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// SaveSearchHistory 追加一条检索记录并返回其 ID
func (s *Store) SaveSearchHistory(ctx context.Context, e *dm.SearchHistoryEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	err := s.withTx(ctx, "save_search_history", func(tx *sql.Tx) error {
		query, args, err := s.sb.Insert("search_history").
			Columns("query", "natural_language", "total_found", "new_articles", "created_at").
			Values(e.Query, nullString(e.NaturalLanguage), e.TotalFound, e.NewArticles, formatTime(e.CreatedAt)).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, query, args...).Scan(&e.ID)
	})
	if err != nil {
		return 0, err
	}
	return e.ID, nil
}

// ListSearchHistory 按时间倒序返回检索记录
func (s *Store) ListSearchHistory(ctx context.Context, limit int) ([]dm.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := s.sb.Select("id", "query", "natural_language", "total_found", "new_articles", "created_at").
		From("search_history").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list search history: %v", dm.ErrPersistence, err)
	}
	defer rows.Close()

	entries := []dm.SearchHistoryEntry{}
	for rows.Next() {
		var (
			e         dm.SearchHistoryEntry
			nl        sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Query, &nl, &e.TotalFound, &e.NewArticles, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan search history: %v", dm.ErrPersistence, err)
		}
		e.NaturalLanguage = nl.String
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %v", dm.ErrPersistence, err)
	}
	return entries, nil
}

// DeleteSearchHistory 删除一条检索记录，记录不存在时返回 false
func (s *Store) DeleteSearchHistory(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, "delete_search_history", func(tx *sql.Tx) error {
		query, args, err := s.sb.Delete("search_history").Where("id = ?", id).ToSql()
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
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

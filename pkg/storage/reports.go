package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

var reportColumns = []string{"id", "date", "article_ids", "file_paths", "created_at", "article_count"}

// SaveReport 写入报告记录，article_count 取 ArticleIDs 的长度
func (s *Store) SaveReport(ctx context.Context, r *dm.Report) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	r.ArticleCount = len(r.ArticleIDs)

	ids := r.ArticleIDs
	if ids == nil {
		ids = []string{}
	}
	articleIDs, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("%w: marshal article ids: %v", dm.ErrPersistence, err)
	}
	paths := r.FilePaths
	if paths == nil {
		paths = map[string]string{}
	}
	filePaths, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("%w: marshal file paths: %v", dm.ErrPersistence, err)
	}

	return s.withTx(ctx, "save_report", func(tx *sql.Tx) error {
		query, args, err := s.sb.Insert("reports").
			Columns(reportColumns...).
			Values(r.ID, r.Date, string(articleIDs), string(filePaths), formatTime(r.CreatedAt), r.ArticleCount).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
}

// GetReport 按 ID 查询报告，不存在时返回 model.ErrNotFound
func (s *Store) GetReport(ctx context.Context, id string) (*dm.Report, error) {
	query, args, err := s.sb.Select(reportColumns...).From("reports").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, err
	}

	r, err := scanReport(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, dm.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get report: %v", dm.ErrPersistence, err)
	}
	return r, nil
}

// ListReports 按创建时间倒序返回最近的报告
func (s *Store) ListReports(ctx context.Context, limit int) ([]dm.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := s.sb.Select(reportColumns...).
		From("reports").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %v", dm.ErrPersistence, err)
	}
	defer rows.Close()

	reports := []dm.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan report: %v", dm.ErrPersistence, err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %v", dm.ErrPersistence, err)
	}
	return reports, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*dm.Report, error) {
	var (
		r                     dm.Report
		articleIDs, filePaths sql.NullString
		createdAt             string
	)
	if err := row.Scan(&r.ID, &r.Date, &articleIDs, &filePaths, &createdAt, &r.ArticleCount); err != nil {
		return nil, err
	}
	r.ArticleIDs = unmarshalList(articleIDs)
	r.FilePaths = map[string]string{}
	if filePaths.Valid && filePaths.String != "" {
		if err := json.Unmarshal([]byte(filePaths.String), &r.FilePaths); err != nil {
			return nil, fmt.Errorf("decode file paths: %w", err)
		}
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

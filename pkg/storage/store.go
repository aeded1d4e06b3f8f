package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
	"github.com/iWorld-y/pubmed_feed/pkg/logger"
	"github.com/iWorld-y/pubmed_feed/pkg/metrics"
	dm "github.com/iWorld-y/pubmed_feed/pkg/model"
)

// 时间统一以 UTC 文本存储，定长格式保证按字符串排序即按时间排序
const timeLayout = "2006-01-02 15:04:05.000000"

// statsDays 按日统计最多返回的天数
const statsDays = 30

// Store 文章、报告、检索历史的持久化
type Store struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
	now    func() time.Time
	loc    *time.Location // 按日统计使用的时区
	log    *logrus.Entry
}

// Open 按配置打开数据库并建表
func Open(cfg config.DBConfig, log *logrus.Entry) (*Store, error) {
	dsn := cfg.ConnString()
	driverName := cfg.Driver

	switch cfg.Driver {
	case "sqlite":
		driverName = "sqlite"
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite 只允许单写连接
		db.SetMaxOpenConns(1)
	}

	s, err := New(db, cfg.Driver, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New 包装已有连接并建表，driver 决定 SQL 方言
func New(db *sql.DB, driver string, log *logrus.Entry) (*Store, error) {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		placeholder = sq.Dollar
	}
	s := &Store{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:    time.Now,
		loc:    time.Local,
		log:    logger.Component(log, "storage"),
	}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "postgres" {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			pmid VARCHAR(20) PRIMARY KEY,
			title TEXT NOT NULL,
			abstract TEXT,
			authors TEXT,
			journal VARCHAR(500),
			pub_date VARCHAR(100),
			doi VARCHAR(200),
			keywords TEXT,
			mesh_terms TEXT,
			fetched_at VARCHAR(32) NOT NULL,
			quality_score DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles (fetched_at)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id VARCHAR(36) PRIMARY KEY,
			date VARCHAR(10) NOT NULL,
			article_ids TEXT,
			file_paths TEXT,
			created_at VARCHAR(32) NOT NULL,
			article_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			` + idColumn + `,
			query TEXT NOT NULL,
			natural_language TEXT,
			total_found INTEGER NOT NULL DEFAULT 0,
			new_articles INTEGER NOT NULL DEFAULT 0,
			created_at VARCHAR(32) NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// withTx 在单个事务中执行 fn，出错回滚并返回 model.ErrPersistence
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	defer func() {
		metrics.StoreOperationsTotal.WithLabelValues(op, metrics.Status(err)).Inc()
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: begin: %v", dm.ErrPersistence, op, err)
	}

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %v", err, rerr)
		}
		s.log.Errorf("%s 失败，已回滚: %v", op, err)
		return fmt.Errorf("%w: %s: %v", dm.ErrPersistence, op, err)
	}

	if err := tx.Commit(); err != nil {
		s.log.Errorf("%s 提交失败: %v", op, err)
		return fmt.Errorf("%w: %s: commit: %v", dm.ErrPersistence, op, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

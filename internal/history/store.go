// Package history 把每次加载的结果记录到 SQLite，用于查看新条目和长期失败的订阅源。
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/rsslib/internal/database"
	"github.com/iabetor/rsslib/internal/logger"
	"github.com/iabetor/rsslib/internal/rss"
)

// timeLayout 固定宽度的 UTC 时间格式，字符串顺序即时间顺序。
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	kindErrored   = "errored"
	kindMalformed = "malformed"
)

// Run 是一次加载的摘要。
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    int
	Entries    int
	Errored    int
	Malformed  int
	// NewEntries 为本次首次见到的条目数，只在 RecordRun 的返回值中有效。
	NewEntries int
}

// Store 加载历史存储。
type Store struct {
	db *database.DB
}

// NewStore 创建历史存储并执行迁移。
func NewStore(db *database.DB) (*Store, error) {
	if err := db.Migrate(); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// RecordRun 在一个事务中写入一次加载的摘要、条目和失败的订阅源。
func (s *Store) RecordRun(ctx context.Context, startedAt time.Time, sourceCount int, res rss.Result) (Run, error) {
	run := Run{
		ID:         uuid.NewString(),
		StartedAt:  startedAt.UTC(),
		FinishedAt: time.Now().UTC(),
		Sources:    sourceCount,
		Entries:    len(res.Entries),
		Errored:    len(res.Errored),
		Malformed:  len(res.Malformed),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO fetch_runs (id, started_at, finished_at, source_count, entry_count, errored_count, malformed_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Sources, run.Entries, run.Errored, run.Malformed)
	if err != nil {
		return run, fmt.Errorf("写入加载记录失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO entries (title, link, image, published_at, source_name, source_url, first_run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return run, fmt.Errorf("准备写入条目失败: %w", err)
	}
	defer stmt.Close()

	for _, e := range res.Entries {
		var name, url string
		if e.Source != nil {
			name, url = e.Source.Name, e.Source.URL
		}
		result, err := stmt.ExecContext(ctx, e.Title, e.Link, e.Image, formatTime(e.PublishedAt), name, url, run.ID)
		if err != nil {
			return run, fmt.Errorf("写入条目失败: %w", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			run.NewEntries++
		}
	}

	if err := insertFailures(ctx, tx, run.ID, kindErrored, res.Errored); err != nil {
		return run, err
	}
	if err := insertFailures(ctx, tx, run.ID, kindMalformed, res.Malformed); err != nil {
		return run, err
	}

	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("提交事务失败: %w", err)
	}

	logger.Infof("[history] 已记录加载 %s: %d 条，其中 %d 条为新条目", run.ID, run.Entries, run.NewEntries)
	return run, nil
}

func insertFailures(ctx context.Context, tx *sql.Tx, runID, kind string, sources []*rss.Source) error {
	for _, src := range sources {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO source_failures (run_id, url, kind) VALUES (?, ?, ?)",
			runID, src.URL, kind); err != nil {
			return fmt.Errorf("写入失败订阅源失败: %w", err)
		}
	}
	return nil
}

// RecentEntries 按发布时间倒序返回最多 limit 条历史条目。
// 返回条目的 Source 只包含名称和 URL。
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]rss.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, link, image, published_at, source_name, source_url
		 FROM entries ORDER BY published_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询历史条目失败: %w", err)
	}
	defer rows.Close()

	sources := make(map[string]*rss.Source)
	var entries []rss.Entry
	for rows.Next() {
		var e rss.Entry
		var published, name, url string
		if err := rows.Scan(&e.Title, &e.Link, &e.Image, &published, &name, &url); err != nil {
			return nil, fmt.Errorf("读取历史条目失败: %w", err)
		}
		if e.PublishedAt, err = parseTime(published); err != nil {
			return nil, err
		}
		src, ok := sources[url]
		if !ok {
			src = &rss.Source{Name: name, URL: url}
			sources[url] = src
		}
		e.Source = src
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs 按开始时间倒序返回最近的加载记录。
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, source_count, entry_count, errored_count, malformed_count
		 FROM fetch_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询加载记录失败: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Sources, &r.Entries, &r.Errored, &r.Malformed); err != nil {
			return nil, fmt.Errorf("读取加载记录失败: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FailureCounts 返回每个订阅源 URL 累计失败的次数。
func (s *Store) FailureCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT url, COUNT(*) FROM source_failures GROUP BY url")
	if err != nil {
		return nil, fmt.Errorf("查询失败统计失败: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var url string
		var n int
		if err := rows.Scan(&url, &n); err != nil {
			return nil, fmt.Errorf("读取失败统计失败: %w", err)
		}
		counts[url] = n
	}
	return counts, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析时间 %q 失败: %w", s, err)
	}
	return t, nil
}

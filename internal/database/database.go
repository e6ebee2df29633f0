package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iabetor/rsslib/internal/config"
	"github.com/iabetor/rsslib/internal/logger"
	_ "modernc.org/sqlite"
)

// FileName 是数据目录下的数据库文件名。
const FileName = "rsslib.db"

// pragmas 在每次打开连接后执行。
var pragmas = []struct{ sql, desc string }{
	{"PRAGMA journal_mode=WAL", "设置 WAL 模式"},
	{"PRAGMA foreign_keys=ON", "启用外键约束"},
	{"PRAGMA busy_timeout=5000", "设置忙等待超时"},
}

// DB 是加载历史使用的 SQLite 数据库连接。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库。dbPath 为空时使用默认数据目录下的 FileName。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		dbPath = filepath.Join(config.Default().Store.DataDir, FileName)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 单连接保证 PRAGMA 对所有语句生效
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p.sql); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s失败: %w", p.desc, err)
		}
	}

	logger.Debugf("[database] 已打开 %s", dbPath)
	return &DB{DB: sqlDB, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 创建加载历史相关的表和索引。
func (db *DB) Migrate() error {
	migrations := []string{
		// 每次加载一行
		`CREATE TABLE IF NOT EXISTS fetch_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			source_count INTEGER DEFAULT 0,
			entry_count INTEGER DEFAULT 0,
			errored_count INTEGER DEFAULT 0,
			malformed_count INTEGER DEFAULT 0
		)`,
		// 见过的条目，按 (title, link) 去重
		`CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			link TEXT NOT NULL,
			image TEXT DEFAULT '',
			published_at TEXT NOT NULL,
			source_name TEXT DEFAULT '',
			source_url TEXT DEFAULT '',
			first_run_id TEXT NOT NULL REFERENCES fetch_runs(id) ON DELETE CASCADE,
			first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(title, link)
		)`,
		// 每次加载中失败的订阅源
		`CREATE TABLE IF NOT EXISTS source_failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES fetch_runs(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			kind TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_entries_published ON entries(published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source_url)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_url ON source_failures(url)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			logger.Warnf("[database] 创建索引失败: %v", err)
		}
	}

	logger.Debugf("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

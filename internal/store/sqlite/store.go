// Package sqlite 是 store 接口的 gorm + sqlite 实现。
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gridbot/internal/store"
	"gridbot/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlite 只允许单写者，连接池固定为 1 避免 SQLITE_BUSY。
const maxConns = 1

var pragmas = []string{"busy_timeout(5000)", "journal_mode(WAL)", "synchronous(NORMAL)"}

type SqliteStore struct {
	db *gorm.DB
}

var _ store.Store = (*SqliteStore)(nil)

// NewSqliteStore 打开（必要时创建）数据库文件并迁移表结构。
func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&model.GridSnapshotModel{}, &model.OrderModel{}, &model.TradeModel{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(maxConns)
	}
	return &SqliteStore{db: db}, nil
}

func dsn(path string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// Begin 开启事务；调用方负责 Commit 或 Rollback。
func (s *SqliteStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &txScope{repos{tx}}, nil
}

func (s *SqliteStore) Snapshots() store.SnapshotRepository { return repos{s.db}.Snapshots() }
func (s *SqliteStore) Orders() store.OrderRepository       { return repos{s.db}.Orders() }
func (s *SqliteStore) Trades() store.TradeRepository       { return repos{s.db}.Trades() }

func (s *SqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// repos 把同一个 *gorm.DB（连接或事务）绑定到全部仓储。
type repos struct{ db *gorm.DB }

func (r repos) Snapshots() store.SnapshotRepository { return NewSnapshotRepo(r.db) }
func (r repos) Orders() store.OrderRepository       { return NewOrderRepo(r.db) }
func (r repos) Trades() store.TradeRepository       { return NewTradeRepo(r.db) }

type txScope struct{ repos }

func (t *txScope) Commit() error   { return t.db.Commit().Error }
func (t *txScope) Rollback() error { return t.db.Rollback().Error }

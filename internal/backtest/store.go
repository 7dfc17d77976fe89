package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gridbot/internal/market"

	_ "modernc.org/sqlite"
)

// Manifest 记录某个 symbol@interval 缓存文件的统计信息。
type Manifest struct {
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
	MinTime    int64  `json:"min_time"`
	MaxTime    int64  `json:"max_time"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

// Store 按 symbol/interval 分文件缓存 K 线，另有 runs.db 保存回测结果。
type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *Store) open(key, path string, schema func(*sql.DB) error) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok {
		return db, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := schema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.dbs[key] = db
	return db, nil
}

func (s *Store) candleDB(symbol, interval string) (*sql.DB, string, error) {
	if symbol == "" || interval == "" {
		return nil, "", fmt.Errorf("symbol/interval is required")
	}
	symbol, interval = strings.ToUpper(symbol), strings.ToLower(interval)
	path := filepath.Join(s.root, symbol, interval+".db")
	db, err := s.open(symbol+"@"+interval, path, func(db *sql.DB) error {
		return ensureCandleSchema(db, symbol, interval)
	})
	return db, path, err
}

// InsertCandles 批量写入 K 线（重复 open_time 覆盖）。
func (s *Store) InsertCandles(ctx context.Context, symbol, interval string, candles []market.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	db, _, err := s.candleDB(symbol, interval)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (open_time, close_time, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(open_time) DO UPDATE SET
		    close_time=excluded.close_time,
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume,
		    trades=excluded.trades`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(candles), s.refreshManifest(ctx, db)
}

// RangeCandles 返回 open_time 在 [start, end] 内的 K 线，按时间升序。
func (s *Store) RangeCandles(ctx context.Context, symbol, interval string, start, end int64) ([]market.Candle, error) {
	if start <= 0 || end <= 0 {
		return nil, fmt.Errorf("start/end must be > 0")
	}
	if end < start {
		start, end = end, start
	}
	db, _, err := s.candleDB(symbol, interval)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, trades
		FROM candles WHERE open_time BETWEEN ? AND ?
		ORDER BY open_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	return scanCandles(rows)
}

// LatestCandles 返回最近 limit 根 K 线，按时间升序。
func (s *Store) LatestCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}
	db, _, err := s.candleDB(symbol, interval)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, trades FROM (
			SELECT * FROM candles ORDER BY open_time DESC LIMIT ?
		) ORDER BY open_time ASC`, limit)
	if err != nil {
		return nil, err
	}
	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]market.Candle, error) {
	defer rows.Close()
	var list []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Trades); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *Store) Manifest(ctx context.Context, symbol, interval string) (Manifest, error) {
	db, path, err := s.candleDB(symbol, interval)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT symbol, interval, COALESCE(min_time,0), COALESCE(max_time,0), rows, COALESCE(last_sync_at,0) FROM manifest WHERE id=1`)
	var m Manifest
	if err := row.Scan(&m.Symbol, &m.Interval, &m.MinTime, &m.MaxTime, &m.Rows, &m.LastSyncAt); err != nil {
		return Manifest{}, err
	}
	m.Path = path
	return m, nil
}

func (s *Store) refreshManifest(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		UPDATE manifest
		SET min_time = (SELECT COALESCE(MIN(open_time), 0) FROM candles),
		    max_time = (SELECT COALESCE(MAX(open_time), 0) FROM candles),
		    rows = (SELECT COUNT(1) FROM candles),
		    last_sync_at = ?
		WHERE id = 1`, time.Now().UnixMilli())
	return err
}

func ensureCandleSchema(db *sql.DB, symbol, interval string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			open_time  INTEGER PRIMARY KEY,
			close_time INTEGER NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			volume     REAL NOT NULL,
			trades     INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			min_time INTEGER,
			max_time INTEGER,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT INTO manifest (id, symbol, interval) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET symbol=excluded.symbol, interval=excluded.interval`, symbol, interval)
	return err
}

func (s *Store) runsDB() (*sql.DB, error) {
	return s.open("runs", filepath.Join(s.root, "runs.db"), func(db *sql.DB) error {
		_, err := db.Exec(`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			strategy TEXT NOT NULL,
			start_ts INTEGER NOT NULL,
			end_ts INTEGER NOT NULL,
			profit TEXT NOT NULL,
			win_rate TEXT NOT NULL,
			max_drawdown TEXT NOT NULL,
			stop_loss INTEGER NOT NULL DEFAULT 0,
			stats_json TEXT NOT NULL,
			finished_at INTEGER NOT NULL
		);`)
		return err
	})
}

// SaveRun 保存一次回测摘要（不含逐根曲线）。
func (s *Store) SaveRun(ctx context.Context, stats RunStats) error {
	db, err := s.runsDB()
	if err != nil {
		return err
	}
	summary := stats
	summary.Points = nil
	summary.Grids = nil
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	stop := 0
	if stats.StopLoss {
		stop = 1
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, symbol, interval, strategy, start_ts, end_ts, profit, win_rate, max_drawdown, stop_loss, stats_json, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET stats_json=excluded.stats_json, finished_at=excluded.finished_at`,
		stats.ID, stats.Symbol, stats.Interval, stats.Strategy,
		stats.Start.UnixMilli(), stats.End.UnixMilli(),
		stats.Metrics.TotalProfit.String(), stats.Metrics.WinRate.String(), stats.Metrics.MaxDrawdown.String(),
		stop, string(raw), stats.FinishedAt.UnixMilli())
	return err
}

// ListRuns 按完成时间倒序返回回测摘要。
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunStats, error) {
	db, err := s.runsDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT stats_json FROM backtest_runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunStats
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var st RunStats
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

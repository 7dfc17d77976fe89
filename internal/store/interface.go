package store

import (
	"context"

	"gridbot/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	Snapshots() SnapshotRepository
	Orders() OrderRepository
	Trades() TradeRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	Snapshots() SnapshotRepository
	Orders() OrderRepository
	Trades() TradeRepository
	Close() error
}

// SnapshotRepository keeps the history of applied grids.
type SnapshotRepository interface {
	Save(ctx context.Context, snap *model.GridSnapshotModel) error
	// Latest returns nil when the symbol has no snapshot yet.
	Latest(ctx context.Context, symbol string) (*model.GridSnapshotModel, error)
}

// OrderRepository upserts orders keyed by exchange order id.
type OrderRepository interface {
	Save(ctx context.Context, order *model.OrderModel) error
	ListOpen(ctx context.Context, symbol string) ([]model.OrderModel, error)
	ListRecent(ctx context.Context, symbol string, limit int) ([]model.OrderModel, error)
}

// TradeRepository is append-only.
type TradeRepository interface {
	Insert(ctx context.Context, trade *model.TradeModel) error
	// List returns trades in insertion order; limit <= 0 means all.
	List(ctx context.Context, symbol string, limit int) ([]model.TradeModel, error)
}

package sqlite

import (
	"context"
	"errors"

	"gridbot/internal/gateway/exchange"
	"gridbot/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) *snapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Save(ctx context.Context, snap *model.GridSnapshotModel) error {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}
	return r.db.WithContext(ctx).Create(snap).Error
}

func (r *snapshotRepository) Latest(ctx context.Context, symbol string) (*model.GridSnapshotModel, error) {
	var snap model.GridSnapshotModel
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("created_at DESC, id DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) *orderRepository {
	return &orderRepository{db: db}
}

// Save 按 order_id upsert。
func (r *orderRepository) Save(ctx context.Context, order *model.OrderModel) error {
	if order == nil {
		return errors.New("order cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}).Create(order).Error
}

func (r *orderRepository) ListOpen(ctx context.Context, symbol string) ([]model.OrderModel, error) {
	var orders []model.OrderModel
	if err := r.db.WithContext(ctx).
		Where("symbol = ? AND status = ?", symbol, string(exchange.StatusOpen)).
		Order("side ASC, created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListRecent(ctx context.Context, symbol string, limit int) ([]model.OrderModel, error) {
	var orders []model.OrderModel
	if limit <= 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("updated_at DESC, order_id DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

type tradeRepository struct {
	db *gorm.DB
}

func NewTradeRepo(db *gorm.DB) *tradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Insert(ctx context.Context, trade *model.TradeModel) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *tradeRepository) List(ctx context.Context, symbol string, limit int) ([]model.TradeModel, error) {
	var trades []model.TradeModel
	q := r.db.WithContext(ctx).Where("symbol = ?", symbol)
	if limit > 0 {
		// 取最近 limit 条，再按插入顺序返回
		sub := r.db.Model(&model.TradeModel{}).Select("id").Where("symbol = ?", symbol).Order("id DESC").Limit(limit)
		q = q.Where("id IN (?)", sub)
	}
	if err := q.Order("id ASC").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// Package mysql 收盘价仓储的 MySQL GORM 实现
package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/oiltrading/riskengine/internal/marketdata/domain"
	"github.com/oiltrading/riskengine/pkg/db"
	"github.com/oiltrading/riskengine/pkg/logger"
)

// ClosingPriceModel 收盘价数据库模型，对应 closing_prices 表
type ClosingPriceModel struct {
	gorm.Model
	// 品种标识，与交易日构成唯一键
	InstrumentID string `gorm:"column:instrument_id;type:varchar(64);uniqueIndex:uk_instrument_date;not null" json:"instrument_id"`
	// 交易日（日粒度）
	TradeDate time.Time `gorm:"column:trade_date;type:date;uniqueIndex:uk_instrument_date;not null" json:"trade_date"`
	// 收盘价
	Close string `gorm:"column:close;type:decimal(20,8);not null" json:"close"`
	// 计价货币
	Currency string `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
}

// TableName 指定表名
func (ClosingPriceModel) TableName() string {
	return "closing_prices"
}

// PriceRepositoryImpl 收盘价仓储实现
type PriceRepositoryImpl struct {
	db *db.DB
}

// NewPriceRepository 创建收盘价仓储
func NewPriceRepository(database *db.DB) domain.PriceRepository {
	return &PriceRepositoryImpl{db: database}
}

// Upsert 幂等写入，(instrument_id, trade_date) 冲突时更新收盘价
func (pr *PriceRepositoryImpl) Upsert(ctx context.Context, price *domain.ClosingPrice) error {
	model := &ClosingPriceModel{
		InstrumentID: price.InstrumentID,
		TradeDate:    price.TradeDate,
		Close:        price.Close.String(),
		Currency:     price.Currency,
	}

	err := pr.db.UpsertWithConflict(ctx, model,
		[]string{"instrument_id", "trade_date"},
		[]string{"close", "currency", "updated_at"},
	)
	if err != nil {
		logger.Error(ctx, "Failed to upsert closing price",
			"instrument_id", price.InstrumentID,
			"trade_date", price.TradeDate.Format("2006-01-02"),
			"error", err,
		)
		return fmt.Errorf("failed to upsert closing price: %w", err)
	}

	return nil
}

// RecentCloses 按交易日升序返回最近 limit 条收盘价
func (pr *PriceRepositoryImpl) RecentCloses(ctx context.Context, instrumentID string, limit int) ([]*domain.ClosingPrice, error) {
	var models []ClosingPriceModel

	err := pr.db.WithContext(ctx).
		Where("instrument_id = ?", instrumentID).
		Order("trade_date DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		logger.Error(ctx, "Failed to load recent closes",
			"instrument_id", instrumentID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to load recent closes: %w", err)
	}

	// 查询按日期倒序取最近 limit 条，翻转为升序交给收益构建
	closes := make([]*domain.ClosingPrice, len(models))
	for i := range models {
		closes[len(models)-1-i] = pr.modelToDomain(&models[i])
	}

	return closes, nil
}

// modelToDomain 数据库模型转领域对象
func (pr *PriceRepositoryImpl) modelToDomain(model *ClosingPriceModel) *domain.ClosingPrice {
	px, err := decimal.NewFromString(model.Close)
	if err != nil {
		logger.Error(context.Background(), "Invalid close price in storage",
			"instrument_id", model.InstrumentID,
			"close", model.Close,
			"error", err,
		)
		px = decimal.Zero
	}

	return &domain.ClosingPrice{
		InstrumentID: model.InstrumentID,
		TradeDate:    model.TradeDate,
		Close:        px,
		Currency:     model.Currency,
	}
}

// Package mysql 风险报告的 MySQL 持久化实现
package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oiltrading/riskengine/internal/risk/domain"
	"github.com/oiltrading/riskengine/pkg/contextx"
	"github.com/oiltrading/riskengine/pkg/db"
)

// RiskReportRepositoryImpl 基于 GORM 的风险报告仓储
type RiskReportRepositoryImpl struct {
	db *db.DB
}

// NewRiskReportRepository 创建风险报告仓储
func NewRiskReportRepository(database *db.DB) domain.RiskReportRepository {
	return &RiskReportRepositoryImpl{db: database}
}

// session 有事务句柄时走事务连接，否则走普通连接
func (r *RiskReportRepositoryImpl) session(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Save 持久化一份风险报告
func (r *RiskReportRepositoryImpl) Save(ctx context.Context, result *domain.RiskMetricsResult) error {
	model, err := toRiskReportModel(result)
	if err != nil {
		return err
	}
	return r.session(ctx).Create(model).Error
}

// Get 按报告 ID 查询，未找到返回 (nil, nil)
func (r *RiskReportRepositoryImpl) Get(ctx context.Context, reportID string) (*domain.RiskMetricsResult, error) {
	var model RiskReportModel
	err := r.session(ctx).Where("report_id = ?", reportID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toRiskMetricsResult(&model)
}

// ListRecent 按计算时间倒序分页
func (r *RiskReportRepositoryImpl) ListRecent(ctx context.Context, limit, offset int) ([]*domain.RiskMetricsResult, int64, error) {
	var total int64
	if err := r.session(ctx).Model(&RiskReportModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []RiskReportModel
	err := r.session(ctx).
		Order("computed_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	results := make([]*domain.RiskMetricsResult, 0, len(models))
	for i := range models {
		result, err := toRiskMetricsResult(&models[i])
		if err != nil {
			return nil, 0, err
		}
		results = append(results, result)
	}
	return results, total, nil
}

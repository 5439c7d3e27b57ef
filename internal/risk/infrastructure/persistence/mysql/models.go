package mysql

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oiltrading/riskengine/internal/risk/domain"
)

// RiskReportModel MySQL 风险报告表映射
// 嵌套结构（各方法 VaR、集中度、压力结果、警告）以 JSON 列存储：
// 报告是只读快照，查询只按 report_id / snapshot_hash / computed_at 进行。
type RiskReportModel struct {
	gorm.Model
	ReportID            string    `gorm:"column:report_id;type:varchar(36);uniqueIndex;not null"`
	SnapshotHash        string    `gorm:"column:snapshot_hash;type:char(64);index;not null"`
	PortfolioVolatility float64   `gorm:"column:portfolio_volatility;type:double;not null"`
	VaRResults          string    `gorm:"column:var_results;type:json"`
	Concentration       string    `gorm:"column:concentration;type:json"`
	StressResults       string    `gorm:"column:stress_results;type:json"`
	Warnings            string    `gorm:"column:warnings;type:json"`
	ComputedAt          time.Time `gorm:"column:computed_at;index;not null"`
}

func (RiskReportModel) TableName() string { return "risk_reports" }

// --- mapping helpers ---

func toRiskReportModel(result *domain.RiskMetricsResult) (*RiskReportModel, error) {
	if result == nil {
		return nil, nil
	}
	varResults, err := json.Marshal(result.VaRResults)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal VaR results: %w", err)
	}
	concentration, err := json.Marshal(result.Concentration)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal concentration report: %w", err)
	}
	stressResults, err := json.Marshal(result.StressResults)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stress results: %w", err)
	}
	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}
	return &RiskReportModel{
		ReportID:            result.ReportID,
		SnapshotHash:        result.SnapshotHash,
		PortfolioVolatility: result.PortfolioVolatility,
		VaRResults:          string(varResults),
		Concentration:       string(concentration),
		StressResults:       string(stressResults),
		Warnings:            string(warnings),
		ComputedAt:          result.ComputedAt,
	}, nil
}

func toRiskMetricsResult(m *RiskReportModel) (*domain.RiskMetricsResult, error) {
	if m == nil {
		return nil, nil
	}
	result := &domain.RiskMetricsResult{
		ReportID:            m.ReportID,
		SnapshotHash:        m.SnapshotHash,
		PortfolioVolatility: m.PortfolioVolatility,
		ComputedAt:          m.ComputedAt,
	}
	if m.VaRResults != "" {
		if err := json.Unmarshal([]byte(m.VaRResults), &result.VaRResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal VaR results for %s: %w", m.ReportID, err)
		}
	}
	if m.Concentration != "" {
		if err := json.Unmarshal([]byte(m.Concentration), &result.Concentration); err != nil {
			return nil, fmt.Errorf("failed to unmarshal concentration report for %s: %w", m.ReportID, err)
		}
	}
	if m.StressResults != "" {
		if err := json.Unmarshal([]byte(m.StressResults), &result.StressResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stress results for %s: %w", m.ReportID, err)
		}
	}
	if m.Warnings != "" {
		if err := json.Unmarshal([]byte(m.Warnings), &result.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings for %s: %w", m.ReportID, err)
		}
	}
	return result, nil
}

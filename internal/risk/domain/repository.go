package domain

import "context"

// RiskReportRepository 风险报告仓储端口
type RiskReportRepository interface {
	// Save 持久化聚合结果，ReportID 唯一
	Save(ctx context.Context, result *RiskMetricsResult) error

	// Get 按报告 ID 读取，未找到返回 (nil, nil)
	Get(ctx context.Context, reportID string) (*RiskMetricsResult, error)

	// ListRecent 按计算时间倒序分页
	ListRecent(ctx context.Context, limit, offset int) ([]*RiskMetricsResult, int64, error)
}

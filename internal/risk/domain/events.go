package domain

import "time"

// MetricsComputedEvent 一次风险计算完成，发布到 risk.metrics.computed
type MetricsComputedEvent struct {
	ReportID     string            `json:"report_id"`
	SnapshotHash string            `json:"snapshot_hash"`
	Methods      []string          `json:"methods"`
	Values       map[string]string `json:"values"` // 方法 → VaR（decimal 字符串）
	Currency     string            `json:"currency"`
	ComputedAt   time.Time         `json:"computed_at"`
}

// LimitBreachedEvent 集中度或压力限额突破，发布到 risk.limit.breached
type LimitBreachedEvent struct {
	ReportID     string    `json:"report_id"`
	SnapshotHash string    `json:"snapshot_hash"`
	Kind         string    `json:"kind"`
	Entity       string    `json:"entity"`
	Share        float64   `json:"share"`
	Limit        float64   `json:"limit"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewMetricsComputedEvent 由聚合结果装配事件载荷
func NewMetricsComputedEvent(result *RiskMetricsResult, currency string) MetricsComputedEvent {
	methods := make([]string, 0, len(result.VaRResults))
	values := make(map[string]string, len(result.VaRResults))
	for _, vr := range result.VaRResults {
		methods = append(methods, string(vr.Method))
		values[string(vr.Method)] = vr.Value.String()
	}
	return MetricsComputedEvent{
		ReportID:     result.ReportID,
		SnapshotHash: result.SnapshotHash,
		Methods:      methods,
		Values:       values,
		Currency:     currency,
		ComputedAt:   result.ComputedAt,
	}
}

// NewLimitBreachedEvents 将报告中的每次超限展开为独立事件
func NewLimitBreachedEvents(result *RiskMetricsResult) []LimitBreachedEvent {
	if result.Concentration == nil {
		return nil
	}
	events := make([]LimitBreachedEvent, 0, len(result.Concentration.Breaches))
	for _, b := range result.Concentration.Breaches {
		events = append(events, LimitBreachedEvent{
			ReportID:     result.ReportID,
			SnapshotHash: result.SnapshotHash,
			Kind:         b.Kind,
			Entity:       b.Entity,
			Share:        b.Share,
			Limit:        b.Limit,
			OccurredAt:   result.ComputedAt,
		})
	}
	return events
}

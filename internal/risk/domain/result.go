package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// VaRResult 单一方法的 VaR 计算结果
type VaRResult struct {
	Method            Method          `json:"method"`
	ConfidenceLevel   float64         `json:"confidence_level"`
	HorizonDays       int             `json:"horizon_days"`
	Value             decimal.Decimal `json:"value"`
	ExpectedShortfall decimal.Decimal `json:"expected_shortfall"` // 未产出时为 0
	Currency          string          `json:"currency"`
	Warnings          []string        `json:"warnings,omitempty"`
}

// 集中度围栏类型
const (
	BreachKindCounterparty = "COUNTERPARTY"
	BreachKindInstrument   = "INSTRUMENT"
)

// ConcentrationBreach 一次集中度超限
type ConcentrationBreach struct {
	Kind   string  `json:"kind"`
	Entity string  `json:"entity"`
	Share  float64 `json:"share"`
	Limit  float64 `json:"limit"`
}

// ConcentrationReport 集中度报告：各对手方/品种占总绝对敞口的份额与超限清单
type ConcentrationReport struct {
	CounterpartyShares map[string]float64    `json:"counterparty_shares"`
	InstrumentShares   map[string]float64    `json:"instrument_shares"`
	Breaches           []ConcentrationBreach `json:"breaches,omitempty"`
}

// RiskMetricsResult 一次计算请求的聚合结果
type RiskMetricsResult struct {
	ReportID            string               `json:"report_id"`
	SnapshotHash        string               `json:"snapshot_hash"`
	PortfolioVolatility float64              `json:"portfolio_volatility"` // 年化，相对总敞口
	VaRResults          []VaRResult          `json:"var_results"`
	Concentration       *ConcentrationReport `json:"concentration"`
	StressResults       []StressTestResult   `json:"stress_results,omitempty"`
	Warnings            []string             `json:"warnings,omitempty"`
	ComputedAt          time.Time            `json:"computed_at"`
}

// 警告文案。数据不足类状况不是错误：降级后的风险估计比没有估计对交易台更有用。

// WarnFallbackVolatility 某品种历史数据不足，使用了配置的回退波动率
func WarnFallbackVolatility(instrumentID string) string {
	return fmt.Sprintf("fallback volatility used for %s", instrumentID)
}

// WarnFallbackCorrelation 某品种对使用了配置的回退相关系数
func WarnFallbackCorrelation(a, b string) string {
	return fmt.Sprintf("fallback correlation used for pair %s/%s", a, b)
}

// WarnCorrelationRegularized 相关矩阵被修正到最近的半正定矩阵
func WarnCorrelationRegularized() string {
	return "correlation matrix regularized to nearest PSD"
}

// WarnEigenRootFallback Cholesky 失败，改用特征值平方根生成相关冲击
func WarnEigenRootFallback() string {
	return "covariance not positive definite: using eigenvalue square root"
}

// WarnMonteCarloTruncated 蒙特卡洛在时间预算内只完成了部分路径
func WarnMonteCarloTruncated(completed, requested int) string {
	return fmt.Sprintf("Monte Carlo truncated: used %d of %d iterations", completed, requested)
}

// WarnMonteCarloLowConfidence 完成路径数低于配置下限，结果置信度低
func WarnMonteCarloLowConfidence(completed, minimum int) string {
	return fmt.Sprintf("Monte Carlo used %d iterations, below the configured minimum %d: low confidence", completed, minimum)
}

// WarnHistoricalFallback 对齐样本不足，历史法回退为参数法
func WarnHistoricalFallback(aligned, minimum int) string {
	return fmt.Sprintf("insufficient aligned history (%d < %d): historical VaR fell back to delta-normal", aligned, minimum)
}

package domain

import (
	"context"
	"math"
)

// VaRCalculator 单一方法的在险价值计算器
// 同一快照、同一波动率输入、同一请求参数必须产生相同结果。
type VaRCalculator interface {
	Method() Method
	Compute(ctx context.Context, snapshot *PortfolioSnapshot, inputs *VolatilityInputs, req *RiskCalculationRequest) (*VaRResult, error)
}

// horizonScale 年化波动率到持有期的缩放因子 sqrt(h/年化期数)
func horizonScale(params RiskParameters, horizonDays int) float64 {
	return math.Sqrt(float64(horizonDays) / float64(params.AnnualizationPeriods))
}

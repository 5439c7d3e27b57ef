package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"
)

// DeltaNormalCalculator 参数法（方差-协方差）VaR
// 假设组合损益服从零均值正态分布，线性估值。
type DeltaNormalCalculator struct {
	params RiskParameters
}

// NewDeltaNormalCalculator 创建参数法计算器
func NewDeltaNormalCalculator(params RiskParameters) *DeltaNormalCalculator {
	return &DeltaNormalCalculator{params: params.Normalize()}
}

// Method 方法标识
func (c *DeltaNormalCalculator) Method() Method { return MethodDeltaNormal }

// Compute 闭式 VaR：z_c · sqrt(wᵀΣw) · sqrt(h/年化期数)
// 预期损失取正态尾部均值 σ_h·φ(z_c)/(1-c)。
func (c *DeltaNormalCalculator) Compute(ctx context.Context, snapshot *PortfolioSnapshot, inputs *VolatilityInputs, req *RiskCalculationRequest) (*VaRResult, error) {
	result := &VaRResult{
		Method:            MethodDeltaNormal,
		ConfidenceLevel:   req.ConfidenceLevel,
		HorizonDays:       req.HorizonDays,
		Currency:          snapshot.Currency,
		Value:             decimal.Zero,
		ExpectedShortfall: decimal.Zero,
	}
	if snapshot.IsEmpty() {
		return result, nil
	}

	annualVol, err := inputs.DollarVolatility()
	if err != nil {
		return nil, err
	}
	horizonVol := annualVol * horizonScale(c.params, req.HorizonDays)
	z := distuv.UnitNormal.Quantile(req.ConfidenceLevel)

	result.Value = decimal.NewFromFloat(z * horizonVol)
	result.ExpectedShortfall = decimal.NewFromFloat(horizonVol * distuv.UnitNormal.Prob(z) / (1 - req.ConfidenceLevel))
	return result, nil
}

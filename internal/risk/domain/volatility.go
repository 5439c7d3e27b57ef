package domain

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// VolatilityInputs 波动率估计输出，供各 VaR 计算器消费
// Series 保留清洗后的收益序列，历史法重放时无需二次清洗。
type VolatilityInputs struct {
	Instruments []string                // 字典序
	Values      []float64               // 与 Instruments 对齐的带符号市值（估值货币）
	Vols        map[string]float64      // 年化波动率
	Correlation *CorrelationMatrix      // 维度与 Instruments 一致，已保证半正定
	Fallback    map[string]bool         // 使用了回退波动率的品种
	Series      map[string]ReturnSeries // 清洗后的序列
	Warnings    []string
}

// VolVector 按 Instruments 顺序排列的年化波动率向量
func (v *VolatilityInputs) VolVector() []float64 {
	vols := make([]float64, len(v.Instruments))
	for i, id := range v.Instruments {
		vols[i] = v.Vols[id]
	}
	return vols
}

// DollarVolatility 年化组合美元波动率 sqrt(wᵀΣw)
func (v *VolatilityInputs) DollarVolatility() (float64, error) {
	if len(v.Instruments) == 0 {
		return 0, nil
	}
	cov, err := v.Correlation.Covariance(v.VolVector(), 1.0)
	if err != nil {
		return 0, err
	}
	w := mat.NewVecDense(len(v.Values), v.Values)
	variance := mat.Inner(w, cov, w)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), nil
}

// RelativeVolatility 年化组合波动率（相对总绝对敞口的比例）
func (v *VolatilityInputs) RelativeVolatility() (float64, error) {
	dollar, err := v.DollarVolatility()
	if err != nil {
		return 0, err
	}
	gross := 0.0
	for _, val := range v.Values {
		gross += math.Abs(val)
	}
	if gross == 0 {
		return 0, nil
	}
	return dollar / gross, nil
}

// VolatilityEstimator 计算每个品种的年化波动率与品种间相关矩阵
// 无随机性：相同输入必得相同输出。
type VolatilityEstimator struct {
	params RiskParameters
}

// NewVolatilityEstimator 创建波动率估计器
func NewVolatilityEstimator(params RiskParameters) *VolatilityEstimator {
	return &VolatilityEstimator{params: params.Normalize()}
}

// Estimate 估计快照中各品种的波动率与相关矩阵
//
// 数据策略：
//  1. 序列先剔除 NaN/Inf；清洗后长度不足 MinimumWindowLength 的品种
//     不报错，改用配置的回退波动率并附带警告。
//  2. 双方数据充分的品种对在公共尾部窗口上计算 Pearson 相关；
//     任一侧回退的对使用配置的回退相关系数。
//  3. 成对估计可能破坏半正定性，返回前做确定性修正并附带警告。
func (e *VolatilityEstimator) Estimate(snapshot *PortfolioSnapshot, series map[string]ReturnSeries) (*VolatilityInputs, error) {
	ids, values := snapshot.InstrumentValues()

	inputs := &VolatilityInputs{
		Instruments: ids,
		Values:      values,
		Vols:        make(map[string]float64, len(ids)),
		Fallback:    make(map[string]bool, len(ids)),
		Series:      make(map[string]ReturnSeries, len(ids)),
		Correlation: NewIdentityCorrelation(len(ids)),
	}
	if len(ids) == 0 {
		return inputs, nil
	}

	for _, id := range ids {
		cleaned := series[id].Clean()
		cleaned.InstrumentID = id
		inputs.Series[id] = cleaned

		if len(cleaned.Returns) < e.params.MinimumWindowLength {
			inputs.Vols[id] = e.params.FallbackVolatility
			inputs.Fallback[id] = true
			inputs.Warnings = append(inputs.Warnings, WarnFallbackVolatility(id))
			continue
		}
		inputs.Vols[id] = e.annualize(e.periodicVolatility(cleaned.Returns), cleaned.PeriodLengthDays)
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if inputs.Fallback[a] || inputs.Fallback[b] {
				inputs.Correlation.Set(i, j, e.params.FallbackCorrelation)
				inputs.Warnings = append(inputs.Warnings, WarnFallbackCorrelation(a, b))
				continue
			}
			inputs.Correlation.Set(i, j, pairwiseCorrelation(inputs.Series[a].Returns, inputs.Series[b].Returns))
		}
	}

	regularized, err := inputs.Correlation.EnsurePSD()
	if err != nil {
		return nil, err
	}
	if regularized {
		inputs.Warnings = append(inputs.Warnings, WarnCorrelationRegularized())
	}
	return inputs, nil
}

// periodicVolatility 周期波动率（样本标准差或 EWMA，按配置选择）
func (e *VolatilityEstimator) periodicVolatility(returns []float64) float64 {
	if e.params.VolatilityMode == VolatilityModeEWMA {
		return ewmaVolatility(returns, e.params.EWMALambda)
	}
	return stat.StdDev(returns, nil)
}

// annualize 周期波动率换算为年化
func (e *VolatilityEstimator) annualize(periodic float64, periodLengthDays int) float64 {
	if periodLengthDays <= 0 {
		periodLengthDays = 1
	}
	periodsPerYear := float64(e.params.AnnualizationPeriods) / float64(periodLengthDays)
	return periodic * math.Sqrt(periodsPerYear)
}

// ewmaVolatility RiskMetrics 指数加权波动率
// sigma²_t = lambda*sigma²_{t-1} + (1-lambda)*r²_t，以首期收益平方作种子。
func ewmaVolatility(returns []float64, lambda float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	variance := returns[0] * returns[0]
	for _, r := range returns[1:] {
		variance = lambda*variance + (1-lambda)*r*r
	}
	return math.Sqrt(variance)
}

// pairwiseCorrelation 两序列公共尾部窗口上的 Pearson 相关
// 常数序列的相关无定义，按 0 处理。
func pairwiseCorrelation(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n < 2 {
		return 0
	}
	return clampCorrelation(stat.Correlation(a[len(a)-n:], b[len(b)-n:], nil))
}

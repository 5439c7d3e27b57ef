package domain

import (
	"math"
	"sort"
)

// PnLDistribution 模拟或重放得到的损益样本分布
// 样本升序存放，亏损位于左尾。
type PnLDistribution struct {
	sorted []float64
}

// NewPnLDistribution 复制样本并排序
func NewPnLDistribution(pnls []float64) *PnLDistribution {
	sorted := make([]float64, len(pnls))
	copy(sorted, pnls)
	sort.Float64s(sorted)
	return &PnLDistribution{sorted: sorted}
}

// Len 样本数量
func (d *PnLDistribution) Len() int {
	return len(d.sorted)
}

// VaR 给定置信水平下的在险价值（报告为非负损失额）
// 分位数采用线性插值：rank = (1-confidence)*(n-1)，
// 在相邻样本间插值，保证结果不随实现平台漂移。
func (d *PnLDistribution) VaR(confidence float64) float64 {
	q := d.quantile(1 - confidence)
	if q >= 0 {
		return 0
	}
	return -q
}

// ExpectedShortfall 左尾均值（包含 VaR 分位点所在样本）
func (d *PnLDistribution) ExpectedShortfall(confidence float64) float64 {
	n := len(d.sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor((1 - confidence) * float64(n-1)))
	if idx < 0 {
		idx = 0
	}
	sum := 0.0
	for i := 0; i <= idx; i++ {
		sum += d.sorted[i]
	}
	mean := sum / float64(idx+1)
	if mean >= 0 {
		return 0
	}
	return -mean
}

// quantile 插值分位数，p 取 [0,1]
func (d *PnLDistribution) quantile(p float64) float64 {
	n := len(d.sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return d.sorted[0]
	}
	if p <= 0 {
		return d.sorted[0]
	}
	if p >= 1 {
		return d.sorted[n-1]
	}
	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= n {
		return d.sorted[n-1]
	}
	frac := rank - float64(lo)
	return d.sorted[lo] + frac*(d.sorted[hi]-d.sorted[lo])
}

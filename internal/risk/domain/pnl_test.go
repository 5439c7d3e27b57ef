package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 线性插值分位数：rank = p·(n-1)，在相邻样本间插值
func TestPnLDistributionQuantileInterpolation(t *testing.T) {
	d := NewPnLDistribution([]float64{4, -3, 2, -1}) // 排序后 {-3, -1, 2, 4}

	// p=0.25 → rank 0.75 → -3 + 0.75·(−1−(−3)) = -1.5
	assert.InDelta(t, 1.5, d.VaR(0.75), 1e-12)
	// p=0 → 最小样本
	assert.InDelta(t, 3.0, d.VaR(1.0), 1e-12)
}

// 左尾均值包含分位点所在样本
func TestPnLDistributionExpectedShortfall(t *testing.T) {
	d := NewPnLDistribution([]float64{4, -3, 2, -1})

	// c=0.75：idx = floor(0.25·3) = 0 → 尾部均值 = -3
	assert.InDelta(t, 3.0, d.ExpectedShortfall(0.75), 1e-12)
	// c=0.5：idx = floor(0.5·3) = 1 → (-3 + -1)/2 = -2
	assert.InDelta(t, 2.0, d.ExpectedShortfall(0.5), 1e-12)
}

// 全盈利分布的 VaR 与预期损失都报 0，不报负数
func TestPnLDistributionAllProfits(t *testing.T) {
	d := NewPnLDistribution([]float64{1, 2, 3, 4})
	assert.Equal(t, 0.0, d.VaR(0.95))
	assert.Equal(t, 0.0, d.ExpectedShortfall(0.95))
}

// 空分布与单样本分布的边界行为
func TestPnLDistributionDegenerate(t *testing.T) {
	empty := NewPnLDistribution(nil)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 0.0, empty.VaR(0.95))
	assert.Equal(t, 0.0, empty.ExpectedShortfall(0.95))

	single := NewPnLDistribution([]float64{-7})
	assert.InDelta(t, 7.0, single.VaR(0.99), 1e-12)
	assert.InDelta(t, 7.0, single.ExpectedShortfall(0.99), 1e-12)
}

// 置信水平越高分位点越靠左尾，VaR 单调不减
func TestPnLDistributionConfidenceMonotonicity(t *testing.T) {
	pnls := make([]float64, 200)
	for i := range pnls {
		pnls[i] = float64(i-100) * 10
	}
	d := NewPnLDistribution(pnls)
	assert.GreaterOrEqual(t, d.VaR(0.99), d.VaR(0.95))
	assert.GreaterOrEqual(t, d.ExpectedShortfall(0.99), d.VaR(0.99))
}

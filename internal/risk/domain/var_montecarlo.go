package domain

import (
	"context"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// mcCancelCheckEvery 每模拟多少条路径检查一次取消信号
const mcCancelCheckEvery = 1024

// MonteCarloCalculator 蒙特卡洛模拟法 VaR
// 随机源显式注入（请求携带种子），保证审计可复现。
type MonteCarloCalculator struct {
	params RiskParameters
}

// NewMonteCarloCalculator 创建蒙特卡洛计算器
func NewMonteCarloCalculator(params RiskParameters) *MonteCarloCalculator {
	return &MonteCarloCalculator{params: params.Normalize()}
}

// Method 方法标识
func (c *MonteCarloCalculator) Method() Method { return MethodMonteCarlo }

// Compute 相关正态冲击下的模拟 VaR
//
// 协方差矩阵先分解出因子 L（Cholesky，不正定时退化为特征值平方根并警告），
// 每条路径抽取独立标准正态向量，经 L 变换为相关收益冲击后线性重估组合损益。
// 路径按连续分段分派给各 worker，分段互不重叠，归并无需加锁；
// 路径 p 固定使用 PCG(seed, p) 子流，结果与 worker 数量无关。
// 时间预算耗尽时以已完成路径给出截断结果并附带警告，而不是整体失败。
func (c *MonteCarloCalculator) Compute(ctx context.Context, snapshot *PortfolioSnapshot, inputs *VolatilityInputs, req *RiskCalculationRequest) (*VaRResult, error) {
	result := &VaRResult{
		Method:            MethodMonteCarlo,
		ConfidenceLevel:   req.ConfidenceLevel,
		HorizonDays:       req.HorizonDays,
		Currency:          snapshot.Currency,
		Value:             decimal.Zero,
		ExpectedShortfall: decimal.Zero,
	}
	if snapshot.IsEmpty() {
		return result, nil
	}
	iterations := req.MonteCarloIterations
	if iterations <= 0 {
		return nil, &ValidationError{Field: "monteCarloIterations", Reason: "must be a positive integer"}
	}

	horizonCov, err := inputs.Correlation.Covariance(inputs.VolVector(), float64(req.HorizonDays)/float64(c.params.AnnualizationPeriods))
	if err != nil {
		return nil, err
	}
	factor, eigenRoot, err := covarianceFactor(horizonCov)
	if err != nil {
		return nil, err
	}
	if eigenRoot {
		result.Warnings = append(result.Warnings, WarnEigenRootFallback())
	}

	dim := len(inputs.Instruments)
	flat := flattenFactor(factor, dim)

	workers := c.params.Workers()
	if workers > iterations {
		workers = iterations
	}
	segments := splitSegments(iterations, workers)

	pnls := make([]float64, iterations)
	completed := make([]int, workers)

	var g errgroup.Group
	for k := 0; k < workers; k++ {
		seg := segments[k]
		slot := k
		g.Go(func() error {
			pcg := rand.NewPCG(req.Seed, 0)
			rng := rand.New(pcg)
			z := make([]float64, dim)
			done := 0
			for p := seg.start; p < seg.end; p++ {
				if done%mcCancelCheckEvery == 0 && ctx.Err() != nil {
					break
				}
				pcg.Seed(req.Seed, uint64(p))
				for i := range z {
					z[i] = rng.NormFloat64()
				}
				pnl := 0.0
				for i := 0; i < dim; i++ {
					shock := 0.0
					row := flat[i*dim : (i+1)*dim]
					for j, zj := range z {
						shock += row[j] * zj
					}
					pnl += inputs.Values[i] * shock
				}
				pnls[p] = pnl
				done++
			}
			completed[slot] = done
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, n := range completed {
		total += n
	}
	if total == 0 {
		return nil, ErrTimeBudgetExceeded
	}

	samples := pnls
	if total < iterations {
		samples = make([]float64, 0, total)
		for k := 0; k < workers; k++ {
			seg := segments[k]
			samples = append(samples, pnls[seg.start:seg.start+completed[k]]...)
		}
		result.Warnings = append(result.Warnings, WarnMonteCarloTruncated(total, iterations))
	}
	if total < c.params.MonteCarloMinIterations {
		result.Warnings = append(result.Warnings, WarnMonteCarloLowConfidence(total, c.params.MonteCarloMinIterations))
	}

	dist := NewPnLDistribution(samples)
	result.Value = decimal.NewFromFloat(dist.VaR(req.ConfidenceLevel))
	result.ExpectedShortfall = decimal.NewFromFloat(dist.ExpectedShortfall(req.ConfidenceLevel))
	return result, nil
}

// pathSegment 左闭右开的路径区间
type pathSegment struct {
	start int
	end   int
}

// splitSegments 把 total 条路径尽量均匀地切成 workers 段
func splitSegments(total, workers int) []pathSegment {
	segments := make([]pathSegment, workers)
	base := total / workers
	rem := total % workers
	start := 0
	for k := range segments {
		size := base
		if k < rem {
			size++
		}
		segments[k] = pathSegment{start: start, end: start + size}
		start += size
	}
	return segments
}

// flattenFactor 因子矩阵展平为行主序切片，模拟热循环避免接口调用
func flattenFactor(factor *mat.Dense, dim int) []float64 {
	flat := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			flat[i*dim+j] = factor.At(i, j)
		}
	}
	return flat
}

package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// psdTolerance 特征值小于 -psdTolerance 才视为破坏半正定（容忍浮点噪声）
const psdTolerance = 1e-10

// CorrelationMatrix 品种集上的相关系数矩阵
// 不变式：对称、对角线为 1、元素落在 [-1, 1]，使用前必须半正定。
type CorrelationMatrix struct {
	dim int
	m   *mat.SymDense
}

// NewIdentityCorrelation 创建单位相关矩阵
func NewIdentityCorrelation(dim int) *CorrelationMatrix {
	c := &CorrelationMatrix{dim: dim}
	if dim > 0 {
		c.m = mat.NewSymDense(dim, nil)
		for i := 0; i < dim; i++ {
			c.m.SetSym(i, i, 1.0)
		}
	}
	return c
}

// Dim 矩阵维度
func (c *CorrelationMatrix) Dim() int { return c.dim }

// At 读取 (i, j) 处的相关系数
func (c *CorrelationMatrix) At(i, j int) float64 {
	if i == j {
		return 1.0
	}
	return c.m.At(i, j)
}

// Set 写入相关系数，自动对称并截断到 [-1, 1]；忽略对角线写入
func (c *CorrelationMatrix) Set(i, j int, rho float64) {
	if i == j {
		return
	}
	c.m.SetSym(i, j, clampCorrelation(rho))
}

func clampCorrelation(rho float64) float64 {
	if math.IsNaN(rho) {
		return 0
	}
	return math.Max(-1, math.Min(1, rho))
}

// IsPSD 判断矩阵是否半正定
func (c *CorrelationMatrix) IsPSD() (bool, error) {
	if c.dim <= 1 {
		return true, nil
	}
	var es mat.EigenSym
	if !es.Factorize(c.m, false) {
		return false, &ComputationError{Stage: "correlation eigendecomposition", Err: fmt.Errorf("factorization did not converge")}
	}
	vals := es.Values(nil)
	return vals[0] >= -psdTolerance, nil
}

// EnsurePSD 将矩阵确定性地修正到最近的有效相关矩阵
// 算法：特征值剪裁到零后重建，再缩放回单位对角线。
// 返回是否发生了修正；修正本身失败（病态输入）时返回 ComputationError。
func (c *CorrelationMatrix) EnsurePSD() (bool, error) {
	if c.dim <= 1 {
		return false, nil
	}

	var es mat.EigenSym
	if !es.Factorize(c.m, true) {
		return false, &ComputationError{Stage: "correlation eigendecomposition", Err: fmt.Errorf("factorization did not converge")}
	}
	vals := es.Values(nil)
	if vals[0] >= -psdTolerance {
		return false, nil
	}

	clipped := make([]float64, len(vals))
	for i, v := range vals {
		clipped[i] = math.Max(v, 0)
	}

	var q mat.Dense
	es.VectorsTo(&q)

	// rebuilt = Q * diag(clipped) * Qᵀ
	d := mat.NewDiagDense(c.dim, clipped)
	var qd, rebuilt mat.Dense
	qd.Mul(&q, d)
	rebuilt.Mul(&qd, q.T())

	// 缩放回单位对角线，保持相关矩阵语义
	scale := make([]float64, c.dim)
	for i := 0; i < c.dim; i++ {
		v := rebuilt.At(i, i)
		if v <= 0 {
			return false, &ComputationError{Stage: "correlation regularization", Err: fmt.Errorf("degenerate diagonal after eigenvalue clipping")}
		}
		scale[i] = math.Sqrt(v)
	}
	for i := 0; i < c.dim; i++ {
		c.m.SetSym(i, i, 1.0)
		for j := i + 1; j < c.dim; j++ {
			c.m.SetSym(i, j, clampCorrelation(rebuilt.At(i, j)/(scale[i]*scale[j])))
		}
	}
	return true, nil
}

// Covariance 由年化波动率与相关矩阵构建协方差矩阵
// Σ_ij = σ_i * σ_j * ρ_ij * scale，scale 为期限缩放因子（如 h/252）。
func (c *CorrelationMatrix) Covariance(vols []float64, scale float64) (*mat.SymDense, error) {
	if len(vols) != c.dim {
		return nil, &ComputationError{Stage: "covariance assembly", Err: fmt.Errorf("volatility vector length %d does not match matrix dimension %d", len(vols), c.dim)}
	}
	cov := mat.NewSymDense(c.dim, nil)
	for i := 0; i < c.dim; i++ {
		for j := i; j < c.dim; j++ {
			cov.SetSym(i, j, vols[i]*vols[j]*c.At(i, j)*scale)
		}
	}
	return cov, nil
}

// covarianceFactor 求下三角因子 L 满足 L·Lᵀ ≈ cov
// 优先 Cholesky；协方差奇异或处于半正定边界时退化为特征值平方根 L = Q·√Λ。
// 第二个返回值标记是否使用了退化路径（需要附加警告）。
func covarianceFactor(cov *mat.SymDense) (*mat.Dense, bool, error) {
	n, _ := cov.Dims()

	var chol mat.Cholesky
	if chol.Factorize(cov) {
		var lower mat.TriDense
		chol.LTo(&lower)
		l := mat.NewDense(n, n, nil)
		l.Copy(&lower)
		return l, false, nil
	}

	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return nil, false, &ComputationError{Stage: "covariance factorization", Err: fmt.Errorf("eigendecomposition did not converge")}
	}
	vals := es.Values(nil)
	for i, v := range vals {
		vals[i] = math.Sqrt(math.Max(v, 0))
	}
	var q mat.Dense
	es.VectorsTo(&q)

	d := mat.NewDiagDense(n, vals)
	var l mat.Dense
	l.Mul(&q, d)
	return &l, true, nil
}

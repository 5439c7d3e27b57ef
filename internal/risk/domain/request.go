package domain

import "slices"

// Method VaR 计算方法
type Method string

const (
	MethodDeltaNormal Method = "DELTA_NORMAL"
	MethodHistorical  Method = "HISTORICAL"
	MethodMonteCarlo  Method = "MONTE_CARLO"
	MethodAll         Method = "ALL"
)

// ParseMethod 解析方法名，未知值返回 false
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodDeltaNormal, MethodHistorical, MethodMonteCarlo, MethodAll:
		return Method(s), true
	}
	return "", false
}

// RiskCalculationRequest 一次风险计算请求
// Seed 在应用层解析：调用方未提供时填入配置的默认种子。
type RiskCalculationRequest struct {
	Methods              []Method `json:"methods"`
	ConfidenceLevel      float64  `json:"confidence_level"`
	HorizonDays          int      `json:"horizon_days"`
	MonteCarloIterations int      `json:"monte_carlo_iterations"`
	Seed                 uint64   `json:"seed"`
}

// Validate 校验请求参数，任何失败都在计算开始前返回 ValidationError
func (r *RiskCalculationRequest) Validate() error {
	if len(r.Methods) == 0 {
		return &ValidationError{Field: "methods", Reason: "at least one method is required"}
	}
	for _, m := range r.Methods {
		if _, ok := ParseMethod(string(m)); !ok {
			return &ValidationError{Field: "methods", Reason: "unknown method " + string(m)}
		}
	}
	if r.ConfidenceLevel <= 0 || r.ConfidenceLevel >= 1 {
		return &ValidationError{Field: "confidence_level", Reason: "must be in the open interval (0, 1)"}
	}
	if r.HorizonDays <= 0 {
		return &ValidationError{Field: "horizon_days", Reason: "must be a positive number of trading days"}
	}
	if r.wantsMonteCarlo() && r.MonteCarloIterations <= 0 {
		return &ValidationError{Field: "monte_carlo_iterations", Reason: "required when the Monte Carlo method is requested"}
	}
	return nil
}

// ExpandMethods 展开 ALL 并去重，保持 DeltaNormal → Historical → MonteCarlo 的固定顺序
func (r *RiskCalculationRequest) ExpandMethods() []Method {
	if slices.Contains(r.Methods, MethodAll) {
		return []Method{MethodDeltaNormal, MethodHistorical, MethodMonteCarlo}
	}
	ordered := make([]Method, 0, 3)
	for _, m := range []Method{MethodDeltaNormal, MethodHistorical, MethodMonteCarlo} {
		if slices.Contains(r.Methods, m) {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

func (r *RiskCalculationRequest) wantsMonteCarlo() bool {
	return slices.Contains(r.Methods, MethodMonteCarlo) || slices.Contains(r.Methods, MethodAll)
}

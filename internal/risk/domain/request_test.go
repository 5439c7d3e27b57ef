package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 请求校验在任何计算开始前短路，错误指明出错字段
func TestRequestValidation(t *testing.T) {
	valid := RiskCalculationRequest{
		Methods:              []Method{MethodDeltaNormal},
		ConfidenceLevel:      0.95,
		HorizonDays:          1,
		MonteCarloIterations: 0,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name     string
		mutate   func(r *RiskCalculationRequest)
		field    string
	}{
		{"方法列表为空", func(r *RiskCalculationRequest) { r.Methods = nil }, "methods"},
		{"未知方法", func(r *RiskCalculationRequest) { r.Methods = []Method{"GARCH"} }, "methods"},
		{"置信水平为 0", func(r *RiskCalculationRequest) { r.ConfidenceLevel = 0 }, "confidence_level"},
		{"置信水平为 1", func(r *RiskCalculationRequest) { r.ConfidenceLevel = 1 }, "confidence_level"},
		{"置信水平为负", func(r *RiskCalculationRequest) { r.ConfidenceLevel = -0.5 }, "confidence_level"},
		{"期限为 0", func(r *RiskCalculationRequest) { r.HorizonDays = 0 }, "horizon_days"},
		{"期限为负", func(r *RiskCalculationRequest) { r.HorizonDays = -3 }, "horizon_days"},
		{"蒙特卡洛缺迭代数", func(r *RiskCalculationRequest) { r.Methods = []Method{MethodMonteCarlo} }, "monte_carlo_iterations"},
		{"ALL 同样要求迭代数", func(r *RiskCalculationRequest) { r.Methods = []Method{MethodAll} }, "monte_carlo_iterations"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

// ALL 展开为固定顺序的三个方法，显式列表去重且保持该顺序
func TestExpandMethods(t *testing.T) {
	all := RiskCalculationRequest{Methods: []Method{MethodAll}}
	assert.Equal(t, []Method{MethodDeltaNormal, MethodHistorical, MethodMonteCarlo}, all.ExpandMethods())

	dup := RiskCalculationRequest{Methods: []Method{MethodMonteCarlo, MethodDeltaNormal, MethodMonteCarlo}}
	assert.Equal(t, []Method{MethodDeltaNormal, MethodMonteCarlo}, dup.ExpandMethods())
}

func TestParseMethod(t *testing.T) {
	m, ok := ParseMethod("HISTORICAL")
	assert.True(t, ok)
	assert.Equal(t, MethodHistorical, m)

	_, ok = ParseMethod("historical")
	assert.False(t, ok, "方法名大小写敏感")

	_, ok = ParseMethod("GARCH")
	assert.False(t, ok)
}

// 校验错误与计算错误是两类可区分的错误
func TestErrorTaxonomy(t *testing.T) {
	var verr error = &ValidationError{Field: "confidence_level", Reason: "must be in the open interval (0, 1)"}
	assert.True(t, IsValidation(verr))
	assert.False(t, IsComputation(verr))
	assert.Contains(t, verr.Error(), "confidence_level")

	var cerr error = &ComputationError{Stage: "correlation regularization", Err: assert.AnError}
	assert.True(t, IsComputation(cerr))
	assert.False(t, IsValidation(cerr))
	assert.ErrorIs(t, cerr, assert.AnError)
}

package observer

import (
	"math"
	"testing"
)

func TestCostCalculator(t *testing.T) {
	plain := NewCostCalculator(nil)
	custom := NewCostCalculator(map[string]ModelPricing{
		"in-house-7b": {InputPerMillion: 0.05, OutputPerMillion: 0.20},
		"gpt-4o":      {InputPerMillion: 1.00, OutputPerMillion: 2.00},
	})

	tests := []struct {
		name  string
		calc  *CostCalculator
		model string
		in    int
		out   int
		want  float64
	}{
		{"default row", plain, "claude-haiku-3-5", 1_000_000, 1_000_000, 4.80},
		{"asymmetric counts", plain, "gpt-4o-mini", 500_000, 200_000, 0.195},
		{"unknown model is free", plain, "mystery-model", 10_000, 10_000, 0},
		{"zero tokens", plain, "gpt-4o", 0, 0, 0},
		{"override adds a model", custom, "in-house-7b", 2_000_000, 1_000_000, 0.30},
		{"override replaces a default", custom, "gpt-4o", 1_000_000, 1_000_000, 3.00},
		{"defaults survive overrides", custom, "gemini-2.5-pro", 1_000_000, 1_000_000, 11.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.calc.Calculate(tt.model, tt.in, tt.out)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Calculate(%q, %d, %d) = %f, want %f", tt.model, tt.in, tt.out, got, tt.want)
			}
		})
	}
}

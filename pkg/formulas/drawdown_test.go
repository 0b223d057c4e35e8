package formulas

import (
	"math"
	"testing"
)

func TestCalculateMaxDrawdown(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		expected  *float64
		tolerance float64
	}{
		{name: "too short", values: []float64{100}, expected: nil},
		{name: "monotonic rise", values: []float64{100, 110, 120}, expected: ptr(0.0), tolerance: 1e-12},
		{name: "single dip", values: []float64{100, 110, 90, 95, 115}, expected: ptr(0.18181818), tolerance: 1e-6},
		{name: "full collapse", values: []float64{100, 50, 25}, expected: ptr(0.75), tolerance: 1e-12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateMaxDrawdown(tt.values)
			if tt.expected == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", *got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a value, got nil")
			}
			if math.Abs(*got-*tt.expected) > tt.tolerance {
				t.Errorf("CalculateMaxDrawdown() = %v, want %v", *got, *tt.expected)
			}
		})
	}
}

func TestDrawdownSeries(t *testing.T) {
	values := []float64{100, 110, 90, 95, 115}
	series := DrawdownSeries(values)

	if len(series) != len(values) {
		t.Fatalf("expected %d points, got %d", len(values), len(series))
	}

	expected := []float64{0, 0, -0.18181818, -0.13636363, 0}
	for i := range expected {
		if math.Abs(series[i]-expected[i]) > 1e-6 {
			t.Errorf("series[%d] = %v, want %v", i, series[i], expected[i])
		}
	}
}

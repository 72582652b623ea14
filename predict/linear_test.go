package predict

import (
	"math"
	"testing"
)

func TestLinearModel_LearnsTrend(t *testing.T) {
	samples := []Sample{
		{Features: []float64{0.0}, Label: 0.0},
		{Features: []float64{0.25}, Label: 0.25},
		{Features: []float64{0.5}, Label: 0.5},
		{Features: []float64{0.75}, Label: 0.75},
		{Features: []float64{1.0}, Label: 1.0},
	}

	model := NewLinearModel()
	model.Fit(samples)

	if got := model.Predict([]float64{0.5}); math.Abs(got-0.5) > 0.1 {
		t.Errorf("Predict(0.5) = %f, want near 0.5", got)
	}
	if low, high := model.Predict([]float64{0.1}), model.Predict([]float64{0.9}); high-low < 0.4 {
		t.Errorf("Predict(0.9)-Predict(0.1) = %f, want a clear upward trend", high-low)
	}
}

func TestLinearModel_EmptyFitResets(t *testing.T) {
	model := NewLinearModel()
	model.Fit([]Sample{{Features: []float64{1}, Label: 1}})
	model.Fit(nil)

	if got := model.Predict([]float64{1}); got != 0 {
		t.Errorf("Predict() after reset = %f, want 0", got)
	}
}

func TestLinearModel_DimensionMismatch(t *testing.T) {
	samples := []Sample{
		{Features: []float64{0.2}, Label: 0.2},
		{Features: []float64{0.4}, Label: 0.4},
		{Features: []float64{0.8}, Label: 0.8},
	}
	model := NewLinearModel()
	model.Fit(samples)

	// Extra features are ignored, missing ones count as zero.
	base := model.Predict([]float64{0.5})
	if got := model.Predict([]float64{0.5, 99, -7}); got != base {
		t.Errorf("Predict with extra features = %f, want %f", got, base)
	}
	if got := model.Predict(nil); math.IsNaN(got) {
		t.Error("Predict(nil) = NaN")
	}
}

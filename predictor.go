package depadvise

import (
	"sync"

	"github.com/depadvise/depadvise/predict"
)

// SuccessPredictor estimates how likely a configuration is to pass
// testing, learned from past test results. It is safe for concurrent
// use.
type SuccessPredictor struct {
	mu       sync.RWMutex
	ensemble *predict.Ensemble
}

// NewSuccessPredictor creates an untrained predictor. The seed fixes
// the ensemble's resampling so training reproduces.
func NewSuccessPredictor(seed int64) *SuccessPredictor {
	return &SuccessPredictor{ensemble: predict.NewEnsemble(seed)}
}

// Trained reports whether the predictor has fit on enough history.
func (p *SuccessPredictor) Trained() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ensemble.Trained()
}

// Train refits the ensemble on the full result history. Too little
// history leaves the predictor untrained; that is not an error.
func (p *SuccessPredictor) Train(results []TestResult) {
	samples := make([]predict.Sample, 0, len(results))
	for _, r := range results {
		label := 0.0
		if r.Success {
			label = 1.0
		}
		samples = append(samples, predict.Sample{
			Features: featureVector(r.Configuration),
			Label:    label,
		})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensemble.Fit(samples)
}

// PredictSuccessRate scores a configuration in [0, 1]. Untrained
// predictors return the ensemble's neutral default.
func (p *SuccessPredictor) PredictSuccessRate(cfg ConfigurationSet) float64 {
	features := featureVector(cfg)

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ensemble.Predict(features)
}

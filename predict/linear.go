package predict

// Linear model training defaults.
const (
	defaultEpochs       = 250
	defaultLearningRate = 0.05
)

// LinearModel is a least-squares regressor fit by batch gradient
// descent. It assumes features are roughly unit-scaled; callers feed it
// normalized vectors.
type LinearModel struct {
	weights      []float64
	bias         float64
	epochs       int
	learningRate float64
}

// NewLinearModel returns an untrained linear regressor with default
// training settings.
func NewLinearModel() *LinearModel {
	return &LinearModel{
		epochs:       defaultEpochs,
		learningRate: defaultLearningRate,
	}
}

// Fit trains the model on the samples. Empty input resets the model to
// a zero predictor.
func (m *LinearModel) Fit(samples []Sample) {
	if len(samples) == 0 {
		m.weights = nil
		m.bias = 0
		return
	}

	dim := len(samples[0].Features)
	m.weights = make([]float64, dim)
	m.bias = 0

	n := float64(len(samples))
	for epoch := 0; epoch < m.epochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for _, s := range samples {
			err := m.Predict(s.Features) - s.Label
			for i, f := range s.Features {
				if i >= dim {
					break
				}
				gradW[i] += err * f
			}
			gradB += err
		}
		for i := range m.weights {
			m.weights[i] -= m.learningRate * gradW[i] / n
		}
		m.bias -= m.learningRate * gradB / n
	}
}

// Predict returns the linear combination of the features. Extra
// features beyond the trained dimensionality are ignored; missing ones
// count as zero.
func (m *LinearModel) Predict(features []float64) float64 {
	sum := m.bias
	for i, w := range m.weights {
		if i >= len(features) {
			break
		}
		sum += w * features[i]
	}
	return sum
}

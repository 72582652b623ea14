package predict

import (
	"math"
	"math/rand"
)

// Ensemble defaults.
const (
	// DefaultPrediction is returned while the ensemble is untrained.
	DefaultPrediction = 0.5

	// MinTrainingSamples is the smallest sample count worth fitting on.
	// Below it the ensemble stays untrained rather than overfitting a
	// handful of observations.
	MinTrainingSamples = 4

	memberCount    = 4
	weightEpsilon  = 1e-6
	holdoutDivisor = 5
)

// Sample pairs a feature vector with its observed outcome.
type Sample struct {
	// Features is the fixed-length input vector.
	Features []float64

	// Label is the observed outcome in [0, 1].
	Label float64
}

// Model is anything the ensemble can train and query.
type Model interface {
	Fit(samples []Sample)
	Predict(features []float64) float64
}

var (
	_ Model = (*LinearModel)(nil)
	_ Model = (*TreeModel)(nil)
)

type member struct {
	model  Model
	weight float64
}

// Ensemble blends linear and tree members trained on bootstrap
// resamples. Member weights are the inverse of their holdout error, so
// unreliable members fade out of the blend.
//
// An Ensemble is not safe for concurrent mutation; callers serialize
// Fit against Predict.
type Ensemble struct {
	members []member
	trained bool
	rng     *rand.Rand
}

// NewEnsemble creates an untrained ensemble. The seed fixes bootstrap
// resampling so training reproduces.
func NewEnsemble(seed int64) *Ensemble {
	return &Ensemble{rng: rand.New(rand.NewSource(seed))}
}

// Trained reports whether Fit has succeeded with enough samples.
func (e *Ensemble) Trained() bool {
	return e.trained
}

// Fit trains the ensemble. With fewer than MinTrainingSamples samples
// the ensemble resets to untrained and Predict keeps returning
// DefaultPrediction.
func (e *Ensemble) Fit(samples []Sample) {
	if len(samples) < MinTrainingSamples {
		e.members = nil
		e.trained = false
		return
	}

	shuffled := append([]Sample(nil), samples...)
	e.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	holdoutSize := len(shuffled) / holdoutDivisor
	if holdoutSize < 1 {
		holdoutSize = 1
	}
	holdout := shuffled[:holdoutSize]
	train := shuffled[holdoutSize:]
	if len(train) == 0 {
		train = shuffled
	}

	e.members = make([]member, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		var model Model
		if i%2 == 0 {
			model = NewLinearModel()
		} else {
			model = NewTreeModel()
		}
		model.Fit(e.bootstrap(train))

		mae := meanAbsoluteError(model, holdout)
		e.members = append(e.members, member{
			model:  model,
			weight: 1 / (mae + weightEpsilon),
		})
	}

	normalizeWeights(e.members)
	e.trained = true
}

// Predict blends the member predictions, clamped to [0, 1]. Untrained
// ensembles return DefaultPrediction.
func (e *Ensemble) Predict(features []float64) float64 {
	if !e.trained || len(e.members) == 0 {
		return DefaultPrediction
	}
	sum := 0.0
	for _, m := range e.members {
		sum += m.weight * m.model.Predict(features)
	}
	return math.Max(0, math.Min(1, sum))
}

// bootstrap draws a same-size resample with replacement.
func (e *Ensemble) bootstrap(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	for i := range out {
		out[i] = samples[e.rng.Intn(len(samples))]
	}
	return out
}

func meanAbsoluteError(m Model, samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += math.Abs(m.Predict(s.Features) - s.Label)
	}
	return sum / float64(len(samples))
}

func normalizeWeights(members []member) {
	total := 0.0
	for _, m := range members {
		total += m.weight
	}
	if total <= 0 {
		for i := range members {
			members[i].weight = 1 / float64(len(members))
		}
		return
	}
	for i := range members {
		members[i].weight /= total
	}
}

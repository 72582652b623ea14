package predict

import "sort"

// Tree growth defaults.
const (
	defaultMaxDepth = 4
	defaultMinLeaf  = 3
)

// TreeModel is a regression tree grown by variance reduction. Trees
// stay shallow on purpose: they exist to capture the interactions the
// linear members miss, not to memorize the training set.
type TreeModel struct {
	root     *treeNode
	maxDepth int
	minLeaf  int
}

type treeNode struct {
	// Leaf prediction, meaningful when left and right are nil.
	value float64

	// Split definition for interior nodes.
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) isLeaf() bool {
	return n.left == nil && n.right == nil
}

// NewTreeModel returns an untrained tree with default growth limits.
func NewTreeModel() *TreeModel {
	return &TreeModel{maxDepth: defaultMaxDepth, minLeaf: defaultMinLeaf}
}

// Fit grows the tree on the samples. Empty input resets the tree to a
// zero predictor.
func (m *TreeModel) Fit(samples []Sample) {
	if len(samples) == 0 {
		m.root = nil
		return
	}
	m.root = m.grow(samples, 0)
}

// Predict walks the tree for the features. An untrained tree predicts
// zero.
func (m *TreeModel) Predict(features []float64) float64 {
	node := m.root
	if node == nil {
		return 0
	}
	for !node.isLeaf() {
		if node.feature < len(features) && features[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func (m *TreeModel) grow(samples []Sample, depth int) *treeNode {
	leaf := &treeNode{value: meanLabel(samples)}
	if depth >= m.maxDepth || len(samples) < 2*m.minLeaf || labelVariance(samples) < 1e-9 {
		return leaf
	}

	feature, threshold, ok := m.bestSplit(samples)
	if !ok {
		return leaf
	}

	var left, right []Sample
	for _, s := range samples {
		if s.Features[feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) < m.minLeaf || len(right) < m.minLeaf {
		return leaf
	}

	leaf.feature = feature
	leaf.threshold = threshold
	leaf.left = m.grow(left, depth+1)
	leaf.right = m.grow(right, depth+1)
	return leaf
}

// bestSplit scans every feature for the threshold that minimizes the
// weighted label variance of the two halves.
func (m *TreeModel) bestSplit(samples []Sample) (feature int, threshold float64, ok bool) {
	dim := len(samples[0].Features)
	best := labelVariance(samples) * float64(len(samples))

	for f := 0; f < dim; f++ {
		values := make([]float64, 0, len(samples))
		for _, s := range samples {
			values = append(values, s.Features[f])
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			t := (values[i] + values[i-1]) / 2

			var left, right []Sample
			for _, s := range samples {
				if s.Features[f] <= t {
					left = append(left, s)
				} else {
					right = append(right, s)
				}
			}
			if len(left) < m.minLeaf || len(right) < m.minLeaf {
				continue
			}

			cost := labelVariance(left)*float64(len(left)) + labelVariance(right)*float64(len(right))
			if cost < best {
				best = cost
				feature = f
				threshold = t
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func meanLabel(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Label
	}
	return sum / float64(len(samples))
}

func labelVariance(samples []Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	mean := meanLabel(samples)
	sum := 0.0
	for _, s := range samples {
		d := s.Label - mean
		sum += d * d
	}
	return sum / float64(len(samples))
}

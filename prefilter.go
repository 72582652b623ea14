package depadvise

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// PriorityMode selects how the prefilter scores candidates.
type PriorityMode string

const (
	// PriorityHistorical scores candidates on recorded test outcomes of
	// the same or similar configurations.
	PriorityHistorical PriorityMode = "historical"

	// PriorityHeuristic scores candidates on intrinsic qualities such
	// as stability and popularity.
	PriorityHeuristic PriorityMode = "heuristic"

	// PriorityPredictive scores candidates with the learned predictor.
	PriorityPredictive PriorityMode = "predictive"

	// PriorityHybrid blends all three signals with adaptive weights.
	PriorityHybrid PriorityMode = "hybrid"
)

// ParsePriorityMode converts a string into a PriorityMode.
func ParsePriorityMode(s string) (PriorityMode, error) {
	switch PriorityMode(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHistorical:
		return PriorityHistorical, nil
	case PriorityHeuristic:
		return PriorityHeuristic, nil
	case PriorityPredictive:
		return PriorityPredictive, nil
	case PriorityHybrid:
		return PriorityHybrid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPriorityMode, s)
}

// Hybrid blend weights and the similarity floor below which historical
// results stop informing a candidate's score.
const (
	hybridHistoricalWeight = 0.4
	hybridHeuristicWeight  = 0.3
	hybridPredictiveWeight = 0.3
	similarityFloor        = 0.3
)

// SmartPrefilter cuts a candidate list down to a testing budget while
// keeping both the most promising and the most diverse candidates. It
// learns online: every recorded test result sharpens future scoring.
// Safe for concurrent use.
type SmartPrefilter struct {
	maxCombinations int
	mode            PriorityMode
	predictor       *SuccessPredictor

	mu      sync.RWMutex
	history []TestResult
	byHash  map[string][]bool
}

// NewSmartPrefilter builds a prefilter with the given testing budget
// and scoring mode. The predictor may be nil; predictive scores then
// fall back to the neutral default.
func NewSmartPrefilter(maxCombinations int, mode PriorityMode, predictor *SuccessPredictor) *SmartPrefilter {
	if maxCombinations < 1 {
		maxCombinations = 1
	}
	return &SmartPrefilter{
		maxCombinations: maxCombinations,
		mode:            mode,
		predictor:       predictor,
		byHash:          make(map[string][]bool),
	}
}

// AddResult records a test outcome for future scoring.
func (p *SmartPrefilter) AddResult(r TestResult) {
	hash := r.Configuration.ContentHash()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, r)
	p.byHash[hash] = append(p.byHash[hash], r.Success)
}

// HistorySize returns the number of recorded results.
func (p *SmartPrefilter) HistorySize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.history)
}

// Prefilter returns at most the budgeted number of candidates. Lists
// already inside the budget pass through unchanged and in order. Larger
// lists are scored, then reduced by greedy diversity selection so the
// survivors are promising without being near-duplicates of each other.
func (p *SmartPrefilter) Prefilter(candidates []ConfigurationSet) []ConfigurationSet {
	if len(candidates) <= p.maxCombinations {
		return candidates
	}

	scored := make([]scoredCandidate, len(candidates))
	for i, cfg := range candidates {
		scored[i] = scoredCandidate{
			cfg:   cfg,
			score: p.calculatePriority(cfg),
			names: cfg.PackageNames(),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].cfg.Name < scored[j].cfg.Name
	})

	selected := p.selectDiverse(scored)

	out := make([]ConfigurationSet, len(selected))
	for i, s := range selected {
		out[i] = s.cfg
	}
	return out
}

type scoredCandidate struct {
	cfg   ConfigurationSet
	score float64
	names []string
}

// selectDiverse seeds with the top-scored candidate, then repeatedly
// takes the candidate farthest from everything already selected. Ties
// resolve toward higher scores because candidates are visited in score
// order.
func (p *SmartPrefilter) selectDiverse(scored []scoredCandidate) []scoredCandidate {
	selected := []scoredCandidate{scored[0]}
	remaining := scored[1:]

	for len(selected) < p.maxCombinations && len(remaining) > 0 {
		bestIdx := 0
		bestDist := -1.0
		for i, cand := range remaining {
			minDist := math.MaxFloat64
			for _, sel := range selected {
				d := 1 - jaccardSimilarity(cand.names, sel.names)
				if d < minDist {
					minDist = d
				}
			}
			if minDist > bestDist {
				bestDist = minDist
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// calculatePriority scores one candidate under the configured mode.
func (p *SmartPrefilter) calculatePriority(cfg ConfigurationSet) float64 {
	switch p.mode {
	case PriorityHistorical:
		return p.historicalScore(cfg)
	case PriorityHeuristic:
		return heuristicScore(cfg)
	case PriorityPredictive:
		return p.predictiveScore(cfg)
	default:
		return p.hybridScore(cfg)
	}
}

// hybridScore blends the three signals. With no recorded history the
// historical weight drops to zero and the remaining weights renormalize,
// so an empty learner never waters down the blend with guesses.
func (p *SmartPrefilter) hybridScore(cfg ConfigurationSet) float64 {
	wHist := hybridHistoricalWeight
	if p.HistorySize() == 0 {
		wHist = 0
	}
	wHeur := hybridHeuristicWeight
	wPred := hybridPredictiveWeight
	total := wHist + wHeur + wPred

	score := (wHist*p.historicalScore(cfg) +
		wHeur*heuristicScore(cfg) +
		wPred*p.predictiveScore(cfg)) / total
	return clamp01(score)
}

// historicalScore answers from recorded outcomes. An exact content
// match returns that configuration's success rate. Otherwise results of
// sufficiently similar configurations vote, weighted by similarity.
// With nothing comparable on record the score is neutral.
func (p *SmartPrefilter) historicalScore(cfg ConfigurationSet) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if outcomes, ok := p.byHash[cfg.ContentHash()]; ok && len(outcomes) > 0 {
		return successRate(outcomes)
	}

	names := cfg.PackageNames()
	weightSum, voteSum := 0.0, 0.0
	for _, r := range p.history {
		sim := jaccardSimilarity(names, r.Configuration.PackageNames())
		if sim <= similarityFloor {
			continue
		}
		weightSum += sim
		if r.Success {
			voteSum += sim
		}
	}
	if weightSum == 0 {
		return 0.5
	}
	return voteSum / weightSum
}

func (p *SmartPrefilter) predictiveScore(cfg ConfigurationSet) float64 {
	if p.predictor == nil {
		return 0.5
	}
	return p.predictor.PredictSuccessRate(cfg)
}

// heuristicScore rates a candidate on intrinsic signals alone: stable,
// popular, simple, reasonably fresh sets score high.
func heuristicScore(cfg ConfigurationSet) float64 {
	simplicity := clamp01(1 - float64(cfg.Complexity())/20.0)
	return clamp01(0.35*cfg.StabilityScore() +
		0.25*downloadScore(cfg.AllDependencies()) +
		0.2*simplicity +
		0.2*cfg.FreshnessScore())
}

func successRate(outcomes []bool) float64 {
	wins := 0
	for _, ok := range outcomes {
		if ok {
			wins++
		}
	}
	return float64(wins) / float64(len(outcomes))
}

// jaccardSimilarity compares two sorted name lists. Two empty sets are
// identical, similarity 1.
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	i, j, intersection := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			intersection++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

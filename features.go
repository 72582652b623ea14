package depadvise

import (
	"math"

	"github.com/Masterminds/semver/v3"
)

// antagonisticPairs lists package pairings that historically destabilize
// configurations even when no declared conflict exists. Order within a
// pair does not matter.
var antagonisticPairs = [][2]string{
	{"moor", "drift"},
	{"provider", "flutter_riverpod"},
	{"flutter_bloc", "mobx"},
	{"dio", "http"},
}

// featureNames labels the feature vector positions. The order is part
// of the predictor's contract: training and prediction must agree on it.
var featureNames = []string{
	"complexity",
	"stability",
	"freshness",
	"priority",
	"core_count",
	"essential_count",
	"optional_count",
	"dev_count",
	"avg_version_age",
	"prerelease_ratio",
	"major_spread",
	"known_package_ratio",
	"download_score",
	"pairwise_compat_ratio",
	"conflict_risk",
	"dev_ratio",
}

// FeatureNames returns the labels of the predictor's feature vector in
// positional order.
func FeatureNames() []string {
	return append([]string(nil), featureNames...)
}

// featureVector flattens a configuration into the fixed-length vector
// the predictor consumes. Every component is normalized into [0, 1].
func featureVector(cfg ConfigurationSet) []float64 {
	merged := cfg.AllDependencies()
	total := len(merged)

	features := make([]float64, 0, len(featureNames))
	features = append(features,
		math.Min(float64(cfg.Complexity())/20.0, 1.0),
		cfg.StabilityScore(),
		cfg.FreshnessScore(),
		clamp01(cfg.Priority),
		math.Min(float64(len(cfg.Layers[LayerCore]))/10.0, 1.0),
		math.Min(float64(len(cfg.Layers[LayerEssential]))/10.0, 1.0),
		math.Min(float64(len(cfg.Layers[LayerOptional]))/10.0, 1.0),
		math.Min(float64(len(cfg.Layers[LayerDev]))/10.0, 1.0),
		avgVersionAge(merged),
		prereleaseRatio(merged),
		majorSpread(merged),
		knownPackageRatio(merged),
		downloadScore(merged),
		pairwiseCompatRatio(merged),
		conflictRisk(merged),
		ratio(len(cfg.Layers[LayerDev]), total),
	)
	return features
}

func avgVersionAge(merged map[string]VersionInfo) float64 {
	if len(merged) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range merged {
		sum += math.Min(float64(v.DaysSincePublished())/365.0, 1.0)
	}
	return sum / float64(len(merged))
}

func prereleaseRatio(merged map[string]VersionInfo) float64 {
	count := 0
	for _, v := range merged {
		if v.IsPrerelease {
			count++
		}
	}
	return ratio(count, len(merged))
}

// majorSpread measures how far apart the major versions in the set are.
// Wide spreads correlate with mixing generations of an ecosystem.
func majorSpread(merged map[string]VersionInfo) float64 {
	minMajor, maxMajor := math.MaxInt64, -1
	for _, info := range merged {
		v, err := semver.NewVersion(info.Version)
		if err != nil {
			continue
		}
		major := int(v.Major())
		if major < minMajor {
			minMajor = major
		}
		if major > maxMajor {
			maxMajor = major
		}
	}
	if maxMajor < 0 || minMajor > maxMajor {
		return 0
	}
	return math.Min(float64(maxMajor-minMajor)/10.0, 1.0)
}

// knownPackageRatio is a popularity proxy: the share of packages that
// belong to the well-known framework and utility sets.
func knownPackageRatio(merged map[string]VersionInfo) float64 {
	count := 0
	for name := range merged {
		if _, ok := corePackages[name]; ok {
			count++
			continue
		}
		if _, ok := essentialPackages[name]; ok {
			count++
		}
	}
	return ratio(count, len(merged))
}

func downloadScore(merged map[string]VersionInfo) float64 {
	if len(merged) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range merged {
		if v.DownloadCount > 0 {
			sum += math.Min(math.Log10(float64(v.DownloadCount)+1)/7.0, 1.0)
		}
	}
	return sum / float64(len(merged))
}

func pairwiseCompatRatio(merged map[string]VersionInfo) float64 {
	names := sortedKeys(merged)
	if len(names) < 2 {
		return 1
	}
	pairs, compatible := 0, 0
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			pairs++
			if merged[names[i]].IsCompatibleWith(merged[names[j]]) {
				compatible++
			}
		}
	}
	return ratio(compatible, pairs)
}

func conflictRisk(merged map[string]VersionInfo) float64 {
	hits := 0
	for _, pair := range antagonisticPairs {
		if _, a := merged[pair[0]]; !a {
			continue
		}
		if _, b := merged[pair[1]]; b {
			hits++
		}
	}
	return math.Min(float64(hits)*0.25, 1.0)
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

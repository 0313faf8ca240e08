package targeting

import "github.com/modulr-studio/modulr/internal/model"

// CPM simulation constants, in dollars.
const (
	// BaseCPM is the floor every simulation starts from.
	BaseCPM = 2.0
	// MaxCPM caps the simulated price.
	MaxCPM = 10.0
)

// SimulateCPM computes a simulated base CPM for a campaign from the
// breadth of its targeting rules alone, independent of any episode
// inventory. Deterministic and total: nil filters price at BaseCPM.
//
// A MinBrandSafetyScore of exactly 0 contributes no bonus and is
// skipped entirely here, while the match evaluator still applies a
// zero floor as a real (always satisfied) criterion. The asymmetry is
// intentional and kept.
func SimulateCPM(filters *model.TargetingFilters) float64 {
	cpm := BaseCPM
	if filters == nil {
		return cpm
	}

	// +$0.50 per configured category: pricing scales with how broadly
	// the campaign targets, not with what inventory actually matches.
	cpm += float64(len(filters.IABCategories)) * categoryUplift

	// Flat bonus for caring about sentiment at all.
	if len(filters.Sentiment) > 0 {
		cpm += sentimentUplift
	}

	if filters.MinBrandSafetyScore != nil && *filters.MinBrandSafetyScore != 0 {
		cpm += safetyBonus(*filters.MinBrandSafetyScore)
	}

	if cpm > MaxCPM {
		cpm = MaxCPM
	}
	return cpm
}

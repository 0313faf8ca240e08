// Package targeting evaluates campaign targeting rules against episode
// inventory and simulates programmatic pricing. Everything here is a
// pure function over value structs: no I/O, no persistence, safe to
// call concurrently across campaigns.
package targeting

import "github.com/modulr-studio/modulr/internal/model"

// Per-criterion CPM uplift increments, in dollars.
const (
	categoryUplift  = 0.5
	sentimentUplift = 0.3

	// brandSafetyPivot is the score above which the safety bonus
	// starts accruing, at brandSafetyRate dollars per point.
	brandSafetyPivot = 7.0
	brandSafetyRate  = 0.1

	// MaxUplift caps the accumulated per-episode uplift.
	MaxUplift = 8.0
)

// Match evaluates every episode against the campaign's targeting
// filters and returns the matching ones, in input order, each with
// match metadata.
//
// Nil filters mean the campaign targets all inventory: every episode
// is returned with matchScore 0 and cpmUplift 0. Otherwise an episode
// must satisfy every configured criterion; criteria with no configured
// value neither score nor reject.
func Match(filters *model.TargetingFilters, episodes []model.Episode) []model.MatchedEpisode {
	if filters == nil {
		matched := make([]model.MatchedEpisode, 0, len(episodes))
		for _, ep := range episodes {
			matched = append(matched, model.MatchedEpisode{
				Episode:       ep,
				MatchMetadata: model.MatchMetadata{EpisodeID: ep.ID},
			})
		}
		return matched
	}

	matched := make([]model.MatchedEpisode, 0, len(episodes))
	for _, ep := range episodes {
		meta, ok := evaluate(filters, &ep)
		if !ok {
			continue
		}
		matched = append(matched, model.MatchedEpisode{Episode: ep, MatchMetadata: meta})
	}
	return matched
}

// evaluate applies the configured criteria to a single episode. The
// criteria accumulate score and uplift in a fixed order (category,
// sentiment, brand safety); conjunction makes the match outcome itself
// order-independent.
func evaluate(filters *model.TargetingFilters, ep *model.Episode) (model.MatchMetadata, bool) {
	meta := model.MatchMetadata{EpisodeID: ep.ID}
	matches := true

	if len(filters.IABCategories) > 0 {
		if hasCommonCategory(filters.IABCategories, ep.IABCategories()) {
			meta.MatchScore++
			meta.CPMUplift += categoryUplift
		} else {
			matches = false
		}
	}

	if len(filters.Sentiment) > 0 {
		if ep.Sentiment != nil && contains(filters.Sentiment, *ep.Sentiment) {
			meta.MatchScore++
			meta.CPMUplift += sentimentUplift
		} else {
			matches = false
		}
	}

	if filters.MinBrandSafetyScore != nil {
		// An unenriched episode scores 0 against the floor.
		score := 0.0
		if ep.BrandSafetyScore != nil {
			score = *ep.BrandSafetyScore
		}
		if score >= *filters.MinBrandSafetyScore {
			meta.MatchScore++
			meta.CPMUplift += safetyBonus(score)
		} else {
			matches = false
		}
	}

	if meta.CPMUplift > MaxUplift {
		meta.CPMUplift = MaxUplift
	}
	return meta, matches
}

// safetyBonus pays brandSafetyRate dollars per point above the pivot,
// and nothing at or below it.
func safetyBonus(score float64) float64 {
	bonus := (score - brandSafetyPivot) * brandSafetyRate
	if bonus < 0 {
		return 0
	}
	return bonus
}

// hasCommonCategory reports whether the two code lists intersect,
// using exact string equality.
func hasCommonCategory(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

package export

import (
	"fmt"

	"github.com/modulr-studio/modulr/internal/model"
)

// ExtAdBreak is an ad break as carried in the bid-request extension.
type ExtAdBreak struct {
	ID          string  `json:"id"`
	StartTime   float64 `json:"startTime"`
	MaxDuration float64 `json:"maxDuration"`
}

// ModulrExt is the contextual metadata object nested under ext.modulr
// in ORTB 2.5+ bid requests.
type ModulrExt struct {
	IABCategories      []string     `json:"iab_categories,omitempty"`
	Sentiment          string       `json:"sentiment,omitempty"`
	BrandSafetyScore   *float64     `json:"brand_safety_score,omitempty"`
	ContextualSegments []string     `json:"contextual_segments,omitempty"`
	Topics             []string     `json:"topics,omitempty"`
	Entities           []string     `json:"entities,omitempty"`
	AdBreaks           []ExtAdBreak `json:"adBreaks,omitempty"`
}

// PrebidExt is the full extension wrapper under its namespace key.
type PrebidExt struct {
	Ext struct {
		Modulr ModulrExt `json:"modulr"`
	} `json:"ext"`
}

// FormatPrebidExt nests an episode's metadata under the ext.modulr
// namespace. Ad breaks get a positional fallback ID and a default
// 30-second max duration when unset.
func FormatPrebidExt(ep *model.Episode) PrebidExt {
	var out PrebidExt
	m := &out.Ext.Modulr

	if meta := ep.Enriched; meta != nil {
		m.IABCategories = meta.IABCategories
		m.ContextualSegments = meta.ContextualSegments
		m.Topics = meta.Topics
		m.Entities = meta.Entities
	}
	if ep.Sentiment != nil && *ep.Sentiment != "" {
		m.Sentiment = *ep.Sentiment
	}
	if ep.BrandSafetyScore != nil {
		score := *ep.BrandSafetyScore
		m.BrandSafetyScore = &score
	}

	for _, br := range ep.AdBreaks {
		ext := ExtAdBreak{
			ID:          br.ID,
			StartTime:   br.StartTime,
			MaxDuration: br.MaxDuration,
		}
		if ext.ID == "" {
			ext.ID = fmt.Sprintf("break-%v", br.StartTime)
		}
		if ext.MaxDuration == 0 {
			ext.MaxDuration = 30
		}
		m.AdBreaks = append(m.AdBreaks, ext)
	}

	return out
}

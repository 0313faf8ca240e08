// Package export translates stored episode metadata into the wire
// shapes ad systems consume. Everything here is a pure, total function
// of an episode.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/modulr-studio/modulr/internal/model"
)

// maxKVLength is the ad server's limit on a key-value's value; longer
// lists are truncated with a trailing ellipsis marker.
const maxKVLength = 500

// GAMKeyValues formats an episode's metadata as flat ad-server
// key-value pairs. Absent fields produce no key.
func GAMKeyValues(ep *model.Episode) map[string]string {
	kvs := make(map[string]string)

	if meta := ep.Enriched; meta != nil {
		if len(meta.IABCategories) > 0 {
			kvs["modulr_iab_cat"] = strings.Join(meta.IABCategories, ",")
		}
		if len(meta.ContextualSegments) > 0 {
			kvs["modulr_segments"] = strings.Join(meta.ContextualSegments, ",")
		}
		if len(meta.Topics) > 0 {
			kvs["modulr_topics"] = truncate(strings.Join(meta.Topics, ","))
		}
		if len(meta.Entities) > 0 {
			kvs["modulr_entities"] = truncate(strings.Join(meta.Entities, ","))
		}
	}

	if ep.Sentiment != nil && *ep.Sentiment != "" {
		kvs["modulr_sentiment"] = *ep.Sentiment
	}
	if ep.BrandSafetyScore != nil {
		kvs["modulr_brand_safety"] = strconv.FormatFloat(*ep.BrandSafetyScore, 'f', -1, 64)
	}

	// Ad breaks flatten to indexed triplets: ad_0_start, ad_0_maxdur, ad_0_id, ad_1_start, ...
	for i, br := range ep.AdBreaks {
		kvs[fmt.Sprintf("ad_%d_start", i)] = strconv.FormatFloat(br.StartTime, 'f', -1, 64)
		kvs[fmt.Sprintf("ad_%d_maxdur", i)] = strconv.FormatFloat(br.MaxDuration, 'f', -1, 64)
		if br.ID != "" {
			kvs[fmt.Sprintf("ad_%d_id", i)] = br.ID
		}
	}

	return kvs
}

// GAMManualEntry renders the key-values as "key = value" lines for
// copy-paste into the ad server UI, sorted for stable output.
func GAMManualEntry(ep *model.Episode) string {
	kvs := GAMKeyValues(ep)
	keys := make([]string, 0, len(kvs))
	for k := range kvs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+" = "+kvs[k])
	}
	return strings.Join(lines, "\n")
}

func truncate(s string) string {
	if len(s) <= maxKVLength {
		return s
	}
	return s[:maxKVLength-3] + "..."
}

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/modulr-studio/modulr/internal/model"
)

// BulkPublisher is the trimmed publisher reference in bulk exports.
type BulkPublisher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BulkEpisode is the full JSON export shape for one episode, bundling
// both wire formats alongside the stored fields.
type BulkEpisode struct {
	ID               int64                   `json:"id"`
	Title            string                  `json:"title"`
	Publisher        BulkPublisher           `json:"publisher"`
	SourceRef        *string                 `json:"rssUrl"`
	Transcript       *string                 `json:"transcript"`
	Enriched         *model.EnrichedMetadata `json:"enrichedMetadata"`
	BrandSafetyScore *float64                `json:"brandSafetyScore"`
	Sentiment        *string                 `json:"sentiment"`
	ContextualScore  *float64                `json:"contextualScore"`
	AdBreaks         []model.AdBreak         `json:"adBreaks"`
	CreatedAt        string                  `json:"createdAt"`
	PrebidExt        PrebidExt               `json:"prebidExt"`
	GAMKVs           map[string]string       `json:"gamKVs"`
}

// BulkJSON builds the combined JSON export for a set of episodes.
func BulkJSON(episodes []model.Episode) []BulkEpisode {
	out := make([]BulkEpisode, 0, len(episodes))
	for i := range episodes {
		ep := &episodes[i]
		be := BulkEpisode{
			ID:               ep.ID,
			Title:            ep.Title,
			SourceRef:        ep.SourceRef,
			Transcript:       ep.Transcript,
			Enriched:         ep.Enriched,
			BrandSafetyScore: ep.BrandSafetyScore,
			Sentiment:        ep.Sentiment,
			ContextualScore:  ep.ContextualScore,
			AdBreaks:         ep.AdBreaks,
			CreatedAt:        ep.CreatedAt.UTC().Format(time.RFC3339),
			PrebidExt:        FormatPrebidExt(ep),
			GAMKVs:           GAMKeyValues(ep),
		}
		if be.AdBreaks == nil {
			be.AdBreaks = []model.AdBreak{}
		}
		if ep.Publisher != nil {
			be.Publisher = BulkPublisher{ID: ep.Publisher.ID, Name: ep.Publisher.Name}
		} else {
			be.Publisher = BulkPublisher{ID: ep.PublisherID}
		}
		out = append(out, be)
	}
	return out
}

var csvHeader = []string{
	"Episode ID", "Title", "Publisher", "IAB Categories", "Sentiment",
	"Brand Safety Score", "Contextual Segments", "Topics", "Entities", "Ad Breaks",
}

// BulkCSV renders the episodes as a CSV document.
func BulkCSV(episodes []model.Episode) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for i := range episodes {
		ep := &episodes[i]
		row := []string{
			fmt.Sprintf("%d", ep.ID),
			ep.Title,
			publisherName(ep),
			joinMeta(ep, func(m *model.EnrichedMetadata) []string { return m.IABCategories }),
			strOrEmpty(ep.Sentiment),
			floatOrEmpty(ep.BrandSafetyScore),
			joinMeta(ep, func(m *model.EnrichedMetadata) []string { return m.ContextualSegments }),
			joinMeta(ep, func(m *model.EnrichedMetadata) []string { return m.Topics }),
			joinMeta(ep, func(m *model.EnrichedMetadata) []string { return m.Entities }),
			adBreaksSummary(ep.AdBreaks),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func publisherName(ep *model.Episode) string {
	if ep.Publisher != nil {
		return ep.Publisher.Name
	}
	return ""
}

func joinMeta(ep *model.Episode, pick func(*model.EnrichedMetadata) []string) string {
	if ep.Enriched == nil {
		return ""
	}
	return strings.Join(pick(ep.Enriched), ",")
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%v", *f)
}

// adBreaksSummary renders breaks as "id:START s/DUR s" pairs joined
// with semicolons.
func adBreaksSummary(breaks []model.AdBreak) string {
	parts := make([]string, 0, len(breaks))
	for _, br := range breaks {
		id := br.ID
		if id == "" {
			id = "break"
		}
		parts = append(parts, fmt.Sprintf("%s:%vs/%vs", id, br.StartTime, br.MaxDuration))
	}
	return strings.Join(parts, "; ")
}

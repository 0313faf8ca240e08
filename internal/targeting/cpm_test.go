package targeting

import (
	"testing"

	"github.com/modulr-studio/modulr/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestSimulateCPMBase(t *testing.T) {
	assert.Equal(t, BaseCPM, SimulateCPM(nil))
	assert.Equal(t, BaseCPM, SimulateCPM(&model.TargetingFilters{}))
}

func TestSimulateCPMComponents(t *testing.T) {
	tests := []struct {
		name    string
		filters model.TargetingFilters
		want    float64
	}{
		{
			"one category",
			model.TargetingFilters{IABCategories: []string{"IAB1"}},
			2.5,
		},
		{
			"three categories",
			model.TargetingFilters{IABCategories: []string{"IAB1", "IAB2", "IAB3"}},
			3.5,
		},
		{
			"sentiment premium is flat regardless of count",
			model.TargetingFilters{Sentiment: []string{model.SentimentPositive, model.SentimentNeutral}},
			2.3,
		},
		{
			"safety floor above pivot",
			model.TargetingFilters{MinBrandSafetyScore: fptr(9)},
			2.2,
		},
		{
			"safety floor below pivot contributes nothing",
			model.TargetingFilters{MinBrandSafetyScore: fptr(5)},
			2.0,
		},
		{
			"zero safety floor is skipped entirely",
			model.TargetingFilters{MinBrandSafetyScore: fptr(0)},
			2.0,
		},
		{
			"combined",
			model.TargetingFilters{
				IABCategories:       []string{"IAB1", "IAB2"},
				Sentiment:           []string{model.SentimentPositive},
				MinBrandSafetyScore: fptr(8),
			},
			3.4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SimulateCPM(&tt.filters), 1e-9)
		})
	}
}

func TestSimulateCPMBounds(t *testing.T) {
	many := make([]string, 40)
	for i := range many {
		many[i] = "IAB1"
	}
	got := SimulateCPM(&model.TargetingFilters{
		IABCategories:       many,
		Sentiment:           []string{model.SentimentPositive},
		MinBrandSafetyScore: fptr(10),
	})
	assert.Equal(t, MaxCPM, got)
}

func TestSimulateCPMMonotonicInCategories(t *testing.T) {
	prev := SimulateCPM(&model.TargetingFilters{})
	cats := []string{}
	for i := 0; i < 20; i++ {
		cats = append(cats, "IAB1")
		next := SimulateCPM(&model.TargetingFilters{IABCategories: cats})
		assert.GreaterOrEqual(t, next, prev)
		prev = next
	}
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsight/insights-cli/internal/model"
)

func cleanedFrom(id, text string) model.CleanedReview {
	cleaned := CleanReviews([]model.Review{{ID: id, Text: text}})
	if len(cleaned) == 0 {
		return model.CleanedReview{ReviewID: id}
	}
	return cleaned[0]
}

func TestSentimentScore(t *testing.T) {
	s := NewSentimentScorer()

	tests := []struct {
		name   string
		text   string
		rating int
		want   model.SentimentLabel
	}{
		{"clearly positive", "love this great app works perfect", 5, model.SentimentPositive},
		{"clearly negative", "terrible app crashes all the time", 1, model.SentimentNegative},
		{"negation flips positive", "not good at all", 2, model.SentimentNegative},
		{"negation flips negative", "never crashes works great", 5, model.SentimentPositive},
		{"no signal high rating", "does the thing", 5, model.SentimentPositive},
		{"no signal low rating", "does the thing", 1, model.SentimentNegative},
		{"no signal mid rating", "does the thing", 3, model.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(cleanedFrom("r1", tt.text), tt.rating)
			assert.Equal(t, tt.want, got.Label)
		})
	}
}

func TestSentimentScore_Bounds(t *testing.T) {
	s := NewSentimentScorer()
	got := s.Score(cleanedFrom("r1", "love love love amazing perfect excellent"), 5)
	assert.LessOrEqual(t, got.Score, 1.0)
	assert.GreaterOrEqual(t, got.Score, -1.0)
}

func TestScoreAll_PairsByReviewID(t *testing.T) {
	reviews := []model.Review{
		{ID: "a", Text: "mediocre thing", Rating: 5},
		{ID: "b", Text: "mediocre thing", Rating: 1},
	}
	cleaned := CleanReviews(reviews)

	s := NewSentimentScorer()
	results := s.ScoreAll(cleaned, reviews)
	require.Len(t, results, 2)
	assert.Equal(t, model.SentimentPositive, results[0].Label)
	assert.Equal(t, model.SentimentNegative, results[1].Label)
}

func TestScoreAll_Deterministic(t *testing.T) {
	reviews := makeTestReviews(30)
	cleaned := CleanReviews(reviews)
	s := NewSentimentScorer()
	assert.Equal(t, s.ScoreAll(cleaned, reviews), s.ScoreAll(cleaned, reviews))
}

func TestSentimentScorer_CustomLexicon(t *testing.T) {
	s := NewSentimentScorerWithLexicon(map[string]float64{"meh": -1})
	got := s.Score(cleanedFrom("r1", "meh"), 5)
	assert.Equal(t, model.SentimentNegative, got.Label)
}

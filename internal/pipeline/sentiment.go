package pipeline

import (
	"github.com/appsight/insights-cli/internal/model"
)

// neutralBand is the score band inside which the star rating decides the label.
const neutralBand = 0.15

// negation words flip the sign of the next sentiment-bearing token.
var negations = map[string]bool{
	"not": true, "no": true, "never": true, "don't": true, "dont": true,
	"can't": true, "cant": true, "won't": true, "wont": true, "isn't": true,
	"isnt": true, "doesn't": true, "doesnt": true, "didn't": true, "didnt": true,
}

// defaultLexicon maps sentiment-bearing tokens to weights in [-1, 1].
var defaultLexicon = map[string]float64{
	"love": 1.0, "loved": 1.0, "great": 0.9, "excellent": 1.0, "amazing": 1.0,
	"awesome": 1.0, "perfect": 1.0, "fantastic": 1.0, "good": 0.6, "nice": 0.5,
	"helpful": 0.6, "useful": 0.6, "easy": 0.5, "smooth": 0.5, "fast": 0.4,
	"best": 0.9, "works": 0.4, "fun": 0.5, "recommend": 0.7, "beautiful": 0.7,
	"clean": 0.4, "intuitive": 0.6, "reliable": 0.6, "free": 0.2, "solid": 0.5,

	"hate": -1.0, "terrible": -1.0, "awful": -1.0, "horrible": -1.0,
	"worst": -1.0, "bad": -0.6, "poor": -0.6, "useless": -0.9, "broken": -0.8,
	"crash": -0.8, "crashes": -0.8, "crashing": -0.8, "freeze": -0.7,
	"freezes": -0.7, "bug": -0.6, "bugs": -0.6, "buggy": -0.7, "slow": -0.5,
	"laggy": -0.6, "lag": -0.5, "annoying": -0.6, "ads": -0.3, "spam": -0.6,
	"scam": -1.0, "expensive": -0.4, "confusing": -0.5, "ugly": -0.5,
	"disappointed": -0.7, "disappointing": -0.7, "refund": -0.6, "waste": -0.8,
	"unusable": -0.9, "stuck": -0.5, "error": -0.5, "errors": -0.5,
	"fails": -0.6, "failed": -0.6, "uninstall": -0.7, "uninstalled": -0.7,
}

// SentimentScorer assigns sentiment labels from a token lexicon with
// negation handling. Scoring is local and deterministic; the star rating
// breaks ties when the lexicon signal is weak.
type SentimentScorer struct {
	lexicon map[string]float64
}

// NewSentimentScorer creates a scorer with the built-in lexicon.
func NewSentimentScorer() *SentimentScorer {
	return &SentimentScorer{lexicon: defaultLexicon}
}

// NewSentimentScorerWithLexicon creates a scorer with a custom lexicon.
func NewSentimentScorerWithLexicon(lexicon map[string]float64) *SentimentScorer {
	return &SentimentScorer{lexicon: lexicon}
}

// Score labels a single cleaned review. rating is the original 1-5 stars.
func (s *SentimentScorer) Score(review model.CleanedReview, rating int) model.SentimentResult {
	var sum float64
	var hits int
	negate := false

	for _, tok := range review.Tokens {
		if negations[tok] {
			negate = true
			continue
		}
		w, ok := s.lexicon[tok]
		if !ok {
			continue
		}
		if negate {
			w = -w
			negate = false
		}
		sum += w
		hits++
	}

	var score float64
	if hits > 0 {
		score = sum / float64(hits)
	}
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}

	label := model.SentimentNeutral
	switch {
	case score > neutralBand:
		label = model.SentimentPositive
	case score < -neutralBand:
		label = model.SentimentNegative
	case rating >= 4:
		label = model.SentimentPositive
	case rating > 0 && rating <= 2:
		label = model.SentimentNegative
	}

	return model.SentimentResult{
		ReviewID: review.ReviewID,
		Label:    label,
		Score:    score,
	}
}

// ScoreAll labels every cleaned review, pairing each with its original
// rating by review ID.
func (s *SentimentScorer) ScoreAll(cleaned []model.CleanedReview, reviews []model.Review) []model.SentimentResult {
	ratings := make(map[string]int, len(reviews))
	for _, r := range reviews {
		ratings[r.ID] = r.Rating
	}

	out := make([]model.SentimentResult, len(cleaned))
	for i, c := range cleaned {
		out[i] = s.Score(c, ratings[c.ReviewID])
	}
	return out
}

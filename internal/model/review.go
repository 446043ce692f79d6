// Package model defines the data types shared across the analysis pipeline.
package model

import "time"

// Review is a single user review as fetched from the store listing.
// Reviews are immutable after ingestion.
type Review struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating"` // 1-5 stars
	Timestamp time.Time `json:"timestamp"`
	Locale    string    `json:"locale"`
}

// CleanedReview is the normalized form of a Review, one-to-one with it.
type CleanedReview struct {
	ReviewID string   `json:"review_id"`
	Text     string   `json:"text"`
	Tokens   []string `json:"tokens"`
}

// SentimentLabel classifies the overall tone of a review.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// SentimentResult holds the sentiment classification for one review.
type SentimentResult struct {
	ReviewID string         `json:"review_id"`
	Label    SentimentLabel `json:"label"`
	Score    float64        `json:"score"` // signed lexicon score, negative = negative tone
}

// CategorizedReview carries the model-assigned category for one review.
type CategorizedReview struct {
	ReviewID string `json:"review_id"`
	Category string `json:"category"`
}

// FetchSort selects the ordering used when fetching reviews.
type FetchSort string

const (
	FetchSortNewest  FetchSort = "newest"
	FetchSortRating  FetchSort = "rating"
	FetchSortHelpful FetchSort = "helpful"
)

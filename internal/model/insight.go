package model

// MetricKind distinguishes numeric from categorical summary values.
type MetricKind string

const (
	MetricKindNumeric     MetricKind = "numeric"
	MetricKindCategorical MetricKind = "categorical"
)

// Metric is a named summary value computed by the aggregation stage.
// Provenance lists the stage artifact IDs that contributed to it.
type Metric struct {
	Name       string     `json:"name"`
	Kind       MetricKind `json:"kind"`
	Value      float64    `json:"value,omitempty"`
	Label      string     `json:"label,omitempty"`
	Provenance []string   `json:"provenance,omitempty"`
}

// Finding is a data-backed observation about the review corpus.
type Finding struct {
	ID        string   `json:"id"`
	Rank      int      `json:"rank"`
	Priority  float64  `json:"priority"`
	Statement string   `json:"statement"`
	Metrics   []string `json:"metrics"` // names of supporting metrics
}

// Recommendation is an actionable suggestion derived from one or more findings.
type Recommendation struct {
	ID        string   `json:"id"`
	Rank      int      `json:"rank"`
	Priority  float64  `json:"priority"`
	Statement string   `json:"statement"`
	Findings  []string `json:"findings"`           // linked finding IDs
	Evidence  []string `json:"evidence,omitempty"` // sample review IDs
}

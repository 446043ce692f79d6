package model

import "time"

// StageArtifact is the immutable output of one pipeline stage, keyed by
// (stage id, input fingerprint). Payloads are JSON-encoded stage outputs.
type StageArtifact struct {
	StageID     string    `json:"stage_id"`
	Fingerprint string    `json:"fingerprint"`
	Payload     []byte    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClusterAssignment maps one review to its semantic cluster.
// Every review in a successful clustering stage has exactly one assignment.
type ClusterAssignment struct {
	ReviewID string  `json:"review_id"`
	Cluster  int     `json:"cluster"`
	Distance float64 `json:"distance"` // cosine distance to the cluster centroid
}

// ClusterLabel is the short human-readable name assigned to one cluster.
type ClusterLabel struct {
	Cluster int    `json:"cluster"`
	Name    string `json:"name"`
}

// Topic is a ranked group of co-occurring terms extracted from the corpus.
type Topic struct {
	ID    int      `json:"id"`
	Terms []string `json:"terms"` // ranked by weight, descending
}

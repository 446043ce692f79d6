package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusFetching    RunStatus = "fetching"
	RunStatusAnalyzing   RunStatus = "analyzing"
	RunStatusClustering  RunStatus = "clustering"
	RunStatusAggregating RunStatus = "aggregating"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// App identifies the application whose reviews are analyzed.
type App struct {
	PackageID string    `json:"package_id"`
	Locale    string    `json:"locale,omitempty"`
	Sort      FetchSort `json:"sort,omitempty"`
}

// Run represents a single analysis run for an app package.
type Run struct {
	ID        string     `json:"id"`
	App       App        `json:"app"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Reviews         int              `json:"reviews"`
	Metrics         []Metric         `json:"metrics"`
	Findings        []Finding        `json:"findings"`
	Recommendations []Recommendation `json:"recommendations"`
	Stages          []StageResult    `json:"stages"`
	TotalTokens     int              `json:"total_tokens"`
	TotalCost       float64          `json:"total_cost"`
	Error           string           `json:"error,omitempty"`
}

// StageStatus represents the state of one pipeline stage within a run.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusCached   StageStatus = "cached"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult holds the outcome of a single pipeline stage.
type StageResult struct {
	Stage       string         `json:"stage"`
	Status      StageStatus    `json:"status"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Duration    int64          `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RunStage is the persisted record of a stage execution.
type RunStage struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    StageStatus  `json:"status"`
	Result    *StageResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

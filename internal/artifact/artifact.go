// Package artifact provides the content-addressed stage cache and run
// records backing the analysis pipeline. Artifacts are keyed by
// (stage id, input fingerprint) and are immutable once written, which makes
// re-runs on identical input resolve entirely from cache and lets a crashed
// run resume without recomputation.
package artifact

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/appsight/insights-cli/internal/model"
)

// ErrMiss is returned by Get when no artifact exists for the key.
var ErrMiss = eris.New("artifact: cache miss")

// ErrCorrupt is returned when a stored payload fails the schema check on
// read. Callers treat it as a miss and recompute.
var ErrCorrupt = eris.New("artifact: corrupt payload")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	PackageID string          `json:"package_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store is the persistence interface for stage artifacts and run records.
type Store interface {
	// Artifacts. Put on an existing key is a no-op: artifacts are
	// immutable, and concurrent writers of the same fingerprint produce
	// identical payloads by the determinism contract on stage logic.
	GetArtifact(ctx context.Context, stageID, fingerprint string) ([]byte, error)
	PutArtifact(ctx context.Context, stageID, fingerprint string, payload []byte) error
	ListArtifacts(ctx context.Context, stageID string) ([]model.StageArtifact, error)
	DeleteArtifacts(ctx context.Context, stageID string) (int, error)

	// Runs.
	CreateRun(ctx context.Context, app model.App) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages.
	CreateStage(ctx context.Context, runID, name string) (*model.RunStage, error)
	CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsight/insights-cli/internal/artifact"
	"github.com/appsight/insights-cli/internal/model"
	"github.com/appsight/insights-cli/internal/resilience"
	"github.com/appsight/insights-cli/pkg/scraper"
)

var testApp = model.App{PackageID: "com.example.app", Locale: "en_US"}

func TestRun_FullGraph(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg, makeTestReviews(12))

	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	assert.Equal(t, 12, result.Reviews)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.Metrics)
	assert.NotEmpty(t, result.Findings)
	assert.Greater(t, result.TotalTokens, 0)
	assert.Greater(t, result.TotalCost, 0.0)

	for _, id := range []string{"fetch", "clean", "sentiment", "topics", "embed", "cluster", "categorize", "aggregate", "synthesize", "export"} {
		s := stageByID(t, result, id)
		assert.Equal(t, model.StageStatusComplete, s.Status, "stage %s", id)
		if id != "export" {
			assert.NotEmpty(t, s.Fingerprint, "stage %s", id)
		}
	}

	// The run record reflects the final state.
	runs, err := tp.store.ListRuns(context.Background(), artifact.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)

	// Exported files landed under the package directory.
	entries, err := os.ReadDir(filepath.Join(cfg.Export.Dir, testApp.PackageID))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRun_SecondRunResolvesFromCache(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg, makeTestReviews(8))

	_, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	scraperCalls := tp.scraper.callCount()
	embedCalls := tp.embedder.callCount()
	llmCalls := tp.llm.callCount()

	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	assert.Equal(t, scraperCalls, tp.scraper.callCount(), "second run must not refetch")
	assert.Equal(t, embedCalls, tp.embedder.callCount(), "second run must not re-embed")
	assert.Equal(t, llmCalls, tp.llm.callCount(), "second run must not call the model")

	for _, s := range result.Stages {
		if s.Stage == "export" {
			assert.Equal(t, model.StageStatusComplete, s.Status)
			continue
		}
		assert.Equal(t, model.StageStatusCached, s.Status, "stage %s", s.Stage)
	}
}

func TestRun_ConfigChangeInvalidatesDownstream(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg, makeTestReviews(8))

	_, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	// A different cluster count reruns cluster but leaves fetch cached.
	cfg.Pipeline.ClusterCount = 3
	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	assert.Equal(t, model.StageStatusCached, stageByID(t, result, "fetch").Status)
	assert.Equal(t, model.StageStatusCached, stageByID(t, result, "embed").Status)
	assert.Equal(t, model.StageStatusComplete, stageByID(t, result, "cluster").Status)
	assert.Equal(t, model.StageStatusComplete, stageByID(t, result, "aggregate").Status)
	assert.Equal(t, 1, tp.scraper.callCount())
}

func TestRun_DimensionMismatchDegradesToSentiment(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg, makeTestReviews(9))
	dims := 0
	tp.embedder.vectorFor = func(text string) []float64 {
		dims++
		v := make([]float64, 2+dims%2)
		v[0] = 1
		return v
	}

	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	cluster := stageByID(t, result, "cluster")
	assert.Equal(t, model.StageStatusFailed, cluster.Status)
	assert.Contains(t, cluster.Error, "dimension")

	// Sentiment analysis still yields findings.
	assert.Equal(t, model.StageStatusComplete, stageByID(t, result, "sentiment").Status)
	assert.Equal(t, model.StageStatusComplete, stageByID(t, result, "aggregate").Status)
	assert.NotEmpty(t, result.Metrics)
	assert.Empty(t, result.Error)

	for _, m := range result.Metrics {
		assert.NotContains(t, m.Name, "cluster_rank", "no cluster metrics without clustering")
	}
}

func TestRun_DisabledStagesAreSkipped(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.EnabledStages = []string{"fetch", "clean", "sentiment", "aggregate", "synthesize"}
	tp := newTestPipeline(t, cfg, makeTestReviews(6))

	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	assert.Equal(t, model.StageStatusSkipped, stageByID(t, result, "embed").Status)
	assert.Equal(t, model.StageStatusSkipped, stageByID(t, result, "cluster").Status)
	assert.Equal(t, model.StageStatusSkipped, stageByID(t, result, "categorize").Status)
	assert.Equal(t, model.StageStatusComplete, stageByID(t, result, "aggregate").Status)
	assert.NotEmpty(t, result.Metrics)

	assert.Zero(t, tp.embedder.callCount())
	assert.Zero(t, tp.llm.callCount())
}

func TestRun_UnknownEnabledStageIsConfigError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.EnabledStages = []string{"fetch", "clean", "sentiment", "sentimennt"}
	tp := newTestPipeline(t, cfg, makeTestReviews(3))

	_, err := tp.p.Run(context.Background(), testApp)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	// Config validation happens before any run record or external call.
	runs, listErr := tp.store.ListRuns(context.Background(), artifact.RunFilter{})
	require.NoError(t, listErr)
	assert.Empty(t, runs)
	assert.Zero(t, tp.scraper.callCount())
}

func TestRun_MandatoryStageCannotBeDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.EnabledStages = []string{"fetch", "clean"}
	tp := newTestPipeline(t, cfg, makeTestReviews(3))

	_, err := tp.p.Run(context.Background(), testApp)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "sentiment")
}

func TestRun_FetchFailureFailsRun(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg, nil)
	tp.scraper.err = resilience.NewPermanentError(eris.New("app not found"), 404)

	result, err := tp.p.Run(context.Background(), testApp)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.Error, "fetch")

	runs, listErr := tp.store.ListRuns(context.Background(), artifact.RunFilter{})
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)

	// Only fetch ran; nothing downstream was attempted.
	assert.Equal(t, model.StageStatusFailed, stageByID(t, result, "fetch").Status)
	assert.Len(t, result.Stages, 1)
}

func TestRun_TransientFetchFailureIsRetried(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg, nil)

	attempts := 0
	reviews := makeTestReviews(4)
	tp.p.scraper = scraperFunc(func(ctx context.Context) ([]model.Review, error) {
		attempts++
		if attempts == 1 {
			return nil, resilience.NewTransientError(eris.New("throttled"), 429)
		}
		return reviews, nil
	})

	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 4, result.Reviews)
}

func TestRun_ZeroReviewsCompletes(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg, nil)

	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Reviews)
	assert.Empty(t, result.Error)
	assert.Equal(t, model.StageStatusComplete, stageByID(t, result, "fetch").Status)
	// Stages that need review data are skipped, not failed.
	assert.Equal(t, model.StageStatusSkipped, stageByID(t, result, "embed").Status)
	assert.Equal(t, model.StageStatusSkipped, stageByID(t, result, "topics").Status)
}

func TestRun_CorruptArtifactIsRecomputed(t *testing.T) {
	cfg := testConfig(t)
	tp := newTestPipeline(t, cfg, makeTestReviews(6))

	_, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)
	require.Equal(t, 1, tp.scraper.callCount())

	// Simulate on-disk corruption of the fetch artifact.
	corrupting := &corruptingStore{Store: tp.store, stageID: "fetch"}
	tp.p.store = corrupting

	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	assert.Equal(t, model.StageStatusComplete, stageByID(t, result, "fetch").Status)
	assert.Equal(t, 2, tp.scraper.callCount(), "corrupt artifact must be recomputed")
	// Downstream artifacts were intact and stay cached.
	assert.Equal(t, model.StageStatusCached, stageByID(t, result, "clean").Status)
}

// scraperFunc adapts a func to the scraper client interface for one-off tests.
type scraperFunc func(ctx context.Context) ([]model.Review, error)

func (f scraperFunc) FetchReviews(ctx context.Context, _ scraper.FetchRequest) ([]model.Review, error) {
	return f(ctx)
}

// corruptingStore reports every artifact read for one stage as corrupt.
type corruptingStore struct {
	artifact.Store
	stageID string
}

func (s *corruptingStore) GetArtifact(ctx context.Context, stageID, fingerprint string) ([]byte, error) {
	if stageID == s.stageID {
		return nil, artifact.ErrCorrupt
	}
	return s.Store.GetArtifact(ctx, stageID, fingerprint)
}

func TestRun_EmbedOutageOpensBreaker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Batch.MaxRetries = 1
	cfg.Batch.BreakerThreshold = 1
	tp := newTestPipeline(t, cfg, makeTestReviews(6))
	tp.embedder.err = resilience.NewTransientError(eris.New("service unavailable"), 503)

	result, err := tp.p.Run(context.Background(), testApp)
	require.NoError(t, err)

	assert.Equal(t, model.StageStatusFailed, stageByID(t, result, "embed").Status)
	assert.Equal(t, model.StageStatusSkipped, stageByID(t, result, "cluster").Status)
	assert.Equal(t, model.StageStatusComplete, stageByID(t, result, "categorize").Status)

	// Each service has its own breaker: the embedding outage opens one
	// circuit and leaves the model service untouched.
	assert.Equal(t, resilience.CircuitOpen, tp.p.breakers.Get("embeddings").State())
	assert.Equal(t, resilience.CircuitClosed, tp.p.breakers.Get("anthropic").State())
}

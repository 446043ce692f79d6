package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/appsight/insights-cli/internal/artifact"
	"github.com/appsight/insights-cli/internal/batch"
	"github.com/appsight/insights-cli/internal/config"
	"github.com/appsight/insights-cli/internal/cost"
	"github.com/appsight/insights-cli/internal/model"
	"github.com/appsight/insights-cli/internal/report"
	"github.com/appsight/insights-cli/internal/resilience"
	"github.com/appsight/insights-cli/pkg/embed"
	"github.com/appsight/insights-cli/pkg/llm"
	"github.com/appsight/insights-cli/pkg/scraper"
)

// Pipeline runs the review analysis stage graph for one app.
type Pipeline struct {
	cfg      *config.Config
	store    artifact.Store
	scraper  scraper.Client
	embedder embed.Client
	llm      llm.Client
	costCalc *cost.Calculator
	rules    []Rule
	breakers *resilience.ServiceBreakers
}

// New creates a Pipeline with all dependencies. rules may be nil to use the
// compiled-in decision table.
func New(
	cfg *config.Config,
	st artifact.Store,
	scraperClient scraper.Client,
	embedClient embed.Client,
	llmClient llm.Client,
	rules []Rule,
) *Pipeline {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		scraper:  scraperClient,
		embedder: embedClient,
		llm:      llmClient,
		costCalc: cost.NewCalculator(cost.DefaultRates()),
		rules:    rules,
		breakers: resilience.NewServiceBreakers(
			resilience.FromCircuitConfig(cfg.Batch.BreakerThreshold, cfg.Batch.BreakerResetSecs),
		),
	}
}

// runState accumulates stage outputs over one run.
type runState struct {
	app model.App

	reviews     []model.Review
	cleaned     []model.CleanedReview
	sentiments  []model.SentimentResult
	topics      []model.Topic
	vectors     [][]float64
	clusterK    int
	assignments []model.ClusterAssignment
	labels      []model.ClusterLabel
	categorized []model.CategorizedReview
	agg         *AggregateOutput
	synth       *SynthesizeOutput

	stages       []model.StageResult
	fingerprints map[string]string

	usage usageState
}

// usageState accumulates billable usage across stages. Embedding tokens are
// added from concurrent batch callbacks.
type usageState struct {
	llm usageTracker

	mu             sync.Mutex
	embedTokens    int
	reviewsFetched int
}

func (u *usageState) addEmbedTokens(n int) {
	u.mu.Lock()
	u.embedTokens += n
	u.mu.Unlock()
}

// Stage artifact payloads. Every stage's durable output is one of these,
// JSON-encoded.
type fetchArtifact struct {
	Reviews []model.Review `json:"reviews"`
}

type cleanArtifact struct {
	Cleaned []model.CleanedReview `json:"cleaned"`
}

type sentimentArtifact struct {
	Results []model.SentimentResult `json:"results"`
}

type topicsArtifact struct {
	Topics []model.Topic `json:"topics"`
}

type embedArtifact struct {
	Vectors [][]float64 `json:"vectors"`
}

type clusterArtifact struct {
	K           int                       `json:"k"`
	Assignments []model.ClusterAssignment `json:"assignments"`
	Labels      []model.ClusterLabel      `json:"labels"`
}

type categorizeArtifact struct {
	Reviews []model.CategorizedReview `json:"reviews"`
}

// statusFor maps a stage about to start to the coarse run status.
var statusFor = map[string]model.RunStatus{
	"fetch":     model.RunStatusFetching,
	"clean":     model.RunStatusAnalyzing,
	"cluster":   model.RunStatusClustering,
	"aggregate": model.RunStatusAggregating,
}

// Run executes the stage graph for one app and persists the result.
func (p *Pipeline) Run(ctx context.Context, app model.App) (*model.RunResult, error) {
	// Configuration problems surface before the run record exists and
	// before any external call.
	ordered, err := orderStages(p.stages())
	if err != nil {
		return nil, err
	}
	enabledNames := p.cfg.Pipeline.EnabledStages
	if len(enabledNames) == 0 {
		enabledNames = config.AllStages
	}
	enabled, err := enabledSet(ordered, enabledNames)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("package", app.PackageID), zap.String("locale", app.Locale))
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx, app)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	st := &runState{app: app, fingerprints: make(map[string]string)}
	result := &model.RunResult{}

	for _, stage := range ordered {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Error = ctxErr.Error()
			break
		}
		if status, ok := statusFor[stage.ID]; ok {
			setStatus(status)
		}

		res := p.runStage(ctx, run.ID, stage, st, enabled)
		result.Stages = append(result.Stages, res)
		st.stages = result.Stages

		if res.Status == model.StageStatusFailed && stage.Mandatory {
			result.Error = res.Error
			break
		}
	}

	// Finalize.
	result.Reviews = len(st.reviews)
	if st.agg != nil {
		result.Metrics = st.agg.Metrics
	}
	if st.synth != nil {
		result.Findings = st.synth.Findings
		result.Recommendations = st.synth.Recommendations
	}

	usage := st.usage.llm.total()
	result.TotalTokens = int(usage.Total()) + st.usage.embedTokens
	result.TotalCost = p.costCalc.Claude(
		p.cfg.Anthropic.HaikuModel,
		int(usage.InputTokens), int(usage.OutputTokens),
		int(usage.CacheCreationInputTokens), int(usage.CacheReadInputTokens),
	) + p.costCalc.Embedding(st.usage.embedTokens) +
		p.costCalc.Reviews(st.usage.reviewsFetched)

	if saveErr := p.store.UpdateRunResult(ctx, run.ID, result); saveErr != nil {
		log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
	}

	if result.Error != "" {
		log.Error("pipeline: run failed", zap.String("error", result.Error))
		return result, eris.New("pipeline: run failed: " + result.Error)
	}

	log.Info("pipeline: run complete",
		zap.Int("reviews", result.Reviews),
		zap.Int("metrics", len(result.Metrics)),
		zap.Int("findings", len(result.Findings)),
		zap.Int("tokens", result.TotalTokens),
		zap.Float64("cost_usd", result.TotalCost),
	)
	return result, nil
}

// runStage executes one stage with artifact caching and degradation rules.
func (p *Pipeline) runStage(ctx context.Context, runID string, stage Stage, st *runState, enabled map[string]bool) model.StageResult {
	log := zap.L().With(zap.String("run_id", runID), zap.String("stage", stage.ID))

	rec, recErr := p.store.CreateStage(ctx, runID, stage.ID)
	if recErr != nil {
		log.Warn("pipeline: failed to create stage record", zap.Error(recErr))
	}

	start := time.Now()
	res := p.executeStage(ctx, stage, st, enabled, log)
	res.Stage = stage.ID
	res.Duration = time.Since(start).Milliseconds()

	switch res.Status {
	case model.StageStatusFailed:
		log.Error("pipeline: stage failed",
			zap.Int64("duration_ms", res.Duration),
			zap.String("fingerprint", res.Fingerprint),
			zap.String("error", res.Error),
		)
	case model.StageStatusSkipped:
		log.Info("pipeline: stage skipped", zap.Any("metadata", res.Metadata))
	default:
		log.Info("pipeline: stage done",
			zap.String("status", string(res.Status)),
			zap.Int64("duration_ms", res.Duration),
		)
	}

	if rec != nil {
		if err := p.store.CompleteStage(ctx, rec.ID, &res); err != nil {
			log.Warn("pipeline: failed to complete stage record", zap.Error(err))
		}
	}
	return res
}

func (p *Pipeline) executeStage(ctx context.Context, stage Stage, st *runState, enabled map[string]bool, log *zap.Logger) model.StageResult {
	res := model.StageResult{Stage: stage.ID}

	if !enabled[stage.ID] {
		res.Status = model.StageStatusSkipped
		res.Metadata = map[string]any{"reason": "disabled"}
		return res
	}
	if stage.Ready != nil && !stage.Ready(st) {
		res.Status = model.StageStatusSkipped
		res.Metadata = map[string]any{"reason": "missing upstream data"}
		return res
	}

	var cfgFrag any
	if stage.Config != nil {
		cfgFrag = stage.Config(p, st)
	}
	upstream := make([]string, len(stage.Deps))
	for i, dep := range stage.Deps {
		upstream[i] = dep + "=" + st.fingerprints[dep]
	}
	fp, err := artifact.Fingerprint(stage.ID, cfgFrag, upstream...)
	if err != nil {
		res.Status = model.StageStatusFailed
		res.Error = eris.Wrapf(err, "pipeline: stage %s fingerprint", stage.ID).Error()
		return res
	}
	res.Fingerprint = fp

	if !stage.NoCache {
		payload, getErr := p.store.GetArtifact(ctx, stage.ID, fp)
		switch {
		case getErr == nil:
			if decErr := stage.Decode(payload, st); decErr == nil {
				st.fingerprints[stage.ID] = fp
				res.Status = model.StageStatusCached
				return res
			}
			// Undecodable payload is as good as corrupt: recompute.
			log.Warn("pipeline: cached artifact undecodable, recomputing", zap.String("fingerprint", fp))
		case errors.Is(getErr, artifact.ErrCorrupt):
			log.Warn("pipeline: cached artifact corrupt, recomputing", zap.String("fingerprint", fp))
		case errors.Is(getErr, artifact.ErrMiss):
		default:
			log.Warn("pipeline: artifact lookup failed, recomputing", zap.Error(getErr))
		}
	}

	payload, meta, runErr := stage.Run(ctx, p, st)
	if runErr != nil {
		res.Status = model.StageStatusFailed
		res.Error = eris.Wrapf(runErr, "pipeline: stage %s (fingerprint %s)", stage.ID, fp).Error()
		res.Metadata = meta
		return res
	}

	if !stage.NoCache && payload != nil {
		data, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			res.Status = model.StageStatusFailed
			res.Error = eris.Wrapf(marshalErr, "pipeline: stage %s marshal artifact", stage.ID).Error()
			return res
		}
		if putErr := p.store.PutArtifact(ctx, stage.ID, fp, data); putErr != nil {
			// The stage output is still valid in memory; the rerun will
			// recompute it.
			log.Warn("pipeline: failed to persist artifact", zap.Error(putErr))
		}
	}

	st.fingerprints[stage.ID] = fp
	res.Status = model.StageStatusComplete
	res.Metadata = meta
	return res
}

// stages returns the stage registry in declaration order.
func (p *Pipeline) stages() []Stage {
	return []Stage{
		{
			ID:        "fetch",
			Mandatory: true,
			Config: func(p *Pipeline, st *runState) any {
				return scraper.FetchRequest{
					PackageID: st.app.PackageID,
					Locale:    st.app.Locale,
					Sort:      st.app.Sort,
					Count:     p.cfg.Pipeline.ReviewCount,
				}
			},
			Run:    runFetch,
			Decode: decodeInto(func(a fetchArtifact, st *runState) { st.reviews = a.Reviews }),
		},
		{
			ID:        "clean",
			Deps:      []string{"fetch"},
			Mandatory: true,
			Run: func(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
				st.cleaned = CleanReviews(st.reviews)
				meta := map[string]any{
					"input":   len(st.reviews),
					"cleaned": len(st.cleaned),
					"dropped": len(st.reviews) - len(st.cleaned),
				}
				return cleanArtifact{Cleaned: st.cleaned}, meta, nil
			},
			Decode: decodeInto(func(a cleanArtifact, st *runState) { st.cleaned = a.Cleaned }),
		},
		{
			ID:        "sentiment",
			Deps:      []string{"clean"},
			Mandatory: true,
			Run: func(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
				scorer := NewSentimentScorer()
				st.sentiments = scorer.ScoreAll(st.cleaned, st.reviews)
				return sentimentArtifact{Results: st.sentiments},
					map[string]any{"scored": len(st.sentiments)}, nil
			},
			Decode: decodeInto(func(a sentimentArtifact, st *runState) { st.sentiments = a.Results }),
		},
		{
			ID:    "topics",
			Deps:  []string{"clean"},
			Ready: func(st *runState) bool { return len(st.cleaned) > 0 },
			Config: func(p *Pipeline, st *runState) any {
				return map[string]int{"topic_count": p.cfg.Pipeline.TopicCount}
			},
			Run: func(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
				st.topics = ExtractTopics(st.cleaned, p.cfg.Pipeline.TopicCount)
				return topicsArtifact{Topics: st.topics},
					map[string]any{"topics": len(st.topics)}, nil
			},
			Decode: decodeInto(func(a topicsArtifact, st *runState) { st.topics = a.Topics }),
		},
		{
			ID:    "embed",
			Deps:  []string{"clean"},
			Ready: func(st *runState) bool { return len(st.cleaned) > 0 },
			Config: func(p *Pipeline, st *runState) any {
				return map[string]any{"model": p.cfg.Embedding.Model, "batch_size": p.cfg.Batch.Size}
			},
			Run:    runEmbed,
			Decode: decodeInto(func(a embedArtifact, st *runState) { st.vectors = a.Vectors }),
		},
		{
			ID:    "cluster",
			Deps:  []string{"embed"},
			Ready: func(st *runState) bool { return len(st.vectors) > 0 },
			Config: func(p *Pipeline, st *runState) any {
				return map[string]any{
					"k":               p.cfg.Pipeline.ClusterCount,
					"seed":            p.cfg.Pipeline.Seed,
					"representatives": p.cfg.Pipeline.Representatives,
				}
			},
			Run: runCluster,
			Decode: decodeInto(func(a clusterArtifact, st *runState) {
				st.clusterK = a.K
				st.assignments = a.Assignments
				st.labels = a.Labels
			}),
		},
		{
			ID:    "categorize",
			Deps:  []string{"clean"},
			Ready: func(st *runState) bool { return len(st.cleaned) > 0 },
			Config: func(p *Pipeline, st *runState) any {
				return map[string]any{
					"model":      p.cfg.Anthropic.HaikuModel,
					"categories": Categories,
					"batch_size": p.cfg.Batch.Size,
				}
			},
			Run:    runCategorize,
			Decode: decodeInto(func(a categorizeArtifact, st *runState) { st.categorized = a.Reviews }),
		},
		{
			ID:    "aggregate",
			Deps:  []string{"fetch", "clean", "sentiment", "topics", "cluster", "categorize"},
			Ready: func(st *runState) bool { return st.sentiments != nil },
			Config: func(p *Pipeline, st *runState) any {
				return map[string]any{"keywords": p.cfg.Pipeline.KeywordDictionary}
			},
			Run: func(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
				st.agg = Aggregate(AggregateInput{
					Reviews:     st.reviews,
					Cleaned:     st.cleaned,
					Sentiments:  st.sentiments,
					Topics:      st.topics,
					Assignments: st.assignments,
					Labels:      st.labels,
					Categorized: st.categorized,
					Keywords:    p.cfg.Pipeline.KeywordDictionary,
					Provenance:  st.fingerprints,
				})
				return st.agg, map[string]any{"metrics": len(st.agg.Metrics)}, nil
			},
			Decode: decodeInto(func(a AggregateOutput, st *runState) { st.agg = &a }),
		},
		{
			ID:    "synthesize",
			Deps:  []string{"aggregate"},
			Ready: func(st *runState) bool { return st.agg != nil },
			Config: func(p *Pipeline, st *runState) any {
				return map[string]any{
					"rules":               p.rules,
					"max_findings":        p.cfg.Pipeline.MaxFindings,
					"max_recommendations": p.cfg.Pipeline.MaxRecommendations,
					"max_evidence":        p.cfg.Pipeline.MaxEvidence,
				}
			},
			Run: func(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
				st.synth = Synthesize(st.agg, p.rules, SynthesizeConfig{
					MaxFindings:        p.cfg.Pipeline.MaxFindings,
					MaxRecommendations: p.cfg.Pipeline.MaxRecommendations,
					MaxEvidence:        p.cfg.Pipeline.MaxEvidence,
				})
				meta := map[string]any{
					"findings":        len(st.synth.Findings),
					"recommendations": len(st.synth.Recommendations),
				}
				return st.synth, meta, nil
			},
			Decode: decodeInto(func(a SynthesizeOutput, st *runState) { st.synth = &a }),
		},
		{
			ID:      "export",
			Deps:    []string{"aggregate", "synthesize"},
			NoCache: true,
			Run: func(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
				files, err := report.WriteRun(p.cfg.Export.Dir, report.RunData{
					App:             st.app,
					Reviews:         st.reviews,
					Cleaned:         st.cleaned,
					Sentiments:      st.sentiments,
					Topics:          st.topics,
					Assignments:     st.assignments,
					Labels:          st.labels,
					Categorized:     st.categorized,
					Metrics:         metricsOrNil(st.agg),
					Findings:        findingsOrNil(st.synth),
					Recommendations: recommendationsOrNil(st.synth),
					Stages:          st.stages,
				})
				if err != nil {
					return nil, nil, err
				}
				return nil, map[string]any{"files": len(files)}, nil
			},
		},
	}
}

// decodeInto adapts a typed artifact setter into a Stage.Decode func.
func decodeInto[T any](set func(T, *runState)) func([]byte, *runState) error {
	return func(payload []byte, st *runState) error {
		var a T
		if err := json.Unmarshal(payload, &a); err != nil {
			return err
		}
		set(a, st)
		return nil
	}
}

func metricsOrNil(agg *AggregateOutput) []model.Metric {
	if agg == nil {
		return nil
	}
	return agg.Metrics
}

func findingsOrNil(s *SynthesizeOutput) []model.Finding {
	if s == nil {
		return nil
	}
	return s.Findings
}

func recommendationsOrNil(s *SynthesizeOutput) []model.Recommendation {
	if s == nil {
		return nil
	}
	return s.Recommendations
}

// batchConfig maps the configured batch settings onto the executor. Each
// external service gets its own circuit breaker so an outage in one does
// not reject calls to the others.
func (p *Pipeline) batchConfig(service string) batch.Config {
	cfg := batch.DefaultConfig()
	if p.cfg.Batch.Size > 0 {
		cfg.BatchSize = p.cfg.Batch.Size
	}
	if p.cfg.Batch.Concurrency > 0 {
		cfg.Concurrency = p.cfg.Batch.Concurrency
	}
	if p.cfg.Batch.CallTimeoutSecs > 0 {
		cfg.CallTimeout = time.Duration(p.cfg.Batch.CallTimeoutSecs) * time.Second
	}
	cfg.MaxPayloadBytes = int(p.cfg.Batch.MaxPayloadBytes)
	cfg.Retry = p.retryConfig()
	cfg.Breaker = p.breakers.Get(service)
	return cfg
}

func (p *Pipeline) retryConfig() resilience.RetryConfig {
	return resilience.FromRetryConfig(p.cfg.Batch.MaxRetries, p.cfg.Batch.BackoffBaseMS, 0, 0, -1)
}

func runFetch(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
	req := scraper.FetchRequest{
		PackageID: st.app.PackageID,
		Locale:    st.app.Locale,
		Sort:      st.app.Sort,
		Count:     p.cfg.Pipeline.ReviewCount,
	}
	retry := p.retryConfig()
	retry.OnRetry = resilience.RetryLogger("reviews", "fetch")

	reviews, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]model.Review, error) {
		return p.scraper.FetchReviews(ctx, req)
	})
	if err != nil {
		return nil, nil, err
	}

	st.reviews = reviews
	st.usage.reviewsFetched += len(reviews)
	return fetchArtifact{Reviews: reviews}, map[string]any{"reviews": len(reviews)}, nil
}

func runEmbed(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
	texts := make([]string, len(st.cleaned))
	for i, c := range st.cleaned {
		texts[i] = c.Text
	}

	exec := batch.New(p.batchConfig("embeddings"), func(ctx context.Context, chunk []string) ([][]float64, error) {
		resp, err := p.embedder.Embed(ctx, chunk)
		if err != nil {
			return nil, err
		}
		st.usage.addEmbedTokens(resp.Tokens)
		return resp.Vectors, nil
	})
	exec.SizeOf = func(text string) int { return len(text) }

	res, err := exec.Execute(ctx, texts)
	if err != nil {
		return nil, nil, err
	}

	st.vectors = res.Values
	meta := map[string]any{"vectors": len(res.Values), "batches": len(res.Batches)}
	return embedArtifact{Vectors: st.vectors}, meta, nil
}

func runCluster(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
	requested := p.cfg.Pipeline.ClusterCount
	km, err := KMeans(st.vectors, requested, p.cfg.Pipeline.Seed)
	if err != nil {
		return nil, nil, err
	}

	assignments := make([]model.ClusterAssignment, len(km.Assignments))
	for i, c := range km.Assignments {
		assignments[i] = model.ClusterAssignment{
			ReviewID: st.cleaned[i].ReviewID,
			Cluster:  c,
			Distance: cosineDistance(st.vectors[i], km.Centroids[c]),
		}
	}

	reps := Representatives(km, st.vectors, p.cfg.Pipeline.Representatives)
	labels, err := p.labelClusters(ctx, st, reps)
	if err != nil {
		// Assignments are still useful without names.
		zap.L().Warn("pipeline: cluster labeling failed, using generic names", zap.Error(err))
		labels = make([]model.ClusterLabel, km.K)
		for i := range labels {
			labels[i] = model.ClusterLabel{Cluster: i, Name: fmt.Sprintf("cluster %d", i)}
		}
	}

	st.clusterK = km.K
	st.assignments = assignments
	st.labels = labels

	meta := map[string]any{"k": km.K}
	if km.K != requested {
		meta["requested_k"] = requested
	}
	return clusterArtifact{K: km.K, Assignments: assignments, Labels: labels}, meta, nil
}

// labelClusters names each cluster from its representative reviews, one
// model call per cluster.
func (p *Pipeline) labelClusters(ctx context.Context, st *runState, reps [][]int) ([]model.ClusterLabel, error) {
	cfg := p.batchConfig("anthropic")
	cfg.BatchSize = 1
	cfg.MaxPayloadBytes = 0

	exec := batch.New(cfg, func(ctx context.Context, chunk []int) ([]string, error) {
		ci := chunk[0]
		repReviews := make([]model.CleanedReview, 0, len(reps[ci]))
		for _, idx := range reps[ci] {
			repReviews = append(repReviews, st.cleaned[idx])
		}
		name, err := p.labelCluster(ctx, repReviews, &st.usage.llm)
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	})

	indices := make([]int, len(reps))
	for i := range indices {
		indices[i] = i
	}
	res, err := exec.Execute(ctx, indices)
	if err != nil {
		return nil, err
	}

	labels := make([]model.ClusterLabel, len(reps))
	for i, name := range res.Values {
		labels[i] = model.ClusterLabel{Cluster: i, Name: name}
	}
	return labels, nil
}

func runCategorize(ctx context.Context, p *Pipeline, st *runState) (any, map[string]any, error) {
	exec := batch.New(p.batchConfig("anthropic"), func(ctx context.Context, chunk []model.CleanedReview) ([]model.CategorizedReview, error) {
		return p.categorizeBatch(ctx, chunk, &st.usage.llm)
	})
	exec.SizeOf = func(r model.CleanedReview) int { return len(r.Text) }

	res, err := exec.Execute(ctx, st.cleaned)
	if err != nil {
		return nil, nil, err
	}

	st.categorized = res.Values
	meta := map[string]any{"reviews": len(res.Values), "batches": len(res.Batches)}
	return categorizeArtifact{Reviews: st.categorized}, meta, nil
}

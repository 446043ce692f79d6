package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appsight/insights-cli/internal/artifact"
	"github.com/appsight/insights-cli/internal/config"
	"github.com/appsight/insights-cli/internal/model"
	"github.com/appsight/insights-cli/pkg/embed"
	"github.com/appsight/insights-cli/pkg/llm"
	"github.com/appsight/insights-cli/pkg/scraper"
)

type fakeScraper struct {
	mu      sync.Mutex
	calls   int
	reviews []model.Review
	err     error
}

func (f *fakeScraper) FetchReviews(ctx context.Context, req scraper.FetchRequest) ([]model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.reviews, nil
}

func (f *fakeScraper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeEmbedder returns deterministic vectors derived from text length so
// clustering has real structure to work with.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	// vectorFor overrides the default vector when set.
	vectorFor func(text string) []float64
	err       error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) (*embed.EmbedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	resp := &embed.EmbedResponse{Tokens: len(texts) * 10}
	for _, text := range texts {
		if f.vectorFor != nil {
			resp.Vectors = append(resp.Vectors, f.vectorFor(text))
			continue
		}
		v := []float64{1, 0, 0}
		if strings.Contains(text, "crash") || strings.Contains(text, "bug") {
			v = []float64{0, 1, 0}
		}
		resp.Vectors = append(resp.Vectors, v)
	}
	return resp, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeLLM answers categorize prompts with a matching-arity JSON array and
// labeling prompts with a fixed name.
type fakeLLM struct {
	mu       sync.Mutex
	calls    int
	category string
	respond  func(req llm.MessageRequest) (*llm.MessageResponse, error)
}

func (f *fakeLLM) CreateMessage(ctx context.Context, req llm.MessageRequest) (*llm.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.respond != nil {
		return f.respond(req)
	}

	usage := llm.TokenUsage{InputTokens: 100, OutputTokens: 20}
	content := req.Messages[len(req.Messages)-1].Content

	if strings.HasPrefix(content, "Give a short label") {
		return &llm.MessageResponse{
			Content: []llm.ContentBlock{{Type: "text", Text: "Crash Complaints"}},
			Usage:   usage,
		}, nil
	}

	category := f.category
	if category == "" {
		category = "bugs"
	}
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, ". ") {
			n++
		}
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = category
	}
	body, _ := json.Marshal(labels)
	return &llm.MessageResponse{
		Content: []llm.ContentBlock{{Type: "text", Text: string(body)}},
		Usage:   usage,
	}, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Pipeline.ReviewCount = 100
	cfg.Pipeline.ClusterCount = 2
	cfg.Pipeline.TopicCount = 5
	cfg.Pipeline.Seed = 42
	cfg.Pipeline.EnabledStages = config.AllStages
	cfg.Pipeline.KeywordDictionary = []string{"crash", "payment", "login"}
	cfg.Pipeline.MaxFindings = 5
	cfg.Pipeline.MaxRecommendations = 5
	cfg.Pipeline.MaxEvidence = 3
	cfg.Pipeline.Representatives = 2
	cfg.Anthropic.HaikuModel = "claude-haiku-4-5-20251001"
	cfg.Anthropic.MaxTokens = 1024
	cfg.Batch.Size = 4
	cfg.Batch.Concurrency = 2
	cfg.Batch.MaxRetries = 2
	cfg.Batch.BackoffBaseMS = 1
	cfg.Batch.CallTimeoutSecs = 5
	cfg.Export.Dir = filepath.Join(t.TempDir(), "reports")
	return cfg
}

type testPipeline struct {
	p        *Pipeline
	store    artifact.Store
	scraper  *fakeScraper
	embedder *fakeEmbedder
	llm      *fakeLLM
}

func newTestPipeline(t *testing.T, cfg *config.Config, reviews []model.Review) *testPipeline {
	t.Helper()
	store, err := artifact.NewSQLite(filepath.Join(t.TempDir(), "insights.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })

	tp := &testPipeline{
		store:    store,
		scraper:  &fakeScraper{reviews: reviews},
		embedder: &fakeEmbedder{},
		llm:      &fakeLLM{},
	}
	tp.p = New(cfg, store, tp.scraper, tp.embedder, tp.llm, nil)
	return tp
}

func makeTestReviews(n int) []model.Review {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	reviews := make([]model.Review, n)
	for i := range reviews {
		text := "Great app, love the design and it works perfectly"
		rating := 5
		if i%3 == 0 {
			text = "Terrible, it keeps crashing with a crash on startup"
			rating = 1
		}
		reviews[i] = model.Review{
			ID:        fmt.Sprintf("r%03d", i),
			Text:      text,
			Rating:    rating,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Locale:    "en_US",
		}
	}
	return reviews
}

func stageByID(t *testing.T, result *model.RunResult, id string) model.StageResult {
	t.Helper()
	for _, s := range result.Stages {
		if s.Stage == id {
			return s
		}
	}
	t.Fatalf("stage %q not in result", id)
	return model.StageResult{}
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/appsight/insights-cli/internal/model"
	"github.com/appsight/insights-cli/internal/resilience"
	"github.com/appsight/insights-cli/pkg/llm"
)

// Categories a review can be assigned to. The model must pick from this
// set; anything else is normalized to "other".
var Categories = []string{
	"bugs", "performance", "design", "pricing",
	"content", "support", "feature_request", "praise", "other",
}

const categorizeSystemPrompt = `You label app store reviews. For each numbered review, pick exactly one category from this list: %s.
Respond with a JSON array of category strings, one per review, in the same order. No other text.`

// categorizeBatch labels one batch of cleaned reviews with a single model
// call. A response with the wrong arity is treated as transient so the
// batch executor retries it.
func (p *Pipeline) categorizeBatch(ctx context.Context, chunk []model.CleanedReview, usage *usageTracker) ([]model.CategorizedReview, error) {
	var sb strings.Builder
	for i, c := range chunk {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Text)
	}

	resp, err := p.llm.CreateMessage(ctx, llm.MessageRequest{
		Model:     p.cfg.Anthropic.HaikuModel,
		MaxTokens: p.cfg.Anthropic.MaxTokens,
		System: []llm.SystemBlock{{
			Text:         fmt.Sprintf(categorizeSystemPrompt, strings.Join(Categories, ", ")),
			CacheControl: &llm.CacheControl{TTL: "5m"},
		}},
		Messages: []llm.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return nil, err
	}
	usage.add(resp.Usage)

	labels, err := parseCategoryArray(resp.Text())
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	if len(labels) != len(chunk) {
		return nil, resilience.NewTransientError(
			eris.Errorf("categorize: got %d labels for %d reviews", len(labels), len(chunk)), 0)
	}

	valid := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		valid[c] = true
	}

	out := make([]model.CategorizedReview, len(chunk))
	for i, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if !valid[label] {
			label = "other"
		}
		out[i] = model.CategorizedReview{ReviewID: chunk[i].ReviewID, Category: label}
	}
	return out, nil
}

// labelCluster names one cluster from its representative reviews.
func (p *Pipeline) labelCluster(ctx context.Context, reps []model.CleanedReview, usage *usageTracker) (string, error) {
	var sb strings.Builder
	sb.WriteString("Give a short label (2-4 words) for the common theme of these app reviews. Respond with the label only.\n\n")
	for _, r := range reps {
		sb.WriteString("- " + r.Text + "\n")
	}

	resp, err := p.llm.CreateMessage(ctx, llm.MessageRequest{
		Model:     p.cfg.Anthropic.HaikuModel,
		MaxTokens: 64,
		Messages:  []llm.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return "", err
	}
	usage.add(resp.Usage)

	label := strings.TrimSpace(resp.Text())
	if idx := strings.IndexByte(label, '\n'); idx >= 0 {
		label = label[:idx]
	}
	label = strings.Trim(label, `"'`)
	if label == "" {
		return "", resilience.NewTransientError(eris.New("categorize: empty cluster label"), 0)
	}
	return label, nil
}

// parseCategoryArray extracts a JSON string array from model output,
// tolerating surrounding prose and markdown code fences.
func parseCategoryArray(text string) ([]string, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, eris.Errorf("categorize: no JSON array in response: %.80s", text)
	}

	var labels []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &labels); err != nil {
		return nil, eris.Wrap(err, "categorize: parse response")
	}
	return labels, nil
}

// usageTracker accumulates token usage across concurrent batch calls.
type usageTracker struct {
	mu    sync.Mutex
	usage llm.TokenUsage
}

func (t *usageTracker) add(u llm.TokenUsage) {
	t.mu.Lock()
	t.usage = t.usage.Add(u)
	t.mu.Unlock()
}

func (t *usageTracker) total() llm.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

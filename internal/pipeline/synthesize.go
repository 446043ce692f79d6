package pipeline

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/appsight/insights-cli/internal/model"
)

// Rule is one row of the synthesis decision table. A rule fires when the
// named metric satisfies op/threshold; it then emits a finding and,
// optionally, a recommendation.
type Rule struct {
	ID             string  `yaml:"id"`
	Metric         string  `yaml:"metric"`
	Op             string  `yaml:"op"` // gt, gte, lt, lte
	Threshold      float64 `yaml:"threshold"`
	Weight         float64 `yaml:"weight"`
	Finding        string  `yaml:"finding"`
	Recommendation string  `yaml:"recommendation,omitempty"`
}

// SynthesizeConfig bounds the synthesizer output.
type SynthesizeConfig struct {
	MaxFindings        int
	MaxRecommendations int
	MaxEvidence        int
}

// SynthesizeOutput is the synthesis artifact.
type SynthesizeOutput struct {
	Findings        []model.Finding        `json:"findings"`
	Recommendations []model.Recommendation `json:"recommendations"`
}

// LoadRules reads a decision table from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "synthesize: read rules %s", path)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "synthesize: parse rules %s", path)
	}
	if err := validateRules(doc.Rules); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

func validateRules(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return eris.Errorf("synthesize: rule %d has no id", i)
		}
		if seen[r.ID] {
			return eris.Errorf("synthesize: duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		switch r.Op {
		case "gt", "gte", "lt", "lte":
		default:
			return eris.Errorf("synthesize: rule %q has unknown op %q", r.ID, r.Op)
		}
		if r.Metric == "" || r.Finding == "" {
			return eris.Errorf("synthesize: rule %q missing metric or finding", r.ID)
		}
	}
	return nil
}

// DefaultRules returns the compiled-in decision table.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID: "negative-majority", Metric: "sentiment_negative_pct",
			Op: "gt", Threshold: 50, Weight: 2.0,
			Finding:        "{value}% of reviews are negative, a majority of the corpus",
			Recommendation: "Triage the top negative clusters before shipping new features",
		},
		{
			ID: "negative-elevated", Metric: "sentiment_negative_pct",
			Op: "gt", Threshold: 30, Weight: 1.0,
			Finding:        "{value}% of reviews are negative",
			Recommendation: "Review recurring complaints and prioritize the most frequent",
		},
		{
			ID: "positive-strong", Metric: "sentiment_positive_pct",
			Op: "gt", Threshold: 70, Weight: 0.5,
			Finding: "{value}% of reviews are positive",
		},
		{
			ID: "low-rating", Metric: "avg_rating",
			Op: "lt", Threshold: 3.0, Weight: 1.5,
			Finding:        "Average rating is {value}, below the store-health bar of 3.0",
			Recommendation: "Respond to low-star reviews and address their shared causes",
		},
		{
			ID: "crash-reports", Metric: "keyword_crash_count",
			Op: "gt", Threshold: 5, Weight: 2.0,
			Finding:        "{value} reviews mention crashes",
			Recommendation: "Investigate crash reports; collect device and OS breakdowns",
		},
		{
			// Billing complaints are high-stakes; any mention fires.
			ID: "payment-complaints", Metric: "keyword_payment_count",
			Op: "gt", Threshold: 0, Weight: 1.8,
			Finding:        "{value} reviews flag payment problems",
			Recommendation: "Audit the payment flow end to end and verify refund handling",
		},
		{
			ID: "refund-requests", Metric: "keyword_refund_count",
			Op: "gt", Threshold: 3, Weight: 1.5,
			Finding:        "{value} reviews ask about refunds",
			Recommendation: "Make the refund policy visible in-app and speed up processing",
		},
		{
			ID: "login-issues", Metric: "keyword_login_count",
			Op: "gt", Threshold: 3, Weight: 1.4,
			Finding:        "{value} reviews report login trouble",
			Recommendation: "Add login failure telemetry and test third-party auth providers",
		},
		{
			ID: "battery-drain", Metric: "keyword_battery_count",
			Op: "gt", Threshold: 3, Weight: 1.2,
			Finding:        "{value} reviews complain about battery drain",
			Recommendation: "Profile background activity and wake locks",
		},
		{
			ID: "ad-fatigue", Metric: "keyword_ads_count",
			Op: "gt", Threshold: 5, Weight: 1.0,
			Finding:        "{value} reviews complain about advertising volume",
			Recommendation: "Revisit ad frequency caps and placement",
		},
		{
			ID: "slow-performance", Metric: "keyword_slow_count",
			Op: "gt", Threshold: 5, Weight: 1.1,
			Finding:        "{value} reviews describe the app as slow",
			Recommendation: "Benchmark cold start and the heaviest screens",
		},
	}
}

// Synthesize evaluates the decision table against the aggregated metrics.
// Output order is deterministic: priority descending, rule declaration
// order breaking ties. Every recommendation links its finding and carries
// up to MaxEvidence supporting review IDs.
func Synthesize(agg *AggregateOutput, rules []Rule, cfg SynthesizeConfig) *SynthesizeOutput {
	if cfg.MaxFindings <= 0 {
		cfg.MaxFindings = 5
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = 5
	}
	if cfg.MaxEvidence <= 0 {
		cfg.MaxEvidence = 3
	}

	values := make(map[string]float64, len(agg.Metrics))
	for _, m := range agg.Metrics {
		if m.Kind == model.MetricKindNumeric {
			values[m.Name] = m.Value
		}
	}

	type match struct {
		rule     Rule
		order    int
		value    float64
		priority float64
	}

	var matches []match
	for i, r := range rules {
		v, ok := values[r.Metric]
		if !ok {
			continue
		}
		fired := false
		switch r.Op {
		case "gt":
			fired = v > r.Threshold
		case "gte":
			fired = v >= r.Threshold
		case "lt":
			fired = v < r.Threshold
		case "lte":
			fired = v <= r.Threshold
		}
		if !fired {
			continue
		}

		// Priority grows with how far the metric overshoots its threshold.
		excess := v - r.Threshold
		if r.Op == "lt" || r.Op == "lte" {
			excess = r.Threshold - v
		}
		scale := r.Threshold
		if scale == 0 {
			scale = 1
		}
		priority := r.Weight * (1 + excess/scale)

		matches = append(matches, match{rule: r, order: i, value: v, priority: priority})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].priority != matches[j].priority {
			return matches[i].priority > matches[j].priority
		}
		return matches[i].order < matches[j].order
	})

	out := &SynthesizeOutput{}
	for _, m := range matches {
		if len(out.Findings) >= cfg.MaxFindings {
			break
		}
		findingID := "f-" + m.rule.ID
		out.Findings = append(out.Findings, model.Finding{
			ID:        findingID,
			Rank:      len(out.Findings) + 1,
			Priority:  round2(m.priority),
			Statement: renderTemplate(m.rule.Finding, m.rule.Metric, m.value),
			Metrics:   []string{m.rule.Metric},
		})

		if m.rule.Recommendation == "" || len(out.Recommendations) >= cfg.MaxRecommendations {
			continue
		}
		evidence := agg.Evidence[m.rule.Metric]
		if len(evidence) > cfg.MaxEvidence {
			evidence = evidence[:cfg.MaxEvidence]
		}
		out.Recommendations = append(out.Recommendations, model.Recommendation{
			ID:        "r-" + m.rule.ID,
			Rank:      len(out.Recommendations) + 1,
			Priority:  round2(m.priority),
			Statement: renderTemplate(m.rule.Recommendation, m.rule.Metric, m.value),
			Findings:  []string{findingID},
			Evidence:  evidence,
		})
	}

	// A non-empty metric set always produces at least one finding and one
	// recommendation. A quiet decision table means the corpus is healthy,
	// which is itself the observation worth reporting.
	if len(agg.Metrics) > 0 && len(out.Findings) == 0 {
		out.Findings = append(out.Findings, corpusHealthFinding(values))
	}
	if len(agg.Metrics) > 0 && len(out.Recommendations) == 0 && len(out.Findings) > 0 {
		top := out.Findings[0]
		out.Recommendations = append(out.Recommendations, model.Recommendation{
			ID:        "r-corpus-health",
			Rank:      1,
			Priority:  top.Priority,
			Statement: "Keep monitoring review sentiment; no corrective action is indicated",
			Findings:  []string{top.ID},
		})
	}
	return out
}

// corpusHealthFinding summarizes the corpus when no rule fires.
func corpusHealthFinding(values map[string]float64) model.Finding {
	parts := make([]string, 0, 3)
	refs := make([]string, 0, 3)
	if v, ok := values["review_count"]; ok {
		parts = append(parts, formatValue(v)+" reviews analyzed")
		refs = append(refs, "review_count")
	}
	if v, ok := values["sentiment_positive_pct"]; ok {
		parts = append(parts, formatValue(v)+"% positive")
		refs = append(refs, "sentiment_positive_pct")
	}
	if v, ok := values["sentiment_negative_pct"]; ok {
		parts = append(parts, formatValue(v)+"% negative")
		refs = append(refs, "sentiment_negative_pct")
	}
	statement := "No metric crossed an alert threshold"
	if len(parts) > 0 {
		statement += ": " + strings.Join(parts, ", ")
	}
	return model.Finding{
		ID:        "f-corpus-health",
		Rank:      1,
		Statement: statement,
		Metrics:   refs,
	}
}

func renderTemplate(tpl, metric string, value float64) string {
	s := strings.ReplaceAll(tpl, "{metric}", metric)
	return strings.ReplaceAll(s, "{value}", formatValue(value))
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("%.2f", v)
}

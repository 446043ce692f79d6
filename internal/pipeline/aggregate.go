package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/appsight/insights-cli/internal/model"
)

// AggregateInput carries everything the aggregation stage reads. Optional
// slices may be nil when their producing stage was disabled or failed;
// the corresponding metrics are simply absent.
type AggregateInput struct {
	Reviews     []model.Review
	Cleaned     []model.CleanedReview
	Sentiments  []model.SentimentResult
	Topics      []model.Topic
	Assignments []model.ClusterAssignment
	Labels      []model.ClusterLabel
	Categorized []model.CategorizedReview
	Keywords    []string
	// Provenance maps stage ID to artifact fingerprint; each metric names
	// the stages it was computed from.
	Provenance map[string]string
}

// AggregateOutput is the aggregation artifact: metrics plus, per metric,
// sample review IDs backing it (used downstream as recommendation evidence).
type AggregateOutput struct {
	Metrics  []model.Metric      `json:"metrics"`
	Evidence map[string][]string `json:"evidence,omitempty"`
}

const maxEvidencePerMetric = 10

// Aggregate computes run metrics. It is pure: no I/O, no randomness, and
// identical input always yields identical output in identical order.
func Aggregate(in AggregateInput) *AggregateOutput {
	out := &AggregateOutput{Evidence: make(map[string][]string)}

	prov := func(stages ...string) []string {
		refs := make([]string, 0, len(stages))
		for _, s := range stages {
			if fp, ok := in.Provenance[s]; ok {
				refs = append(refs, s+":"+fp)
			}
		}
		return refs
	}

	add := func(m model.Metric) {
		out.Metrics = append(out.Metrics, m)
	}

	// Corpus counts.
	add(model.Metric{
		Name:       "review_count",
		Kind:       model.MetricKindNumeric,
		Value:      float64(len(in.Reviews)),
		Provenance: prov("fetch"),
	})

	if len(in.Reviews) > 0 {
		var ratingSum int
		for _, r := range in.Reviews {
			ratingSum += r.Rating
		}
		add(model.Metric{
			Name:       "avg_rating",
			Kind:       model.MetricKindNumeric,
			Value:      round2(float64(ratingSum) / float64(len(in.Reviews))),
			Provenance: prov("fetch"),
		})
	}

	// Sentiment percentages.
	if len(in.Sentiments) > 0 {
		counts := map[model.SentimentLabel]int{}
		evidence := map[model.SentimentLabel][]string{}
		for _, s := range in.Sentiments {
			counts[s.Label]++
			evidence[s.Label] = append(evidence[s.Label], s.ReviewID)
		}
		total := float64(len(in.Sentiments))
		for _, label := range []model.SentimentLabel{
			model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral,
		} {
			name := "sentiment_" + string(label) + "_pct"
			add(model.Metric{
				Name:       name,
				Kind:       model.MetricKindNumeric,
				Value:      round2(float64(counts[label]) / total * 100),
				Provenance: prov("sentiment"),
			})
			out.Evidence[name] = capStrings(evidence[label], maxEvidencePerMetric)
		}
	}

	// Topic terms, in topic rank order.
	for _, t := range in.Topics {
		add(model.Metric{
			Name:       fmt.Sprintf("topic_%d_terms", t.ID),
			Kind:       model.MetricKindCategorical,
			Label:      strings.Join(t.Terms, " "),
			Provenance: prov("topics"),
		})
	}

	// Cluster sizes, ranked descending; stable on cluster index.
	if len(in.Assignments) > 0 {
		labelFor := make(map[int]string, len(in.Labels))
		for _, l := range in.Labels {
			labelFor[l.Cluster] = l.Name
		}

		sizes := map[int]int{}
		members := map[int][]string{}
		for _, a := range in.Assignments {
			sizes[a.Cluster]++
			members[a.Cluster] = append(members[a.Cluster], a.ReviewID)
		}

		clusters := make([]int, 0, len(sizes))
		for c := range sizes {
			clusters = append(clusters, c)
		}
		sort.Slice(clusters, func(i, j int) bool {
			if sizes[clusters[i]] != sizes[clusters[j]] {
				return sizes[clusters[i]] > sizes[clusters[j]]
			}
			return clusters[i] < clusters[j]
		})

		for rank, c := range clusters {
			name := fmt.Sprintf("cluster_rank_%d_size", rank+1)
			add(model.Metric{
				Name:       name,
				Kind:       model.MetricKindNumeric,
				Value:      float64(sizes[c]),
				Label:      labelFor[c],
				Provenance: prov("cluster"),
			})
			out.Evidence[name] = capStrings(members[c], maxEvidencePerMetric)
		}
	}

	// Keyword flags from the configured dictionary, in dictionary order.
	if len(in.Keywords) > 0 && len(in.Cleaned) > 0 {
		for _, kw := range in.Keywords {
			var count int
			var ids []string
			for _, c := range in.Cleaned {
				for _, tok := range c.Tokens {
					if tok == kw {
						count++
						ids = append(ids, c.ReviewID)
						break
					}
				}
			}
			name := "keyword_" + kw + "_count"
			add(model.Metric{
				Name:       name,
				Kind:       model.MetricKindNumeric,
				Value:      float64(count),
				Provenance: prov("clean"),
			})
			out.Evidence[name] = capStrings(ids, maxEvidencePerMetric)
		}
	}

	// Category distribution, alphabetical for stable order.
	if len(in.Categorized) > 0 {
		counts := map[string]int{}
		members := map[string][]string{}
		for _, c := range in.Categorized {
			counts[c.Category]++
			members[c.Category] = append(members[c.Category], c.ReviewID)
		}
		cats := make([]string, 0, len(counts))
		for c := range counts {
			cats = append(cats, c)
		}
		sort.Strings(cats)

		total := float64(len(in.Categorized))
		for _, cat := range cats {
			name := "category_" + cat + "_pct"
			add(model.Metric{
				Name:       name,
				Kind:       model.MetricKindNumeric,
				Value:      round2(float64(counts[cat]) / total * 100),
				Provenance: prov("categorize"),
			})
			out.Evidence[name] = capStrings(members[cat], maxEvidencePerMetric)
		}
	}

	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

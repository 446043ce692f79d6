package pipeline

import (
	"sort"

	"github.com/appsight/insights-cli/internal/model"
)

const termsPerTopic = 5

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"i": true, "it": true, "its": true, "it's": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "to": true, "of": true, "in": true,
	"on": true, "for": true, "with": true, "this": true, "that": true,
	"my": true, "me": true, "you": true, "your": true, "so": true, "at": true,
	"as": true, "have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "can": true, "could": true, "would": true, "will": true,
	"just": true, "very": true, "too": true, "really": true, "app": true,
	"all": true, "if": true, "when": true, "up": true, "out": true, "get": true,
	"when's": true, "there": true, "they": true, "them": true, "we": true,
	"im": true, "i'm": true, "ive": true, "i've": true, "he": true, "she": true,
	"from": true, "by": true, "about": true, "more": true, "some": true,
	"than": true, "then": true, "now": true, "only": true, "also": true,
	"because": true, "what": true, "which": true, "how": true, "why": true,
	"into": true, "after": true, "before": true, "over": true, "again": true,
	"even": true, "still": true, "much": true, "most": true, "other": true,
	"no": true, "not": true, "nor": true, "own": true, "same": true,
	"dont": true, "don't": true, "cant": true, "can't": true, "one": true,
	"use": true, "using": true, "used": true, "time": true, "like": true,
}

// ExtractTopics finds the topicCount most frequent non-stopword terms and
// builds one topic around each: the seed term plus its strongest
// co-occurring terms. Frequency ties break lexicographically, so output is
// deterministic for a given input.
func ExtractTopics(cleaned []model.CleanedReview, topicCount int) []model.Topic {
	if topicCount <= 0 || len(cleaned) == 0 {
		return nil
	}

	freq := make(map[string]int)
	// cooc counts reviews where both terms appear, keyed by seed term.
	cooc := make(map[string]map[string]int)

	for _, c := range cleaned {
		seen := make(map[string]bool, len(c.Tokens))
		for _, tok := range c.Tokens {
			if stopwords[tok] || len(tok) < 3 {
				continue
			}
			seen[tok] = true
		}
		for a := range seen {
			freq[a]++
			m := cooc[a]
			if m == nil {
				m = make(map[string]int)
				cooc[a] = m
			}
			for b := range seen {
				if a != b {
					m[b]++
				}
			}
		}
	}

	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if topicCount > len(terms) {
		topicCount = len(terms)
	}

	seeds := terms[:topicCount]
	seedSet := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		seedSet[s] = true
	}

	topics := make([]model.Topic, 0, topicCount)
	for i, seed := range seeds {
		related := make([]string, 0, len(cooc[seed]))
		for t := range cooc[seed] {
			if !seedSet[t] {
				related = append(related, t)
			}
		}
		sort.Slice(related, func(a, b int) bool {
			if cooc[seed][related[a]] != cooc[seed][related[b]] {
				return cooc[seed][related[a]] > cooc[seed][related[b]]
			}
			return related[a] < related[b]
		})
		if len(related) > termsPerTopic-1 {
			related = related[:termsPerTopic-1]
		}

		topics = append(topics, model.Topic{
			ID:    i,
			Terms: append([]string{seed}, related...),
		})
	}
	return topics
}

package pipeline

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/appsight/insights-cli/internal/model"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// CleanReviews normalizes review text for downstream analysis: lowercase,
// URLs and punctuation stripped, whitespace collapsed, tokenized. Reviews
// that end up empty are dropped. Deterministic.
func CleanReviews(reviews []model.Review) []model.CleanedReview {
	out := make([]model.CleanedReview, 0, len(reviews))
	for _, r := range reviews {
		text := strings.ToLower(r.Text)
		text = urlPattern.ReplaceAllString(text, " ")

		var b strings.Builder
		b.Grow(len(text))
		for _, c := range text {
			if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'' {
				b.WriteRune(c)
			} else {
				b.WriteByte(' ')
			}
		}

		tokens := strings.Fields(b.String())
		if len(tokens) == 0 {
			continue
		}
		out = append(out, model.CleanedReview{
			ReviewID: r.ID,
			Text:     strings.Join(tokens, " "),
			Tokens:   tokens,
		})
	}
	return out
}

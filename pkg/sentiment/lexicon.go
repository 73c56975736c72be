package sentiment

import (
	"context"
	"strings"
	"unicode"
)

var defaultPositive = []string{
	"love", "loved", "amazing", "awesome", "best", "better", "brilliant",
	"excellent", "exciting", "fantastic", "future", "good", "great", "happy",
	"impressive", "incredible", "nice", "wonderful", "wow",
}

var defaultNegative = []string{
	"annoying", "awful", "bad", "boring", "broken", "disappointed",
	"disappointing", "hate", "horrible", "overrated", "poor", "sad",
	"terrible", "useless", "worse", "worst",
}

// LexiconClassifier scores texts by counting positive and negative words.
// It needs no network and is the default offline classifier.
type LexiconClassifier struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewLexiconClassifier creates a classifier with the built-in word lists.
func NewLexiconClassifier() *LexiconClassifier {
	return NewLexiconClassifierWithWords(defaultPositive, defaultNegative)
}

// NewLexiconClassifierWithWords creates a classifier with custom word lists.
func NewLexiconClassifierWithWords(positive, negative []string) *LexiconClassifier {
	return &LexiconClassifier{
		positive: wordSet(positive),
		negative: wordSet(negative),
	}
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// Classify returns neutral at 0.5 when no lexicon word matches or the counts
// tie. Otherwise the majority side wins with a score growing with its margin.
func (c *LexiconClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var pos, neg int
	for _, w := range words {
		if _, ok := c.positive[w]; ok {
			pos++
		}
		if _, ok := c.negative[w]; ok {
			neg++
		}
	}

	total := pos + neg
	switch {
	case pos > neg:
		return Prediction{Label: LabelPositive, Score: 0.5 + 0.5*float64(pos-neg)/float64(total)}, nil
	case neg > pos:
		return Prediction{Label: LabelNegative, Score: 0.5 + 0.5*float64(neg-pos)/float64(total)}, nil
	default:
		return Prediction{Label: LabelNeutral, Score: 0.5}, nil
	}
}

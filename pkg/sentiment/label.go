// Package sentiment classifies record texts and summarises the label
// distribution of a run.
package sentiment

import (
	"context"
	"strings"
)

// Label is a normalised sentiment class.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNeutral  Label = "neutral"
	LabelNegative Label = "negative"
	LabelUnknown  Label = "unknown"
)

// labelOrder is the display order used to break ties.
var labelOrder = map[Label]int{
	LabelPositive: 0,
	LabelNeutral:  1,
	LabelNegative: 2,
	LabelUnknown:  3,
}

// Title returns the label capitalised for display ("Positive").
func (l Label) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

// MapLabel normalises a raw classifier label. Matching is case-insensitive
// and by substring, checked in the order negative, neutral, positive, so
// "LABEL_negative" and "Very Positive" both map. Anything else is unknown.
func MapLabel(raw string) Label {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "negative"):
		return LabelNegative
	case strings.Contains(lower, "neutral"):
		return LabelNeutral
	case strings.Contains(lower, "positive"):
		return LabelPositive
	default:
		return LabelUnknown
	}
}

// Prediction is the output of one classification.
type Prediction struct {
	Label Label
	// Score is the classifier confidence in [0, 1].
	Score float64
}

// Classifier assigns a sentiment to a text. Implementations must be safe for
// concurrent use.
type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

package sentiment

import "sort"

// Share is one label's part of a distribution.
type Share struct {
	Label   Label   `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Distribution summarises the labels of one run.
type Distribution struct {
	Total int `json:"total"`

	// Shares lists labels present in the run, most frequent first.
	Shares []Share `json:"shares"`
}

// Summarize computes the label distribution of analyses.
func Summarize(analyses []Analysis) Distribution {
	counts := make(map[Label]int)
	for _, a := range analyses {
		counts[a.Sentiment]++
	}

	dist := Distribution{Total: len(analyses)}
	for label, n := range counts {
		dist.Shares = append(dist.Shares, Share{
			Label:   label,
			Count:   n,
			Percent: 100 * float64(n) / float64(len(analyses)),
		})
	}

	sort.Slice(dist.Shares, func(i, j int) bool {
		if dist.Shares[i].Count != dist.Shares[j].Count {
			return dist.Shares[i].Count > dist.Shares[j].Count
		}
		return rank(dist.Shares[i].Label) < rank(dist.Shares[j].Label)
	})

	return dist
}

// Count returns the number of records with label.
func (d Distribution) Count(label Label) int {
	for _, s := range d.Shares {
		if s.Label == label {
			return s.Count
		}
	}
	return 0
}

// Percent returns the share of label in percent.
func (d Distribution) Percent(label Label) float64 {
	for _, s := range d.Shares {
		if s.Label == label {
			return s.Percent
		}
	}
	return 0
}

func rank(l Label) int {
	if r, ok := labelOrder[l]; ok {
		return r
	}
	return len(labelOrder)
}

package fetch

import "strings"

// Status is returned by Accumulator.Accept.
type Status int

const (
	// Continue means another page should be requested with Token().
	Continue Status = iota

	// TargetReached means the accumulator holds exactly the target count.
	TargetReached

	// NoMorePages means the provider has nothing more to give.
	NoMorePages
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case TargetReached:
		return "target_reached"
	case NoMorePages:
		return "no_more_pages"
	default:
		return "unknown"
	}
}

// Accumulator collects records across pages up to a target count.
// It is owned by a single fetch and is not safe for concurrent use.
type Accumulator struct {
	target  int
	records []Record
	token   string
	seen    map[string]struct{}

	// Dropped counts records skipped as duplicates or empty texts.
	Dropped int
}

// NewAccumulator creates an accumulator for target records.
func NewAccumulator(target int) *Accumulator {
	return &Accumulator{
		target:  target,
		records: make([]Record, 0, min(target, DefaultMaxPageSize*4)),
		seen:    make(map[string]struct{}),
	}
}

// Accept appends a page and reports whether pagination should continue.
//
// Records beyond the target are truncated, records with an ID already seen in
// this fetch are skipped, and the page's token replaces the current one. An
// empty page ends pagination even when it carries a token.
func (a *Accumulator) Accept(page Page) Status {
	for _, rec := range page.Records {
		if len(a.records) >= a.target {
			break
		}
		if strings.TrimSpace(rec.Text) == "" {
			a.Dropped++
			continue
		}
		if rec.ID != "" {
			if _, dup := a.seen[rec.ID]; dup {
				a.Dropped++
				continue
			}
			a.seen[rec.ID] = struct{}{}
		}
		a.records = append(a.records, rec)
	}

	a.token = page.NextToken

	switch {
	case len(page.Records) == 0 || a.token == "":
		return NoMorePages
	case len(a.records) == a.target:
		return TargetReached
	default:
		return Continue
	}
}

// Token returns the continuation token for the next page request.
func (a *Accumulator) Token() string {
	return a.token
}

// Remaining returns how many records are still needed.
func (a *Accumulator) Remaining() int {
	return a.target - len(a.records)
}

// Len returns the number of accumulated records.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// IsEmpty reports whether nothing has been accumulated.
func (a *Accumulator) IsEmpty() bool {
	return len(a.records) == 0
}

// Records returns the accumulated records in fetch order.
func (a *Accumulator) Records() []Record {
	return a.records
}

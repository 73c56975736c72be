package fetch

import (
	"context"
	"strings"
)

// Query is a search expression plus language and content filters.
// It is not modified for the duration of a fetch.
type Query struct {
	// Text is the keyword, hashtag or provider search expression.
	Text string `json:"text"`

	// Language restricts results to one language code (e.g. "en"). Empty means any.
	Language string `json:"language,omitempty"`

	// ExcludeRetweets drops reposts from the result set.
	ExcludeRetweets bool `json:"exclude_retweets,omitempty"`
}

// Expression renders the query in the provider's search syntax.
//
// Example:
//
//	Query{Text: "golang", Language: "en", ExcludeRetweets: true}.Expression()
//	// "golang -is:retweet lang:en"
func (q Query) Expression() string {
	parts := []string{strings.TrimSpace(q.Text)}
	if q.ExcludeRetweets {
		parts = append(parts, "-is:retweet")
	}
	if q.Language != "" {
		parts = append(parts, "lang:"+q.Language)
	}
	return strings.Join(parts, " ")
}

// Record is one retrieved text item.
type Record struct {
	// ID is the provider identifier. Optional; only used to drop items the
	// provider repeats across pages within one fetch.
	ID string `json:"id,omitempty"`

	// Text is the raw record text. Never empty in accumulated results.
	Text string `json:"text"`
}

// Page is the result of one successful page request.
type Page struct {
	Records []Record

	// NextToken is the continuation token. Empty means there are no more pages.
	NextToken string
}

// HasMore reports whether the provider returned a continuation token.
func (p Page) HasMore() bool {
	return p.NextToken != ""
}

// SearchRequest is a single page request sent to a SearchClient.
type SearchRequest struct {
	Query      Query
	MaxResults int
	NextToken  string
}

// SearchResponse is a single page returned by a SearchClient.
type SearchResponse struct {
	Records   []Record
	NextToken string
}

// SearchClient is the remote search capability the fetch engine consumes.
//
// Implementations must return an error matching ErrRateLimited (via errors.Is)
// when the provider throttles the caller, and must be safe for concurrent use.
type SearchClient interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// RecordSource produces records for a query. The live Orchestrator and the
// synthetic generator are interchangeable implementations.
type RecordSource interface {
	FetchRecords(ctx context.Context, query Query, target int) (Result, error)
}

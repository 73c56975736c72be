package fetch

import (
	"context"
	"errors"
)

// DefaultMaxPageSize is the largest page the search provider serves.
const DefaultMaxPageSize = 100

// PageOutcome is the kind of a page request result.
type PageOutcome int

const (
	// PageOK means Page holds a valid page.
	PageOK PageOutcome = iota

	// PageRateLimited means the provider throttled the request.
	PageRateLimited

	// PageFailed means the request failed; Err holds the cause.
	PageFailed
)

// String returns the metric label for the outcome.
func (o PageOutcome) String() string {
	switch o {
	case PageOK:
		return "ok"
	case PageRateLimited:
		return "rate_limited"
	case PageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PageResult represents the result of fetching a single page.
type PageResult struct {
	Outcome PageOutcome
	Page    Page
	Err     error
}

// PageFetcher issues one page request per call. It never retries or sleeps.
type PageFetcher interface {
	// FetchPage requests at most remaining records starting at token.
	FetchPage(ctx context.Context, query Query, remaining int, token string) PageResult
}

// SearchPageFetcher adapts a SearchClient to the PageFetcher contract.
type SearchPageFetcher struct {
	client      SearchClient
	maxPageSize int
}

// NewSearchPageFetcher creates a page fetcher whose page size is capped at maxPageSize.
func NewSearchPageFetcher(client SearchClient, maxPageSize int) *SearchPageFetcher {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &SearchPageFetcher{
		client:      client,
		maxPageSize: maxPageSize,
	}
}

// PageSize returns min(maxPageSize, remaining).
func (f *SearchPageFetcher) PageSize(remaining int) int {
	return min(f.maxPageSize, remaining)
}

// FetchPage performs exactly one search call.
func (f *SearchPageFetcher) FetchPage(ctx context.Context, query Query, remaining int, token string) PageResult {
	resp, err := f.client.Search(ctx, SearchRequest{
		Query:      query,
		MaxResults: f.PageSize(remaining),
		NextToken:  token,
	})
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return PageResult{Outcome: PageRateLimited, Err: err}
		}
		return PageResult{Outcome: PageFailed, Err: err}
	}
	if resp == nil {
		return PageResult{Outcome: PageOK}
	}

	return PageResult{
		Outcome: PageOK,
		Page: Page{
			Records:   resp.Records,
			NextToken: resp.NextToken,
		},
	}
}

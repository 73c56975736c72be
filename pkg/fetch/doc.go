// Package fetch retrieves a bounded number of records from a paginated,
// rate-limited search API.
//
// Pagination is token driven: the continuation token returned with page n is
// required to request page n+1, so pages are fetched strictly in order by a
// single flow of control. The package is split into four parts:
//
//   - PageFetcher issues exactly one page request per call and reports
//     rate limiting as a distinct outcome.
//   - RetryScheduler decides whether to wait after a rate-limit signal and
//     for how long. It never sleeps itself.
//   - Accumulator collects records up to the target count, tracks the
//     continuation token and decides when pagination is exhausted.
//   - Orchestrator drives the loop and produces exactly one terminal Result.
//
// Example usage:
//
//	fetcher := fetch.NewSearchPageFetcher(searchClient, 100)
//	orch := fetch.NewOrchestrator(fetcher, fetch.DefaultConfig())
//	result, err := orch.FetchRecords(ctx, fetch.Query{Text: "golang", Language: "en"}, 50)
//	switch result.Outcome {
//	case fetch.OutcomeSuccess:
//		// result.Records holds up to 50 records
//	case fetch.OutcomeEmpty:
//		// nothing matched, not an error
//	}
//
// Retry exhaustion discards everything fetched so far: the call fails with
// OutcomeRateLimitExhausted instead of returning a partial result.
package fetch

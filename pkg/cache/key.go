package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached search page.
type CacheKey struct {
	// Endpoint is the provider endpoint path (e.g., "/2/tweets/search/recent")
	Endpoint string

	// QueryParams are the request parameters (query, max_results, next_token)
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: search:endpoint:param1=val1:param2=val2
//
// Example:
//
//	search:2/tweets/search/recent:max_results=100:query=golang lang:en
func (k CacheKey) String() string {
	parts := []string{"search"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism; empty values carry no meaning for the provider
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			if k.QueryParams.Get(key) == "" {
				continue
			}
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

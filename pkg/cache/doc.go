// Package cache provides a short-lived Redis cache for search result pages.
//
// Search providers meter every request against a quota window. Re-running
// the same query within a few seconds (a page refresh in the serve command, a
// watch tick that overlaps a manual run) would otherwise spend quota on pages
// the process has just seen. The cache stores the decoded page keyed by the
// exact request parameters, so a cached page is only ever served for an
// identical request.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/2/tweets/search/recent",
//		QueryParams: url.Values{"query": []string{"golang lang:en"}, "max_results": []string{"100"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the provider, then
//		_ = manager.Set(ctx, key, cache.NewEntry(body, 60*time.Second))
//	}
//
// # Metrics
//
//   - search_cache_hits_total - Cache hits
//   - search_cache_misses_total - Cache misses
//   - search_cache_errors_total{operation} - Cache operation errors
package cache

// Package fetcher downloads MindMup documents through the fetch cache.
//
// Downloads run on a bounded worker pool so one slow file does not stall
// other requests. Concurrent misses for the same id share a single download.
// A caller that gives up does not cancel the download: it completes under
// its own timeout and populates the cache for the next caller.
//
// Pipeline for a miss:
//
//	metadata -> size check -> content -> UTF-8 cleanup -> empty check -> cache
//
// Store failures are returned as *types.FetchError. A body that is blank
// after decoding is returned as *types.EmptyContentError.
package fetcher

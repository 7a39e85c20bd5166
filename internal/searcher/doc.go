// Package searcher implements keyword search over a mind-map tree.
//
// Search visits nodes in pre-order and matches the keyword as a substring
// of each node title, case-insensitively unless Options.CaseSensitive is set.
// Each match carries the node id, its title, the " > " joined path of
// ancestor titles, its depth and up to MaxSampleChildren child titles.
//
// # Bounded Results
//
// Once Options.MaxResults matches are collected the walk stops descending
// and Result.LimitReached is set, so the cost of a search on a huge document
// is bounded by the cap rather than by the document size. LimitReached only
// says the search stopped at the cap; the unvisited nodes may hold no match.
//
//	res, err := searcher.Search(doc.Root, searcher.Options{Keyword: "login", MaxResults: 20})
//	if err != nil {
//	    return err
//	}
//	for _, m := range res.Matches {
//	    fmt.Println(m.Path)
//	}
package searcher

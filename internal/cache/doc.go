// Package cache provides the TTL and capacity bounded fetch cache.
//
// Entries expire a TTL after they are inserted or replaced. Reading an entry
// does not extend its life or refresh its recency, so when the cache is over
// capacity the entry inserted longest ago is evicted first. Put sweeps
// expired entries after inserting.
//
//	c, err := cache.New[[]byte](cache.DefaultTTL, cache.DefaultCapacity)
//	if err != nil {
//	    return err
//	}
//	c.Put(docID, payload)
//	if data, ok := c.Get(docID); ok {
//	    return data, nil
//	}
//
// All methods are safe for concurrent use.
package cache

// Package cache provides a bounded in-memory LRU cache with optional
// per-entry TTL.
//
//	emails := cache.NewLRU[string, string](10_000, cache.WithTTL(time.Hour))
//	emails.Put(uid, addr)
//	if addr, ok := emails.Get(uid); ok {
//		...
//	}
package cache

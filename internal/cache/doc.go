// Package cache stores upstream page responses for the fetch client so the
// campaign page is not requested more than once per revalidation window.
// Entries live on disk (HTTPCache) or in Redis (RedisCache).
package cache

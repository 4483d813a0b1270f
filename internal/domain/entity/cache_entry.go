package entity

import "time"

// CacheEntry wraps a cached value with its write time and TTL.
type CacheEntry[T any] struct {
	Value     T             `json:"value"`
	WrittenAt time.Time     `json:"writtenAt"`
	TTL       time.Duration `json:"ttl"`
}

// FreshAt reports whether the entry is still valid at now.
// An entry written at T is fresh up to and including T+TTL.
func (e CacheEntry[T]) FreshAt(now time.Time) bool {
	return !now.After(e.WrittenAt.Add(e.TTL))
}

// Age is how long ago the entry was written.
func (e CacheEntry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// Package cache memoizes rendered program exports.
//
// Entries expire after a fixed TTL; nothing invalidates them earlier.
// Concurrent writers of the same key are fine, the last one wins.
package cache

import (
	"context"
	"hash/adler32"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long a public render is served from cache.
const DefaultTTL = 3 * time.Hour

// Cache is a byte cache with per-entry TTL.
type Cache interface {
	// Get returns the cached value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ProgramKey derives the cache key of one program render from the site
// domain, the output format and the pending flag.
func ProgramKey(domain, format string, pending bool) string {
	raw := strings.Join([]string{domain, format, strconv.FormatBool(pending)}, "|")
	return "program-" + strconv.FormatUint(uint64(adler32.Checksum([]byte(raw))), 10)
}

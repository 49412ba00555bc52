package tui

import (
	"time"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"github.com/Akashdeep-Patra/gitstate/internal/watcher"
	gocache "github.com/patrickmn/go-cache"
)

const (
	keyBranch = "branch"
	keyClean  = "clean"
	keyBisect = "bisect"
	keyRebase = "rebase"
	keyMerge  = "merge"
	keyStatus = "status"
)

// markerKeys maps a changed git-dir entry to the single query it affects.
// Anything not listed (index, HEAD, refs) may change every query.
var markerKeys = map[string]string{
	"BISECT_START":        keyBisect,
	"BISECT_LOG":          keyBisect,
	"BISECT_TERMS":        keyBisect,
	"BISECT_EXPECTED_REV": keyBisect,
	"BISECT_ANCESTORS_OK": keyBisect,
	"BISECT_NAMES":        keyBisect,
	"bisect":              keyBisect,
	"rebase-merge":        keyRebase,
	"rebase-apply":        keyRebase,
	"REBASE_HEAD":         keyRebase,
	"msgnum":              keyRebase,
	"end":                 keyRebase,
	"next":                keyRebase,
	"last":                keyRebase,
	"stopped-sha":         keyRebase,
	"MERGE_HEAD":          keyMerge,
	"MERGE_MSG":           keyMerge,
	"MERGE_MODE":          keyMerge,
}

// stateCache memoises successful state queries for a short TTL so a burst
// of refreshes runs git once. Failures are never cached. Mutations flush
// the whole cache.
type stateCache struct {
	c *gocache.Cache
}

func newStateCache(ttl time.Duration) *stateCache {
	if ttl <= 0 {
		return &stateCache{}
	}
	return &stateCache{c: gocache.New(ttl, 2*ttl)}
}

// cached returns the memoised value for key or runs fn and stores its
// value when it succeeds.
func cached[T any](sc *stateCache, key string, fn func() result.Result[T]) result.Result[T] {
	if sc.c != nil {
		if v, ok := sc.c.Get(key); ok {
			if t, ok := v.(T); ok {
				return result.Success(t)
			}
		}
	}
	r := fn()
	if sc.c != nil && r.IsSuccess() {
		sc.c.Set(key, r.Unwrap(), gocache.DefaultExpiration)
	}
	return r
}

func (sc *stateCache) flush() {
	if sc.c != nil {
		sc.c.Flush()
	}
}

func (sc *stateCache) invalidate(ev watcher.Event) {
	if sc.c == nil {
		return
	}
	for _, name := range ev.Changed {
		k, ok := markerKeys[name]
		if !ok {
			sc.c.Flush()
			return
		}
		sc.c.Delete(k)
	}
}

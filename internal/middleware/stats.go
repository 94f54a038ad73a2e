package middleware

import (
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// statsWindow is a rolling, diagnostic-only counter (§4.3: "a rolling
// statistics counter (diagnostic only)"). Each block reason is tracked as
// a TTL-cached counter key so old activity silently ages out instead of
// growing without bound.
type statsWindow struct {
	cache     *ttlcache.Cache[string, *int64]
	allowed   atomic.Int64
	forwarded atomic.Int64
}

const statsWindowTTL = 10 * time.Minute

func newStatsWindow() *statsWindow {
	cache := ttlcache.New[string, *int64](
		ttlcache.WithTTL[string, *int64](statsWindowTTL),
	)
	go cache.Start()
	return &statsWindow{cache: cache}
}

func (s *statsWindow) RecordAllowed() {
	s.allowed.Add(1)
	s.forwarded.Add(1)
}

func (s *statsWindow) RecordBlocked(reason string) {
	s.forwarded.Add(1)
	item := s.cache.Get(reason)
	if item == nil {
		var n int64 = 1
		s.cache.Set(reason, &n, ttlcache.DefaultTTL)
		return
	}
	atomic.AddInt64(item.Value(), 1)
}

// Snapshot returns the current block counts per reason, plus totals. It is
// a point-in-time read for status display only.
type Snapshot struct {
	Allowed         int64
	Forwarded       int64
	BlockedByReason map[string]int64
}

func (s *statsWindow) Snapshot() Snapshot {
	out := Snapshot{
		Allowed:         s.allowed.Load(),
		Forwarded:       s.forwarded.Load(),
		BlockedByReason: make(map[string]int64),
	}
	for _, item := range s.cache.Items() {
		out.BlockedByReason[item.Key()] = atomic.LoadInt64(item.Value())
	}
	return out
}

func (s *statsWindow) Close() {
	s.cache.Stop()
}

// Package cache is an in-memory TTL store keyed by a logical name plus a
// parameter map. It is a best-effort optimization: a miss is always safe.
//
// Entries are only evicted by expiry (lazily on Get, and by a periodic
// sweep). There is no size bound, so cardinality grows with the number of
// distinct parameter combinations seen within one TTL window.
package cache

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/metrics"
)

// Logical keys shared by the collaborators of the store.
const (
	KeyNews            = "news"
	KeyUserPreferences = "user_preferences"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = 2 * time.Minute
)

type entry struct {
	value     any
	expiresAt time.Time
}

type Options struct {
	// DefaultTTL applies when Set is called with ttl <= 0.
	DefaultTTL time.Duration
	// SweepInterval is the period of the background eviction pass.
	// Zero disables the sweep; expiry is then only enforced on Get.
	SweepInterval time.Duration
}

type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Entries     int
	LastSweep   time.Time
	SweepPanics int64
}

type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	sweepPanics atomic.Int64
	lastSweep   atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(opts Options) *Store {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}

	s := &Store{
		entries:    make(map[string]entry),
		defaultTTL: opts.DefaultTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		go s.sweepLoop(opts.SweepInterval)
	} else {
		close(s.done)
	}

	return s
}

// Key builds the canonical key: params sorted by name, joined as k=v with
// '&', prefixed by "logicalKey:". Without params the key is logicalKey.
func Key(logicalKey string, params map[string]string) string {
	if len(params) == 0 {
		return logicalKey
	}

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(logicalKey)
	b.WriteByte(':')
	for i, k := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Get returns the live value stored under (logicalKey, params).
func (s *Store) Get(logicalKey string, params map[string]string) (any, bool) {
	key := Key(logicalKey, params)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.recordMiss(logicalKey)
		return nil, false
	}

	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		// Another writer may have refreshed the entry meanwhile.
		if cur, still := s.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, key)
			s.recordEviction("expired", 1)
		}
		s.mu.Unlock()
		s.recordMiss(logicalKey)
		return nil, false
	}

	s.hits.Add(1)
	metrics.CacheHits.WithLabelValues(logicalKey).Inc()
	return e.value, true
}

// Set stores value unconditionally. ttl <= 0 uses the store default.
func (s *Store) Set(logicalKey string, params map[string]string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	key := Key(logicalKey, params)

	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	n := len(s.entries)
	s.mu.Unlock()

	metrics.CacheEntries.Set(float64(n))
}

// Delete removes the entry if present. Deleting a missing key is a no-op.
func (s *Store) Delete(logicalKey string, params map[string]string) {
	key := Key(logicalKey, params)

	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	n := len(s.entries)
	s.mu.Unlock()

	if ok {
		s.recordEviction("deleted", 1)
	}
	metrics.CacheEntries.Set(float64(n))
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[string]entry)
	s.mu.Unlock()

	s.recordEviction("cleared", n)
	metrics.CacheEntries.Set(0)
}

// Len counts stored entries, including expired ones not yet evicted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Stats() Stats {
	st := Stats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Evictions:   s.evictions.Load(),
		Entries:     s.Len(),
		SweepPanics: s.sweepPanics.Load(),
	}
	if ns := s.lastSweep.Load(); ns != 0 {
		st.LastSweep = time.Unix(0, ns)
	}
	return st
}

// Close stops the background sweep. It is safe to call more than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.safeSweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) safeSweep() {
	defer func() {
		if r := recover(); r != nil {
			s.sweepPanics.Add(1)
			debuglog.Errorf("cache sweep panicked: %v", r)
		}
	}()
	if n := s.sweep(); n > 0 {
		debuglog.Debugf("cache sweep evicted %d entries", n)
	}
}

// sweep evicts expired entries. Keys are collected under the read lock and
// removed one at a time so Get/Set are never blocked for a full pass.
func (s *Store) sweep() int {
	now := s.now()

	s.mu.RLock()
	var expired []string
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			expired = append(expired, key)
		}
	}
	s.mu.RUnlock()

	evicted := 0
	for _, key := range expired {
		s.mu.Lock()
		if e, ok := s.entries[key]; ok && !now.Before(e.expiresAt) {
			delete(s.entries, key)
			evicted++
		}
		s.mu.Unlock()
	}

	s.lastSweep.Store(now.UnixNano())
	s.recordEviction("expired", evicted)
	metrics.CacheEntries.Set(float64(s.Len()))
	return evicted
}

func (s *Store) recordMiss(logicalKey string) {
	s.misses.Add(1)
	metrics.CacheMisses.WithLabelValues(logicalKey).Inc()
}

func (s *Store) recordEviction(reason string, n int) {
	if n <= 0 {
		return
	}
	s.evictions.Add(int64(n))
	metrics.CacheEvictions.WithLabelValues(reason).Add(float64(n))
}

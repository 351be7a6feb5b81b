// Package cache implements the response cache for upstream API calls: an
// in-memory keyed store with per-category TTL expiry and a periodic JSON
// snapshot on disk so a restart does not start cold.
package cache

import (
	"encoding/json"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/config"
)

// Category classifies a cached response and selects its TTL.
type Category string

const (
	CategoryAccount    Category = "account"
	CategoryAdList     Category = "ad_list"
	CategoryAdInsights Category = "ad_insights"
	CategoryToday      Category = "today"
	CategoryCreative   Category = "creative"
	CategoryCampaigns  Category = "campaigns"
	CategoryAdsets     Category = "adsets"
	CategoryDefault    Category = "default"
)

// TTLTable maps categories to entry lifetimes.
type TTLTable map[Category]time.Duration

// DefaultTTLs returns the canonical TTL table.
func DefaultTTLs() TTLTable {
	return TTLTable{
		CategoryAccount:    10 * time.Minute,
		CategoryAdList:     5 * time.Minute,
		CategoryAdInsights: 5 * time.Minute,
		CategoryToday:      2 * time.Minute,
		CategoryCreative:   30 * time.Minute,
		CategoryCampaigns:  10 * time.Minute,
		CategoryAdsets:     10 * time.Minute,
		CategoryDefault:    5 * time.Minute,
	}
}

// TTLsFromConfig builds the TTL table from configured minute values, falling
// back to the defaults for any unset category.
func TTLsFromConfig(cfg config.CacheConfig) TTLTable {
	t := DefaultTTLs()
	set := func(cat Category, mins int) {
		if mins > 0 {
			t[cat] = time.Duration(mins) * time.Minute
		}
	}
	set(CategoryAccount, cfg.AccountTTLMins)
	set(CategoryAdList, cfg.AdListTTLMins)
	set(CategoryAdInsights, cfg.InsightsTTLMins)
	set(CategoryToday, cfg.TodayTTLMins)
	set(CategoryCreative, cfg.CreativeTTLMins)
	set(CategoryCampaigns, cfg.CampaignsTTLMins)
	set(CategoryAdsets, cfg.CampaignsTTLMins)
	set(CategoryDefault, cfg.DefaultTTLMins)
	return t
}

// Key derives the canonical cache key for an endpoint and its query
// parameters. Parameters are sorted so equivalent requests share a key.
func Key(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
	}
	return b.String()
}

type entry struct {
	value  json.RawMessage
	expiry time.Time
}

// Store is the TTL cache. Safe for concurrent use within a single process;
// concurrent Set for the same key is last-write-wins.
type Store struct {
	mu            sync.Mutex
	entries       map[string]entry
	ttls          TTLTable
	path          string
	snapshotEvery int
	writes        int
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTLs overrides the TTL table.
func WithTTLs(t TTLTable) Option {
	return func(s *Store) { s.ttls = t }
}

// WithSnapshotEvery sets how many writes elapse between disk snapshots.
func WithSnapshotEvery(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.snapshotEvery = n
		}
	}
}

// WithNow sets the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store backed by the snapshot file at path. A missing or
// corrupt snapshot is non-fatal: the store starts empty. Expired entries
// are pruned during load.
func New(path string, opts ...Option) *Store {
	s := &Store{
		entries:       make(map[string]entry),
		ttls:          DefaultTTLs(),
		path:          path,
		snapshotEvery: 10,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

// TTL returns the lifetime for a category.
func (s *Store) TTL(cat Category) time.Duration {
	if d, ok := s.ttls[cat]; ok {
		return d
	}
	return s.ttls[CategoryDefault]
}

// Get returns the cached value for key if present and unexpired. A stale
// entry is evicted as a side effect and reported as absent.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiry) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set inserts or overwrites the entry for key with the category's TTL.
// Every snapshotEvery-th write also persists the store to disk.
func (s *Store) Set(key string, value json.RawMessage, cat Category) {
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiry: s.now().Add(s.TTL(cat))}
	s.writes++
	flush := s.writes%s.snapshotEvery == 0
	s.mu.Unlock()

	if flush {
		if err := s.Flush(); err != nil {
			zap.L().Warn("cache: snapshot failed", zap.Error(err))
		}
	}
}

// InvalidateExpired sweeps the store, dropping expired entries. Returns the
// number removed.
func (s *Store) InvalidateExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiry) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Clear drops all entries and removes the durable snapshot.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.writes = 0
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "cache: remove snapshot")
	}
	return nil
}

// KeyStat describes one live entry for observability.
type KeyStat struct {
	Key           string  `json:"key"`
	RemainingSecs float64 `json:"remaining_secs"`
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Total   int       `json:"total"`
	Active  int       `json:"active"`
	Expired int       `json:"expired"`
	Keys    []KeyStat `json:"keys"`
}

// Stats reports total/active/expired counts and per-key remaining TTL.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Stats{Total: len(s.entries)}
	for k, e := range s.entries {
		if now.Before(e.expiry) {
			st.Active++
			st.Keys = append(st.Keys, KeyStat{Key: k, RemainingSecs: e.expiry.Sub(now).Seconds()})
		} else {
			st.Expired++
		}
	}
	sort.Slice(st.Keys, func(i, j int) bool { return st.Keys[i].Key < st.Keys[j].Key })
	return st
}

// snapshot is the on-disk representation.
type snapshot struct {
	Cache     map[string]json.RawMessage `json:"cache"`
	Expiry    map[string]time.Time       `json:"expiry"`
	LastSaved time.Time                  `json:"lastSaved"`
}

// Flush serializes the store to its snapshot file.
func (s *Store) Flush() error {
	s.mu.Lock()
	snap := snapshot{
		Cache:     make(map[string]json.RawMessage, len(s.entries)),
		Expiry:    make(map[string]time.Time, len(s.entries)),
		LastSaved: s.now(),
	}
	for k, e := range s.entries {
		snap.Cache[k] = e.value
		snap.Expiry[k] = e.expiry
	}
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "cache: marshal snapshot")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return eris.Wrap(err, "cache: write snapshot")
	}
	return nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("cache: read snapshot failed, starting empty", zap.Error(err))
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		zap.L().Warn("cache: corrupt snapshot, starting empty",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return
	}

	now := s.now()
	loaded, pruned := 0, 0
	for k, v := range snap.Cache {
		exp, ok := snap.Expiry[k]
		if !ok || !now.Before(exp) {
			pruned++
			continue
		}
		s.entries[k] = entry{value: v, expiry: exp}
		loaded++
	}
	zap.L().Info("cache: snapshot loaded",
		zap.Int("entries", loaded),
		zap.Int("pruned", pruned),
	)
}

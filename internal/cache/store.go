// Package cache implements the per-agent response cache: TTL expiry,
// size-aware LRU eviction, and source-keyed lookup for call deduplication.
package cache

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mcplens/mcplens/internal/domain/proxy"
)

// Defaults applied by DefaultConfig.
const (
	DefaultMaxEntriesPerAgent = 50
	DefaultMaxBytesPerAgent   = 100 << 20
	DefaultMaxAgents          = 1000
	DefaultTTL                = 300 * time.Second

	idLen = 12 // URL-safe base64 chars, no padding
)

// Config bounds the store.
type Config struct {
	MaxEntriesPerAgent int
	MaxBytesPerAgent   int64
	MaxAgents          int
	TTL                time.Duration
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		MaxEntriesPerAgent: DefaultMaxEntriesPerAgent,
		MaxBytesPerAgent:   DefaultMaxBytesPerAgent,
		MaxAgents:          DefaultMaxAgents,
		TTL:                DefaultTTL,
	}
}

// Entry is one cached response. Content is immutable after insertion.
type Entry struct {
	ID           string
	AgentID      string
	Content      string
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
	SizeBytes    int64
	SourceTool   string
	SourceArgs   json.RawMessage

	sourceKey uint64
}

// Handle returns the public "{agentId}:{id}" form.
func (e *Entry) Handle() string { return e.AgentID + ":" + e.ID }

// Stats is a point-in-time summary of the store.
type Stats struct {
	Agents       int              `json:"agents"`
	TotalEntries int              `json:"totalEntries"`
	TotalBytes   int64            `json:"totalBytes"`
	PerAgent     map[string]Agent `json:"perAgent"`
}

// Agent is the per-agent slice of Stats.
type Agent struct {
	Entries     int   `json:"entries"`
	Bytes       int64 `json:"bytes"`
	AccessCount int64 `json:"accessCount"`
}

type bucket struct {
	entries  map[string]*Entry
	bySource map[uint64]string // source key -> entry id
}

// Store is the cache. A single mutex guards all agents; operations are
// short and lock-free work (hashing, id generation) happens outside it.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	agents map[string]*bucket

	// now is replaceable in tests.
	now func() time.Time
}

// New builds a store with the given limits. Zero or negative limits fall
// back to defaults.
func New(cfg Config, logger *slog.Logger) *Store {
	def := DefaultConfig()
	if cfg.MaxEntriesPerAgent <= 0 {
		cfg.MaxEntriesPerAgent = def.MaxEntriesPerAgent
	}
	if cfg.MaxBytesPerAgent <= 0 {
		cfg.MaxBytesPerAgent = def.MaxBytesPerAgent
	}
	if cfg.MaxAgents <= 0 {
		cfg.MaxAgents = def.MaxAgents
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:    cfg,
		logger: logger,
		agents: make(map[string]*bucket),
		now:    time.Now,
	}
}

// Put inserts content for an agent and returns the public handle.
func (s *Store) Put(agentID, content, sourceTool string, sourceArgs json.RawMessage) (string, error) {
	size := int64(len(content))
	if size > s.cfg.MaxBytesPerAgent {
		return "", proxy.Errorf(proxy.KindCacheFull,
			"content size %d exceeds per-agent byte limit %d", size, s.cfg.MaxBytesPerAgent)
	}

	id, err := newID()
	if err != nil {
		return "", fmt.Errorf("generate cache id: %w", err)
	}
	key := SourceKey(sourceTool, sourceArgs)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.agents[agentID]
	if !ok {
		if len(s.agents) >= s.cfg.MaxAgents {
			return "", proxy.Errorf(proxy.KindTooManyAgents,
				"agent limit %d reached", s.cfg.MaxAgents)
		}
		b = &bucket{
			entries:  make(map[string]*Entry),
			bySource: make(map[uint64]string),
		}
		s.agents[agentID] = b
	}

	s.sweepLocked(b, now)

	// Evict until both caps hold for the incoming entry.
	for len(b.entries) >= s.cfg.MaxEntriesPerAgent || s.bytesLocked(b)+size > s.cfg.MaxBytesPerAgent {
		victim := s.victimLocked(b, now)
		if victim == nil {
			return "", proxy.Errorf(proxy.KindCacheFull,
				"cannot free %d bytes for agent %s", size, agentID)
		}
		s.deleteLocked(b, victim)
		s.logger.Debug("cache entry evicted",
			"agent", agentID,
			"id", victim.ID,
			"size", victim.SizeBytes,
			"idle", now.Sub(victim.LastAccessed))
	}

	e := &Entry{
		ID:           id,
		AgentID:      agentID,
		Content:      content,
		CreatedAt:    now,
		LastAccessed: now,
		SizeBytes:    size,
		SourceTool:   sourceTool,
		SourceArgs:   sourceArgs,
		sourceKey:    key,
	}
	b.entries[id] = e
	if sourceTool != "" {
		b.bySource[key] = id
	}
	return e.Handle(), nil
}

// Get looks an entry up by handle, refreshing its access time. Expired
// entries are removed and reported as CacheExpired.
func (s *Store) Get(handle string) (*Entry, error) {
	agentID, id, err := ParseHandle(handle)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.agents[agentID]
	if !ok {
		return nil, proxy.Errorf(proxy.KindCacheMiss, "no entries for cache_id %q", handle)
	}
	e, ok := b.entries[id]
	if !ok {
		return nil, proxy.Errorf(proxy.KindCacheMiss, "no entry for cache_id %q", handle)
	}

	now := s.now()
	if s.expired(e, now) {
		s.deleteLocked(b, e)
		return nil, proxy.Errorf(proxy.KindCacheExpired, "cache_id %q expired", handle)
	}
	e.LastAccessed = now
	e.AccessCount++
	return e, nil
}

// FindBySource returns the live entry previously stored for the same tool
// and arguments, if any. Used to deduplicate fresh-mode calls.
func (s *Store) FindBySource(agentID, sourceTool string, sourceArgs json.RawMessage) (*Entry, bool) {
	key := SourceKey(sourceTool, sourceArgs)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.agents[agentID]
	if !ok {
		return nil, false
	}
	id, ok := b.bySource[key]
	if !ok {
		return nil, false
	}
	e, ok := b.entries[id]
	if !ok {
		delete(b.bySource, key)
		return nil, false
	}

	now := s.now()
	if s.expired(e, now) {
		s.deleteLocked(b, e)
		return nil, false
	}
	e.LastAccessed = now
	e.AccessCount++
	return e, true
}

// Remove deletes an entry. Missing handles are not an error.
func (s *Store) Remove(handle string) error {
	agentID, id, err := ParseHandle(handle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.agents[agentID]; ok {
		if e, ok := b.entries[id]; ok {
			s.deleteLocked(b, e)
		}
	}
	return nil
}

// ClearAgent drops every entry for one agent.
func (s *Store) ClearAgent(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, agentID)
}

// ClearAll empties the store.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = make(map[string]*bucket)
}

// Stats reports live (non-expired) usage.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := Stats{PerAgent: make(map[string]Agent)}
	for agentID, b := range s.agents {
		s.sweepLocked(b, now)
		if len(b.entries) == 0 {
			continue
		}
		var a Agent
		for _, e := range b.entries {
			a.Entries++
			a.Bytes += e.SizeBytes
			a.AccessCount += e.AccessCount
		}
		out.PerAgent[agentID] = a
		out.Agents++
		out.TotalEntries += a.Entries
		out.TotalBytes += a.Bytes
	}
	return out
}

// ParseHandle splits "{agentId}:{id}" and validates the id shape.
func ParseHandle(handle string) (agentID, id string, err error) {
	i := strings.LastIndex(handle, ":")
	if i <= 0 || i == len(handle)-1 {
		return "", "", proxy.Errorf(proxy.KindCacheMiss, "malformed cache_id %q", handle)
	}
	agentID, id = handle[:i], handle[i+1:]
	if len(id) != idLen {
		return "", "", proxy.Errorf(proxy.KindCacheMiss, "malformed cache_id %q", handle)
	}
	return agentID, id, nil
}

// SourceKey hashes a tool name and its raw arguments into the dedupe key.
func SourceKey(sourceTool string, sourceArgs json.RawMessage) uint64 {
	h := xxhash.New()
	h.WriteString(sourceTool)
	h.Write([]byte{0})
	h.Write(sourceArgs)
	return h.Sum64()
}

func newID() (string, error) {
	raw := make([]byte, 9) // 9 bytes -> 12 base64 chars
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (s *Store) expired(e *Entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) >= s.cfg.TTL
}

func (s *Store) sweepLocked(b *bucket, now time.Time) {
	for _, e := range b.entries {
		if s.expired(e, now) {
			s.deleteLocked(b, e)
		}
	}
}

func (s *Store) bytesLocked(b *bucket) int64 {
	var total int64
	for _, e := range b.entries {
		total += e.SizeBytes
	}
	return total
}

// victimLocked picks the entry maximizing idleSeconds*sizeBytes, breaking
// ties toward the smallest LastAccessed.
func (s *Store) victimLocked(b *bucket, now time.Time) *Entry {
	var victim *Entry
	var victimScore float64
	for _, e := range b.entries {
		idle := now.Sub(e.LastAccessed).Seconds()
		if idle < 0 {
			idle = 0
		}
		score := idle * float64(e.SizeBytes)
		switch {
		case victim == nil:
		case score > victimScore:
		case score == victimScore && e.LastAccessed.Before(victim.LastAccessed):
		default:
			continue
		}
		victim = e
		victimScore = score
	}
	return victim
}

func (s *Store) deleteLocked(b *bucket, e *Entry) {
	delete(b.entries, e.ID)
	if id, ok := b.bySource[e.sourceKey]; ok && id == e.ID {
		delete(b.bySource, e.sourceKey)
	}
}

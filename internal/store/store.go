// Package store is the shared read-through cache in front of the remote
// API. Every screen reads collections through it, and every mutation made
// through it evicts the affected collections, locally and, when a publisher
// is configured, on every other instance.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Invalidation targets. TransactionsOf narrows TargetTransactions to one
// account.
const (
	TargetAccounts     = "accounts"
	TargetCategories   = "categories"
	TargetTransactions = "transactions"
)

func TransactionsOf(accountID string) string {
	return TargetTransactions + ":" + accountID
}

// Publisher fans invalidations out to other instances.
type Publisher interface {
	PublishInvalidation(ctx context.Context, origin, scope string, targets []string) error
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
	InstanceID string
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	Entries       int
	Evictions     int
}

// Store holds the cached collections of every session, partitioned by a
// hash of the session token.
type Store struct {
	accounts     *cache.LRUCache[[]core.Account]
	categories   *cache.LRUCache[[]core.Category]
	transactions *cache.LRUCache[[]core.Transaction]

	group      singleflight.Group
	generation atomic.Uint64
	publisher  Publisher
	instanceID string
	logger     *log.Logger

	hits, misses, invalidations atomic.Int64
}

func New(cfg Config, logger *log.Logger) *Store {
	if cfg.MaxEntries < 1 {
		cfg.MaxEntries = 1000
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		accounts:     cache.NewLRUCache[[]core.Account](cfg.MaxEntries, cfg.TTL),
		categories:   cache.NewLRUCache[[]core.Category](cfg.MaxEntries, cfg.TTL),
		transactions: cache.NewLRUCache[[]core.Transaction](cfg.MaxEntries, cfg.TTL),
		instanceID:   cfg.InstanceID,
		logger:       logger.WithComponent(log.ComponentStore),
	}
}

// SetPublisher enables cross-instance invalidation.
func (s *Store) SetPublisher(p Publisher) {
	s.publisher = p
}

func (s *Store) InstanceID() string { return s.instanceID }

// Register adds the store's caches to m for periodic expiry sweeps.
func (s *Store) Register(m *cache.Manager) {
	m.Register(s.accounts)
	m.Register(s.categories)
	m.Register(s.transactions)
}

func (s *Store) Stats() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Invalidations: s.invalidations.Load(),
		Entries:       s.accounts.Size() + s.categories.Size() + s.transactions.Size(),
		Evictions:     s.accounts.Evictions() + s.categories.Evictions() + s.transactions.Evictions(),
	}
}

// Scope derives the cache partition of a token. Tokens never appear in keys.
func Scope(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

// Apply evicts targets within scope. It does not publish.
func (s *Store) Apply(scope string, targets []string) {
	if scope == "" {
		return
	}
	s.generation.Add(1)
	s.invalidations.Add(1)
	for _, t := range targets {
		switch {
		case t == TargetAccounts:
			s.accounts.Delete(accountsKey(scope))
		case t == TargetCategories:
			s.categories.Delete(categoriesKey(scope))
		case t == TargetTransactions:
			s.transactions.DeletePrefix(scope + ":tx:")
		case strings.HasPrefix(t, TargetTransactions+":"):
			s.transactions.DeletePrefix(transactionsPrefix(scope, strings.TrimPrefix(t, TargetTransactions+":")))
		}
	}
}

func (s *Store) invalidate(ctx context.Context, scope string, targets ...string) {
	if scope == "" {
		return
	}
	s.Apply(scope, targets)
	s.logger.DebugContext(ctx, "Invalidated collections",
		log.FieldOperation, log.OpInvalidate, "targets", targets)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInvalidation(ctx, s.instanceID, scope, targets); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish invalidation",
			log.FieldErrorType, log.ErrorTypeNetwork, log.FieldError, err)
	}
}

// load returns the cached value for key or fetches it once for all
// concurrent callers. A result fetched across an invalidation is returned
// but not cached.
func load[T any](s *Store, c *cache.LRUCache[T], key string, fetch func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		s.hits.Add(1)
		return v, nil
	}
	s.misses.Add(1)
	v, err, _ := s.group.Do(key, func() (any, error) {
		gen := s.generation.Load()
		v, err := fetch()
		if err == nil && s.generation.Load() == gen {
			c.Set(key, v)
		}
		return v, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func accountsKey(scope string) string   { return scope + ":accounts" }
func categoriesKey(scope string) string { return scope + ":categories" }

func transactionsPrefix(scope, accountID string) string {
	return scope + ":tx:" + accountID + "?"
}

func transactionsKey(scope, accountID string, f api.TransactionFilter) string {
	return transactionsPrefix(scope, accountID) + f.Values().Encode()
}

package symbols

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrExchangeUnknown = errors.New("exchange not found in symbol catalog")
	ErrSymbolNotFound  = errors.New("symbol mapping not found")
)

// Catalog is the on-disk shape produced by the catalog refresh job:
// exchange id -> universal symbol -> exchange-native id.
type Catalog map[string]map[string]string

// Resolver translates between universal trading-pair notation and
// exchange-native identifiers, backed by a per-exchange cache loaded from
// the catalog file. The cache is valid for a TTL measured against the
// file's modification time and is replaced wholesale on expiry, never
// patched incrementally.
type Resolver struct {
	path string
	ttl  time.Duration

	mu       sync.RWMutex
	tables   Catalog
	modTime  time.Time
	loadedAt time.Time

	logger zerolog.Logger
}

// NewResolver creates a Resolver over the given catalog file.
func NewResolver(path string, ttl time.Duration, logger zerolog.Logger) *Resolver {
	return &Resolver{
		path:   path,
		ttl:    ttl,
		logger: logger.With().Str("component", "symbol_resolver").Logger(),
	}
}

// Resolve translates a universal symbol to the exchange-native id.
func (r *Resolver) Resolve(universal, exchangeID string) (string, error) {
	table, err := r.table(exchangeID)
	if err != nil {
		return "", err
	}
	native, ok := table[universal]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrSymbolNotFound, universal, exchangeID)
	}
	return native, nil
}

// Reverse translates an exchange-native id back to the universal symbol.
// The reverse map is derived on demand by inverting the forward table;
// per-exchange tables are small and reverse lookups are rare relative to
// trading latency.
func (r *Resolver) Reverse(native, exchangeID string) (string, error) {
	table, err := r.table(exchangeID)
	if err != nil {
		return "", err
	}
	for universal, id := range table {
		if id == native {
			return universal, nil
		}
	}
	return "", fmt.Errorf("%w: %s on %s", ErrSymbolNotFound, native, exchangeID)
}

// table returns the forward map for one exchange, refreshing the whole
// catalog first if the cache has expired.
func (r *Resolver) table(exchangeID string) (map[string]string, error) {
	r.mu.RLock()
	fresh := r.tables != nil && time.Since(r.loadedAt) < r.ttl
	table, ok := r.tables[exchangeID]
	r.mu.RUnlock()

	if fresh {
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrExchangeUnknown, exchangeID)
		}
		return table, nil
	}

	if err := r.refresh(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok = r.tables[exchangeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExchangeUnknown, exchangeID)
	}
	return table, nil
}

// refresh reloads the catalog file and swaps the whole table set in one
// write. Readers holding a previously returned map keep a consistent view.
func (r *Resolver) refresh() error {
	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("symbol catalog: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if r.tables != nil && time.Since(r.loadedAt) < r.ttl && info.ModTime().Equal(r.modTime) {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("symbol catalog: %w", err)
	}

	catalog := Catalog{}
	if err := json.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("symbol catalog: decode %s: %w", r.path, err)
	}

	r.tables = catalog
	r.modTime = info.ModTime()
	// Freshness is anchored to the file's mtime: a stale file on disk
	// forces a reread (and likely an upstream refresh) on the next expiry.
	r.loadedAt = info.ModTime()
	if time.Since(r.loadedAt) >= r.ttl {
		r.logger.Warn().Time("mod_time", info.ModTime()).
			Msg("symbol catalog file is older than the cache TTL")
		r.loadedAt = time.Now()
	}

	r.logger.Info().Int("exchanges", len(catalog)).Msg("symbol catalog loaded")
	return nil
}

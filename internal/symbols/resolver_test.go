package symbols_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepipe/internal/symbols"
)

func writeCatalog(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolverRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	writeCatalog(t, path, `{
		"binance": {"BTC/USDT": "BTCUSDT", "ETH/USDT": "ETHUSDT"},
		"bybit":   {"BTC/USDT": "BTCUSDT"}
	}`)

	r := symbols.NewResolver(path, time.Hour, zerolog.Nop())

	native, err := r.Resolve("BTC/USDT", "binance")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", native)

	universal, err := r.Reverse("ETHUSDT", "binance")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", universal)

	// Reverse of Resolve returns the original universal symbol.
	native, err = r.Resolve("BTC/USDT", "bybit")
	require.NoError(t, err)
	universal, err = r.Reverse(native, "bybit")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", universal)
}

func TestResolverNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	writeCatalog(t, path, `{"binance": {"BTC/USDT": "BTCUSDT"}}`)

	r := symbols.NewResolver(path, time.Hour, zerolog.Nop())

	_, err := r.Resolve("DOGE/USDT", "binance")
	assert.ErrorIs(t, err, symbols.ErrSymbolNotFound)

	_, err = r.Reverse("DOGEUSDT", "binance")
	assert.ErrorIs(t, err, symbols.ErrSymbolNotFound)

	_, err = r.Resolve("BTC/USDT", "kraken")
	assert.ErrorIs(t, err, symbols.ErrExchangeUnknown)
}

func TestResolverMissingCatalog(t *testing.T) {
	r := symbols.NewResolver(filepath.Join(t.TempDir(), "absent.json"), time.Hour, zerolog.Nop())

	_, err := r.Resolve("BTC/USDT", "binance")
	assert.Error(t, err)
}

func TestResolverRefreshOnExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	writeCatalog(t, path, `{"binance": {"BTC/USDT": "BTCUSDT"}}`)

	// A nanosecond TTL forces a wholesale reload on every lookup.
	r := symbols.NewResolver(path, time.Nanosecond, zerolog.Nop())

	_, err := r.Resolve("BTC/USDT", "binance")
	require.NoError(t, err)
	_, err = r.Resolve("SOL/USDT", "binance")
	assert.ErrorIs(t, err, symbols.ErrSymbolNotFound)

	writeCatalog(t, path, `{"binance": {"BTC/USDT": "BTCUSDT", "SOL/USDT": "SOLUSDT"}}`)

	native, err := r.Resolve("SOL/USDT", "binance")
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", native)
}

func TestResolverCachesWithinTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	writeCatalog(t, path, `{"binance": {"BTC/USDT": "BTCUSDT"}}`)

	r := symbols.NewResolver(path, time.Hour, zerolog.Nop())

	_, err := r.Resolve("BTC/USDT", "binance")
	require.NoError(t, err)

	// Catalog changes on disk are invisible until the TTL lapses.
	writeCatalog(t, path, `{"binance": {"SOL/USDT": "SOLUSDT"}}`)

	native, err := r.Resolve("BTC/USDT", "binance")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", native)
}

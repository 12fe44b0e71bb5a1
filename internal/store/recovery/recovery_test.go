package recovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"optdesk/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "live", "recovery.json"))
	require.NoError(t, err)
	f.now = func() time.Time { return time.Date(2025, 10, 14, 4, 0, 0, 0, time.UTC) }

	_, ok, err := f.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	live := domain.LiveTradeState{Current: &domain.Trade{
		ID: "LIVE-1", Status: domain.StatusExiting, TradingSymbol: "NIFTY14OCT25C25000",
		Qty: 75, EntryPrice: 100, SLPrice: 70, EntryOrderNo: "1", ExitOrderNo: "2",
	}}
	require.NoError(t, f.Save(live))

	rec, ok, err := f.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Live.NeedsResync())
	assert.Equal(t, "2", rec.Live.Current.ExitOrderNo)
	assert.Equal(t, 2025, rec.SavedAt.Year())

	entries, _ := os.ReadDir(filepath.Dir(f.Path()))
	assert.Len(t, entries, 1)
}

func TestLoadRejectsInvalidRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"live":{"current":{"id":"x","status":"WEIRD","tradingSymbol":"S","qty":1,"entryPrice":1}},"savedAt":"2025-10-14T04:00:00Z"}`), 0o644))
	f, err := NewFile(path)
	require.NoError(t, err)

	_, ok, err := f.Load()
	assert.Error(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, _, err = f.Load()
	assert.Error(t, err)
}

func TestLoadValidatesNumbersExactly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery.json")
	f, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"live":{"current":{"id":"LIVE-9","status":"OPEN","tradingSymbol":"S","qty":75,"entryPrice":101.35}},"savedAt":"2025-10-14T04:00:00Z"}`), 0o644))
	rec, ok, err := f.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 75, rec.Live.Current.Qty)
	assert.Equal(t, 101.35, rec.Live.Current.EntryPrice)

	require.NoError(t, os.WriteFile(path, []byte(`{"live":{"current":{"id":"LIVE-9","status":"OPEN","tradingSymbol":"S","qty":75.5,"entryPrice":1}},"savedAt":"2025-10-14T04:00:00Z"}`), 0o644))
	_, ok, err = f.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recovery record")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(`{"live":`), 0o644))
	_, _, err = f.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse recovery record")
}

package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zzhtl/biga/internal/market"
)

// ErrSymbolNotFound is returned when a provider has no bars for the
// requested symbol.
var ErrSymbolNotFound = errors.New("history: symbol not found")

// ErrReportNotFound is returned when no persisted backtest report
// matches the requested run ID.
var ErrReportNotFound = errors.New("history: report not found")

// Provider serves daily bar history. Implementations must return bars
// sorted ascending by date; callers own the returned slice.
type Provider interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error)
}

// MemoryProvider holds bar series in memory. It backs tests and the
// backtest CLI after a CSV load.
type MemoryProvider struct {
	mu     sync.RWMutex
	series map[string][]market.Bar
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{series: map[string][]market.Bar{}}
}

// Put stores a series under its symbol, sorted and with derived fields
// filled. The input slice is copied.
func (m *MemoryProvider) Put(symbol string, bars []market.Bar) error {
	cp := make([]market.Bar, len(bars))
	copy(cp, bars)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })
	cp = market.Derive(cp)
	if err := market.Validate(cp); err != nil {
		return fmt.Errorf("history: invalid series for %s: %w", symbol, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[symbol] = cp
	return nil
}

func (m *MemoryProvider) Bars(_ context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	m.mu.RLock()
	series, ok := m.series[symbol]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	out := make([]market.Bar, 0, len(series))
	for _, b := range series {
		if !start.IsZero() && b.Date.Before(start) {
			continue
		}
		if !end.IsZero() && b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Symbols lists the stored symbols, sorted.
func (m *MemoryProvider) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.series))
	for s := range m.series {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

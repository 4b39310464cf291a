package market

import (
	"sort"
	"sync"
	"time"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/model"
)

// registryState holds the thread-safe market cache.
type registryState struct {
	mu sync.RWMutex

	// All known markets indexed by symbol.
	markets map[string]model.Market

	// Sorted snapshot handed to readers; rebuilt on every replace.
	sorted []model.Market

	// Last successful REST sync timestamp.
	lastSyncAt time.Time
}

func newState() *registryState {
	return &registryState{
		markets: make(map[string]model.Market),
	}
}

// snapshot returns a copy of all markets (read-locked).
func (s *registryState) snapshot() []model.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Market, len(s.sorted))
	copy(result, s.sorted)
	return result
}

func (s *registryState) lastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSyncAt
}

// replace swaps in a freshly fetched list and reports how many symbols
// appeared and disappeared (write-locked).
func (s *registryState) replace(markets []model.Market, at time.Time) (added, removed int) {
	next := make(map[string]model.Market, len(markets))
	for _, m := range markets {
		next[m.Symbol] = m
	}

	sorted := make([]model.Market, 0, len(next))
	for _, m := range next {
		sorted = append(sorted, m)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })

	s.mu.Lock()
	defer s.mu.Unlock()

	for symbol := range next {
		if _, ok := s.markets[symbol]; !ok {
			added++
		}
	}
	for symbol := range s.markets {
		if _, ok := next[symbol]; !ok {
			removed++
		}
	}

	s.markets = next
	s.sorted = sorted
	s.lastSyncAt = at
	return added, removed
}

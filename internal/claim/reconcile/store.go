package reconcile

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/shared/types"
)

// LedgerEntry is the deductible one item applied within its period
type LedgerEntry struct {
	ItemID  types.ID
	ClaimID types.ID
	Applied decimal.Decimal
}

// HistoryTx is the view of a single HistoryKey inside its critical section
type HistoryTx interface {
	// History returns the prior settled claims snapshot, zero when none exists
	History(ctx context.Context) (domain.HistoryClaimAmount, error)
	// AppliedExcept sums the ledger for the key without the given item
	AppliedExcept(ctx context.Context, itemID types.ID) (decimal.Decimal, error)
	// Record stores an item's applied deductible, replacing an earlier entry
	Record(ctx context.Context, entry LedgerEntry) error
}

// HistoryStore runs fn with exclusive access to key. Writes made through tx
// become visible only when fn returns nil.
type HistoryStore interface {
	WithKey(ctx context.Context, key domain.HistoryKey, fn func(ctx context.Context, tx HistoryTx) error) error
	// Release drops every ledger entry recorded for claimID, under the lock of
	// each key it touches, and returns the total given back
	Release(ctx context.Context, claimID types.ID) (decimal.Decimal, error)
}

// MemoryHistoryStore keeps history and ledger in process, serializing work per key
type MemoryHistoryStore struct {
	mu      sync.Mutex
	locks   map[string]*keyLock
	history map[string]domain.HistoryClaimAmount
	ledger  map[string]map[types.ID]LedgerEntry
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		locks:   make(map[string]*keyLock),
		history: make(map[string]domain.HistoryClaimAmount),
		ledger:  make(map[string]map[types.ID]LedgerEntry),
	}
}

// Seed loads the prior settled claims snapshot for a key
func (s *MemoryHistoryStore) Seed(h domain.HistoryClaimAmount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[h.Key.String()] = h
}

// Running returns the snapshot with the period ledger added to Deductible
func (s *MemoryHistoryStore) Running(key domain.HistoryKey) domain.HistoryClaimAmount {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	h, ok := s.history[k]
	if !ok {
		h = domain.HistoryClaimAmount{Key: key}
	}
	for _, e := range s.ledger[k] {
		h.Deductible = h.Deductible.Add(e.Applied)
	}
	return h
}

func (s *MemoryHistoryStore) WithKey(ctx context.Context, key domain.HistoryKey, fn func(ctx context.Context, tx HistoryTx) error) error {
	k := key.String()
	unlock := s.lock(k)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s, key: key, k: k}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.ledger[k]
	if entries == nil {
		entries = make(map[types.ID]LedgerEntry)
		s.ledger[k] = entries
	}
	for _, e := range tx.writes {
		entries[e.ItemID] = e
	}
	return nil
}

func (s *MemoryHistoryStore) Release(ctx context.Context, claimID types.ID) (decimal.Decimal, error) {
	released := decimal.Zero
	for _, k := range s.claimKeys(claimID) {
		if err := ctx.Err(); err != nil {
			return released, err
		}

		unlock := s.lock(k)
		s.mu.Lock()
		for id, e := range s.ledger[k] {
			if e.ClaimID == claimID {
				released = released.Add(e.Applied)
				delete(s.ledger[k], id)
			}
		}
		s.mu.Unlock()
		unlock()
	}
	return released, nil
}

func (s *MemoryHistoryStore) claimKeys(claimID types.ID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for k, entries := range s.ledger {
		for _, e := range entries {
			if e.ClaimID == claimID {
				keys = append(keys, k)
				break
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryHistoryStore) lock(k string) func() {
	s.mu.Lock()
	l, ok := s.locks[k]
	if !ok {
		l = &keyLock{}
		s.locks[k] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, k)
		}
		s.mu.Unlock()
	}
}

type memoryTx struct {
	store  *MemoryHistoryStore
	key    domain.HistoryKey
	k      string
	writes []LedgerEntry
}

func (t *memoryTx) History(ctx context.Context) (domain.HistoryClaimAmount, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if h, ok := t.store.history[t.k]; ok {
		return h, nil
	}
	return domain.HistoryClaimAmount{Key: t.key}, nil
}

func (t *memoryTx) AppliedExcept(ctx context.Context, itemID types.ID) (decimal.Decimal, error) {
	t.store.mu.Lock()
	committed := make(map[types.ID]LedgerEntry, len(t.store.ledger[t.k]))
	for id, e := range t.store.ledger[t.k] {
		committed[id] = e
	}
	t.store.mu.Unlock()

	for _, e := range t.writes {
		committed[e.ItemID] = e
	}

	total := decimal.Zero
	for id, e := range committed {
		if id != itemID {
			total = total.Add(e.Applied)
		}
	}
	return total, nil
}

func (t *memoryTx) Record(ctx context.Context, entry LedgerEntry) error {
	t.writes = append(t.writes, entry)
	return nil
}

package wallet

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type key struct {
	owner    int64
	currency string
}

// MemoryStore is a concurrency-safe in-memory wallet store used by the
// in-memory ledger and by unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	wallets map[key]Wallet
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wallets: make(map[key]Wallet)}
}

// Ensure returns the wallet balance, creating the wallet with balance 0 when
// absent. Idempotent under concurrency: only one row per key ever exists.
func (s *MemoryStore) Ensure(owner int64, currency string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{owner, currency}
	w, ok := s.wallets[k]
	if !ok {
		w = Wallet{OwnerID: owner, Currency: currency, Balance: decimal.Zero, UpdatedAt: time.Now().UTC()}
		s.wallets[k] = w
	}
	return w.Balance
}

// Balance reads the current balance for the pair.
func (s *MemoryStore) Balance(owner int64, currency string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[key{owner, currency}]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return w.Balance, nil
}

// Adjust applies balance += delta atomically and returns the new balance.
func (s *MemoryStore) Adjust(owner int64, currency string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{owner, currency}
	w, ok := s.wallets[k]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	w.Balance = w.Balance.Add(delta)
	w.UpdatedAt = time.Now().UTC()
	s.wallets[k] = w
	return w.Balance, nil
}

// OwnerBalances lists the owner's wallets ordered by currency.
func (s *MemoryStore) OwnerBalances(owner int64) []Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var wallets []Wallet
	for k, w := range s.wallets {
		if k.owner == owner {
			wallets = append(wallets, w)
		}
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Currency < wallets[j].Currency })
	return wallets
}

// Count reports the number of wallet rows, all owners included.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wallets)
}

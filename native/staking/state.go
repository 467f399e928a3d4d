package staking

import (
	"bytes"
	"sort"
	"sync"
)

// Store persists ledger state. Implementations must apply a Batch atomically.
type Store interface {
	Account(addr [20]byte) (*StakerAccount, bool, error)
	// Accounts returns up to limit accounts with addresses strictly greater than
	// after, in ascending address order.
	Accounts(after [20]byte, limit int) ([]*StakerAccount, error)
	Pool() (*RewardPool, bool, error)
	// FundingLog returns up to limit entries with sequence >= from.
	FundingLog(from uint64, limit int) ([]*FundingRecord, error)
	Transfer(id uint64) (*PendingTransfer, bool, error)
	// Transfers returns up to limit pending transfers with IDs greater than after.
	Transfers(after uint64, limit int) ([]*PendingTransfer, error)
	// Settlements returns up to limit settlements, newest first. Zero means all.
	Settlements(limit int) ([]*Settlement, error)
	Commit(batch *Batch) error
}

// Batch is the complete write set of one engine operation. Nil map values
// delete the entry.
type Batch struct {
	Accounts    map[[20]byte]*StakerAccount
	Pool        *RewardPool
	Funding     []*FundingRecord
	Transfers   map[uint64]*PendingTransfer
	Settlements []*Settlement
	// PruneSettlementsBelow removes settlements with round IDs below the value.
	PruneSettlementsBelow uint64
}

// Empty reports whether the batch carries no writes.
func (b *Batch) Empty() bool {
	return b == nil || (len(b.Accounts) == 0 && b.Pool == nil && len(b.Funding) == 0 &&
		len(b.Transfers) == 0 && len(b.Settlements) == 0 && b.PruneSettlementsBelow == 0)
}

// SortedAccounts returns the batch's account keys in ascending order.
func (b *Batch) SortedAccounts() [][20]byte {
	keys := make([][20]byte, 0, len(b.Accounts))
	for k := range b.Accounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	return keys
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[[20]byte]*StakerAccount
	pool        *RewardPool
	funding     []*FundingRecord
	transfers   map[uint64]*PendingTransfer
	settlements map[uint64]*Settlement
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[[20]byte]*StakerAccount),
		transfers:   make(map[uint64]*PendingTransfer),
		settlements: make(map[uint64]*Settlement),
	}
}

func (m *MemoryStore) Account(addr [20]byte) (*StakerAccount, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[addr]
	if !ok {
		return nil, false, nil
	}
	return acc.Clone(), true, nil
}

func (m *MemoryStore) Accounts(after [20]byte, limit int) ([]*StakerAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([][20]byte, 0, len(m.accounts))
	for k := range m.accounts {
		if bytes.Compare(k[:], after[:]) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]*StakerAccount, len(keys))
	for i, k := range keys {
		out[i] = m.accounts[k].Clone()
	}
	return out, nil
}

func (m *MemoryStore) Pool() (*RewardPool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pool == nil {
		return nil, false, nil
	}
	return m.pool.Clone(), true, nil
}

func (m *MemoryStore) FundingLog(from uint64, limit int) ([]*FundingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*FundingRecord, 0)
	for _, entry := range m.funding {
		if entry.Sequence < from {
			continue
		}
		out = append(out, entry.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Transfer(id uint64) (*PendingTransfer, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transfers[id]
	if !ok {
		return nil, false, nil
	}
	return t.Clone(), true, nil
}

func (m *MemoryStore) Transfers(after uint64, limit int) ([]*PendingTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint64, 0, len(m.transfers))
	for id := range m.transfers {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*PendingTransfer, len(ids))
	for i, id := range ids {
		out[i] = m.transfers[id].Clone()
	}
	return out, nil
}

func (m *MemoryStore) Settlements(limit int) ([]*Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint64, 0, len(m.settlements))
	for id := range m.settlements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*Settlement, len(ids))
	for i, id := range ids {
		out[i] = m.settlements[id].Clone()
	}
	return out, nil
}

func (m *MemoryStore) Commit(batch *Batch) error {
	if batch.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for addr, acc := range batch.Accounts {
		if acc == nil {
			delete(m.accounts, addr)
			continue
		}
		m.accounts[addr] = acc.Clone()
	}
	if batch.Pool != nil {
		m.pool = batch.Pool.Clone()
	}
	for _, entry := range batch.Funding {
		m.funding = append(m.funding, entry.Clone())
	}
	for id, t := range batch.Transfers {
		if t == nil {
			delete(m.transfers, id)
			continue
		}
		m.transfers[id] = t.Clone()
	}
	for _, s := range batch.Settlements {
		m.settlements[s.Round] = s.Clone()
	}
	if batch.PruneSettlementsBelow > 0 {
		for id := range m.settlements {
			if id < batch.PruneSettlementsBelow {
				delete(m.settlements, id)
			}
		}
	}
	return nil
}

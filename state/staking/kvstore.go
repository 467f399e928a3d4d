package staking

import (
	"bytes"
	"fmt"
	"math"

	core "stakeledger/native/staking"
	"stakeledger/storage"
)

// KVStore persists ledger state in an ordered key-value database.
type KVStore struct {
	db storage.Database
}

// NewKVStore wraps db. The caller retains ownership of db.
func NewKVStore(db storage.Database) *KVStore {
	return &KVStore{db: db}
}

var _ core.Store = (*KVStore)(nil)

func (s *KVStore) Account(addr [20]byte) (*core.StakerAccount, bool, error) {
	data, ok, err := s.db.Get(accountKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	acc, err := DecodeAccount(data)
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

func (s *KVStore) Accounts(after [20]byte, limit int) ([]*core.StakerAccount, error) {
	start := accountKey(after)
	var (
		out     []*core.StakerAccount
		iterErr error
	)
	err := s.db.Iterate(prefixAccount, start, func(key, value []byte) bool {
		if bytes.Equal(key, start) {
			return true
		}
		acc, err := DecodeAccount(value)
		if err != nil {
			iterErr = err
			return false
		}
		out = append(out, acc)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}

func (s *KVStore) Pool() (*core.RewardPool, bool, error) {
	data, ok, err := s.db.Get(keyPool)
	if err != nil || !ok {
		return nil, false, err
	}
	pool, err := DecodePool(data)
	if err != nil {
		return nil, false, err
	}
	return pool, true, nil
}

func (s *KVStore) FundingLog(from uint64, limit int) ([]*core.FundingRecord, error) {
	var (
		out     []*core.FundingRecord
		iterErr error
	)
	err := s.db.Iterate(prefixFunding, seqKey(prefixFunding, from), func(_, value []byte) bool {
		entry, err := DecodeFunding(value)
		if err != nil {
			iterErr = err
			return false
		}
		out = append(out, entry)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}

func (s *KVStore) Transfer(id uint64) (*core.PendingTransfer, bool, error) {
	data, ok, err := s.db.Get(seqKey(prefixTransfer, id))
	if err != nil || !ok {
		return nil, false, err
	}
	t, err := DecodeTransfer(data)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *KVStore) Transfers(after uint64, limit int) ([]*core.PendingTransfer, error) {
	if after == math.MaxUint64 {
		return nil, nil
	}
	var (
		out     []*core.PendingTransfer
		iterErr error
	)
	err := s.db.Iterate(prefixTransfer, seqKey(prefixTransfer, after+1), func(_, value []byte) bool {
		t, err := DecodeTransfer(value)
		if err != nil {
			iterErr = err
			return false
		}
		out = append(out, t)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}

// Settlements scans forward and keeps the newest entries; retained history is
// bounded by the engine.
func (s *KVStore) Settlements(limit int) ([]*core.Settlement, error) {
	var (
		all     []*core.Settlement
		iterErr error
	)
	err := s.db.Iterate(prefixSettlement, nil, func(_, value []byte) bool {
		settlement, err := DecodeSettlement(value)
		if err != nil {
			iterErr = err
			return false
		}
		all = append(all, settlement)
		return true
	})
	if err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, iterErr
	}
	out := make([]*core.Settlement, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *KVStore) Commit(batch *core.Batch) error {
	if batch.Empty() {
		return nil
	}
	wb := new(storage.Batch)
	for _, addr := range batch.SortedAccounts() {
		acc := batch.Accounts[addr]
		if acc == nil {
			wb.Delete(accountKey(addr))
			continue
		}
		data, err := EncodeAccount(acc)
		if err != nil {
			return fmt.Errorf("encode account: %w", err)
		}
		wb.Put(accountKey(addr), data)
	}
	if batch.Pool != nil {
		data, err := EncodePool(batch.Pool)
		if err != nil {
			return fmt.Errorf("encode pool: %w", err)
		}
		wb.Put(keyPool, data)
	}
	for _, entry := range batch.Funding {
		data, err := EncodeFunding(entry)
		if err != nil {
			return fmt.Errorf("encode funding: %w", err)
		}
		wb.Put(seqKey(prefixFunding, entry.Sequence), data)
	}
	for id, t := range batch.Transfers {
		if t == nil {
			wb.Delete(seqKey(prefixTransfer, id))
			continue
		}
		data, err := EncodeTransfer(t)
		if err != nil {
			return fmt.Errorf("encode transfer: %w", err)
		}
		wb.Put(seqKey(prefixTransfer, id), data)
	}
	for _, settlement := range batch.Settlements {
		data, err := EncodeSettlement(settlement)
		if err != nil {
			return fmt.Errorf("encode settlement: %w", err)
		}
		wb.Put(seqKey(prefixSettlement, settlement.Round), data)
	}
	if batch.PruneSettlementsBelow > 0 {
		limit := seqKey(prefixSettlement, batch.PruneSettlementsBelow)
		err := s.db.Iterate(prefixSettlement, nil, func(key, _ []byte) bool {
			if bytes.Compare(key, limit) >= 0 {
				return false
			}
			wb.Delete(key)
			return true
		})
		if err != nil {
			return fmt.Errorf("prune settlements: %w", err)
		}
	}
	return s.db.Write(wb)
}

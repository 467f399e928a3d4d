package staking

import (
	"fmt"

	"stakeledger/core/types"
)

// txn stages the writes of a single operation. Nothing reaches the store until
// the engine commits the resulting batch.
type txn struct {
	store       Store
	accounts    map[[20]byte]*StakerAccount
	pool        *RewardPool
	funding     []*FundingRecord
	transfers   map[uint64]*PendingTransfer
	settlements []*Settlement
	prune       uint64
	events      []*types.Event
	dispatch    []*PendingTransfer
}

func newTxn(store Store) *txn {
	return &txn{
		store:     store,
		accounts:  make(map[[20]byte]*StakerAccount),
		transfers: make(map[uint64]*PendingTransfer),
	}
}

// account returns the staged copy of addr, loading it on first use. Missing
// accounts come back empty and are only persisted if they gain state.
func (tx *txn) account(addr [20]byte) (*StakerAccount, error) {
	if acc, ok := tx.accounts[addr]; ok {
		return acc, nil
	}
	acc, ok, err := tx.store.Account(addr)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !ok || acc == nil {
		acc = newStakerAccount(addr)
	}
	if acc.TotalRewardsClaimed == nil {
		acc.TotalRewardsClaimed = zeroAmount()
	}
	acc.Address = addr
	tx.accounts[addr] = acc
	return acc, nil
}

func (tx *txn) rewardPool() (*RewardPool, error) {
	if tx.pool != nil {
		return tx.pool, nil
	}
	pool, ok, err := tx.store.Pool()
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	if !ok || pool == nil {
		pool = newRewardPool()
	}
	tx.pool = pool
	return pool, nil
}

// transfer returns the staged pending transfer, or false when it is absent or
// already staged for deletion.
func (tx *txn) transfer(id uint64) (*PendingTransfer, bool, error) {
	if t, ok := tx.transfers[id]; ok {
		return t, t != nil, nil
	}
	t, ok, err := tx.store.Transfer(id)
	if err != nil {
		return nil, false, fmt.Errorf("load transfer: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	tx.transfers[id] = t
	return t, true, nil
}

func (tx *txn) putTransfer(t *PendingTransfer) { tx.transfers[t.ID] = t }

func (tx *txn) deleteTransfer(id uint64) { tx.transfers[id] = nil }

func (tx *txn) emit(evt *types.Event) { tx.events = append(tx.events, evt) }

func (tx *txn) batch() *Batch {
	b := &Batch{
		Accounts:              make(map[[20]byte]*StakerAccount, len(tx.accounts)),
		Transfers:             make(map[uint64]*PendingTransfer, len(tx.transfers)),
		PruneSettlementsBelow: tx.prune,
	}
	for addr, acc := range tx.accounts {
		if acc.Empty() {
			b.Accounts[addr] = nil
			continue
		}
		b.Accounts[addr] = acc.Clone()
	}
	if tx.pool != nil {
		b.Pool = tx.pool.Clone()
	}
	for _, entry := range tx.funding {
		b.Funding = append(b.Funding, entry.Clone())
	}
	for id, t := range tx.transfers {
		b.Transfers[id] = t.Clone()
	}
	for _, s := range tx.settlements {
		b.Settlements = append(b.Settlements, s.Clone())
	}
	return b
}

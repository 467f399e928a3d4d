package staking

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"

	core "stakeledger/native/staking"
)

var (
	bucketAccounts    = []byte("accounts")
	bucketMeta        = []byte("meta")
	bucketFunding     = []byte("funding")
	bucketTransfers   = []byte("transfers")
	bucketSettlements = []byte("settlements")

	metaPool = []byte("pool")
)

// BoltStore persists ledger state in a single BoltDB file. Every Commit runs
// in one read-write transaction.
type BoltStore struct {
	db *bolt.DB
}

var _ core.Store = (*BoltStore)(nil)

// OpenBoltStore opens (and migrates) the BoltDB file at path.
func OpenBoltStore(path string, options *bolt.Options) (*BoltStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAccounts, bucketMeta, bucketFunding, bucketTransfers, bucketSettlements} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Account(addr [20]byte) (*core.StakerAccount, bool, error) {
	var acc *core.StakerAccount
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get(addr[:])
		if data == nil {
			return nil
		}
		decoded, err := DecodeAccount(data)
		acc = decoded
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return acc, acc != nil, nil
}

func (s *BoltStore) Accounts(after [20]byte, limit int) ([]*core.StakerAccount, error) {
	var out []*core.StakerAccount
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAccounts).Cursor()
		for k, v := c.Seek(after[:]); k != nil; k, v = c.Next() {
			if bytes.Equal(k, after[:]) {
				continue
			}
			acc, err := DecodeAccount(v)
			if err != nil {
				return err
			}
			out = append(out, acc)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Pool() (*core.RewardPool, bool, error) {
	var pool *core.RewardPool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(metaPool)
		if data == nil {
			return nil
		}
		decoded, err := DecodePool(data)
		pool = decoded
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return pool, pool != nil, nil
}

func (s *BoltStore) FundingLog(from uint64, limit int) ([]*core.FundingRecord, error) {
	var out []*core.FundingRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketFunding).Cursor()
		for k, v := c.Seek(be64(from)); k != nil; k, v = c.Next() {
			entry, err := DecodeFunding(v)
			if err != nil {
				return err
			}
			out = append(out, entry)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Transfer(id uint64) (*core.PendingTransfer, bool, error) {
	var t *core.PendingTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTransfers).Get(be64(id))
		if data == nil {
			return nil
		}
		decoded, err := DecodeTransfer(data)
		t = decoded
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return t, t != nil, nil
}

func (s *BoltStore) Transfers(after uint64, limit int) ([]*core.PendingTransfer, error) {
	if after == math.MaxUint64 {
		return nil, nil
	}
	var out []*core.PendingTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTransfers).Cursor()
		for k, v := c.Seek(be64(after + 1)); k != nil; k, v = c.Next() {
			t, err := DecodeTransfer(v)
			if err != nil {
				return err
			}
			out = append(out, t)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Settlements(limit int) ([]*core.Settlement, error) {
	var out []*core.Settlement
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSettlements).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			settlement, err := DecodeSettlement(v)
			if err != nil {
				return err
			}
			out = append(out, settlement)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Commit(batch *core.Batch) error {
	if batch.Empty() {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(bucketAccounts)
		for _, addr := range batch.SortedAccounts() {
			acc := batch.Accounts[addr]
			key := append([]byte(nil), addr[:]...)
			if acc == nil {
				if err := accounts.Delete(key); err != nil {
					return err
				}
				continue
			}
			data, err := EncodeAccount(acc)
			if err != nil {
				return fmt.Errorf("encode account: %w", err)
			}
			if err := accounts.Put(key, data); err != nil {
				return err
			}
		}
		if batch.Pool != nil {
			data, err := EncodePool(batch.Pool)
			if err != nil {
				return fmt.Errorf("encode pool: %w", err)
			}
			if err := tx.Bucket(bucketMeta).Put(metaPool, data); err != nil {
				return err
			}
		}
		funding := tx.Bucket(bucketFunding)
		for _, entry := range batch.Funding {
			data, err := EncodeFunding(entry)
			if err != nil {
				return fmt.Errorf("encode funding: %w", err)
			}
			if err := funding.Put(be64(entry.Sequence), data); err != nil {
				return err
			}
		}
		transfers := tx.Bucket(bucketTransfers)
		for id, t := range batch.Transfers {
			if t == nil {
				if err := transfers.Delete(be64(id)); err != nil {
					return err
				}
				continue
			}
			data, err := EncodeTransfer(t)
			if err != nil {
				return fmt.Errorf("encode transfer: %w", err)
			}
			if err := transfers.Put(be64(id), data); err != nil {
				return err
			}
		}
		settlements := tx.Bucket(bucketSettlements)
		for _, settlement := range batch.Settlements {
			data, err := EncodeSettlement(settlement)
			if err != nil {
				return fmt.Errorf("encode settlement: %w", err)
			}
			if err := settlements.Put(be64(settlement.Round), data); err != nil {
				return err
			}
		}
		if batch.PruneSettlementsBelow > 0 {
			var stale [][]byte
			c := settlements.Cursor()
			for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) < batch.PruneSettlementsBelow; k, _ = c.Next() {
				stale = append(stale, append([]byte(nil), k...))
			}
			for _, k := range stale {
				if err := settlements.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

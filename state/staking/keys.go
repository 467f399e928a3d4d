package staking

import "encoding/binary"

var (
	prefixAccount    = []byte("stk/acct/")
	prefixFunding    = []byte("stk/fund/")
	prefixTransfer   = []byte("stk/xfer/")
	prefixSettlement = []byte("stk/settle/")
	keyPool          = []byte("stk/pool")
)

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), prefixAccount...), addr[:]...)
}

func seqKey(prefix []byte, seq uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

func be64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

package staking

import (
	"fmt"
	"math"
	"strings"

	"github.com/holiman/uint256"
)

// Tier identifies the boost class attached to an account.
type Tier uint8

const (
	TierNone Tier = iota
	TierDrone
	TierWorker
	TierQueen
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierDrone:
		return "drone"
	case TierWorker:
		return "worker"
	case TierQueen:
		return "queen"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Valid reports whether the tier is one of the known classes.
func (t Tier) Valid() bool { return t <= TierQueen }

// ParseTier decodes a tier name, case-insensitively.
func ParseTier(raw string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return TierNone, nil
	case "drone":
		return TierDrone, nil
	case "worker":
		return TierWorker, nil
	case "queen":
		return TierQueen, nil
	default:
		return TierNone, fmt.Errorf("%w: %q", ErrInvalidTier, raw)
	}
}

// StakeRecord is one independent deposit with its own lockup clock.
type StakeRecord struct {
	ID              uint64
	Amount          *uint256.Int
	StartTime       int64
	LockupDuration  uint64
	WeightBps       uint64
	CreditedRewards *uint256.Int
	Claimed         bool
	// PendingTransfer holds the ID of an in-flight reward transfer, zero when none.
	PendingTransfer uint64
}

// Clone returns a deep copy of the record.
func (r *StakeRecord) Clone() *StakeRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = copyAmount(r.Amount)
	clone.CreditedRewards = copyAmount(r.CreditedRewards)
	return &clone
}

// UnlockTime is the first timestamp at which the lockup has elapsed. It
// saturates at math.MaxInt64.
func (r *StakeRecord) UnlockTime() int64 {
	if r == nil {
		return 0
	}
	if r.LockupDuration > math.MaxInt64 {
		return math.MaxInt64
	}
	lockup := int64(r.LockupDuration)
	if r.StartTime > 0 && lockup > math.MaxInt64-r.StartTime {
		return math.MaxInt64
	}
	return r.StartTime + lockup
}

// Unlocked reports whether the lockup has elapsed at now.
func (r *StakeRecord) Unlocked(now int64) bool {
	return r != nil && now >= r.UnlockTime()
}

// Elapsed returns the seconds between the record's start and now, clamped at zero.
func (r *StakeRecord) Elapsed(now int64) uint64 {
	if r == nil || now <= r.StartTime {
		return 0
	}
	return uint64(now - r.StartTime)
}

// StakerAccount groups the records owned by one address.
type StakerAccount struct {
	Address             [20]byte
	Records             []*StakeRecord
	TotalRewardsClaimed *uint256.Int
	Tier                Tier
}

func newStakerAccount(addr [20]byte) *StakerAccount {
	return &StakerAccount{Address: addr, TotalRewardsClaimed: new(uint256.Int)}
}

// Clone returns a deep copy of the account.
func (a *StakerAccount) Clone() *StakerAccount {
	if a == nil {
		return nil
	}
	clone := &StakerAccount{
		Address:             a.Address,
		TotalRewardsClaimed: copyAmount(a.TotalRewardsClaimed),
		Tier:                a.Tier,
	}
	if len(a.Records) > 0 {
		clone.Records = make([]*StakeRecord, len(a.Records))
		for i, rec := range a.Records {
			clone.Records[i] = rec.Clone()
		}
	}
	return clone
}

// IndexOf returns the current position of the record with the given ID, or -1.
func (a *StakerAccount) IndexOf(id uint64) int {
	if a == nil {
		return -1
	}
	for i, rec := range a.Records {
		if rec != nil && rec.ID == id {
			return i
		}
	}
	return -1
}

// TotalStaked sums the principal of every record.
func (a *StakerAccount) TotalStaked() (*uint256.Int, error) {
	total := new(uint256.Int)
	if a == nil {
		return total, nil
	}
	for _, rec := range a.Records {
		var err error
		if total, err = addAmount(total, rec.Amount); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// Empty reports whether the account carries no state worth persisting.
func (a *StakerAccount) Empty() bool {
	return a == nil || (len(a.Records) == 0 && a.Tier == TierNone && isZero(a.TotalRewardsClaimed))
}

// RoundPhase tracks the progress of a paginated distribution.
type RoundPhase uint8

const (
	PhaseTally RoundPhase = iota + 1
	PhaseCredit
)

func (p RoundPhase) String() string {
	switch p {
	case PhaseTally:
		return "tally"
	case PhaseCredit:
		return "credit"
	default:
		return "unknown"
	}
}

// DistributionRound is the persisted cursor of an open distribution.
type DistributionRound struct {
	ID      uint64
	Release *uint256.Int
	AsOf    int64
	// Cutoff excludes records created after the round opened.
	Cutoff      uint64
	Phase       RoundPhase
	Cursor      [20]byte
	TotalPoints *uint256.Int
	Credited    *uint256.Int
	Eligible    uint64
	Payouts     []Payout
}

// Clone returns a deep copy of the round.
func (r *DistributionRound) Clone() *DistributionRound {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Release = copyAmount(r.Release)
	clone.TotalPoints = copyAmount(r.TotalPoints)
	clone.Credited = copyAmount(r.Credited)
	clone.Payouts = clonePayouts(r.Payouts)
	return &clone
}

// RewardPool is the ledger-wide singleton.
type RewardPool struct {
	Balance              *uint256.Int
	TotalStaked          *uint256.Int
	TotalFunded          *uint256.Int
	TotalDistributed     *uint256.Int
	LastDistributionTime int64
	NextRecordID         uint64
	NextTransferID       uint64
	NextRoundID          uint64
	NextFundingSeq       uint64
	Round                *DistributionRound
}

func newRewardPool() *RewardPool {
	return &RewardPool{
		Balance:          new(uint256.Int),
		TotalStaked:      new(uint256.Int),
		TotalFunded:      new(uint256.Int),
		TotalDistributed: new(uint256.Int),
		NextRecordID:     1,
		NextTransferID:   1,
		NextRoundID:      1,
		NextFundingSeq:   1,
	}
}

// Clone returns a deep copy of the pool.
func (p *RewardPool) Clone() *RewardPool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Balance = copyAmount(p.Balance)
	clone.TotalStaked = copyAmount(p.TotalStaked)
	clone.TotalFunded = copyAmount(p.TotalFunded)
	clone.TotalDistributed = copyAmount(p.TotalDistributed)
	clone.Round = p.Round.Clone()
	return &clone
}

// FundingRecord is one immutable operator contribution.
type FundingRecord struct {
	Sequence  uint64
	Funder    [20]byte
	Amount    *uint256.Int
	Timestamp int64
}

// Clone returns a deep copy of the funding record.
func (f *FundingRecord) Clone() *FundingRecord {
	if f == nil {
		return nil
	}
	clone := *f
	clone.Amount = copyAmount(f.Amount)
	return &clone
}

// TransferKind distinguishes reward payouts from principal withdrawals.
type TransferKind uint8

const (
	TransferReward TransferKind = iota + 1
	TransferUnstake
)

func (k TransferKind) String() string {
	switch k {
	case TransferReward:
		return "reward"
	case TransferUnstake:
		return "unstake"
	default:
		return "unknown"
	}
}

// PendingTransfer is an outbound payment awaiting confirmation from the token ledger.
type PendingTransfer struct {
	ID        uint64
	Account   [20]byte
	Kind      TransferKind
	RecordID  uint64
	Amount    *uint256.Int
	Principal *uint256.Int
	Rewards   *uint256.Int
	// Record is the removed record, retained for unstake rollbacks.
	Record *StakeRecord
	// FirstClaim marks reward transfers that set the record's Claimed flag.
	FirstClaim bool
	Attempts   uint32
	CreatedAt  int64
	UpdatedAt  int64
	LastError  string
}

// Clone returns a deep copy of the transfer.
func (t *PendingTransfer) Clone() *PendingTransfer {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Amount = copyAmount(t.Amount)
	clone.Principal = copyAmount(t.Principal)
	clone.Rewards = copyAmount(t.Rewards)
	clone.Record = t.Record.Clone()
	return &clone
}

// Payout captures one account's share of a settlement.
type Payout struct {
	Account [20]byte
	Amount  *uint256.Int
}

func clonePayouts(in []Payout) []Payout {
	if len(in) == 0 {
		return nil
	}
	out := make([]Payout, len(in))
	for i := range in {
		out[i] = Payout{Account: in[i].Account, Amount: copyAmount(in[i].Amount)}
	}
	return out
}

// Settlement summarises a completed distribution round.
type Settlement struct {
	Round           uint64
	Release         *uint256.Int
	Credited        *uint256.Int
	Dust            *uint256.Int
	TotalPoints     *uint256.Int
	EligibleRecords uint64
	AsOf            int64
	ClosedAt        int64
	Payouts         []Payout
}

// Clone returns a deep copy of the settlement.
func (s *Settlement) Clone() *Settlement {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Release = copyAmount(s.Release)
	clone.Credited = copyAmount(s.Credited)
	clone.Dust = copyAmount(s.Dust)
	clone.TotalPoints = copyAmount(s.TotalPoints)
	clone.Payouts = clonePayouts(s.Payouts)
	return &clone
}

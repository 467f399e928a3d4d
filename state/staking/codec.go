package staking

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	core "stakeledger/native/staking"
)

// RLP has no signed integers, so timestamps travel as uint64.

type recordRLP struct {
	ID              uint64
	Amount          *big.Int
	StartTime       uint64
	LockupDuration  uint64
	WeightBps       uint64
	CreditedRewards *big.Int
	Claimed         bool
	PendingTransfer uint64
}

type accountRLP struct {
	Address             [20]byte
	Records             []recordRLP
	TotalRewardsClaimed *big.Int
	Tier                uint8
}

type payoutRLP struct {
	Account [20]byte
	Amount  *big.Int
}

type roundRLP struct {
	ID          uint64
	Release     *big.Int
	AsOf        uint64
	Cutoff      uint64
	Phase       uint8
	Cursor      [20]byte
	TotalPoints *big.Int
	Credited    *big.Int
	Eligible    uint64
	Payouts     []payoutRLP
}

type poolRLP struct {
	Balance              *big.Int
	TotalStaked          *big.Int
	TotalFunded          *big.Int
	TotalDistributed     *big.Int
	LastDistributionTime uint64
	NextRecordID         uint64
	NextTransferID       uint64
	NextRoundID          uint64
	NextFundingSeq       uint64
	Round                *roundRLP `rlp:"nil"`
}

type fundingRLP struct {
	Sequence  uint64
	Funder    [20]byte
	Amount    *big.Int
	Timestamp uint64
}

type transferRLP struct {
	ID         uint64
	Account    [20]byte
	Kind       uint8
	RecordID   uint64
	Amount     *big.Int
	Principal  *big.Int
	Rewards    *big.Int
	Record     *recordRLP `rlp:"nil"`
	FirstClaim bool
	Attempts   uint32
	CreatedAt  uint64
	UpdatedAt  uint64
	LastError  string
}

type settlementRLP struct {
	Round           uint64
	Release         *big.Int
	Credited        *big.Int
	Dust            *big.Int
	TotalPoints     *big.Int
	EligibleRecords uint64
	AsOf            uint64
	ClosedAt        uint64
	Payouts         []payoutRLP
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func fromBig(v *big.Int) (*uint256.Int, error) {
	return core.AmountFromBig(v)
}

// pointsFromBig accepts the full 256-bit range used by weighted points.
func pointsFromBig(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, fmt.Errorf("points out of range")
	}
	return out, nil
}

func encodeRecord(r *core.StakeRecord) recordRLP {
	return recordRLP{
		ID:              r.ID,
		Amount:          toBig(r.Amount),
		StartTime:       uint64(r.StartTime),
		LockupDuration:  r.LockupDuration,
		WeightBps:       r.WeightBps,
		CreditedRewards: toBig(r.CreditedRewards),
		Claimed:         r.Claimed,
		PendingTransfer: r.PendingTransfer,
	}
}

func decodeRecord(in recordRLP) (*core.StakeRecord, error) {
	amount, err := fromBig(in.Amount)
	if err != nil {
		return nil, fmt.Errorf("record %d amount: %w", in.ID, err)
	}
	credited, err := fromBig(in.CreditedRewards)
	if err != nil {
		return nil, fmt.Errorf("record %d credited: %w", in.ID, err)
	}
	return &core.StakeRecord{
		ID:              in.ID,
		Amount:          amount,
		StartTime:       int64(in.StartTime),
		LockupDuration:  in.LockupDuration,
		WeightBps:       in.WeightBps,
		CreditedRewards: credited,
		Claimed:         in.Claimed,
		PendingTransfer: in.PendingTransfer,
	}, nil
}

func encodePayouts(in []core.Payout) []payoutRLP {
	out := make([]payoutRLP, len(in))
	for i, p := range in {
		out[i] = payoutRLP{Account: p.Account, Amount: toBig(p.Amount)}
	}
	return out
}

func decodePayouts(in []payoutRLP) ([]core.Payout, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]core.Payout, len(in))
	for i, p := range in {
		amount, err := fromBig(p.Amount)
		if err != nil {
			return nil, err
		}
		out[i] = core.Payout{Account: p.Account, Amount: amount}
	}
	return out, nil
}

// EncodeAccount serialises an account.
func EncodeAccount(acc *core.StakerAccount) ([]byte, error) {
	wire := accountRLP{
		Address:             acc.Address,
		Records:             make([]recordRLP, len(acc.Records)),
		TotalRewardsClaimed: toBig(acc.TotalRewardsClaimed),
		Tier:                uint8(acc.Tier),
	}
	for i, rec := range acc.Records {
		wire.Records[i] = encodeRecord(rec)
	}
	return rlp.EncodeToBytes(&wire)
}

// DecodeAccount restores an account encoded by EncodeAccount.
func DecodeAccount(data []byte) (*core.StakerAccount, error) {
	var wire accountRLP
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	claimed, err := fromBig(wire.TotalRewardsClaimed)
	if err != nil {
		return nil, err
	}
	acc := &core.StakerAccount{
		Address:             wire.Address,
		TotalRewardsClaimed: claimed,
		Tier:                core.Tier(wire.Tier),
	}
	for _, rec := range wire.Records {
		decoded, err := decodeRecord(rec)
		if err != nil {
			return nil, err
		}
		acc.Records = append(acc.Records, decoded)
	}
	return acc, nil
}

func encodeRound(r *core.DistributionRound) *roundRLP {
	if r == nil {
		return nil
	}
	return &roundRLP{
		ID:          r.ID,
		Release:     toBig(r.Release),
		AsOf:        uint64(r.AsOf),
		Cutoff:      r.Cutoff,
		Phase:       uint8(r.Phase),
		Cursor:      r.Cursor,
		TotalPoints: toBig(r.TotalPoints),
		Credited:    toBig(r.Credited),
		Eligible:    r.Eligible,
		Payouts:     encodePayouts(r.Payouts),
	}
}

func decodeRound(in *roundRLP) (*core.DistributionRound, error) {
	if in == nil {
		return nil, nil
	}
	release, err := fromBig(in.Release)
	if err != nil {
		return nil, err
	}
	points, err := pointsFromBig(in.TotalPoints)
	if err != nil {
		return nil, err
	}
	credited, err := fromBig(in.Credited)
	if err != nil {
		return nil, err
	}
	payouts, err := decodePayouts(in.Payouts)
	if err != nil {
		return nil, err
	}
	return &core.DistributionRound{
		ID:          in.ID,
		Release:     release,
		AsOf:        int64(in.AsOf),
		Cutoff:      in.Cutoff,
		Phase:       core.RoundPhase(in.Phase),
		Cursor:      in.Cursor,
		TotalPoints: points,
		Credited:    credited,
		Eligible:    in.Eligible,
		Payouts:     payouts,
	}, nil
}

// EncodePool serialises the pool singleton.
func EncodePool(p *core.RewardPool) ([]byte, error) {
	return rlp.EncodeToBytes(&poolRLP{
		Balance:              toBig(p.Balance),
		TotalStaked:          toBig(p.TotalStaked),
		TotalFunded:          toBig(p.TotalFunded),
		TotalDistributed:     toBig(p.TotalDistributed),
		LastDistributionTime: uint64(p.LastDistributionTime),
		NextRecordID:         p.NextRecordID,
		NextTransferID:       p.NextTransferID,
		NextRoundID:          p.NextRoundID,
		NextFundingSeq:       p.NextFundingSeq,
		Round:                encodeRound(p.Round),
	})
}

// DecodePool restores the pool singleton.
func DecodePool(data []byte) (*core.RewardPool, error) {
	var wire poolRLP
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, fmt.Errorf("decode pool: %w", err)
	}
	out := &core.RewardPool{
		LastDistributionTime: int64(wire.LastDistributionTime),
		NextRecordID:         wire.NextRecordID,
		NextTransferID:       wire.NextTransferID,
		NextRoundID:          wire.NextRoundID,
		NextFundingSeq:       wire.NextFundingSeq,
	}
	var err error
	if out.Balance, err = fromBig(wire.Balance); err != nil {
		return nil, err
	}
	if out.TotalStaked, err = fromBig(wire.TotalStaked); err != nil {
		return nil, err
	}
	if out.TotalFunded, err = fromBig(wire.TotalFunded); err != nil {
		return nil, err
	}
	if out.TotalDistributed, err = fromBig(wire.TotalDistributed); err != nil {
		return nil, err
	}
	if out.Round, err = decodeRound(wire.Round); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeFunding serialises a funding log entry.
func EncodeFunding(f *core.FundingRecord) ([]byte, error) {
	return rlp.EncodeToBytes(&fundingRLP{
		Sequence:  f.Sequence,
		Funder:    f.Funder,
		Amount:    toBig(f.Amount),
		Timestamp: uint64(f.Timestamp),
	})
}

// DecodeFunding restores a funding log entry.
func DecodeFunding(data []byte) (*core.FundingRecord, error) {
	var wire fundingRLP
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, fmt.Errorf("decode funding: %w", err)
	}
	amount, err := fromBig(wire.Amount)
	if err != nil {
		return nil, err
	}
	return &core.FundingRecord{
		Sequence:  wire.Sequence,
		Funder:    wire.Funder,
		Amount:    amount,
		Timestamp: int64(wire.Timestamp),
	}, nil
}

// EncodeTransfer serialises a pending transfer.
func EncodeTransfer(t *core.PendingTransfer) ([]byte, error) {
	wire := transferRLP{
		ID:         t.ID,
		Account:    t.Account,
		Kind:       uint8(t.Kind),
		RecordID:   t.RecordID,
		Amount:     toBig(t.Amount),
		Principal:  toBig(t.Principal),
		Rewards:    toBig(t.Rewards),
		FirstClaim: t.FirstClaim,
		Attempts:   t.Attempts,
		CreatedAt:  uint64(t.CreatedAt),
		UpdatedAt:  uint64(t.UpdatedAt),
		LastError:  t.LastError,
	}
	if t.Record != nil {
		rec := encodeRecord(t.Record)
		wire.Record = &rec
	}
	return rlp.EncodeToBytes(&wire)
}

// DecodeTransfer restores a pending transfer.
func DecodeTransfer(data []byte) (*core.PendingTransfer, error) {
	var wire transferRLP
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, fmt.Errorf("decode transfer: %w", err)
	}
	out := &core.PendingTransfer{
		ID:         wire.ID,
		Account:    wire.Account,
		Kind:       core.TransferKind(wire.Kind),
		RecordID:   wire.RecordID,
		FirstClaim: wire.FirstClaim,
		Attempts:   wire.Attempts,
		CreatedAt:  int64(wire.CreatedAt),
		UpdatedAt:  int64(wire.UpdatedAt),
		LastError:  wire.LastError,
	}
	var err error
	if out.Amount, err = fromBig(wire.Amount); err != nil {
		return nil, err
	}
	if out.Principal, err = fromBig(wire.Principal); err != nil {
		return nil, err
	}
	if out.Rewards, err = fromBig(wire.Rewards); err != nil {
		return nil, err
	}
	if wire.Record != nil {
		if out.Record, err = decodeRecord(*wire.Record); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeSettlement serialises a settlement summary.
func EncodeSettlement(s *core.Settlement) ([]byte, error) {
	return rlp.EncodeToBytes(&settlementRLP{
		Round:           s.Round,
		Release:         toBig(s.Release),
		Credited:        toBig(s.Credited),
		Dust:            toBig(s.Dust),
		TotalPoints:     toBig(s.TotalPoints),
		EligibleRecords: s.EligibleRecords,
		AsOf:            uint64(s.AsOf),
		ClosedAt:        uint64(s.ClosedAt),
		Payouts:         encodePayouts(s.Payouts),
	})
}

// DecodeSettlement restores a settlement summary.
func DecodeSettlement(data []byte) (*core.Settlement, error) {
	var wire settlementRLP
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, fmt.Errorf("decode settlement: %w", err)
	}
	out := &core.Settlement{
		Round:           wire.Round,
		EligibleRecords: wire.EligibleRecords,
		AsOf:            int64(wire.AsOf),
		ClosedAt:        int64(wire.ClosedAt),
	}
	var err error
	if out.Release, err = fromBig(wire.Release); err != nil {
		return nil, err
	}
	if out.Credited, err = fromBig(wire.Credited); err != nil {
		return nil, err
	}
	if out.Dust, err = fromBig(wire.Dust); err != nil {
		return nil, err
	}
	if out.TotalPoints, err = pointsFromBig(wire.TotalPoints); err != nil {
		return nil, err
	}
	if out.Payouts, err = decodePayouts(wire.Payouts); err != nil {
		return nil, err
	}
	return out, nil
}

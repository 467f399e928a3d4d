package staking

import (
	"strconv"

	"github.com/holiman/uint256"

	"stakeledger/core/events"
	"stakeledger/core/types"
	"stakeledger/crypto"
)

const (
	// EventTypeStakeCreated is emitted when a new stake record is appended.
	EventTypeStakeCreated = "staking.stake.created"
	// EventTypeStakeUnstaked is emitted when a record is withdrawn.
	EventTypeStakeUnstaked = "staking.stake.unstaked"
	// EventTypePoolFunded is emitted for every funding log entry.
	EventTypePoolFunded = "staking.pool.funded"
	// EventTypeDistributionOpened is emitted when a distribution round starts.
	EventTypeDistributionOpened = "staking.distribution.opened"
	// EventTypeDistributionCompleted is emitted when a round credits its shares.
	EventTypeDistributionCompleted = "staking.distribution.completed"
	// EventTypeDistributionAborted is emitted when a round closes without crediting.
	EventTypeDistributionAborted = "staking.distribution.aborted"
	// EventTypeRewardsCredited is emitted per account credited in a round.
	EventTypeRewardsCredited = "staking.rewards.credited"
	// EventTypeRewardsClaimed is emitted when credited rewards are claimed.
	EventTypeRewardsClaimed = "staking.rewards.claimed"
	// EventTypeTransferConfirmed is emitted when the token ledger confirms a payout.
	EventTypeTransferConfirmed = "staking.transfer.confirmed"
	// EventTypeTransferFailed is emitted when a payout failed and was rolled back.
	EventTypeTransferFailed = "staking.transfer.failed"
	// EventTypeTransferRetried is emitted when a pending payout is re-initiated.
	EventTypeTransferRetried = "staking.transfer.retried"
	// EventTypeTransferDispatchError is emitted when initiating a payout errored.
	EventTypeTransferDispatchError = "staking.transfer.dispatchError"
	// EventTypeTierAssigned is emitted when the operator changes an account tier.
	EventTypeTierAssigned = "staking.tier.assigned"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func addr(a [20]byte) string { return crypto.FormatAddress(a) }

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func i64(v int64) string { return strconv.FormatInt(v, 10) }

// StakeCreatedEvent describes a freshly appended record.
func StakeCreatedEvent(account [20]byte, rec *StakeRecord) *types.Event {
	return &types.Event{
		Type: EventTypeStakeCreated,
		Attributes: map[string]string{
			"account":  addr(account),
			"recordId": u64(rec.ID),
			"amount":   FormatAmount(rec.Amount),
			"lockup":   u64(rec.LockupDuration),
			"unlockAt": i64(rec.UnlockTime()),
		},
	}
}

// StakeUnstakedEvent describes a withdrawal and its combined payout.
func StakeUnstakedEvent(account [20]byte, recordID uint64, principal, rewards *uint256.Int, transferID uint64) *types.Event {
	return &types.Event{
		Type: EventTypeStakeUnstaked,
		Attributes: map[string]string{
			"account":    addr(account),
			"recordId":   u64(recordID),
			"principal":  FormatAmount(principal),
			"rewards":    FormatAmount(rewards),
			"transferId": u64(transferID),
		},
	}
}

// PoolFundedEvent describes one funding log entry.
func PoolFundedEvent(entry *FundingRecord, balance *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypePoolFunded,
		Attributes: map[string]string{
			"funder":    addr(entry.Funder),
			"sequence":  u64(entry.Sequence),
			"amount":    FormatAmount(entry.Amount),
			"balance":   FormatAmount(balance),
			"timestamp": i64(entry.Timestamp),
		},
	}
}

// DistributionOpenedEvent describes a newly opened round.
func DistributionOpenedEvent(round *DistributionRound) *types.Event {
	return &types.Event{
		Type: EventTypeDistributionOpened,
		Attributes: map[string]string{
			"round":   u64(round.ID),
			"release": FormatAmount(round.Release),
			"asOf":    i64(round.AsOf),
		},
	}
}

// DistributionCompletedEvent summarises a settled round.
func DistributionCompletedEvent(s *Settlement) *types.Event {
	return &types.Event{
		Type: EventTypeDistributionCompleted,
		Attributes: map[string]string{
			"round":       u64(s.Round),
			"release":     FormatAmount(s.Release),
			"credited":    FormatAmount(s.Credited),
			"dust":        FormatAmount(s.Dust),
			"totalPoints": FormatAmount(s.TotalPoints),
			"eligible":    u64(s.EligibleRecords),
			"asOf":        i64(s.AsOf),
		},
	}
}

// DistributionAbortedEvent describes a round closed without crediting.
func DistributionAbortedEvent(round uint64, reason string) *types.Event {
	return &types.Event{
		Type: EventTypeDistributionAborted,
		Attributes: map[string]string{
			"round":  u64(round),
			"reason": reason,
		},
	}
}

// RewardsCreditedEvent describes one account's share of a round.
func RewardsCreditedEvent(round uint64, account [20]byte, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsCredited,
		Attributes: map[string]string{
			"round":   u64(round),
			"account": addr(account),
			"amount":  FormatAmount(amount),
		},
	}
}

// RewardsClaimedEvent describes a claim and the transfer paying it.
func RewardsClaimedEvent(account [20]byte, recordID uint64, amount *uint256.Int, transferID uint64) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsClaimed,
		Attributes: map[string]string{
			"account":    addr(account),
			"recordId":   u64(recordID),
			"amount":     FormatAmount(amount),
			"transferId": u64(transferID),
		},
	}
}

func transferAttributes(t *PendingTransfer) map[string]string {
	return map[string]string{
		"transferId": u64(t.ID),
		"kind":       t.Kind.String(),
		"account":    addr(t.Account),
		"recordId":   u64(t.RecordID),
		"amount":     FormatAmount(t.Amount),
		"attempts":   u64(uint64(t.Attempts)),
	}
}

// TransferConfirmedEvent describes a payout acknowledged by the token ledger.
func TransferConfirmedEvent(t *PendingTransfer) *types.Event {
	return &types.Event{Type: EventTypeTransferConfirmed, Attributes: transferAttributes(t)}
}

// TransferFailedEvent describes a payout the token ledger rejected.
func TransferFailedEvent(t *PendingTransfer, reason string) *types.Event {
	attrs := transferAttributes(t)
	attrs["reason"] = reason
	return &types.Event{Type: EventTypeTransferFailed, Attributes: attrs}
}

// TransferRetriedEvent describes a re-initiated payout.
func TransferRetriedEvent(t *PendingTransfer) *types.Event {
	return &types.Event{Type: EventTypeTransferRetried, Attributes: transferAttributes(t)}
}

// TransferDispatchErrorEvent describes a payout whose initiation errored.
func TransferDispatchErrorEvent(t *PendingTransfer, err error) *types.Event {
	attrs := transferAttributes(t)
	attrs["error"] = err.Error()
	return &types.Event{Type: EventTypeTransferDispatchError, Attributes: attrs}
}

// TierAssignedEvent describes an operator tier change.
func TierAssignedEvent(account [20]byte, previous, tier Tier) *types.Event {
	return &types.Event{
		Type: EventTypeTierAssigned,
		Attributes: map[string]string{
			"account":  addr(account),
			"previous": previous.String(),
			"tier":     tier.String(),
		},
	}
}

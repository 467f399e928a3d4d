package server

import (
	"stakeledger/crypto"
	"stakeledger/native/staking"
)

type recordView struct {
	ID               uint64 `json:"id"`
	Amount           string `json:"amount"`
	StartTime        int64  `json:"startTime"`
	LockupSeconds    uint64 `json:"lockupSeconds"`
	UnlockTime       int64  `json:"unlockTime"`
	Unlocked         bool   `json:"unlocked"`
	Claimable        bool   `json:"claimable"`
	Eligible         bool   `json:"eligible"`
	WeightBps        uint64 `json:"weightBps"`
	CurrentWeightBps uint64 `json:"currentWeightBps"`
	CreditedRewards  string `json:"creditedRewards"`
	Claimed          bool   `json:"claimed"`
	PendingTransfer  uint64 `json:"pendingTransfer,omitempty"`
}

type accountView struct {
	Address             string       `json:"address"`
	Tier                string       `json:"tier"`
	TotalStaked         string       `json:"totalStaked"`
	TotalCredited       string       `json:"totalCredited"`
	TotalRewardsClaimed string       `json:"totalRewardsClaimed"`
	HasClaimed          bool         `json:"hasClaimed"`
	Records             []recordView `json:"records"`
}

func newRecordViews(in []staking.RecordView) []recordView {
	out := make([]recordView, 0, len(in))
	for _, v := range in {
		rec := v.Record
		out = append(out, recordView{
			ID:               rec.ID,
			Amount:           staking.FormatAmount(rec.Amount),
			StartTime:        rec.StartTime,
			LockupSeconds:    rec.LockupDuration,
			UnlockTime:       v.UnlockTime,
			Unlocked:         v.Unlocked,
			Claimable:        v.Claimable,
			Eligible:         v.Eligible,
			WeightBps:        rec.WeightBps,
			CurrentWeightBps: v.CurrentWeightBps,
			CreditedRewards:  staking.FormatAmount(rec.CreditedRewards),
			Claimed:          rec.Claimed,
			PendingTransfer:  rec.PendingTransfer,
		})
	}
	return out
}

func newAccountView(v *staking.AccountView) accountView {
	return accountView{
		Address:             crypto.FormatAddress(v.Address),
		Tier:                v.Tier.String(),
		TotalStaked:         staking.FormatAmount(v.TotalStaked),
		TotalCredited:       staking.FormatAmount(v.TotalCredited),
		TotalRewardsClaimed: staking.FormatAmount(v.TotalRewardsClaimed),
		HasClaimed:          v.HasClaimed,
		Records:             newRecordViews(v.Records),
	}
}

type roundView struct {
	ID          uint64 `json:"id"`
	Release     string `json:"release"`
	AsOf        int64  `json:"asOf"`
	Cutoff      uint64 `json:"cutoff"`
	Phase       string `json:"phase"`
	Cursor      string `json:"cursor,omitempty"`
	TotalPoints string `json:"totalPoints"`
	Credited    string `json:"credited"`
	Eligible    uint64 `json:"eligibleRecords"`
}

func newRoundView(r *staking.DistributionRound) *roundView {
	if r == nil {
		return nil
	}
	view := &roundView{
		ID:          r.ID,
		Release:     staking.FormatAmount(r.Release),
		AsOf:        r.AsOf,
		Cutoff:      r.Cutoff,
		Phase:       r.Phase.String(),
		TotalPoints: staking.FormatAmount(r.TotalPoints),
		Credited:    staking.FormatAmount(r.Credited),
		Eligible:    r.Eligible,
	}
	var zero [20]byte
	if r.Cursor != zero {
		view.Cursor = crypto.FormatAddress(r.Cursor)
	}
	return view
}

type poolView struct {
	Balance              string     `json:"balance"`
	TotalStaked          string     `json:"totalStaked"`
	TotalFunded          string     `json:"totalFunded"`
	TotalDistributed     string     `json:"totalDistributed"`
	LastDistributionTime int64      `json:"lastDistributionTime"`
	EstimatedAPRBps      uint64     `json:"estimatedAprBps"`
	Round                *roundView `json:"round,omitempty"`
}

func newPoolView(p *staking.RewardPool, aprBps uint64) poolView {
	return poolView{
		Balance:              staking.FormatAmount(p.Balance),
		TotalStaked:          staking.FormatAmount(p.TotalStaked),
		TotalFunded:          staking.FormatAmount(p.TotalFunded),
		TotalDistributed:     staking.FormatAmount(p.TotalDistributed),
		LastDistributionTime: p.LastDistributionTime,
		EstimatedAPRBps:      aprBps,
		Round:                newRoundView(p.Round),
	}
}

type fundingView struct {
	Sequence  uint64 `json:"sequence"`
	Funder    string `json:"funder"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

func newFundingViews(in []*staking.FundingRecord) []fundingView {
	out := make([]fundingView, 0, len(in))
	for _, f := range in {
		out = append(out, fundingView{
			Sequence:  f.Sequence,
			Funder:    crypto.FormatAddress(f.Funder),
			Amount:    staking.FormatAmount(f.Amount),
			Timestamp: f.Timestamp,
		})
	}
	return out
}

type payoutView struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type settlementView struct {
	Round           uint64       `json:"round"`
	Release         string       `json:"release"`
	Credited        string       `json:"credited"`
	Dust            string       `json:"dust"`
	TotalPoints     string       `json:"totalPoints"`
	EligibleRecords uint64       `json:"eligibleRecords"`
	AsOf            int64        `json:"asOf"`
	ClosedAt        int64        `json:"closedAt"`
	Payouts         []payoutView `json:"payouts"`
}

func newSettlementView(s *staking.Settlement) *settlementView {
	if s == nil {
		return nil
	}
	view := &settlementView{
		Round:           s.Round,
		Release:         staking.FormatAmount(s.Release),
		Credited:        staking.FormatAmount(s.Credited),
		Dust:            staking.FormatAmount(s.Dust),
		TotalPoints:     staking.FormatAmount(s.TotalPoints),
		EligibleRecords: s.EligibleRecords,
		AsOf:            s.AsOf,
		ClosedAt:        s.ClosedAt,
		Payouts:         make([]payoutView, 0, len(s.Payouts)),
	}
	for _, p := range s.Payouts {
		view.Payouts = append(view.Payouts, payoutView{Account: crypto.FormatAddress(p.Account), Amount: staking.FormatAmount(p.Amount)})
	}
	return view
}

type transferView struct {
	ID        uint64 `json:"id"`
	Account   string `json:"account"`
	Kind      string `json:"kind"`
	RecordID  uint64 `json:"recordId"`
	Amount    string `json:"amount"`
	Principal string `json:"principal"`
	Rewards   string `json:"rewards"`
	Attempts  uint32 `json:"attempts"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	LastError string `json:"lastError,omitempty"`
}

func newTransferView(t *staking.PendingTransfer) transferView {
	return transferView{
		ID:        t.ID,
		Account:   crypto.FormatAddress(t.Account),
		Kind:      t.Kind.String(),
		RecordID:  t.RecordID,
		Amount:    staking.FormatAmount(t.Amount),
		Principal: staking.FormatAmount(t.Principal),
		Rewards:   staking.FormatAmount(t.Rewards),
		Attempts:  t.Attempts,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		LastError: t.LastError,
	}
}

func newTransferViews(in []*staking.PendingTransfer) []transferView {
	out := make([]transferView, 0, len(in))
	for _, t := range in {
		out = append(out, newTransferView(t))
	}
	return out
}

type weightStepView struct {
	ThresholdSeconds uint64 `json:"thresholdSeconds"`
	MultiplierBps    uint64 `json:"multiplierBps"`
}

type weightsView struct {
	Steps            []weightStepView  `json:"steps"`
	DefaultBps       uint64            `json:"defaultBps"`
	TierBoosts       map[string]uint64 `json:"tierBoosts"`
	EligibilityFloor uint64            `json:"eligibilityFloorSeconds"`
}

func newWeightsView(p staking.Params) weightsView {
	view := weightsView{
		DefaultBps:       p.Weights.DefaultBps(),
		TierBoosts:       make(map[string]uint64),
		EligibilityFloor: p.EligibilityFloor,
	}
	for _, step := range p.Weights.Steps() {
		view.Steps = append(view.Steps, weightStepView{ThresholdSeconds: step.Threshold, MultiplierBps: step.MultiplierBps})
	}
	for _, tier := range []staking.Tier{staking.TierNone, staking.TierDrone, staking.TierWorker, staking.TierQueen} {
		view.TierBoosts[tier.String()] = p.BoostFor(tier)
	}
	return view
}

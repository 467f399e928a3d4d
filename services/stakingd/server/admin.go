package server

import (
	"net/http"

	"stakeledger/crypto"
	"stakeledger/native/staking"
	"stakeledger/services/stakingd/export"
)

type distributeRequest struct {
	Release string `json:"release"`
	// Paginated opens a round advanced by later step calls.
	Paginated bool `json:"paginated"`
}

type roundOutcomeView struct {
	Round           *roundView      `json:"round,omitempty"`
	Done            bool            `json:"done"`
	NoEligibleStake bool            `json:"noEligibleStake"`
	Settlement      *settlementView `json:"settlement,omitempty"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	release, err := staking.ParseAmount(req.Release)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid release: "+err.Error())
		return
	}
	if req.Paginated {
		round, err := s.engine.BeginDistribution(s.operator, release)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, newRoundView(round))
		return
	}
	settlement, err := s.engine.Distribute(s.operator, release)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementView(settlement))
}

type stepRequest struct {
	Batch int `json:"batch"`
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	req := stepRequest{}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	batch := req.Batch
	if batch <= 0 {
		batch = s.cfg.RoundBatch
	}
	outcome, err := s.engine.StepDistribution(s.operator, batch)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roundOutcomeView{
		Round:           newRoundView(outcome.Round),
		Done:            outcome.Done,
		NoEligibleStake: outcome.NoEligibleStake,
		Settlement:      newSettlementView(outcome.Settlement),
	})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.AbortDistribution(s.operator); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	round, ok, err := s.engine.CurrentRound()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no distribution round open")
		return
	}
	writeJSON(w, http.StatusOK, newRoundView(round))
}

type tierRequest struct {
	Account string `json:"account"`
	Tier    string `json:"tier"`
}

func (s *Server) handleAssignTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := crypto.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account: "+err.Error())
		return
	}
	tier, err := staking.ParseTier(req.Tier)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if err := s.engine.AssignTier(s.operator, account, tier); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": crypto.FormatAddress(account), "tier": tier.String()})
}

// handleListTransfers pages pending transfers. With staleBefore set it lists
// only transfers untouched since that unix time.
func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	staleBefore, err := queryUint(r, "staleBefore")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var list []*staking.PendingTransfer
	if staleBefore > 0 {
		list, err = s.engine.StaleTransfers(int64(staleBefore), limit)
	} else {
		var after uint64
		after, err = queryUint(r, "after")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list, err = s.engine.PendingTransfers(after, limit)
	}
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": newTransferViews(list)})
}

func (s *Server) handleOperatorRetry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	transfer, err := s.engine.RetryTransfer(r.Context(), s.operator, id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newTransferView(transfer))
}

type exportRequest struct {
	Kinds []string `json:"kinds"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports not configured")
		return
	}
	req := exportRequest{}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	for _, kind := range req.Kinds {
		switch kind {
		case export.KindRecords, export.KindSettlements, export.KindFunding:
		default:
			writeError(w, http.StatusBadRequest, "unknown export kind "+kind)
			return
		}
	}
	manifests, err := s.exporter.Run(r.Context(), req.Kinds...)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exports": manifests})
}

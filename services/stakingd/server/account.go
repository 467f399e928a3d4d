package server

import (
	"net/http"

	"stakeledger/native/staking"
)

type lifecycleOp func(*Server, *http.Request, [20]byte, uint64) (*staking.PendingTransfer, error)

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	s.handleRecordTransfer(w, r, func(s *Server, r *http.Request, caller [20]byte, id uint64) (*staking.PendingTransfer, error) {
		return s.engine.Claim(r.Context(), caller, id)
	})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.handleRecordTransfer(w, r, func(s *Server, r *http.Request, caller [20]byte, id uint64) (*staking.PendingTransfer, error) {
		return s.engine.Unstake(r.Context(), caller, id)
	})
}

// handleOwnerRetry lets the beneficiary re-initiate its own stuck transfer.
func (s *Server) handleOwnerRetry(w http.ResponseWriter, r *http.Request) {
	s.handleRecordTransfer(w, r, func(s *Server, r *http.Request, caller [20]byte, id uint64) (*staking.PendingTransfer, error) {
		return s.engine.RetryTransfer(r.Context(), caller, id)
	})
}

func (s *Server) handleRecordTransfer(w http.ResponseWriter, r *http.Request, op lifecycleOp) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	transfer, err := op(s, r, principal.Address, id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newTransferView(transfer))
}

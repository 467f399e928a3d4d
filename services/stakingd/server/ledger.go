package server

import (
	"net/http"

	"stakeledger/crypto"
	"stakeledger/native/staking"
)

type notifyRequest struct {
	Sender  string `json:"sender"`
	Amount  string `json:"amount"`
	Message string `json:"message"`
}

type notifyResponse struct {
	Refund string `json:"refund"`
}

// handleNotify accepts a transfer notification. The response always names the
// amount the ledger must refund to the sender.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sender, err := crypto.ParseAddress(req.Sender)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sender: "+err.Error())
		return
	}
	amount, err := staking.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}
	refund, err := s.engine.NotifyTransfer(s.engine.Params().TokenLedger, sender, amount, req.Message)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			s.writeEngineError(w, r, err)
			return
		}
		writeJSON(w, status, errorResponse{Error: msg, Refund: staking.FormatAmount(refund)})
		return
	}
	writeJSON(w, http.StatusOK, notifyResponse{Refund: staking.FormatAmount(refund)})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	transfer, err := s.engine.ConfirmTransfer(s.engine.Params().TokenLedger, id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferView(transfer))
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req failRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	transfer, err := s.engine.FailTransfer(s.engine.Params().TokenLedger, id, req.Reason)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferView(transfer))
}

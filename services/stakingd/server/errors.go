package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"stakeledger/native/staking"
)

type errorResponse struct {
	Error  string `json:"error"`
	Refund string `json:"refund,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, staking.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, staking.ErrRecordNotFound),
		errors.Is(err, staking.ErrTransferNotFound),
		errors.Is(err, staking.ErrNoStake),
		errors.Is(err, staking.ErrNoDistribution):
		return http.StatusNotFound
	case staking.IsValidation(err):
		return http.StatusBadRequest
	case staking.IsState(err):
		return http.StatusConflict
	case staking.IsArithmetic(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("engine failure", slog.String("path", r.URL.Path), slog.Any("error", err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

package server

import (
	"net/http"

	"stakeledger/crypto"
	"stakeledger/services/stakingd/journal"
)

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.engine.Preview(addr)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(view))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.engine.Preview(addr)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": newRecordViews(view.Records)})
}

type eventView struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

func (s *Server) handleAccountEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event journal not configured")
		return
	}
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	after, err := queryUint(r, "after")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(r, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.events.Events(r.Context(), journal.Query{
		After:   after,
		Type:    r.URL.Query().Get("type"),
		Account: crypto.FormatAddress(addr),
		Limit:   limit,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	out := make([]eventView, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.Decode()
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		out = append(out, eventView{Sequence: rec.Sequence, Type: rec.Type, Attributes: attrs, CreatedAt: rec.CreatedAt.Unix()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.engine.Pool()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	apr, err := s.engine.EstimatedAPRBps()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(pool, apr))
}

func (s *Server) handleFunding(w http.ResponseWriter, r *http.Request) {
	from, err := queryUint(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(r, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log, err := s.engine.FundingLog(from, limit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"funding": newFundingViews(log)})
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.engine.Settlements(limit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	out := make([]*settlementView, 0, len(list))
	for _, st := range list {
		out = append(out, newSettlementView(st))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"settlements": out})
}

func (s *Server) handleWeights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newWeightsView(s.engine.Params()))
}

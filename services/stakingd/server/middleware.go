package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"stakeledger/observability"
	"stakeledger/observability/logging"
	"stakeledger/services/stakingd/ledgerclient"
)

const maxBodyBytes = 1 << 20

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack is required by the websocket upgrade on /v1/stream.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		elapsed := s.now().Sub(start)
		observability.HTTP().Observe(route, r.Method, status, elapsed)
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", route),
			slog.Int("status", status),
			slog.Duration("duration", elapsed))
	})
}

// requireLedger authenticates callbacks from the token ledger by recovering
// the signer of the request and comparing it with the configured ledger.
func (s *Server) requireLedger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unable to read body")
			return
		}
		_ = r.Body.Close()
		auth := ledgerclient.HeadersFrom(r.Header)
		err = s.ledgerVerifier.Verify(r.Context(), auth, r.Method, r.URL.Path, body)
		if err != nil {
			s.logger.Warn("ledger callback rejected",
				slog.String("path", r.URL.Path),
				logging.MaskField("signature", auth.Signature),
				slog.String("timestamp", auth.Timestamp),
				slog.String("nonce", auth.Nonce),
				slog.Any("error", err))
			if errors.Is(err, ledgerclient.ErrReplayedNonce) {
				writeError(w, http.StatusConflict, "ledger nonce already used")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid ledger signature")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

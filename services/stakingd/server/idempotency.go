package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"stakeledger/services/stakingd/journal"
)

// IdempotencyStore persists responses keyed by Idempotency-Key.
type IdempotencyStore interface {
	LookupIdempotency(ctx context.Context, key string) (*journal.IdempotencyKey, error)
	SaveIdempotency(ctx context.Context, record *journal.IdempotencyKey) error
}

const idempotencyHeader = "Idempotency-Key"

// withIdempotency replays the stored response when a key is reused by the same
// subject. Server errors are not stored so the client may retry.
func withIdempotency(store IdempotencyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if store == nil || key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 128 {
				writeError(w, http.StatusBadRequest, "idempotency key too long")
				return
			}
			subject := "anonymous"
			if p, ok := PrincipalFrom(r.Context()); ok {
				subject = p.Subject
			}
			record, err := store.LookupIdempotency(r.Context(), key)
			switch {
			case err == nil:
				if record.Subject != subject || record.Method != r.Method || record.Path != r.URL.Path {
					writeError(w, http.StatusUnprocessableEntity, "idempotency key reused for a different request")
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replay", "true")
				w.WriteHeader(record.Status)
				_, _ = w.Write([]byte(record.Response))
				return
			case !errors.Is(err, journal.ErrNotFound):
				logger.Error("idempotency lookup failed", slog.Any("error", err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			recorder := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)
			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				return
			}
			err = store.SaveIdempotency(r.Context(), &journal.IdempotencyKey{
				Key:      key,
				Subject:  subject,
				Method:   r.Method,
				Path:     r.URL.Path,
				Status:   status,
				Response: recorder.buf.String(),
			})
			if err != nil {
				logger.Warn("idempotency save failed", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
		})
	}
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}

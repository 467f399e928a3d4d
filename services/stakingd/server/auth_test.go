package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"stakeledger/crypto"
)

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticatorMiddleware(t *testing.T) {
	auth, err := NewAuthenticator(AuthConfig{HMACSecret: "secret", Issuer: "stakeledger", Audience: "stakingd"}, nil)
	require.NoError(t, err)

	subject := crypto.FormatAddress(fixedAddr(0x07))
	var seen *Principal
	handler := auth.Middleware("operator")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid := jwt.MapClaims{
		"sub":   subject,
		"iss":   "stakeledger",
		"aud":   "stakingd",
		"exp":   time.Now().Add(time.Minute).Unix(),
		"scope": "operator read",
	}

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "valid", token: signToken(t, valid, jwt.SigningMethodHS256, "secret"), status: http.StatusNoContent},
		{name: "wrong secret", token: signToken(t, valid, jwt.SigningMethodHS256, "other"), status: http.StatusUnauthorized},
		{name: "missing", token: "", status: http.StatusUnauthorized},
		{name: "no scope", token: signToken(t, jwt.MapClaims{
			"sub": subject, "iss": "stakeledger", "aud": "stakingd", "exp": time.Now().Add(time.Minute).Unix(),
		}, jwt.SigningMethodHS256, "secret"), status: http.StatusForbidden},
		{name: "expired", token: signToken(t, jwt.MapClaims{
			"sub": subject, "iss": "stakeledger", "aud": "stakingd", "exp": time.Now().Add(-time.Hour).Unix(), "scope": "operator",
		}, jwt.SigningMethodHS256, "secret"), status: http.StatusUnauthorized},
		{name: "wrong audience", token: signToken(t, jwt.MapClaims{
			"sub": subject, "iss": "stakeledger", "aud": "other", "exp": time.Now().Add(time.Minute).Unix(), "scope": "operator",
		}, jwt.SigningMethodHS256, "secret"), status: http.StatusUnauthorized},
		{name: "bad subject", token: signToken(t, jwt.MapClaims{
			"sub": "alice", "iss": "stakeledger", "aud": "stakingd", "exp": time.Now().Add(time.Minute).Unix(), "scope": "operator",
		}, jwt.SigningMethodHS256, "secret"), status: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusNoContent {
				require.NotNil(t, seen)
				require.Equal(t, fixedAddr(0x07), seen.Address)
				require.True(t, seen.HasScope("read"))
			}
		})
	}
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator(AuthConfig{HMACSecret: "  "}, nil)
	require.Error(t, err)
}

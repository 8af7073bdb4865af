package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

type stubVerifier struct {
	claims *domain.TokenClaims
	err    error
}

func (v *stubVerifier) ParseToken(token string) (*domain.TokenClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"bearer", "Bearer abc", "abc"},
		{"lowercase scheme", "bearer abc", "abc"},
		{"padded", "Bearer   abc  ", "abc"},
		{"basic", "Basic abc", ""},
		{"no token", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(r))
		})
	}
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name       string
		header     string
		verifier   *stubVerifier
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing token",
			verifier:   &stubVerifier{},
			wantStatus: http.StatusUnauthorized,
			wantError:  "missing authorization token",
		},
		{
			name:       "expired",
			header:     "Bearer t",
			verifier:   &stubVerifier{err: domain.ErrTokenExpired},
			wantStatus: http.StatusUnauthorized,
			wantError:  "token expired",
		},
		{
			name:       "invalid",
			header:     "Bearer t",
			verifier:   &stubVerifier{err: errors.New("bad signature")},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid token",
		},
		{
			name:       "claims past expiry",
			header:     "Bearer t",
			verifier:   &stubVerifier{claims: &domain.TokenClaims{UserID: "u", ExpiresAt: time.Now().Add(-time.Minute).Unix()}},
			wantStatus: http.StatusUnauthorized,
			wantError:  "token expired",
		},
		{
			name:       "valid",
			header:     "Bearer t",
			verifier:   &stubVerifier{claims: &domain.TokenClaims{UserID: "u", SessionID: "tab", ExpiresAt: future}},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *domain.AuthContext
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetAuthContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			NewAuthMiddleware(tt.verifier).Authenticate(next).ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.Contains(t, w.Body.String(), tt.wantError)
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, "u", got.UserID)
			assert.Equal(t, "tab", got.SessionID)
		})
	}
}

func TestAuthMiddleware_DefaultSessionID(t *testing.T) {
	var got *domain.AuthContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAuthContext(r.Context())
	})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer t")

	NewAuthMiddleware(&stubVerifier{claims: &domain.TokenClaims{UserID: "u"}}).Authenticate(next).ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, got)
	assert.Equal(t, "default", got.SessionID)
}

func TestGetAuthContext_Missing(t *testing.T) {
	assert.Nil(t, GetAuthContext(context.Background()))
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	w := httptest.NewRecorder()
	NewRecoveryMiddleware(nil).Handler(panicky).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	w := httptest.NewRecorder()
	NewLoggingMiddleware(nil).Handler(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	cors := NewCORSMiddleware([]string{"https://app.example.com"}).Handler(next)

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		cors.ServeHTTP(w, r)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		cors.ServeHTTP(w, r)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		cors.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

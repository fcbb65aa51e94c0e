package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(okHandler())

	tests := []struct {
		name   string
		method string
		path   string
		cookie bool
		want   int
	}{
		{"classify is open to devices", http.MethodPost, "/classify", false, http.StatusTeapot},
		{"upload is open to devices", http.MethodPost, "/upload", false, http.StatusTeapot},
		{"healthz is open", http.MethodGet, "/healthz", false, http.StatusTeapot},
		{"login page is open", http.MethodGet, "/login", false, http.StatusTeapot},
		{"api needs a session", http.MethodGet, "/api/artifacts", false, http.StatusUnauthorized},
		{"pages redirect to login", http.MethodGet, "/logs/info", false, http.StatusSeeOther},
		{"session passes", http.MethodGet, "/api/artifacts", true, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: "authenticated", Value: "true"})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

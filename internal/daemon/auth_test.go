package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := requireToken("secret", next)

	cases := []struct {
		name     string
		header   string
		query    string
		expected int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong header", "Bearer nope", "", http.StatusUnauthorized},
		{"correct header", "Bearer secret", "", http.StatusNoContent},
		{"query fallback", "", "?token=secret", http.StatusNoContent},
		{"wrong query", "", "?token=nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, w.Code)
			}
		})
	}
}

func TestRequireTokenDisabledWhenEmpty(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := requireToken("", next)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", w.Code)
	}
}

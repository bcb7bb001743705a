package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name  string
		token string
		setup func(r *http.Request)
		path  string
		want  int
	}{
		{"disabled", "", func(r *http.Request) {}, "/api/attempts", http.StatusOK},
		{"missing", "s3cret", func(r *http.Request) {}, "/api/attempts", http.StatusUnauthorized},
		{"bearer", "s3cret", func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }, "/api/attempts", http.StatusOK},
		{"wrong bearer", "s3cret", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "/api/attempts", http.StatusUnauthorized},
		{"query", "s3cret", func(r *http.Request) {}, "/api/view?token=s3cret", http.StatusOK},
		{"cookie", "s3cret", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "s3cret"}) }, "/logs", http.StatusOK},
		{"health is open", "s3cret", func(r *http.Request) {}, "/health", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			TokenMiddleware(tt.token, ok).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

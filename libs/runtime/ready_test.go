package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadyz(t *testing.T) {
	failing := func(context.Context) error { return errors.New("down") }
	passing := func(context.Context) error { return nil }

	cases := []struct {
		name       string
		checks     []ReadyCheck
		wantStatus int
		wantBody   string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"all passing", []ReadyCheck{{Name: "db", Check: passing}}, http.StatusOK, "ok"},
		{"required failing", []ReadyCheck{{Name: "db", Check: failing}}, http.StatusServiceUnavailable, "db: down"},
		{"optional failing", []ReadyCheck{{Name: "db", Check: passing}, {Name: "cache", Check: failing, Optional: true}}, http.StatusOK, "degraded: cache: down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := NewBaseMuxWithReady(tc.checks...)
			rw := httptest.NewRecorder()
			mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rw.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rw.Code)
			}
			if !strings.Contains(rw.Body.String(), tc.wantBody) {
				t.Fatalf("expected body to contain %q, got %q", tc.wantBody, rw.Body.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" {
		t.Fatal("expected debug level")
	}
	if ParseLevel("bogus").String() != "INFO" {
		t.Fatal("expected info fallback")
	}
}

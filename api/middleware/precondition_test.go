package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPreconditionParsesIfMatch(t *testing.T) {
	cases := []struct {
		header string
		want   int64
	}{
		{"7", 7},
		{`"12"`, 12},
		{`W/"3"`, 3},
	}
	for _, tc := range cases {
		var got int64
		h := Precondition(true, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = ExpectedVersionFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("If-Match", tc.header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || got != tc.want {
			t.Fatalf("%q: expected version %d, got %d (status %d)", tc.header, tc.want, got, rec.Code)
		}
	}
}

func TestPreconditionRejectsBadVersion(t *testing.T) {
	for _, header := range []string{"abc", "0", "-2"} {
		h := Precondition(false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("handler must not run for %q", header)
		}))
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("If-Match", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400 got %d", header, rec.Code)
		}
	}
}

func TestPreconditionMissingHeader(t *testing.T) {
	var got int64 = -1
	optional := Precondition(false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ExpectedVersionFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	optional.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK || got != 0 {
		t.Fatalf("expected pass-through with version 0, got %d (status %d)", got, rec.Code)
	}

	required := Precondition(true, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without If-Match")
	}))
	rec = httptest.NewRecorder()
	required.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

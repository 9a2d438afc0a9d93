package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

const addItemPath = "/api/v1/item-sessions/4f1c2b7e-8f0a-4c55-9d1e-2a3b4c5d6e7f/items"

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "fake:" + scope + ":" + id
}

func (f *fakeStore) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

func keyedRequest(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v (%s)", err, rec.Body.String())
	}
	return payload.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"initialize", http.MethodPost, "/api/v1/orders/o-1/item-session", sessionWriteTTL, true},
		{"add item", http.MethodPost, addItemPath, sessionWriteTTL, true},
		{"complete", http.MethodPost, "/api/v1/item-sessions/s-1/complete", completionTTL, true},
		{"update item", http.MethodPut, "/api/v1/item-sessions/s-1/items/i-1", 0, false},
		{"reset", http.MethodPost, "/api/v1/item-sessions/s-1/reset", 0, false},
		{"empty", http.MethodPost, "", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.path)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(addItemPath, "", `{"quantity":"1"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if called {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"2"`)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"version":2}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest(addItemPath, "abc", `{"quantity":"1"}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", first.Code)
	}
	if first.Header().Get(replayedHeader) != "" {
		t.Fatalf("first response must not be marked as replay")
	}
	for key, ttl := range store.ttls {
		if ttl != sessionWriteTTL {
			t.Fatalf("expected %s stored for %v, got %v", key, sessionWriteTTL, ttl)
		}
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedRequest(addItemPath, "abc", `{"quantity":"1"}`))
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" || replay.Header().Get("ETag") != `"2"` {
		t.Fatalf("expected headers preserved, got %v", replay.Header())
	}
	if replay.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected replay marker")
	}
	if replay.Body.String() != `{"data":{"version":2}}` {
		t.Fatalf("expected stored body got %s", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(addItemPath, "retry-me", `{}`))
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d", calls)
	}
	if store.size() != 0 {
		t.Fatalf("expected nothing stored, got %v", store.data)
	}
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	func() {
		defer func() { _ = recover() }()
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(addItemPath, "panics", `{}`))
	}()
	if store.size() != 0 {
		t.Fatalf("expected reservation released, got %v", store.data)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest(addItemPath, "busy", `{"quantity":"1"}`))
		done <- rec
	}()
	<-entered

	dup := httptest.NewRecorder()
	handler.ServeHTTP(dup, keyedRequest(addItemPath, "busy", `{"quantity":"1"}`))
	if dup.Code != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight duplicate, got %d", dup.Code)
	}
	if code := errorCode(t, dup); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeConflict, code)
	}

	close(release)
	if first := <-done; first.Code != http.StatusCreated {
		t.Fatalf("expected original request to finish with 201, got %d", first.Code)
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyDetectsRequestChange(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		ifMatch string
	}{
		{"body", `{"quantity":"2"}`, "3"},
		{"precondition", `{"quantity":"1"}`, "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			first := keyedRequest(addItemPath, "xyz", `{"quantity":"1"}`)
			first.Header.Set("If-Match", "3")
			handler.ServeHTTP(httptest.NewRecorder(), first)

			second := keyedRequest(addItemPath, "xyz", tt.body)
			second.Header.Set("If-Match", tt.ifMatch)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, second)

			if rec.Code != http.StatusConflict {
				t.Fatalf("expected 409 got %d", rec.Code)
			}
			if code := errorCode(t, rec); code != string(pkgerrors.CodeIdempotency) {
				t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, code)
			}
		})
	}
}

func TestIdempotencySkipsUnlistedRoutes(t *testing.T) {
	store := newFakeStore()
	called := false
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/item-sessions/x/reset", nil))
	if !called {
		t.Fatalf("expected pass-through")
	}
	if store.size() != 0 {
		t.Fatalf("unlisted routes must not touch the store")
	}
}

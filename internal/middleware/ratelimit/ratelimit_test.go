package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(perMinute int) (*Limiter, *time.Time) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(Config{RequestsPerMinute: perMinute, MaxClients: 16, ClientTTL: 10 * time.Minute})
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowWithinLimit(t *testing.T) {
	l, _ := newTestLimiter(3)

	for i := 1; i <= 3; i++ {
		if !l.Allow("10.1.1.1") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("10.1.1.1") {
		t.Error("request 4 should be rejected")
	}
	if !l.Allow("10.1.1.2") {
		t.Error("a different client has its own window")
	}
}

func TestWindowResetsAfterMinute(t *testing.T) {
	l, now := newTestLimiter(2)

	l.Allow("10.1.1.1")
	l.Allow("10.1.1.1")
	if l.Allow("10.1.1.1") {
		t.Fatal("third request in window should be rejected")
	}

	*now = now.Add(61 * time.Second)
	if !l.Allow("10.1.1.1") {
		t.Error("window older than a minute should restart")
	}
}

func TestActiveClients(t *testing.T) {
	l, _ := newTestLimiter(10)
	l.Allow("a")
	l.Allow("b")
	l.Allow("a")
	if got := l.ActiveClients(); got != 2 {
		t.Errorf("ActiveClients = %d, want 2", got)
	}
}

func TestMiddlewareSkipsReads(t *testing.T) {
	l, _ := newTestLimiter(1)
	handler := l.Middleware(func(*http.Request) string { return "1.2.3.4" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bills", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestMiddlewareLimitsMutations(t *testing.T) {
	l, _ := newTestLimiter(2)
	handler := l.Middleware(func(*http.Request) string { return "1.2.3.4" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bills", nil))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			if got := rec.Header().Get("Retry-After"); got != "60" {
				t.Errorf("Retry-After = %q, want 60", got)
			}
		}
	}

	want := []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestMiddlewareCustomRejection(t *testing.T) {
	l, _ := newTestLimiter(1)
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}
	handler := l.Middleware(func(*http.Request) string { return "x" }, onLimit)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/x", nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("custom onLimit status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

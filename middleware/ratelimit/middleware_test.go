package ratelimit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"transit-gateway/middleware/ratelimit/domain"
	"transit-gateway/middleware/ratelimit/infra"

	"github.com/benbjohnson/clock"
)

func newWindow(t *testing.T, quota int) (*infra.WindowStore, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	store, err := infra.NewWindowStore(10, quota, infra.WithClock(mock))
	if err != nil {
		t.Fatalf("window store: %v", err)
	}
	return store, mock
}

func serve(h http.Handler, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store, mock := newWindow(t, 2)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Counter:             store,
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	w1 := serve(h, "10.0.0.1:1234")
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=10.0.0.1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Fatalf("expected X-RateLimit-Limit=2, got %q", got)
	}

	// 2) segunda atinge a cota (count >= quota)
	mock.Add(20 * time.Second)
	w2 := serve(h, "10.0.0.1:1234")
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if w2.Body.Len() != 0 {
		t.Fatalf("expected empty body on rejection, got %q", w2.Body.String())
	}
	if got := w2.Header().Get("Retry-After"); got != "40" {
		t.Fatalf("expected Retry-After=40 (time left in the window), got %q", got)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_SkipsWhenNotApplicable(t *testing.T) {
	store, _ := newWindow(t, 1)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Counter: store,
		Applies: func(r *http.Request) bool { return false },
	})(next)

	for i := 0; i < 5; i++ {
		if w := serve(h, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
	if calls != 5 {
		t.Fatalf("expected 5 calls, got %d", calls)
	}
	if store.Len() != 0 {
		t.Fatalf("skipped requests must not be counted, table has %d keys", store.Len())
	}
}

func TestMiddleware_DefaultKeyIsRealIPHeader(t *testing.T) {
	store, _ := newWindow(t, 2)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{Counter: store})(next)

	// mesmo socket, IPs reais diferentes => cada um tem a sua contagem
	for _, ip := range []string{"192.0.2.1", "192.0.2.2"} {
		r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
		r.Header.Set(DefaultIPHeader, ip)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", ip, w.Code)
		}
	}

	if n, _ := store.Count("192.0.2.1"); n != 1 {
		t.Fatalf("expected count 1 for 192.0.2.1, got %d", n)
	}
}

func TestMiddleware_OnRejectSeesDecision(t *testing.T) {
	store, _ := newWindow(t, 1)

	var gotKey domain.Key
	var gotDec domain.Decision
	h := Middleware(Options{
		Counter: store,
		OnReject: func(r *http.Request, key domain.Key, dec domain.Decision) {
			gotKey, gotDec = key, dec
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next must not run")
	}))

	w := serve(h, "10.0.0.7:1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if gotKey != "10.0.0.7" || gotDec.Allowed {
		t.Fatalf("unexpected reject hook args: %q %+v", gotKey, gotDec)
	}
}

func TestMiddleware_TokenBucketHeaders(t *testing.T) {
	store, err := infra.NewTokenStore(10, 0.02, 1)
	if err != nil {
		t.Fatal(err)
	}

	h := Middleware(Options{
		Counter:             store,
		RetryAfter:          2500 * time.Millisecond,
		AddRateLimitHeaders: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w1 := serve(h, "10.0.0.1:1234")
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if w1.Header().Get("X-RateLimit-RPS") != "0.02" || w1.Header().Get("X-RateLimit-Burst") != "1" {
		t.Fatalf("unexpected token bucket headers: %v", w1.Header())
	}

	w2 := serve(h, "10.0.0.1:1234")
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "3" {
		// 2.5s arredondado para cima
		t.Fatalf("expected Retry-After=3, got %q", got)
	}
}

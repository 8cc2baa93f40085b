package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"hush/middleware"
	"hush/session"
	"hush/store"
)

func setupProtect(t *testing.T) (store.Store, *session.Manager, http.Handler, *int) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("error creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mgr := session.NewManager(s, 30, 15, false)

	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if _, ok := session.FromContext(r.Context()); !ok {
			t.Error("expected session on context for protected handler")
		}
	})
	mux.HandleFunc("/secrets", func(w http.ResponseWriter, r *http.Request) {})

	protected := map[string]bool{"/submit": true}
	handler := middleware.Chain(mux, middleware.Protect(protected, mgr))
	return s, mgr, handler, &calls
}

func TestProtectRedirectsUnauthenticated(t *testing.T) {
	_, _, handler, calls := setupProtect(t)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		r := httptest.NewRequest(method, "/submit", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if w.Code != http.StatusFound {
			t.Errorf("%s /submit: expected 302, got %d", method, w.Code)
		}
		if loc := w.Result().Header.Get("Location"); loc != "/login" {
			t.Errorf("%s /submit: expected redirect to /login, got %q", method, loc)
		}
	}
	if *calls != 0 {
		t.Errorf("expected protected handler never to run, ran %d times", *calls)
	}
}

func TestProtectPassesAuthenticated(t *testing.T) {
	s, mgr, handler, calls := setupProtect(t)

	userID, err := s.CreateUser(&store.User{Username: "u", PasswordHash: []byte("h"), PasswordSalt: []byte("s")})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	rec := httptest.NewRecorder()
	if err := mgr.CreateSession(rec, userID); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/submit", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for authenticated request, got %d", w.Code)
	}
	if *calls != 1 {
		t.Errorf("expected protected handler to run once, ran %d times", *calls)
	}
}

func TestProtectIgnoresPublicRoutes(t *testing.T) {
	_, _, handler, _ := setupProtect(t)

	r := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("expected public route to pass through, got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	handler := middleware.Chain(mux, middleware.RateLimit(1, 3))

	var last int
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "10.0.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		last = w.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 past the burst, got %d", last)
	}

	// a different client has its own bucket
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.2")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("expected fresh client to pass, got %d", w.Code)
	}
}

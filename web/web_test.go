package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hush/hr"
	"hush/session"
	"hush/store"
	"hush/web"
	"hush/ws"
)

func setupWeb(t *testing.T) (store.Store, *session.Manager, *web.Web) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	mgr := session.NewManager(s, 30, 15, false)
	return s, mgr, web.New(s, mgr, ws.New())
}

func get(handler hr.W, path string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestPagesRender(t *testing.T) {
	_, _, wb := setupWeb(t)

	pages := map[string]hr.W{
		"/":         wb.HandleHome,
		"/login":    wb.HandleLoginPage,
		"/register": wb.HandleRegisterPage,
		"/submit":   wb.HandleSubmitPage,
	}
	for path, handler := range pages {
		w := get(handler, path)
		require.Equal(t, http.StatusOK, w.Code, path)
		require.Contains(t, w.Body.String(), "</html>", path)
	}
}

func TestSecretsPageListsOnlySetSecrets(t *testing.T) {
	s, _, wb := setupWeb(t)

	teller, err := s.CreateUser(&store.User{Username: "teller", PasswordHash: []byte("h"), PasswordSalt: []byte("s")})
	require.NoError(t, err)
	_, err = s.CreateUser(&store.User{Username: "lurker", PasswordHash: []byte("h"), PasswordSalt: []byte("s")})
	require.NoError(t, err)
	require.NoError(t, s.SetSecret(teller, "my plants are plastic"))

	w := get(wb.HandleSecrets, "/secrets")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Contains(t, body, "my plants are plastic")
	require.Contains(t, body, "teller")
	require.NotContains(t, body, "lurker")
}

func TestSubmitSetsSecretForSessionUser(t *testing.T) {
	s, mgr, wb := setupWeb(t)

	userID, err := s.CreateUser(&store.User{Username: "alice", PasswordHash: []byte("h"), PasswordSalt: []byte("s")})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, mgr.CreateSession(rec, userID))
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			token = c.Value
		}
	}
	result, err := mgr.ValidateSessionToken(token)
	require.NoError(t, err)

	form := url.Values{"secret": {"i sing in the shower"}}
	r := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r = r.WithContext(context.WithValue(r.Context(), session.SessionContextKey, result))
	w := httptest.NewRecorder()
	hr.W(wb.HandleSubmit).ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/secrets", w.Result().Header.Get("Location"))

	users, err := s.UsersWithSecret()
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, userID, users[0].ID)
	require.Equal(t, "i sing in the shower", users[0].Secret)
}

func TestSubmitWithoutSessionRedirectsToLogin(t *testing.T) {
	s, _, wb := setupWeb(t)

	form := url.Values{"secret": {"should never land"}}
	r := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	hr.W(wb.HandleSubmit).ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", w.Result().Header.Get("Location"))

	users, err := s.UsersWithSecret()
	require.NoError(t, err)
	require.Empty(t, users, "unauthenticated submit must not mutate any record")
}

func TestLogoutRedirectsHome(t *testing.T) {
	_, _, wb := setupWeb(t)

	w := get(wb.HandleLogout, "/logout")
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Result().Header.Get("Location"))
}

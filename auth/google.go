package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"hush/cryptoutil"
	"hush/hr"
	"hush/session"
	"hush/store"
)

const (
	googleUserInfoURL          = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleOAuthStateCookieName = "google_oauth_state"
)

type Google struct {
	conf       *oauth2.Config
	store      store.Store
	sessionMgr *session.Manager
}

type GoogleCfg struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Store        store.Store
	SessionMgr   *session.Manager
}

func NewGoogle(cfg GoogleCfg) *Google {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.CallbackURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.profile",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}
	return &Google{
		conf:       conf,
		store:      cfg.Store,
		sessionMgr: cfg.SessionMgr,
	}
}

// HandleLogin begins the consent flow. The state value is kept in a
// short-lived cookie and checked again on the callback.
func (g *Google) HandleLogin(w http.ResponseWriter, r *http.Request) *hr.Error {
	state, err := cryptoutil.CreateState()
	if err != nil {
		return hr.To("/login", err, "failed to create oauth state")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     googleOAuthStateCookieName,
		Value:    state,
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, g.conf.AuthCodeURL(state), http.StatusFound)
	return nil
}

type googleProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HandleCallback finishes the flow: state check, code exchange, profile
// fetch, then find-or-create by google id and session creation. Every
// failure sends the client back to /login.
func (g *Google) HandleCallback(w http.ResponseWriter, r *http.Request) *hr.Error {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")
	storedState, err := r.Cookie(googleOAuthStateCookieName)
	if err != nil || storedState.Value != state || code == "" {
		return hr.To("/login", err, "invalid oauth state or missing code")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     googleOAuthStateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	token, err := g.conf.Exchange(r.Context(), code)
	if err != nil {
		return hr.To("/login", err, "oauth code exchange failed")
	}

	client := g.conf.Client(r.Context(), token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return hr.To("/login", err, "failed to fetch google user info")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return hr.To("/login", fmt.Errorf("userinfo status %d", resp.StatusCode), "google user info request rejected")
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return hr.To("/login", err, "failed to decode google user info")
	}
	if profile.ID == "" {
		return hr.To("/login", errors.New("empty profile id"), "google profile without subject id")
	}

	user, err := g.findOrCreateUser(&profile)
	if err != nil {
		return hr.To("/login", err, "failed to resolve google identity")
	}

	if err := g.sessionMgr.CreateSession(w, user.ID); err != nil {
		return hr.To("/login", err, "failed to create session")
	}

	http.Redirect(w, r, "/secrets", http.StatusFound)
	return nil
}

// findOrCreateUser resolves the profile's subject id to exactly one user.
// The unique index on google_id settles a concurrent first login: the
// losing insert comes back with a conflict and re-reads the winner's row.
func (g *Google) findOrCreateUser(profile *googleProfile) (*store.User, error) {
	user, err := g.store.UserByGoogleID(profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	newUser := &store.User{
		GoogleID: profile.ID,
		Name:     profile.Name,
	}
	userID, err := g.store.CreateUser(newUser)
	if err == nil {
		newUser.ID = userID
		return newUser, nil
	}
	if errors.Is(err, store.ErrGoogleIDTaken) {
		return g.store.UserByGoogleID(profile.ID)
	}
	return nil, err
}

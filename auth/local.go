package auth

import (
	"errors"
	"net/http"

	"hush/cryptoutil"
	"hush/hr"
	"hush/session"
	"hush/store"
)

// Local handles the username/password path. Registration derives an
// argon2id verifier and logs the new account in; login verifies first and
// only then establishes the session.
type Local struct {
	store      store.Store
	sessionMgr *session.Manager
}

func NewLocal(store store.Store, sessionMgr *session.Manager) *Local {
	return &Local{
		store:      store,
		sessionMgr: sessionMgr,
	}
}

func (l *Local) HandleRegister(w http.ResponseWriter, r *http.Request) *hr.Error {
	if err := r.ParseForm(); err != nil {
		return hr.To("/register", err, "failed to parse register form")
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		return hr.To("/register", errors.New("missing username or password"), "incomplete register form")
	}

	hash, salt, err := cryptoutil.DerivePassword(password)
	if err != nil {
		return hr.To("/register", err, "failed to derive password")
	}

	userID, err := l.store.CreateUser(&store.User{
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
	})
	if err != nil {
		return hr.To("/register", err, "failed to create local user")
	}

	if err := l.sessionMgr.CreateSession(w, userID); err != nil {
		return hr.To("/register", err, "failed to create session after register")
	}

	http.Redirect(w, r, "/secrets", http.StatusFound)
	return nil
}

// HandleLogin verifies the password before any session is touched. Unknown
// username and wrong password take the same exit so the response does not
// reveal which accounts exist.
func (l *Local) HandleLogin(w http.ResponseWriter, r *http.Request) *hr.Error {
	if err := r.ParseForm(); err != nil {
		return hr.To("/login", err, "failed to parse login form")
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		return hr.To("/login", errors.New("missing username or password"), "incomplete login form")
	}

	user, err := l.store.UserByUsername(username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return hr.To("/login", err, "login with unknown username")
		}
		return hr.To("/login", err, "failed to look up user")
	}

	if !cryptoutil.VerifyPassword(password, user.PasswordHash, user.PasswordSalt) {
		return hr.To("/login", errors.New("password mismatch"), "invalid credentials")
	}

	if err := l.sessionMgr.CreateSession(w, user.ID); err != nil {
		return hr.To("/login", err, "failed to create session after login")
	}

	http.Redirect(w, r, "/secrets", http.StatusFound)
	return nil
}

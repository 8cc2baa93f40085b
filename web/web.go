package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"hush/hr"
	"hush/session"
	"hush/store"
	"hush/ws"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Web renders the pages and owns the secret submission flow. Everything
// here is glue: the identity work happens in session and auth, the data
// work in store.
type Web struct {
	store      store.Store
	sessionMgr *session.Manager
	hub        *ws.Hub
	tmpl       *template.Template
}

func New(store store.Store, sessionMgr *session.Manager, hub *ws.Hub) *Web {
	tmpl := template.Must(template.ParseFS(templatesFS, "templates/*.html"))
	return &Web{
		store:      store,
		sessionMgr: sessionMgr,
		hub:        hub,
		tmpl:       tmpl,
	}
}

func (web *Web) render(w http.ResponseWriter, name string, data any, failTo string) *hr.Error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := web.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return hr.To(failTo, err, "failed to render "+name)
	}
	return nil
}

func (web *Web) HandleHome(w http.ResponseWriter, r *http.Request) *hr.Error {
	return web.render(w, "home.html", nil, "/login")
}

func (web *Web) HandleLoginPage(w http.ResponseWriter, r *http.Request) *hr.Error {
	return web.render(w, "login.html", nil, "/")
}

func (web *Web) HandleRegisterPage(w http.ResponseWriter, r *http.Request) *hr.Error {
	return web.render(w, "register.html", nil, "/")
}

// HandleSubmitPage renders the secret form. The Protect middleware has
// already turned away anyone without a session.
func (web *Web) HandleSubmitPage(w http.ResponseWriter, r *http.Request) *hr.Error {
	return web.render(w, "submit.html", nil, "/login")
}

type secretView struct {
	Name   string
	Secret string
}

func (web *Web) HandleSecrets(w http.ResponseWriter, r *http.Request) *hr.Error {
	users, err := web.store.UsersWithSecret()
	if err != nil {
		return hr.To("/", err, "failed to list users with secrets")
	}

	views := make([]secretView, 0, len(users))
	for i := range users {
		views = append(views, secretView{
			Name:   users[i].DisplayName(),
			Secret: users[i].Secret,
		})
	}

	data := struct {
		Secrets []secretView
	}{Secrets: views}
	return web.render(w, "secrets.html", data, "/")
}

// HandleSubmit overwrites the authenticated user's secret. Ownership is
// enforced here by taking the user id from the session, never from the
// form.
func (web *Web) HandleSubmit(w http.ResponseWriter, r *http.Request) *hr.Error {
	result, ok := session.FromContext(r.Context())
	if !ok || result == nil || result.User == nil {
		return hr.To("/login", errors.New("no session data on context"), "submit without session")
	}

	if err := r.ParseForm(); err != nil {
		return hr.To("/submit", err, "failed to parse submit form")
	}
	secret := r.PostFormValue("secret")
	if secret == "" {
		return hr.To("/submit", errors.New("empty secret"), "submit without secret")
	}

	if err := web.store.SetSecret(result.User.ID, secret); err != nil {
		return hr.To("/secrets", err, "failed to save secret")
	}

	web.hub.Broadcast(ws.Event{
		Name:   result.User.DisplayName(),
		Secret: secret,
	})

	http.Redirect(w, r, "/secrets", http.StatusFound)
	return nil
}

func (web *Web) HandleLogout(w http.ResponseWriter, r *http.Request) *hr.Error {
	web.sessionMgr.Logout(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
	return nil
}

// Package hr wraps page handlers so that every failure follows the same
// policy: log the cause server-side, send the client to a safe page.
package hr

import (
	"log/slog"
	"net/http"
)

type Error struct {
	Err      error
	Desc     string
	Redirect string
}

type W func(w http.ResponseWriter, r *http.Request) *Error

func (fn W) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e := fn(w, r); e != nil {
		slog.Error("error in handler", "desc", e.Desc, "err", e.Err, "redirect", e.Redirect)
		http.Redirect(w, r, e.Redirect, http.StatusFound)
	}
}

// To builds an Error that redirects the client to path.
func To(path string, err error, desc string) *Error {
	return &Error{
		Err:      err,
		Desc:     desc,
		Redirect: path,
	}
}

package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"pwreset/internal/auth"
	"pwreset/internal/session"
)

const (
	msgLoginFailed   = "Incorrect username or password."
	msgTokenInvalid  = "Password reset token is invalid or has expired."
	msgNoSuchAccount = "No account with that email address exists."
	msgMailFailed    = "We could not send the reset email right now. Please try again in a few minutes."
	msgResetDone     = "Success! Your password has been changed."
)

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, sessionFrom(r), "index", pageData{Title: "Home"})
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, sessionFrom(r), "login", pageData{Title: "Login"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	_, err := s.gate.Login(r.Context(), sess, r.PostFormValue("username"), r.PostFormValue("password"))
	var af *auth.AuthFailure
	switch {
	case err == nil:
		s.redirect(w, r, sess, "/")
	case errors.As(err, &af):
		sess.AddFlash(session.FlashError, msgLoginFailed)
		s.redirect(w, r, sess, "/login")
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) signupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, sessionFrom(r), "signup", pageData{Title: "Sign up"})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	_, err := s.gate.Signup(r.Context(), sess,
		r.PostFormValue("username"), r.PostFormValue("email"), r.PostFormValue("password"))
	var verr *auth.ValidationError
	switch {
	case err == nil:
		s.redirect(w, r, sess, "/")
	case errors.As(err, &verr):
		sess.AddFlash(session.FlashError, verr.Message)
		s.redirect(w, r, sess, "/signup")
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.gate.Logout(r.Context(), sess); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.redirect(w, r, sess, "/")
}

func (s *Server) forgotForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, sessionFrom(r), "forgot", pageData{Title: "Forgot Password"})
}

func (s *Server) forgot(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	email := r.PostFormValue("email")
	err := s.resets.Request(r.Context(), email, s.linkBase(r))

	var verr *auth.ValidationError
	var mderr *auth.MailDeliveryError
	switch {
	case err == nil:
		sess.AddFlash(session.FlashInfo, fmt.Sprintf("An email has been sent to %s with further instructions.", email))
	case errors.Is(err, auth.ErrNoSuchAccount):
		sess.AddFlash(session.FlashError, msgNoSuchAccount)
	case errors.As(err, &mderr):
		sess.AddFlash(session.FlashWarning, msgMailFailed)
	case errors.As(err, &verr):
		sess.AddFlash(session.FlashError, verr.Message)
	default:
		s.serverError(w, r, err)
		return
	}
	s.redirect(w, r, sess, "/forgot")
}

func (s *Server) resetForm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	token := mux.Vars(r)["token"]

	_, err := s.resets.Validate(r.Context(), token)
	switch {
	case err == nil:
		s.render(w, r, sess, "reset", pageData{Title: "Reset Password", Token: token})
	case errors.Is(err, auth.ErrTokenInvalid):
		sess.AddFlash(session.FlashError, msgTokenInvalid)
		s.redirect(w, r, sess, "/forgot")
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	token := mux.Vars(r)["token"]

	_, err := s.resets.Consume(r.Context(), sess, token, r.PostFormValue("password"))
	var verr *auth.ValidationError
	switch {
	case err == nil:
		sess.AddFlash(session.FlashSuccess, msgResetDone)
		s.redirect(w, r, sess, "/")
	case errors.Is(err, auth.ErrTokenInvalid):
		sess.AddFlash(session.FlashError, msgTokenInvalid)
		s.redirect(w, r, sess, "/forgot")
	case errors.As(err, &verr):
		sess.AddFlash(session.FlashError, verr.Message)
		s.redirect(w, r, sess, "/reset/"+token)
	default:
		s.serverError(w, r, err)
	}
}

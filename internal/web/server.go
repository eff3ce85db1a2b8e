// Package web serves the server-rendered pages and form endpoints.
package web

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"pwreset/internal/auth"
	"pwreset/internal/logging"
	"pwreset/internal/models"
	"pwreset/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type ctxKey struct{}

// Options configures a Server.
type Options struct {
	// BaseURL prefixes links in outgoing mail. Empty means derive it from
	// the request host.
	BaseURL string
	// StaticDir is served under /static/. Empty disables static files.
	StaticDir string
}

// Server holds the HTTP handlers.
type Server struct {
	gate      *auth.Gate
	resets    *auth.ResetManager
	sessions  *session.Manager
	templates *template.Template
	log       logging.Logger
	opts      Options
}

func NewServer(gate *auth.Gate, resets *auth.ResetManager, sessions *session.Manager, log logging.Logger, opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		gate:      gate,
		resets:    resets,
		sessions:  sessions,
		templates: tmpl,
		log:       log.With("component", "web"),
		opts:      opts,
	}, nil
}

// Router returns the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if s.opts.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.opts.StaticDir))
		r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", fs))
	}

	pages := r.NewRoute().Subrouter()
	pages.Use(s.withSession)
	pages.HandleFunc("/", s.home).Methods(http.MethodGet)
	pages.HandleFunc("/login", s.loginForm).Methods(http.MethodGet)
	pages.HandleFunc("/login", s.login).Methods(http.MethodPost)
	pages.HandleFunc("/signup", s.signupForm).Methods(http.MethodGet)
	pages.HandleFunc("/signup", s.signup).Methods(http.MethodPost)
	pages.HandleFunc("/logout", s.logout).Methods(http.MethodGet)
	pages.HandleFunc("/forgot", s.forgotForm).Methods(http.MethodGet)
	pages.HandleFunc("/forgot", s.forgot).Methods(http.MethodPost)
	pages.HandleFunc("/reset/{token}", s.resetForm).Methods(http.MethodGet)
	pages.HandleFunc("/reset/{token}", s.reset).Methods(http.MethodPost)

	return r
}

// Handler wraps Router with panic recovery and an access log written to
// accessLog.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.Router())
	return handlers.LoggingHandler(accessLog, h)
}

func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Load(r)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	if sess, ok := r.Context().Value(ctxKey{}).(*session.Session); ok {
		return sess
	}
	return session.New()
}

type pageData struct {
	Title   string
	User    *models.User
	Flashes []session.Flash
	Token   string
}

// render executes the named template into a buffer, persists the session
// (which sets the cookie) and only then writes the response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, sess *session.Session, name string, data pageData) {
	ctx := r.Context()
	wasAuthenticated := sess.Authenticated()
	user, err := s.gate.CurrentUser(ctx, sess)
	if err != nil {
		s.log.Error(ctx, "resolve current user failed", "error", err)
	}
	data.User = user
	data.Flashes = sess.PopFlashes()
	dirty := len(data.Flashes) > 0 || (wasAuthenticated && !sess.Authenticated())

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error(ctx, "render failed", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := s.sessions.Persist(ctx, w, sess, dirty); err != nil {
		s.log.Error(ctx, "session save failed", "error", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// redirect persists the session and redirects with 302 Found.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, sess *session.Session, to string) {
	if err := s.sessions.Persist(r.Context(), w, sess, false); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, to, http.StatusFound)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)

	var buf bytes.Buffer
	if terr := s.templates.ExecuteTemplate(&buf, "error", pageData{Title: "Error"}); terr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(buf.Bytes())
}

// linkBase is the origin used in mailed links.
func (s *Server) linkBase(r *http.Request) string {
	if s.opts.BaseURL != "" {
		return strings.TrimRight(s.opts.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

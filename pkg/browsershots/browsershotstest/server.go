// Package browsershotstest runs a small in-process imitation of the
// browsershots pages the keeper talks to.
package browsershotstest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

const sessionCookie = "sessionid"

// Config drives the fake site.
type Config struct {
	CSRF     string
	Username string
	Password string
	// Pending lists the extend id shown on the n-th status page fetch. An
	// empty entry, or a fetch past the end, renders a page without the anchor.
	Pending []string

	LandingStatus int
	StatusStatus  int
	RejectLogin   bool
	RejectExtend  bool
}

// Hits counts requests per endpoint.
type Hits struct {
	Landing int
	Login   int
	Status  int
	Extend  int
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	cfg      Config
	hits     Hits
	sessions map[string]bool
	extended []string
	logins   []string
	seq      int
}

func NewServer(cfg Config) *Server {
	if cfg.CSRF == "" {
		cfg.CSRF = "TOK1"
	}
	if cfg.LandingStatus == 0 {
		cfg.LandingStatus = http.StatusOK
	}
	if cfg.StatusStatus == 0 {
		cfg.StatusStatus = http.StatusOK
	}

	s := &Server{cfg: cfg, sessions: make(map[string]bool)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.route))
	return s
}

// route dispatches without http.ServeMux so job paths that embed a full
// URL ("/http://example.org/") are not cleaned and redirected.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/accounts/signin":
		s.handleSignIn(w, r)
	case "/ajax/requests/extend":
		s.handleExtend(w, r)
	default:
		s.handlePage(w, r)
	}
}

// JobURL returns a status page URL on this server.
func (s *Server) JobURL(path string) string {
	return s.URL + "/" + strings.TrimLeft(path, "/")
}

func (s *Server) Hits() Hits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// Extended returns the request group ids the site accepted extends for.
func (s *Server) Extended() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.extended...)
}

// LoginTokens returns the csrf values posted to the sign-in form.
func (s *Server) LoginTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logins...)
}

func (s *Server) authenticated(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	return err == nil && s.sessions[c.Value]
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Path == "/" {
		s.hits.Landing++
		w.WriteHeader(s.cfg.LandingStatus)
		if s.cfg.LandingStatus != http.StatusOK {
			fmt.Fprint(w, "<html><body>maintenance</body></html>")
			return
		}
		fmt.Fprintf(w, "<html><body>\n<form action='/accounts/signin' method='post'>"+
			"<div style='display:none'><input type='hidden' name='csrfmiddlewaretoken' value='%s' /></div>\n"+
			"<input type='text' name='username'></form>\n</body></html>", s.cfg.CSRF)
		return
	}

	s.hits.Status++
	if !s.authenticated(r) {
		http.Error(w, "login required", http.StatusForbidden)
		return
	}
	if s.cfg.StatusStatus != http.StatusOK {
		http.Error(w, "status page unavailable", s.cfg.StatusStatus)
		return
	}

	idx := s.hits.Status - 1
	id := ""
	if idx < len(s.cfg.Pending) {
		id = s.cfg.Pending[idx]
	}

	fmt.Fprint(w, "<html><body>\n<a href=\"/accounts/logout\">Log out</a>\n<table>")
	if id != "" {
		fmt.Fprintf(w, "<tr><td>Queued</td><td><a id=\"%s\" rel=\"extend\" href=\"#\">extend</a></td></tr>", id)
	} else {
		fmt.Fprint(w, "<tr><td>Finished</td></tr>")
	}
	fmt.Fprint(w, "</table>\n</body></html>")
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits.Login++
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	s.logins = append(s.logins, r.PostForm.Get("csrfmiddlewaretoken"))

	ok := !s.cfg.RejectLogin &&
		r.PostForm.Get("csrfmiddlewaretoken") == s.cfg.CSRF &&
		r.PostForm.Get("username") == s.cfg.Username &&
		r.PostForm.Get("password") == s.cfg.Password &&
		r.PostForm.Get("remember") == "on" &&
		r.PostForm.Get("fromurl") == "/" &&
		r.Header.Get("Origin") != ""

	if !ok {
		fmt.Fprint(w, "<html><body><p class='error'>Please enter a correct username and password.</p>"+
			"<a href=\"/accounts/signin\">Sign in</a></body></html>")
		return
	}

	s.seq++
	session := fmt.Sprintf("session-%d", s.seq)
	s.sessions[session] = true
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, Path: "/"})
	fmt.Fprint(w, "<html><body><a class=\"nav\" href=\"/accounts/logout\">Log out</a></body></html>")
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits.Extend++
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost || !s.authenticated(r) || r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
		fmt.Fprint(w, `{"success": false, "error": "not allowed"}`)
		return
	}
	if err := r.ParseForm(); err != nil || s.cfg.RejectExtend {
		fmt.Fprint(w, `{"success": false}`)
		return
	}

	s.extended = append(s.extended, r.PostForm.Get("request_group_id"))
	fmt.Fprint(w, `{"success": true, "expire": "30 minutes"}`)
}

//go:build acceptance
// +build acceptance

package acceptance

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/networkteam/sessionkit/cookie"
)

// Test credentials accepted by the test site.
const (
	TestUsername = "tester"
	TestPassword = "s3cret-pass"
)

// TestSite imitates the parts of bll.by the suite drives: a login form setting the
// session cookie, pages with an authenticated marker and a burger menu that opens
// with a delay and hides some items in a collapsed submenu, a feedback form with
// captcha and redirects.
type TestSite struct {
	Server *httptest.Server
	URL    string

	sessions atomic.Int64
	mu       sync.Mutex
	issued   map[string]bool
}

var sitePage = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="ru"><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
  .burger-menu { display: none; position: absolute; top: 40px; left: 0; width: 300px; background: #fff; }
  .burger-menu.open { display: block; }
  .burger-menu a { display: block; padding: 8px; }
  .cookie-banner { position: fixed; bottom: 0; left: 0; width: 100%; height: 40px; background: #333; z-index: 10; }
  .submenu { display: none; }
</style></head>
<body>
<header>
  <button class="burger" aria-label="Открыть меню" onclick="setTimeout(() => document.querySelector('.burger-menu').classList.add('open'), 50)">☰</button>
  {{if .Authenticated}}<a class="profile-link" href="/logout">Выход</a>{{else}}<a href="/login">Вход</a>{{end}}
</header>
<div class="cookie-banner">Мы используем cookie</div>
<nav class="burger-menu">
  <a href="/news">Новости</a>
  <a href="/docs">Документы</a>
  <a href="/feedback">Обратная связь</a>
  <div class="submenu"><a href="/archive">Архив</a></div>
</nav>
<main><h1>{{.Title}}</h1>{{.Body}}</main>
</body></html>`))

// NewTestSite starts the test site.
func NewTestSite(t *testing.T) *TestSite {
	t.Helper()

	site := &TestSite{issued: make(map[string]bool)}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		site.render(w, r, "Вход", template.HTML(`<form method="post" action="/login">
  <input name="username" type="text">
  <input name="password" type="password">
  <button type="submit">Войти</button>
</form>`+errorHTML(r.URL.Query().Get("error"))))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != TestUsername || r.FormValue("password") != TestPassword {
			http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
			return
		}
		token := fmt.Sprintf("tok_%08d_session", site.sessions.Add(1))
		site.Issue(token)
		http.SetCookie(w, &http.Cookie{Name: cookie.Name, Value: token, Path: "/", HttpOnly: true})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: cookie.Name, Value: "", Path: "/", MaxAge: -1})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /feedback", func(w http.ResponseWriter, r *http.Request) {
		site.render(w, r, "Обратная связь", template.HTML(`<form id="feedback" method="post" action="/feedback">
  <input name="name" type="text">
  <input name="email" type="email">
  <textarea name="message"></textarea>
  <input name="website" type="text" style="display:none" tabindex="-1" autocomplete="off">
  <div class="smart-captcha" data-sitekey="test-key"></div>
  <button type="submit">Отправить</button>
</form>`))
	})
	mux.HandleFunc("POST /feedback", func(w http.ResponseWriter, r *http.Request) {
		// Without a solved captcha the site refuses the submission
		if r.FormValue("smart-token") == "" {
			w.WriteHeader(http.StatusForbidden)
			site.render(w, r, "Доступ запрещен", template.HTML(`<p class="error">Подтвердите, что вы не робот</p>`))
			return
		}
		site.render(w, r, "Спасибо", "")
	})
	mux.HandleFunc("GET /restricted", func(w http.ResponseWriter, r *http.Request) {
		// Anti-bot protection answers automated clients with 403
		w.WriteHeader(http.StatusForbidden)
		site.render(w, r, "Доступ запрещен", "")
	})
	mux.HandleFunc("GET /old-news", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/news", http.StatusMovedPermanently)
	})
	mux.HandleFunc("GET /personal", func(w http.ResponseWriter, r *http.Request) {
		if !site.authenticated(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		site.render(w, r, "Личный кабинет", "")
	})
	mux.HandleFunc("GET /{page...}", func(w http.ResponseWriter, r *http.Request) {
		title := strings.Trim(r.URL.Path, "/")
		if title == "" {
			title = "Главная"
		}
		site.render(w, r, title, "")
	})

	site.Server = httptest.NewServer(mux)
	site.URL = site.Server.URL
	return site
}

// Close shuts down the test site.
func (s *TestSite) Close() {
	s.Server.Close()
}

// LocalhostURL returns the site URL with the host name localhost instead of the
// loopback IP, so two sites can have different hosts.
func (s *TestSite) LocalhostURL() string {
	return strings.Replace(s.URL, "127.0.0.1", "localhost", 1)
}

// LoginURL returns the URL of the login form.
func (s *TestSite) LoginURL() string {
	return s.URL + "/login"
}

// Issue makes the site accept token, as the shared session store of the bll.by
// subdomains does for tokens issued by another subdomain.
func (s *TestSite) Issue(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[token] = true
}

func (s *TestSite) authenticated(r *http.Request) bool {
	c, err := r.Cookie(cookie.Name)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued[c.Value]
}

func (s *TestSite) render(w http.ResponseWriter, r *http.Request, title string, body template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = sitePage.Execute(w, map[string]any{
		"Title":         title,
		"Body":          body,
		"Authenticated": s.authenticated(r),
	})
}

func errorHTML(code string) string {
	if code == "" {
		return ""
	}
	return `<p class="error">Неверный логин или пароль</p>`
}

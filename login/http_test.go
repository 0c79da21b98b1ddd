package login_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
	"github.com/networkteam/sessionkit/recorder"
)

// newLoginServer accepts alice/wonderland and redirects to the start page after setting the session cookie.
func newLoginServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "alice" || r.FormValue("password") != "wonderland" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "irrelevant", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: cookie.Name, Value: "tok_abcdef123", Path: "/", HttpOnly: true})
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("POST /login-no-cookie", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("POST /slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>home</html>"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

var alice = config.Credential{Username: "alice", Password: "wonderland", Role: "admin"}

func TestHTTPClient_Login_Success(t *testing.T) {
	server := newLoginServer(t)
	rec := recorder.New()

	client := login.NewHTTPClient(login.HTTPOptions{Transport: rec.Transport(nil)})
	result := client.Login(context.Background(), login.Request{Credential: alice, LoginURL: server.URL + "/login"})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "tok_abcdef123", result.SessionToken)
	assert.Equal(t, login.StateSucceeded, result.State)

	session, ok := cookie.FindSession(result.Cookies)
	require.True(t, ok)
	assert.Equal(t, "/", session.Path)

	exchanges := rec.Exchanges(10)
	require.Len(t, exchanges, 2, "login post and redirect target")
	assert.Equal(t, http.StatusFound, exchanges[0].StatusCode)
}

func TestHTTPClient_Login_Failures(t *testing.T) {
	server := newLoginServer(t)

	tests := []struct {
		name        string
		options     login.HTTPOptions
		req         login.Request
		wantMessage string
	}{
		{
			name:        "wrong password",
			req:         login.Request{Credential: config.Credential{Username: "alice", Password: "nope"}, LoginURL: server.URL + "/login"},
			wantMessage: "HTTP 401",
		},
		{
			name:        "forbidden",
			req:         login.Request{Credential: alice, LoginURL: server.URL + "/forbidden"},
			wantMessage: "HTTP 403",
		},
		{
			name:        "marker missing",
			req:         login.Request{Credential: alice, LoginURL: server.URL + "/login-no-cookie"},
			wantMessage: "no test_joint_session cookie",
		},
		{
			name:        "timeout",
			options:     login.HTTPOptions{Timeout: 50 * time.Millisecond},
			req:         login.Request{Credential: alice, LoginURL: server.URL + "/slow"},
			wantMessage: "timed out",
		},
		{
			name:        "unreachable",
			req:         login.Request{Credential: alice, LoginURL: "http://127.0.0.1:1/login"},
			wantMessage: "login request failed",
		},
		{
			name:        "invalid url",
			req:         login.Request{Credential: alice, LoginURL: "not a url"},
			wantMessage: "invalid login URL",
		},
		{
			name:        "placeholder credential",
			req:         login.Request{Credential: config.Credential{Username: "alice", Password: "REPLACE_WITH_REAL_PASSWORD"}, LoginURL: server.URL + "/login"},
			wantMessage: "not usable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := login.NewHTTPClient(tt.options).Login(context.Background(), tt.req)

			assert.False(t, result.Success)
			assert.Empty(t, result.SessionToken)
			assert.Equal(t, login.StateFailed, result.State)
			assert.Contains(t, result.Message, tt.wantMessage)
		})
	}
}

func TestHTTPClient_CustomFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("login") == "alice" && r.FormValue("pass") == "wonderland" && r.FormValue("remember") == "1" {
			http.SetCookie(w, &http.Cookie{Name: cookie.Name, Value: "tok_custom123"})
		}
	}))
	defer server.Close()

	client := login.NewHTTPClient(login.HTTPOptions{
		UsernameField: "login",
		PasswordField: "pass",
		ExtraFields:   map[string][]string{"remember": {"1"}},
	})
	result := client.Login(context.Background(), login.Request{Credential: alice, LoginURL: server.URL})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "tok_custom123", result.SessionToken)
}

func TestAttempt_StateMachine(t *testing.T) {
	var a login.Attempt
	assert.Equal(t, login.StateNotStarted, a.State())

	a.Submit()
	assert.Equal(t, login.StateSubmitting, a.State())

	result := a.Succeed("tok", nil)
	assert.Equal(t, login.StateSucceeded, a.State())
	assert.True(t, result.Success)

	var b login.Attempt
	result = b.Fail("boom %d", 42)
	assert.Equal(t, "boom 42", result.Message)
	assert.Equal(t, "failed", result.State.String())
}

package resolver_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
	"github.com/networkteam/sessionkit/resolver"
)

func envMap(m map[string]string) config.LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// fakeLogin counts logins and returns a fixed token.
type fakeLogin struct {
	calls atomic.Int32
	token string
	last  login.Request
}

func (f *fakeLogin) Login(_ context.Context, req login.Request) login.Result {
	f.calls.Add(1)
	f.last = req
	if f.token == "" {
		return login.Result{Message: "login returned HTTP 401", State: login.StateFailed}
	}
	return login.Result{Success: true, SessionToken: f.token, State: login.StateSucceeded}
}

type fixture struct {
	dir   string
	env   map[string]string
	auth  *config.AuthConfig
	login *fakeLogin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		dir:   t.TempDir(),
		env:   map[string]string{},
		auth:  &config.AuthConfig{LoginURL: "https://bll.by/login", Users: map[string]config.Credential{}},
		login: &fakeLogin{token: "tok_fromlogin1"},
	}
}

func (f *fixture) writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o600))
}

func (f *fixture) resolver() *resolver.Resolver {
	env := envMap(f.env)
	return resolver.NewDefault(resolver.Options{
		Env:           env,
		Store:         cookie.NewStore(f.dir),
		Credentials:   config.Credentials{Env: env, Auth: f.auth},
		Authenticator: f.login,
	})
}

func TestResolve_EnvironmentWins(t *testing.T) {
	f := newFixture(t)
	f.env["SESSION_COOKIE_ADMIN"] = "  abc12345 \n"
	f.env["SESSION_COOKIE"] = "generic123"
	f.writeFile(t, "admin_session.txt", "fromfile1")
	f.writeFile(t, "admin_cookies.json", `[{"name":"test_joint_session","value":"fromjson1"}]`)
	f.auth.Users["admin"] = config.Credential{Username: "admin", Password: "secret"}

	token, ok, err := f.resolver().Resolve(context.Background(), "admin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc12345", token.Value)
	assert.Equal(t, cookie.SourceEnvironment, token.Source)
	assert.Equal(t, "admin", token.Role)
	assert.Zero(t, f.login.calls.Load())
}

func TestResolve_GenericEnvironmentVariable(t *testing.T) {
	f := newFixture(t)
	f.env["SESSION_COOKIE"] = "generic123"
	f.writeFile(t, "user_session.txt", "fromfile1")

	token, ok, err := f.resolver().Resolve(context.Background(), "user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "generic123", token.Value)
}

func TestResolve_DefaultRoleIsAdmin(t *testing.T) {
	f := newFixture(t)
	f.env["SESSION_COOKIE_ADMIN"] = "abc12345"

	token, ok, err := f.resolver().Resolve(context.Background(), "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "admin", token.Role)
	assert.Equal(t, "abc12345", token.Value)
}

func TestResolve_TextFile(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "expert_session.txt", "\n  tok_text12345  \n")
	f.writeFile(t, "expert_cookies.json", `[{"name":"test_joint_session","value":"fromjson1"}]`)

	token, ok, err := f.resolver().Resolve(context.Background(), "expert")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok_text12345", token.Value)
	assert.Equal(t, cookie.SourceFileCache, token.Source)
}

func TestResolve_EmptyTextFileFallsThrough(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "expert_session.txt", "   ")
	f.writeFile(t, "expert_cookies.json", `[{"name":"test_joint_session","value":"fromjson1"}]`)

	token, ok, err := f.resolver().Resolve(context.Background(), "expert")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fromjson1", token.Value)
}

func TestResolve_JSONFile(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "moderator_cookies.json", `[{"name":"test_joint_session","value":"tok_987654","domain":".example.com","path":"/"}]`)

	token, ok, err := f.resolver().Resolve(context.Background(), "moderator")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok_987654", token.Value)
	assert.Equal(t, cookie.SourceFileCache, token.Source)
	assert.Zero(t, f.login.calls.Load())
}

func TestResolve_JSONFileWithoutSessionCookieFallsThroughToLogin(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "moderator_cookies.json", `[{"name":"other","value":"x"},{"name":"test_joint_session","value":""}]`)
	f.auth.Users["moderator"] = config.Credential{Username: "mod", Password: "secret"}

	token, ok, err := f.resolver().Resolve(context.Background(), "moderator")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok_fromlogin1", token.Value)
	assert.Equal(t, cookie.SourceNetworkLogin, token.Source)
	assert.Equal(t, int32(1), f.login.calls.Load())
	assert.Equal(t, "https://bll.by/login", f.login.last.LoginURL)
	assert.Equal(t, "mod", f.login.last.Credential.Username)
}

func TestResolve_MalformedJSONFallsThrough(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "moderator_cookies.json", `[{"name": "test_joint_session", `)
	f.env["API_USERNAME"] = "api-user"
	f.env["API_PASSWORD"] = "api-pass"

	token, ok, err := f.resolver().Resolve(context.Background(), "moderator")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cookie.SourceNetworkLogin, token.Source)
	assert.Equal(t, "api-user", f.login.last.Credential.Username)
}

func TestResolve_GhostRoleHasNoToken(t *testing.T) {
	f := newFixture(t)
	f.auth.Users["admin"] = config.Credential{Username: "admin", Password: "secret"}

	token, ok, err := f.resolver().Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, token.Value)
	assert.Zero(t, f.login.calls.Load(), "no credential, no login")
}

func TestResolve_PlaceholderCredentialIsUnusable(t *testing.T) {
	f := newFixture(t)
	f.auth.Users["admin"] = config.Credential{Username: "admin", Password: "REPLACE_WITH_REAL_PASSWORD"}

	_, ok, err := f.resolver().Resolve(context.Background(), "admin")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, f.login.calls.Load())
}

func TestResolve_FailedLoginHasNoToken(t *testing.T) {
	f := newFixture(t)
	f.auth.Users["admin"] = config.Credential{Username: "admin", Password: "wrong"}
	f.login.token = ""

	_, ok, err := f.resolver().Resolve(context.Background(), "admin")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), f.login.calls.Load())
}

func TestResolve_UnexpectedIOErrorPropagates(t *testing.T) {
	f := newFixture(t)
	// A directory where the text file is expected cannot be read
	require.NoError(t, os.Mkdir(filepath.Join(f.dir, "admin_session.txt"), 0o700))

	_, ok, err := f.resolver().Resolve(context.Background(), "admin")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestResolve_CanceledContext(t *testing.T) {
	f := newFixture(t)
	f.env["SESSION_COOKIE_ADMIN"] = "abc12345"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := f.resolver().Resolve(ctx, "admin")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefresh_SkipsCachedSources(t *testing.T) {
	f := newFixture(t)
	f.env["SESSION_COOKIE_ADMIN"] = "stale1234"
	f.writeFile(t, "admin_session.txt", "stalefile1")
	f.auth.Users["admin"] = config.Credential{Username: "admin", Password: "secret"}

	token, ok, err := f.resolver().Refresh(context.Background(), "admin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok_fromlogin1", token.Value)
}

func TestRefresh_WithoutLoginSource(t *testing.T) {
	r := resolver.New(nil, &resolver.EnvSource{Env: envMap(nil)})

	_, _, err := r.Refresh(context.Background(), "admin")
	assert.ErrorIs(t, err, resolver.ErrNoLoginSource)
}

func TestNewDefault_SourceOrder(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"env", "text-file", "json-file", "login"}, f.resolver().Sources())
}

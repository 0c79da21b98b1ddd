package bulk_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/sessionkit/bulk"
	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
)

// fakeAuth logs in every user whose password is "secret" and tracks concurrency.
type fakeAuth struct {
	active    *atomic.Int32
	maxActive *atomic.Int32
	closed    *atomic.Int32
	delay     time.Duration
}

func (a *fakeAuth) Login(ctx context.Context, req login.Request) login.Result {
	n := a.active.Add(1)
	defer a.active.Add(-1)
	for {
		m := a.maxActive.Load()
		if n <= m || a.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return login.Result{State: login.StateFailed}
	}

	if req.Credential.Password != "secret" {
		return login.Result{Message: "login returned HTTP 401", State: login.StateFailed}
	}
	return login.Result{Success: true, SessionToken: "tok_" + req.Credential.Username + "_1234", State: login.StateSucceeded}
}

func (a *fakeAuth) Close() error {
	a.closed.Add(1)
	return nil
}

type counters struct {
	active, maxActive, closed, created atomic.Int32
}

func (c *counters) factory(delay time.Duration) bulk.Factory {
	return func() (login.Authenticator, error) {
		c.created.Add(1)
		return &fakeAuth{active: &c.active, maxActive: &c.maxActive, closed: &c.closed, delay: delay}, nil
	}
}

func users(passwords ...string) []config.Credential {
	creds := make([]config.Credential, 0, len(passwords))
	for i, p := range passwords {
		creds = append(creds, config.Credential{Username: "user" + string(rune('a'+i)), Password: p, Role: "user"})
	}
	return creds
}

func TestRunner_Run(t *testing.T) {
	var c counters
	store := cookie.NewStore(t.TempDir())
	r := bulk.NewRunner(c.factory(20*time.Millisecond), bulk.Options{Threads: 2, Store: store})

	jobs := bulk.Jobs(users("secret", "wrong", "secret", "secret", "secret"), "https://bll.by/login")
	summary, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 5)
	assert.Equal(t, 4, summary.Count(bulk.StatusSucceeded))
	assert.Equal(t, 1, summary.Count(bulk.StatusFailed))
	assert.False(t, summary.OK())
	assert.Equal(t, "userb", summary.Failed()[0].Username)
	assert.Equal(t, "login returned HTTP 401", summary.Failed()[0].Message)

	assert.LessOrEqual(t, c.maxActive.Load(), int32(2))
	assert.Equal(t, c.created.Load(), c.closed.Load(), "every authenticator is closed")

	value, err := cookie.Load(store.TextPath("usera"))
	require.NoError(t, err)
	assert.Equal(t, "tok_usera_1234", value)
	assert.NoFileExists(t, store.TextPath("userb"))
}

func TestRunner_SkipsCachedUsers(t *testing.T) {
	var c counters
	store := cookie.NewStore(t.TempDir())
	require.NoError(t, store.SaveToken("usera", "tok_cached123"))

	jobs := bulk.Jobs(users("secret", "secret"), "https://bll.by/login")

	summary, err := bulk.NewRunner(c.factory(0), bulk.Options{Store: store}).Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, bulk.StatusSkipped, summary.Outcomes[0].Status)
	assert.Equal(t, bulk.StatusSucceeded, summary.Outcomes[1].Status)
	assert.True(t, summary.OK())
	assert.Equal(t, int32(1), c.created.Load())

	summary, err = bulk.NewRunner(c.factory(0), bulk.Options{Store: store, Relogin: true}).Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count(bulk.StatusSucceeded))

	value, err := cookie.Load(store.TextPath("usera"))
	require.NoError(t, err)
	assert.Equal(t, "tok_usera_1234", value)
}

func TestRunner_UnusableCredential(t *testing.T) {
	var c counters
	jobs := bulk.Jobs([]config.Credential{{Username: "placeholder", Password: "REPLACE_WITH_REAL_PASSWORD"}}, "https://bll.by/login")

	summary, err := bulk.NewRunner(c.factory(0), bulk.Options{}).Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, bulk.StatusFailed, summary.Outcomes[0].Status)
	assert.Zero(t, c.created.Load())
}

func TestRunner_FactoryError(t *testing.T) {
	factory := func() (login.Authenticator, error) { return nil, errors.New("browser not installed") }

	summary, err := bulk.NewRunner(factory, bulk.Options{}).Run(context.Background(), bulk.Jobs(users("secret"), ""))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(summary.Outcomes[0].Message, "browser not installed"))
}

func TestRunner_Progress(t *testing.T) {
	var c counters
	r := bulk.NewRunner(c.factory(0), bulk.Options{Threads: 3})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := r.Subscribe(ctx)

	var (
		wg       sync.WaitGroup
		received []bulk.Progress
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := range events {
			received = append(received, p)
		}
	}()

	summary, err := r.Run(ctx, bulk.Jobs(users("secret", "secret", "wrong"), ""))
	require.NoError(t, err)
	r.Close()
	wg.Wait()

	require.Len(t, received, 3)
	for _, p := range received {
		assert.Equal(t, summary.RunID, p.RunID)
		assert.Equal(t, 3, p.Total)
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, []int{received[0].Done, received[1].Done, received[2].Done})
}

func TestRunner_Canceled(t *testing.T) {
	var c counters
	r := bulk.NewRunner(c.factory(time.Second), bulk.Options{Threads: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	summary, err := r.Run(ctx, bulk.Jobs(users("secret", "secret", "secret"), ""))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, bulk.StatusFailed, summary.Outcomes[0].Status)
	assert.Equal(t, 2, summary.Count(bulk.StatusNotStarted))
	assert.Len(t, summary.Failed(), 3)
}

func TestRunner_RateLimit(t *testing.T) {
	var c counters
	r := bulk.NewRunner(c.factory(0), bulk.Options{Threads: 4, Rate: 20})

	start := time.Now()
	_, err := r.Run(context.Background(), bulk.Jobs(users("secret", "secret", "secret"), ""))
	require.NoError(t, err)
	// First start is immediate, the next two wait 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestJobs_DeduplicatesUsernames(t *testing.T) {
	creds := []config.Credential{
		{Username: "a", Password: "1"},
		{Username: "b", Password: "2"},
		{Username: "a", Password: "3"},
	}
	jobs := bulk.Jobs(creds, "https://bll.by/login")
	require.Len(t, jobs, 2)
	assert.Equal(t, "1", jobs[0].Credential.Password)
	assert.Equal(t, "https://bll.by/login", jobs[1].LoginURL)
}

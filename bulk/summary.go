package bulk

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/samber/lo"

	"github.com/networkteam/sessionkit/config"
)

// Summary is the result of a bulk run.
type Summary struct {
	RunID    uuid.UUID
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Count returns the number of outcomes with status.
func (s Summary) Count(status Status) int {
	return lo.CountBy(s.Outcomes, func(o Outcome) bool { return o.Status == status })
}

// OK reports whether every job either logged in or reused a cached cookie.
func (s Summary) OK() bool {
	return lo.EveryBy(s.Outcomes, func(o Outcome) bool {
		return o.Status == StatusSucceeded || o.Status == StatusSkipped
	})
}

// Failed returns the outcomes that did not succeed.
func (s Summary) Failed() []Outcome {
	return lo.Filter(s.Outcomes, func(o Outcome, _ int) bool {
		return o.Status == StatusFailed || o.Status == StatusNotStarted
	})
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// Jobs builds a job per credential, skipping duplicate usernames.
func Jobs(creds []config.Credential, loginURL string) []Job {
	creds = lo.UniqBy(creds, func(c config.Credential) string { return c.Username })
	return lo.Map(creds, func(c config.Credential, _ int) Job {
		return Job{Credential: c, LoginURL: loginURL}
	})
}

package browser

import (
	"errors"
	"fmt"
	"log/slog"
)

// Attempt is one way of performing an action, e.g. one click strategy.
type Attempt struct {
	Name string
	Fn   func() error
}

// Attempts are tried in order until one succeeds.
type Attempts []Attempt

// Run executes the attempts in order and returns the name of the first that succeeded.
// Every failed attempt is logged. If all fail, the joined errors are returned.
func (a Attempts) Run(logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(a) == 0 {
		return "", errors.New("no attempts")
	}

	var errs []error
	for _, attempt := range a {
		err := attempt.Fn()
		if err == nil {
			return attempt.Name, nil
		}
		logger.Debug("Attempt failed", slog.String("attempt", attempt.Name), slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("%s: %w", attempt.Name, err))
	}
	return "", errors.Join(errs...)
}

// Package clock supplies wall-clock time in the ledger's timezone.
package clock

import (
	"fmt"
	"time"

	"github.com/iho/goexpense/internal/domain"
)

// Clock reports the current time in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Clock for the named IANA timezone. "Local" and "" use the
// host's timezone.
func New(timezone string) (*Clock, error) {
	if timezone == "" {
		timezone = "Local"
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	return &Clock{loc: loc, now: time.Now}, nil
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current date in the clock's location as YYYY-MM-DD.
func (c *Clock) Today() string {
	return c.Now().Format(domain.DateLayout)
}

package gtfs

import (
	"time"

	"github.com/stmbus/stm-go/internal/models"
)

// ServiceActive reports whether a service runs on the local calendar date
// of the given instant. Exceptions take precedence over the weekly pattern:
// a removed exception forces false, an added one forces true. Without an
// exception the weekly pattern applies only inside the inclusive validity
// range. A service with no calendar entry and no exception never runs.
//
// Dates are compared as YYYYMMDD strings, not timestamps, which keeps the
// answer stable across midnight regardless of timezone offsets.
func (ix *Index) ServiceActive(serviceID string, at time.Time) bool {
	ds := DateString(at)
	if exc, ok := ix.exceptions[serviceID][ds]; ok {
		switch exc {
		case models.ServiceRemoved:
			return false
		case models.ServiceAdded:
			return true
		}
	}

	c, ok := ix.calendars[serviceID]
	if !ok {
		return false
	}
	if ds < c.StartDate || ds > c.EndDate {
		return false
	}
	return c.Days[at.Weekday()]
}

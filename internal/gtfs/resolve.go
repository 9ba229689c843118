package gtfs

import (
	"strings"

	"github.com/stmbus/stm-go/internal/models"
)

// maxNameMatches caps fuzzy name results so a one-letter query cannot
// return the whole network.
const maxNameMatches = 10

// Resolve maps a rider query to stop records. Exact public-code matches
// win because riders read codes off physical signage; exact identifier
// matches come next and may return a station or entrance record so its
// boardable siblings stay reachable downstream; otherwise a
// case-insensitive substring scan over boardable stop names in table
// order, capped at maxNameMatches. An empty result means "not found" and
// is a normal outcome, not an error.
func (ix *Index) Resolve(query string) []*models.Stop {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if s, ok := ix.stopsByCode[query]; ok {
		return []*models.Stop{s}
	}
	if s, ok := ix.stopsByID[query]; ok {
		return []*models.Stop{s}
	}

	q := strings.ToLower(query)
	var out []*models.Stop
	for _, s := range ix.stops {
		if !s.Boardable() {
			continue
		}
		if strings.Contains(strings.ToLower(s.Name), q) || s.Code == query {
			out = append(out, s)
			if len(out) >= maxNameMatches {
				break
			}
		}
	}
	return out
}

// Siblings returns the boardable stops a rider could equivalently board at:
// children of the same parent station, plus boardable stops elsewhere that
// carry the same public code (one physical pole serving a station with
// several boarding bays). The input stop is excluded from the code scan but
// may still appear via its parent; callers dedupe with set semantics.
func (ix *Index) Siblings(stop *models.Stop) []*models.Stop {
	var out []*models.Stop
	if stop.ParentStation != "" {
		for _, s := range ix.childrenByParent[stop.ParentStation] {
			if s.Boardable() {
				out = append(out, s)
			}
		}
	}
	if stop.Code != "" {
		for _, s := range ix.stops {
			if s.Boardable() && s.Code == stop.Code && s.ID != stop.ID {
				out = append(out, s)
			}
		}
	}
	return out
}

package routine

import "time"

// newer orders routines by revision, then by last update for legacy data sharing a revision.
func newer(a, b Routine) bool {
	if a.Revision != b.Revision {
		return a.Revision > b.Revision
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

// Latest returns the routine with the highest revision.
func Latest(routines []Routine) (Routine, bool) {
	var latest Routine
	found := false
	for _, r := range routines {
		if !found || newer(r, latest) {
			latest, found = r, true
		}
	}
	return latest, found
}

// ActiveOn returns the authoritative routine for day: the highest revision covering it.
func ActiveOn(routines []Routine, day time.Time) (Routine, bool) {
	var active Routine
	found := false
	for _, r := range routines {
		if !r.Covers(day) {
			continue
		}
		if !found || newer(r, active) {
			active, found = r, true
		}
	}
	return active, found
}

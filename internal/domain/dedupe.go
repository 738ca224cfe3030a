package domain

import "time"

// Duplicate-detection tolerances. Sensor clocks drift between sources, so the
// match is a tolerance window rather than an exact fingerprint.
const (
	// DuplicateStartWindow is how far apart two start times may be while
	// still describing the same workout.
	DuplicateStartWindow = 120 * time.Second
	// duplicateDurationTolerance is the allowed relative difference between
	// two durations describing the same workout.
	duplicateDurationTolerance = 0.10
)

// IsDuplicate reports whether the candidate workout is a near-duplicate of
// any record in the owner's history: start times within ±120s and durations
// within ±10% of each other. The first match short-circuits.
func IsDuplicate(candidate Workout, history []Workout) bool {
	for _, existing := range history {
		if !withinStartWindow(candidate.StartTime, existing.StartTime) {
			continue
		}
		if withinDurationTolerance(candidate.DurationSeconds, existing.DurationSeconds) {
			return true
		}
	}
	return false
}

func withinStartWindow(a, b time.Time) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta <= DuplicateStartWindow
}

func withinDurationTolerance(candidate, existing int) bool {
	if existing == 0 {
		return candidate == 0
	}
	return deviation(float64(candidate), float64(existing)) <= duplicateDurationTolerance
}

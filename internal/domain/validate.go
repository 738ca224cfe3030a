package domain

import (
	"fmt"
	"strings"
	"time"
)

// durationTolerance is the fraction by which a reported workout duration may
// deviate from the start/end span before a warning is raised.
const durationTolerance = 0.10

// Plausibility bands for optional workout measurements. Violations warn, they
// never reject.
const (
	minPlausibleHeartRate = 25
	maxPlausibleHeartRate = 250
	maxPlausibleCalories  = 20000
	maxPlausibleDistance  = 500 // km
)

// WorkoutInput is one raw workout entry from an ingestion payload. Timestamps
// arrive as RFC 3339 strings so that a malformed value fails the single
// record, not the whole payload decode. ParseError carries a record-level
// JSON decode failure detected by the transport layer.
type WorkoutInput struct {
	ClientID        string   `json:"client_id"`
	Source          string   `json:"source"`
	Category        string   `json:"category"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	DurationSeconds *float64 `json:"duration_seconds"`
	Calories        *float64 `json:"calories_kcal"`
	DistanceKM      *float64 `json:"distance_km"`
	AvgHeartRate    *float64 `json:"avg_heart_rate"`
	Device          *string  `json:"device"`

	ParseError string `json:"-"`
}

// ProfileMetricInput is one raw profile-metric entry from an ingestion payload.
type ProfileMetricInput struct {
	ClientID   string   `json:"client_id"`
	Metric     string   `json:"metric"`
	Value      *float64 `json:"value"`
	Unit       string   `json:"unit"`
	MeasuredAt string   `json:"measured_at"`
	Source     string   `json:"source"`

	ParseError string `json:"-"`
}

// WorkoutCheck is the validation verdict for a single workout record. When
// Valid, Workout holds the normalised record (parsed timestamps, coerced
// category, derived duration) ready for persistence.
type WorkoutCheck struct {
	Workout  Workout
	Errors   []string
	Warnings []string
}

// Valid reports whether the record may be persisted.
func (c WorkoutCheck) Valid() bool { return len(c.Errors) == 0 }

// MetricCheck is the validation verdict for a single profile-metric record.
type MetricCheck struct {
	Metric   ProfileMetric
	Errors   []string
	Warnings []string
}

// Valid reports whether the record may be persisted.
func (c MetricCheck) Valid() bool { return len(c.Errors) == 0 }

// CheckWorkout validates one workout record. Hard errors exclude the record;
// warnings are recorded but the record is still accepted.
func CheckWorkout(in WorkoutInput) WorkoutCheck {
	var check WorkoutCheck

	if in.ParseError != "" {
		check.Errors = append(check.Errors, in.ParseError)
		return check
	}
	if strings.TrimSpace(in.ClientID) == "" {
		check.Errors = append(check.Errors, "client_id is required")
	}

	start, err := parseTimestamp(in.StartTime)
	if err != nil {
		check.Errors = append(check.Errors, fmt.Sprintf("start_time: %v", err))
	}
	end, err := parseTimestamp(in.EndTime)
	if err != nil {
		check.Errors = append(check.Errors, fmt.Sprintf("end_time: %v", err))
	}
	if len(check.Errors) > 0 {
		return check
	}
	if !start.Before(end) {
		check.Errors = append(check.Errors, "start_time must be before end_time")
		return check
	}

	span := end.Sub(start).Seconds()
	duration := span
	if in.DurationSeconds != nil {
		duration = *in.DurationSeconds
		if duration <= 0 {
			check.Errors = append(check.Errors, "duration_seconds must be positive")
			return check
		}
		if deviation(duration, span) > durationTolerance {
			check.Warnings = append(check.Warnings,
				fmt.Sprintf("duration_seconds %.0f deviates more than %.0f%% from start/end span %.0f",
					duration, durationTolerance*100, span))
		}
	}

	category := Category(strings.ToLower(strings.TrimSpace(in.Category)))
	if _, ok := knownCategories[category]; !ok {
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("unknown category %q coerced to %q", in.Category, CategoryOther))
		category = CategoryOther
	}

	if in.AvgHeartRate != nil && (*in.AvgHeartRate < minPlausibleHeartRate || *in.AvgHeartRate > maxPlausibleHeartRate) {
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("avg_heart_rate %.1f outside plausible range [%d, %d]",
				*in.AvgHeartRate, minPlausibleHeartRate, maxPlausibleHeartRate))
	}
	if in.Calories != nil && (*in.Calories < 0 || *in.Calories > maxPlausibleCalories) {
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("calories_kcal %.1f outside plausible range [0, %d]", *in.Calories, maxPlausibleCalories))
	}
	if in.DistanceKM != nil && (*in.DistanceKM < 0 || *in.DistanceKM > maxPlausibleDistance) {
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("distance_km %.1f outside plausible range [0, %d]", *in.DistanceKM, maxPlausibleDistance))
	}

	check.Workout = Workout{
		ClientID:        strings.TrimSpace(in.ClientID),
		Source:          strings.TrimSpace(in.Source),
		Category:        category,
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		DurationSeconds: int(duration),
		Calories:        in.Calories,
		DistanceKM:      in.DistanceKM,
		AvgHeartRate:    in.AvgHeartRate,
		Device:          in.Device,
	}
	return check
}

// CheckProfileMetric validates one profile-metric record. Unknown kinds and
// unparseable timestamps are hard errors; out-of-range values only warn.
func CheckProfileMetric(in ProfileMetricInput) MetricCheck {
	var check MetricCheck

	if in.ParseError != "" {
		check.Errors = append(check.Errors, in.ParseError)
		return check
	}
	if strings.TrimSpace(in.ClientID) == "" {
		check.Errors = append(check.Errors, "client_id is required")
	}

	kind := MetricKind(strings.ToLower(strings.TrimSpace(in.Metric)))
	bounds, known := metricRanges[kind]
	if !known {
		check.Errors = append(check.Errors, fmt.Sprintf("unknown metric kind %q", in.Metric))
	}
	if in.Value == nil {
		check.Errors = append(check.Errors, "value is required and must be numeric")
	}

	measuredAt, err := parseTimestamp(in.MeasuredAt)
	if err != nil {
		check.Errors = append(check.Errors, fmt.Sprintf("measured_at: %v", err))
	}
	if len(check.Errors) > 0 {
		return check
	}

	if *in.Value < bounds.Min || *in.Value > bounds.Max {
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("%s value %.1f outside plausible range [%.0f, %.0f]",
				kind, *in.Value, bounds.Min, bounds.Max))
	}

	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = bounds.Unit
	}

	check.Metric = ProfileMetric{
		ClientID:   strings.TrimSpace(in.ClientID),
		Metric:     kind,
		Value:      *in.Value,
		Unit:       unit,
		MeasuredAt: measuredAt.UTC(),
		Source:     strings.TrimSpace(in.Source),
	}
	return check
}

func parseTimestamp(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	return ts, nil
}

// deviation returns the relative difference of got from want.
func deviation(got, want float64) float64 {
	if want == 0 {
		if got == 0 {
			return 0
		}
		return 1
	}
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff / want
}

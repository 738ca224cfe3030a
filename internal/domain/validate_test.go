package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func validWorkoutInput() WorkoutInput {
	start := time.Date(2025, time.March, 10, 7, 0, 0, 0, time.UTC)
	return WorkoutInput{
		ClientID:        "client-1",
		Source:          "watch",
		Category:        "running",
		StartTime:       start.Format(time.RFC3339),
		EndTime:         start.Add(30 * time.Minute).Format(time.RFC3339),
		DurationSeconds: f64(1800),
		AvgHeartRate:    f64(152),
	}
}

func TestCheckWorkoutValid(t *testing.T) {
	check := CheckWorkout(validWorkoutInput())

	require.True(t, check.Valid())
	require.Empty(t, check.Warnings)
	require.Equal(t, CategoryRunning, check.Workout.Category)
	require.Equal(t, 1800, check.Workout.DurationSeconds)
	require.True(t, check.Workout.StartTime.Before(check.Workout.EndTime))
}

func TestCheckWorkoutStartNotBeforeEnd(t *testing.T) {
	in := validWorkoutInput()
	in.EndTime = in.StartTime

	check := CheckWorkout(in)

	require.False(t, check.Valid())
	require.Contains(t, check.Errors[0], "start_time must be before end_time")
}

func TestCheckWorkoutMalformedTimestamp(t *testing.T) {
	in := validWorkoutInput()
	in.StartTime = "yesterday morning"

	check := CheckWorkout(in)

	require.False(t, check.Valid())
	require.Contains(t, check.Errors[0], "start_time")
}

func TestCheckWorkoutMissingClientID(t *testing.T) {
	in := validWorkoutInput()
	in.ClientID = "  "

	check := CheckWorkout(in)

	require.False(t, check.Valid())
	require.Contains(t, check.Errors[0], "client_id is required")
}

func TestCheckWorkoutDurationOutsideToleranceWarns(t *testing.T) {
	in := validWorkoutInput()
	// Span is 1800s; anything past ±10% should warn but not reject.
	in.DurationSeconds = f64(2100)

	check := CheckWorkout(in)

	require.True(t, check.Valid())
	require.Len(t, check.Warnings, 1)
	require.Contains(t, check.Warnings[0], "deviates")
	require.Equal(t, 2100, check.Workout.DurationSeconds)
}

func TestCheckWorkoutDurationWithinToleranceAccepted(t *testing.T) {
	in := validWorkoutInput()
	in.DurationSeconds = f64(1850)

	check := CheckWorkout(in)

	require.True(t, check.Valid())
	require.Empty(t, check.Warnings)
}

func TestCheckWorkoutMissingDurationDerivedFromSpan(t *testing.T) {
	in := validWorkoutInput()
	in.DurationSeconds = nil

	check := CheckWorkout(in)

	require.True(t, check.Valid())
	require.Empty(t, check.Warnings)
	require.Equal(t, 1800, check.Workout.DurationSeconds)
}

func TestCheckWorkoutNegativeDurationRejected(t *testing.T) {
	in := validWorkoutInput()
	in.DurationSeconds = f64(-30)

	check := CheckWorkout(in)

	require.False(t, check.Valid())
}

func TestCheckWorkoutUnknownCategoryCoerced(t *testing.T) {
	in := validWorkoutInput()
	in.Category = "Underwater Basket Weaving"

	check := CheckWorkout(in)

	require.True(t, check.Valid())
	require.Equal(t, CategoryOther, check.Workout.Category)
	require.Len(t, check.Warnings, 1)
	require.Contains(t, check.Warnings[0], "coerced")
}

func TestCheckWorkoutCategoryCaseInsensitive(t *testing.T) {
	in := validWorkoutInput()
	in.Category = "Running"

	check := CheckWorkout(in)

	require.True(t, check.Valid())
	require.Equal(t, CategoryRunning, check.Workout.Category)
	require.Empty(t, check.Warnings)
}

func TestCheckWorkoutImplausibleHeartRateWarns(t *testing.T) {
	in := validWorkoutInput()
	in.AvgHeartRate = f64(312)

	check := CheckWorkout(in)

	require.True(t, check.Valid())
	require.Len(t, check.Warnings, 1)
	require.Contains(t, check.Warnings[0], "avg_heart_rate")
}

func TestCheckWorkoutParseErrorIsHardError(t *testing.T) {
	check := CheckWorkout(WorkoutInput{ClientID: "client-1", ParseError: "malformed record: boom"})

	require.False(t, check.Valid())
	require.Contains(t, check.Errors[0], "malformed record")
}

func validMetricInput() ProfileMetricInput {
	return ProfileMetricInput{
		ClientID:   "client-1",
		Metric:     "height",
		Value:      f64(175),
		MeasuredAt: time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC).Format(time.RFC3339),
		Source:     "scale",
	}
}

func TestCheckProfileMetricValid(t *testing.T) {
	check := CheckProfileMetric(validMetricInput())

	require.True(t, check.Valid())
	require.Empty(t, check.Warnings)
	require.Equal(t, MetricHeight, check.Metric.Metric)
	require.Equal(t, "cm", check.Metric.Unit, "unit defaults to the kind's canonical unit")
}

func TestCheckProfileMetricOutOfRangeWarns(t *testing.T) {
	in := validMetricInput()
	in.Value = f64(999)

	check := CheckProfileMetric(in)

	require.True(t, check.Valid())
	require.Len(t, check.Warnings, 1)
	require.Contains(t, check.Warnings[0], "outside plausible range")
}

func TestCheckProfileMetricUnknownKindRejected(t *testing.T) {
	in := validMetricInput()
	in.Metric = "aura"

	check := CheckProfileMetric(in)

	require.False(t, check.Valid())
	require.Contains(t, check.Errors[0], "unknown metric kind")
}

func TestCheckProfileMetricMissingValueRejected(t *testing.T) {
	in := validMetricInput()
	in.Value = nil

	check := CheckProfileMetric(in)

	require.False(t, check.Valid())
	require.Contains(t, check.Errors[0], "value is required")
}

func TestCheckProfileMetricBadTimestampRejected(t *testing.T) {
	in := validMetricInput()
	in.MeasuredAt = "last tuesday"

	check := CheckProfileMetric(in)

	require.False(t, check.Valid())
	require.Contains(t, check.Errors[0], "measured_at")
}

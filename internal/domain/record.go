// Package domain defines the business logic for the GymDashSync ingestion
// service: client identity, sample validation, workout deduplication, and
// batch ingestion.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrClientNotFound is returned when a client cannot be located.
	ErrClientNotFound = errors.New("client not found")
	// ErrUnknownPairingCode indicates the pairing code matches no client.
	ErrUnknownPairingCode = errors.New("unknown pairing code")
	// ErrUnknownClient indicates a batch referenced a client_id that does not exist.
	ErrUnknownClient = errors.New("unknown client")
	// ErrMissingOwner indicates the batch carries no client_id to attribute records to.
	ErrMissingOwner = errors.New("batch records carry no client_id")
	// ErrMixedOwners indicates a batch mixes records from more than one client.
	ErrMixedOwners = errors.New("batch contains records for more than one client")
	// ErrPairingCodeTaken is returned by the store when a generated pairing code collides.
	ErrPairingCodeTaken = errors.New("pairing code already in use")
)

// Client is the owner of all ingested records. Created once via pairing-code
// registration and immutable afterwards.
type Client struct {
	ID          string
	PairingCode string
	Label       string
	CreatedAt   time.Time
}

// ClientSummary augments a Client with per-owner aggregates for listings.
type ClientSummary struct {
	Client
	WorkoutCount     int
	LastWorkoutStart *time.Time
	WarningCount     int
}

// Category is the workout category enumeration. Unrecognised values are
// coerced to CategoryOther at validation time.
type Category string

const (
	CategoryRunning    Category = "running"
	CategoryWalking    Category = "walking"
	CategoryCycling    Category = "cycling"
	CategorySwimming   Category = "swimming"
	CategoryHiking     Category = "hiking"
	CategoryStrength   Category = "strength"
	CategoryYoga       Category = "yoga"
	CategoryRowing     Category = "rowing"
	CategoryElliptical Category = "elliptical"
	CategoryOther      Category = "other"
)

var knownCategories = map[Category]struct{}{
	CategoryRunning:    {},
	CategoryWalking:    {},
	CategoryCycling:    {},
	CategorySwimming:   {},
	CategoryHiking:     {},
	CategoryStrength:   {},
	CategoryYoga:       {},
	CategoryRowing:     {},
	CategoryElliptical: {},
	CategoryOther:      {},
}

// Workout is a single workout session attributed to one client. Append-only.
type Workout struct {
	ID              string
	ClientID        string
	Source          string
	Category        Category
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int
	Calories        *float64
	DistanceKM      *float64
	AvgHeartRate    *float64
	Device          *string
	CreatedAt       time.Time
}

// MetricKind enumerates the supported profile metrics.
type MetricKind string

const (
	MetricHeight           MetricKind = "height"
	MetricWeight           MetricKind = "weight"
	MetricBodyFat          MetricKind = "body_fat"
	MetricRestingHeartRate MetricKind = "resting_heart_rate"
	MetricVO2Max           MetricKind = "vo2_max"
	MetricSteps            MetricKind = "steps"
	MetricSleepDuration    MetricKind = "sleep_duration"
	MetricBPSystolic       MetricKind = "blood_pressure_systolic"
	MetricBPDiastolic      MetricKind = "blood_pressure_diastolic"
)

type metricRange struct {
	Min  float64
	Max  float64
	Unit string
}

// metricRanges defines, per kind, the plausible value band and canonical unit.
// Values outside the band are accepted with a warning.
var metricRanges = map[MetricKind]metricRange{
	MetricHeight:           {Min: 50, Max: 300, Unit: "cm"},
	MetricWeight:           {Min: 20, Max: 400, Unit: "kg"},
	MetricBodyFat:          {Min: 1, Max: 75, Unit: "%"},
	MetricRestingHeartRate: {Min: 20, Max: 250, Unit: "bpm"},
	MetricVO2Max:           {Min: 10, Max: 90, Unit: "ml/kg/min"},
	MetricSteps:            {Min: 0, Max: 200000, Unit: "count"},
	MetricSleepDuration:    {Min: 0, Max: 24, Unit: "h"},
	MetricBPSystolic:       {Min: 60, Max: 260, Unit: "mmHg"},
	MetricBPDiastolic:      {Min: 30, Max: 160, Unit: "mmHg"},
}

// ProfileMetric is a single body-metric reading attributed to one client.
type ProfileMetric struct {
	ID         string
	ClientID   string
	Metric     MetricKind
	Value      float64
	Unit       string
	MeasuredAt time.Time
	Source     string
	CreatedAt  time.Time
}

// SubjectKind identifies which record type a warning refers to.
type SubjectKind string

const (
	SubjectWorkout       SubjectKind = "workout"
	SubjectProfileMetric SubjectKind = "profile_metric"
)

// WarningCategory distinguishes validation findings from duplicate detections.
type WarningCategory string

const (
	WarningValidation WarningCategory = "validation"
	WarningDuplicate  WarningCategory = "duplicate"
)

// Warning is a persisted, non-blocking finding recorded alongside (or in
// place of, for duplicates) an ingested record.
type Warning struct {
	ID          string
	ClientID    string
	SubjectKind SubjectKind
	SubjectID   *string
	Category    WarningCategory
	Message     string
	CreatedAt   time.Time
}

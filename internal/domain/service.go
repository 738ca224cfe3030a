package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adamswbrown/GymDashSync-sub001/internal/observability"
)

// Store captures the persistence operations the service needs. All read
// operations are owner-scoped at the storage layer; no caller filters
// cross-owner data in application code.
type Store interface {
	CreateClient(ctx context.Context, client Client) error
	ResolvePairingCode(ctx context.Context, code string) (*Client, error)
	GetClientSummary(ctx context.Context, clientID string) (*ClientSummary, error)
	ListClientSummaries(ctx context.Context) ([]ClientSummary, error)
	ClientExists(ctx context.Context, clientID string) (bool, error)
	ListWorkouts(ctx context.Context, clientID string, limit int) ([]Workout, error)
	ListProfileMetrics(ctx context.Context, clientID string, limit int) ([]ProfileMetric, error)

	// IngestBatch runs fn inside a single transaction. If fn returns an
	// error the transaction rolls back and no partial inserts survive.
	IngestBatch(ctx context.Context, fn func(BatchTx) error) error
}

// BatchTx is the transaction-scoped slice of the store visible while a batch
// is being persisted. NearbyWorkouts must see rows inserted earlier in the
// same transaction so in-batch duplicates are caught.
type BatchTx interface {
	NearbyWorkouts(ctx context.Context, clientID string, start time.Time, window time.Duration) ([]Workout, error)
	InsertWorkout(ctx context.Context, w Workout) error
	InsertProfileMetric(ctx context.Context, m ProfileMetric) error
	InsertWarning(ctx context.Context, w Warning) error
}

// Service orchestrates client registration, pairing and batch ingestion.
type Service struct {
	store Store
	log   *zap.Logger
}

// NewService constructs a Service.
func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// RegisterClient creates a new client with a freshly generated pairing code,
// retrying on code collisions up to MaxPairingCodeAttempts before giving up
// with ErrPairingCodeExhausted.
func (s *Service) RegisterClient(ctx context.Context, label string) (*Client, error) {
	for attempt := 1; attempt <= MaxPairingCodeAttempts; attempt++ {
		code, err := NewPairingCode()
		if err != nil {
			return nil, err
		}
		client := Client{
			ID:          uuid.NewString(),
			PairingCode: code,
			Label:       label,
			CreatedAt:   time.Now().UTC(),
		}
		err = s.store.CreateClient(ctx, client)
		if errors.Is(err, ErrPairingCodeTaken) {
			s.log.Warn("pairing code collision, regenerating",
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
		return &client, nil
	}
	return nil, ErrPairingCodeExhausted
}

// Pair resolves a pairing code to its client. Matching is case-insensitive.
func (s *Service) Pair(ctx context.Context, code string) (*Client, error) {
	client, err := s.store.ResolvePairingCode(ctx, NormalizePairingCode(code))
	if err != nil {
		return nil, fmt.Errorf("resolve pairing code: %w", err)
	}
	if client == nil {
		return nil, ErrUnknownPairingCode
	}
	return client, nil
}

// Client returns the summary for one client. A malformed identifier reads as
// not-found; it must never reach the uuid-typed column as a raw string.
func (s *Service) Client(ctx context.Context, clientID string) (*ClientSummary, error) {
	if _, err := uuid.Parse(clientID); err != nil {
		return nil, ErrClientNotFound
	}
	summary, err := s.store.GetClientSummary(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, ErrClientNotFound
	}
	return summary, nil
}

// Clients returns summaries for all clients.
func (s *Service) Clients(ctx context.Context) ([]ClientSummary, error) {
	return s.store.ListClientSummaries(ctx)
}

// Workouts lists stored workouts most-recent-first, optionally scoped to one
// client.
func (s *Service) Workouts(ctx context.Context, clientID string, limit int) ([]Workout, error) {
	if err := checkClientID(clientID); err != nil {
		return nil, err
	}
	return s.store.ListWorkouts(ctx, clientID, limit)
}

// ProfileMetrics lists stored profile metrics most-recent-first, optionally
// scoped to one client.
func (s *Service) ProfileMetrics(ctx context.Context, clientID string, limit int) ([]ProfileMetric, error) {
	if err := checkClientID(clientID); err != nil {
		return nil, err
	}
	return s.store.ListProfileMetrics(ctx, clientID, limit)
}

// IngestWorkouts validates, deduplicates and persists a batch of workout
// records for a single client inside one transaction. Per-record validation
// failures skip the record and continue; infrastructure failures roll the
// whole batch back.
func (s *Service) IngestWorkouts(ctx context.Context, inputs []WorkoutInput) (IngestReport, error) {
	report := IngestReport{Status: StatusOK, Received: len(inputs)}
	if len(inputs) == 0 {
		return report, nil
	}

	ids := make([]string, len(inputs))
	for i, in := range inputs {
		ids[i] = in.ClientID
	}
	owner, err := batchOwner(ids)
	if err != nil {
		return report, err
	}
	if err := s.requireClient(ctx, owner); err != nil {
		return report, err
	}

	err = s.store.IngestBatch(ctx, func(tx BatchTx) error {
		for i, in := range inputs {
			check := CheckWorkout(in)
			if !check.Valid() {
				report.recordErrors(i, check.Errors)
				continue
			}

			workout := check.Workout
			workout.ID = uuid.NewString()
			workout.ClientID = owner
			workout.CreatedAt = time.Now().UTC()

			history, err := tx.NearbyWorkouts(ctx, owner, workout.StartTime, DuplicateStartWindow)
			if err != nil {
				return fmt.Errorf("load workout history: %w", err)
			}
			if IsDuplicate(workout, history) {
				report.DuplicatesSkipped++
				msg := fmt.Sprintf("workout starting %s (%ds) matches an existing record within tolerance",
					workout.StartTime.Format(time.RFC3339), workout.DurationSeconds)
				if err := tx.InsertWarning(ctx, newWarning(owner, SubjectWorkout, nil, WarningDuplicate, msg)); err != nil {
					return fmt.Errorf("record duplicate warning: %w", err)
				}
				continue
			}

			if err := tx.InsertWorkout(ctx, workout); err != nil {
				return fmt.Errorf("insert workout: %w", err)
			}
			for _, msg := range check.Warnings {
				if err := tx.InsertWarning(ctx, newWarning(owner, SubjectWorkout, &workout.ID, WarningValidation, msg)); err != nil {
					return fmt.Errorf("record validation warning: %w", err)
				}
				report.WarningsCount++
			}
			report.Inserted++
		}
		return nil
	})
	if err != nil {
		return IngestReport{}, err
	}

	report.finalize()
	observability.RecordBatch("workout", report.Status,
		report.Inserted, report.DuplicatesSkipped, report.WarningsCount, report.ErrorsCount)
	s.log.Info("workout batch ingested",
		zap.String("client_id", owner),
		zap.Int("received", report.Received),
		zap.Int("inserted", report.Inserted),
		zap.Int("duplicates", report.DuplicatesSkipped),
		zap.Int("errors", report.ErrorsCount))
	return report, nil
}

// IngestProfileMetrics validates and persists a batch of profile-metric
// records for a single client inside one transaction. Metrics are not
// deduplicated; repeated readings are legitimate data.
func (s *Service) IngestProfileMetrics(ctx context.Context, inputs []ProfileMetricInput) (IngestReport, error) {
	report := IngestReport{Status: StatusOK, Received: len(inputs)}
	if len(inputs) == 0 {
		return report, nil
	}

	ids := make([]string, len(inputs))
	for i, in := range inputs {
		ids[i] = in.ClientID
	}
	owner, err := batchOwner(ids)
	if err != nil {
		return report, err
	}
	if err := s.requireClient(ctx, owner); err != nil {
		return report, err
	}

	err = s.store.IngestBatch(ctx, func(tx BatchTx) error {
		for i, in := range inputs {
			check := CheckProfileMetric(in)
			if !check.Valid() {
				report.recordErrors(i, check.Errors)
				continue
			}

			metric := check.Metric
			metric.ID = uuid.NewString()
			metric.ClientID = owner
			metric.CreatedAt = time.Now().UTC()

			if err := tx.InsertProfileMetric(ctx, metric); err != nil {
				return fmt.Errorf("insert profile metric: %w", err)
			}
			for _, msg := range check.Warnings {
				if err := tx.InsertWarning(ctx, newWarning(owner, SubjectProfileMetric, &metric.ID, WarningValidation, msg)); err != nil {
					return fmt.Errorf("record validation warning: %w", err)
				}
				report.WarningsCount++
			}
			report.Inserted++
		}
		return nil
	})
	if err != nil {
		return IngestReport{}, err
	}

	report.finalize()
	observability.RecordBatch("profile_metric", report.Status,
		report.Inserted, report.DuplicatesSkipped, report.WarningsCount, report.ErrorsCount)
	s.log.Info("profile metric batch ingested",
		zap.String("client_id", owner),
		zap.Int("received", report.Received),
		zap.Int("inserted", report.Inserted),
		zap.Int("errors", report.ErrorsCount))
	return report, nil
}

// batchOwner enforces the single-owner-per-batch invariant: every record that
// names a client must name the same one, and at least one record must name a
// client. Records whose client_id is empty fall through to per-record
// validation.
func batchOwner(clientIDs []string) (string, error) {
	owner := ""
	for _, id := range clientIDs {
		if id == "" {
			continue
		}
		if owner == "" {
			owner = id
			continue
		}
		if id != owner {
			return "", ErrMixedOwners
		}
	}
	if owner == "" {
		return "", ErrMissingOwner
	}
	return owner, nil
}

// checkClientID rejects an optional owner filter whose shape could not be a
// stored identifier, so it never reaches a uuid-typed column.
func checkClientID(clientID string) error {
	if clientID == "" {
		return nil
	}
	if _, err := uuid.Parse(clientID); err != nil {
		return ErrUnknownClient
	}
	return nil
}

// requireClient rejects batches that reference an owner nobody registered.
// An unknown owner is never silently promoted to a new client.
func (s *Service) requireClient(ctx context.Context, clientID string) error {
	if _, err := uuid.Parse(clientID); err != nil {
		return ErrUnknownClient
	}
	exists, err := s.store.ClientExists(ctx, clientID)
	if err != nil {
		return fmt.Errorf("check client: %w", err)
	}
	if !exists {
		return ErrUnknownClient
	}
	return nil
}

func (r *IngestReport) recordErrors(index int, messages []string) {
	r.ErrorsCount++
	for _, msg := range messages {
		r.Errors = append(r.Errors, fmt.Sprintf("record %d: %s", index, msg))
	}
}

func newWarning(clientID string, kind SubjectKind, subjectID *string, category WarningCategory, message string) Warning {
	return Warning{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		SubjectKind: kind,
		SubjectID:   subjectID,
		Category:    category,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
}

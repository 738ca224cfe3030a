// Package postgres provides pgx-backed persistence for clients, workouts,
// profile metrics and ingest warnings.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adamswbrown/GymDashSync-sub001/internal/domain"
)

const uniqueViolation = "23505"

// Repository implements domain.Store on top of a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping reports storage reachability for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CreateClient inserts a new client row. A pairing-code collision surfaces as
// domain.ErrPairingCodeTaken so the caller can regenerate and retry.
func (r *Repository) CreateClient(ctx context.Context, client domain.Client) error {
	const stmt = `INSERT INTO clients (client_id, pairing_code, label, created_at)
        VALUES ($1,$2,$3,$4)`

	_, err := r.pool.Exec(ctx, stmt, client.ID, client.PairingCode, client.Label, client.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrPairingCodeTaken
		}
		return err
	}
	return nil
}

// ResolvePairingCode finds the client owning a pairing code. The code is
// expected pre-normalised (uppercase); returns nil when no client matches.
func (r *Repository) ResolvePairingCode(ctx context.Context, code string) (*domain.Client, error) {
	const query = `SELECT client_id, pairing_code, label, created_at
        FROM clients WHERE pairing_code=$1`

	row := r.pool.QueryRow(ctx, query, code)
	var client domain.Client
	if err := row.Scan(&client.ID, &client.PairingCode, &client.Label, &client.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

// ClientExists reports whether a client row exists for the identifier.
func (r *Repository) ClientExists(ctx context.Context, clientID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM clients WHERE client_id=$1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, clientID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

const clientSummaryQuery = `SELECT c.client_id, c.pairing_code, c.label, c.created_at,
        COUNT(w.workout_id), MAX(w.start_time),
        (SELECT COUNT(*) FROM ingest_warnings iw WHERE iw.client_id = c.client_id)
    FROM clients c
    LEFT JOIN workouts w ON w.client_id = c.client_id`

// GetClientSummary returns one client with its aggregates, or nil when the
// client does not exist.
func (r *Repository) GetClientSummary(ctx context.Context, clientID string) (*domain.ClientSummary, error) {
	query := clientSummaryQuery + `
        WHERE c.client_id=$1
        GROUP BY c.client_id, c.pairing_code, c.label, c.created_at`

	row := r.pool.QueryRow(ctx, query, clientID)
	summary, err := scanClientSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return summary, nil
}

// ListClientSummaries returns all clients with their aggregates, oldest first.
func (r *Repository) ListClientSummaries(ctx context.Context) ([]domain.ClientSummary, error) {
	query := clientSummaryQuery + `
        GROUP BY c.client_id, c.pairing_code, c.label, c.created_at
        ORDER BY c.created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.ClientSummary
	for rows.Next() {
		summary, err := scanClientSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, rows.Err()
}

func scanClientSummary(row pgx.Row) (*domain.ClientSummary, error) {
	var summary domain.ClientSummary
	if err := row.Scan(
		&summary.ID, &summary.PairingCode, &summary.Label, &summary.CreatedAt,
		&summary.WorkoutCount, &summary.LastWorkoutStart, &summary.WarningCount,
	); err != nil {
		return nil, err
	}
	return &summary, nil
}

const workoutColumns = `workout_id, client_id, source, category, start_time, end_time,
        duration_seconds, calories_kcal, distance_km, avg_heart_rate, device, created_at`

// ListWorkouts returns workouts most-recent-first. The client filter is
// applied in SQL; an empty clientID lists across all clients.
func (r *Repository) ListWorkouts(ctx context.Context, clientID string, limit int) ([]domain.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts`
	args := []interface{}{limit}
	if clientID != "" {
		query += ` WHERE client_id=$2`
		args = append(args, clientID)
	}
	query += ` ORDER BY start_time DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWorkouts(rows, limit)
}

func scanWorkouts(rows pgx.Rows, capacity int) ([]domain.Workout, error) {
	workouts := make([]domain.Workout, 0, capacity)
	for rows.Next() {
		var w domain.Workout
		if err := rows.Scan(
			&w.ID, &w.ClientID, &w.Source, &w.Category, &w.StartTime, &w.EndTime,
			&w.DurationSeconds, &w.Calories, &w.DistanceKM, &w.AvgHeartRate, &w.Device, &w.CreatedAt,
		); err != nil {
			return nil, err
		}
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}

// ListProfileMetrics returns profile metrics most-recent-first, optionally
// scoped to one client.
func (r *Repository) ListProfileMetrics(ctx context.Context, clientID string, limit int) ([]domain.ProfileMetric, error) {
	query := `SELECT metric_id, client_id, metric, value, unit, measured_at, source, created_at
        FROM profile_metrics`
	args := []interface{}{limit}
	if clientID != "" {
		query += ` WHERE client_id=$2`
		args = append(args, clientID)
	}
	query += ` ORDER BY measured_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := make([]domain.ProfileMetric, 0, limit)
	for rows.Next() {
		var m domain.ProfileMetric
		if err := rows.Scan(
			&m.ID, &m.ClientID, &m.Metric, &m.Value, &m.Unit, &m.MeasuredAt, &m.Source, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// IngestBatch runs fn inside a single transaction. Any error from fn rolls
// the whole batch back; a clean return commits it.
func (r *Repository) IngestBatch(ctx context.Context, fn func(domain.BatchTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin batch transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&batchTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch transaction: %w", err)
	}
	return nil
}

// batchTx implements domain.BatchTx over an open pgx transaction. Reads go
// through the same transaction, so rows inserted earlier in the batch are
// visible to deduplication.
type batchTx struct {
	tx pgx.Tx
}

func (b *batchTx) NearbyWorkouts(ctx context.Context, clientID string, start time.Time, window time.Duration) ([]domain.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts
        WHERE client_id=$1 AND start_time BETWEEN $2 AND $3`

	rows, err := b.tx.Query(ctx, query, clientID, start.Add(-window), start.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanWorkouts(rows, 4)
}

func (b *batchTx) InsertWorkout(ctx context.Context, w domain.Workout) error {
	const stmt = `INSERT INTO workouts (workout_id, client_id, source, category, start_time, end_time,
            duration_seconds, calories_kcal, distance_km, avg_heart_rate, device, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := b.tx.Exec(ctx, stmt,
		w.ID, w.ClientID, w.Source, w.Category, w.StartTime, w.EndTime,
		w.DurationSeconds, w.Calories, w.DistanceKM, w.AvgHeartRate, w.Device, w.CreatedAt,
	)
	return err
}

func (b *batchTx) InsertProfileMetric(ctx context.Context, m domain.ProfileMetric) error {
	const stmt = `INSERT INTO profile_metrics (metric_id, client_id, metric, value, unit, measured_at, source, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := b.tx.Exec(ctx, stmt,
		m.ID, m.ClientID, m.Metric, m.Value, m.Unit, m.MeasuredAt, m.Source, m.CreatedAt,
	)
	return err
}

func (b *batchTx) InsertWarning(ctx context.Context, w domain.Warning) error {
	const stmt = `INSERT INTO ingest_warnings (warning_id, client_id, subject_kind, subject_id, category, message, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := b.tx.Exec(ctx, stmt,
		w.ID, w.ClientID, w.SubjectKind, w.SubjectID, w.Category, w.Message, w.CreatedAt,
	)
	return err
}

//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/adamswbrown/GymDashSync-sub001/internal/database"
	"github.com/adamswbrown/GymDashSync-sub001/internal/domain"
)

func setupRepository(t *testing.T) (*Repository, context.Context) {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("gymdash"),
		postgrescontainer.WithUsername("gymdash"),
		postgrescontainer.WithPassword("gymdash"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	require.NoError(t, database.RunMigrations(connStr, zap.NewNop()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool), ctx
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

func newTestClient() domain.Client {
	return domain.Client{
		ID:          uuid.NewString(),
		PairingCode: domain.NormalizePairingCode(uuid.NewString()[:6]),
		Label:       "integration",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestRepositoryPairingCodes(t *testing.T) {
	repo, ctx := setupRepository(t)

	client := newTestClient()
	require.NoError(t, repo.CreateClient(ctx, client))

	resolved, err := repo.ResolvePairingCode(ctx, client.PairingCode)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, client.ID, resolved.ID)

	missing, err := repo.ResolvePairingCode(ctx, "ZZZZZZ")
	require.NoError(t, err)
	require.Nil(t, missing)

	colliding := newTestClient()
	colliding.PairingCode = client.PairingCode
	err = repo.CreateClient(ctx, colliding)
	require.ErrorIs(t, err, domain.ErrPairingCodeTaken)

	exists, err := repo.ClientExists(ctx, client.ID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRepositoryBatchCommitAndOwnerScoping(t *testing.T) {
	repo, ctx := setupRepository(t)

	owner := newTestClient()
	other := newTestClient()
	require.NoError(t, repo.CreateClient(ctx, owner))
	require.NoError(t, repo.CreateClient(ctx, other))

	start := time.Now().UTC().Truncate(time.Second)
	workout := domain.Workout{
		ID:              uuid.NewString(),
		ClientID:        owner.ID,
		Source:          "integration",
		Category:        domain.CategoryRunning,
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		DurationSeconds: 1800,
		CreatedAt:       time.Now().UTC(),
	}

	err := repo.IngestBatch(ctx, func(tx domain.BatchTx) error {
		if err := tx.InsertWorkout(ctx, workout); err != nil {
			return err
		}
		// Rows inserted earlier in the same transaction must be visible.
		nearby, err := tx.NearbyWorkouts(ctx, owner.ID, start, domain.DuplicateStartWindow)
		if err != nil {
			return err
		}
		require.Len(t, nearby, 1)
		return tx.InsertWarning(ctx, domain.Warning{
			ID:          uuid.NewString(),
			ClientID:    owner.ID,
			SubjectKind: domain.SubjectWorkout,
			SubjectID:   &workout.ID,
			Category:    domain.WarningValidation,
			Message:     "integration warning",
			CreatedAt:   time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	mine, err := repo.ListWorkouts(ctx, owner.ID, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	theirs, err := repo.ListWorkouts(ctx, other.ID, 10)
	require.NoError(t, err)
	require.Empty(t, theirs, "owner scoping must hold at the query layer")

	summary, err := repo.GetClientSummary(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.Equal(t, 1, summary.WorkoutCount)
	require.Equal(t, 1, summary.WarningCount)
	require.NotNil(t, summary.LastWorkoutStart)
	require.True(t, summary.LastWorkoutStart.Equal(start))
}

func TestRepositoryBatchRollsBackOnError(t *testing.T) {
	repo, ctx := setupRepository(t)

	owner := newTestClient()
	require.NoError(t, repo.CreateClient(ctx, owner))

	start := time.Now().UTC()
	boom := errors.New("mid-batch failure")
	err := repo.IngestBatch(ctx, func(tx domain.BatchTx) error {
		if err := tx.InsertWorkout(ctx, domain.Workout{
			ID:              uuid.NewString(),
			ClientID:        owner.ID,
			Category:        domain.CategoryRunning,
			StartTime:       start,
			EndTime:         start.Add(time.Hour),
			DurationSeconds: 3600,
			CreatedAt:       time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	workouts, err := repo.ListWorkouts(ctx, owner.ID, 10)
	require.NoError(t, err)
	require.Empty(t, workouts, "rollback must discard partial inserts")
}

func TestRepositoryProfileMetrics(t *testing.T) {
	repo, ctx := setupRepository(t)

	owner := newTestClient()
	require.NoError(t, repo.CreateClient(ctx, owner))

	measured := time.Now().UTC().Truncate(time.Second)
	err := repo.IngestBatch(ctx, func(tx domain.BatchTx) error {
		return tx.InsertProfileMetric(ctx, domain.ProfileMetric{
			ID:         uuid.NewString(),
			ClientID:   owner.ID,
			Metric:     domain.MetricHeight,
			Value:      175,
			Unit:       "cm",
			MeasuredAt: measured,
			Source:     "integration",
			CreatedAt:  time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	metrics, err := repo.ListProfileMetrics(ctx, owner.ID, 10)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.Equal(t, domain.MetricHeight, metrics[0].Metric)
	require.Equal(t, 175.0, metrics[0].Value)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"rutero-field/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var gpsRowColumns = []string{
	"sample_id", "agent_id", "recorded_at", "latitude", "longitude",
	"accuracy_m", "speed_kmh", "heading", "battery_pct", "is_mock",
}

func TestInsertGpsSample(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresGpsRepository(db, zap.NewNop())

	recordedAt := time.Date(2026, 3, 9, 8, 10, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO gps_samples`).
		WithArgs("smp-1", "agent-1", recordedAt, -12.00, -77.00, 5.0, 12.5, 180.0, 80, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &domain.GpsSample{
		ID:         "smp-1",
		AgentID:    "agent-1",
		RecordedAt: recordedAt,
		Coordinate: domain.Coordinate{Latitude: -12.00, Longitude: -77.00},
		AccuracyM:  5.0,
		SpeedKmh:   12.5,
		Heading:    180.0,
		BatteryPct: 80,
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_SingleTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresGpsRepository(db, zap.NewNop())

	recordedAt := time.Date(2026, 3, 9, 8, 10, 0, 0, time.UTC)
	samples := []*domain.GpsSample{
		{ID: "smp-1", AgentID: "agent-1", RecordedAt: recordedAt, Coordinate: domain.Coordinate{Latitude: -12.00, Longitude: -77.00}},
		{ID: "smp-2", AgentID: "agent-1", RecordedAt: recordedAt.Add(time.Minute), Coordinate: domain.Coordinate{Latitude: -11.99, Longitude: -77.00}},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO gps_samples`)
	prep.ExpectExec().
		WithArgs("smp-1", "agent-1", recordedAt, -12.00, -77.00, 0.0, 0.0, 0.0, 0, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("smp-2", "agent-1", recordedAt.Add(time.Minute), -11.99, -77.00, 0.0, 0.0, 0.0, 0, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertBatch(context.Background(), samples))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_FailureRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresGpsRepository(db, zap.NewNop())

	recordedAt := time.Date(2026, 3, 9, 8, 10, 0, 0, time.UTC)
	samples := []*domain.GpsSample{
		{ID: "smp-1", AgentID: "agent-1", RecordedAt: recordedAt},
		{ID: "smp-2", AgentID: "agent-1", RecordedAt: recordedAt.Add(time.Minute)},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO gps_samples`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.InsertBatch(context.Background(), samples)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_EmptyIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresGpsRepository(db, zap.NewNop())

	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRange_Ordered(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresGpsRepository(db, zap.NewNop())

	from := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	rows := sqlmock.NewRows(gpsRowColumns).
		AddRow("smp-1", "agent-1", from.Add(10*time.Minute), -12.00, -77.00, 5.0, 0.0, 0.0, 80, false).
		AddRow("smp-2", "agent-1", from.Add(20*time.Minute), -11.99, -77.00, 5.0, 10.0, 0.0, 79, false)

	mock.ExpectQuery(`FROM gps_samples`).
		WithArgs("agent-1", from, to).
		WillReturnRows(rows)

	samples, err := repo.ListRange(context.Background(), "agent-1", from, to)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "smp-1", samples[0].ID)
	assert.Equal(t, -11.99, samples[1].Coordinate.Latitude)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatest_None(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresGpsRepository(db, zap.NewNop())

	mock.ExpectQuery(`FROM gps_samples`).
		WithArgs("agent-1").
		WillReturnError(sql.ErrNoRows)

	s, err := repo.Latest(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Nil(t, s)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"rutero-field/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var visitRowColumns = []string{
	"visit_id", "agent_id", "pdv_id", "pdv_name",
	"check_in_at", "check_out_at", "check_in_latitude", "check_in_longitude",
	"distance_to_pdv_m", "is_valid", "used_mock_location",
	"visit_status", "duration_minutes", "visit_data",
}

func visitRow(t *testing.T, id, status string, checkInAt time.Time, data domain.VisitData) []driver.Value {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return []driver.Value{
		id, "agent-1", "pdv-1", "Bodega Central",
		checkInAt, nil, -12.00, -77.00,
		12.5, true, false,
		status, 0, raw,
	}
}

func TestGetInProgressVisit_Found(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)
	data := domain.VisitData{Notes: "primera visita"}
	rows := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-1", "in_progress", checkInAt, data)...)

	mock.ExpectQuery(`FROM visits v`).
		WithArgs("agent-1").
		WillReturnRows(rows)

	v, err := repo.GetInProgressVisit(context.Background(), "agent-1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "visit-1", v.ID)
	assert.Equal(t, "Bodega Central", v.PdvName)
	assert.Equal(t, domain.VisitInProgress, v.Status)
	assert.Equal(t, "primera visita", v.Data.Notes)
	assert.Nil(t, v.CheckOutAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetInProgressVisit_None(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	mock.ExpectQuery(`FROM visits v`).
		WithArgs("agent-1").
		WillReturnError(sql.ErrNoRows)

	v, err := repo.GetInProgressVisit(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVisit_InsertsBusinessDate(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	lima := time.FixedZone("America/Lima", -5*3600)
	checkInAt := time.Date(2026, 3, 9, 23, 30, 0, 0, lima)

	visit := &domain.Visit{
		ID:                "visit-1",
		AgentID:           "agent-1",
		PdvID:             "pdv-1",
		CheckInAt:         checkInAt,
		CheckInCoordinate: domain.Coordinate{Latitude: -12.00, Longitude: -77.00},
		DistanceToPdvM:    12.5,
		IsValid:           true,
		Status:            domain.VisitInProgress,
	}
	raw, err := json.Marshal(visit.Data)
	require.NoError(t, err)

	// 23:30 Lima is already the next day in UTC; the date column must
	// carry the business day.
	mock.ExpectExec(`INSERT INTO visits`).
		WithArgs("visit-1", "agent-1", "pdv-1", checkInAt,
			-12.00, -77.00, 12.5, true, false,
			"in_progress", "2026-03-09", raw).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateVisit(context.Background(), visit))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVisit_LostRaceReportsBlockingVisit(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO visits`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_visits_one_in_progress_per_agent"})

	blocking := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-0", "in_progress", checkInAt, domain.VisitData{})...)
	mock.ExpectQuery(`FROM visits v`).
		WithArgs("agent-1").
		WillReturnRows(blocking)

	err := repo.CreateVisit(context.Background(), &domain.Visit{
		ID:      "visit-1",
		AgentID: "agent-1",
		PdvID:   "pdv-2",
		Status:  domain.VisitInProgress,
	})

	var concurrent *domain.ConcurrentVisitError
	require.ErrorAs(t, err, &concurrent)
	assert.Equal(t, "visit-0", concurrent.VisitID)
	assert.Equal(t, "Bodega Central", concurrent.PdvName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteVisit_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)
	checkOutAt := checkInAt.Add(15 * time.Minute)

	mock.ExpectBegin()
	locked := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-1", "in_progress", checkInAt, domain.VisitData{Notes: "entrada"})...)
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs("visit-1").
		WillReturnRows(locked)
	mock.ExpectExec(`UPDATE visits`).
		WithArgs("visit-1", checkOutAt, 15, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := repo.CompleteVisit(context.Background(), "agent-1", "visit-1", CheckOutUpdate{
		At:    checkOutAt,
		Notes: "salida",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.VisitCompleted, v.Status)
	assert.Equal(t, 15, v.DurationMinutes)
	require.NotNil(t, v.CheckOutAt)
	assert.Equal(t, checkOutAt, *v.CheckOutAt)
	assert.Equal(t, "entrada", v.Data.Notes)
	assert.Equal(t, "salida", v.Data.CheckOutNotes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteVisit_WrongAgent(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)

	mock.ExpectBegin()
	locked := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-1", "in_progress", checkInAt, domain.VisitData{})...)
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs("visit-1").
		WillReturnRows(locked)
	mock.ExpectRollback()

	_, err := repo.CompleteVisit(context.Background(), "agent-2", "visit-1", CheckOutUpdate{At: checkInAt})
	assert.ErrorIs(t, err, domain.ErrVisitNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteVisit_AlreadyCompleted(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)

	mock.ExpectBegin()
	locked := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-1", "completed", checkInAt, domain.VisitData{})...)
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs("visit-1").
		WillReturnRows(locked)
	mock.ExpectRollback()

	_, err := repo.CompleteVisit(context.Background(), "agent-1", "visit-1", CheckOutUpdate{At: checkInAt})
	assert.ErrorIs(t, err, domain.ErrVisitNotActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteVisit_DailyUniquenessBackstop(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)

	mock.ExpectBegin()
	locked := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-1", "in_progress", checkInAt, domain.VisitData{})...)
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs("visit-1").
		WillReturnRows(locked)
	mock.ExpectExec(`UPDATE visits`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_visits_one_completed_per_day"})
	mock.ExpectRollback()

	_, err := repo.CompleteVisit(context.Background(), "agent-1", "visit-1", CheckOutUpdate{At: checkInAt.Add(10 * time.Minute)})

	var already *domain.AlreadyVisitedTodayError
	require.ErrorAs(t, err, &already)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteInProgressVisit_RemovesResponses(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresVisitsRepository(db, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)

	mock.ExpectBegin()
	locked := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-1", "in_progress", checkInAt, domain.VisitData{})...)
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs("visit-1").
		WillReturnRows(locked)
	mock.ExpectExec(`DELETE FROM form_responses`).
		WithArgs("visit-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM visits`).
		WithArgs("visit-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteInProgressVisit(context.Background(), "agent-1", "visit-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"testing"
	"time"

	"rutero-field/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func TestGetFieldsByIDs(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresFormsRepository(db, NewPostgresVisitsRepository(db, zap.NewNop()), zap.NewNop())

	rows := sqlmock.NewRows([]string{
		"field_id", "label", "field_type", "required",
		"min_value", "max_value", "options", "allowed_extensions",
	}).
		AddRow("fld-stock", "Stock visible", "number", true, 0.0, 500.0, nil, nil).
		AddRow("fld-foto", "Foto del anaquel", "image", false, nil, nil, nil, []byte(`["jpg","png"]`)).
		AddRow("fld-tipo", "Tipo de exhibición", "select", true, nil, nil, []byte(`{"rack":"Rack","isla":"Isla"}`), nil)

	mock.ExpectQuery(`FROM form_fields`).
		WithArgs(pq.Array([]string{"fld-stock", "fld-foto", "fld-tipo", "fld-ghost"})).
		WillReturnRows(rows)

	fields, err := repo.GetFieldsByIDs(context.Background(), []string{"fld-stock", "fld-foto", "fld-tipo", "fld-ghost"})
	require.NoError(t, err)
	require.Len(t, fields, 3)

	stock := fields["fld-stock"]
	assert.Equal(t, domain.FieldNumber, stock.Type)
	assert.True(t, stock.Required)
	require.NotNil(t, stock.MaxValue)
	assert.Equal(t, 500.0, *stock.MaxValue)

	foto := fields["fld-foto"]
	assert.Equal(t, []string{"jpg", "png"}, foto.AllowedExtensions)

	tipo := fields["fld-tipo"]
	assert.Equal(t, "Rack", tipo.Options["rack"])

	// Unknown id simply absent.
	_, ok := fields["fld-ghost"]
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFieldsByIDs_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresFormsRepository(db, NewPostgresVisitsRepository(db, zap.NewNop()), zap.NewNop())

	fields, err := repo.GetFieldsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResponsesAndComplete_OneTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	visits := NewPostgresVisitsRepository(db, zap.NewNop())
	repo := NewPostgresFormsRepository(db, visits, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)
	checkOutAt := checkInAt.Add(20 * time.Minute)

	mock.ExpectBegin()
	locked := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-1", "in_progress", checkInAt, domain.VisitData{})...)
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs("visit-1").
		WillReturnRows(locked)
	mock.ExpectExec(`INSERT INTO form_responses`).
		WithArgs(sqlmock.AnyArg(), "visit-1", "fld-stock", sqlmock.AnyArg(), checkOutAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO form_responses`).
		WithArgs(sqlmock.AnyArg(), "visit-1", "fld-obs", sqlmock.AnyArg(), checkOutAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE visits`).
		WithArgs("visit-1", checkOutAt, 20, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	answers := []domain.FieldAnswer{
		{FieldID: "fld-stock", Payload: domain.AnswerPayload{Value: strPtr("42")}},
		{FieldID: "fld-obs", Payload: domain.AnswerPayload{Value: strPtr("ok")}},
	}

	v, err := repo.SaveResponsesAndComplete(context.Background(), "agent-1", "visit-1", answers, CheckOutUpdate{At: checkOutAt})
	require.NoError(t, err)
	assert.Equal(t, domain.VisitCompleted, v.Status)
	assert.Equal(t, 20, v.DurationMinutes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResponsesAndComplete_NotInProgress(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	visits := NewPostgresVisitsRepository(db, zap.NewNop())
	repo := NewPostgresFormsRepository(db, visits, zap.NewNop())

	checkInAt := time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC)

	mock.ExpectBegin()
	locked := sqlmock.NewRows(visitRowColumns).
		AddRow(visitRow(t, "visit-1", "completed", checkInAt, domain.VisitData{})...)
	mock.ExpectQuery(`FOR UPDATE OF v`).
		WithArgs("visit-1").
		WillReturnRows(locked)
	mock.ExpectRollback()

	_, err := repo.SaveResponsesAndComplete(context.Background(), "agent-1", "visit-1", nil, CheckOutUpdate{At: checkInAt})
	assert.ErrorIs(t, err, domain.ErrVisitNotActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package simulation

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/testutil"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var instructorSession = db.Session{UserID: "i-1", TenantID: "sim-1"}

func expectLock(mock sqlmock.Sqlmock, tenantType string) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_type FROM tenants WHERE id = $1 AND deleted_at IS NULL FOR UPDATE")).
		WithArgs("sim-1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_type"}).AddRow(tenantType))
}

// TestRepository_ResetRun tests the full reset transaction in order
func TestRepository_ResetRun(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	testutil.ExpectSession(mock, instructorSession)
	expectLock(mock, "simulation")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM simulation_baselines")).
		WithArgs("sim-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM alerts")).WithArgs("sim-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patient_notes")).WithArgs("sim-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM vital_signs")).WithArgs("sim-1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM medication_administrations")).WithArgs("sim-1").WillReturnResult(sqlmock.NewResult(0, 6))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE medications m")).WithArgs("sim-1", at).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tenants SET run_number = run_number + 1")).
		WithArgs("sim-1", at).
		WillReturnRows(sqlmock.NewRows([]string{"run_number"}).AddRow(2))
	mock.ExpectCommit()

	summary, err := repo.ResetRun(context.Background(), instructorSession, "sim-1", at)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.RunNumber)
	assert.Equal(t, 5, summary.MedicationsRestored)
	assert.Equal(t, 3, summary.AlertsCleared)
	assert.Equal(t, 2, summary.NotesCleared)
	assert.Equal(t, 4, summary.VitalsCleared)
	assert.Equal(t, 6, summary.AdministrationsCleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRepository_ResetRun_Institution tests that a non-simulation tenant rolls back untouched
func TestRepository_ResetRun_Institution(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectAnySession(mock)
	expectLock(mock, "institution")
	mock.ExpectRollback()

	_, err := repo.ResetRun(context.Background(), instructorSession, "sim-1", time.Now())

	assert.ErrorIs(t, err, ErrNotSimulation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRepository_ResetRun_NoBaseline tests that a reset without a baseline deletes nothing
func TestRepository_ResetRun_NoBaseline(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectAnySession(mock)
	expectLock(mock, "simulation")
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, err := repo.ResetRun(context.Background(), instructorSession, "sim-1", time.Now())

	assert.ErrorIs(t, err, ErrNoBaseline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRepository_ResetRun_RLSDenied tests that a row security failure rolls back as forbidden
func TestRepository_ResetRun_RLSDenied(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectAnySession(mock)
	expectLock(mock, "simulation")
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("DELETE FROM alerts").WillReturnError(&pq.Error{Code: pq.ErrorCode(db.CodeInsufficientPrivilege)})
	mock.ExpectRollback()

	_, err := repo.ResetRun(context.Background(), instructorSession, "sim-1", time.Now())

	assert.ErrorIs(t, err, ErrForbidden)
}

// TestRepository_CaptureBaseline tests that the baseline is replaced
func TestRepository_CaptureBaseline(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)
	at := time.Now()

	testutil.ExpectSession(mock, instructorSession)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM simulation_baselines")).WithArgs("sim-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO simulation_baselines")).WithArgs("sim-1", at).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	n, err := repo.CaptureBaseline(context.Background(), instructorSession, "sim-1", at)

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package notes

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noteColumnNames = []string{"id", "tenant_id", "patient_id", "nurse_id", "nurse_name", "type", "content", "priority", "created_at"}

var nurseSession = db.Session{UserID: "n-1", TenantID: "inst"}

// TestRepository_Insert tests the patient-scoped insert
func TestRepository_Insert(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectSession(mock, nurseSession)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO patient_notes")).
		WithArgs("inst", "p-1", "n-1", "Nora Nurse", "General", "Resting", PriorityLow).
		WillReturnRows(sqlmock.NewRows(noteColumnNames).
			AddRow("note-1", "inst", "p-1", "n-1", "Nora Nurse", "General", "Resting", PriorityLow, time.Now()))
	mock.ExpectCommit()

	n, err := repo.Insert(context.Background(), nurseSession, &PatientNote{
		TenantID: "inst", PatientID: "p-1", NurseID: "n-1", NurseName: "Nora Nurse",
		Type: "General", Content: "Resting", Priority: PriorityLow,
	})

	require.NoError(t, err)
	assert.Equal(t, "note-1", n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRepository_Insert_PatientMissing tests that no selected patient reads as not found
func TestRepository_Insert_PatientMissing(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectAnySession(mock)
	mock.ExpectQuery("INSERT INTO patient_notes").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Insert(context.Background(), nurseSession, &PatientNote{TenantID: "inst", PatientID: "p-x"})

	assert.ErrorIs(t, err, ErrPatientNotFound)
}

// TestRepository_ListByPatient_TypeFilter tests the optional type argument
func TestRepository_ListByPatient_TypeFilter(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectAnySession(mock)
	mock.ExpectQuery(regexp.QuoteMeta("AND type = $3 ORDER BY created_at DESC")).
		WithArgs("inst", "p-1", "Handoff").
		WillReturnRows(sqlmock.NewRows(noteColumnNames).
			AddRow("note-2", "inst", "p-1", "", "", "Handoff", "Night report", PriorityHigh, time.Now()))
	mock.ExpectCommit()

	out, err := repo.ListByPatient(context.Background(), nurseSession, "inst", "p-1", "Handoff")

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, PriorityHigh, out[0].Priority)
	assert.Empty(t, out[0].NurseID)
}

// TestRepository_DeleteNote tests a single-row delete
func TestRepository_DeleteNote(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectAnySession(mock)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patient_notes WHERE tenant_id = $1 AND id = $2")).
		WithArgs("inst", "note-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.DeleteNote(context.Background(), nurseSession, "inst", "note-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package alerts

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alertColumnNames = []string{
	"id", "tenant_id", "patient_id", "patient_name", "type",
	"source_id", "message", "priority", "acknowledged", "acknowledged_by",
	"acknowledged_at", "expires_at", "created_at",
}

func alertRow(id string, acknowledged bool) *sqlmock.Rows {
	return sqlmock.NewRows(alertColumnNames).AddRow(
		id, "inst", "p-1", "John Doe", TypeMedicationOverdue,
		"m-1@1", "overdue", PriorityHigh, acknowledged, "",
		nil, nil, time.Now(),
	)
}

var systemSession = db.Session{TenantID: "inst", SuperAdmin: true}

// TestRepository_Insert_Created tests the dedupe upsert returning a row
func TestRepository_Insert_Created(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectSession(mock, systemSession)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (tenant_id, type, source_id) WHERE source_id IS NOT NULL")).
		WithArgs("inst", "p-1", "John Doe", TypeMedicationOverdue, "m-1@1", "overdue", PriorityHigh, nil).
		WillReturnRows(alertRow("al-1", false))
	mock.ExpectCommit()

	a, created, err := repo.Insert(context.Background(), systemSession, &Alert{
		TenantID: "inst", PatientID: "p-1", PatientName: "John Doe", Type: TypeMedicationOverdue,
		SourceID: "m-1@1", Message: "overdue", Priority: PriorityHigh,
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "al-1", a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRepository_Insert_Duplicate tests that DO NOTHING reads as not created
func TestRepository_Insert_Duplicate(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)

	testutil.ExpectAnySession(mock)
	mock.ExpectQuery("INSERT INTO alerts").WillReturnRows(sqlmock.NewRows(alertColumnNames))
	mock.ExpectRollback()

	a, created, err := repo.Insert(context.Background(), systemSession, &Alert{TenantID: "inst", Type: TypeSystem, Message: "x", Priority: PriorityLow})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, a)
}

// TestRepository_Acknowledge_AlreadyDone tests the guarded update
func TestRepository_Acknowledge_AlreadyDone(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)
	sess := db.Session{UserID: "n-1", TenantID: "inst"}

	testutil.ExpectSession(mock, sess)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id = $1 AND id = $2 AND acknowledged = FALSE")).
		WithArgs("inst", "al-1", "n-1").
		WillReturnRows(sqlmock.NewRows(alertColumnNames))
	mock.ExpectRollback()

	_, err := repo.Acknowledge(context.Background(), sess, "inst", "al-1", "n-1")

	assert.True(t, errors.Is(err, ErrAlreadyAcknowledged), "got %v", err)
}

// TestRepository_ListActive_PatientFilter tests the optional patient argument
func TestRepository_ListActive_PatientFilter(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)
	sess := db.Session{UserID: "n-1", TenantID: "inst"}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	testutil.ExpectSession(mock, sess)
	mock.ExpectQuery(regexp.QuoteMeta("(expires_at IS NULL OR expires_at > $2) AND patient_id = $3")).
		WithArgs("inst", now, "p-1").
		WillReturnRows(alertRow("al-1", false))
	mock.ExpectCommit()

	out, err := repo.ListActive(context.Background(), sess, "inst", "p-1", now)

	require.NoError(t, err)
	assert.Len(t, out, 1)
}

// TestRepository_DeleteAcknowledgedBefore tests the purge count
func TestRepository_DeleteAcknowledgedBefore(t *testing.T) {
	conn, mock := testutil.NewMockDB(t)
	repo := NewRepository(conn)
	before := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	testutil.ExpectSession(mock, db.Session{SuperAdmin: true})
	mock.ExpectExec("DELETE FROM alerts").WithArgs(before).WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectCommit()

	n, err := repo.DeleteAcknowledgedBefore(context.Background(), db.Session{SuperAdmin: true}, before)

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

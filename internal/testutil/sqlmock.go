package testutil

import (
	"database/sql"
	"regexp"
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/haccare/emr-service/internal/db"
)

// SetSessionPattern matches the statement db.WithSession issues first in
// every transaction.
var SetSessionPattern = regexp.QuoteMeta("SELECT set_config('app.current_user_id'")

// NewMockDB returns a sqlmock-backed pool that is closed when the test ends.
func NewMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

// ExpectSession expects the BEGIN and set_config pair that opens a
// db.WithSession transaction for sess.
func ExpectSession(mock sqlmock.Sqlmock, sess db.Session) {
	mock.ExpectBegin()
	mock.ExpectExec(SetSessionPattern).
		WithArgs(sess.UserID, sess.TenantID, strconv.FormatBool(sess.SuperAdmin), db.SessionRole()).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

// ExpectAnySession is ExpectSession without argument matching.
func ExpectAnySession(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(SetSessionPattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

package access

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/haccare/emr-service/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionPrefix = "SELECT set_config('app.current_user_id'"

func TestPostgresMembershipStore_ListMemberships(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(sessionPrefix)).
		WithArgs("", "", "true", db.DefaultAppRole).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant_users tu")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "role", "is_active", "tenant_type", "parent"}).
			AddRow("inst", "NURSE", true, "institution", "").
			AddRow("sim", "STUDENT", true, "simulation", "inst"))
	mock.ExpectCommit()

	got, err := NewPostgresMembershipStore(conn).ListMemberships(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Membership{TenantID: "sim", Role: "STUDENT", Active: true, TenantType: "simulation", ParentTenantID: "inst"}, got[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMembershipStore_GetTenantNotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(sessionPrefix)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err = NewPostgresMembershipStore(conn).GetTenant(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMembershipStore_GetPatientTenant(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(sessionPrefix)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id FROM patients")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("inst"))
	mock.ExpectCommit()

	got, err := NewPostgresMembershipStore(conn).GetPatientTenant(context.Background(), "p-1")

	require.NoError(t, err)
	assert.Equal(t, "inst", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

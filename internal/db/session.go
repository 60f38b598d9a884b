package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/lib/pq"
)

// Session identifies the caller to the row-level security policies for the
// lifetime of one transaction.
type Session struct {
	UserID     string
	TenantID   string
	SuperAdmin bool
}

// DefaultAppRole is the role the row-level security policies are written
// against. It owns no tables, so the policies apply to it.
const DefaultAppRole = "haccare_app"

var appRole atomic.Value

// SetAppRole changes the role every session switches to. An empty role keeps
// the login role, which is only correct when that role is itself subject to
// row-level security.
func SetAppRole(role string) {
	appRole.Store(role)
}

// SessionRole is the value WithSession assigns to the role setting.
func SessionRole() string {
	role, ok := appRole.Load().(string)
	if !ok {
		return DefaultAppRole
	}
	if role == "" {
		return "none"
	}
	return role
}

// set_config('role', ...) is SET LOCAL ROLE with a bind parameter.
const setSessionQuery = `SELECT set_config('app.current_user_id', $1, true), set_config('app.current_tenant_id', $2, true), set_config('app.is_super_admin', $3, true), set_config('role', $4, true)`

// WithSession runs fn inside a transaction whose settings carry sess, acting
// as the application role. The settings are transaction-local so pooled
// connections never leak them.
func WithSession(ctx context.Context, db *sql.DB, sess Session, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, setSessionQuery,
		sess.UserID, sess.TenantID, strconv.FormatBool(sess.SuperAdmin), SessionRole(),
	); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PostgreSQL error codes mapped by the repositories.
const (
	CodeUniqueViolation       = "23505"
	CodeForeignKeyViolation   = "23503"
	CodeNotNullViolation      = "23502"
	CodeCheckViolation        = "23514"
	CodeInsufficientPrivilege = "42501"
	CodeInvalidTextRepr       = "22P02"
)

// ErrorCode returns the SQLSTATE of a lib/pq error, or "".
func ErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsRLSViolation reports whether err is a row-level security rejection.
func IsRLSViolation(err error) bool {
	return ErrorCode(err) == CodeInsufficientPrivilege
}

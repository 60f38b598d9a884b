package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/haccare/emr-service/internal/db"
)

type RepositoryInterface interface {
	Insert(ctx context.Context, sess db.Session, n *PatientNote) (*PatientNote, error)
	ListByPatient(ctx context.Context, sess db.Session, tenantID, patientID, noteType string) ([]PatientNote, error)
	GetNote(ctx context.Context, sess db.Session, tenantID, id string) (*PatientNote, error)
	DeleteNote(ctx context.Context, sess db.Session, tenantID, id string) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const noteColumns = `id, tenant_id, patient_id, COALESCE(nurse_id::text, ''), COALESCE(nurse_name, ''),
	type, content, priority, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*PatientNote, error) {
	var n PatientNote
	err := row.Scan(&n.ID, &n.TenantID, &n.PatientID, &n.NurseID, &n.NurseName,
		&n.Type, &n.Content, &n.Priority, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *Repository) Insert(ctx context.Context, sess db.Session, n *PatientNote) (*PatientNote, error) {
	query := `
		INSERT INTO patient_notes (tenant_id, patient_id, nurse_id, nurse_name, type, content, priority)
		SELECT p.tenant_id, p.id, $3, $4, $5, $6, $7
		FROM patients p
		WHERE p.tenant_id = $1 AND p.id = $2 AND p.deleted_at IS NULL
		RETURNING ` + noteColumns

	var saved *PatientNote
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		saved, err = scanNote(tx.QueryRowContext(ctx, query,
			n.TenantID, n.PatientID, nullable(n.NurseID), nullable(n.NurseName), n.Type, n.Content, n.Priority))
		return err
	})
	switch {
	case errors.Is(err, sql.ErrNoRows), db.ErrorCode(err) == db.CodeInvalidTextRepr:
		return nil, ErrPatientNotFound
	case db.ErrorCode(err) == db.CodeInsufficientPrivilege:
		return nil, ErrForbidden
	case db.ErrorCode(err) == db.CodeCheckViolation:
		return nil, ErrInvalidPriority
	case err != nil:
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}
	return saved, nil
}

func (r *Repository) ListByPatient(ctx context.Context, sess db.Session, tenantID, patientID, noteType string) ([]PatientNote, error) {
	query := `SELECT ` + noteColumns + ` FROM patient_notes WHERE tenant_id = $1 AND patient_id = $2`
	args := []interface{}{tenantID, patientID}
	if noteType != "" {
		query += ` AND type = $3`
		args = append(args, noteType)
	}
	query += ` ORDER BY created_at DESC`

	var out []PatientNote
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			n, err := scanNote(rows)
			if err != nil {
				return fmt.Errorf("failed to scan note: %w", err)
			}
			out = append(out, *n)
		}
		return rows.Err()
	})
	if db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return out, nil
}

func (r *Repository) GetNote(ctx context.Context, sess db.Session, tenantID, id string) (*PatientNote, error) {
	var n *PatientNote
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		var err error
		n, err = scanNote(tx.QueryRowContext(ctx,
			`SELECT `+noteColumns+` FROM patient_notes WHERE tenant_id = $1 AND id = $2`, tenantID, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) || db.ErrorCode(err) == db.CodeInvalidTextRepr {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return n, nil
}

func (r *Repository) DeleteNote(ctx context.Context, sess db.Session, tenantID, id string) error {
	var affected int64
	err := db.WithSession(ctx, r.db, sess, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM patient_notes WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if affected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

package notes

import (
	"context"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/rs/zerolog/log"
)

type ServiceInterface interface {
	Create(ctx context.Context, scope access.Scope, patientID string, req CreateNoteRequest) (*PatientNote, error)
	List(ctx context.Context, scope access.Scope, patientID, noteType string) ([]PatientNote, error)
	Delete(ctx context.Context, scope access.Scope, id string) error
}

type Service struct {
	repo   RepositoryInterface
	policy access.Authorizer
}

var _ ServiceInterface = (*Service)(nil)

func NewService(repo RepositoryInterface, policy access.Authorizer) *Service {
	return &Service{repo: repo, policy: policy}
}

// Create signs the note with the caller's id and display name.
func (s *Service) Create(ctx context.Context, scope access.Scope, patientID string, req CreateNoteRequest) (*PatientNote, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	p, _ := auth.FromContext(ctx)
	n := &PatientNote{
		TenantID:  scope.TenantID,
		PatientID: patientID,
		NurseID:   scope.UserID,
		NurseName: p.DisplayName(),
		Type:      req.Type,
		Content:   req.Content,
		Priority:  req.Priority,
	}
	if err := s.policy.Authorize("patient_notes", "insert", scope, n.PolicyRow()); err != nil {
		return nil, ErrForbidden
	}

	saved, err := s.repo.Insert(ctx, scope.Session(), n)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("note_id", saved.ID).
		Str("patient_id", saved.PatientID).
		Str("type", saved.Type).
		Msg("note created")
	return saved, nil
}

func (s *Service) List(ctx context.Context, scope access.Scope, patientID, noteType string) ([]PatientNote, error) {
	out, err := s.repo.ListByPatient(ctx, scope.Session(), scope.TenantID, patientID, noteType)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []PatientNote{}
	}
	return out, nil
}

// Delete is allowed for the author and for tenant admins and instructors.
func (s *Service) Delete(ctx context.Context, scope access.Scope, id string) error {
	n, err := s.repo.GetNote(ctx, scope.Session(), scope.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize("patient_notes", "delete", scope, n.PolicyRow()); err != nil {
		log.Warn().Str("note_id", id).Str("user_id", scope.UserID).Msg("note delete denied")
		return ErrForbidden
	}
	if err := s.repo.DeleteNote(ctx, scope.Session(), scope.TenantID, id); err != nil {
		return err
	}
	log.Info().Str("note_id", id).Str("user_id", scope.UserID).Msg("note deleted")
	return nil
}

package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/database"
	"github.com/dualtrack/be-acq-requests/internal/repository"
)

// RequestService serves the read side of requests and the simple lifecycle
// edges that bypass the approval pipeline (cancel, delete draft).
type RequestService struct {
	db           *database.DB
	requestRepo  *repository.RequestRepository
	stepRepo     *repository.ApprovalStepRepository
	advisoryRepo *repository.AdvisoryInputRepository
	documentRepo *repository.PackageDocumentRepository
	activityRepo *repository.ActivityLogRepository
	log          zerolog.Logger
}

// NewRequestService creates a new RequestService.
func NewRequestService(
	db *database.DB,
	requestRepo *repository.RequestRepository,
	stepRepo *repository.ApprovalStepRepository,
	advisoryRepo *repository.AdvisoryInputRepository,
	documentRepo *repository.PackageDocumentRepository,
	activityRepo *repository.ActivityLogRepository,
	log zerolog.Logger,
) *RequestService {
	return &RequestService{
		db:           db,
		requestRepo:  requestRepo,
		stepRepo:     stepRepo,
		advisoryRepo: advisoryRepo,
		documentRepo: documentRepo,
		activityRepo: activityRepo,
		log:          log,
	}
}

// RequestDetail is the aggregate read model for one request.
type RequestDetail struct {
	Request    *repository.AcquisitionRequest `json:"request"`
	Steps      []*repository.ApprovalStep     `json:"steps"`
	Advisories []*repository.AdvisoryInput    `json:"advisories"`
	Documents  []*repository.PackageDocument  `json:"documents"`
	Activity   []*repository.ActivityLog      `json:"activity"`
}

// Get returns the request with its steps, advisory reviews, checklist and
// audit trail.
func (s *RequestService) Get(ctx context.Context, id int64) (*RequestDetail, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.stepRepo.GetByRequestID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	advisories, err := s.advisoryRepo.GetByRequestID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	documents, err := s.documentRepo.GetByRequestID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	activity, err := s.activityRepo.GetByRequestID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RequestDetail{
		Request:    req,
		Steps:      steps,
		Advisories: advisories,
		Documents:  documents,
		Activity:   activity,
	}, nil
}

// List returns requests matching the filter with the total count.
func (s *RequestService) List(ctx context.Context, filter repository.RequestFilter) ([]*repository.AcquisitionRequest, int, error) {
	return s.requestRepo.List(ctx, filter)
}

// Cancel withdraws a request. Approved requests cannot be cancelled.
func (s *RequestService) Cancel(ctx context.Context, id int64, actorID string, reason *string) (*repository.AcquisitionRequest, error) {
	var req *repository.AcquisitionRequest

	err := s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		req, err = s.requestRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		switch req.Status {
		case repository.StatusApproved:
			return apperrors.InvalidTransition("approved requests cannot be cancelled")
		case repository.StatusCancelled:
			return apperrors.InvalidTransition("request is already cancelled")
		}

		oldStatus := req.Status
		if err := s.requestRepo.UpdateStatus(ctx, tx, id, repository.StatusCancelled); err != nil {
			return err
		}
		req.Status = repository.StatusCancelled

		return s.activityRepo.Append(ctx, tx, &repository.ActivityLog{
			RequestID:    id,
			ActivityType: "cancelled",
			Description:  fmt.Sprintf("Request cancelled: %s", derefString(reason)),
			Actor:        actorID,
			OldValue:     &oldStatus,
			NewValue:     &req.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("request_id", id).Msg("Request cancelled")
	return req, nil
}

// DeleteDraft removes a request that never left draft.
func (s *RequestService) DeleteDraft(ctx context.Context, id int64) error {
	if err := s.requestRepo.DeleteDraft(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("request_id", id).Msg("Draft request deleted")
	return nil
}

// UpdateDocumentStatus moves a checklist document through its preparation
// states.
func (s *RequestService) UpdateDocumentStatus(ctx context.Context, documentID int64, status string) (*repository.PackageDocument, error) {
	switch status {
	case repository.DocNotStarted, repository.DocInProgress,
		repository.DocComplete, repository.DocUploaded:
	default:
		return nil, apperrors.InvalidInput("status", "unknown document status")
	}
	return s.documentRepo.UpdateStatus(ctx, documentID, status)
}

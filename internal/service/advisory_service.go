package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dualtrack/be-acq-requests/internal/apperrors"
	"github.com/dualtrack/be-acq-requests/internal/client"
	"github.com/dualtrack/be-acq-requests/internal/database"
	"github.com/dualtrack/be-acq-requests/internal/repository"
)

// advisoryRank orders advisory statuses so reviews only move forward.
// in_review and info_requested are interchangeable working states; the
// complete and waived states are terminal.
var advisoryRank = map[string]int{
	repository.AdvisoryRequested:     0,
	repository.AdvisoryInReview:      1,
	repository.AdvisoryInfoRequested: 1,
	repository.AdvisoryCompleteClean: 2,
	repository.AdvisoryCompleteFound: 2,
	repository.AdvisoryWaived:        2,
}

// AdvisoryService handles specialist team reviews: status progression,
// findings and the denormalized per-team columns on the request.
type AdvisoryService struct {
	db           *database.DB
	requestRepo  *repository.RequestRepository
	advisoryRepo *repository.AdvisoryInputRepository
	activityRepo *repository.ActivityLogRepository
	notifier     *client.NotificationPublisher
	log          zerolog.Logger
}

// NewAdvisoryService creates a new AdvisoryService.
func NewAdvisoryService(
	db *database.DB,
	requestRepo *repository.RequestRepository,
	advisoryRepo *repository.AdvisoryInputRepository,
	activityRepo *repository.ActivityLogRepository,
	notifier *client.NotificationPublisher,
	log zerolog.Logger,
) *AdvisoryService {
	return &AdvisoryService{
		db:           db,
		requestRepo:  requestRepo,
		advisoryRepo: advisoryRepo,
		activityRepo: activityRepo,
		notifier:     notifier,
		log:          log,
	}
}

// AdvisoryUpdate is a reviewer's change to their team's review.
type AdvisoryUpdate struct {
	InputID        int64
	Status         string
	Findings       *string
	Recommendation *string
	ReviewerID     *int64
	ReviewerName   *string
}

// ListForRequest returns all advisory reviews on a request.
func (s *AdvisoryService) ListForRequest(ctx context.Context, requestID int64) ([]*repository.AdvisoryInput, error) {
	return s.advisoryRepo.GetByRequestID(ctx, s.db, requestID)
}

// UpdateReview applies a reviewer's status change. Statuses only move
// forward: a completed or waived review cannot reopen, and completion
// stamps the timestamp that unblocks the gate check.
func (s *AdvisoryService) UpdateReview(ctx context.Context, update AdvisoryUpdate) (*repository.AdvisoryInput, error) {
	rank, ok := advisoryRank[update.Status]
	if !ok {
		return nil, apperrors.InvalidInput("status", "unknown advisory status")
	}

	var (
		input *repository.AdvisoryInput
		req   *repository.AcquisitionRequest
	)

	err := s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		input, err = s.advisoryRepo.GetByID(ctx, tx, update.InputID)
		if err != nil {
			return err
		}

		currentRank := advisoryRank[input.Status]
		if rank < currentRank {
			return apperrors.InvalidTransition(
				fmt.Sprintf("advisory review cannot move from %q back to %q", input.Status, update.Status))
		}
		if currentRank == 2 && input.Status != update.Status {
			return apperrors.InvalidTransition(
				fmt.Sprintf("advisory review is already %s", input.Status))
		}

		req, err = s.requestRepo.GetForUpdate(ctx, tx, input.RequestID)
		if err != nil {
			return err
		}

		oldStatus := input.Status
		input.Status = update.Status
		if update.Findings != nil {
			input.Findings = update.Findings
		}
		if update.Recommendation != nil {
			input.Recommendation = update.Recommendation
		}
		if update.ReviewerID != nil {
			input.ReviewerID = update.ReviewerID
		}
		if update.ReviewerName != nil {
			input.ReviewerName = update.ReviewerName
		}
		if rank == 2 && input.CompletedAt == nil {
			now := time.Now().UTC()
			input.CompletedAt = &now
		}

		if err := s.advisoryRepo.UpdateReview(ctx, tx, input); err != nil {
			return err
		}
		if err := s.requestRepo.SetAdvisoryStatus(ctx, tx, req.ID, input.Team, input.Status); err != nil {
			return err
		}

		return s.activityRepo.Append(ctx, tx, &repository.ActivityLog{
			RequestID:    req.ID,
			ActivityType: "advisory_" + update.Status,
			Description:  fmt.Sprintf("%s review: %s", input.Team, update.Status),
			Actor:        derefString(update.ReviewerName),
			OldValue:     &oldStatus,
			NewValue:     &input.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("request_id", input.RequestID).
		Str("team", input.Team).
		Str("status", input.Status).
		Msg("Advisory review updated")

	if rank == 2 {
		s.notifier.NotifyRequestor("advisory_completed", req.ID, req.RequestNumber,
			derefString(update.ReviewerName), map[string]any{
				"team":   input.Team,
				"status": input.Status,
			})
	}
	return input, nil
}

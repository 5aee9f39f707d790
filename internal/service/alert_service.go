package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imjasonkam/leave-sub000/internal/models"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
	"github.com/imjasonkam/leave-sub000/pkg/jobs"
)

type alertRepository interface {
	Insert(ctx context.Context, alert *models.PayrollAlert) error
	List(ctx context.Context, filter models.PayrollAlertFilter) ([]models.PayrollAlert, int, error)
	Acknowledge(ctx context.Context, id string) error
}

// AlertService raises payroll alerts for approved leave. Dispatch happens on
// a background queue so the approval request never waits on alert writes;
// the insert is idempotent per (application, period).
type AlertService struct {
	repo   alertRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAlertService creates an AlertService with its own dispatch queue.
func NewAlertService(repo alertRepository, logger *zap.Logger, workers, retries int) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AlertService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("payroll-alerts", s.handleJob, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *AlertService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and stops the dispatch workers.
func (s *AlertService) Stop() {
	s.queue.Stop()
}

// NotifyApproved enqueues payroll alerts for every pay period the approved
// leave overlaps. Failures are logged, never surfaced to the approver.
func (s *AlertService) NotifyApproved(app *models.LeaveApplication) {
	for _, period := range overlappingPeriods(app.StartDate, app.EndDate) {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    "payroll_alert",
			Payload: alertPayload{App: app, Period: period},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue payroll alert",
				zap.String("application_id", app.ID),
				zap.String("period", period),
				zap.Error(err))
		}
	}
}

// List returns payroll alerts matching the filter.
func (s *AlertService) List(ctx context.Context, filter models.PayrollAlertFilter) ([]models.PayrollAlert, *models.Pagination, error) {
	alerts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payroll alerts")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return alerts, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Acknowledge marks an alert as handled by payroll.
func (s *AlertService) Acknowledge(ctx context.Context, id string) error {
	if err := s.repo.Acknowledge(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acknowledge alert")
	}
	return nil
}

type alertPayload struct {
	App    *models.LeaveApplication
	Period string
}

func (s *AlertService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(alertPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	alert := &models.PayrollAlert{
		ID:                 uuid.NewString(),
		UserID:             payload.App.ApplicantID,
		LeaveApplicationID: payload.App.ID,
		Period:             payload.Period,
		Message: fmt.Sprintf("approved leave of %s day(s) overlaps pay period %s",
			payload.App.Days.String(), payload.Period),
	}

	return s.repo.Insert(ctx, alert)
}

// overlappingPeriods lists the YYYY-MM pay periods a date range touches.
func overlappingPeriods(start, end time.Time) []string {
	var periods []string
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(last) {
		periods = append(periods, cursor.Format("2006-01"))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return periods
}

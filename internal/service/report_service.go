package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imjasonkam/leave-sub000/internal/models"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
	"github.com/imjasonkam/leave-sub000/pkg/export"
	"github.com/imjasonkam/leave-sub000/pkg/storage"
)

type reportApplicationLister interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.LeaveApplication, int, error)
}

type reportLedgerSummarizer interface {
	Summarize(ctx context.Context, userID string, year int) ([]models.BalanceSummary, error)
}

// LeaveReportRequest selects the applications included in an export.
type LeaveReportRequest struct {
	Format string  `json:"format" validate:"required,oneof=csv pdf"`
	From   *string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     *string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Status *string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
}

// BalanceReportRequest selects the balances included in an export.
type BalanceReportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
	UserID string `json:"user_id" validate:"required"`
	Year   int    `json:"year" validate:"required,min=2000,max=2100"`
}

// ReportArtifact describes a generated export and its signed download URL.
type ReportArtifact struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportService renders leave and balance exports to local storage and hands
// out time-limited signed download tokens.
type ReportService struct {
	apps      reportApplicationLister
	ledger    reportLedgerSummarizer
	users     leaveUserLookup
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService creates an instance of ReportService.
func NewReportService(apps reportApplicationLister, ledger reportLedgerSummarizer, users leaveUserLookup, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{
		apps:      apps,
		ledger:    ledger,
		users:     users,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// GenerateLeaveReport exports leave applications matching the request.
func (s *ReportService) GenerateLeaveReport(ctx context.Context, req LeaveReportRequest) (*ReportArtifact, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	filter := models.ApplicationFilter{Page: 1, PageSize: 10000}
	if req.From != nil {
		from, _ := time.Parse(dateLayout, *req.From)
		filter.From = &from
	}
	if req.To != nil {
		to, _ := time.Parse(dateLayout, *req.To)
		filter.To = &to
	}
	if req.Status != nil {
		status := models.ApplicationStatus(*req.Status)
		filter.Status = &status
	}

	apps, _, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect applications")
	}

	names := map[string]string{}
	dataset := export.Dataset{
		Headers: []string{"Applicant", "Leave Type", "Start", "End", "Days", "Status", "Submitted"},
	}
	for _, app := range apps {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Applicant":  s.resolveName(ctx, names, app.ApplicantID),
			"Leave Type": app.LeaveTypeID,
			"Start":      app.StartDate.Format(dateLayout),
			"End":        app.EndDate.Format(dateLayout),
			"Days":       app.Days.String(),
			"Status":     string(app.Status),
			"Submitted":  app.CreatedAt.Format(dateLayout),
		})
	}

	return s.render(dataset, "Leave Applications", "leave-report", req.Format)
}

// GenerateBalanceReport exports the ledger-derived balances for one user.
func (s *ReportService) GenerateBalanceReport(ctx context.Context, req BalanceReportRequest) (*ReportArtifact, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	summaries, err := s.ledger.Summarize(ctx, req.UserID, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect balances")
	}

	dataset := export.Dataset{
		Headers: []string{"Leave Type", "Year", "Granted", "Taken", "Balance"},
	}
	for _, bs := range summaries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Leave Type": bs.LeaveTypeID,
			"Year":       fmt.Sprintf("%d", bs.Year),
			"Granted":    bs.TotalGranted.String(),
			"Taken":      bs.TotalTaken.String(),
			"Balance":    bs.Balance.String(),
		})
	}

	return s.render(dataset, "Leave Balances", "balance-report", req.Format)
}

// Download resolves a signed token to the stored report file.
func (s *ReportService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file no longer exists")
	}
	return file, relPath, nil
}

// Cleanup removes report files older than ttl.
func (s *ReportService) Cleanup(ttl time.Duration) {
	removed, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("removed expired reports", zap.Int("count", len(removed)))
	}
}

func (s *ReportService) render(dataset export.Dataset, title, prefix, format string) (*ReportArtifact, error) {
	var (
		payload []byte
		err     error
		ext     string
	)
	switch format {
	case "pdf":
		payload, err = s.pdf.Render(dataset, title)
		ext = "pdf"
	default:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	filename := fmt.Sprintf("%s-%s.%s", prefix, reportID, ext)
	if _, err := s.store.Save(filename, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
	}

	return &ReportArtifact{ID: reportID, Filename: filename, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *ReportService) resolveName(ctx context.Context, cache map[string]string, userID string) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		cache[userID] = userID
		return userID
	}
	cache[userID] = user.FullName
	return user.FullName
}

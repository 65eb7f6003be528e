package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
	"github.com/decode-labs/decode-api/pkg/export"
	"github.com/decode-labs/decode-api/pkg/jobs"
	"github.com/decode-labs/decode-api/pkg/storage"
)

const jobTypeRenderStatement = "render_statement"

type statementStore interface {
	Create(ctx context.Context, s *models.PointsStatement) error
	FindByID(ctx context.Context, id string) (*models.PointsStatement, error)
	MarkReady(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type statementLedgerStore interface {
	AllByUser(ctx context.Context, userID string) ([]models.LedgerEntry, error)
}

type statementUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// StatementLink is a ready statement's signed download location.
type StatementLink struct {
	Statement *models.PointsStatement `json:"statement"`
	URL       string                  `json:"url,omitempty"`
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
}

// StatementService renders points statements asynchronously and serves them
// through signed URLs.
type StatementService struct {
	statements statementStore
	ledger     statementLedgerStore
	users      statementUserStore
	renderer   *export.StatementPDF
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	queue      *jobs.Queue
	logger     *zap.Logger
}

// NewStatementService constructs the service. Call Start before requesting
// statements.
func NewStatementService(
	statements statementStore,
	ledger statementLedgerStore,
	users statementUserStore,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	queueCfg jobs.QueueConfig,
	logger *zap.Logger,
) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatementService{
		statements: statements,
		ledger:     ledger,
		users:      users,
		renderer:   export.NewStatementPDF(),
		store:      store,
		signer:     signer,
		logger:     logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("statements", s.handleJob, queueCfg)
	return s
}

// Start launches the render workers.
func (s *StatementService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the render workers.
func (s *StatementService) Stop() {
	s.queue.Stop()
}

// Request queues a statement render for the user and returns the pending
// record immediately.
func (s *StatementService) Request(ctx context.Context, userID string) (*models.PointsStatement, error) {
	statement := &models.PointsStatement{
		UserID: userID,
		Status: models.StatementPending,
	}
	if err := s.statements.Create(ctx, statement); err != nil {
		return nil, fmt.Errorf("create statement: %w", err)
	}

	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeRenderStatement,
		Payload: statement.ID,
	}
	if err := s.queue.Enqueue(job); err != nil {
		if markErr := s.statements.MarkFailed(ctx, statement.ID, "queue unavailable"); markErr != nil {
			s.logger.Error("failed to mark statement failed", zap.Error(markErr))
		}
		return nil, fmt.Errorf("enqueue statement render: %w", err)
	}
	return statement, nil
}

// Get returns the statement and, once ready, a signed download URL.
func (s *StatementService) Get(ctx context.Context, id, userID string) (*StatementLink, error) {
	statement, err := s.statements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load statement %s: %w", id, err)
	}
	if statement.UserID != userID {
		return nil, appErrors.ErrForbidden
	}

	link := &StatementLink{Statement: statement}
	if statement.Status == models.StatementReady && statement.FilePath != nil {
		url, expires, err := s.signer.Generate(statement.ID, *statement.FilePath)
		if err != nil {
			return nil, fmt.Errorf("sign statement url: %w", err)
		}
		link.URL = url
		link.ExpiresAt = &expires
	}
	return link, nil
}

// Download validates a signed token and streams the rendered PDF.
func (s *StatementService) Download(ctx context.Context, token string) (io.ReadCloser, error) {
	statementID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}

	statement, err := s.statements.FindByID(ctx, statementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load statement %s: %w", statementID, err)
	}
	if statement.Status != models.StatementReady || statement.FilePath == nil || *statement.FilePath != relPath {
		return nil, appErrors.ErrNotFound
	}

	reader, err := s.store.Open(relPath)
	if err != nil {
		return nil, fmt.Errorf("open statement file: %w", err)
	}
	return reader, nil
}

func (s *StatementService) handleJob(ctx context.Context, job jobs.Job) error {
	statementID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	if err := s.render(ctx, statementID); err != nil {
		if markErr := s.statements.MarkFailed(ctx, statementID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark statement failed",
				zap.String("statement_id", statementID),
				zap.Error(markErr))
		}
		return err
	}
	return nil
}

func (s *StatementService) render(ctx context.Context, statementID string) error {
	statement, err := s.statements.FindByID(ctx, statementID)
	if err != nil {
		return fmt.Errorf("load statement: %w", err)
	}

	user, err := s.users.FindByID(ctx, statement.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	entries, err := s.ledger.AllByUser(ctx, statement.UserID)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	doc := export.Statement{
		UserName:    user.FullName,
		UserEmail:   user.Email,
		GeneratedAt: time.Now().UTC(),
	}
	running := 0
	for _, entry := range entries {
		running += entry.Amount
		desc := ""
		if entry.Description != nil {
			desc = *entry.Description
		}
		doc.Lines = append(doc.Lines, export.StatementLine{
			Date:        entry.CreatedAt,
			Kind:        string(entry.Kind),
			Description: desc,
			Amount:      entry.Amount,
			Balance:     running,
		})
	}
	doc.Balance = running

	pdfBytes, err := s.renderer.Render(doc)
	if err != nil {
		return fmt.Errorf("render statement: %w", err)
	}

	filename := fmt.Sprintf("%s.pdf", statement.ID)
	relPath, err := s.store.Save(filename, pdfBytes)
	if err != nil {
		return fmt.Errorf("store statement: %w", err)
	}

	if err := s.statements.MarkReady(ctx, statement.ID, relPath); err != nil {
		return fmt.Errorf("mark statement ready: %w", err)
	}
	s.logger.Info("statement rendered",
		zap.String("statement_id", statement.ID),
		zap.String("user_id", statement.UserID),
		zap.Int("lines", len(doc.Lines)))
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
)

type ticketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, id string) (*models.Ticket, error)
	ListAll(ctx context.Context) ([]models.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	Respond(ctx context.Context, id, responderID, response string, status models.TicketStatus) error
}

type ticketSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// TicketService manages student queries and their responses.
type TicketService struct {
	tickets   ticketRepository
	subjects  ticketSubjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTicketService constructs a TicketService instance.
func NewTicketService(tickets ticketRepository, subjects ticketSubjectRepository, validate *validator.Validate, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TicketService{tickets: tickets, subjects: subjects, validator: validate, logger: logger}
}

// Create raises a ticket against a subject on behalf of the caller.
func (s *TicketService) Create(ctx context.Context, userID string, req models.CreateTicketRequest) (*models.Ticket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ticket payload")
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	ticket := &models.Ticket{
		UserID:    userID,
		SubjectID: req.SubjectID,
		Question:  req.Question,
		Status:    models.TicketOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ticket")
	}
	return ticket, nil
}

// List returns tickets scoped to the caller: students see their own,
// every other role sees the full queue.
func (s *TicketService) List(ctx context.Context, claims *models.JWTClaims) ([]models.Ticket, error) {
	var (
		tickets []models.Ticket
		err     error
	)
	if claims.Role == models.RoleStudent {
		tickets, err = s.tickets.ListByUser(ctx, claims.UserID)
	} else {
		tickets, err = s.tickets.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tickets")
	}
	return tickets, nil
}

// Get returns one ticket. Students may only read their own.
func (s *TicketService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}
	if claims.Role == models.RoleStudent && ticket.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "ticket belongs to another student")
	}
	return ticket, nil
}

// Respond records a response and status change, stamping the responder.
func (s *TicketService) Respond(ctx context.Context, responderID, ticketID string, req models.RespondTicketRequest) (*models.Ticket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}

	if _, err := s.tickets.FindByID(ctx, ticketID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ticket")
	}

	if err := s.tickets.Respond(ctx, ticketID, responderID, req.Response, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to respond to ticket")
	}

	updated, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload ticket")
	}
	return updated, nil
}

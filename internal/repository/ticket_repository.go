package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evalhub/exam-eval-api/internal/models"
)

const ticketColumns = `id, user_id, subject_id, question, status, responder_id, response, created_at, updated_at`

// TicketRepository provides database access for student tickets.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new instance of TicketRepository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket in status open.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}
	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now

	const query = `INSERT INTO tickets (id, user_id, subject_id, question, status, created_at, updated_at)
		VALUES (:id, :user_id, :subject_id, :question, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ticket); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// FindByID returns a ticket by identifier.
func (r *TicketRepository) FindByID(ctx context.Context, id string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 LIMIT 1`
	var ticket models.Ticket
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find ticket by id: %w", err)
	}
	return &ticket, nil
}

// ListAll returns every ticket, newest first.
func (r *TicketRepository) ListAll(ctx context.Context) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at DESC`
	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// ListByUser returns the tickets raised by a user, newest first.
func (r *TicketRepository) ListByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = $1 ORDER BY created_at DESC`
	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query, userID); err != nil {
		return nil, fmt.Errorf("list tickets by user: %w", err)
	}
	return tickets, nil
}

// Respond stores a response plus status, stamping the responder.
func (r *TicketRepository) Respond(ctx context.Context, id, responderID, response string, status models.TicketStatus) error {
	const query = `UPDATE tickets SET response = $2, responder_id = $3, status = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, response, responderID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("respond ticket: %w", err)
	}
	return nil
}

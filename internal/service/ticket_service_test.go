package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/internal/models"
	appErrors "github.com/evalhub/exam-eval-api/pkg/errors"
)

type mockTicketRepo struct {
	tickets map[string]*models.Ticket
	created *models.Ticket

	listAllCalled    bool
	listByUserCalled string
}

func newMockTicketRepo() *mockTicketRepo {
	return &mockTicketRepo{tickets: map[string]*models.Ticket{}}
}

func (m *mockTicketRepo) Create(ctx context.Context, ticket *models.Ticket) error {
	ticket.ID = "tkt-1"
	m.created = ticket
	m.tickets[ticket.ID] = ticket
	return nil
}

func (m *mockTicketRepo) FindByID(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return ticket, nil
}

func (m *mockTicketRepo) ListAll(ctx context.Context) ([]models.Ticket, error) {
	m.listAllCalled = true
	return nil, nil
}

func (m *mockTicketRepo) ListByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	m.listByUserCalled = userID
	return nil, nil
}

func (m *mockTicketRepo) Respond(ctx context.Context, id, responderID, response string, status models.TicketStatus) error {
	ticket := m.tickets[id]
	ticket.ResponderID = &responderID
	ticket.Response = &response
	ticket.Status = status
	return nil
}

type mockTicketSubjectRepo struct {
	subjects map[string]*models.Subject
}

func (m *mockTicketSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func newTestTicketService(tickets *mockTicketRepo, subjects *mockTicketSubjectRepo) *TicketService {
	return NewTicketService(tickets, subjects, validator.New(), zap.NewNop())
}

func TestTicketServiceCreateOpensTicket(t *testing.T) {
	subjects := &mockTicketSubjectRepo{subjects: map[string]*models.Subject{
		"sub-1": {ID: "sub-1", Name: "Physics"},
	}}
	svc := newTestTicketService(newMockTicketRepo(), subjects)

	ticket, err := svc.Create(context.Background(), "stu-1", models.CreateTicketRequest{
		SubjectID: "sub-1",
		Question:  "Why was question 4 marked wrong?",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketOpen, ticket.Status)
	assert.Equal(t, "stu-1", ticket.UserID)
	assert.Nil(t, ticket.Response)
}

func TestTicketServiceCreateUnknownSubject(t *testing.T) {
	svc := newTestTicketService(newMockTicketRepo(), &mockTicketSubjectRepo{})

	_, err := svc.Create(context.Background(), "stu-1", models.CreateTicketRequest{
		SubjectID: "missing",
		Question:  "anyone there?",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTicketServiceListScopesStudents(t *testing.T) {
	repo := newMockTicketRepo()
	svc := newTestTicketService(repo, &mockTicketSubjectRepo{})

	_, err := svc.List(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", repo.listByUserCalled)
	assert.False(t, repo.listAllCalled)

	_, err = svc.List(context.Background(), &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, repo.listAllCalled)
}

func TestTicketServiceGetForbiddenForOtherStudent(t *testing.T) {
	repo := newMockTicketRepo()
	repo.tickets["tkt-1"] = &models.Ticket{ID: "tkt-1", UserID: "stu-2"}
	svc := newTestTicketService(repo, &mockTicketSubjectRepo{})

	_, err := svc.Get(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}, "tkt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTicketServiceRespondStampsResponder(t *testing.T) {
	repo := newMockTicketRepo()
	repo.tickets["tkt-1"] = &models.Ticket{ID: "tkt-1", UserID: "stu-1", Status: models.TicketOpen}
	svc := newTestTicketService(repo, &mockTicketSubjectRepo{})

	ticket, err := svc.Respond(context.Background(), "tch-1", "tkt-1", models.RespondTicketRequest{
		Response: "Rechecked; marks updated.",
		Status:   models.TicketResolved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketResolved, ticket.Status)
	require.NotNil(t, ticket.ResponderID)
	assert.Equal(t, "tch-1", *ticket.ResponderID)
	require.NotNil(t, ticket.Response)
	assert.Equal(t, "Rechecked; marks updated.", *ticket.Response)
}

func TestTicketServiceRespondRejectsBadStatus(t *testing.T) {
	repo := newMockTicketRepo()
	repo.tickets["tkt-1"] = &models.Ticket{ID: "tkt-1", Status: models.TicketOpen}
	svc := newTestTicketService(repo, &mockTicketSubjectRepo{})

	_, err := svc.Respond(context.Background(), "tch-1", "tkt-1", models.RespondTicketRequest{
		Response: "closing",
		Status:   models.TicketStatus("closed"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

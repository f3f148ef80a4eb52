package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// System is the ticketing capability the pipeline and API depend on.
type System interface {
	Handler() *Handler
	Create(ctx context.Context, cmd CreateCommand) (*Ticket, error)
	Find(ctx context.Context, id uuid.UUID) (*Ticket, error)
	List(ctx context.Context, status Status) ([]Ticket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Ticket, error)
}

type store struct {
	mu      sync.RWMutex
	tickets map[uuid.UUID]*Ticket
	logger  *slog.Logger
}

// New creates an in-process ticket store implementing the System interface.
func New(logger *slog.Logger) System {
	return &store{
		tickets: make(map[uuid.UUID]*Ticket),
		logger:  logger.With("system", "tickets"),
	}
}

func (s *store) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *store) Create(ctx context.Context, cmd CreateCommand) (*Ticket, error) {
	if cmd.DocumentID == "" || cmd.ProcessingID == "" {
		return nil, fmt.Errorf("%w: document_id and processing_id are required", ErrInvalidTicket)
	}

	now := time.Now()
	t := &Ticket{
		ID:               uuid.New(),
		DocumentID:       cmd.DocumentID,
		ProcessingID:     cmd.ProcessingID,
		Status:           StatusOpen,
		ViolationSummary: cmd.ViolationSummary,
		Severity:         cmd.Severity,
		Department:       cmd.Department,
		Assignee:         cmd.Assignee,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.mu.Lock()
	s.tickets[t.ID] = t
	s.mu.Unlock()

	s.logger.InfoContext(
		ctx, "ticket created",
		"ticket_id", t.ID,
		"processing_id", t.ProcessingID,
		"severity", t.Severity,
	)

	copied := *t
	return &copied, nil
}

func (s *store) Find(_ context.Context, id uuid.UUID) (*Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	copied := *t
	return &copied, nil
}

func (s *store) List(_ context.Context, status Status) ([]Ticket, error) {
	if status != "" && !validStatuses[status] {
		return nil, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if status != "" && t.Status != status {
			continue
		}
		results = append(results, *t)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})

	return results, nil
}

func (s *store) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Ticket, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	t.Status = status
	t.UpdatedAt = time.Now()

	s.logger.InfoContext(
		ctx, "ticket updated",
		"ticket_id", id,
		"status", status,
	)

	copied := *t
	return &copied, nil
}

package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/compliance-sentinel/sentinel/pipeline"
	"github.com/compliance-sentinel/sentinel/pkg/repository"
)

// Store is the Postgres-backed session store. Checkpoints land in a JSONB
// column so the full stage-by-stage context survives process restarts.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a Postgres session store.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("system", "sessions"),
	}
}

func (s *Store) Create(ctx context.Context, documentID string) (string, error) {
	id := uuid.New()

	q := `
		INSERT INTO sessions(id, document_id)
		VALUES ($1, $2)`

	if err := repository.ExecExpectOne(ctx, s.db, q, id, documentID); err != nil {
		return "", fmt.Errorf("insert session: %w", repository.MapError(err, ErrNotFound, ErrDuplicate))
	}

	return id.String(), nil
}

func (s *Store) SaveState(ctx context.Context, sessionID string, dc *pipeline.Context) error {
	data, err := json.Marshal(dc)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	q := `
		UPDATE sessions
		SET state = $2, updated_at = now()
		WHERE id = $1`

	if err := repository.ExecExpectOne(ctx, s.db, q, sessionID, data); err != nil {
		return fmt.Errorf("update session %s: %w", sessionID, repository.MapError(err, ErrNotFound, ErrDuplicate))
	}

	return nil
}

func (s *Store) GetState(ctx context.Context, sessionID string) (*pipeline.Context, bool, error) {
	q := `
		SELECT state
		FROM sessions
		WHERE id = $1`

	data, err := repository.QueryOne(ctx, s.db, q, []any{sessionID}, func(sc repository.Scanner) ([]byte, error) {
		var state []byte
		if err := sc.Scan(&state); err != nil {
			return nil, err
		}
		return state, nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query session %s: %w", sessionID, err)
	}

	if data == nil {
		return nil, false, nil
	}

	var dc pipeline.Context
	if err := json.Unmarshal(data, &dc); err != nil {
		return nil, false, fmt.Errorf("unmarshal state: %w", err)
	}

	return &dc, true, nil
}

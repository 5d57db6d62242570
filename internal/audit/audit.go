package audit

import (
	"context"
	"fmt"

	"mdtoml/internal/agent"
	"mdtoml/internal/db"
)

// Store persists one row per dispatch. Only metadata is kept: tool name,
// outcome kind, error message and result size. Argument values and results
// are whole documents and never reach the database.
type Store struct {
	q *db.Queries
}

func NewStore(database *db.DB) *Store {
	return &Store{q: db.New(database.Conn())}
}

var _ agent.Recorder = (*Store)(nil)

func (s *Store) Record(ctx context.Context, r agent.Result) error {
	_, err := s.q.InsertToolExecution(ctx, db.InsertToolExecutionParams{
		SessionID:    r.SessionID,
		ToolName:     r.ToolName,
		Kind:         string(r.Kind),
		Success:      r.Success,
		ErrorMessage: r.ErrorMessage,
		ResultBytes:  resultBytes(r),
	})
	if err != nil {
		return fmt.Errorf("recording %s: %w", r.ToolName, err)
	}
	return nil
}

func (s *Store) Session(ctx context.Context, sessionID string) ([]db.ToolExecution, error) {
	return s.q.GetToolExecutionsBySession(ctx, sessionID)
}

func (s *Store) Recent(ctx context.Context, limit int) ([]db.ToolExecution, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.q.GetRecentToolExecutions(ctx, limit)
}

func resultBytes(r agent.Result) int64 {
	if !r.Success {
		return 0
	}
	return int64(len(r.Text()))
}

package db

import (
	"context"
	"database/sql"
)

// Queries holds the statements over the tool_executions table.
type Queries struct {
	db *sql.DB
}

func New(conn *sql.DB) *Queries {
	return &Queries{db: conn}
}

type ToolExecution struct {
	ID           int64  `json:"id" yaml:"id"`
	SessionID    string `json:"session_id" yaml:"session_id"`
	ToolName     string `json:"tool_name" yaml:"tool_name"`
	Kind         string `json:"kind" yaml:"kind"`
	Success      bool   `json:"success" yaml:"success"`
	ErrorMessage string `json:"error_message" yaml:"error_message"`
	ResultBytes  int64  `json:"result_bytes" yaml:"result_bytes"`
	CreatedAt    string `json:"created_at" yaml:"created_at"`
}

type InsertToolExecutionParams struct {
	SessionID    string
	ToolName     string
	Kind         string
	Success      bool
	ErrorMessage string
	ResultBytes  int64
}

const insertToolExecution = `
INSERT INTO tool_executions (session_id, tool_name, kind, success, error_message, result_bytes)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertToolExecution(ctx context.Context, arg InsertToolExecutionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertToolExecution,
		arg.SessionID,
		arg.ToolName,
		arg.Kind,
		arg.Success,
		arg.ErrorMessage,
		arg.ResultBytes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const selectColumns = `SELECT id, session_id, tool_name, kind, success, error_message, result_bytes, created_at FROM tool_executions`

const getToolExecutionsBySession = selectColumns + ` WHERE session_id = ? ORDER BY id`

func (q *Queries) GetToolExecutionsBySession(ctx context.Context, sessionID string) ([]ToolExecution, error) {
	return q.list(ctx, getToolExecutionsBySession, sessionID)
}

const getRecentToolExecutions = selectColumns + ` ORDER BY id DESC LIMIT ?`

func (q *Queries) GetRecentToolExecutions(ctx context.Context, limit int) ([]ToolExecution, error) {
	return q.list(ctx, getRecentToolExecutions, limit)
}

func (q *Queries) list(ctx context.Context, query string, args ...any) ([]ToolExecution, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ToolExecution
	for rows.Next() {
		var i ToolExecution
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.ToolName,
			&i.Kind,
			&i.Success,
			&i.ErrorMessage,
			&i.ResultBytes,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

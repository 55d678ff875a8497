package store

import (
	"context"
	"fmt"
	"time"
)

// Operation is one journaled state transition of a coordinated mutation.
// Every transition of one mutation shares its OpID.
type Operation struct {
	ID        int64     `json:"id"`
	OpID      string    `json:"op_id"`
	Op        string    `json:"op"`
	Entity    string    `json:"entity"`
	Key       string    `json:"key"`
	State     string    `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const operationColumns = `id, op_id, op, entity, entity_key, state, detail, created_at`

// AppendOperation journals one transition.
func (s *Store) AppendOperation(ctx context.Context, op Operation) (Operation, error) {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = s.now()
	}
	id, err := s.insert(ctx, s.db, `
		INSERT INTO operations (op_id, op, entity, entity_key, state, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.OpID, op.Op, op.Entity, op.Key, op.State, op.Detail, op.CreatedAt)
	if err != nil {
		return Operation{}, fmt.Errorf("append operation %s: %w", op.OpID, err)
	}
	op.ID = id
	return op, nil
}

// OperationHistory returns the transitions of one mutation in the order
// they were journaled.
func (s *Store) OperationHistory(ctx context.Context, opID string) ([]Operation, error) {
	return s.queryOperations(ctx, `SELECT `+operationColumns+` FROM operations WHERE op_id = ? ORDER BY id ASC`, opID)
}

// RecentOperations returns the last limit transitions, newest first.
func (s *Store) RecentOperations(ctx context.Context, limit int) ([]Operation, error) {
	return s.queryOperations(ctx, `SELECT `+operationColumns+` FROM operations ORDER BY id DESC LIMIT ?`, limit)
}

func (s *Store) queryOperations(ctx context.Context, query string, args ...any) ([]Operation, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	out := []Operation{}
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.OpID, &op.Op, &op.Entity, &op.Key, &op.State, &op.Detail, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return out, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DecisionForPost loads the strategy decision recorded when a post was
// scheduled.
func (s *Store) DecisionForPost(ctx context.Context, postID int64) (*StrategyDecision, error) {
	row := s.queryRowWithRetry(ctx, `
		SELECT id, post_id, inputs_json, platform, chosen_slot, rationale, created_at
		FROM strategy_decisions WHERE post_id = ?`, postID)
	decision, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("store", "get decision", fmt.Sprintf("post %d", postID))
	}
	return decision, err
}

// ListDecisions returns the most recent decisions, newest first. A zero or
// negative limit returns all of them.
func (s *Store) ListDecisions(ctx context.Context, limit int) ([]*StrategyDecision, error) {
	query := `SELECT id, post_id, inputs_json, platform, chosen_slot, rationale, created_at
		FROM strategy_decisions ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*StrategyDecision
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}

func scanDecision(row rowScanner) (*StrategyDecision, error) {
	var (
		decision StrategyDecision
		created  string
	)
	err := row.Scan(&decision.ID, &decision.PostID, &decision.InputsJSON,
		&decision.Platform, &decision.ChosenSlot, &decision.Rationale, &created)
	if err != nil {
		return nil, err
	}
	if decision.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &decision, nil
}

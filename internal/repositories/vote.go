package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/musicrank/internal/shared"
)

// VoteRepository is the vote ledger: one row per (proposal, user) pair.
//
// Adds and removals are single statements against the primary key, so concurrent votes
// on the same proposal never lose updates.
type VoteRepository struct {
	db *shared.DB
}

// NewVoteRepository creates a new [VoteRepository] with the given database connection
func NewVoteRepository(db *shared.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Add records a vote. A second vote by the same user yields [shared.ErrConflict].
func (r *VoteRepository) Add(ctx context.Context, proposalID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO votes (proposal_id, user_id, created_at) VALUES (?, ?, ?)`,
		proposalID, userID, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s already voted on proposal %s", shared.ErrConflict, userID, proposalID)
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// Remove retracts a vote, failing with [shared.ErrNotFound] when none exists.
func (r *VoteRepository) Remove(ctx context.Context, proposalID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM votes WHERE proposal_id = ? AND user_id = ?`, proposalID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	return rowsAffected(result, fmt.Sprintf("vote by %s on proposal %s", userID, proposalID))
}

// Count returns the number of votes on a proposal.
func (r *VoteRepository) Count(ctx context.Context, proposalID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE proposal_id = ?`, proposalID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

// Voters returns the users who voted on a proposal in voting order.
func (r *VoteRepository) Voters(ctx context.Context, proposalID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM votes WHERE proposal_id = ? ORDER BY created_at ASC, user_id ASC`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		users = append(users, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
)

// ProposalRepository persists [models.Proposal] records.
//
// Status changes are conditional updates and votes are rows in their own table,
// so concurrent writers never overwrite each other's changes.
type ProposalRepository struct {
	db    *shared.DB
	votes *VoteRepository
}

// NewProposalRepository creates a new [ProposalRepository] with the given database connection
func NewProposalRepository(db *shared.DB) *ProposalRepository {
	return &ProposalRepository{db: db, votes: NewVoteRepository(db)}
}

const proposalColumns = `p.id, p.sequence, p.community_id, p.track_id, p.proposed_by, p.status, p.created_at, p.updated_at`

// Create inserts a new pending proposal with generated ID and sequence.
//
// Returns [shared.ErrConflict] when a non-denied proposal for the same track already exists in the community.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	if err := proposal.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(ctx, r.db, "proposals")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO proposals (id, sequence, community_id, track_id, proposed_by, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query, id, sequence, proposal.CommunityID(), proposal.TrackID(), proposal.ProposedBy(),
		string(proposal.Status()), proposal.CreatedAt(), proposal.UpdatedAt())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: track %s already proposed in community %s", shared.ErrConflict, proposal.TrackID(), proposal.CommunityID())
		}
		return fmt.Errorf("failed to insert proposal: %w", err)
	}

	proposal.SetID(id)
	proposal.SetSequence(sequence)
	return nil
}

// Get retrieves a proposal and its voters by ID
func (r *ProposalRepository) Get(ctx context.Context, id string) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals p WHERE p.id = ?`

	proposal, err := scanProposal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: proposal %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query proposal: %w", err)
	}

	voters, err := r.votes.Voters(ctx, id)
	if err != nil {
		return nil, err
	}
	proposal.SetVoters(voters)

	return proposal, nil
}

// FindByTrack returns the proposal for trackID in a community.
//
// A non-denied proposal is preferred; otherwise the most recent denied one is returned.
func (r *ProposalRepository) FindByTrack(ctx context.Context, communityID, trackID string) (*models.Proposal, error) {
	query := `
		SELECT p.id FROM proposals p
		WHERE p.community_id = ? AND p.track_id = ?
		ORDER BY CASE WHEN p.status = 'denied' THEN 1 ELSE 0 END ASC, p.sequence DESC
		LIMIT 1
	`

	var id string
	err := r.db.QueryRowContext(ctx, query, communityID, trackID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track %s in community %s", shared.ErrNotFound, trackID, communityID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query proposal: %w", err)
	}

	return r.Get(ctx, id)
}

// Transition moves a proposal to status `to` unless it is already there.
//
// The update is conditional on the current status, so two concurrent transitions to the same
// status cannot both succeed. Returns [shared.ErrConflict] when the proposal already has the
// target status or the change would create a second active proposal for the same track.
func (r *ProposalRepository) Transition(ctx context.Context, id string, to models.ProposalStatus) (*models.Proposal, error) {
	query := `
		UPDATE proposals
		SET status = ?, updated_at = ?
		WHERE id = ? AND status <> ?
	`

	result, err := r.db.ExecContext(ctx, query, string(to), time.Now(), id, string(to))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: another active proposal exists for this track", shared.ErrConflict)
		}
		return nil, fmt.Errorf("failed to update proposal status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	proposal, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if rows == 0 {
		return nil, fmt.Errorf("%w: proposal %s is already %s", shared.ErrConflict, id, to)
	}

	return proposal, nil
}

// List retrieves proposals matching the given criteria ordered by creation.
//
// Supported criteria: "community_id" (string) and "status" ([models.ProposalStatus]).
func (r *ProposalRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals p WHERE 1 = 1`
	args := []any{}

	if communityID, ok := criteria["community_id"].(string); ok && communityID != "" {
		query += " AND p.community_id = ?"
		args = append(args, communityID)
	}

	if status, ok := criteria["status"].(models.ProposalStatus); ok && status != "" {
		query += " AND p.status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY p.sequence ASC"

	return r.query(ctx, query, args...)
}

// ListRanked returns a community's proposals with the given status ordered by descending
// vote count, ties broken by creation order.
func (r *ProposalRepository) ListRanked(ctx context.Context, communityID string, status models.ProposalStatus) ([]*models.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals p
		LEFT JOIN votes v ON v.proposal_id = p.id
		WHERE p.community_id = ? AND p.status = ?
		GROUP BY p.id, p.sequence, p.community_id, p.track_id, p.proposed_by, p.status, p.created_at, p.updated_at
		ORDER BY COUNT(v.user_id) DESC, p.sequence ASC
	`

	return r.query(ctx, query, communityID, string(status))
}

// AcceptedTrackIDs returns the track ids of a community's accepted proposals in creation order.
func (r *ProposalRepository) AcceptedTrackIDs(ctx context.Context, communityID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT track_id FROM proposals WHERE community_id = ? AND status = ? ORDER BY sequence ASC`,
		communityID, string(models.StatusAccepted))
	if err != nil {
		return nil, fmt.Errorf("failed to query accepted tracks: %w", err)
	}
	defer rows.Close()

	trackIDs := []string{}
	for rows.Next() {
		var trackID string
		if err := rows.Scan(&trackID); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		trackIDs = append(trackIDs, trackID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return trackIDs, nil
}

func (r *ProposalRepository) query(ctx context.Context, query string, args ...any) ([]*models.Proposal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}

	var proposals []*models.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, proposal)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, proposal := range proposals {
		voters, err := r.votes.Voters(ctx, proposal.ID())
		if err != nil {
			return nil, err
		}
		proposal.SetVoters(voters)
	}

	return proposals, nil
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var (
		id          string
		sequence    int
		communityID string
		trackID     string
		proposedBy  string
		status      string
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(&id, &sequence, &communityID, &trackID, &proposedBy, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := models.ParseProposalStatus(status)
	if err != nil {
		return nil, err
	}

	proposal := models.NewProposal(sequence, communityID, trackID, proposedBy)
	proposal.SetID(id)
	proposal.SetStatus(parsed)
	proposal.SetCreatedAt(createdAt)
	proposal.SetUpdatedAt(updatedAt)

	return proposal, nil
}

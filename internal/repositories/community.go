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

var _ models.Repository[*models.Community] = (*CommunityRepository)(nil)

// CommunityRepository implements [models.Repository] for [models.Community] persistence.
//
// Participants live in their own table so membership changes are single-row inserts and deletes.
type CommunityRepository struct {
	db *shared.DB
}

// NewCommunityRepository creates a new [CommunityRepository] with the given database connection
func NewCommunityRepository(db *shared.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

const communityColumns = `id, sequence, name, admin_id, playlist_id, threshold, last_synced_at, sync_error, created_at, updated_at`

// Create inserts a new community and its participants with a generated ID and sequence
func (r *CommunityRepository) Create(ctx context.Context, community *models.Community) error {
	if err := community.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(ctx, r.db, "communities")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO communities (id, sequence, name, admin_id, playlist_id, threshold, sync_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)
	`

	_, err = tx.ExecContext(ctx, query, id, sequence, community.Name(), community.AdminID(), community.PlaylistID(),
		community.Threshold(), community.CreatedAt(), community.UpdatedAt())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: playlist %s already belongs to a community", shared.ErrConflict, community.PlaylistID())
		}
		return fmt.Errorf("failed to insert community: %w", err)
	}

	for _, userID := range community.Participants() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO community_participants (community_id, user_id, joined_at) VALUES (?, ?, ?)`,
			id, userID, community.CreatedAt())
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit community: %w", err)
	}

	community.SetID(id)
	community.SetSequence(sequence)
	return nil
}

// Get retrieves a community by ID
func (r *CommunityRepository) Get(ctx context.Context, id string) (*models.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByPlaylistID retrieves the community that owns the given external playlist
func (r *CommunityRepository) GetByPlaylistID(ctx context.Context, playlistID string) (*models.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities WHERE playlist_id = ?`
	return r.getOne(ctx, query, playlistID)
}

func (r *CommunityRepository) getOne(ctx context.Context, query, key string) (*models.Community, error) {
	community, err := scanCommunity(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: community %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query community: %w", err)
	}

	participants, err := r.Participants(ctx, community.ID())
	if err != nil {
		return nil, err
	}
	community.SetParticipants(participants)

	return community, nil
}

// Update modifies the mutable fields (name, threshold) of an existing community.
// The playlist id and admin are never rewritten.
func (r *CommunityRepository) Update(ctx context.Context, community *models.Community) error {
	if err := community.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()

	query := `
		UPDATE communities
		SET name = ?, threshold = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, community.Name(), community.Threshold(), now, community.ID())
	if err != nil {
		return fmt.Errorf("failed to update community: %w", err)
	}
	if err := rowsAffected(result, "community "+community.ID()); err != nil {
		return err
	}

	community.SetUpdatedAt(now)
	return nil
}

// Delete removes a community; proposals, votes and participants cascade.
func (r *CommunityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM communities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete community: %w", err)
	}
	return rowsAffected(result, "community "+id)
}

// List retrieves communities matching the given criteria ordered by creation.
//
// Supported criteria: "participant" (user id) and "admin" (user id).
func (r *CommunityRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["participant"].(string); ok && userID != "" {
		query += " AND id IN (SELECT community_id FROM community_participants WHERE user_id = ?)"
		args = append(args, userID)
	}

	if adminID, ok := criteria["admin"].(string); ok && adminID != "" {
		query += " AND admin_id = ?"
		args = append(args, adminID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query communities: %w", err)
	}

	var communities []*models.Community
	for rows.Next() {
		community, err := scanCommunity(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan community: %w", err)
		}
		communities = append(communities, community)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, community := range communities {
		participants, err := r.Participants(ctx, community.ID())
		if err != nil {
			return nil, err
		}
		community.SetParticipants(participants)
	}

	return communities, nil
}

// Participants returns the user ids of a community's members in join order.
func (r *CommunityRepository) Participants(ctx context.Context, communityID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM community_participants WHERE community_id = ? ORDER BY joined_at ASC, user_id ASC`,
		communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		users = append(users, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// AddParticipant adds userID to the community, failing with [shared.ErrConflict] on a repeat join.
func (r *CommunityRepository) AddParticipant(ctx context.Context, communityID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO community_participants (community_id, user_id, joined_at) VALUES (?, ?, ?)`,
		communityID, userID, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s already participates in community %s", shared.ErrConflict, userID, communityID)
		}
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

// RemoveParticipant removes userID from the community.
func (r *CommunityRepository) RemoveParticipant(ctx context.Context, communityID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM community_participants WHERE community_id = ? AND user_id = ?`, communityID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return rowsAffected(result, fmt.Sprintf("participant %s in community %s", userID, communityID))
}

// MarkSynced records a successful playlist push and clears any previous sync error.
func (r *CommunityRepository) MarkSynced(ctx context.Context, communityID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE communities SET last_synced_at = ?, sync_error = '' WHERE id = ?`, at, communityID)
	if err != nil {
		return fmt.Errorf("failed to record sync: %w", err)
	}
	return rowsAffected(result, "community "+communityID)
}

// MarkSyncFailed records the error of the latest failed playlist push.
func (r *CommunityRepository) MarkSyncFailed(ctx context.Context, communityID, message string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE communities SET sync_error = ? WHERE id = ?`, message, communityID)
	if err != nil {
		return fmt.Errorf("failed to record sync error: %w", err)
	}
	return rowsAffected(result, "community "+communityID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommunity(row rowScanner) (*models.Community, error) {
	var (
		id           string
		sequence     int
		name         string
		adminID      string
		playlistID   string
		threshold    int
		lastSyncedAt sql.NullTime
		syncError    string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&id, &sequence, &name, &adminID, &playlistID, &threshold, &lastSyncedAt, &syncError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	community := models.NewCommunity(sequence, name, adminID, playlistID, threshold)
	community.SetID(id)
	community.SetSyncError(syncError)
	community.SetCreatedAt(createdAt)
	community.SetUpdatedAt(updatedAt)
	if lastSyncedAt.Valid {
		community.SetLastSyncedAt(&lastSyncedAt.Time)
	}

	return community, nil
}

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

// CredentialRepository persists one [models.Credential] per external account.
type CredentialRepository struct {
	db *shared.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *shared.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `account_id, access_token, refresh_token, expires_in, last_refreshed_at, playlist_account, created_at, updated_at`

// Save inserts or replaces the credential for its account.
//
// Returns [shared.ErrConflict] when marking a second account as the playlist account.
func (r *CredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	if err := credential.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_in = excluded.expires_in,
			last_refreshed_at = excluded.last_refreshed_at,
			playlist_account = excluded.playlist_account,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		credential.AccountID(), credential.AccessToken(), credential.RefreshToken(), credential.ExpiresIn(),
		credential.LastRefreshedAt(), credential.PlaylistAccount(), credential.CreatedAt(), credential.UpdatedAt())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: a playlist account is already registered", shared.ErrConflict)
		}
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Find retrieves the credential for an external account.
func (r *CredentialRepository) Find(ctx context.Context, accountID string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE account_id = ?`

	credential, err := scanCredential(r.db.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: credential for account %s", shared.ErrNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	return credential, nil
}

// FindPlaylistAccount retrieves the credential of the account that owns every community playlist.
func (r *CredentialRepository) FindPlaylistAccount(ctx context.Context) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE playlist_account = ?`

	credential, err := scanCredential(r.db.QueryRowContext(ctx, query, true))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no playlist account registered", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist account: %w", err)
	}

	return credential, nil
}

// SetPlaylistAccount makes accountID the playlist account, demoting any previous one.
func (r *CredentialRepository) SetPlaylistAccount(ctx context.Context, accountID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	if _, err := tx.ExecContext(ctx,
		`UPDATE credentials SET playlist_account = ?, updated_at = ? WHERE playlist_account = ? AND account_id <> ?`,
		false, now, true, accountID); err != nil {
		return fmt.Errorf("failed to clear playlist account: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE credentials SET playlist_account = ?, updated_at = ? WHERE account_id = ?`, true, now, accountID)
	if err != nil {
		return fmt.Errorf("failed to set playlist account: %w", err)
	}
	if err := rowsAffected(result, "credential for account "+accountID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist account: %w", err)
	}

	return nil
}

// Delete removes the credential for an external account.
func (r *CredentialRepository) Delete(ctx context.Context, accountID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return rowsAffected(result, "credential for account "+accountID)
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var (
		accountID       string
		accessToken     string
		refreshToken    string
		expiresIn       int
		lastRefreshedAt time.Time
		playlistAccount bool
		createdAt       time.Time
		updatedAt       time.Time
	)

	err := row.Scan(&accountID, &accessToken, &refreshToken, &expiresIn, &lastRefreshedAt, &playlistAccount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	credential := models.NewCredential(accountID, accessToken, refreshToken, expiresIn)
	credential.SetLastRefreshedAt(lastRefreshedAt)
	credential.SetPlaylistAccount(playlistAccount)
	credential.SetCreatedAt(createdAt)
	credential.SetUpdatedAt(updatedAt)

	return credential, nil
}

package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
)

// SongCacheRepository stores track metadata in the song_cache table.
//
// Entries are write-once: a second save for the same track id is ignored and the
// first stored entry is returned, so concurrent cache fills collapse onto one row.
type SongCacheRepository struct {
	db *shared.DB
}

// NewSongCacheRepository creates a new [SongCacheRepository] with the given database connection
func NewSongCacheRepository(db *shared.DB) *SongCacheRepository {
	return &SongCacheRepository{db: db}
}

// Find returns the cached entry for trackID or [shared.ErrNotFound].
func (r *SongCacheRepository) Find(ctx context.Context, trackID string) (*models.CachedSong, error) {
	var (
		data      string
		updatedAt time.Time
	)

	err := r.db.QueryRowContext(ctx, `SELECT json, updated_at FROM song_cache WHERE track_id = ?`, trackID).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cached song %s", shared.ErrNotFound, trackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query song cache: %w", err)
	}

	return decodeSong(trackID, data, updatedAt)
}

// Save stores the entry unless one already exists, then returns whichever entry is stored.
func (r *SongCacheRepository) Save(ctx context.Context, song *models.CachedSong) (*models.CachedSong, error) {
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	data, err := json.Marshal(song.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to encode song: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO song_cache (track_id, json, updated_at) VALUES (?, ?, ?) ON CONFLICT (track_id) DO NOTHING`,
		song.TrackID(), string(data), song.UpdatedAt())
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to cache song: %w", err)
	}

	return r.Find(ctx, song.TrackID())
}

func decodeSong(trackID, data string, updatedAt time.Time) (*models.CachedSong, error) {
	var metadata models.TrackMetadata
	if err := json.Unmarshal([]byte(data), &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode cached song %s: %w", trackID, err)
	}
	if metadata.ID == "" {
		metadata.ID = trackID
	}

	song := models.NewCachedSong(metadata)
	song.SetUpdatedAt(updatedAt)
	return song, nil
}

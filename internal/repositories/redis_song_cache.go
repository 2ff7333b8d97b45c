package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
)

const songKeyPrefix = "musicrank:song:"

// RedisSongStore keeps cached track metadata in Redis for deployments that share
// one cache between several processes. Keys never expire.
type RedisSongStore struct {
	client *redis.Client
}

type redisSong struct {
	Metadata  models.TrackMetadata `json:"metadata"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewRedisSongStore connects to the Redis server at url (redis://host:port/db) and pings it.
func NewRedisSongStore(ctx context.Context, url string) (*RedisSongStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSongStore{client: client}, nil
}

// NewRedisSongStoreWithClient wraps an existing client.
func NewRedisSongStoreWithClient(client *redis.Client) *RedisSongStore {
	return &RedisSongStore{client: client}
}

// Find returns the cached entry for trackID or [shared.ErrNotFound].
func (s *RedisSongStore) Find(ctx context.Context, trackID string) (*models.CachedSong, error) {
	data, err := s.client.Get(ctx, songKeyPrefix+trackID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: cached song %s", shared.ErrNotFound, trackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read song cache: %w", err)
	}

	var entry redisSong
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached song %s: %w", trackID, err)
	}

	song := models.NewCachedSong(entry.Metadata)
	song.SetUpdatedAt(entry.UpdatedAt)
	return song, nil
}

// Save stores the entry with SETNX so the first writer wins, then returns the stored entry.
func (s *RedisSongStore) Save(ctx context.Context, song *models.CachedSong) (*models.CachedSong, error) {
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	data, err := json.Marshal(redisSong{Metadata: song.Metadata(), UpdatedAt: song.UpdatedAt()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode song: %w", err)
	}

	if err := s.client.SetNX(ctx, songKeyPrefix+song.TrackID(), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to cache song: %w", err)
	}

	return s.Find(ctx, song.TrackID())
}

// Close releases the underlying connection pool.
func (s *RedisSongStore) Close() error {
	return s.client.Close()
}

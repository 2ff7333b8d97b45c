package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/services"
	"github.com/desertthunder/musicrank/internal/shared"
	"golang.org/x/sync/singleflight"
)

// SongCache is a cache-aside lookup of track metadata.
//
// Entries are write-once: a hit never calls the platform. Each caller resolves its own credential,
// then concurrent misses for one track id share a single fetch, and the store collapses any
// duplicate insert that still slips through.
type SongCache struct {
	store       SongStore
	credentials CredentialStore
	tokens      *TokenCoordinator
	client      services.PlaylistClient
	group       singleflight.Group
	timeout     time.Duration
	logger      *log.Logger
}

// NewSongCache creates a song cache. A zero timeout defaults to 10 seconds.
func NewSongCache(store SongStore, credentials CredentialStore, tokens *TokenCoordinator, client services.PlaylistClient, timeout time.Duration, logger *log.Logger) *SongCache {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SongCache{
		store:       store,
		credentials: credentials,
		tokens:      tokens,
		client:      client,
		timeout:     timeout,
		logger:      logger,
	}
}

// GetSong returns metadata for trackID, fetching it as actingUser on a miss.
func (s *SongCache) GetSong(ctx context.Context, trackID, actingUser string) (*models.TrackMetadata, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	cached, err := s.store.Find(ctx, trackID)
	if err == nil {
		metadata := cached.Metadata()
		return &metadata, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	credential, err := s.credentials.Find(ctx, actingUser)
	if err != nil {
		return nil, err
	}

	credential, err = s.tokens.EnsureFresh(ctx, credential, false)
	if err != nil {
		return nil, err
	}

	var ran bool
	ch := s.group.DoChan(trackID, func() (any, error) {
		ran = true
		return s.fetch(ctx, trackID, credential.AccessToken())
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: get track %s: %w", shared.ErrUpstream, trackID, ctx.Err())
	}

	// A joined flight that was rejected for another account's token is retried with ours.
	if res.Err != nil && !ran && errors.Is(res.Err, shared.ErrAuthExpired) {
		s.logger.Debug("retrying track fetch as acting user", "track", trackID, "account", actingUser)
		res.Val, res.Err = s.fetch(ctx, trackID, credential.AccessToken())
	}
	if res.Err != nil {
		return nil, res.Err
	}

	metadata := res.Val.(*models.CachedSong).Metadata()
	return &metadata, nil
}

func (s *SongCache) fetch(ctx context.Context, trackID, accessToken string) (*models.CachedSong, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if cached, err := s.store.Find(ctx, trackID); err == nil {
		return cached, nil
	}

	metadata, err := s.client.GetTrack(ctx, accessToken, trackID)
	if err != nil {
		s.logger.Warn("track fetch failed", "track", trackID, "error", err)
		if errors.Is(err, shared.ErrAuthExpired) || errors.Is(err, shared.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get track %s: %w", shared.ErrUpstream, trackID, err)
	}
	if metadata.ID == "" {
		metadata.ID = trackID
	}

	stored, err := s.store.Save(ctx, models.NewCachedSong(*metadata))
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cached song", "track", trackID, "name", metadata.Name)
	return stored, nil
}

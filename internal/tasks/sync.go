package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/services"
	"github.com/desertthunder/musicrank/internal/shared"
)

// Synchronizer makes a community's external playlist hold exactly its accepted tracks.
//
// Pushes for one community run one at a time and read the accepted set inside the lock,
// so a push can never overwrite the result of a later local change.
type Synchronizer struct {
	communities CommunityStore
	proposals   ProposalStore
	credentials CredentialStore
	tokens      *TokenCoordinator
	client      services.PlaylistClient
	timeout     time.Duration
	logger      *log.Logger
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// SynchronizerOpts contains the collaborators of a [Synchronizer].
type SynchronizerOpts struct {
	Communities CommunityStore
	Proposals   ProposalStore
	Credentials CredentialStore
	Tokens      *TokenCoordinator
	Client      services.PlaylistClient
	Timeout     time.Duration
	Logger      *log.Logger
}

// NewSynchronizer creates a synchronizer. A zero timeout defaults to 10 seconds.
func NewSynchronizer(opts SynchronizerOpts) *Synchronizer {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Synchronizer{
		communities: opts.Communities,
		proposals:   opts.Proposals,
		credentials: opts.Credentials,
		tokens:      opts.Tokens,
		client:      opts.Client,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Synchronizer) lock(communityID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[communityID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[communityID] = l
	}
	return l
}

// Forget drops the push lock of a deleted community once any push in flight has finished.
func (s *Synchronizer) Forget(communityID string) {
	l := s.lock(communityID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	delete(s.locks, communityID)
	s.mu.Unlock()
}

// Sync pushes the accepted track set of community to its playlist.
//
// Tracks are ordered by proposal creation. An empty set clears the playlist.
// Any failure is recorded on the community and returned wrapped in [shared.ErrSyncFailed].
func (s *Synchronizer) Sync(ctx context.Context, community *models.Community) error {
	l := s.lock(community.ID())
	l.Lock()
	defer l.Unlock()

	logger := shared.WithLogger(s.logger, "community", community.ID(), "playlist", community.PlaylistID())

	trackIDs, err := s.push(ctx, community)
	if err != nil {
		logger.Error("playlist sync failed", "error", err)
		if markErr := s.communities.MarkSyncFailed(context.WithoutCancel(ctx), community.ID(), err.Error()); markErr != nil {
			logger.Warn("failed to record sync error", "error", markErr)
		}
		return fmt.Errorf("%w: community %s: %w", shared.ErrSyncFailed, community.ID(), err)
	}

	if err := s.communities.MarkSynced(ctx, community.ID(), s.now()); err != nil {
		logger.Warn("failed to record sync", "error", err)
	}

	logger.Info("playlist synced", "tracks", len(trackIDs))
	return nil
}

func (s *Synchronizer) push(ctx context.Context, community *models.Community) ([]string, error) {
	trackIDs, err := s.proposals.AcceptedTrackIDs(ctx, community.ID())
	if err != nil {
		return nil, err
	}

	credential, err := s.credentials.FindPlaylistAccount(ctx)
	if err != nil {
		return nil, err
	}

	credential, err = s.tokens.EnsureFresh(ctx, credential, false)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.ReplaceTracks(callCtx, credential.AccessToken(), community.PlaylistID(), trackIDs); err != nil {
		return nil, err
	}
	return trackIDs, nil
}

// CreatePlaylist creates the external playlist for a community under the playlist account,
// then removes it from that account's library. The playlist stays reachable by id.
func (s *Synchronizer) CreatePlaylist(ctx context.Context, communityName string, opts services.PlaylistOptions, prefix string) (*models.ExternalPlaylist, error) {
	credential, err := s.credentials.FindPlaylistAccount(ctx)
	if err != nil {
		return nil, err
	}

	credential, err = s.tokens.EnsureFresh(ctx, credential, false)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := shared.PlaylistName(prefix, communityName)
	playlist, err := s.client.CreatePlaylist(callCtx, credential.AccessToken(), credential.AccountID(), name, opts)
	if err != nil {
		return nil, err
	}

	if err := s.client.UnfollowPlaylist(callCtx, credential.AccessToken(), playlist.ID); err != nil {
		s.logger.Warn("failed to unfollow playlist", "playlist", playlist.ID, "error", err)
		return nil, err
	}

	s.logger.Info("created playlist", "playlist", playlist.ID, "name", name)
	return playlist, nil
}

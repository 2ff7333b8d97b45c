package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/services"
	"github.com/desertthunder/musicrank/internal/shared"
)

// EngineOpts contains curation policies and limits for external calls.
type EngineOpts struct {
	AutoAccept           bool          // Promote a pending proposal once its votes reach the community threshold
	AllowReproposeDenied bool          // Let a denied track be proposed again
	PlaylistPrefix       string        // Prepended to community names for playlist names
	PlaylistDescription  string        // Description of created playlists
	RequestTimeout       time.Duration // Per external call (default: 10s)
}

// EngineDeps contains the stores and the platform client the engine is built from.
type EngineDeps struct {
	Communities CommunityStore
	Proposals   ProposalStore
	Votes       VoteStore
	Credentials CredentialStore
	Songs       SongStore
	Client      services.PlaylistClient
	Logger      *log.Logger
}

// Engine implements the curation operations: communities, proposals, votes and credentials.
type Engine struct {
	communities CommunityStore
	proposals   ProposalStore
	votes       VoteStore
	credentials CredentialStore
	tokens      *TokenCoordinator
	songs       *SongCache
	sync        *Synchronizer
	opts        EngineOpts
	logger      *log.Logger
}

// NewEngine wires the token coordinator, song cache and synchronizer over deps.
func NewEngine(deps EngineDeps, opts EngineOpts) *Engine {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	tokens := NewTokenCoordinator(deps.Credentials, deps.Client, opts.RequestTimeout, shared.WithLogger(logger, "component", "tokens"))

	return &Engine{
		communities: deps.Communities,
		proposals:   deps.Proposals,
		votes:       deps.Votes,
		credentials: deps.Credentials,
		tokens:      tokens,
		songs: NewSongCache(deps.Songs, deps.Credentials, tokens, deps.Client, opts.RequestTimeout,
			shared.WithLogger(logger, "component", "songs")),
		sync: NewSynchronizer(SynchronizerOpts{
			Communities: deps.Communities,
			Proposals:   deps.Proposals,
			Credentials: deps.Credentials,
			Tokens:      tokens,
			Client:      deps.Client,
			Timeout:     opts.RequestTimeout,
			Logger:      shared.WithLogger(logger, "component", "sync"),
		}),
		opts:   opts,
		logger: logger,
	}
}

func (e *Engine) Tokens() *TokenCoordinator    { return e.tokens }
func (e *Engine) Songs() *SongCache           { return e.songs }
func (e *Engine) Synchronizer() *Synchronizer { return e.sync }

// RegisterCredential stores the tokens produced by an OAuth handshake for accountID.
//
// An existing credential keeps its playlist account flag; playlistAccount promotes the
// account to the playlist account and demotes any previous one.
func (e *Engine) RegisterCredential(ctx context.Context, accountID, accessToken, refreshToken string, expiresIn int, playlistAccount bool) (*models.Credential, error) {
	accountID = strings.TrimSpace(accountID)
	credential := models.NewCredential(accountID, accessToken, refreshToken, expiresIn)
	if err := credential.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	existing, err := e.credentials.Find(ctx, accountID)
	switch {
	case err == nil:
		credential.SetPlaylistAccount(existing.PlaylistAccount())
		credential.SetCreatedAt(existing.CreatedAt())
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	if err := e.credentials.Save(ctx, credential); err != nil {
		return nil, err
	}

	if playlistAccount && !credential.PlaylistAccount() {
		if err := e.credentials.SetPlaylistAccount(ctx, accountID); err != nil {
			return nil, err
		}
		credential.SetPlaylistAccount(true)
	}

	e.logger.Info("registered credential", "account", accountID, "playlist_account", credential.PlaylistAccount())
	return credential, nil
}

// RefreshCredential returns the stored credential for accountID with a valid access token.
// force exchanges the refresh token even when the access token has not expired.
func (e *Engine) RefreshCredential(ctx context.Context, accountID string, force bool) (*models.Credential, error) {
	credential, err := e.credentials.Find(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return e.tokens.EnsureFresh(ctx, credential, force)
}

// PlaylistAccount returns the credential of the account that owns every community playlist.
func (e *Engine) PlaylistAccount(ctx context.Context) (*models.Credential, error) {
	return e.credentials.FindPlaylistAccount(ctx)
}

// GetSong returns cached metadata for trackID, fetching it as actingUser on a miss.
func (e *Engine) GetSong(ctx context.Context, trackID, actingUser string) (*models.TrackMetadata, error) {
	trackID, err := services.ParseTrackID(trackID)
	if err != nil {
		return nil, err
	}
	return e.songs.GetSong(ctx, trackID, actingUser)
}

// SyncCommunity pushes a community's accepted tracks to its playlist.
// It retries a push that failed after an earlier action.
func (e *Engine) SyncCommunity(ctx context.Context, communityID string) error {
	community, err := e.communities.Get(ctx, communityID)
	if err != nil {
		return err
	}
	return e.sync.Sync(ctx, community)
}

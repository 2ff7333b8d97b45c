// package services defines interface PlaylistClient for interacting with the streaming platform's HTTP API
//
// Spotify
package services

import (
	"context"

	"github.com/desertthunder/musicrank/internal/models"
)

// PlaylistClient is the closed set of streaming platform operations the curation engine performs.
//
// Every call takes the access token of the account it acts as and returns an explicit error.
// Implementations never retry; retries belong to the synchronizer and token coordinator.
type PlaylistClient interface {
	// GetTrack fetches metadata for a single track.
	GetTrack(ctx context.Context, accessToken, trackID string) (*models.TrackMetadata, error)

	// CreatePlaylist creates a playlist owned by ownerAccountID.
	CreatePlaylist(ctx context.Context, accessToken, ownerAccountID, name string, opts PlaylistOptions) (*models.ExternalPlaylist, error)

	// UnfollowPlaylist removes a playlist from the acting account's library.
	// The playlist stays reachable by id.
	UnfollowPlaylist(ctx context.Context, accessToken, playlistID string) error

	// ReplaceTracks sets the playlist's tracks to exactly trackIDs, in order.
	// An empty slice clears the playlist.
	ReplaceTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error

	// RefreshAccessToken exchanges a refresh token for a new access token.
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// PlaylistOptions configures a newly created playlist.
type PlaylistOptions struct {
	Description   string
	Public        bool
	Collaborative bool
}

// TokenGrant is the result of a refresh token exchange.
//
// RefreshToken is empty when the provider did not rotate it.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

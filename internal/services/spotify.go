// Spotify Web API implementation of [PlaylistClient]
//
// API reference: https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1/"
	// ReplacePlaylistTracks and AddTracksToPlaylist accept at most this many ids per call.
	maxTracksPerRequest = 100
)

// SpotifyClientOpts configures a [SpotifyClient].
type SpotifyClientOpts struct {
	Config     shared.SpotifyConfig
	HTTPClient *http.Client
	RateLimit  float64 // requests per second; <= 0 disables limiting
	RateBurst  int
	Logger     *log.Logger
}

// SpotifyClient implements [PlaylistClient] on top of [spotify.Client].
//
// A bearer client is built per call from the caller's access token, so one SpotifyClient
// serves every account. All calls share one rate limiter.
type SpotifyClient struct {
	baseURL    string
	oauth      *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyClient creates a client for the Spotify Web API.
func NewSpotifyClient(opts SpotifyClientOpts) (*SpotifyClient, error) {
	if opts.Config.ClientID == "" || opts.Config.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	baseURL := opts.Config.APIBaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	tokenURL := opts.Config.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &SpotifyClient{
		baseURL: baseURL,
		oauth: &oauth2.Config{
			ClientID:     opts.Config.ClientID,
			ClientSecret: opts.Config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyauth.AuthURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}, nil
}

// api returns a Spotify API client authorized with accessToken.
func (c *SpotifyClient) api(accessToken string) *spotify.Client {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return spotify.New(oauth2.NewClient(ctx, src), spotify.WithBaseURL(c.baseURL))
}

func (c *SpotifyClient) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: rate limiter: %w", shared.ErrUpstream, op, err)
	}
	return nil
}

// GetTrack fetches metadata for a single track.
func (c *SpotifyClient) GetTrack(ctx context.Context, accessToken, trackID string) (*models.TrackMetadata, error) {
	if err := c.wait(ctx, "get track"); err != nil {
		return nil, err
	}

	track, err := c.api(accessToken).GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return nil, classifyError("get track "+trackID, err)
	}

	c.logger.Debug("fetched track", "track", trackID, "name", track.Name)
	return trackMetadata(track), nil
}

// CreatePlaylist creates a playlist owned by ownerAccountID.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, accessToken, ownerAccountID, name string, opts PlaylistOptions) (*models.ExternalPlaylist, error) {
	if err := c.wait(ctx, "create playlist"); err != nil {
		return nil, err
	}

	playlist, err := c.api(accessToken).CreatePlaylistForUser(ctx, ownerAccountID, name, opts.Description, opts.Public, opts.Collaborative)
	if err != nil {
		return nil, classifyError("create playlist", err)
	}

	c.logger.Debug("created playlist", "playlist", playlist.ID, "name", playlist.Name)

	return &models.ExternalPlaylist{
		ID:          string(playlist.ID),
		Name:        playlist.Name,
		Description: playlist.Description,
		OwnerID:     playlist.Owner.ID,
		Public:      playlist.IsPublic,
		URI:         string(playlist.URI),
		ExternalURL: playlist.ExternalURLs["spotify"],
	}, nil
}

// UnfollowPlaylist removes a playlist from the acting account's library.
func (c *SpotifyClient) UnfollowPlaylist(ctx context.Context, accessToken, playlistID string) error {
	if err := c.wait(ctx, "unfollow playlist"); err != nil {
		return err
	}

	if err := c.api(accessToken).UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return classifyError("unfollow playlist "+playlistID, err)
	}
	return nil
}

// ReplaceTracks sets the playlist's tracks to exactly trackIDs.
//
// The first chunk replaces the playlist contents and the rest are appended in order.
// An empty slice issues a single replace call that clears the playlist.
func (c *SpotifyClient) ReplaceTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error {
	client := c.api(accessToken)
	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	first := ids[:min(len(ids), maxTracksPerRequest)]
	if err := c.wait(ctx, "replace tracks"); err != nil {
		return err
	}
	if err := client.ReplacePlaylistTracks(ctx, spotify.ID(playlistID), first...); err != nil {
		return classifyError("replace tracks on "+playlistID, err)
	}

	for start := maxTracksPerRequest; start < len(ids); start += maxTracksPerRequest {
		end := min(start+maxTracksPerRequest, len(ids))

		if err := c.wait(ctx, "add tracks"); err != nil {
			return err
		}
		if _, err := client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids[start:end]...); err != nil {
			return classifyError("add tracks to "+playlistID, err)
		}
	}

	c.logger.Debug("replaced playlist tracks", "playlist", playlistID, "count", len(ids))
	return nil
}

// RefreshAccessToken exchanges a refresh token at the configured token endpoint.
//
// A rejection by the token endpoint wraps [shared.ErrAuthExpired] and the account must
// re-authenticate. Transport failures, deadlines and server errors wrap [shared.ErrUpstream].
func (c *SpotifyClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	if err := c.wait(ctx, "refresh token"); err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}

	expiresIn := int(token.ExpiresIn)
	if expiresIn <= 0 && !token.Expiry.IsZero() {
		expiresIn = int(time.Until(token.Expiry).Seconds())
	}

	grant := &TokenGrant{AccessToken: token.AccessToken, ExpiresIn: expiresIn}
	if token.RefreshToken != refreshToken {
		grant.RefreshToken = token.RefreshToken
	}

	return grant, nil
}

// ParseTrackID extracts a track id from a bare id, a spotify:track: URI, or an open.spotify.com URL.
func ParseTrackID(input string) (string, error) {
	input = strings.TrimSpace(input)

	switch {
	case input == "":
		return "", fmt.Errorf("%w: empty track id", shared.ErrInvalidArgument)
	case strings.HasPrefix(input, "spotify:track:"):
		input = strings.TrimPrefix(input, "spotify:track:")
	case strings.Contains(input, "/track/"):
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		input = parts[len(parts)-1]
	}

	for _, r := range input {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", fmt.Errorf("%w: track id %q", shared.ErrInvalidArgument, input)
		}
	}

	return input, nil
}

// classifyError maps a Spotify API failure onto the shared error kinds.
func classifyError(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s: %s", shared.ErrAuthExpired, op, apiErr.Message)
		}
		return fmt.Errorf("%w: %s: status %d: %s", shared.ErrUpstream, op, apiErr.Status, apiErr.Message)
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrUpstream, op, err)
}

// classifyTokenError maps a refresh-token exchange failure onto the shared error kinds.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return fmt.Errorf("%w: refresh token: %w", shared.ErrAuthExpired, err)
		}
	}
	return fmt.Errorf("%w: refresh token: %w", shared.ErrUpstream, err)
}

func trackMetadata(track *spotify.FullTrack) *models.TrackMetadata {
	artists := make([]string, len(track.Artists))
	for i, a := range track.Artists {
		artists[i] = a.Name
	}

	metadata := &models.TrackMetadata{
		ID:          string(track.ID),
		Name:        track.Name,
		Artists:     artists,
		Album:       track.Album.Name,
		DurationMs:  int(track.Duration),
		URI:         string(track.URI),
		ExternalURL: track.ExternalURLs["spotify"],
		PreviewURL:  track.PreviewURL,
		Popularity:  int(track.Popularity),
	}
	if len(track.Album.Images) > 0 {
		metadata.ImageURL = track.Album.Images[0].URL
	}

	return metadata
}

// Package services defines the [PlaylistClient] interface for the streaming platform and implements it for Spotify.
//
// # PlaylistClient Interface
//
// The curation engine talks to the platform only through this closed set of typed operations:
// fetch a track, create a playlist, unfollow it, replace its tracks, and exchange a refresh token.
// There is no dynamic dispatch by operation name.
//
// # Spotify Implementation
//
// [SpotifyClient] wraps [github.com/zmb3/spotify/v2]. Each call builds a bearer client from the
// access token it is given, so a single SpotifyClient serves every account. Token refresh goes
// through [golang.org/x/oauth2] against the configured token endpoint.
//
// Calls pass through a shared [rate.Limiter] and are never retried here. Retrying is the job of
// the synchronizer (the next triggering action or an explicit sync) and the token coordinator.
//
// # Error Handling
//
// Failures are mapped onto the shared sentinel errors:
//   - [shared.ErrAuthExpired] : HTTP 401 from the API, or a 4xx rejection of the refresh token
//   - [shared.ErrUpstream] : any other API failure, including timeouts
//   - [shared.ErrMissingCredentials] : client id or secret not configured
//
// Playlist track replacement sends the first 100 ids in one replace call and appends the rest
// in chunks of 100, preserving order. An empty set is a single clearing replace call.
package services

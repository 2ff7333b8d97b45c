// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/services"
	"github.com/desertthunder/musicrank/internal/shared"
)

var _ services.PlaylistClient = (*FakePlaylistClient)(nil)

// FakePlaylistClient is a call-counting test double for [services.PlaylistClient].
//
// Errors and the delay are read under the same lock as the counters, so tests may change
// them between calls with the setters.
type FakePlaylistClient struct {
	mu sync.Mutex

	tracks      map[string]models.TrackMetadata
	delay       time.Duration
	getTrackErr error
	createErr   error
	unfollowErr error
	replaceErr  error
	refreshErr  error
	rejected    map[string]bool

	getTrackCalls int
	refreshCalls  int
	created       []string
	unfollowed    []string
	replaced      map[string][][]string
	nextPlaylist  int
	nextToken     int
}

// NewFakePlaylistClient creates a fake that serves the given tracks.
// Unknown track ids are answered with generated metadata.
func NewFakePlaylistClient(tracks ...models.TrackMetadata) *FakePlaylistClient {
	f := &FakePlaylistClient{
		tracks:   make(map[string]models.TrackMetadata),
		replaced: make(map[string][][]string),
		rejected: make(map[string]bool),
	}
	for _, track := range tracks {
		f.tracks[track.ID] = track
	}
	return f
}

// SetDelay makes GetTrack and RefreshAccessToken block for d before answering.
func (f *FakePlaylistClient) SetDelay(d time.Duration) { f.with(func() { f.delay = d }) }

func (f *FakePlaylistClient) SetGetTrackErr(err error) { f.with(func() { f.getTrackErr = err }) }
func (f *FakePlaylistClient) SetCreateErr(err error)   { f.with(func() { f.createErr = err }) }
func (f *FakePlaylistClient) SetUnfollowErr(err error) { f.with(func() { f.unfollowErr = err }) }
func (f *FakePlaylistClient) SetReplaceErr(err error)  { f.with(func() { f.replaceErr = err }) }
func (f *FakePlaylistClient) SetRefreshErr(err error)  { f.with(func() { f.refreshErr = err }) }

// RejectToken makes GetTrack answer accessToken with an authorization failure.
func (f *FakePlaylistClient) RejectToken(accessToken string) {
	f.with(func() { f.rejected[accessToken] = true })
}

func (f *FakePlaylistClient) with(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *FakePlaylistClient) sleep(ctx context.Context) error {
	f.mu.Lock()
	d := f.delay
	f.mu.Unlock()

	if d <= 0 {
		return nil
	}

	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetTrack returns the configured metadata for trackID.
func (f *FakePlaylistClient) GetTrack(ctx context.Context, accessToken, trackID string) (*models.TrackMetadata, error) {
	f.with(func() { f.getTrackCalls++ })

	if err := f.sleep(ctx); err != nil {
		return nil, fmt.Errorf("%w: get track: %w", shared.ErrUpstream, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rejected[accessToken] {
		return nil, fmt.Errorf("%w: get track %s: invalid access token", shared.ErrAuthExpired, trackID)
	}
	if f.getTrackErr != nil {
		return nil, f.getTrackErr
	}
	if track, ok := f.tracks[trackID]; ok {
		return &track, nil
	}
	return &models.TrackMetadata{
		ID:         trackID,
		Name:       "Track " + trackID,
		Artists:    []string{"Artist " + trackID},
		Album:      "Album " + trackID,
		DurationMs: 180000,
		URI:        "spotify:track:" + trackID,
	}, nil
}

// CreatePlaylist records the call and returns a playlist with a generated id.
func (f *FakePlaylistClient) CreatePlaylist(ctx context.Context, accessToken, ownerAccountID, name string, opts services.PlaylistOptions) (*models.ExternalPlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	f.nextPlaylist++
	id := fmt.Sprintf("playlist%d", f.nextPlaylist)
	f.created = append(f.created, id)

	return &models.ExternalPlaylist{
		ID:          id,
		Name:        name,
		Description: opts.Description,
		OwnerID:     ownerAccountID,
		Public:      opts.Public,
		URI:         "spotify:playlist:" + id,
	}, nil
}

// UnfollowPlaylist records the unfollowed playlist.
func (f *FakePlaylistClient) UnfollowPlaylist(ctx context.Context, accessToken, playlistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unfollowErr != nil {
		return f.unfollowErr
	}
	f.unfollowed = append(f.unfollowed, playlistID)
	return nil
}

// ReplaceTracks records the pushed track list.
func (f *FakePlaylistClient) ReplaceTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced[playlistID] = append(f.replaced[playlistID], slices.Clone(trackIDs))
	return nil
}

// RefreshAccessToken issues a new numbered access token.
func (f *FakePlaylistClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*services.TokenGrant, error) {
	f.with(func() { f.refreshCalls++ })

	if err := f.sleep(ctx); err != nil {
		return nil, fmt.Errorf("%w: refresh token: %w", shared.ErrUpstream, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.nextToken++
	return &services.TokenGrant{AccessToken: fmt.Sprintf("access-%d", f.nextToken), ExpiresIn: 3600}, nil
}

// GetTrackCalls returns the number of GetTrack calls.
func (f *FakePlaylistClient) GetTrackCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getTrackCalls
}

// RefreshCalls returns the number of RefreshAccessToken calls.
func (f *FakePlaylistClient) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// Created returns the ids of created playlists in creation order.
func (f *FakePlaylistClient) Created() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.created)
}

// Unfollowed returns the ids of unfollowed playlists.
func (f *FakePlaylistClient) Unfollowed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.unfollowed)
}

// Pushes returns every successful ReplaceTracks call for playlistID.
func (f *FakePlaylistClient) Pushes(playlistID string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.replaced[playlistID])
}

// LastPush returns the most recent track list pushed to playlistID and whether any push happened.
func (f *FakePlaylistClient) LastPush(playlistID string) ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pushes := f.replaced[playlistID]
	if len(pushes) == 0 {
		return nil, false
	}
	return slices.Clone(pushes[len(pushes)-1]), true
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MustSetupDB opens an in-memory database with all migrations applied and closes it on cleanup.
func MustSetupDB(t *testing.T) *shared.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

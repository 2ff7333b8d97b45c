package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/musicrank/internal/shared"
)

// fakeSpotify is an httptest stand-in for the Web API and token endpoint.
type fakeSpotify struct {
	mu            sync.Mutex
	replaceCalls  [][]string
	addCalls      [][]string
	unfollowed    []string
	created       []string
	authHeaders   []string
	refreshTokens []string
	tokenStatus   int
}

func (f *fakeSpotify) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/tracks/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		id := r.PathValue("id")
		switch id {
		case "missing":
			writeAPIError(w, http.StatusNotFound, "non existing id")
			return
		case "revoked":
			writeAPIError(w, http.StatusUnauthorized, "The access token expired")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":            id,
			"name":          "So What",
			"duration_ms":   562000,
			"uri":           "spotify:track:" + id,
			"popularity":    70,
			"external_urls": map[string]string{"spotify": "https://open.spotify.com/track/" + id},
			"artists":       []map[string]any{{"id": "a1", "name": "Miles Davis"}},
			"album": map[string]any{
				"id":     "al1",
				"name":   "Kind of Blue",
				"images": []map[string]any{{"url": "https://i.scdn.co/image/kob", "height": 640, "width": 640}},
			},
		})
	})

	mux.HandleFunc("POST /v1/users/{user}/playlists", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Public      bool   `json:"public"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.created = append(f.created, body.Name)
		f.mu.Unlock()

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":            "pl123",
			"name":          body.Name,
			"description":   body.Description,
			"public":        body.Public,
			"uri":           "spotify:playlist:pl123",
			"owner":         map[string]any{"id": r.PathValue("user")},
			"external_urls": map[string]string{"spotify": "https://open.spotify.com/playlist/pl123"},
		})
	})

	mux.HandleFunc("DELETE /v1/playlists/{id}/followers", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		f.mu.Lock()
		f.unfollowed = append(f.unfollowed, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("PUT /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		f.mu.Lock()
		f.replaceCalls = append(f.replaceCalls, trackIDsFromURIs(r.URL.Query().Get("uris")))
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"snapshot_id": "snap"})
	})

	mux.HandleFunc("POST /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		var body struct {
			URIs []string `json:"uris"`
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)

		uris := strings.Join(body.URIs, ",")
		if uris == "" {
			uris = r.URL.Query().Get("uris")
		}

		f.mu.Lock()
		f.addCalls = append(f.addCalls, trackIDsFromURIs(uris))
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"snapshot_id": "snap"})
	})

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.mu.Lock()
		f.refreshTokens = append(f.refreshTokens, r.Form.Get("refresh_token"))
		status := f.tokenStatus
		f.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			writeJSON(w, status, map[string]any{"error": "invalid_grant", "error_description": "Refresh token revoked"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "fresh-access",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "rotated-refresh",
		})
	})

	return mux
}

func (f *fakeSpotify) recordAuth(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": message}})
}

func trackIDsFromURIs(uris string) []string {
	ids := []string{}
	for _, uri := range strings.Split(uris, ",") {
		if uri == "" {
			continue
		}
		ids = append(ids, strings.TrimPrefix(uri, "spotify:track:"))
	}
	return ids
}

func newTestSpotifyClient(t *testing.T) (*SpotifyClient, *fakeSpotify) {
	t.Helper()

	fake := &fakeSpotify{}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client, err := NewSpotifyClient(SpotifyClientOpts{
		Config: shared.SpotifyConfig{
			ClientID:     "test_client_id",
			ClientSecret: "test_client_secret",
			TokenURL:     server.URL + "/token",
			APIBaseURL:   server.URL + "/v1/",
		},
		HTTPClient: server.Client(),
		Logger:     log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client, fake
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyClient", func(t *testing.T) {
		t.Run("Missing Credentials", func(t *testing.T) {
			_, err := NewSpotifyClient(SpotifyClientOpts{Config: shared.SpotifyConfig{ClientID: "id"}})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected missing credentials error, got %v", err)
			}
		})

		t.Run("Defaults", func(t *testing.T) {
			client, err := NewSpotifyClient(SpotifyClientOpts{
				Config: shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"},
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if client.baseURL != spotifyBaseURL {
				t.Errorf("expected base URL %s, got %s", spotifyBaseURL, client.baseURL)
			}
			if client.oauth.Endpoint.TokenURL != "https://accounts.spotify.com/api/token" {
				t.Errorf("unexpected token URL %s", client.oauth.Endpoint.TokenURL)
			}
		})
	})

	t.Run("GetTrack", func(t *testing.T) {
		client, fake := newTestSpotifyClient(t)

		track, err := client.GetTrack(ctx, "user-token", "abc123")
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}

		fake.mu.Lock()
		defer fake.mu.Unlock()

		if track.ID != "abc123" || track.Name != "So What" {
			t.Errorf("unexpected track %+v", track)
		}
		if track.Album != "Kind of Blue" || track.ArtistNames() != "Miles Davis" {
			t.Errorf("unexpected album/artists %s %s", track.Album, track.ArtistNames())
		}
		if track.DurationMs != 562000 {
			t.Errorf("expected duration 562000, got %d", track.DurationMs)
		}
		if track.ImageURL == "" {
			t.Error("expected album image URL")
		}
		if len(fake.authHeaders) != 1 || fake.authHeaders[0] != "Bearer user-token" {
			t.Errorf("expected bearer user-token, got %v", fake.authHeaders)
		}
	})

	t.Run("GetTrack Errors", func(t *testing.T) {
		client, _ := newTestSpotifyClient(t)

		if _, err := client.GetTrack(ctx, "token", "missing"); !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected upstream error, got %v", err)
		}
		if _, err := client.GetTrack(ctx, "token", "revoked"); !errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected auth expired error, got %v", err)
		}
	})

	t.Run("CreatePlaylist And Unfollow", func(t *testing.T) {
		client, fake := newTestSpotifyClient(t)

		playlist, err := client.CreatePlaylist(ctx, "token", "system", "MusicRank.club - Jazz Club", PlaylistOptions{
			Description: "curated",
			Public:      true,
		})
		if err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if err := client.UnfollowPlaylist(ctx, "token", playlist.ID); err != nil {
			t.Fatalf("failed to unfollow playlist: %v", err)
		}

		fake.mu.Lock()
		defer fake.mu.Unlock()

		if playlist.ID != "pl123" || playlist.OwnerID != "system" || !playlist.Public {
			t.Errorf("unexpected playlist %+v", playlist)
		}
		if len(fake.created) != 1 || fake.created[0] != "MusicRank.club - Jazz Club" {
			t.Errorf("unexpected created playlists %v", fake.created)
		}
		if len(fake.unfollowed) != 1 || fake.unfollowed[0] != "pl123" {
			t.Errorf("unexpected unfollowed playlists %v", fake.unfollowed)
		}
	})

	t.Run("ReplaceTracks", func(t *testing.T) {
		client, fake := newTestSpotifyClient(t)

		if err := client.ReplaceTracks(ctx, "token", "pl123", []string{"abc123", "xyz789"}); err != nil {
			t.Fatalf("failed to replace tracks: %v", err)
		}

		fake.mu.Lock()
		defer fake.mu.Unlock()

		if len(fake.replaceCalls) != 1 {
			t.Fatalf("expected 1 replace call, got %d", len(fake.replaceCalls))
		}
		if got := strings.Join(fake.replaceCalls[0], ","); got != "abc123,xyz789" {
			t.Errorf("expected abc123,xyz789, got %s", got)
		}
		if len(fake.addCalls) != 0 {
			t.Errorf("expected no add calls, got %d", len(fake.addCalls))
		}
	})

	t.Run("ReplaceTracks Empty Clears", func(t *testing.T) {
		client, fake := newTestSpotifyClient(t)

		if err := client.ReplaceTracks(ctx, "token", "pl123", nil); err != nil {
			t.Fatalf("failed to clear tracks: %v", err)
		}

		fake.mu.Lock()
		defer fake.mu.Unlock()

		if len(fake.replaceCalls) != 1 || len(fake.replaceCalls[0]) != 0 {
			t.Errorf("expected a single clearing replace call, got %v", fake.replaceCalls)
		}
		if len(fake.addCalls) != 0 {
			t.Errorf("expected no add calls, got %d", len(fake.addCalls))
		}
	})

	t.Run("ReplaceTracks Chunks", func(t *testing.T) {
		client, fake := newTestSpotifyClient(t)

		ids := make([]string, 250)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%d", i)
		}

		if err := client.ReplaceTracks(ctx, "token", "pl123", ids); err != nil {
			t.Fatalf("failed to replace tracks: %v", err)
		}

		fake.mu.Lock()
		defer fake.mu.Unlock()

		if len(fake.replaceCalls) != 1 || len(fake.replaceCalls[0]) != 100 {
			t.Fatalf("expected first 100 tracks replaced, got %v calls", len(fake.replaceCalls))
		}
		if len(fake.addCalls) != 2 || len(fake.addCalls[0]) != 100 || len(fake.addCalls[1]) != 50 {
			t.Fatalf("expected add calls of 100 and 50, got %d calls", len(fake.addCalls))
		}
		if fake.addCalls[1][49] != "t249" {
			t.Errorf("expected order preserved, last track %s", fake.addCalls[1][49])
		}
	})

	t.Run("RefreshAccessToken", func(t *testing.T) {
		client, fake := newTestSpotifyClient(t)

		grant, err := client.RefreshAccessToken(ctx, "old-refresh")
		if err != nil {
			t.Fatalf("failed to refresh token: %v", err)
		}

		fake.mu.Lock()
		defer fake.mu.Unlock()

		if grant.AccessToken != "fresh-access" || grant.ExpiresIn <= 0 {
			t.Errorf("unexpected grant %+v", grant)
		}
		if grant.RefreshToken != "rotated-refresh" {
			t.Errorf("expected rotated refresh token, got %s", grant.RefreshToken)
		}
		if len(fake.refreshTokens) != 1 || fake.refreshTokens[0] != "old-refresh" {
			t.Errorf("unexpected refresh requests %v", fake.refreshTokens)
		}
	})

	t.Run("RefreshAccessToken Failure", func(t *testing.T) {
		client, fake := newTestSpotifyClient(t)
		fake.mu.Lock()
		fake.tokenStatus = http.StatusBadRequest
		fake.mu.Unlock()

		if _, err := client.RefreshAccessToken(ctx, "revoked"); !errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected auth expired error, got %v", err)
		}
	})

	t.Run("RefreshAccessToken Server Error", func(t *testing.T) {
		client, fake := newTestSpotifyClient(t)
		fake.mu.Lock()
		fake.tokenStatus = http.StatusBadGateway
		fake.mu.Unlock()

		_, err := client.RefreshAccessToken(ctx, "old-refresh")
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected upstream error, got %v", err)
		}
		if errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("server error must not require re-authentication: %v", err)
		}
	})

	t.Run("RefreshAccessToken Deadline", func(t *testing.T) {
		client, _ := newTestSpotifyClient(t)
		expired, cancel := context.WithTimeout(ctx, -time.Second)
		defer cancel()

		_, err := client.RefreshAccessToken(expired, "old-refresh")
		if !errors.Is(err, shared.ErrUpstream) || errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected upstream error only, got %v", err)
		}
	})
}

func TestParseTrackID(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "4uLU6hMCjMI75M1A2tKUQC", want: "4uLU6hMCjMI75M1A2tKUQC"},
		{input: "spotify:track:4uLU6hMCjMI75M1A2tKUQC", want: "4uLU6hMCjMI75M1A2tKUQC"},
		{input: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc", want: "4uLU6hMCjMI75M1A2tKUQC"},
		{input: "  abc123 ", want: "abc123"},
		{input: "", wantErr: true},
		{input: "abc;DROP", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTrackID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseTrackID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

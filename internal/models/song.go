package models

import (
	"fmt"
	"strings"
	"time"
)

// TrackMetadata represents a track as returned by the streaming platform.
type TrackMetadata struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album"`
	DurationMs  int      `json:"duration_ms"`
	URI         string   `json:"uri,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	Popularity  int      `json:"popularity,omitempty"`
}

// ArtistNames joins the artist list for display.
func (t TrackMetadata) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// ExternalPlaylist represents a playlist created on the streaming platform.
type ExternalPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id"`
	Public      bool   `json:"public"`
	URI         string `json:"uri,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
}

// CachedSong is a write-once cache entry of track metadata.
type CachedSong struct {
	trackID   string
	metadata  TrackMetadata
	updatedAt time.Time
}

// NewCachedSong wraps metadata for storage under its track id.
func NewCachedSong(metadata TrackMetadata) *CachedSong {
	return &CachedSong{trackID: metadata.ID, metadata: metadata, updatedAt: time.Now()}
}

func (s *CachedSong) ID() string              { return s.trackID }
func (s *CachedSong) TrackID() string         { return s.trackID }
func (s *CachedSong) Metadata() TrackMetadata { return s.metadata }
func (s *CachedSong) CreatedAt() time.Time    { return s.updatedAt }
func (s *CachedSong) UpdatedAt() time.Time    { return s.updatedAt }

func (s *CachedSong) SetUpdatedAt(t time.Time) { s.updatedAt = t }

// Validate checks that the entry is keyed by a track id.
func (s *CachedSong) Validate() error {
	if s.trackID == "" {
		return fmt.Errorf("cached song track id is required")
	}
	return nil
}

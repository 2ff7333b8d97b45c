package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Community is a group of users curating one external playlist.
//
// The admin is always a participant. The playlist id is assigned at creation and never changes.
type Community struct {
	id           string
	sequence     int
	name         string
	adminID      string
	playlistID   string
	threshold    int
	participants []string
	lastSyncedAt *time.Time
	syncError    string
	createdAt    time.Time
	updatedAt    time.Time
}

// NewCommunity creates a community with the admin as its only participant.
func NewCommunity(sequence int, name, adminID, playlistID string, threshold int) *Community {
	now := time.Now()
	return &Community{
		sequence:     sequence,
		name:         strings.TrimSpace(name),
		adminID:      adminID,
		playlistID:   playlistID,
		threshold:    threshold,
		participants: []string{adminID},
		createdAt:    now,
		updatedAt:    now,
	}
}

func (c *Community) ID() string               { return c.id }
func (c *Community) Sequence() int            { return c.sequence }
func (c *Community) Name() string             { return c.name }
func (c *Community) AdminID() string          { return c.adminID }
func (c *Community) PlaylistID() string       { return c.playlistID }
func (c *Community) Threshold() int           { return c.threshold }
func (c *Community) LastSyncedAt() *time.Time { return c.lastSyncedAt }
func (c *Community) SyncError() string        { return c.syncError }
func (c *Community) CreatedAt() time.Time     { return c.createdAt }
func (c *Community) UpdatedAt() time.Time     { return c.updatedAt }

// Participants returns a copy of the participant user ids.
func (c *Community) Participants() []string { return slices.Clone(c.participants) }

func (c *Community) SetID(id string)                { c.id = id }
func (c *Community) SetSequence(sequence int)       { c.sequence = sequence }
func (c *Community) SetName(name string)            { c.name = strings.TrimSpace(name) }
func (c *Community) SetThreshold(threshold int)     { c.threshold = threshold }
func (c *Community) SetCreatedAt(t time.Time)       { c.createdAt = t }
func (c *Community) SetUpdatedAt(t time.Time)       { c.updatedAt = t }
func (c *Community) SetLastSyncedAt(t *time.Time)   { c.lastSyncedAt = t }
func (c *Community) SetSyncError(message string)    { c.syncError = message }
func (c *Community) SetParticipants(users []string) { c.participants = slices.Clone(users) }

// IsAdmin reports whether userID administers the community.
func (c *Community) IsAdmin(userID string) bool {
	return userID != "" && c.adminID == userID
}

// HasParticipant reports whether userID belongs to the community.
func (c *Community) HasParticipant(userID string) bool {
	return slices.Contains(c.participants, userID)
}

// Validate checks required fields and the admin membership invariant.
func (c *Community) Validate() error {
	if c.name == "" {
		return fmt.Errorf("community name is required")
	}
	if c.adminID == "" {
		return fmt.Errorf("community admin is required")
	}
	if c.playlistID == "" {
		return fmt.Errorf("community playlist id is required")
	}
	if c.threshold < 0 {
		return fmt.Errorf("community threshold must be >= 0, got %d", c.threshold)
	}
	if !c.HasParticipant(c.adminID) {
		return fmt.Errorf("community admin %s must be a participant", c.adminID)
	}
	return nil
}

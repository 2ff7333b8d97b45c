package models

import (
	"fmt"
	"time"
)

// Credential holds the OAuth tokens for one external account.
//
// expiresIn is the access token lifetime in seconds counted from lastRefreshedAt.
type Credential struct {
	accountID       string
	accessToken     string
	refreshToken    string
	expiresIn       int
	lastRefreshedAt time.Time
	playlistAccount bool
	createdAt       time.Time
	updatedAt       time.Time
}

// NewCredential creates a credential refreshed at the current time.
func NewCredential(accountID, accessToken, refreshToken string, expiresIn int) *Credential {
	now := time.Now()
	return &Credential{
		accountID:       accountID,
		accessToken:     accessToken,
		refreshToken:    refreshToken,
		expiresIn:       expiresIn,
		lastRefreshedAt: now,
		createdAt:       now,
		updatedAt:       now,
	}
}

func (c *Credential) ID() string                 { return c.accountID }
func (c *Credential) AccountID() string          { return c.accountID }
func (c *Credential) AccessToken() string        { return c.accessToken }
func (c *Credential) RefreshToken() string       { return c.refreshToken }
func (c *Credential) ExpiresIn() int             { return c.expiresIn }
func (c *Credential) LastRefreshedAt() time.Time { return c.lastRefreshedAt }
func (c *Credential) PlaylistAccount() bool      { return c.playlistAccount }
func (c *Credential) CreatedAt() time.Time       { return c.createdAt }
func (c *Credential) UpdatedAt() time.Time       { return c.updatedAt }

func (c *Credential) SetPlaylistAccount(v bool)      { c.playlistAccount = v }
func (c *Credential) SetLastRefreshedAt(t time.Time) { c.lastRefreshedAt = t }
func (c *Credential) SetCreatedAt(t time.Time)       { c.createdAt = t }
func (c *Credential) SetUpdatedAt(t time.Time)       { c.updatedAt = t }

// ExpiresAt returns the instant the access token stops being valid.
func (c *Credential) ExpiresAt() time.Time {
	return c.lastRefreshedAt.Add(time.Duration(c.expiresIn) * time.Second)
}

// Expired reports whether more than expiresIn seconds have elapsed since the last refresh.
func (c *Credential) Expired(now time.Time) bool {
	return now.Sub(c.lastRefreshedAt) > time.Duration(c.expiresIn)*time.Second
}

// Refreshed returns a copy carrying a new access token issued at refreshedAt.
// An empty refreshToken keeps the current one.
func (c *Credential) Refreshed(accessToken, refreshToken string, expiresIn int, refreshedAt time.Time) *Credential {
	next := *c
	next.accessToken = accessToken
	if refreshToken != "" {
		next.refreshToken = refreshToken
	}
	next.expiresIn = expiresIn
	next.lastRefreshedAt = refreshedAt
	next.updatedAt = refreshedAt
	return &next
}

// Validate checks required fields.
func (c *Credential) Validate() error {
	if c.accountID == "" {
		return fmt.Errorf("credential account id is required")
	}
	if c.refreshToken == "" {
		return fmt.Errorf("credential refresh token is required")
	}
	if c.expiresIn < 0 {
		return fmt.Errorf("credential expires_in must be >= 0, got %d", c.expiresIn)
	}
	return nil
}

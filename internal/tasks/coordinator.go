package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/services"
	"github.com/desertthunder/musicrank/internal/shared"
	"golang.org/x/sync/singleflight"
)

// TokenCoordinator hands out credentials whose access token is valid, refreshing them when needed.
//
// Refreshes are deduplicated per account with a [singleflight.Group]: callers that observe the same
// expired credential share a single refresh-token exchange. The flight re-reads the stored credential
// before exchanging, so a caller holding a stale snapshot never spends a refresh token that another
// caller has already rotated.
type TokenCoordinator struct {
	store   CredentialStore
	client  services.PlaylistClient
	group   singleflight.Group
	timeout time.Duration
	logger  *log.Logger
	now     func() time.Time
}

// NewTokenCoordinator creates a coordinator. A zero timeout defaults to 10 seconds.
func NewTokenCoordinator(store CredentialStore, client services.PlaylistClient, timeout time.Duration, logger *log.Logger) *TokenCoordinator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TokenCoordinator{
		store:   store,
		client:  client,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// EnsureFresh returns a credential for the same account whose access token is valid.
//
// The credential is returned unchanged unless force is set or more than expiresIn seconds have
// elapsed since its last refresh. A revoked refresh token wraps [shared.ErrAuthExpired];
// timeouts and other failures of the exchange wrap [shared.ErrUpstream] and may be retried.
func (c *TokenCoordinator) EnsureFresh(ctx context.Context, credential *models.Credential, force bool) (*models.Credential, error) {
	if credential == nil {
		return nil, fmt.Errorf("%w: credential is required", shared.ErrInvalidInput)
	}

	if !force && !credential.Expired(c.now()) {
		return credential, nil
	}

	snapshot := credential.LastRefreshedAt()
	for attempt := 0; ; attempt++ {
		ch := c.group.DoChan(credential.AccountID(), func() (any, error) {
			return c.refresh(ctx, credential.AccountID(), snapshot, force)
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: refresh %s: %w", shared.ErrUpstream, credential.AccountID(), ctx.Err())
		}

		if res.Err != nil {
			return nil, res.Err
		}

		fresh := res.Val.(*models.Credential)

		// A forced caller that joined a flight which returned the token it already had runs its own.
		if force && attempt == 0 && !fresh.LastRefreshedAt().After(snapshot) {
			continue
		}
		return fresh, nil
	}
}

// Refresh loads the stored credential for accountID and forces a refresh.
func (c *TokenCoordinator) Refresh(ctx context.Context, accountID string) (*models.Credential, error) {
	credential, err := c.store.Find(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return c.EnsureFresh(ctx, credential, true)
}

func (c *TokenCoordinator) refresh(ctx context.Context, accountID string, snapshot time.Time, force bool) (*models.Credential, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	stored, err := c.store.Find(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if stored.LastRefreshedAt().After(snapshot) && !stored.Expired(now) {
		c.logger.Debug("credential already refreshed", "account", accountID)
		return stored, nil
	}
	if !force && !stored.Expired(now) {
		return stored, nil
	}

	grant, err := c.client.RefreshAccessToken(ctx, stored.RefreshToken())
	if err != nil {
		c.logger.Warn("token refresh failed", "account", accountID, "error", err)
		if errors.Is(err, shared.ErrAuthExpired) || errors.Is(err, shared.ErrUpstream) {
			return nil, fmt.Errorf("refresh %s: %w", accountID, err)
		}
		return nil, fmt.Errorf("%w: refresh %s: %w", shared.ErrUpstream, accountID, err)
	}

	fresh := stored.Refreshed(grant.AccessToken, grant.RefreshToken, grant.ExpiresIn, c.now())
	if err := c.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	c.logger.Info("refreshed access token", "account", accountID, "expires_in", grant.ExpiresIn)
	return fresh, nil
}

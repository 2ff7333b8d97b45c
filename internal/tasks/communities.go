package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/services"
	"github.com/desertthunder/musicrank/internal/shared"
)

// CommunityUpdate holds the fields of a community an admin may change. Nil fields are kept.
type CommunityUpdate struct {
	Name      *string
	Threshold *int
}

// CreateCommunity creates the community's external playlist and stores the community
// with adminID as its only participant.
func (e *Engine) CreateCommunity(ctx context.Context, name string, threshold int, adminID string) (*models.Community, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: community name is required", shared.ErrInvalidInput)
	case adminID == "":
		return nil, fmt.Errorf("%w: community admin is required", shared.ErrInvalidInput)
	case threshold < 0:
		return nil, fmt.Errorf("%w: threshold must be >= 0, got %d", shared.ErrInvalidInput, threshold)
	}

	playlist, err := e.sync.CreatePlaylist(ctx, name, services.PlaylistOptions{
		Description: e.opts.PlaylistDescription,
		Public:      true,
	}, e.opts.PlaylistPrefix)
	if err != nil {
		return nil, err
	}

	community := models.NewCommunity(0, name, adminID, playlist.ID, threshold)
	if err := e.communities.Create(ctx, community); err != nil {
		e.logger.Warn("created playlist has no community", "playlist", playlist.ID, "error", err)
		return nil, err
	}

	e.logger.Info("created community", "community", community.ID(), "name", name, "playlist", playlist.ID)
	return community, nil
}

// GetCommunity resolves a community by its id or by its external playlist id.
func (e *Engine) GetCommunity(ctx context.Context, idOrPlaylistID string) (*models.Community, error) {
	community, err := e.communities.Get(ctx, idOrPlaylistID)
	if errors.Is(err, shared.ErrNotFound) {
		return e.communities.GetByPlaylistID(ctx, idOrPlaylistID)
	}
	return community, err
}

// ListCommunities lists the communities userID participates in, or every community when userID is empty.
func (e *Engine) ListCommunities(ctx context.Context, userID string) ([]*models.Community, error) {
	criteria := map[string]any{}
	if userID != "" {
		criteria["participant"] = userID
	}
	return e.communities.List(ctx, criteria)
}

// UpdateCommunity changes a community's name or threshold. Only the admin may do so.
func (e *Engine) UpdateCommunity(ctx context.Context, communityID, actor string, update CommunityUpdate) (*models.Community, error) {
	community, err := e.adminCommunity(ctx, communityID, actor)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		community.SetName(*update.Name)
	}
	if update.Threshold != nil {
		community.SetThreshold(*update.Threshold)
	}

	if err := e.communities.Update(ctx, community); err != nil {
		return nil, err
	}

	e.logger.Info("updated community", "community", communityID, "name", community.Name(), "threshold", community.Threshold())
	return community, nil
}

// DeleteCommunity removes a community with its proposals and votes. Only the admin may do so.
// The external playlist is left in place.
func (e *Engine) DeleteCommunity(ctx context.Context, communityID, actor string) error {
	if _, err := e.adminCommunity(ctx, communityID, actor); err != nil {
		return err
	}

	if err := e.communities.Delete(ctx, communityID); err != nil {
		return err
	}
	e.sync.Forget(communityID)

	e.logger.Info("deleted community", "community", communityID)
	return nil
}

// Join adds userID to a community's participants.
func (e *Engine) Join(ctx context.Context, communityID, userID string) (*models.Community, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", shared.ErrInvalidInput)
	}
	if _, err := e.communities.Get(ctx, communityID); err != nil {
		return nil, err
	}

	if err := e.communities.AddParticipant(ctx, communityID, userID); err != nil {
		return nil, err
	}

	e.logger.Info("joined community", "community", communityID, "user", userID)
	return e.communities.Get(ctx, communityID)
}

// Leave removes userID from a community's participants. The admin cannot leave.
func (e *Engine) Leave(ctx context.Context, communityID, userID string) (*models.Community, error) {
	community, err := e.communities.Get(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if community.IsAdmin(userID) {
		return nil, fmt.Errorf("%w: the admin cannot leave community %s", shared.ErrConflict, communityID)
	}

	if err := e.communities.RemoveParticipant(ctx, communityID, userID); err != nil {
		return nil, err
	}

	e.logger.Info("left community", "community", communityID, "user", userID)
	return e.communities.Get(ctx, communityID)
}

func (e *Engine) adminCommunity(ctx context.Context, communityID, actor string) (*models.Community, error) {
	community, err := e.communities.Get(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if !community.IsAdmin(actor) {
		return nil, fmt.Errorf("%w: %s is not the admin of community %s", shared.ErrPermissionDenied, actor, communityID)
	}
	return community, nil
}

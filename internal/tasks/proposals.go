package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/services"
	"github.com/desertthunder/musicrank/internal/shared"
)

// Propose creates a pending proposal for a track in a community.
//
// track may be a bare id, a spotify:track: URI or a track URL. An existing proposal for the
// same track yields [shared.ErrConflict]; with AllowReproposeDenied a denied one does not.
func (e *Engine) Propose(ctx context.Context, communityID, track, proposer string) (*models.Proposal, error) {
	trackID, err := services.ParseTrackID(track)
	if err != nil {
		return nil, err
	}
	if proposer == "" {
		return nil, fmt.Errorf("%w: proposer is required", shared.ErrInvalidInput)
	}

	if _, err := e.communities.Get(ctx, communityID); err != nil {
		return nil, err
	}

	existing, err := e.proposals.FindByTrack(ctx, communityID, trackID)
	switch {
	case err == nil:
		if !e.opts.AllowReproposeDenied || existing.Status() != models.StatusDenied {
			return nil, fmt.Errorf("%w: track %s was already proposed in community %s (%s)",
				shared.ErrConflict, trackID, communityID, existing.Status())
		}
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	proposal := models.NewProposal(0, communityID, trackID, proposer)
	if err := e.proposals.Create(ctx, proposal); err != nil {
		return nil, err
	}

	e.logger.Info("proposed track", "community", communityID, "proposal", proposal.ID(), "track", trackID, "user", proposer)
	return proposal, nil
}

// Vote records userID's vote on a proposal.
//
// A repeated vote yields [shared.ErrConflict]. With AutoAccept, the vote that brings a pending
// proposal to the community threshold accepts it and synchronizes the playlist; a failed push is
// returned as [shared.ErrSyncFailed] together with the accepted proposal.
func (e *Engine) Vote(ctx context.Context, communityID, proposalID, userID string) (*models.Proposal, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: voter is required", shared.ErrInvalidInput)
	}

	community, err := e.communities.Get(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if _, err := e.communityProposal(ctx, community, proposalID); err != nil {
		return nil, err
	}

	if err := e.votes.Add(ctx, proposalID, userID); err != nil {
		return nil, err
	}

	proposal, err := e.proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("voted", "community", communityID, "proposal", proposalID, "user", userID, "votes", proposal.VoteCount())

	if !e.reachedThreshold(community, proposal) {
		return proposal, nil
	}

	accepted, err := e.proposals.Transition(ctx, proposalID, models.StatusAccepted)
	if errors.Is(err, shared.ErrConflict) {
		// Accepted concurrently by another vote or by the admin.
		return e.proposals.Get(ctx, proposalID)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("proposal reached threshold", "community", communityID, "proposal", proposalID, "threshold", community.Threshold())
	return accepted, e.sync.Sync(ctx, community)
}

func (e *Engine) reachedThreshold(community *models.Community, proposal *models.Proposal) bool {
	return e.opts.AutoAccept &&
		community.Threshold() > 0 &&
		proposal.Status() == models.StatusPending &&
		proposal.VoteCount() >= community.Threshold()
}

// Unvote retracts userID's vote on a proposal. A missing vote yields [shared.ErrNotFound].
func (e *Engine) Unvote(ctx context.Context, communityID, proposalID, userID string) (*models.Proposal, error) {
	community, err := e.communities.Get(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if _, err := e.communityProposal(ctx, community, proposalID); err != nil {
		return nil, err
	}

	if err := e.votes.Remove(ctx, proposalID, userID); err != nil {
		return nil, err
	}

	e.logger.Info("unvoted", "community", communityID, "proposal", proposalID, "user", userID)
	return e.proposals.Get(ctx, proposalID)
}

// CountVotes returns the size of a proposal's vote set.
func (e *Engine) CountVotes(ctx context.Context, communityID, proposalID string) (int, error) {
	community, err := e.communities.Get(ctx, communityID)
	if err != nil {
		return 0, err
	}
	if _, err := e.communityProposal(ctx, community, proposalID); err != nil {
		return 0, err
	}
	return e.votes.Count(ctx, proposalID)
}

// Accept marks a proposal accepted and synchronizes the playlist. Only the admin may accept.
//
// When only the push fails, the accepted proposal is returned with a [shared.ErrSyncFailed] error.
func (e *Engine) Accept(ctx context.Context, communityID, proposalID, actor string) (*models.Proposal, error) {
	return e.transition(ctx, communityID, proposalID, actor, models.StatusAccepted)
}

// Deny marks a proposal denied and synchronizes the playlist. Only the admin may deny.
func (e *Engine) Deny(ctx context.Context, communityID, proposalID, actor string) (*models.Proposal, error) {
	return e.transition(ctx, communityID, proposalID, actor, models.StatusDenied)
}

// Restore resets an accepted or denied proposal to pending and synchronizes the playlist.
// Only the admin may restore.
func (e *Engine) Restore(ctx context.Context, communityID, proposalID, actor string) (*models.Proposal, error) {
	return e.transition(ctx, communityID, proposalID, actor, models.StatusPending)
}

func (e *Engine) transition(ctx context.Context, communityID, proposalID, actor string, to models.ProposalStatus) (*models.Proposal, error) {
	community, err := e.adminCommunity(ctx, communityID, actor)
	if err != nil {
		return nil, err
	}
	if _, err := e.communityProposal(ctx, community, proposalID); err != nil {
		return nil, err
	}

	proposal, err := e.proposals.Transition(ctx, proposalID, to)
	if err != nil {
		return nil, err
	}

	e.logger.Info("proposal status changed", "community", communityID, "proposal", proposalID, "status", to, "actor", actor)
	return proposal, e.sync.Sync(ctx, community)
}

// GetProposal returns a proposal of a community with its track metadata.
func (e *Engine) GetProposal(ctx context.Context, communityID, proposalID, actingUser string) (*models.ProposalListing, error) {
	community, err := e.communities.Get(ctx, communityID)
	if err != nil {
		return nil, err
	}

	proposal, err := e.communityProposal(ctx, community, proposalID)
	if err != nil {
		return nil, err
	}

	song, err := e.songs.GetSong(ctx, proposal.TrackID(), actingUser)
	if err != nil {
		return nil, err
	}

	return &models.ProposalListing{Proposal: proposal, Song: song}, nil
}

// FindProposal returns the proposal for a track in a community, preferring a non-denied one.
func (e *Engine) FindProposal(ctx context.Context, communityID, track string) (*models.Proposal, error) {
	trackID, err := services.ParseTrackID(track)
	if err != nil {
		return nil, err
	}
	return e.proposals.FindByTrack(ctx, communityID, trackID)
}

// ListProposals lists a community's pending proposals, or its denied ones when deniedOnly is set,
// by descending vote count. Each entry carries track metadata fetched as actingUser on a cache miss.
func (e *Engine) ListProposals(ctx context.Context, communityID string, deniedOnly bool, actingUser string) ([]models.ProposalListing, error) {
	if _, err := e.communities.Get(ctx, communityID); err != nil {
		return nil, err
	}

	status := models.StatusPending
	if deniedOnly {
		status = models.StatusDenied
	}

	return e.listings(ctx, communityID, status, actingUser)
}

// ListAccepted lists a community's accepted proposals by descending vote count.
func (e *Engine) ListAccepted(ctx context.Context, communityID, actingUser string) ([]models.ProposalListing, error) {
	if _, err := e.communities.Get(ctx, communityID); err != nil {
		return nil, err
	}
	return e.listings(ctx, communityID, models.StatusAccepted, actingUser)
}

func (e *Engine) listings(ctx context.Context, communityID string, status models.ProposalStatus, actingUser string) ([]models.ProposalListing, error) {
	proposals, err := e.proposals.ListRanked(ctx, communityID, status)
	if err != nil {
		return nil, err
	}

	listings := make([]models.ProposalListing, 0, len(proposals))
	for _, proposal := range proposals {
		song, err := e.songs.GetSong(ctx, proposal.TrackID(), actingUser)
		if err != nil {
			return nil, err
		}
		listings = append(listings, models.ProposalListing{Proposal: proposal, Song: song})
	}

	return listings, nil
}

func (e *Engine) communityProposal(ctx context.Context, community *models.Community, proposalID string) (*models.Proposal, error) {
	proposal, err := e.proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.CommunityID() != community.ID() {
		return nil, fmt.Errorf("%w: proposal %s in community %s", shared.ErrNotFound, proposalID, community.ID())
	}
	return proposal, nil
}

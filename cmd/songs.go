package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/musicrank/internal/formatter"
	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
	"github.com/desertthunder/musicrank/internal/tasks"
	"github.com/desertthunder/musicrank/internal/ui"
	"github.com/urfave/cli/v3"
)

// SongPropose proposes a track to a community as --user.
func (r *Runner) SongPropose(ctx context.Context, cmd *cli.Command) error {
	track := cmd.StringArg("track")
	if track == "" {
		return fmt.Errorf("%w: track id, URI or link", shared.ErrMissingArgument)
	}

	engine, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}

	proposal, err := engine.Propose(ctx, community.ID(), track, cmd.String("user"))
	if err != nil {
		return err
	}

	r.logger.Debug("proposed", "community", community.ID(), "proposal", proposal.ID(), "track", proposal.TrackID())
	return r.writePlain("✓ Proposed %s to %s as %s\n", proposal.TrackID(), community.Name(), proposal.ID())
}

// SongList lists a community's pending proposals, or its accepted or denied ones.
//
// With --format or --output the listing is exported through [formatter] instead of rendered.
func (r *Runner) SongList(ctx context.Context, cmd *cli.Command) error {
	denied, accepted := cmd.Bool("denied"), cmd.Bool("accepted")
	if denied && accepted {
		return fmt.Errorf("%w: --denied and --accepted are exclusive", shared.ErrInvalidArgument)
	}

	engine, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}

	user, err := r.actingUser(ctx, engine, cmd)
	if err != nil {
		return err
	}

	status := models.StatusPending
	var listings []models.ProposalListing
	switch {
	case accepted:
		status = models.StatusAccepted
		listings, err = engine.ListAccepted(ctx, community.ID(), user)
	case denied:
		status = models.StatusDenied
		listings, err = engine.ListProposals(ctx, community.ID(), true, user)
	default:
		listings, err = engine.ListProposals(ctx, community.ID(), false, user)
	}
	if err != nil {
		return err
	}

	if !cmd.IsSet("format") && !cmd.IsSet("output") {
		heading := fmt.Sprintf("%s: %s (%d)", community.Name(), status, len(listings))
		return r.writePlain("%s", ui.RenderProposals(heading, listings))
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	report := &formatter.Report{Community: community, Status: status, Listings: listings}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteExport(report, format, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported %d proposals to %s\n", len(listings), path)
	}
	return formatter.Write(r.output, report, format)
}

// SongShow shows a proposal by id, or by track with --track.
func (r *Runner) SongShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("proposal")
	if ref == "" {
		return fmt.Errorf("%w: proposal id", shared.ErrMissingArgument)
	}

	engine, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}

	if cmd.Bool("track") {
		proposal, err := engine.FindProposal(ctx, community.ID(), ref)
		if err != nil {
			return err
		}
		ref = proposal.ID()
	}

	user, err := r.actingUser(ctx, engine, cmd)
	if err != nil {
		return err
	}

	listing, err := engine.GetProposal(ctx, community.ID(), ref, user)
	if err != nil {
		return err
	}
	return r.writePlain("%s", ui.RenderProposal(*listing))
}

// SongVote records a vote by --user.
func (r *Runner) SongVote(ctx context.Context, cmd *cli.Command) error {
	return r.proposalAction(ctx, cmd, (*tasks.Engine).Vote, "voted for")
}

// SongUnvote withdraws the vote of --user.
func (r *Runner) SongUnvote(ctx context.Context, cmd *cli.Command) error {
	return r.proposalAction(ctx, cmd, (*tasks.Engine).Unvote, "withdrew vote for")
}

// SongAccept accepts a proposal and pushes the playlist.
func (r *Runner) SongAccept(ctx context.Context, cmd *cli.Command) error {
	return r.proposalAction(ctx, cmd, (*tasks.Engine).Accept, "accepted")
}

// SongDeny denies a proposal and pushes the playlist.
func (r *Runner) SongDeny(ctx context.Context, cmd *cli.Command) error {
	return r.proposalAction(ctx, cmd, (*tasks.Engine).Deny, "denied")
}

// SongRestore returns a proposal to pending and pushes the playlist.
func (r *Runner) SongRestore(ctx context.Context, cmd *cli.Command) error {
	return r.proposalAction(ctx, cmd, (*tasks.Engine).Restore, "restored")
}

type proposalFunc func(*tasks.Engine, context.Context, string, string, string) (*models.Proposal, error)

// proposalAction runs fn as --user. A decision that committed but failed to push is reported
// before its error is returned.
func (r *Runner) proposalAction(ctx context.Context, cmd *cli.Command, fn proposalFunc, verb string) error {
	proposalID := cmd.StringArg("proposal")
	if proposalID == "" {
		return fmt.Errorf("%w: proposal id", shared.ErrMissingArgument)
	}

	engine, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}

	user := cmd.String("user")
	proposal, err := fn(engine, ctx, community.ID(), proposalID, user)
	if proposal == nil {
		return err
	}

	r.writePlain("✓ %s %s %s: %s, %d votes\n", user, verb, proposal.ID(), proposal.Status(), proposal.VoteCount())
	if errors.Is(err, shared.ErrSyncFailed) {
		r.writePlain("%s\n", ui.Warn("playlist push pending, retry with: musicrank playlist sync "+community.ID()))
	}
	return err
}

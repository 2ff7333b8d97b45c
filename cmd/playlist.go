package main

import (
	"context"

	"github.com/desertthunder/musicrank/internal/ui"
	"github.com/urfave/cli/v3"
)

// PlaylistSync pushes a community's accepted tracks to its playlist, clearing a recorded sync error.
func (r *Runner) PlaylistSync(ctx context.Context, cmd *cli.Command) error {
	engine, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}

	r.logger.Info("syncing playlist", "community", community.ID(), "playlist", community.PlaylistID())
	if err := engine.SyncCommunity(ctx, community.ID()); err != nil {
		return err
	}

	community, err = engine.GetCommunity(ctx, community.ID())
	if err != nil {
		return err
	}
	return r.writePlain("%s", ui.RenderCommunity(community))
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
	"github.com/desertthunder/musicrank/internal/tasks"
	"github.com/desertthunder/musicrank/internal/ui"
	"github.com/urfave/cli/v3"
)

type communityJSON struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"sequence"`
	Name         string     `json:"name"`
	AdminID      string     `json:"admin_id"`
	PlaylistID   string     `json:"playlist_id"`
	Threshold    int        `json:"threshold"`
	Participants []string   `json:"participants"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	SyncError    string     `json:"sync_error,omitempty"`
}

func toCommunityJSON(c *models.Community) communityJSON {
	return communityJSON{
		ID:           c.ID(),
		Sequence:     c.Sequence(),
		Name:         c.Name(),
		AdminID:      c.AdminID(),
		PlaylistID:   c.PlaylistID(),
		Threshold:    c.Threshold(),
		Participants: c.Participants(),
		LastSyncedAt: c.LastSyncedAt(),
		SyncError:    c.SyncError(),
	}
}

func (r *Runner) writeCommunity(cmd *cli.Command, community *models.Community) error {
	if cmd.Bool("json") {
		return r.writeJSON(toCommunityJSON(community), true)
	}
	return r.writePlain("%s", ui.RenderCommunity(community))
}

// CommunityCreate creates a community administered by --user.
func (r *Runner) CommunityCreate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: community name", shared.ErrMissingArgument)
	}

	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	community, err := engine.CreateCommunity(ctx, name, cmd.Int("threshold"), cmd.String("user"))
	if err != nil {
		return err
	}
	return r.writeCommunity(cmd, community)
}

// CommunityShow shows a community by id or playlist id.
func (r *Runner) CommunityShow(ctx context.Context, cmd *cli.Command) error {
	_, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}
	return r.writeCommunity(cmd, community)
}

// CommunityList lists every community, or those --user participates in.
func (r *Runner) CommunityList(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	communities, err := engine.ListCommunities(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]communityJSON, 0, len(communities))
		for _, c := range communities {
			out = append(out, toCommunityJSON(c))
		}
		return r.writeJSON(out, true)
	}
	return r.writePlain("%s", ui.RenderCommunities(communities))
}

// CommunityJoin adds --user to a community.
func (r *Runner) CommunityJoin(ctx context.Context, cmd *cli.Command) error {
	return r.membership(ctx, cmd, (*tasks.Engine).Join, "joined")
}

// CommunityLeave removes --user from a community.
func (r *Runner) CommunityLeave(ctx context.Context, cmd *cli.Command) error {
	return r.membership(ctx, cmd, (*tasks.Engine).Leave, "left")
}

type membershipFunc func(*tasks.Engine, context.Context, string, string) (*models.Community, error)

func (r *Runner) membership(ctx context.Context, cmd *cli.Command, fn membershipFunc, verb string) error {
	engine, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}

	user := cmd.String("user")
	community, err = fn(engine, ctx, community.ID(), user)
	if err != nil {
		return err
	}
	return r.writePlain("✓ %s %s %s (%d participants)\n", user, verb, community.Name(), len(community.Participants()))
}

// CommunityUpdate renames a community or changes its threshold.
func (r *Runner) CommunityUpdate(ctx context.Context, cmd *cli.Command) error {
	var update tasks.CommunityUpdate
	if cmd.IsSet("name") {
		name := cmd.String("name")
		update.Name = &name
	}
	if cmd.IsSet("threshold") {
		threshold := cmd.Int("threshold")
		update.Threshold = &threshold
	}
	if update.Name == nil && update.Threshold == nil {
		return fmt.Errorf("%w: --name or --threshold", shared.ErrMissingArgument)
	}

	engine, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}

	community, err = engine.UpdateCommunity(ctx, community.ID(), cmd.String("user"), update)
	if err != nil {
		return err
	}
	return r.writePlain("%s", ui.RenderCommunity(community))
}

// CommunityDelete deletes a community. Its external playlist is left in place.
func (r *Runner) CommunityDelete(ctx context.Context, cmd *cli.Command) error {
	engine, community, err := r.community(ctx, cmd.StringArg("community"))
	if err != nil {
		return err
	}

	if err := engine.DeleteCommunity(ctx, community.ID(), cmd.String("user")); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted %s\n", community.Name())
}

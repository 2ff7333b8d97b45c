package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/musicrank/internal/shared"
	"github.com/desertthunder/musicrank/internal/ui"
	"github.com/urfave/cli/v3"
)

// AccountAdd stores the tokens an OAuth handshake produced for an account.
func (r *Runner) AccountAdd(ctx context.Context, cmd *cli.Command) error {
	accountID := cmd.StringArg("account")
	if accountID == "" {
		return fmt.Errorf("%w: account id", shared.ErrMissingArgument)
	}

	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	credential, err := engine.RegisterCredential(ctx, accountID,
		cmd.String("access-token"), cmd.String("refresh-token"), cmd.Int("expires-in"), cmd.Bool("playlist-account"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Account registered\n\n")
	return r.writePlain("%s", ui.RenderCredential(credential))
}

// AccountRefresh exchanges an account's refresh token when its access token has expired, or always with --force.
func (r *Runner) AccountRefresh(ctx context.Context, cmd *cli.Command) error {
	accountID := cmd.StringArg("account")
	if accountID == "" {
		return fmt.Errorf("%w: account id", shared.ErrMissingArgument)
	}

	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	credential, err := engine.RefreshCredential(ctx, accountID, cmd.Bool("force"))
	if err != nil {
		return err
	}

	r.logger.Info("credential ready", "account", accountID, "expires_at", credential.ExpiresAt())
	return r.writePlain("%s", ui.RenderCredential(credential))
}

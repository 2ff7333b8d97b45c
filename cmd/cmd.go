// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// userFlag is the account the command acts as.
func userFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Account id to act as",
		Sources:  cli.EnvVars("MUSICRANK_USER"),
		Required: required,
	}
}

func jsonFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func communityArg() cli.Argument {
	return &cli.StringArg{Name: "community"}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file when missing, then initialize the database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// accountCommand handles streaming account credentials
func accountCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "account",
		Aliases: []string{"acct"},
		Usage:   "Manage streaming account credentials",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Register the tokens of an authorized account",
				Arguments: []cli.Argument{&cli.StringArg{Name: "account"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "access-token",
						Usage:    "OAuth access token",
						Sources:  cli.EnvVars("MUSICRANK_ACCESS_TOKEN"),
						Required: true,
					},
					&cli.StringFlag{
						Name:     "refresh-token",
						Usage:    "OAuth refresh token",
						Sources:  cli.EnvVars("MUSICRANK_REFRESH_TOKEN"),
						Required: true,
					},
					&cli.IntFlag{
						Name:  "expires-in",
						Usage: "Access token lifetime in seconds",
						Value: 3600,
					},
					&cli.BoolFlag{
						Name:  "playlist-account",
						Usage: "Use this account to own and push community playlists",
					},
				},
				Action: r.AccountAdd,
			},
			{
				Name:      "refresh",
				Usage:     "Refresh an account's access token when expired",
				Arguments: []cli.Argument{&cli.StringArg{Name: "account"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Refresh even if the access token has not expired",
					},
				},
				Action: r.AccountRefresh,
			},
		},
	}
}

// communityCommand handles community lifecycle and membership
func communityCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "community",
		Aliases: []string{"c"},
		Usage:   "Manage communities",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a community and its playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					userFlag(true),
					&cli.IntFlag{
						Name:  "threshold",
						Usage: "Votes a proposal needs to be considered for acceptance",
					},
					jsonFlag(),
				},
				Action: r.CommunityCreate,
			},
			{
				Name:      "show",
				Usage:     "Show a community",
				Arguments: []cli.Argument{communityArg()},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.CommunityShow,
			},
			{
				Name:  "list",
				Usage: "List communities, or only those a user participates in",
				Flags: []cli.Flag{
					userFlag(false),
					jsonFlag(),
				},
				Action: r.CommunityList,
			},
			{
				Name:      "join",
				Usage:     "Join a community",
				Arguments: []cli.Argument{communityArg()},
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.CommunityJoin,
			},
			{
				Name:      "leave",
				Usage:     "Leave a community",
				Arguments: []cli.Argument{communityArg()},
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.CommunityLeave,
			},
			{
				Name:      "update",
				Usage:     "Rename a community or change its threshold (admin only)",
				Arguments: []cli.Argument{communityArg()},
				Flags: []cli.Flag{
					userFlag(true),
					&cli.StringFlag{
						Name:  "name",
						Usage: "New community name",
					},
					&cli.IntFlag{
						Name:  "threshold",
						Usage: "New vote threshold",
					},
				},
				Action: r.CommunityUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a community with its proposals and votes (admin only)",
				Arguments: []cli.Argument{communityArg()},
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.CommunityDelete,
			},
		},
	}
}

// songCommand handles proposals, votes and admin decisions
func songCommand(r *Runner) *cli.Command {
	proposalArgs := func() []cli.Argument {
		return []cli.Argument{communityArg(), &cli.StringArg{Name: "proposal"}}
	}

	return &cli.Command{
		Name:    "song",
		Aliases: []string{"s"},
		Usage:   "Propose, vote on and curate songs",
		Commands: []*cli.Command{
			{
				Name:      "propose",
				Usage:     "Propose a track by id, URI or link",
				Arguments: []cli.Argument{communityArg(), &cli.StringArg{Name: "track"}},
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.SongPropose,
			},
			{
				Name:      "list",
				Usage:     "List pending proposals by votes",
				Arguments: []cli.Argument{communityArg()},
				Flags: []cli.Flag{
					userFlag(false),
					&cli.BoolFlag{
						Name:  "denied",
						Usage: "List denied proposals",
					},
					&cli.BoolFlag{
						Name:  "accepted",
						Usage: "List accepted proposals",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (json, csv, markdown, txt)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the export to a file",
					},
				},
				Action: r.SongList,
			},
			{
				Name:      "show",
				Usage:     "Show a proposal with its votes and track details",
				Arguments: proposalArgs(),
				Flags: []cli.Flag{
					userFlag(false),
					&cli.BoolFlag{
						Name:  "track",
						Usage: "Look the proposal up by track id, URI or link",
					},
				},
				Action: r.SongShow,
			},
			{
				Name:      "vote",
				Usage:     "Vote for a pending proposal",
				Arguments: proposalArgs(),
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.SongVote,
			},
			{
				Name:      "unvote",
				Usage:     "Withdraw a vote",
				Arguments: proposalArgs(),
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.SongUnvote,
			},
			{
				Name:      "accept",
				Usage:     "Accept a proposal into the playlist (admin only)",
				Arguments: proposalArgs(),
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.SongAccept,
			},
			{
				Name:      "deny",
				Usage:     "Deny a proposal (admin only)",
				Arguments: proposalArgs(),
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.SongDeny,
			},
			{
				Name:      "restore",
				Usage:     "Return a proposal to pending (admin only)",
				Arguments: proposalArgs(),
				Flags:     []cli.Flag{userFlag(true)},
				Action:    r.SongRestore,
			},
		},
	}
}

// playlistCommand handles the external playlists
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Community playlist operations",
		Commands: []*cli.Command{
			{
				Name:      "sync",
				Usage:     "Push a community's accepted tracks to its playlist",
				Arguments: []cli.Argument{communityArg()},
				Action:    r.PlaylistSync,
			},
		},
	}
}

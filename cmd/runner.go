package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/repositories"
	"github.com/desertthunder/musicrank/internal/services"
	"github.com/desertthunder/musicrank/internal/shared"
	"github.com/desertthunder/musicrank/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, song store and platform client are opened from the config on first use
// unless provided through [RunnerOpts].
type Runner struct {
	config  *shared.Config
	db      *shared.DB
	songs   tasks.SongStore
	client  services.PlaylistClient
	logger  *log.Logger
	output  io.Writer
	engine  *tasks.Engine
	closers []func() error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	DB     *shared.DB
	Songs  tasks.SongStore
	Client services.PlaylistClient
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		db:     opts.DB,
		songs:  opts.Songs,
		client: opts.Client,
		logger: opts.Logger,
		output: opts.Output,
	}
}

// Engine returns the curation engine, opening its storage and platform client on first call.
func (r *Runner) Engine(ctx context.Context) (*tasks.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	if r.db == nil {
		db, err := shared.OpenDatabase(ctx, r.config.Database)
		if err != nil {
			return nil, err
		}
		r.db = db
		r.closers = append(r.closers, db.Close)
	}

	if r.songs == nil {
		switch r.config.Cache.Backend {
		case "redis":
			store, err := repositories.NewRedisSongStore(ctx, r.config.Cache.RedisURL)
			if err != nil {
				return nil, err
			}
			r.songs = store
			r.closers = append(r.closers, store.Close)
		default:
			r.songs = repositories.NewSongCacheRepository(r.db)
		}
	}

	if r.client == nil {
		client, err := services.NewSpotifyClient(services.SpotifyClientOpts{
			Config:    r.config.Credentials.Spotify,
			RateLimit: r.config.Engine.RateLimit,
			RateBurst: r.config.Engine.RateBurst,
			Logger:    shared.WithLogger(r.logger, "component", "spotify"),
		})
		if err != nil {
			return nil, err
		}
		r.client = client
	}

	r.engine = tasks.NewEngine(tasks.EngineDeps{
		Communities: repositories.NewCommunityRepository(r.db),
		Proposals:   repositories.NewProposalRepository(r.db),
		Votes:       repositories.NewVoteRepository(r.db),
		Credentials: repositories.NewCredentialRepository(r.db),
		Songs:       r.songs,
		Client:      r.client,
		Logger:      r.logger,
	}, tasks.EngineOpts{
		AutoAccept:           r.config.Engine.AutoAccept,
		AllowReproposeDenied: r.config.Engine.AllowReproposeDenied,
		PlaylistPrefix:       r.config.Engine.PlaylistPrefix,
		PlaylistDescription:  r.config.Engine.PlaylistDescription,
		RequestTimeout:       r.config.Engine.RequestTimeout.Duration,
	})

	r.logger.Debug("engine ready", "driver", r.db.Driver, "cache", r.config.Cache.Backend)
	return r.engine, nil
}

// Close releases the resources opened by [Runner.Engine].
func (r *Runner) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "musicrank",
		Usage:    "Curate community playlists by proposal and vote",
		Version:  "0.1.0",
		Commands: r.register(),
		After: func(ctx context.Context, cmd *cli.Command) error {
			return r.Close()
		},
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, accountCommand, communityCommand, songCommand, playlistCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// community resolves ref as a community id or external playlist id.
func (r *Runner) community(ctx context.Context, ref string) (*tasks.Engine, *models.Community, error) {
	if ref == "" {
		return nil, nil, fmt.Errorf("%w: community id or playlist id", shared.ErrMissingArgument)
	}

	engine, err := r.Engine(ctx)
	if err != nil {
		return nil, nil, err
	}

	community, err := engine.GetCommunity(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	return engine, community, nil
}

// actingUser returns --user, or the playlist account when the flag is empty.
func (r *Runner) actingUser(ctx context.Context, engine *tasks.Engine, cmd *cli.Command) (string, error) {
	if user := cmd.String("user"); user != "" {
		return user, nil
	}

	credential, err := engine.PlaylistAccount(ctx)
	if err != nil {
		return "", err
	}
	return credential.AccountID(), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

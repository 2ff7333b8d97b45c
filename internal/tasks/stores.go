package tasks

import (
	"context"
	"time"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/repositories"
)

// CommunityStore persists communities and their participant sets.
type CommunityStore interface {
	Create(ctx context.Context, community *models.Community) error
	Get(ctx context.Context, id string) (*models.Community, error)
	GetByPlaylistID(ctx context.Context, playlistID string) (*models.Community, error)
	Update(ctx context.Context, community *models.Community) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, criteria map[string]any) ([]*models.Community, error)
	AddParticipant(ctx context.Context, communityID, userID string) error
	RemoveParticipant(ctx context.Context, communityID, userID string) error
	MarkSynced(ctx context.Context, communityID string, at time.Time) error
	MarkSyncFailed(ctx context.Context, communityID, message string) error
}

// ProposalStore persists proposals. Status changes must be atomic per proposal.
type ProposalStore interface {
	Create(ctx context.Context, proposal *models.Proposal) error
	Get(ctx context.Context, id string) (*models.Proposal, error)
	FindByTrack(ctx context.Context, communityID, trackID string) (*models.Proposal, error)
	Transition(ctx context.Context, id string, to models.ProposalStatus) (*models.Proposal, error)
	ListRanked(ctx context.Context, communityID string, status models.ProposalStatus) ([]*models.Proposal, error)
	AcceptedTrackIDs(ctx context.Context, communityID string) ([]string, error)
}

// VoteStore is the vote ledger. Add and Remove are single-row atomic operations.
type VoteStore interface {
	Add(ctx context.Context, proposalID, userID string) error
	Remove(ctx context.Context, proposalID, userID string) error
	Count(ctx context.Context, proposalID string) (int, error)
}

// CredentialStore persists one OAuth credential per external account.
type CredentialStore interface {
	Save(ctx context.Context, credential *models.Credential) error
	Find(ctx context.Context, accountID string) (*models.Credential, error)
	FindPlaylistAccount(ctx context.Context) (*models.Credential, error)
	SetPlaylistAccount(ctx context.Context, accountID string) error
}

// SongStore is the write-once song metadata cache.
//
// Save must collapse a duplicate insert for the same track id and return the stored entry.
type SongStore interface {
	Find(ctx context.Context, trackID string) (*models.CachedSong, error)
	Save(ctx context.Context, song *models.CachedSong) (*models.CachedSong, error)
}

var (
	_ CommunityStore  = (*repositories.CommunityRepository)(nil)
	_ ProposalStore   = (*repositories.ProposalRepository)(nil)
	_ VoteStore       = (*repositories.VoteRepository)(nil)
	_ CredentialStore = (*repositories.CredentialRepository)(nil)
	_ SongStore       = (*repositories.SongCacheRepository)(nil)
	_ SongStore       = (*repositories.RedisSongStore)(nil)
)

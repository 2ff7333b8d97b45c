package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
)

func TestCommunityRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			community := models.NewCommunity(0, "", "admin", "pl1", 0)
			err := NewCommunityRepository(db).Create(ctx, community)
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Fatalf("expected invalid input for empty name, got %v", err)
			}
		})

		t.Run("DuplicatePlaylist", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			createCommunity(t, db, "Jazz Club", "admin", "pl1")

			err := NewCommunityRepository(db).Create(ctx, models.NewCommunity(0, "Other", "admin", "pl1", 0))
			if !errors.Is(err, shared.ErrConflict) {
				t.Fatalf("expected conflict for duplicate playlist id, got %v", err)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewCommunityRepository(db).Get(ctx, "nonexistent-id")
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			community := models.NewCommunity(0, "Jazz Club", "admin", "pl1", 0)
			community.SetID("nonexistent-id")

			err := NewCommunityRepository(db).Update(ctx, community)
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			err := NewCommunityRepository(db).Delete(ctx, "nonexistent-id")
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	})

	t.Run("Participants", func(t *testing.T) {
		t.Run("DuplicateJoin", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			community := createCommunity(t, db, "Jazz Club", "admin", "pl1")
			err := NewCommunityRepository(db).AddParticipant(ctx, community.ID(), "admin")
			if !errors.Is(err, shared.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})

		t.Run("RemoveMissing", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			community := createCommunity(t, db, "Jazz Club", "admin", "pl1")
			err := NewCommunityRepository(db).RemoveParticipant(ctx, community.ID(), "stranger")
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	})
}

func TestProposalRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		t.Run("DuplicateActiveTrack", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			community := createCommunity(t, db, "Jazz Club", "admin", "pl1")
			createProposal(t, db, community.ID(), "abc123", "bob")

			err := NewProposalRepository(db).Create(ctx, models.NewProposal(0, community.ID(), "abc123", "carol"))
			if !errors.Is(err, shared.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})

		t.Run("SameTrackOtherCommunity", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			first := createCommunity(t, db, "Jazz Club", "admin", "pl1")
			second := createCommunity(t, db, "Rock Club", "admin", "pl2")
			createProposal(t, db, first.ID(), "abc123", "bob")

			if err := NewProposalRepository(db).Create(ctx, models.NewProposal(0, second.ID(), "abc123", "bob")); err != nil {
				t.Fatalf("same track in another community should be allowed: %v", err)
			}
		})
	})

	t.Run("Transition", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewProposalRepository(db).Transition(ctx, "nonexistent-id", models.StatusAccepted)
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})

		t.Run("RestoreWouldDuplicateActive", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewProposalRepository(db)
			community := createCommunity(t, db, "Jazz Club", "admin", "pl1")
			denied := createProposal(t, db, community.ID(), "abc123", "bob")

			if _, err := repo.Transition(ctx, denied.ID(), models.StatusDenied); err != nil {
				t.Fatalf("failed to deny: %v", err)
			}
			createProposal(t, db, community.ID(), "abc123", "carol")

			_, err := repo.Transition(ctx, denied.ID(), models.StatusPending)
			if !errors.Is(err, shared.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	})
}

func TestVoteRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("DuplicateVote", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewVoteRepository(db)
		community := createCommunity(t, db, "Jazz Club", "admin", "pl1")
		proposal := createProposal(t, db, community.ID(), "abc123", "bob")

		if err := repo.Add(ctx, proposal.ID(), "bob"); err != nil {
			t.Fatalf("failed to vote: %v", err)
		}
		if err := repo.Add(ctx, proposal.ID(), "bob"); !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("RemoveMissing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		community := createCommunity(t, db, "Jazz Club", "admin", "pl1")
		proposal := createProposal(t, db, community.ID(), "abc123", "bob")

		err := NewVoteRepository(db).Remove(ctx, proposal.ID(), "bob")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestCredentialRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewCredentialRepository(db).Find(ctx, "nobody")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("SecondPlaylistAccount", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)

		first := models.NewCredential("first", "a", "r", 60)
		first.SetPlaylistAccount(true)
		if err := repo.Save(ctx, first); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		second := models.NewCredential("second", "a", "r", 60)
		second.SetPlaylistAccount(true)
		if err := repo.Save(ctx, second); !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("SetPlaylistAccountMissing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		err := NewCredentialRepository(db).SetPlaylistAccount(ctx, "nobody")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

// redisURL returns REDIS_URL when set, otherwise the address of an in-process server.
func redisURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}
	return "redis://" + miniredis.RunT(t).Addr()
}

func TestRedisSongStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) *RedisSongStore {
		t.Helper()
		store, err := NewRedisSongStore(ctx, redisURL(t))
		if err != nil {
			t.Fatalf("failed to connect to redis: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	}

	t.Run("First Save Wins", func(t *testing.T) {
		store := newStore(t)
		trackID := "test-" + shared.GenerateID()
		defer store.client.Del(ctx, songKeyPrefix+trackID)

		if _, err := store.Find(ctx, trackID); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}

		first := models.NewCachedSong(models.TrackMetadata{ID: trackID, Name: "So What"})
		if _, err := store.Save(ctx, first); err != nil {
			t.Fatalf("failed to cache song: %v", err)
		}

		stored, err := store.Save(ctx, models.NewCachedSong(models.TrackMetadata{ID: trackID, Name: "Other"}))
		if err != nil {
			t.Fatalf("duplicate save should not error: %v", err)
		}
		if stored.Metadata().Name != "So What" {
			t.Errorf("first entry should win, got %s", stored.Metadata().Name)
		}

		found, err := store.Find(ctx, trackID)
		if err != nil {
			t.Fatalf("failed to find song: %v", err)
		}
		if found.Metadata().Name != "So What" {
			t.Errorf("expected stored name So What, got %s", found.Metadata().Name)
		}
	})

	t.Run("Concurrent Saves Converge", func(t *testing.T) {
		store := newStore(t)
		trackID := "test-" + shared.GenerateID()
		defer store.client.Del(ctx, songKeyPrefix+trackID)

		const writers = 8
		names := make([]string, writers)
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				song := models.NewCachedSong(models.TrackMetadata{ID: trackID, Name: fmt.Sprintf("Take %d", i)})
				stored, err := store.Save(ctx, song)
				if err != nil {
					t.Errorf("Save failed: %v", err)
					return
				}
				names[i] = stored.Metadata().Name
			}(i)
		}
		wg.Wait()

		for i, name := range names {
			if name != names[0] {
				t.Errorf("writer %d saw %q, writer 0 saw %q", i, name, names[0])
			}
		}
	})

	t.Run("Invalid URL", func(t *testing.T) {
		if _, err := NewRedisSongStore(ctx, "not a url"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected invalid config, got %v", err)
		}
	})
}

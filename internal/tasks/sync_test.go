package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
)

func TestSynchronizer_JazzClub(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, EngineOpts{}, "bob")
	community := f.community(t, "Jazz Club", 3, "alice", "bob")

	proposal, err := f.engine.Propose(ctx, community.ID(), "abc123", "bob")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if proposal.Status() != models.StatusPending {
		t.Errorf("expected pending, got %s", proposal.Status())
	}

	voted, err := f.engine.Vote(ctx, community.ID(), proposal.ID(), "bob")
	if err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if voted.VoteCount() != 1 {
		t.Errorf("expected 1 vote, got %d", voted.VoteCount())
	}

	accepted, err := f.engine.Accept(ctx, community.ID(), proposal.ID(), "alice")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if accepted.Status() != models.StatusAccepted {
		t.Errorf("expected accepted, got %s", accepted.Status())
	}
	if pushed, _ := f.client.LastPush(community.PlaylistID()); !slices.Equal(pushed, []string{"abc123"}) {
		t.Errorf("expected push of [abc123], got %v", pushed)
	}

	second, err := f.engine.Propose(ctx, community.ID(), "xyz789", "bob")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	denied, err := f.engine.Deny(ctx, community.ID(), second.ID(), "alice")
	if err != nil {
		t.Fatalf("Deny failed: %v", err)
	}
	if denied.Status() != models.StatusDenied {
		t.Errorf("expected denied, got %s", denied.Status())
	}

	pushes := f.client.Pushes(community.PlaylistID())
	if len(pushes) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(pushes))
	}
	if !slices.Equal(pushes[1], []string{"abc123"}) {
		t.Errorf("expected denied track to be excluded, got %v", pushes[1])
	}
}

func TestSynchronizer_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("restoring one of two accepted proposals shrinks the playlist", func(t *testing.T) {
		f := newFixture(t, EngineOpts{})
		community := f.community(t, "Jazz Club", 3, "alice")
		first := f.propose(t, community.ID(), "abc123", "alice")
		second := f.propose(t, community.ID(), "def456", "alice")

		for _, p := range []*models.Proposal{first, second} {
			if _, err := f.engine.Accept(ctx, community.ID(), p.ID(), "alice"); err != nil {
				t.Fatalf("Accept failed: %v", err)
			}
		}
		if pushed, _ := f.client.LastPush(community.PlaylistID()); !slices.Equal(pushed, []string{"abc123", "def456"}) {
			t.Errorf("expected both tracks in creation order, got %v", pushed)
		}

		if _, err := f.engine.Restore(ctx, community.ID(), first.ID(), "alice"); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if pushed, _ := f.client.LastPush(community.PlaylistID()); !slices.Equal(pushed, []string{"def456"}) {
			t.Errorf("expected only def456, got %v", pushed)
		}
	})

	t.Run("an empty accepted set clears the playlist", func(t *testing.T) {
		f := newFixture(t, EngineOpts{})
		community := f.community(t, "Jazz Club", 3, "alice")
		proposal := f.propose(t, community.ID(), "abc123", "alice")

		if _, err := f.engine.Accept(ctx, community.ID(), proposal.ID(), "alice"); err != nil {
			t.Fatalf("Accept failed: %v", err)
		}
		if _, err := f.engine.Deny(ctx, community.ID(), proposal.ID(), "alice"); err != nil {
			t.Fatalf("Deny failed: %v", err)
		}

		pushed, ok := f.client.LastPush(community.PlaylistID())
		if !ok || len(pushed) != 0 {
			t.Errorf("expected an empty push, got %v (pushed: %v)", pushed, ok)
		}
	})

	t.Run("a failed push keeps the local transition and is retried", func(t *testing.T) {
		f := newFixture(t, EngineOpts{})
		community := f.community(t, "Jazz Club", 3, "alice")
		proposal := f.propose(t, community.ID(), "abc123", "alice")

		f.client.SetReplaceErr(fmt.Errorf("%w: status 503", shared.ErrUpstream))

		accepted, err := f.engine.Accept(ctx, community.ID(), proposal.ID(), "alice")
		assertKind(t, err, shared.ErrSyncFailed)
		if shared.Kind(err) != "SyncFailed" {
			t.Errorf("expected SyncFailed kind, got %s", shared.Kind(err))
		}
		if accepted == nil || accepted.Status() != models.StatusAccepted {
			t.Fatalf("expected the committed proposal, got %v", accepted)
		}
		if got := f.status(t, proposal.ID()); got != models.StatusAccepted {
			t.Errorf("expected accepted to persist, got %s", got)
		}

		stored, err := f.engine.GetCommunity(ctx, community.ID())
		if err != nil {
			t.Fatalf("GetCommunity failed: %v", err)
		}
		if stored.SyncError() == "" {
			t.Error("expected the sync error to be recorded")
		}

		f.client.SetReplaceErr(nil)
		if err := f.engine.SyncCommunity(ctx, community.ID()); err != nil {
			t.Fatalf("SyncCommunity failed: %v", err)
		}

		if pushed, _ := f.client.LastPush(community.PlaylistID()); !slices.Equal(pushed, []string{"abc123"}) {
			t.Errorf("expected retry to push [abc123], got %v", pushed)
		}

		stored, err = f.engine.GetCommunity(ctx, community.ID())
		if err != nil {
			t.Fatalf("GetCommunity failed: %v", err)
		}
		if stored.SyncError() != "" {
			t.Errorf("expected sync error to be cleared, got %q", stored.SyncError())
		}
		if stored.LastSyncedAt() == nil {
			t.Error("expected last synced time")
		}
	})

	t.Run("an expired playlist account surfaces as a failed sync", func(t *testing.T) {
		f := newFixture(t, EngineOpts{})
		community := f.community(t, "Jazz Club", 3, "alice")
		proposal := f.propose(t, community.ID(), "abc123", "alice")

		expireCredential(t, f, playlistAccount)
		f.client.SetRefreshErr(fmt.Errorf("%w: invalid_grant", shared.ErrAuthExpired))

		_, err := f.engine.Accept(ctx, community.ID(), proposal.ID(), "alice")
		assertKind(t, err, shared.ErrSyncFailed)
		assertKind(t, err, shared.ErrAuthExpired)
	})

	t.Run("concurrent accepts end with every accepted track pushed", func(t *testing.T) {
		f := newFixture(t, EngineOpts{})
		community := f.community(t, "Jazz Club", 3, "alice")

		const n = 8
		proposals := make([]*models.Proposal, n)
		want := make([]string, n)
		for i := range n {
			want[i] = fmt.Sprintf("track%d", i)
			proposals[i] = f.propose(t, community.ID(), want[i], "alice")
		}

		var wg sync.WaitGroup
		for _, p := range proposals {
			wg.Add(1)
			go func(p *models.Proposal) {
				defer wg.Done()
				if _, err := f.engine.Accept(ctx, community.ID(), p.ID(), "alice"); err != nil {
					t.Errorf("Accept failed: %v", err)
				}
			}(p)
		}
		wg.Wait()

		pushed, _ := f.client.LastPush(community.PlaylistID())
		if !slices.Equal(pushed, want) {
			t.Errorf("expected final push %v, got %v", want, pushed)
		}
	})
}

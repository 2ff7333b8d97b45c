package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/musicrank/internal/models"
)

func TestRenderCommunities(t *testing.T) {
	t.Run("lists each community with its details", func(t *testing.T) {
		jazz := models.NewCommunity(1, "Jazz Club", "alice", "playlist1", 3)
		jazz.SetParticipants([]string{"alice", "bob"})
		metal := models.NewCommunity(2, "Metal Club", "carol", "playlist2", 0)
		metal.SetSyncError("status 503")

		output := RenderCommunities([]*models.Community{jazz, metal})

		for _, want := range []string{"Communities (2)", "Jazz Club", "2 participants", "threshold 3", "playlist2", "sync pending"} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("empty list", func(t *testing.T) {
		if output := RenderCommunities(nil); !strings.Contains(output, "No communities yet.") {
			t.Errorf("expected empty marker, got:\n%s", output)
		}
	})
}

func TestRenderProposals(t *testing.T) {
	proposal := models.NewProposal(1, "community1", "abc123", "bob")
	proposal.SetVoters([]string{"alice"})

	listings := []models.ProposalListing{
		{
			Proposal: proposal,
			Song:     &models.TrackMetadata{ID: "abc123", Name: "So What", Artists: []string{"Miles Davis"}, Album: "Kind of Blue", DurationMs: 562000},
		},
		{Proposal: models.NewProposal(2, "community1", "xyz789", "alice")},
	}

	output := RenderProposals("Pending", listings)
	for _, want := range []string{"Pending", "Miles Davis - So What", "1 votes", "proposed by bob", "Kind of Blue [9:22]", "xyz789"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q, got:\n%s", want, output)
		}
	}
}

func TestRenderCommunity(t *testing.T) {
	t.Run("synced", func(t *testing.T) {
		community := models.NewCommunity(1, "Jazz Club", "alice", "playlist1", 3)
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		community.SetLastSyncedAt(&at)

		output := RenderCommunity(community)
		for _, want := range []string{"Jazz Club", "alice", "playlist1", "synced 2024-05-01T12:00:00Z"} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("failed sync", func(t *testing.T) {
		community := models.NewCommunity(1, "Jazz Club", "alice", "playlist1", 3)
		community.SetSyncError("status 503")

		if output := RenderCommunity(community); !strings.Contains(output, "failed: status 503") {
			t.Errorf("expected sync error, got:\n%s", output)
		}
	})

	t.Run("never synced", func(t *testing.T) {
		community := models.NewCommunity(1, "Jazz Club", "alice", "playlist1", 3)
		if output := RenderCommunity(community); !strings.Contains(output, "never") {
			t.Errorf("expected never, got:\n%s", output)
		}
	})
}

func TestRenderProposal(t *testing.T) {
	proposal := models.NewProposal(1, "community1", "abc123", "bob")
	proposal.SetID("proposal1")
	proposal.SetStatus(models.StatusAccepted)
	proposal.SetVoters([]string{"alice", "bob"})

	output := RenderProposal(models.ProposalListing{
		Proposal: proposal,
		Song:     &models.TrackMetadata{Name: "So What", Artists: []string{"Miles Davis"}, ExternalURL: "https://open.spotify.com/track/abc123"},
	})

	for _, want := range []string{"Miles Davis - So What", "proposal1", "accepted", "alice, bob", "https://open.spotify.com/track/abc123"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q, got:\n%s", want, output)
		}
	}
}

func TestRenderCredential(t *testing.T) {
	credential := models.NewCredential("musicrank-bot", "secret-access", "secret-refresh", 3600)
	credential.SetPlaylistAccount(true)

	output := RenderCredential(credential)
	if !strings.Contains(output, "musicrank-bot") || !strings.Contains(output, "playlist account") {
		t.Errorf("unexpected output:\n%s", output)
	}
	if strings.Contains(output, "secret") {
		t.Errorf("tokens must not be rendered, got:\n%s", output)
	}
}

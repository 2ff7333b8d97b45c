package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
)

// communityItem describes a [models.Community] as a title and description line.
type communityItem struct {
	community *models.Community
}

func (i communityItem) Title() string { return i.community.Name() }
func (i communityItem) Description() string {
	desc := fmt.Sprintf("%d participants • threshold %d • playlist %s",
		len(i.community.Participants()), i.community.Threshold(), i.community.PlaylistID())
	if i.community.SyncError() != "" {
		desc = fmt.Sprintf("%s • %s", desc, Warn("sync pending"))
	}
	return desc
}

// proposalItem describes a [models.ProposalListing] as a title and description line.
type proposalItem struct {
	listing models.ProposalListing
}

func (i proposalItem) Title() string {
	if song := i.listing.Song; song != nil && song.Name != "" {
		return fmt.Sprintf("%s - %s", song.ArtistNames(), song.Name)
	}
	return i.listing.Proposal.TrackID()
}

func (i proposalItem) Description() string {
	p := i.listing.Proposal
	status := StatusStyle(p.Status().String()).Render(p.Status().String())
	desc := fmt.Sprintf("%s • %d votes • proposed by %s", status, p.VoteCount(), p.ProposedBy())
	if song := i.listing.Song; song != nil && song.Album != "" {
		desc = fmt.Sprintf("%s • %s [%s]", desc, song.Album, shared.FormatDuration(song.DurationMs))
	}
	return desc
}

type item interface {
	Title() string
	Description() string
}

func renderItems(heading string, items []item, empty string) string {
	var b strings.Builder
	b.WriteString(Title(heading))
	b.WriteString("\n\n")

	if len(items) == 0 {
		b.WriteString(Help(empty))
		b.WriteString("\n")
		return b.String()
	}

	for n, it := range items {
		b.WriteString(fmt.Sprintf("%2d. %s\n", n+1, it.Title()))
		b.WriteString(fmt.Sprintf("    %s\n", Help(it.Description())))
	}
	return b.String()
}

// RenderCommunities lists communities one per entry.
func RenderCommunities(communities []*models.Community) string {
	items := make([]item, len(communities))
	for n, c := range communities {
		items[n] = communityItem{community: c}
	}
	return renderItems(fmt.Sprintf("Communities (%d)", len(communities)), items, "No communities yet.")
}

// RenderProposals lists ranked proposals under heading.
func RenderProposals(heading string, listings []models.ProposalListing) string {
	items := make([]item, len(listings))
	for n, l := range listings {
		items[n] = proposalItem{listing: l}
	}
	return renderItems(heading, items, "No proposals.")
}

var labelStyle = lipgloss.NewStyle().Width(14)

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + value + "\n"
}

// RenderCommunity shows one community with its members and sync state.
func RenderCommunity(c *models.Community) string {
	var b strings.Builder
	b.WriteString(Title(c.Name()))
	b.WriteString("\n\n")
	b.WriteString(field("ID", c.ID()))
	b.WriteString(field("Admin", c.AdminID()))
	b.WriteString(field("Playlist", c.PlaylistID()))
	b.WriteString(field("Threshold", fmt.Sprintf("%d", c.Threshold())))
	b.WriteString(field("Participants", strings.Join(c.Participants(), ", ")))

	switch {
	case c.SyncError() != "":
		b.WriteString(field("Sync", Error("failed: "+c.SyncError())))
	case c.LastSyncedAt() != nil:
		b.WriteString(field("Sync", Success("synced "+c.LastSyncedAt().Format(time.RFC3339))))
	default:
		b.WriteString(field("Sync", Help("never")))
	}
	return b.String()
}

// RenderProposal shows one proposal with its voters and track metadata.
func RenderProposal(l models.ProposalListing) string {
	p := l.Proposal
	pi := proposalItem{listing: l}

	var b strings.Builder
	b.WriteString(Title(pi.Title()))
	b.WriteString("\n\n")
	b.WriteString(field("Proposal", p.ID()))
	b.WriteString(field("Track", p.TrackID()))
	b.WriteString(field("Status", StatusStyle(p.Status().String()).Render(p.Status().String())))
	b.WriteString(field("Proposed by", p.ProposedBy()))
	b.WriteString(field("Votes", fmt.Sprintf("%d", p.VoteCount())))
	if voters := p.Voters(); len(voters) > 0 {
		b.WriteString(field("Voters", strings.Join(voters, ", ")))
	}
	if song := l.Song; song != nil {
		if song.Album != "" {
			b.WriteString(field("Album", song.Album))
		}
		if song.DurationMs > 0 {
			b.WriteString(field("Duration", shared.FormatDuration(song.DurationMs)))
		}
		if song.ExternalURL != "" {
			b.WriteString(field("Link", song.ExternalURL))
		}
	}
	return b.String()
}

// RenderCredential shows an account credential without its tokens.
func RenderCredential(c *models.Credential) string {
	var b strings.Builder
	b.WriteString(Title(c.AccountID()))
	b.WriteString("\n\n")
	b.WriteString(field("Refreshed", c.LastRefreshedAt().Format(time.RFC3339)))
	b.WriteString(field("Expires", c.ExpiresAt().Format(time.RFC3339)))
	if c.PlaylistAccount() {
		b.WriteString(field("Role", Success("playlist account")))
	}
	return b.String()
}

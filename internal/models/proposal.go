package models

import (
	"fmt"
	"slices"
	"time"
)

// ProposalStatus is the lifecycle state of a [Proposal].
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusAccepted ProposalStatus = "accepted"
	StatusDenied   ProposalStatus = "denied"
)

// ParseProposalStatus converts a stored or user supplied status name.
func ParseProposalStatus(s string) (ProposalStatus, error) {
	switch status := ProposalStatus(s); status {
	case StatusPending, StatusAccepted, StatusDenied:
		return status, nil
	default:
		return "", fmt.Errorf("unknown proposal status %q", s)
	}
}

func (s ProposalStatus) String() string { return string(s) }

// Proposal is a track submitted to a community, along with the users who voted for it.
//
// Voters are loaded by the repository; vote changes go through the vote ledger,
// never by rewriting this slice.
type Proposal struct {
	id          string
	sequence    int
	communityID string
	trackID     string
	proposedBy  string
	status      ProposalStatus
	voters      []string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewProposal creates a pending proposal with no votes.
func NewProposal(sequence int, communityID, trackID, proposedBy string) *Proposal {
	now := time.Now()
	return &Proposal{
		sequence:    sequence,
		communityID: communityID,
		trackID:     trackID,
		proposedBy:  proposedBy,
		status:      StatusPending,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (p *Proposal) ID() string             { return p.id }
func (p *Proposal) Sequence() int          { return p.sequence }
func (p *Proposal) CommunityID() string    { return p.communityID }
func (p *Proposal) TrackID() string        { return p.trackID }
func (p *Proposal) ProposedBy() string     { return p.proposedBy }
func (p *Proposal) Status() ProposalStatus { return p.status }
func (p *Proposal) VoteCount() int         { return len(p.voters) }
func (p *Proposal) CreatedAt() time.Time   { return p.createdAt }
func (p *Proposal) UpdatedAt() time.Time   { return p.updatedAt }
func (p *Proposal) Voters() []string       { return slices.Clone(p.voters) }

// HasVoted reports whether userID is in the vote set.
func (p *Proposal) HasVoted(userID string) bool {
	return slices.Contains(p.voters, userID)
}

func (p *Proposal) SetID(id string)                 { p.id = id }
func (p *Proposal) SetSequence(sequence int)        { p.sequence = sequence }
func (p *Proposal) SetStatus(status ProposalStatus) { p.status = status }
func (p *Proposal) SetVoters(users []string)        { p.voters = slices.Clone(users) }
func (p *Proposal) SetCreatedAt(t time.Time)        { p.createdAt = t }
func (p *Proposal) SetUpdatedAt(t time.Time)        { p.updatedAt = t }

// Validate checks required fields and the status value.
func (p *Proposal) Validate() error {
	if p.communityID == "" {
		return fmt.Errorf("proposal community is required")
	}
	if p.trackID == "" {
		return fmt.Errorf("proposal track id is required")
	}
	if p.proposedBy == "" {
		return fmt.Errorf("proposal proposer is required")
	}
	if _, err := ParseProposalStatus(string(p.status)); err != nil {
		return err
	}
	return nil
}

// ProposalListing pairs a proposal with its track metadata for presentation.
type ProposalListing struct {
	Proposal *Proposal
	Song     *TrackMetadata
}

// package formatter renders a community's proposal listings as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat accepts json, csv, markdown (or md) and txt (or text).
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, name)
	}
}

func (f Format) extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Report is a ranked listing of one community's proposals with a single status.
type Report struct {
	Community *models.Community
	Status    models.ProposalStatus
	Listings  []models.ProposalListing
}

type reportRecord struct {
	Community   string          `json:"community"`
	CommunityID string          `json:"community_id"`
	PlaylistID  string          `json:"playlist_id"`
	Threshold   int             `json:"threshold"`
	Status      string          `json:"status"`
	Proposals   []listingRecord `json:"proposals"`
}

type listingRecord struct {
	Rank        int      `json:"rank"`
	ProposalID  string   `json:"proposal_id"`
	TrackID     string   `json:"track_id"`
	Status      string   `json:"status"`
	ProposedBy  string   `json:"proposed_by"`
	Votes       int      `json:"votes"`
	Voters      []string `json:"voters"`
	Name        string   `json:"name,omitempty"`
	Artists     []string `json:"artists,omitempty"`
	Album       string   `json:"album,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
}

func record(rank int, listing models.ProposalListing) listingRecord {
	p := listing.Proposal
	r := listingRecord{
		Rank:       rank,
		ProposalID: p.ID(),
		TrackID:    p.TrackID(),
		Status:     p.Status().String(),
		ProposedBy: p.ProposedBy(),
		Votes:      p.VoteCount(),
		Voters:     p.Voters(),
	}
	if song := listing.Song; song != nil {
		r.Name = song.Name
		r.Artists = song.Artists
		r.Album = song.Album
		r.Duration = shared.FormatDuration(song.DurationMs)
		r.ExternalURL = song.ExternalURL
	}
	return r
}

// ExportToJSON renders the report as indented JSON.
func ExportToJSON(report *Report) ([]byte, error) {
	out := reportRecord{
		Community:   report.Community.Name(),
		CommunityID: report.Community.ID(),
		PlaylistID:  report.Community.PlaylistID(),
		Threshold:   report.Community.Threshold(),
		Status:      report.Status.String(),
		Proposals:   make([]listingRecord, 0, len(report.Listings)),
	}
	for i, listing := range report.Listings {
		out.Proposals = append(out.Proposals, record(i+1, listing))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV renders the report with columns: Rank, ProposalID, TrackID, Title, Artist, Album, Duration, Votes, Status, ProposedBy
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Rank", "ProposalID", "TrackID", "Title", "Artist", "Album", "Duration", "Votes", "Status", "ProposedBy"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, listing := range report.Listings {
		r := record(i+1, listing)
		row := []string{
			strconv.Itoa(r.Rank),
			r.ProposalID,
			r.TrackID,
			r.Name,
			strings.Join(r.Artists, ", "),
			r.Album,
			r.Duration,
			strconv.Itoa(r.Votes),
			r.Status,
			r.ProposedBy,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the report as a Markdown document with one numbered entry per proposal.
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", report.Community.Name()))
	buf.WriteString(fmt.Sprintf("**Playlist**: %s\n", report.Community.PlaylistID()))
	buf.WriteString(fmt.Sprintf("**Threshold**: %d\n", report.Community.Threshold()))
	buf.WriteString(fmt.Sprintf("**Proposals**: %d\n\n", len(report.Listings)))

	buf.WriteString(fmt.Sprintf("## %s\n\n", titleCase(report.Status.String())))
	if len(report.Listings) == 0 {
		buf.WriteString("_No proposals._\n")
		return buf.Bytes(), nil
	}

	for i, listing := range report.Listings {
		r := record(i+1, listing)
		albumPart := ""
		if r.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", r.Album)
		}
		durationPart := ""
		if r.Duration != "" {
			durationPart = fmt.Sprintf(" [%s]", r.Duration)
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s%s - %s\n", r.Rank, describe(r), albumPart, durationPart, votes(r.Votes)))
	}

	return buf.Bytes(), nil
}

// ExportToText renders the report as plain text.
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Community: %s\n", report.Community.Name()))
	buf.WriteString(fmt.Sprintf("Status: %s\n", report.Status))
	buf.WriteString(fmt.Sprintf("Proposals: %d\n\n", len(report.Listings)))

	for i, listing := range report.Listings {
		r := record(i+1, listing)
		buf.WriteString(fmt.Sprintf("%d. %s (%s)\n", r.Rank, describe(r), votes(r.Votes)))
	}

	return buf.Bytes(), nil
}

// Render renders the report in the given format.
func Render(report *Report, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(report)
	case FormatCSV:
		return ExportToCSV(report)
	case FormatMarkdown:
		return ExportToMarkdown(report)
	case FormatText:
		return ExportToText(report)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// Write renders the report to w.
func Write(w io.Writer, report *Report, format Format) error {
	data, err := Render(report, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteExport renders the report to a file and returns its path.
//
// Defaults to community_{sequence}_{status}.{ext} as the filename.
func WriteExport(report *Report, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("community_%d_%s.%s", report.Community.Sequence(), report.Status, format.extension())
	}

	data, err := Render(report, format)
	if err != nil {
		return "", fmt.Errorf("failed to render export: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func describe(r listingRecord) string {
	if r.Name == "" {
		return r.TrackID
	}
	if len(r.Artists) == 0 {
		return r.Name
	}
	return fmt.Sprintf("%s - %s", strings.Join(r.Artists, ", "), r.Name)
}

func votes(n int) string {
	if n == 1 {
		return "1 vote"
	}
	return fmt.Sprintf("%d votes", n)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

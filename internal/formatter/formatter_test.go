package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/musicrank/internal/models"
	"github.com/desertthunder/musicrank/internal/shared"
	th "github.com/desertthunder/musicrank/internal/testing"
)

func testReport() *Report {
	community := models.NewCommunity(4, "Jazz Club", "alice", "playlist1", 3)
	community.SetID("community1")

	first := models.NewProposal(1, "community1", "abc123", "bob")
	first.SetID("proposal1")
	first.SetVoters([]string{"alice", "bob"})

	second := models.NewProposal(2, "community1", "xyz789", "alice")
	second.SetID("proposal2")
	second.SetVoters([]string{"bob"})

	return &Report{
		Community: community,
		Status:    models.StatusPending,
		Listings: []models.ProposalListing{
			{
				Proposal: first,
				Song: &models.TrackMetadata{
					ID:         "abc123",
					Name:       "So What",
					Artists:    []string{"Miles Davis"},
					Album:      "Kind of Blue",
					DurationMs: 562000,
				},
			},
			{Proposal: second},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testReport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Rank,ProposalID,TrackID,Title,Artist,Album,Duration,Votes,Status,ProposedBy") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,proposal1,abc123,So What,Miles Davis,Kind of Blue,9:22,2,pending,bob") {
			t.Errorf("CSV missing first row, got: %s", output)
		}
		if !strings.Contains(output, "2,proposal2,xyz789,,,,,1,pending,alice") {
			t.Errorf("CSV missing row without metadata, got: %s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(testReport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded struct {
			Community string `json:"community"`
			Status    string `json:"status"`
			Proposals []struct {
				Rank    int      `json:"rank"`
				TrackID string   `json:"track_id"`
				Votes   int      `json:"votes"`
				Voters  []string `json:"voters"`
				Name    string   `json:"name"`
			} `json:"proposals"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}

		if decoded.Community != "Jazz Club" || decoded.Status != "pending" {
			t.Errorf("unexpected header: %+v", decoded)
		}
		if len(decoded.Proposals) != 2 {
			t.Fatalf("expected 2 proposals, got %d", len(decoded.Proposals))
		}
		if decoded.Proposals[0].Name != "So What" || decoded.Proposals[0].Votes != 2 {
			t.Errorf("unexpected first proposal: %+v", decoded.Proposals[0])
		}
		if decoded.Proposals[1].Rank != 2 || decoded.Proposals[1].TrackID != "xyz789" {
			t.Errorf("unexpected second proposal: %+v", decoded.Proposals[1])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testReport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Jazz Club",
			"**Playlist**: playlist1",
			"**Threshold**: 3",
			"## Pending",
			"1. Miles Davis - So What (Kind of Blue) [9:22] - 2 votes",
			"2. xyz789 - 1 vote",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown without proposals", func(t *testing.T) {
		report := testReport()
		report.Listings = nil

		data, err := ExportToMarkdown(report)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		if !strings.Contains(string(data), "_No proposals._") {
			t.Errorf("expected empty marker, got:\n%s", data)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testReport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Community: Jazz Club",
			"Status: pending",
			"Proposals: 2",
			"1. Miles Davis - So What (2 votes)",
			"2. xyz789 (1 vote)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"CSV", FormatCSV, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"text", FormatText, false},
		{"", FormatText, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected invalid argument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	t.Run("writes rendered output", func(t *testing.T) {
		var sb strings.Builder
		if err := Write(&sb, testReport(), FormatText); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if !strings.HasPrefix(sb.String(), "Community: Jazz Club") {
			t.Errorf("unexpected output: %s", sb.String())
		}
	})

	t.Run("writer failure", func(t *testing.T) {
		if err := Write(&th.FWriter{}, testReport(), FormatJSON); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		var sb strings.Builder
		err := Write(&sb, testReport(), Format("xml"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func TestWriteExport(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jazz.csv")

		got, err := WriteExport(testReport(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "So What") {
			t.Errorf("export missing track, got: %s", content)
		}
	})

	t.Run("default filename", func(t *testing.T) {
		dir := t.TempDir()
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("Failed to get working directory: %v", err)
		}
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("Failed to change directory: %v", err)
		}
		defer os.Chdir(wd)

		got, err := WriteExport(testReport(), FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != "community_4_pending.md" {
			t.Errorf("unexpected filename %s", got)
		}
		th.AssertFileExists(t, filepath.Join(dir, got))
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "dir", "out.txt")
		if _, err := WriteExport(testReport(), FormatText, path); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

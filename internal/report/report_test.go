package report

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/cube-pilot/internal/conversation"
	"github.com/ziadkadry99/cube-pilot/internal/cube"
)

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	result := &cube.ResultSet{
		Rows: []map[string]any{
			{"Orders.status": "completed", "Orders.total_revenue": 100.5},
			{"Orders.status": "pending", "Orders.total_revenue": 42.0},
		},
		RowCount: 2,
	}

	path, err := WriteCSV(dir, result)
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}
	// Columns are sorted alphabetically.
	if records[0][0] != "Orders.status" || records[0][1] != "Orders.total_revenue" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][1] != "100.5" {
		t.Errorf("expected 100.5, got %q", records[1][1])
	}
	if records[2][1] != "42" {
		t.Errorf("expected 42, got %q", records[2][1])
	}
}

func TestWriteCSVEmptyResult(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCSV(dir, &cube.ResultSet{})
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if strings.TrimSpace(string(data)) != "" {
		t.Errorf("expected empty file for empty result, got %q", data)
	}
}

func TestWriteHTMLTranscript(t *testing.T) {
	dir := t.TempDir()
	r := &TranscriptReport{
		SessionID: "abc-123",
		Messages: []conversation.StoredMessage{
			{Role: "user", Content: "show me **total revenue**", CreatedAt: time.Now()},
			{Role: "assistant", Content: "I found data for your query: total revenue, all time", ResponseType: "data_result", CreatedAt: time.Now()},
		},
	}

	path, err := r.WriteHTML(dir)
	if err != nil {
		t.Fatalf("WriteHTML failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	htmlStr := string(data)
	if !strings.Contains(htmlStr, "<strong>total revenue</strong>") {
		t.Error("expected markdown to be rendered to HTML")
	}
	if !strings.Contains(htmlStr, "abc-123") {
		t.Error("expected session id in output")
	}
	if !strings.Contains(htmlStr, "data_result") {
		t.Error("expected response type badge in output")
	}
}

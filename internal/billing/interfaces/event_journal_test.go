package interfaces

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meterbill/internal/billing/application"
)

func readJournal(t *testing.T, path string) []JournalRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()
	var records []JournalRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r JournalRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("decode journal line: %v", err)
		}
		records = append(records, r)
	}
	return records
}

func TestEventJournalAppendsRecords(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "events", "journal.jsonl")
	j := NewEventJournal(path, log.New(&buf, "", 0))
	at := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"r-1", "r-2"} {
		err := j.PublishReadingSaved(context.Background(), application.ReadingSaved{
			ID: id, Date: "31-01-2025", MainUsage: 300, Total: 126, OccurredAt: at,
		})
		if err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}
	if !strings.Contains(buf.String(), "reading saved: id=r-1 date=31-01-2025 usage=300.00 total=126.00") {
		t.Fatalf("unexpected log line: %q", buf.String())
	}

	records := readJournal(t, path)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.EventType != ReadingSavedEventType || first.SchemaVersion != 1 || first.OccurredAt != "2025-02-01T09:00:00Z" {
		t.Fatalf("unexpected record: %+v", first)
	}
	if first.EventID == "" || first.EventID == records[1].EventID {
		t.Fatalf("expected distinct event ids")
	}
	var payload readingSavedPayload
	if err := json.Unmarshal(first.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != "r-1" || payload.Total != 126 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestEventJournalWithoutPathOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	j := NewEventJournal("", log.New(&buf, "", 0))
	if err := j.PublishReadingSaved(context.Background(), application.ReadingSaved{ID: "r-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.Contains(buf.String(), "id=r-1") {
		t.Fatalf("expected log line, got %q", buf.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.PublishReadingSaved(ctx, application.ReadingSaved{ID: "r-2"}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
	var nilJournal *EventJournal
	if err := nilJournal.PublishReadingSaved(context.Background(), application.ReadingSaved{}); err == nil {
		t.Fatalf("expected error from nil journal")
	}
}

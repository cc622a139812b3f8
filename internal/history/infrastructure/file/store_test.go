package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meterbill/internal/history/historytest"
)

func TestStoreContract(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "data", "history.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	historytest.RunStoreContract(t, store)
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")
	first, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	saved, err := first.SaveReading(ctx, historytest.Entry("31-03-2025", 1400, time.Now().UTC()))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := first.SaveSetting(ctx, "propertyName", "Old Mill"); err != nil {
		t.Fatalf("save setting: %v", err)
	}

	second, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	latest, err := second.GetMostRecentReading(ctx)
	if err != nil || latest == nil || latest.ID != saved.ID {
		t.Fatalf("expected saved reading after reopen, got %+v %v", latest, err)
	}
	if name, _ := second.GetSetting(ctx, "propertyName", ""); name != "Old Mill" {
		t.Fatalf("expected setting after reopen, got %q", name)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".history-*"))
	if len(matches) != 0 {
		t.Fatalf("temporary files left behind: %v", matches)
	}
}

func TestNewStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewStore(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

package ingest

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestMetadataStore_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")

	store, err := LoadMetadataStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Update("pharmacy", "confluence", []string{"confluence_1", "confluence_2"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	reloaded, err := LoadMetadataStore(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	record, ok := reloaded.Get("pharmacy", "confluence")
	if !ok {
		t.Fatal("expected record to survive reload")
	}
	if !reflect.DeepEqual(record.DocumentIDs, []string{"confluence_1", "confluence_2"}) {
		t.Errorf("unexpected document ids: %v", record.DocumentIDs)
	}
	if record.LastSync.IsZero() {
		t.Error("expected last sync time to be set")
	}
}

func TestMetadataStore_MissingFileStartsEmpty(t *testing.T) {
	store, err := LoadMetadataStore(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Get("pharmacy", "confluence"); ok {
		t.Error("expected no records in a fresh store")
	}
}

func TestMetadataStore_KeysAreAreaScoped(t *testing.T) {
	store, err := LoadMetadataStore(filepath.Join(t.TempDir(), "sync.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Update("pharmacy", "gitlab", []string{"a"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := store.Update("claims", "gitlab", []string{"b"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	record, _ := store.Get("pharmacy", "gitlab")
	if !reflect.DeepEqual(record.DocumentIDs, []string{"a"}) {
		t.Errorf("pharmacy record leaked: %v", record.DocumentIDs)
	}
	record, _ = store.Get("claims", "gitlab")
	if !reflect.DeepEqual(record.DocumentIDs, []string{"b"}) {
		t.Errorf("claims record leaked: %v", record.DocumentIDs)
	}
}

func TestMetadataStore_UpdateOverwrites(t *testing.T) {
	store, err := LoadMetadataStore(filepath.Join(t.TempDir(), "sync.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Update("pharmacy", "confluence", []string{"a", "b"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := store.Update("pharmacy", "confluence", []string{"c"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	record, _ := store.Get("pharmacy", "confluence")
	if !reflect.DeepEqual(record.DocumentIDs, []string{"c"}) {
		t.Errorf("expected latest ids to win, got %v", record.DocumentIDs)
	}
}

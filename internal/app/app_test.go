package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ekap-project/knowledge-core/internal/config"
	"github.com/ekap-project/knowledge-core/internal/retrieval"
	"github.com/spf13/pflag"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	return &config.Settings{
		BusinessAreas: []string{"pharmacy"},
		SourcesConfig: "pharmacy:confluence(space=PHARM)",
		Search: config.SearchSettings{
			TopK:           5,
			CandidateDepth: 2,
			RRFConstant:    60,
		},
		Vector: config.VectorSettings{
			Scheme:    "http",
			Host:      "localhost:8080",
			ClassName: "KnowledgeChunk",
		},
		Embedding: config.EmbeddingSettings{
			EmbeddingModel: "text-embedding-3-small",
			ChatModel:      "gpt-4o-mini",
		},
		Graph: config.GraphSettings{
			URL:      "http://localhost:8529",
			Username: "root",
			Database: "code_graph",
		},
		CodeQL: config.CodeQLSettings{
			Enabled:        false,
			CLIPath:        "codeql",
			DatabaseDir:    filepath.Join(dir, "databases"),
			RegistryPath:   filepath.Join(dir, "registry.json"),
			QueriesDir:     filepath.Join(dir, "queries"),
			BuildTimeout:   time.Hour,
			QueryTimeout:   5 * time.Minute,
			VersionTimeout: 10 * time.Second,
		},
		Ingest: config.IngestSettings{
			MetadataPath: filepath.Join(dir, "sync.json"),
		},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := NewApp(context.Background(), testSettings(t))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestNewApp_ComposesComponents(t *testing.T) {
	a := newTestApp(t)

	if a.Dispatcher == nil || a.Engine == nil || a.Lexical == nil {
		t.Error("expected search components to be constructed")
	}
	if a.CodeQL == nil || a.Sources == nil {
		t.Error("expected code analysis components to be constructed")
	}
	if a.Ingestor == nil || a.Metadata == nil {
		t.Error("expected ingestion components to be constructed")
	}
	if a.CodeQL.IsEnabledForArea("pharmacy") {
		t.Error("code analysis should be off when disabled in settings")
	}
}

func TestRunSearch_UnknownAreaFails(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	err := RunSearch(context.Background(), a, &out, "refill policy", "claims", SearchOptions{})
	if !errors.Is(err, retrieval.ErrInvalidTenant) {
		t.Errorf("expected ErrInvalidTenant, got: %v", err)
	}
}

func TestRunSearch_RejectsMalformedFilter(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	err := RunSearch(context.Background(), a, &out, "q", "pharmacy", SearchOptions{
		Filters: []string{"missing-equals"},
	})
	if err == nil {
		t.Fatal("expected an error for a malformed filter")
	}
}

func TestSourcesLifecycle(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	err := RunSourcesRegister(a, &out, "pharmacy", "org/repo", RegisterSourceOptions{
		Languages: []string{"python"},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	var registered map[string]string
	if err := json.Unmarshal(out.Bytes(), &registered); err != nil {
		t.Fatalf("failed to parse register output: %v", err)
	}
	id := registered["source_id"]
	if id != "pharmacy_gitlab_org_repo" {
		t.Errorf("unexpected source id: %q", id)
	}

	out.Reset()
	if err := RunSourcesList(a, &out, "pharmacy"); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var listed []map[string]any
	if err := json.Unmarshal(out.Bytes(), &listed); err != nil {
		t.Fatalf("failed to parse list output: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 source, got %d", len(listed))
	}

	out.Reset()
	if err := RunSourcesRemove(a, &out, id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if got := a.Sources.List("pharmacy"); len(got) != 0 {
		t.Errorf("expected registry to be empty after remove, got %d entries", len(got))
	}
}

func TestRunChanges_ComparesAgainstLastSync(t *testing.T) {
	a := newTestApp(t)
	if err := a.Metadata.Update("pharmacy", "confluence", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("metadata update failed: %v", err)
	}

	var out bytes.Buffer
	if err := RunChanges(a, &out, "pharmacy", "confluence", []string{"b", "c", "d", "e"}); err != nil {
		t.Fatalf("changes failed: %v", err)
	}

	var changes struct {
		Added   []string `json:"added"`
		Deleted []string `json:"deleted"`
	}
	if err := json.Unmarshal(out.Bytes(), &changes); err != nil {
		t.Fatalf("failed to parse changes output: %v", err)
	}
	if !reflect.DeepEqual(changes.Added, []string{"d", "e"}) {
		t.Errorf("expected added [d e], got %v", changes.Added)
	}
	if !reflect.DeepEqual(changes.Deleted, []string{"a"}) {
		t.Errorf("expected deleted [a], got %v", changes.Deleted)
	}
}

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"document_type=code", "space=PHARM"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filters["document_type"] != "code" || filters["space"] != "PHARM" {
		t.Errorf("unexpected filters: %v", filters)
	}

	if _, err := parseFilters([]string{"=value"}); err == nil {
		t.Error("expected an error for an empty key")
	}

	filters, err = parseFilters(nil)
	if err != nil || filters != nil {
		t.Errorf("expected nil filters for no pairs, got %v, %v", filters, err)
	}
}

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	for _, name := range []string{
		"business-areas", "sources-config", "retriever-overrides", "top-k",
		"vector-host", "graph-url", "codeql-enabled", "codeql-cli-path",
		"codeql-database-dir", "codeql-registry-path",
	} {
		if flags.Lookup(name) == nil {
			t.Errorf("expected flag %q to be registered", name)
		}
	}
}

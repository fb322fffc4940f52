package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ekap-project/knowledge-core/internal/domain"
	"github.com/ekap-project/knowledge-core/internal/search"
)

type fakeFetcher struct {
	source string
	docs   []domain.Document
	err    error
}

func (f *fakeFetcher) Source() string { return f.source }

func (f *fakeFetcher) FetchAll(ctx context.Context) ([]domain.Document, error) {
	return f.docs, f.err
}

func (f *fakeFetcher) FetchSince(ctx context.Context, since time.Time) ([]domain.Document, error) {
	return f.docs, f.err
}

func (f *fakeFetcher) DocumentIDs(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, 0, len(f.docs))
	for _, doc := range f.docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func doc(id, source, content string) domain.Document {
	return domain.Document{
		ID:           id,
		Content:      content,
		Title:        id,
		Source:       source,
		DocumentType: "documentation",
		BusinessArea: "pharmacy",
	}
}

func newIngestorFixture(t *testing.T) (*Ingestor, *search.LexicalIndex) {
	t.Helper()
	lexical := search.NewLexicalIndex()
	t.Cleanup(func() { _ = lexical.Close() })

	meta, err := LoadMetadataStore(filepath.Join(t.TempDir(), "sync.json"))
	if err != nil {
		t.Fatalf("failed to load metadata store: %v", err)
	}
	return NewIngestor(lexical, meta), lexical
}

func TestRunCycle_NoFetchersErrors(t *testing.T) {
	ingestor, _ := newIngestorFixture(t)

	if _, err := ingestor.RunCycle(context.Background(), "pharmacy"); err == nil {
		t.Fatal("expected an error for an area with no fetchers")
	}
}

func TestRunCycle_IndexesAllSources(t *testing.T) {
	ingestor, lexical := newIngestorFixture(t)
	ingestor.AddFetcher("pharmacy", &fakeFetcher{
		source: "confluence",
		docs: []domain.Document{
			doc("confluence_1", "confluence", "refill policy overview"),
			doc("confluence_2", "confluence", "prior authorization workflow"),
		},
	})
	ingestor.AddFetcher("pharmacy", &fakeFetcher{
		source: "gitlab",
		docs: []domain.Document{
			doc("gitlab_org/repo/refill.py", "gitlab", "def refill(): pass"),
		},
	})

	result, err := ingestor.RunCycle(context.Background(), "pharmacy")
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if result.Indexed != 3 {
		t.Errorf("expected 3 indexed documents, got %d", result.Indexed)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 source syncs, got %d", len(result.Sources))
	}
	if got := lexical.DocumentCount("pharmacy"); got != 3 {
		t.Errorf("expected 3 documents in the lexical index, got %d", got)
	}
}

func TestRunCycle_FailedSourceIsSkipped(t *testing.T) {
	ingestor, lexical := newIngestorFixture(t)
	ingestor.AddFetcher("pharmacy", &fakeFetcher{
		source: "confluence",
		err:    errors.New("confluence unreachable"),
	})
	ingestor.AddFetcher("pharmacy", &fakeFetcher{
		source: "gitlab",
		docs:   []domain.Document{doc("gitlab_1", "gitlab", "deploy script")},
	})

	result, err := ingestor.RunCycle(context.Background(), "pharmacy")
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if result.Indexed != 1 {
		t.Errorf("expected the healthy source's document indexed, got %d", result.Indexed)
	}
	var failed *SourceSync
	for i := range result.Sources {
		if result.Sources[i].Source == "confluence" {
			failed = &result.Sources[i]
		}
	}
	if failed == nil || failed.Error == "" {
		t.Error("expected the failing source to carry an error")
	}
	if got := lexical.DocumentCount("pharmacy"); got != 1 {
		t.Errorf("expected 1 document in the lexical index, got %d", got)
	}
}

func TestRunCycle_ReportsChangesAgainstLastSync(t *testing.T) {
	ingestor, _ := newIngestorFixture(t)
	fetcher := &fakeFetcher{
		source: "confluence",
		docs: []domain.Document{
			doc("a", "confluence", "one"),
			doc("b", "confluence", "two"),
			doc("c", "confluence", "three"),
		},
	}
	ingestor.AddFetcher("pharmacy", fetcher)

	first, err := ingestor.RunCycle(context.Background(), "pharmacy")
	if err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if !reflect.DeepEqual(first.Sources[0].Changes.Added, []string{"a", "b", "c"}) {
		t.Errorf("first cycle should report everything added, got %v", first.Sources[0].Changes.Added)
	}

	fetcher.docs = []domain.Document{
		doc("b", "confluence", "two"),
		doc("c", "confluence", "three"),
		doc("d", "confluence", "four"),
		doc("e", "confluence", "five"),
	}

	second, err := ingestor.RunCycle(context.Background(), "pharmacy")
	if err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	changes := second.Sources[0].Changes
	if !reflect.DeepEqual(changes.Added, []string{"d", "e"}) {
		t.Errorf("expected added [d e], got %v", changes.Added)
	}
	if !reflect.DeepEqual(changes.Deleted, []string{"a"}) {
		t.Errorf("expected deleted [a], got %v", changes.Deleted)
	}
	if !reflect.DeepEqual(changes.Existing, []string{"b", "c"}) {
		t.Errorf("expected existing [b c], got %v", changes.Existing)
	}
}

func TestRunCycle_RebuildReplacesPreviousIndex(t *testing.T) {
	ingestor, lexical := newIngestorFixture(t)
	fetcher := &fakeFetcher{
		source: "confluence",
		docs: []domain.Document{
			doc("a", "confluence", "one"),
			doc("b", "confluence", "two"),
		},
	}
	ingestor.AddFetcher("pharmacy", fetcher)

	if _, err := ingestor.RunCycle(context.Background(), "pharmacy"); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	fetcher.docs = []domain.Document{doc("c", "confluence", "three")}
	if _, err := ingestor.RunCycle(context.Background(), "pharmacy"); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}

	if got := lexical.DocumentCount("pharmacy"); got != 1 {
		t.Errorf("expected the rebuild to replace the old index, got %d documents", got)
	}
}

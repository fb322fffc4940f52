package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ekap-project/knowledge-core/internal/config"
	"github.com/ekap-project/knowledge-core/internal/domain"
)

type recordedCall struct {
	query   string
	area    string
	limit   int
	filters map[string]any
}

type fakeRetriever struct {
	name   string
	result domain.RetrievalResult

	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRetriever) Name() string { return f.name }

func (f *fakeRetriever) Retrieve(_ context.Context, query, area string, limit int, filters map[string]any) domain.RetrievalResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{query: query, area: area, limit: limit, filters: filters})
	result := f.result
	result.RetrieverName = f.name
	return result
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRetriever) lastCall() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func successResult() domain.RetrievalResult {
	return domain.RetrievalResult{
		Documents: []domain.RetrievedDocument{{Title: "hit", Score: 1.0}},
		Message:   domain.MessageSuccess,
	}
}

func newTestDispatcher(sources, overrides string, retrievers ...Retriever) *Dispatcher {
	resolver := config.NewSourceConfigResolver(sources, overrides)
	return NewDispatcher([]string{"pharmacy", "claims"}, resolver, NewRegistry(retrievers...))
}

func TestDispatcher_UnknownAreaFails(t *testing.T) {
	d := newTestDispatcher("pharmacy:confluence", "")

	_, err := d.Retrieve(context.Background(), "q", "warehouse", Plan{})
	if !errors.Is(err, ErrInvalidTenant) {
		t.Fatalf("expected ErrInvalidTenant, got %v", err)
	}
}

func TestDispatcher_NoSourcesReturnsEmptyMap(t *testing.T) {
	d := newTestDispatcher("pharmacy:confluence", "")

	results, err := d.Retrieve(context.Background(), "q", "claims", Plan{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result map, got %d entries", len(results))
	}
}

func TestDispatcher_NoRetrieverConfiguredIsSynthetic(t *testing.T) {
	docs := &fakeRetriever{name: "docs", result: successResult()}
	d := newTestDispatcher("pharmacy:confluence;pharmacy:mystery", "", docs)

	results, err := d.Retrieve(context.Background(), "q", "pharmacy", Plan{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mystery := results["mystery"]
	if len(mystery) != 1 {
		t.Fatalf("expected synthetic result for mystery source, got %d", len(mystery))
	}
	if mystery[0].Message != domain.MessageNoRetriever {
		t.Errorf("expected %q message, got %q", domain.MessageNoRetriever, mystery[0].Message)
	}
	if mystery[0].Error == "" {
		t.Error("expected error string on synthetic result")
	}

	// The healthy source still ran.
	if len(results["confluence"]) != 1 || results["confluence"][0].Message != domain.MessageSuccess {
		t.Errorf("expected confluence to dispatch normally, got %+v", results["confluence"])
	}
}

func TestDispatcher_UnregisteredRetrieverIsSynthetic(t *testing.T) {
	docs := &fakeRetriever{name: "docs", result: successResult()}
	d := newTestDispatcher("pharmacy:confluence;pharmacy:gitlab", "", docs)

	results, err := d.Retrieve(context.Background(), "q", "pharmacy", Plan{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gitlab := results["gitlab"]
	if len(gitlab) != 1 {
		t.Fatalf("expected synthetic result for gitlab, got %d", len(gitlab))
	}
	if gitlab[0].Message != domain.MessageRetrieverNotFound {
		t.Errorf("expected %q message, got %q", domain.MessageRetrieverNotFound, gitlab[0].Message)
	}
	if len(results["confluence"]) != 1 || results["confluence"][0].Message != domain.MessageSuccess {
		t.Errorf("expected confluence to dispatch normally, got %+v", results["confluence"])
	}
}

func TestDispatcher_ForcesSourceFilter(t *testing.T) {
	docs := &fakeRetriever{name: "docs", result: successResult()}
	d := newTestDispatcher("pharmacy:confluence", "", docs)

	_, err := d.Retrieve(context.Background(), "refill policy", "pharmacy", Plan{
		Filters: map[string]any{"document_type": "runbook"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := docs.lastCall()
	if call.filters["source"] != "confluence" {
		t.Errorf("expected forced source filter, got %v", call.filters["source"])
	}
	if call.filters["document_type"] != "runbook" {
		t.Errorf("expected caller filter preserved, got %v", call.filters["document_type"])
	}
}

func TestDispatcher_OverrideReplacesDefault(t *testing.T) {
	docs := &fakeRetriever{name: "docs", result: successResult()}
	code := &fakeRetriever{name: "code", result: successResult()}
	d := newTestDispatcher("pharmacy:confluence", "pharmacy:confluence=code", docs, code)

	results, err := d.Retrieve(context.Background(), "q", "pharmacy", Plan{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if docs.callCount() != 0 {
		t.Errorf("default retriever should not run when overridden, got %d calls", docs.callCount())
	}
	if code.callCount() != 1 {
		t.Errorf("expected override retriever to run once, got %d calls", code.callCount())
	}
	if results["confluence"][0].RetrieverName != "code" {
		t.Errorf("expected code retriever in result, got %q", results["confluence"][0].RetrieverName)
	}
}

func TestDispatcher_RestrictsToRequestedSources(t *testing.T) {
	docs := &fakeRetriever{name: "docs", result: successResult()}
	code := &fakeRetriever{name: "code", result: successResult()}
	d := newTestDispatcher("pharmacy:confluence;pharmacy:gitlab", "", docs, code)

	results, err := d.Retrieve(context.Background(), "q", "pharmacy", Plan{
		Sources: []string{"confluence"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 source in results, got %d", len(results))
	}
	if code.callCount() != 0 {
		t.Errorf("restricted-out retriever should not run, got %d calls", code.callCount())
	}
}

func TestDispatcher_ClampsLimit(t *testing.T) {
	docs := &fakeRetriever{name: "docs", result: successResult()}
	d := newTestDispatcher("pharmacy:confluence", "", docs)

	cases := []struct {
		in   int
		want int
	}{
		{0, config.DefaultRetrievalLimit},
		{-3, config.MinRetrievalLimit},
		{100, config.MaxRetrievalLimit},
		{7, 7},
	}

	for _, tc := range cases {
		if _, err := d.Retrieve(context.Background(), "q", "pharmacy", Plan{Limit: tc.in}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := docs.lastCall().limit; got != tc.want {
			t.Errorf("limit %d: expected clamp to %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestDispatcher_MultipleRetrieversPerSource(t *testing.T) {
	docs := &fakeRetriever{name: "docs", result: successResult()}
	code := &fakeRetriever{name: "code", result: successResult()}
	d := newTestDispatcher("pharmacy:confluence", "pharmacy:confluence=docs|code", docs, code)

	results, err := d.Retrieve(context.Background(), "q", "pharmacy", Plan{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results["confluence"]) != 2 {
		t.Errorf("expected 2 results for confluence, got %d", len(results["confluence"]))
	}
}

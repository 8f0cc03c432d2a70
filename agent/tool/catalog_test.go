package tool

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	contractx "github.com/pinnaclehs/intake-agent/agent/contract"
	storex "github.com/pinnaclehs/intake-agent/agent/store"
)

func newTestStore(t *testing.T) *storex.Store {
	t.Helper()
	st, err := storex.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st
}

func newTestCatalog(t *testing.T, opts ...Option) (*Catalog, *storex.Store) {
	t.Helper()
	st := newTestStore(t)
	catalog, err := NewCatalog(st, opts...)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return catalog, st
}

func execute(t *testing.T, c *Catalog, name, args string) map[string]any {
	t.Helper()
	raw := c.Execute(context.Background(), contractx.ToolCall{ID: "call_test", Name: name, Arguments: args})
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("tool payload is not valid JSON: %v\n%s", err, raw)
	}
	return payload
}

func TestCatalogRequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := NewCatalog(nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestCatalogDefinitionsMatchDispatch(t *testing.T) {
	t.Parallel()

	catalog, _ := newTestCatalog(t)
	defs := catalog.Definitions()
	if len(defs) != 4 {
		t.Fatalf("expected 4 tool definitions without knowledge, got %d", len(defs))
	}

	withKnowledge, _ := newTestCatalog(t, WithKnowledge(stubSearcher{}))
	if got := len(withKnowledge.Definitions()); got != 5 {
		t.Fatalf("expected 5 tool definitions with knowledge, got %d", got)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	catalog, _ := newTestCatalog(t)
	payload := execute(t, catalog, "reboot_datacenter", `{}`)
	if payload["error"] != "unknown tool: reboot_datacenter" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestExecuteMalformedArguments(t *testing.T) {
	t.Parallel()

	catalog, _ := newTestCatalog(t)
	payload := execute(t, catalog, NameCheckServiceArea, `{"zip_code": `)
	if payload["error"] == nil || payload["error"] == "" {
		t.Fatalf("expected structured error payload, got %v", payload)
	}
}

func TestExecuteEmptyArgumentsTreatedAsObject(t *testing.T) {
	t.Parallel()

	catalog, _ := newTestCatalog(t)
	payload := execute(t, catalog, NameCheckServiceArea, "")
	if payload["in_service_area"] != false {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestExecuteValidationFailureIsPayloadNotCrash(t *testing.T) {
	t.Parallel()

	catalog, _ := newTestCatalog(t)
	payload := execute(t, catalog, NameGetPriceEstimate, `{"service_category":"plumbing"}`)
	if payload["error"] != "job_type is required" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

type stubSearcher struct {
	matches []KnowledgeMatch
	err     error
}

func (s stubSearcher) Search(ctx context.Context, query string, topK int) ([]KnowledgeMatch, error) {
	return s.matches, s.err
}

func TestSearchKnowledgeNotConfigured(t *testing.T) {
	t.Parallel()

	catalog, _ := newTestCatalog(t)
	payload := execute(t, catalog, NameSearchKnowledge, `{"query":"warranty"}`)
	if payload["error"] != "knowledge base is not configured" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestSearchKnowledgeReturnsMatches(t *testing.T) {
	t.Parallel()

	searcher := stubSearcher{matches: []KnowledgeMatch{
		{Content: "All repairs carry a 1-year warranty.", Source: "policies.txt", Similarity: 0.93},
	}}
	catalog, _ := newTestCatalog(t, WithKnowledge(searcher))

	payload := execute(t, catalog, NameSearchKnowledge, `{"query":"warranty"}`)
	results, ok := payload["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

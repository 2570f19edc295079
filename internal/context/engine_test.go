package context

import (
	"context"
	"testing"
	"time"

	"github.com/scrypster/mnemex/internal/apperr"
	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/pkg/types"
)

// fakeEngineStore implements just enough of storage.MemoryStore to drive
// the Context Engine façade; every other method panics so an accidental
// new dependency surfaces immediately.
type fakeEngineStore struct {
	hits          []storage.SearchHit
	relationships map[string][]types.Relationship
	memories      map[string]types.Memory
}

func (f *fakeEngineStore) CreateMemory(ctx context.Context, m *types.Memory, embedding []float32) error {
	panic("not used by Engine")
}
func (f *fakeEngineStore) GetMemory(ctx context.Context, id, workspaceID string) (*types.Memory, error) {
	if m, ok := f.memories[id]; ok {
		return &m, nil
	}
	return nil, nil
}
func (f *fakeEngineStore) SearchMemories(ctx context.Context, workspaceID string, params storage.SearchParams) ([]storage.SearchHit, error) {
	return f.hits, nil
}
func (f *fakeEngineStore) UpdateMemory(ctx context.Context, m *types.Memory) error {
	panic("not used by Engine")
}
func (f *fakeEngineStore) UpdateMemoryLifecycle(ctx context.Context, id, workspaceID string, patch storage.LifecyclePatch) error {
	panic("not used by Engine")
}
func (f *fakeEngineStore) GetMemoriesByLifecycleState(ctx context.Context, workspaceID string, state types.LifecycleState, page storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	panic("not used by Engine")
}
func (f *fakeEngineStore) RecordAccess(ctx context.Context, id, workspaceID string) error {
	panic("not used by Engine")
}
func (f *fakeEngineStore) CreateRelationship(ctx context.Context, rel *types.Relationship) error {
	panic("not used by Engine")
}
func (f *fakeEngineStore) GetRelationships(ctx context.Context, memoryID string) ([]types.Relationship, error) {
	return f.relationships[memoryID], nil
}
func (f *fakeEngineStore) ArchiveMemory(ctx context.Context, id, workspaceID string, retention time.Duration) (*storage.ArchiveStats, error) {
	panic("not used by Engine")
}
func (f *fakeEngineStore) RestoreMemory(ctx context.Context, id, workspaceID string) (*types.Memory, error) {
	panic("not used by Engine")
}
func (f *fakeEngineStore) ListExpiredArchived(ctx context.Context, workspaceID string, now time.Time, batchSize int) ([]types.ArchivedMemory, error) {
	panic("not used by Engine")
}
func (f *fakeEngineStore) DeleteArchivedMemory(ctx context.Context, id, workspaceID string) (int, error) {
	panic("not used by Engine")
}
func (f *fakeEngineStore) LogLifecycleEvent(ctx context.Context, ev *types.LifecycleEvent) error {
	panic("not used by Engine")
}
func (f *fakeEngineStore) GetHistory(ctx context.Context, memoryID, workspaceID string) ([]types.LifecycleEvent, error) {
	panic("not used by Engine")
}
func (f *fakeEngineStore) GetRecentTransitions(ctx context.Context, workspaceID string, limit int) ([]types.LifecycleEvent, error) {
	panic("not used by Engine")
}
func (f *fakeEngineStore) PruneLifecycleEvents(ctx context.Context, workspaceID string, olderThan time.Time) (int, error) {
	panic("not used by Engine")
}
func (f *fakeEngineStore) Close() error { return nil }

type fakeEmbedder struct{ vector []float32 }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return f.vector, nil }
func (f fakeEmbedder) GetModel() string                                         { return "fake-embed" }

func TestNewEngine_RejectsNilStore(t *testing.T) {
	_, err := NewEngine(nil, fakeEmbedder{}, nil, 3, 1000)
	if err == nil {
		t.Fatal("expected an error for a nil store")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestNewEngine_RejectsNonPositiveBudget(t *testing.T) {
	store := &fakeEngineStore{}
	_, err := NewEngine(store, fakeEmbedder{}, nil, 3, 0)
	if err == nil {
		t.Fatal("expected an error for a non-positive token budget")
	}
}

func TestSearch_RequiresEmbedder(t *testing.T) {
	store := &fakeEngineStore{}
	eng, err := NewEngine(store, nil, nil, 3, 1000)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	_, err = eng.Search(context.Background(), "hello", "ws1", SearchOptions{})
	if err == nil {
		t.Fatal("expected Search without an embedder to fail")
	}
}

func TestSearchByVector_RejectsDimensionMismatch(t *testing.T) {
	store := &fakeEngineStore{}
	eng, err := NewEngine(store, fakeEmbedder{}, nil, 3, 1000)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	_, err = eng.SearchByVector(context.Background(), []float32{1, 2}, "ws1", SearchOptions{})
	if err == nil {
		t.Fatal("expected a dimension mismatch error")
	}
}

func TestSearchByVector_FiltersByConfidenceAndRanks(t *testing.T) {
	now := time.Now()
	store := &fakeEngineStore{
		hits: []storage.SearchHit{
			{Memory: types.Memory{ID: "m1", Confidence: 0.9, DecayScore: 0.8, LastAccessedAt: now}, Similarity: 0.5},
			{Memory: types.Memory{ID: "m2", Confidence: 0.1, DecayScore: 0.8, LastAccessedAt: now}, Similarity: 0.99},
			{Memory: types.Memory{ID: "m3", Confidence: 0.95, DecayScore: 0.9, LastAccessedAt: now}, Similarity: 0.9},
		},
	}
	eng, err := NewEngine(store, fakeEmbedder{}, nil, 3, 1000)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	ranked, err := eng.SearchByVector(context.Background(), []float32{1, 0, 0}, "ws1", SearchOptions{MinConfidence: 0.5})
	if err != nil {
		t.Fatalf("SearchByVector() failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results after the confidence floor, got %d", len(ranked))
	}
	if ranked[0].Memory.ID != "m3" {
		t.Errorf("expected m3 (higher similarity) to rank first, got %s", ranked[0].Memory.ID)
	}
}

func TestSearchByVector_ExpandsRelationships(t *testing.T) {
	store := &fakeEngineStore{
		hits: []storage.SearchHit{
			{Memory: types.Memory{ID: "m1", Confidence: 0.9}, Similarity: 0.8},
		},
		relationships: map[string][]types.Relationship{
			"m1": {{FromMemoryID: "m1", ToMemoryID: "m2", RelationshipType: "relates_to"}},
		},
		memories: map[string]types.Memory{
			"m2": {ID: "m2", Confidence: 0.7},
		},
	}
	eng, err := NewEngine(store, fakeEmbedder{}, nil, 3, 1000)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	ranked, err := eng.SearchByVector(context.Background(), []float32{1, 0, 0}, "ws1", SearchOptions{ExpandDepth: 1})
	if err != nil {
		t.Fatalf("SearchByVector() failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected the expanded neighbor to join the candidate set, got %d results", len(ranked))
	}
}

func TestBuildContext_UnknownTemplateIsTemplateMissingKind(t *testing.T) {
	store := &fakeEngineStore{hits: []storage.SearchHit{{Memory: types.Memory{ID: "m1", Confidence: 0.9}, Similarity: 0.5}}}
	eng, err := NewEngine(store, fakeEmbedder{vector: []float32{1, 0, 0}}, nil, 3, 1000)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	_, err = eng.BuildContext(context.Background(), "q", "ws1", BuildContextOptions{TemplateName: "nope"})
	if err == nil {
		t.Fatal("expected an error for an unregistered template")
	}
	if !apperr.Is(err, apperr.KindTemplateMissing) {
		t.Errorf("expected a template_not_found kind, got %v", err)
	}
}

func TestBuildContext_RendersWithDefaultTemplate(t *testing.T) {
	store := &fakeEngineStore{hits: []storage.SearchHit{
		{Memory: types.Memory{ID: "m1", Content: "use postgres", Type: "decision", Confidence: 0.9}, Similarity: 0.5},
	}}
	eng, err := NewEngine(store, fakeEmbedder{vector: []float32{1, 0, 0}}, nil, 3, 1000)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	result, err := eng.BuildContext(context.Background(), "q", "ws1", BuildContextOptions{TokenBudget: 1000})
	if err != nil {
		t.Fatalf("BuildContext() failed: %v", err)
	}
	if len(result.Memories) != 1 {
		t.Fatalf("expected 1 memory in the assembled context, got %d", len(result.Memories))
	}
	if result.Template != DefaultTemplate {
		t.Errorf("expected the default template name, got %q", result.Template)
	}
}

func TestRegisterTemplate_RejectsReservedAndDuplicateNames(t *testing.T) {
	store := &fakeEngineStore{}
	eng, err := NewEngine(store, fakeEmbedder{}, nil, 3, 1000)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	if err := eng.RegisterTemplate(DefaultTemplate, Template{}); err == nil {
		t.Error("expected the reserved default template name to be rejected")
	}
	if err := eng.RegisterTemplate("custom", Template{}); err != nil {
		t.Fatalf("RegisterTemplate() failed: %v", err)
	}
	if err := eng.RegisterTemplate("custom", Template{}); err == nil {
		t.Error("expected a duplicate template name to be rejected")
	}
}

func TestRegisterRanker_RejectsReservedAndDuplicateNames(t *testing.T) {
	store := &fakeEngineStore{}
	eng, err := NewEngine(store, fakeEmbedder{}, nil, 3, 1000)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	if err := eng.RegisterRanker(DefaultRanker, RankWeights{}); err == nil {
		t.Error("expected the reserved default ranker name to be rejected")
	}
	if err := eng.RegisterRanker("custom", DefaultRankWeights); err != nil {
		t.Fatalf("RegisterRanker() failed: %v", err)
	}
	if err := eng.RegisterRanker("custom", DefaultRankWeights); err == nil {
		t.Error("expected a duplicate ranker name to be rejected")
	}
}
